package main

import (
	"fmt"
	"io"

	"github.com/arthur-debert/dirconv/pkg/dirconv/classify"
)

// runSelfTest runs the classifier over its reference vectors and reports
// the results in TAP format.
func runSelfTest(w io.Writer) error {
	fmt.Fprintf(w, "1..%d\n", len(classify.Vectors))
	for i, v := range classify.Vectors {
		got := classify.ClassifyString(v.Input)
		if got == v.Want {
			fmt.Fprintf(w, "ok %d - %s\n", i+1, v.Name)
			continue
		}
		fmt.Fprintf(w, "not ok %d - %s: got %s, want %s\n", i+1, v.Name, got, v.Want)
	}
	return nil
}
