package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/arthur-debert/dirconv/pkg/dirconv"
	"github.com/arthur-debert/dirconv/pkg/dirconv/classify"
)

var summaryOrder = []classify.Class{classify.ASCII, classify.UTF8, classify.WTF8, classify.Legacy8Bit}

// printSummary writes the run counters to w, coloured when w is a terminal.
func printSummary(w io.Writer, stats dirconv.Stats) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	tty := dirconv.IsTerminal(w)
	for _, c := range []*color.Color{cyan, green, red, yellow} {
		if tty {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	cyan.Fprintf(w, "Summary:\n")
	fmt.Fprintf(w, "  Entries: %d (excluded %d)\n", stats.Visited, stats.Excluded)
	for _, class := range summaryOrder {
		fmt.Fprintf(w, "  %-6s %d\n", class.String()+":", stats.ByClass[class])
	}
	fmt.Fprintf(w, "  Selected: %d\n", stats.Selected)
	if stats.Planned > 0 {
		fmt.Fprintf(w, "  Planned: ")
		yellow.Fprintf(w, "%d\n", stats.Planned)
	}
	fmt.Fprintf(w, "  Renamed: ")
	green.Fprintf(w, "%d\n", stats.Renamed)
	fmt.Fprintf(w, "  Errors: ")
	if stats.Errors > 0 {
		red.Fprintf(w, "%d\n", stats.Errors)
	} else {
		green.Fprintf(w, "%d\n", stats.Errors)
	}
}
