package mixconv

import (
	"bytes"
	"errors"
	"fmt"
)

// SampleInput mixes UTF-8 and ISO-8859-1 lines, with isolated non-ASCII
// bytes at the start, middle and end of a line. The last line has no
// newline.
var SampleInput = []byte("" +
	"\xc3\xa6 \xc3\xb8 \xc3\xa5\n" +
	"skj\xe6rg\xe5rds\xf8l\n" +
	"\xf8st\n" +
	"t\xf8s\n" +
	"st\xf8\n" +
	"\xe5s\n" +
	"s\xe5\n" +
	"\xf8\n" +
	"\xe5")

// SampleOutput is SampleInput converted from ISO-8859-1.
const SampleOutput = "æ ø å\n" +
	"skjærgårdsøl\n" +
	"øst\n" +
	"tøs\n" +
	"stø\n" +
	"ås\n" +
	"så\n" +
	"ø\n" +
	"å"

// ErrSelfTest is returned when the sample does not convert as expected.
var ErrSelfTest = errors.New("sample output does not match expected output")

// SelfTest converts SampleInput and compares the result with SampleOutput.
func (c *Converter) SelfTest() error {
	var out bytes.Buffer
	if err := c.Convert(&out, bytes.NewReader(SampleInput), "sample input", "sample output"); err != nil {
		return err
	}
	if out.String() != SampleOutput {
		return fmt.Errorf("%w: got %q", ErrSelfTest, out.String())
	}
	return nil
}
