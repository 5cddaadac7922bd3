package classify_test

import (
	"bytes"
	"math/rand"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/dirconv/pkg/dirconv/classify"
)

func TestClassifyVectors(t *testing.T) {
	for _, v := range classify.Vectors {
		t.Run(v.Name, func(t *testing.T) {
			assert.Equal(t, v.Want, classify.ClassifyString(v.Input), "input % x", v.Input)
			assert.Equal(t, v.Want, classify.Classify([]byte(v.Input)), "input % x", v.Input)
		})
	}
}

func TestClassifyASCII(t *testing.T) {
	assert.Equal(t, classify.ASCII, classify.Classify(nil))
	assert.Equal(t, classify.ASCII, classify.ClassifyString(""))

	rng := rand.New(rand.NewSource(1))
	buf := make([]byte, 64)
	for i := 0; i < 1000; i++ {
		n := rng.Intn(len(buf))
		for j := 0; j < n; j++ {
			buf[j] = byte(rng.Intn(0x80))
		}
		require.Equal(t, classify.ASCII, classify.Classify(buf[:n]), "input % x", buf[:n])
	}
}

func TestClassifyShortestAndOverlong(t *testing.T) {
	testCases := []struct {
		name     string
		shortest string
		overlong string
	}{
		{"U+0001", "\x01", "\xc0\x81"},
		{"U+0080", "\xc2\x80", "\xe0\x82\x80"},
		{"U+0800", "\xe0\xa0\x80", "\xf0\x80\xa0\x80"},
		{"U+10000", "\xf0\x90\x80\x80", "\xf8\x80\x90\x80\x80"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			want := classify.UTF8
			if len(tc.shortest) == 1 {
				want = classify.ASCII
			}
			assert.Equal(t, want, classify.ClassifyString(tc.shortest))
			assert.Equal(t, classify.Legacy8Bit, classify.ClassifyString(tc.overlong))
		})
	}
}

func TestClassifyRange(t *testing.T) {
	assert.Equal(t, classify.UTF8, classify.ClassifyString("\xf4\x8f\xbf\xbf"))
	assert.Equal(t, classify.Legacy8Bit, classify.ClassifyString("\xf4\x90\x80\x80"))
}

func TestClassifyBrokenSequences(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"truncated 2-byte at end", "caf\xc3"},
		{"truncated 3-byte at end", "x\xe2\x82"},
		{"truncated 4-byte at end", "\xf0\x9f\x98"},
		{"ascii inside sequence", "\xc3a"},
		{"stray continuation", "caf\xa9"},
		{"lead inside sequence", "\xe2\xc3\xa9"},
		{"latin-1 e acute", "caf\xe9"},
		{"latin-1 e acute mid-name", "caf\xe9.txt"},
		{"0xfe lead", "\xfe\x80\x80\x80\x80\x80\x80"},
		{"0xff", "\xff"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, classify.Legacy8Bit, classify.ClassifyString(tc.input))
		})
	}
}

func TestClassifyAgreesWithUTF8Valid(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	buf := make([]byte, 16)
	for i := 0; i < 20000; i++ {
		n := rng.Intn(len(buf)) + 1
		rng.Read(buf[:n])
		in := buf[:n]
		got := classify.Classify(in)
		if utf8.Valid(in) {
			want := classify.UTF8
			if isASCII(in) {
				want = classify.ASCII
			}
			require.Equal(t, want, got, "input % x", in)
		} else if got != classify.Legacy8Bit {
			// The only UTF-8 encoder output utf8.Valid refuses is the
			// surrogate range U+D800..U+DFFF.
			require.True(t, bytes.Contains(in, []byte{0xed}), "input % x classified %s", in, got)
		}
	}
}

func TestClassifyEncodedRunes(t *testing.T) {
	buf := make([]byte, utf8.UTFMax)
	for r := rune(0x80); r <= utf8.MaxRune; r += 97 {
		if r >= 0xD800 && r <= 0xDFFF {
			continue
		}
		n := utf8.EncodeRune(buf, r)
		require.Equal(t, classify.UTF8, classify.Classify(buf[:n]), "rune %U", r)
	}
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "8bit", classify.Legacy8Bit.String())
	assert.Equal(t, "ascii", classify.ASCII.String())
	assert.Equal(t, "utf8", classify.UTF8.String())
	assert.Equal(t, "wtf8", classify.WTF8.String())
	assert.Equal(t, "Class(9)", classify.Class(9).String())
}

func TestParseClass(t *testing.T) {
	testCases := []struct {
		in      string
		want    classify.Class
		wantErr bool
	}{
		{"legacy", classify.Legacy8Bit, false},
		{"8bit", classify.Legacy8Bit, false},
		{"ASCII", classify.ASCII, false},
		{"7bit", classify.ASCII, false},
		{"utf-8", classify.UTF8, false},
		{" wtf8 ", classify.WTF8, false},
		{"latin1", 0, true},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := classify.ParseClass(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSelection(t *testing.T) {
	s := classify.DefaultSelection
	assert.True(t, s.Has(classify.Legacy8Bit))
	assert.False(t, s.Has(classify.ASCII))
	assert.False(t, s.Has(classify.UTF8))
	assert.False(t, s.Has(classify.WTF8))

	s = classify.Select(classify.UTF8, classify.WTF8)
	assert.Equal(t, []classify.Class{classify.UTF8, classify.WTF8}, s.Classes())
	assert.Equal(t, "utf8,wtf8", s.String())

	s, err := classify.ParseSelection(nil)
	require.NoError(t, err)
	assert.Equal(t, classify.DefaultSelection, s)

	s, err = classify.ParseSelection([]string{"ascii", "legacy"})
	require.NoError(t, err)
	assert.True(t, s.Has(classify.ASCII))
	assert.True(t, s.Has(classify.Legacy8Bit))

	_, err = classify.ParseSelection([]string{"bogus"})
	assert.Error(t, err)
}

func TestNeedsRename(t *testing.T) {
	assert.True(t, classify.Legacy8Bit.NeedsRename())
	assert.True(t, classify.WTF8.NeedsRename())
	assert.False(t, classify.ASCII.NeedsRename())
	assert.False(t, classify.UTF8.NeedsRename())
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
