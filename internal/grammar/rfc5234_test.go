package grammar_test

import (
	"testing"

	"github.com/phax/ph-web-sub004/internal/grammar"
)

func TestCoreRules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		fn   func(int) bool
		yes  []int
		no   []int
	}{
		{"ALPHA", grammar.IsAlpha, []int{'A', 'Z', 'a', 'z', 'm'}, []int{'@', '[', '`', '{', '0', -1, 0x100, 0xC4}},
		{"BIT", grammar.IsBit, []int{'0', '1'}, []int{'2', 'a', -1, 0}},
		{"CHAR", grammar.IsChar, []int{0x01, 'a', 0x7F}, []int{0x00, 0x80, -1, 0x1000}},
		{"CR", grammar.IsCR, []int{'\r'}, []int{'\n', 0, -1}},
		{"LF", grammar.IsLF, []int{'\n'}, []int{'\r', 0, -1}},
		{"CTL", grammar.IsCtl, []int{0x00, 0x1F, 0x7F, '\t'}, []int{0x20, 0x7E, 0x80, -1}},
		{"DIGIT", grammar.IsDigit, []int{'0', '5', '9'}, []int{'/', ':', 'a', -1}},
		{"DQUOTE", grammar.IsDQuote, []int{'"'}, []int{'\'', -1}},
		{"HEXDIG", grammar.IsHexDigit, []int{'0', '9', 'A', 'F', 'a', 'f'}, []int{'G', 'g', '-', -1}},
		{"HTAB", grammar.IsHTab, []int{'\t'}, []int{' ', -1}},
		{"OCTET", grammar.IsOctet, []int{0x00, 0x7F, 0xFF}, []int{-1, 0x100}},
		{"SP", grammar.IsSP, []int{' '}, []int{'\t', -1}},
		{"VCHAR", grammar.IsVChar, []int{0x21, '~', 'a'}, []int{0x20, 0x7F, 0x80, -1}},
		{"WSP", grammar.IsWSP, []int{' ', '\t'}, []int{'\r', '\n', 'a', -1}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			for _, v := range c.yes {
				if !c.fn(v) {
					t.Errorf("Is%s(%#x) = false, want true", c.name, v)
				}
			}
			for _, v := range c.no {
				if c.fn(v) {
					t.Errorf("Is%s(%#x) = true, want false", c.name, v)
				}
			}
		})
	}
}

func TestIsCRLF(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"\r", false},
		{"\r\n", true},
		{"\n\r", false},
		{"\r\n\r\n", false},
	}

	for _, c := range cases {
		if got := grammar.IsCRLF(c.in); got != c.want {
			t.Errorf("grammar.IsCRLF(%q) = %v, want %v", c.in, got, c.want)
		}
		if got := grammar.IsCRLF([]byte(c.in)); got != c.want {
			t.Errorf("grammar.IsCRLF([]byte(%q)) = %v, want %v", c.in, got, c.want)
		}
	}
}
