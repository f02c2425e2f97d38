package grammar

import (
	"braces.dev/errtrace"

	"github.com/phax/ph-web-sub004/internal/errorutil"
)

func newMalformedInputErr(args ...any) error {
	return errorutil.NewWrapperError(ErrMalformedInput, args...) //errtrace:skip
}

// SplitForwardedList returns the raw text of every top-level element of a
// Forwarded field value, in order. A comma inside a quoted-string does not
// split, and a backslash inside one escapes any byte. Elements are neither
// trimmed nor validated. The scan is a single pass over s.
//
//	forwarded-list = element-text *( "," element-text )
//	element-text   = *( quoted-string / element-char )
//	element-char   = %x00-21 / %x23-2B / %x2D-FF
func SplitForwardedList(s string) ([]string, error) {
	if len(s) == 0 {
		return nil, errtrace.Wrap(ErrEmptyInput)
	}

	var (
		out             []string
		start, quoteAt  int
		quoted, escaped bool
	)
	for i := range len(s) {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case quoted:
			switch c {
			case '\\':
				escaped = true
			case '"':
				quoted = false
			}
		case c == '"':
			quoted, quoteAt = true, i
		case c == ',':
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if quoted {
		return nil, errtrace.Wrap(newMalformedInputErr("quoted-string at %d is not terminated", quoteAt))
	}
	return append(out, s[start:]), nil
}
