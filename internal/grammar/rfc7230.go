package grammar

import (
	"github.com/phax/ph-web-sub004/internal/util"
)

// tchar = "!" / "#" / "$" / "%" / "&" / "'" / "*" / "+" / "-" / "." /
//
//	"^" / "_" / "`" / "|" / "~" / DIGIT / ALPHA
var tchars = func() (t [128]bool) {
	for c := range t {
		t[c] = IsAlpha(c) || IsDigit(c)
	}
	for _, c := range "!#$%&'*+-.^_`|~" {
		t[c] = true
	}
	return t
}()

// IsTokenChar reports whether c is tchar (RFC 7230 Section 3.2.6).
func IsTokenChar(c int) bool { return c >= 0 && c < len(tchars) && tchars[c] }

// IsToken reports whether s is a non-empty run of tchar.
func IsToken[T ~string | ~[]byte](s T) bool {
	if len(s) == 0 {
		return false
	}
	for i := range len(s) {
		if !IsTokenChar(int(s[i])) {
			return false
		}
	}
	return true
}

func isObsText(c int) bool { return c >= 0x80 && c <= 0xFF }

// isLinearWS reports CR, LF, HTAB and SP, the control-like characters allowed
// inside quoted-string and comment content.
func isLinearWS(c int) bool { return IsCR(c) || IsLF(c) || IsWSP(c) }

// IsQuotedTextChar reports whether c may appear unescaped inside a quoted-string:
//
//	qdtext = HTAB / SP / %x21 / %x23-5B / %x5D-7E / obs-text
//
// CR and LF are accepted as linear whitespace.
func IsQuotedTextChar(c int) bool {
	return isLinearWS(c) ||
		(IsVChar(c) && c != '"' && c != '\\') ||
		isObsText(c)
}

// IsQuotedPairChar reports whether c may follow a backslash in a quoted-pair:
//
//	quoted-pair = "\" ( HTAB / SP / VCHAR / obs-text )
func IsQuotedPairChar(c int) bool { return IsWSP(c) || IsVChar(c) || isObsText(c) }

// IsQuotedTextContent reports whether s is a valid body of a quoted-string,
// that is the text between the delimiting DQUOTEs with quoted-pairs resolved.
func IsQuotedTextContent[T ~string | ~[]byte](s T) bool {
	for i := 0; i < len(s); i++ {
		c := int(s[i])
		if c == '\\' {
			i++
			if i == len(s) || !IsQuotedPairChar(int(s[i])) {
				return false
			}
			continue
		}
		if !IsQuotedTextChar(c) {
			return false
		}
	}
	return true
}

// IsQuotedText reports whether s is a complete quoted-string:
//
//	quoted-string = DQUOTE *( qdtext / quoted-pair ) DQUOTE
func IsQuotedText[T ~string | ~[]byte](s T) bool {
	n := len(s)
	if n < 2 || s[0] != '"' || s[n-1] != '"' {
		return false
	}
	return IsQuotedTextContent(s[1 : n-1])
}

// IsCommentChar reports whether c may appear unescaped inside a comment:
//
//	ctext = HTAB / SP / %x21-27 / %x2A-5B / %x5D-7E / obs-text
//
// CR and LF are accepted as linear whitespace.
func IsCommentChar(c int) bool {
	return isLinearWS(c) ||
		(IsVChar(c) && c != '(' && c != ')' && c != '\\') ||
		isObsText(c)
}

// IsComment reports whether s is a complete, balanced comment:
//
//	comment = "(" *( ctext / quoted-pair / comment ) ")"
func IsComment[T ~string | ~[]byte](s T) bool {
	if len(s) < 2 || s[0] != '(' {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		c := int(s[i])
		switch {
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i == len(s)-1
			}
		case c == '\\':
			i++
			if i == len(s) || !IsQuotedPairChar(int(s[i])) {
				return false
			}
		case !IsCommentChar(c):
			return false
		}
	}
	return false
}

// NeedsQuoting reports whether s cannot be sent as a bare token.
func NeedsQuoting[T ~string | ~[]byte](s T) bool { return !IsToken(s) }

// Quote renders s as a quoted-string. DQUOTE and backslash are escaped, and so
// is every CTL except HTAB, so the result never carries a raw line break.
func Quote(s string) string {
	sb := util.GetStringBuilder()
	defer util.FreeStringBuilder(sb)

	sb.Grow(len(s) + 2)
	sb.WriteByte('"')
	for i := range len(s) {
		c := s[i]
		if c == '"' || c == '\\' || (IsCtl(int(c)) && !IsHTab(int(c))) {
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	sb.WriteByte('"')
	return sb.String()
}

// QuoteIfNeeded returns s unchanged when it is a token, otherwise [Quote](s).
func QuoteIfNeeded(s string) string {
	if NeedsQuoting(s) {
		return Quote(s)
	}
	return s
}
