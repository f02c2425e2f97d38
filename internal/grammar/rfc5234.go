package grammar

// The predicates below implement the core rules of RFC 5234 Appendix B.1.
// They accept any int and report false for values outside the rule's range.

// IsAlpha reports whether c is ALPHA (%x41-5A / %x61-7A).
func IsAlpha(c int) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }

// IsBit reports whether c is BIT ("0" / "1").
func IsBit(c int) bool { return c == '0' || c == '1' }

// IsChar reports whether c is CHAR (%x01-7F).
func IsChar(c int) bool { return c >= 0x01 && c <= 0x7F }

// IsCR reports whether c is CR (%x0D).
func IsCR(c int) bool { return c == '\r' }

// IsLF reports whether c is LF (%x0A).
func IsLF(c int) bool { return c == '\n' }

// IsCRLF reports whether s is exactly CR LF.
func IsCRLF[T ~string | ~[]byte](s T) bool { return len(s) == 2 && s[0] == '\r' && s[1] == '\n' }

// IsCtl reports whether c is CTL (%x00-1F / %x7F).
func IsCtl(c int) bool { return (c >= 0x00 && c <= 0x1F) || c == 0x7F }

// IsDigit reports whether c is DIGIT (%x30-39).
func IsDigit(c int) bool { return c >= '0' && c <= '9' }

// IsDQuote reports whether c is DQUOTE (%x22).
func IsDQuote(c int) bool { return c == '"' }

// IsHexDigit reports whether c is HEXDIG. ABNF strings are case-insensitive,
// so lower case "a"-"f" match as well.
func IsHexDigit(c int) bool {
	return IsDigit(c) || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

// IsHTab reports whether c is HTAB (%x09).
func IsHTab(c int) bool { return c == '\t' }

// IsOctet reports whether c is OCTET (%x00-FF).
func IsOctet(c int) bool { return c >= 0x00 && c <= 0xFF }

// IsSP reports whether c is SP (%x20).
func IsSP(c int) bool { return c == ' ' }

// IsVChar reports whether c is VCHAR (%x21-7E).
func IsVChar(c int) bool { return c >= 0x21 && c <= 0x7E }

// IsWSP reports whether c is WSP (SP / HTAB).
func IsWSP(c int) bool { return IsSP(c) || IsHTab(c) }
