// Package grammar implements the character classes of RFC 5234 Appendix B.1
// and RFC 7230 Section 3.2.6, and the quote-aware split of a Forwarded header
// field value (RFC 7239) into its elements.
package grammar

//go:generate go tool errtrace -w .

type Error string

func (e Error) Error() string { return string(e) }

func (Error) Grammar() bool { return true }

const (
	ErrEmptyInput     Error = "empty input"
	ErrMalformedInput Error = "malformed input"
)
