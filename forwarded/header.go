package forwarded

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"braces.dev/errtrace"

	"github.com/phax/ph-web-sub004/internal/grammar"
	"github.com/phax/ph-web-sub004/internal/util"
)

// HeaderName is the canonical name of the header field.
const HeaderName = "Forwarded"

// Header is a Forwarded header field value, one element per proxy hop.
// The first element describes the hop closest to the client, the last one
// the hop closest to the receiver.
type Header []*Element

// ParseHeader parses a Forwarded header field value using the default parser.
// It returns nil if the value is malformed.
func ParseHeader(s string) Header { return defParser.ParseHeader(s) }

// ParseHeaderStrict parses a Forwarded header field value using the default parser.
func ParseHeaderStrict(s string) (Header, error) {
	return errtrace.Wrap2(defParser.ParseHeaderStrict(s))
}

// ParseHeader parses a Forwarded header field value.
// It returns nil if the value is malformed.
func (p *Parser) ParseHeader(s string) Header {
	h, err := p.ParseHeaderStrict(s)
	if err != nil {
		return nil
	}
	return h
}

// ParseHeaderStrict parses a comma-separated list of elements.
// Commas inside quoted-strings do not split elements and blank list
// members are skipped. Blank input yields an empty, non-nil header.
func (p *Parser) ParseHeaderStrict(s string) (Header, error) {
	s = util.TrimOWS(s)
	if s == "" {
		return Header{}, nil
	}

	parts, err := grammar.SplitForwardedList(s)
	if err != nil {
		// only an unterminated quoted-string stops the split
		err = &ParseError{Input: s, Pos: len(s), State: stateReadValueQuoted.String(), Err: ErrUnterminatedQuote}
		p.logReject(err)
		return nil, errtrace.Wrap(err)
	}

	h := make(Header, 0, len(parts))
	for _, part := range parts {
		part = util.TrimOWS(part)
		if part == "" {
			continue
		}
		e, err := parseElement(part)
		if err != nil {
			p.logReject(err)
			return nil, errtrace.Wrap(err)
		}
		h = append(h, e)
	}
	return h, nil
}

// Name returns the header field name.
func (Header) Name() string { return HeaderName }

// First returns the element of the hop closest to the client.
func (h Header) First() *Element {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// Last returns the element of the hop closest to the receiver.
func (h Header) Last() *Element {
	if len(h) == 0 {
		return nil
	}
	return h[len(h)-1]
}

// Fors returns the "for" value of every element that has one, in order.
func (h Header) Fors() []string {
	var fors []string
	for _, e := range h {
		if v, ok := e.For(); ok {
			fors = append(fors, v)
		}
	}
	return fors
}

// RenderTo writes the header value to w. Empty elements are skipped.
func (h Header) RenderTo(w io.Writer) (num int, err error) {
	return errtrace.Wrap2(renderHeader(w, h))
}

// Render returns the header value.
func (h Header) Render() string {
	if len(h) == 0 {
		return ""
	}

	sb := util.GetStringBuilder()
	defer util.FreeStringBuilder(sb)
	h.RenderTo(sb) //nolint:errcheck
	return sb.String()
}

// String returns the header value.
func (h Header) String() string { return h.Render() }

// Format implements fmt.Formatter.
func (h Header) Format(f fmt.State, verb rune) {
	switch verb {
	case 's', 'v':
		if verb == 'v' && (f.Flag('+') || f.Flag('#')) {
			type hideMethods []*Element
			fmt.Fprintf(f, "forwarded.Header%+v", hideMethods(h))
			return
		}
		h.RenderTo(f) //nolint:errcheck
	case 'q':
		fmt.Fprint(f, strconv.Quote(h.Render()))
	default:
		fmt.Fprintf(f, "%%!%c(forwarded.Header=%s)", verb, h.Render())
	}
}

// Equal reports whether val is a header with pairwise equal elements in the same order.
func (h Header) Equal(val any) bool {
	var other Header
	switch v := val.(type) {
	case Header:
		other = v
	case *Header:
		if v == nil {
			return h == nil
		}
		other = *v
	default:
		return false
	}

	if len(h) != len(other) {
		return false
	}
	for i := range h {
		if !h[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the header.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	h2 := make(Header, len(h))
	for i, e := range h {
		h2[i] = e.Clone()
	}
	return h2
}

// IsValid reports whether every element is valid.
func (h Header) IsValid() bool {
	for _, e := range h {
		if !e.IsValid() {
			return false
		}
	}
	return true
}

// MarshalText renders the header value.
func (h Header) MarshalText() ([]byte, error) {
	return []byte(h.Render()), nil
}

// UnmarshalText parses a header value.
func (h *Header) UnmarshalText(data []byte) error {
	h2, err := ParseHeaderStrict(string(data))
	if err != nil {
		return errtrace.Wrap(err)
	}
	*h = h2
	return nil
}

// MarshalJSON encodes the header as an array of elements.
func (h Header) MarshalJSON() ([]byte, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return errtrace.Wrap2(json.Marshal([]*Element(h)))
}

// UnmarshalJSON decodes an array of elements.
func (h *Header) UnmarshalJSON(data []byte) error {
	var elems []*Element
	if err := json.Unmarshal(data, &elems); err != nil {
		return errtrace.Wrap(err)
	}
	*h = elems
	return nil
}
