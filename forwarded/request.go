package forwarded

import (
	"net/netip"
	"strings"

	"github.com/phax/ph-web-sub004/internal/util"
)

// Legacy de-facto header names (RFC 7239 Section 7.4).
const (
	HeaderXForwardedFor   = "X-Forwarded-For"
	HeaderXForwardedHost  = "X-Forwarded-Host"
	HeaderXForwardedProto = "X-Forwarded-Proto"
)

// HeaderGetter returns the first value of a header field. [net/http.Header]
// and [net/textproto.MIMEHeader] implement it.
type HeaderGetter interface {
	Get(name string) string
}

type headerValuer interface {
	Values(name string) []string
}

// FromRequest extracts forwarding information using the default parser.
func FromRequest(h HeaderGetter) Header { return defParser.FromRequest(h) }

// FromRequest extracts forwarding information from request headers.
//
// If a Forwarded field is present, it is parsed and nil is returned when it
// is malformed. Multiple field lines are combined as a comma-separated list
// when h also implements Values.
//
// Otherwise the X-Forwarded-For list is converted to one element per
// address, with X-Forwarded-Host and X-Forwarded-Proto attached to the
// first element. Bare IPv6 addresses get brackets.
// Without any of these fields an empty header is returned.
func (p *Parser) FromRequest(h HeaderGetter) Header {
	if h == nil {
		return Header{}
	}

	if raw := fieldValue(h, HeaderName); raw != "" {
		return p.ParseHeader(raw)
	}

	var hdr Header
	for _, v := range strings.Split(fieldValue(h, HeaderXForwardedFor), ",") {
		v = util.TrimOWS(v)
		if v == "" {
			continue
		}
		if addr, err := netip.ParseAddr(v); err == nil && addr.Is6() {
			v = "[" + v + "]"
		}
		hdr = append(hdr, NewElement().SetFor(v))
	}

	host := util.TrimOWS(h.Get(HeaderXForwardedHost))
	proto := util.LCase(util.TrimOWS(h.Get(HeaderXForwardedProto)))
	if host == "" && proto == "" {
		if hdr == nil {
			return Header{}
		}
		return hdr
	}
	if len(hdr) == 0 {
		hdr = Header{NewElement()}
	}
	if host != "" {
		hdr[0].SetHost(host)
	}
	if proto != "" {
		hdr[0].SetProto(proto)
	}
	return hdr
}

func fieldValue(h HeaderGetter, name string) string {
	if vh, ok := h.(headerValuer); ok {
		return strings.Join(vh.Values(name), ", ")
	}
	return h.Get(name)
}
