// Package httpfwd provides net/http middleware that reads the Forwarded
// header (RFC 7239) and its X-Forwarded-* predecessors from incoming
// requests.
//
// Forwarding headers are client controlled, so the middleware is
// default-safe: without trusted proxies it ignores them and describes the
// direct peer only. With trusted proxies configured, headers are used when
// the peer is one of them, and the client is found by walking the chain
// right to left past the trusted hops.
//
//	h := httpfwd.Handler(app,
//		httpfwd.WithTrustedProxies(netip.MustParsePrefix("10.0.0.0/8")),
//	)
//
// Malformed headers never fail a request, they fall back to the direct
// connection.
package httpfwd

//go:generate go tool errtrace -w .

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"braces.dev/errtrace"

	"github.com/phax/ph-web-sub004/forwarded"
	"github.com/phax/ph-web-sub004/internal/errorutil"
	"github.com/phax/ph-web-sub004/internal/log"
	"github.com/phax/ph-web-sub004/internal/util"
)

// Info describes how a request reached the server.
type Info struct {
	// Peer is the address of the direct connection peer, invalid if
	// RemoteAddr could not be parsed.
	Peer netip.AddrPort
	// Trusted reports whether Chain came from a trusted peer and was accepted.
	Trusted bool
	// Chain holds the forwarding elements, nil unless Trusted.
	Chain forwarded.Header
	// Client is the originating client: the first untrusted hop of the
	// chain, or the peer itself.
	Client forwarded.Node
	// Host and Proto are the values the client used, taken from the client's
	// hop when present and from the request otherwise.
	Host  string
	Proto string
}

type infoKey struct{}

// NewContext returns a derived context carrying info.
func NewContext(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, infoKey{}, info)
}

// FromContext returns the info stored by [Handler].
func FromContext(ctx context.Context) (*Info, bool) {
	if ctx == nil {
		return nil, false
	}
	info, ok := ctx.Value(infoKey{}).(*Info)
	return info, ok && info != nil
}

// ParseTrustedProxies parses CIDR prefixes or single addresses.
// Blank entries are ignored. Invalid entries are reported together with
// the prefixes that could be parsed.
func ParseTrustedProxies(cidrs []string) ([]netip.Prefix, error) {
	var (
		prefs []netip.Prefix
		errs  []error
	)
	for _, raw := range cidrs {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			prefs = append(prefs, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			errs = append(errs, errorutil.NewInvalidArgumentError("trusted proxy %q", raw))
			continue
		}
		addr = addr.Unmap()
		prefs = append(prefs, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefs, errtrace.Wrap(errorutil.JoinPrefix("parse trusted proxies:", errs...))
}

// Option configures [Handler].
type Option func(c *config)

type config struct {
	trusted []netip.Prefix
	parser  *forwarded.Parser
	metrics *Metrics
	log     *slog.Logger
}

// WithTrustedProxies sets the peers whose forwarding headers are believed.
func WithTrustedProxies(prefs ...netip.Prefix) Option {
	return func(c *config) { c.trusted = append(c.trusted, prefs...) }
}

// WithParser sets the parser for the Forwarded header.
func WithParser(p *forwarded.Parser) Option {
	return func(c *config) { c.parser = p }
}

// WithMetrics counts every request by outcome.
func WithMetrics(m *Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithLogger sets the logger for ignored and rejected headers.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.log = l }
}

func (c *config) isTrusted(addr netip.Addr) bool {
	if !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	for _, p := range c.trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Handler wraps next and stores an [Info] in every request's context.
func Handler(next http.Handler, opts ...Option) http.Handler {
	if next == nil {
		panic("httpfwd: nil next handler")
	}

	c := &config{}
	for _, o := range opts {
		if o != nil {
			o(c)
		}
	}
	if c.parser == nil {
		c.parser = forwarded.NewParser(forwarded.WithLogger(c.log))
	}
	c.log = log.OrNoop(c.log)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, res := c.inspect(r)
		c.metrics.observe(res)
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), info)))
	})
}

// Request outcomes counted by [Metrics].
const (
	ResultAbsent    = "absent"
	ResultEmpty     = "empty"
	ResultParsed    = "parsed"
	ResultRejected  = "rejected"
	ResultUntrusted = "untrusted"
)

func hasForwardingHeaders(h http.Header) bool {
	for _, name := range []string{
		forwarded.HeaderName,
		forwarded.HeaderXForwardedFor,
		forwarded.HeaderXForwardedHost,
		forwarded.HeaderXForwardedProto,
	} {
		if len(h.Values(name)) > 0 {
			return true
		}
	}
	return false
}

func parsePeer(remoteAddr string) netip.AddrPort {
	if ap, err := netip.ParseAddrPort(remoteAddr); err == nil {
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	if addr, err := netip.ParseAddr(remoteAddr); err == nil {
		return netip.AddrPortFrom(addr.Unmap(), 0)
	}
	return netip.AddrPort{}
}

func requestProto(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func (c *config) inspect(r *http.Request) (*Info, string) {
	info := &Info{
		Peer:  parsePeer(r.RemoteAddr),
		Host:  r.Host,
		Proto: requestProto(r),
	}
	if info.Peer.IsValid() {
		info.Client = forwarded.NodeFromAddrPort(info.Peer)
	} else {
		info.Client = forwarded.Node{Unknown: true}
	}

	if !hasForwardingHeaders(r.Header) {
		return info, ResultAbsent
	}
	if !c.isTrusted(info.Peer.Addr()) {
		c.log.Debug("forwarding headers from untrusted peer ignored",
			slog.String("peer", r.RemoteAddr),
			slog.Any("headers", r.Header),
		)
		return info, ResultUntrusted
	}

	chain := c.parser.FromRequest(r.Header)
	if chain == nil {
		c.log.Debug("malformed forwarding headers ignored",
			slog.String("peer", r.RemoteAddr),
			slog.Any("headers", r.Header),
		)
		return info, ResultRejected
	}
	if len(chain) == 0 {
		return info, ResultEmpty
	}

	info.Trusted = true
	info.Chain = chain
	hop := c.clientHop(chain)
	if n, ok := hop.ForNode(); ok {
		info.Client = n
	} else if _, ok := hop.For(); ok {
		info.Client = forwarded.Node{Unknown: true}
	}
	if v, ok := hop.Host(); ok && v != "" {
		info.Host = v
	}
	if v, ok := hop.Proto(); ok && v != "" {
		info.Proto = util.LCase(v)
	}
	return info, ResultParsed
}

// clientHop walks the chain from the receiver towards the client and returns
// the first element whose "for" is not a trusted proxy. Elements that do not
// name an IP address stop the walk.
func (c *config) clientHop(chain forwarded.Header) *forwarded.Element {
	for i := len(chain) - 1; i >= 0; i-- {
		n, ok := chain[i].ForNode()
		if !ok || !n.Addr.IsValid() || !c.isTrusted(n.Addr) {
			return chain[i]
		}
	}
	return chain[0]
}

// Outbound returns the Forwarded value a proxy sends upstream for r: the
// accepted chain followed by an element for this hop. by identifies the
// proxy itself and is omitted when zero.
func Outbound(r *http.Request, by forwarded.Node) forwarded.Header {
	info, ok := FromContext(r.Context())
	if !ok {
		info = &Info{Peer: parsePeer(r.RemoteAddr)}
	}

	var chain forwarded.Header
	if info.Trusted {
		chain = info.Chain.Clone()
	}

	e := forwarded.NewElement()
	if info.Peer.IsValid() {
		e.SetForNode(forwarded.NodeFromAddrPort(info.Peer))
	} else {
		e.SetFor(forwarded.Unknown)
	}
	if !by.IsZero() {
		e.SetByNode(by)
	}
	if r.Host != "" {
		e.SetHost(r.Host)
	}
	e.SetProto(requestProto(r))
	return append(chain, e)
}

// SetOutbound writes h as the Forwarded field of dst and removes the
// X-Forwarded-* fields it supersedes.
func SetOutbound(dst http.Header, h forwarded.Header) {
	dst.Del(forwarded.HeaderXForwardedFor)
	dst.Del(forwarded.HeaderXForwardedHost)
	dst.Del(forwarded.HeaderXForwardedProto)
	if len(h) == 0 {
		dst.Del(forwarded.HeaderName)
		return
	}
	dst.Set(forwarded.HeaderName, h.String())
}
