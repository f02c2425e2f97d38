package forwarded

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"braces.dev/errtrace"
	"github.com/cespare/xxhash/v2"
	"github.com/miekg/dns"

	"github.com/phax/ph-web-sub004/internal/errorutil"
	"github.com/phax/ph-web-sub004/internal/grammar"
	"github.com/phax/ph-web-sub004/internal/util"
)

// Registered parameter names (RFC 7239 Section 5).
const (
	ParamBy    = "by"
	ParamFor   = "for"
	ParamHost  = "host"
	ParamProto = "proto"
)

// canonicToken lower-cases the registered parameter names and keeps
// extension names as they were written.
func canonicToken(token string) string {
	switch lt := util.LCase(token); lt {
	case ParamBy, ParamFor, ParamHost, ParamProto:
		return lt
	default:
		return token
	}
}

// Pair is a single forwarded-pair.
type Pair struct {
	Token string `json:"token"`
	Value string `json:"value"`
}

type param struct {
	name   string
	values []string
}

// Element represents one forwarded-element, the parameters describing a
// single proxy hop.
//
// Parameters are kept in the order their tokens were first added, and every
// token may carry several values. Tokens are matched case-insensitively.
// The single-valued accessors (For, SetFor, ...) work on the first value.
//
// The zero value is an empty element ready to use.
// Element is not safe for concurrent mutation.
type Element struct {
	params []param
}

// NewElement returns an empty element.
func NewElement() *Element { return &Element{} }

func (e *Element) index(token string) int {
	if e == nil {
		return -1
	}
	for i := range e.params {
		if util.EqFold(e.params[i].name, token) {
			return i
		}
	}
	return -1
}

// Len returns the number of distinct tokens.
func (e *Element) Len() int {
	if e == nil {
		return 0
	}
	return len(e.params)
}

// IsEmpty reports whether the element has no pairs.
func (e *Element) IsEmpty() bool { return e.Len() == 0 }

// Has reports whether the token is present.
func (e *Element) Has(token string) bool { return e.index(token) >= 0 }

// First returns the first value of the token.
func (e *Element) First(token string) (string, bool) {
	i := e.index(token)
	if i < 0 {
		return "", false
	}
	return e.params[i].values[0], true
}

// Values returns a copy of all values of the token in insertion order.
func (e *Element) Values(token string) []string {
	i := e.index(token)
	if i < 0 {
		return nil
	}
	return append([]string(nil), e.params[i].values...)
}

// Tokens returns the distinct tokens in insertion order.
func (e *Element) Tokens() []string {
	if e.IsEmpty() {
		return nil
	}
	toks := make([]string, len(e.params))
	for i := range e.params {
		toks[i] = e.params[i].name
	}
	return toks
}

// Pairs returns every pair in rendering order.
func (e *Element) Pairs() []Pair {
	if e.IsEmpty() {
		return nil
	}
	var pairs []Pair
	for _, p := range e.params {
		for _, v := range p.values {
			pairs = append(pairs, Pair{p.name, v})
		}
	}
	return pairs
}

// FirstValues maps every lower-cased token to its first value.
func (e *Element) FirstValues() map[string]string {
	m := make(map[string]string, e.Len())
	if e == nil {
		return m
	}
	for _, p := range e.params {
		m[util.LCase(p.name)] = p.values[0]
	}
	return m
}

func checkToken(token string) error {
	if token == "" {
		return errtrace.Wrap(errorutil.NewInvalidArgumentError("empty token"))
	}
	if !grammar.IsToken(token) {
		return errtrace.Wrap(errorutil.NewInvalidArgumentError("malformed token %q", token))
	}
	return nil
}

// Add appends a value to the token.
// It fails with [errorutil.ErrInvalidArgument] if the token is empty or not an RFC 7230 token.
func (e *Element) Add(token, value string) error {
	if err := checkToken(token); err != nil {
		return errtrace.Wrap(err)
	}
	e.add(token, value)
	return nil
}

func (e *Element) add(token, value string) {
	if i := e.index(token); i >= 0 {
		e.params[i].values = append(e.params[i].values, value)
		return
	}
	e.params = append(e.params, param{canonicToken(token), []string{value}})
}

// Set replaces all values of the token with the single value.
// A token that already exists keeps its position.
// It fails with [errorutil.ErrInvalidArgument] if the token is empty or not an RFC 7230 token.
func (e *Element) Set(token, value string) error {
	if err := checkToken(token); err != nil {
		return errtrace.Wrap(err)
	}
	e.set(token, value)
	return nil
}

func (e *Element) set(token, value string) {
	if i := e.index(token); i >= 0 {
		e.params[i].values = append(e.params[i].values[:0:0], value)
		return
	}
	e.params = append(e.params, param{canonicToken(token), []string{value}})
}

// Remove deletes the token with all its values and reports whether it was present.
func (e *Element) Remove(token string) bool {
	i := e.index(token)
	if i < 0 {
		return false
	}
	e.params = append(e.params[:i], e.params[i+1:]...)
	return true
}

// RemoveAll deletes every pair.
func (e *Element) RemoveAll() {
	if e != nil {
		e.params = nil
	}
}

// For returns the first "for" value.
func (e *Element) For() (string, bool) { return e.First(ParamFor) }

// By returns the first "by" value.
func (e *Element) By() (string, bool) { return e.First(ParamBy) }

// Host returns the first "host" value.
func (e *Element) Host() (string, bool) { return e.First(ParamHost) }

// Proto returns the first "proto" value.
func (e *Element) Proto() (string, bool) { return e.First(ParamProto) }

// SetFor replaces the "for" value.
func (e *Element) SetFor(v string) *Element { e.set(ParamFor, v); return e }

// SetBy replaces the "by" value.
func (e *Element) SetBy(v string) *Element { e.set(ParamBy, v); return e }

// SetHost replaces the "host" value.
func (e *Element) SetHost(v string) *Element { e.set(ParamHost, v); return e }

// SetProto replaces the "proto" value.
func (e *Element) SetProto(v string) *Element { e.set(ParamProto, v); return e }

// ForNode interprets the first "for" value as a node identifier.
func (e *Element) ForNode() (Node, bool) { return e.node(ParamFor) }

// ByNode interprets the first "by" value as a node identifier.
func (e *Element) ByNode() (Node, bool) { return e.node(ParamBy) }

func (e *Element) node(token string) (Node, bool) {
	v, ok := e.First(token)
	if !ok {
		return Node{}, false
	}
	n, err := ParseNode(v)
	if err != nil {
		return Node{}, false
	}
	return n, true
}

// SetForNode replaces the "for" value with the node identifier.
func (e *Element) SetForNode(n Node) *Element { return e.SetFor(n.String()) }

// SetByNode replaces the "by" value with the node identifier.
func (e *Element) SetByNode(n Node) *Element { return e.SetBy(n.String()) }

// HostPort splits the first "host" value into host name and port.
// The host must be an IP literal (IPv6 in brackets) or a domain name.
// The port is zero when absent.
func (e *Element) HostPort() (host string, port uint16, ok bool) {
	v, ok := e.Host()
	if !ok || v == "" {
		return "", 0, false
	}

	host, rawPort := v, ""
	if h, p, err := net.SplitHostPort(v); err == nil {
		host, rawPort = h, p
	} else if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		host = v[1 : len(v)-1]
	}

	if rawPort != "" {
		p, err := strconv.ParseUint(rawPort, 10, 16)
		if err != nil || p == 0 {
			return "", 0, false
		}
		port = uint16(p)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if addr.Is6() && !strings.HasPrefix(v, "[") {
			return "", 0, false
		}
		return host, port, true
	}
	if _, ok := dns.IsDomainName(host); !ok || host == "" {
		return "", 0, false
	}
	return host, port, true
}

// Equal reports whether val is an element with the same set of pairs.
// Insertion order and duplicated pairs do not matter, tokens compare
// case-insensitively and values compare exactly.
func (e *Element) Equal(val any) bool {
	var other *Element
	switch v := val.(type) {
	case Element:
		other = &v
	case *Element:
		other = v
	default:
		return false
	}

	if e == other {
		return true
	} else if e == nil || other == nil {
		return false
	}

	set1, set2 := e.pairSet(), other.pairSet()
	if len(set1) != len(set2) {
		return false
	}
	for k := range set1 {
		if _, ok := set2[k]; !ok {
			return false
		}
	}
	return true
}

func pairKey(token, value string) string { return util.LCase(token) + "\x00" + value }

func (e *Element) pairSet() map[string]struct{} {
	set := make(map[string]struct{}, e.Len())
	for _, p := range e.params {
		for _, v := range p.values {
			set[pairKey(p.name, v)] = struct{}{}
		}
	}
	return set
}

// Hash returns a hash of the pair set. It does not depend on insertion order,
// so equal elements always hash equally.
func (e *Element) Hash() uint64 {
	if e == nil {
		return 0
	}
	var h uint64
	for k := range e.pairSet() {
		h += xxhash.Sum64String(k)
	}
	return h
}

// Clone returns a deep copy of the element.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	e2 := &Element{params: make([]param, len(e.params))}
	for i, p := range e.params {
		e2.params[i] = param{p.name, append([]string(nil), p.values...)}
	}
	return e2
}

// IsValid reports whether the element is non-nil and every token is an RFC 7230 token.
func (e *Element) IsValid() bool {
	if e == nil {
		return false
	}
	for _, p := range e.params {
		if !grammar.IsToken(p.name) || len(p.values) == 0 {
			return false
		}
	}
	return true
}

// Format implements fmt.Formatter.
func (e *Element) Format(f fmt.State, verb rune) {
	switch verb {
	case 's', 'v':
		if verb == 'v' && (f.Flag('+') || f.Flag('#')) {
			fmt.Fprintf(f, "forwarded.Element%v", e.Pairs())
			return
		}
		e.RenderTo(f) //nolint:errcheck
		return
	case 'q':
		fmt.Fprint(f, strconv.Quote(e.String()))
		return
	default:
		fmt.Fprintf(f, "%%!%c(forwarded.Element=%s)", verb, e.String())
		return
	}
}

// MarshalText renders the element in wire format.
func (e *Element) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText parses the element from wire format.
func (e *Element) UnmarshalText(data []byte) error {
	e2, err := ParseStrict(string(data))
	if err != nil {
		e.RemoveAll()
		return errtrace.Wrap(err)
	}
	*e = *e2
	return nil
}

type pairJSON struct {
	Token string  `json:"token"`
	Value *string `json:"value"`
}

// MarshalJSON encodes the element as an array of {"token", "value"} objects.
func (e *Element) MarshalJSON() ([]byte, error) {
	pairs := e.Pairs()
	if pairs == nil {
		pairs = []Pair{}
	}
	return errtrace.Wrap2(json.Marshal(pairs))
}

// UnmarshalJSON decodes an array of {"token", "value"} objects.
// A missing or null value fails with [errorutil.ErrNullValue],
// a malformed token with [errorutil.ErrInvalidArgument].
func (e *Element) UnmarshalJSON(data []byte) error {
	var pairs []pairJSON
	if err := json.Unmarshal(data, &pairs); err != nil {
		return errtrace.Wrap(err)
	}

	var e2 Element
	var errs []error
	for i, p := range pairs {
		if p.Value == nil {
			errs = append(errs, errorutil.NewNullValueError("pair %d (%q)", i, p.Token))
			continue
		}
		if err := e2.Add(p.Token, *p.Value); err != nil {
			errs = append(errs, fmt.Errorf("pair %d: %w", i, err))
		}
	}
	if err := errorutil.JoinPrefix("decode forwarded element:", errs...); err != nil {
		return errtrace.Wrap(err)
	}
	*e = e2
	return nil
}

// RenderTo writes the element in wire format to w.
func (e *Element) RenderTo(w io.Writer) (num int, err error) {
	return errtrace.Wrap2(renderElement(w, e))
}

// Render returns the element in wire format.
func (e *Element) Render() string {
	if e.IsEmpty() {
		return ""
	}

	sb := util.GetStringBuilder()
	defer util.FreeStringBuilder(sb)
	e.RenderTo(sb) //nolint:errcheck
	return sb.String()
}

// String returns the element in wire format.
func (e *Element) String() string { return e.Render() }
