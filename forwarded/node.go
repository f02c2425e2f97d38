package forwarded

import (
	"net/netip"
	"strconv"
	"strings"

	"braces.dev/errtrace"

	"github.com/phax/ph-web-sub004/internal/errorutil"
	"github.com/phax/ph-web-sub004/internal/grammar"
	"github.com/phax/ph-web-sub004/internal/util"
)

// ErrInvalidNode is returned for values that are not RFC 7239 node identifiers.
const ErrInvalidNode errorutil.Error = "invalid node identifier"

// Unknown is the node name of an unidentified hop.
const Unknown = "unknown"

// Node is the value of a "for" or "by" parameter (RFC 7239 Section 6):
//
//	node     = nodename [ ":" node-port ]
//	nodename = IPv4address / "[" IPv6address "]" / "unknown" / obfnode
//	node-port = port / obfport
//
// Exactly one of Addr, ObfNode and Unknown identifies the node.
// Port 0 with an empty ObfPort means no port.
type Node struct {
	Addr    netip.Addr
	ObfNode string
	Unknown bool
	Port    uint16
	ObfPort string
}

// NodeFromAddrPort returns a node for the address and port.
// IPv4-mapped IPv6 addresses are unmapped.
func NodeFromAddrPort(ap netip.AddrPort) Node {
	return Node{Addr: ap.Addr().Unmap(), Port: ap.Port()}
}

// ParseNode parses a node identifier.
func ParseNode(s string) (Node, error) {
	var (
		n             Node
		name, rawPort string
		hasPort       bool
	)

	if strings.HasPrefix(s, "[") {
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return Node{}, errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidNode, "unclosed IPv6 bracket in %q", s))
		}
		name = s[1:end]
		switch rest := s[end+1:]; {
		case rest == "":
		case rest[0] == ':':
			rawPort, hasPort = rest[1:], true
		default:
			return Node{}, errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidNode, "garbage after IPv6 bracket in %q", s))
		}
		addr, err := netip.ParseAddr(name)
		if err != nil || !addr.Is6() || addr.Zone() != "" {
			return Node{}, errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidNode, "invalid IPv6 address %q", name))
		}
		n.Addr = addr
	} else {
		name, rawPort, hasPort = strings.Cut(s, ":")
		switch {
		case name == "":
			return Node{}, errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidNode, "empty node name"))
		case util.EqFold(name, Unknown):
			n.Unknown = true
		case name[0] == '_':
			if !isObfuscated(name) {
				return Node{}, errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidNode, "invalid obfuscated node %q", name))
			}
			n.ObfNode = name
		default:
			addr, err := netip.ParseAddr(name)
			if err != nil || !addr.Is4() {
				return Node{}, errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidNode, "invalid IPv4 address %q", name))
			}
			n.Addr = addr
		}
	}

	if !hasPort {
		return n, nil
	}
	switch {
	case rawPort == "":
		return Node{}, errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidNode, "empty port"))
	case rawPort[0] == '_':
		if !isObfuscated(rawPort) {
			return Node{}, errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidNode, "invalid obfuscated port %q", rawPort))
		}
		n.ObfPort = rawPort
	default:
		if len(rawPort) > 5 || !isDigits(rawPort) {
			return Node{}, errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidNode, "invalid port %q", rawPort))
		}
		p, err := strconv.ParseUint(rawPort, 10, 16)
		if err != nil || p == 0 {
			return Node{}, errtrace.Wrap(errorutil.NewWrapperError(ErrInvalidNode, "port %q out of range", rawPort))
		}
		n.Port = uint16(p)
	}
	return n, nil
}

// obfnode = "_" 1*( ALPHA / DIGIT / "." / "_" / "-")
func isObfuscated(s string) bool {
	if len(s) < 2 || s[0] != '_' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := int(s[i])
		if !grammar.IsAlpha(c) && !grammar.IsDigit(c) && c != '.' && c != '_' && c != '-' {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if !grammar.IsDigit(int(s[i])) {
			return false
		}
	}
	return s != ""
}

// IsZero reports whether the node identifies nothing.
func (n Node) IsZero() bool { return !n.Addr.IsValid() && n.ObfNode == "" && !n.Unknown }

// IsObfuscated reports whether the node name is an obfuscated identifier.
func (n Node) IsObfuscated() bool { return n.ObfNode != "" }

// HasPort reports whether the node carries a port, real or obfuscated.
func (n Node) HasPort() bool { return n.Port != 0 || n.ObfPort != "" }

// AddrPort returns the IP address and port of the node.
// It fails for unknown and obfuscated nodes.
func (n Node) AddrPort() (netip.AddrPort, bool) {
	if !n.Addr.IsValid() {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(n.Addr, n.Port), true
}

// String renders the node. IPv6 addresses are enclosed in brackets.
// The zero node renders as "unknown".
func (n Node) String() string {
	var sb strings.Builder
	switch {
	case n.Addr.Is6():
		sb.WriteByte('[')
		sb.WriteString(n.Addr.String())
		sb.WriteByte(']')
	case n.Addr.IsValid():
		sb.WriteString(n.Addr.String())
	case n.ObfNode != "":
		sb.WriteString(n.ObfNode)
	default:
		sb.WriteString(Unknown)
	}
	switch {
	case n.ObfPort != "":
		sb.WriteByte(':')
		sb.WriteString(n.ObfPort)
	case n.Port != 0:
		sb.WriteByte(':')
		sb.WriteString(strconv.FormatUint(uint64(n.Port), 10))
	}
	return sb.String()
}
