package forwarded_test

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/phax/ph-web-sub004/forwarded"
)

func TestParseNode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want forwarded.Node
		err  error
	}{
		{"192.0.2.43", forwarded.Node{Addr: netip.MustParseAddr("192.0.2.43")}, nil},
		{"192.0.2.43:47011", forwarded.Node{Addr: netip.MustParseAddr("192.0.2.43"), Port: 47011}, nil},
		{"[2001:db8:cafe::17]", forwarded.Node{Addr: netip.MustParseAddr("2001:db8:cafe::17")}, nil},
		{"[2001:db8:cafe::17]:4711", forwarded.Node{Addr: netip.MustParseAddr("2001:db8:cafe::17"), Port: 4711}, nil},
		{"unknown", forwarded.Node{Unknown: true}, nil},
		{"UNKNOWN:_port", forwarded.Node{Unknown: true, ObfPort: "_port"}, nil},
		{"_hidden", forwarded.Node{ObfNode: "_hidden"}, nil},
		{"_SEVKISEK:_a.b-c", forwarded.Node{ObfNode: "_SEVKISEK", ObfPort: "_a.b-c"}, nil},

		{"", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"2001:db8::1", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"[192.0.2.1]", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"[2001:db8::1", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"[2001:db8::1]x", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"[fe80::1%eth0]", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"example.com", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"_", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"_a b", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"192.0.2.1:", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"192.0.2.1:0", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"192.0.2.1:65536", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"192.0.2.1:123456", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"192.0.2.1:+80", forwarded.Node{}, forwarded.ErrInvalidNode},
		{"192.0.2.1:_", forwarded.Node{}, forwarded.ErrInvalidNode},
	}

	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			t.Parallel()

			got, err := forwarded.ParseNode(c.in)
			if c.err != nil {
				if !errors.Is(err, c.err) {
					t.Errorf("forwarded.ParseNode(%q) error = %v, want %v", c.in, err, c.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("forwarded.ParseNode(%q) error = %v, want nil", c.in, err)
			}
			if diff := cmp.Diff(c.want, got, cmp.Comparer(func(a, b netip.Addr) bool { return a == b })); diff != "" {
				t.Errorf("forwarded.ParseNode(%q) mismatch (-want +got):\n%s", c.in, diff)
			}
		})
	}
}

func TestNode_String(t *testing.T) {
	t.Parallel()

	cases := []struct {
		node forwarded.Node
		want string
	}{
		{forwarded.Node{}, "unknown"},
		{forwarded.Node{Unknown: true, Port: 80}, "unknown:80"},
		{forwarded.Node{Addr: netip.MustParseAddr("192.0.2.1")}, "192.0.2.1"},
		{forwarded.Node{Addr: netip.MustParseAddr("2001:db8::1"), Port: 443}, "[2001:db8::1]:443"},
		{forwarded.Node{ObfNode: "_x", ObfPort: "_y"}, "_x:_y"},
		{forwarded.NodeFromAddrPort(netip.MustParseAddrPort("[::ffff:192.0.2.1]:8080")), "192.0.2.1:8080"},
	}
	for _, c := range cases {
		if got := c.node.String(); got != c.want {
			t.Errorf("Node.String() = %q, want %q", got, c.want)
		}
	}
}

func TestNode_AddrPort(t *testing.T) {
	t.Parallel()

	n, err := forwarded.ParseNode("[2001:db8::1]:4711")
	if err != nil {
		t.Fatal(err)
	}
	ap, ok := n.AddrPort()
	if !ok || ap != netip.MustParseAddrPort("[2001:db8::1]:4711") {
		t.Errorf("Node.AddrPort() = (%v, %v), want ([2001:db8::1]:4711, true)", ap, ok)
	}
	if !n.HasPort() || n.IsObfuscated() || n.IsZero() {
		t.Errorf("Node(%s) flags = (port %v, obfuscated %v, zero %v)", n, n.HasPort(), n.IsObfuscated(), n.IsZero())
	}

	if _, ok := (forwarded.Node{ObfNode: "_x"}).AddrPort(); ok {
		t.Error("obfuscated Node.AddrPort() ok = true, want false")
	}
	if !(forwarded.Node{}).IsZero() {
		t.Error("Node{}.IsZero() = false, want true")
	}
}

func TestElement_ForNode(t *testing.T) {
	t.Parallel()

	n := forwarded.NodeFromAddrPort(netip.MustParseAddrPort("[2001:db8::17]:80"))
	e := forwarded.NewElement().SetForNode(n).SetByNode(forwarded.Node{ObfNode: "_gw"})

	if got, want := e.String(), `for="[2001:db8::17]:80";by=_gw`; got != want {
		t.Errorf("Element.String() = %q, want %q", got, want)
	}
	got, ok := forwarded.Parse(e.String()).ForNode()
	if !ok || got != n {
		t.Errorf("Element.ForNode() = (%v, %v), want (%v, true)", got, ok, n)
	}
	if by, ok := e.ByNode(); !ok || by.ObfNode != "_gw" {
		t.Errorf("Element.ByNode() = (%v, %v), want (_gw, true)", by, ok)
	}
	if _, ok := forwarded.NewElement().SetFor("bogus").ForNode(); ok {
		t.Error("Element{for=bogus}.ForNode() ok = true, want false")
	}
}
