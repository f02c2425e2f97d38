package forwarded_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/phax/ph-web-sub004/forwarded"
)

func TestParseHeaderStrict(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want []string
		err  error
	}{
		{"empty", "", []string{}, nil},
		{"blank", "   ", []string{}, nil},
		{"single", "for=192.0.2.43", []string{"for=192.0.2.43"}, nil},
		{
			"rfc list",
			`for=192.0.2.43, for="[2001:db8:cafe::17]", for=unknown`,
			[]string{"for=192.0.2.43", `for="[2001:db8:cafe::17]"`, "for=unknown"},
			nil,
		},
		{"quoted comma", `for="a,b";proto=http,for=c`, []string{`for="a,b";proto=http`, "for=c"}, nil},
		{"blank members", "for=a, ,for=b,", []string{"for=a", "for=b"}, nil},
		{"bad element", "for=a, for=", nil, forwarded.ErrEmptyValue},
		{"unterminated", `for=a, for="b`, nil, forwarded.ErrUnterminatedQuote},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			h, err := forwarded.ParseHeaderStrict(c.in)
			if c.err != nil {
				if !errors.Is(err, c.err) || !errors.Is(err, forwarded.ErrMalformedInput) {
					t.Errorf("forwarded.ParseHeaderStrict(%q) error = %v, want %v", c.in, err, c.err)
				}
				if got := forwarded.ParseHeader(c.in); got != nil {
					t.Errorf("forwarded.ParseHeader(%q) = %q, want nil", c.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("forwarded.ParseHeaderStrict(%q) error = %v, want nil", c.in, err)
			}
			if h == nil {
				t.Fatalf("forwarded.ParseHeaderStrict(%q) = nil, want non-nil", c.in)
			}
			got := make([]string, len(h))
			for i, e := range h {
				got[i] = e.String()
			}
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("forwarded.ParseHeaderStrict(%q) mismatch (-want +got):\n%s", c.in, diff)
			}
		})
	}
}

func TestHeader_Accessors(t *testing.T) {
	t.Parallel()

	h := forwarded.ParseHeader(`for=192.0.2.43;proto=https, by=_gw, for="[2001:db8::1]"`)
	if got, want := h.Name(), "Forwarded"; got != want {
		t.Errorf("Header.Name() = %q, want %q", got, want)
	}
	if got, _ := h.First().Proto(); got != "https" {
		t.Errorf("Header.First().Proto() = %q, want %q", got, "https")
	}
	if got, _ := h.Last().For(); got != "[2001:db8::1]" {
		t.Errorf("Header.Last().For() = %q, want %q", got, "[2001:db8::1]")
	}
	if diff := cmp.Diff([]string{"192.0.2.43", "[2001:db8::1]"}, h.Fors()); diff != "" {
		t.Errorf("Header.Fors() mismatch (-want +got):\n%s", diff)
	}

	var empty forwarded.Header
	if empty.First() != nil || empty.Last() != nil || empty.String() != "" {
		t.Error("empty header must have no elements")
	}
}

func TestHeader_Render(t *testing.T) {
	t.Parallel()

	h := forwarded.Header{
		forwarded.NewElement().SetFor("192.0.2.43").SetProto("http"),
		forwarded.NewElement(),
		nil,
		forwarded.NewElement().SetFor("[2001:db8::1]:80"),
	}
	want := `for=192.0.2.43;proto=http, for="[2001:db8::1]:80"`
	if got := h.String(); got != want {
		t.Errorf("Header.String() = %q, want %q", got, want)
	}
	if got := fmt.Sprintf("%q", h); got != fmt.Sprintf("%q", want) {
		t.Errorf("fmt.Sprintf(%%q) = %s, want %q", got, want)
	}

	h2 := forwarded.ParseHeader(h.String())
	if h2 == nil || len(h2) != 2 {
		t.Fatalf("forwarded.ParseHeader(%q) = %v, want 2 elements", h.String(), h2)
	}
}

func TestHeader_EqualClone(t *testing.T) {
	t.Parallel()

	h := forwarded.ParseHeader("for=a;proto=http, for=b")
	c := h.Clone()
	if !h.Equal(c) || !h.Equal(&c) {
		t.Fatalf("Header.Clone() = %q, want %q", c, h)
	}
	if !h.Equal(forwarded.ParseHeader("proto=http;for=a, for=b")) {
		t.Error("elements with reordered pairs must be equal")
	}
	if h.Equal(forwarded.ParseHeader("for=b, for=a;proto=http")) {
		t.Error("headers with reordered elements must differ")
	}
	if h.Equal("for=a;proto=http, for=b") {
		t.Error("Header.Equal(string) = true, want false")
	}

	c[0].SetFor("x")
	if got, _ := h[0].For(); got != "a" {
		t.Errorf("original after clone mutation = %q, want %q", got, "a")
	}
	if !h.IsValid() {
		t.Error("Header.IsValid() = false, want true")
	}
	if (forwarded.Header{nil}).IsValid() {
		t.Error("Header{nil}.IsValid() = true, want false")
	}
}

func TestHeader_JSON(t *testing.T) {
	t.Parallel()

	h := forwarded.ParseHeader("for=a, for=b;proto=http")
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v, want nil", err)
	}
	want := `[[{"token":"for","value":"a"}],[{"token":"for","value":"b"},{"token":"proto","value":"http"}]]`
	if string(data) != want {
		t.Errorf("json.Marshal() = %s, want %s", data, want)
	}

	var got forwarded.Header
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, want nil", err)
	}
	if !got.Equal(h) {
		t.Errorf("json.Unmarshal() = %q, want %q", got, h)
	}

	var text forwarded.Header
	if err := text.UnmarshalText([]byte("for=a, for=b;proto=http")); err != nil || !text.Equal(h) {
		t.Errorf("Header.UnmarshalText() = (%q, %v), want (%q, nil)", text, err, h)
	}
}

func TestFromRequest(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		hdr     http.Header
		want    []string
		wantNil bool
	}{
		{"none", http.Header{}, []string{}, false},
		{"forwarded", http.Header{"Forwarded": {"for=192.0.2.43;proto=https"}}, []string{"for=192.0.2.43;proto=https"}, false},
		{
			"forwarded lines joined",
			http.Header{"Forwarded": {"for=a", "for=b"}},
			[]string{"for=a", "for=b"},
			false,
		},
		{
			"forwarded wins over legacy",
			http.Header{"Forwarded": {"for=a"}, "X-Forwarded-For": {"192.0.2.1"}},
			[]string{"for=a"},
			false,
		},
		{"malformed forwarded", http.Header{"Forwarded": {"for="}}, nil, true},
		{
			"legacy",
			http.Header{
				"X-Forwarded-For":   {"192.0.2.43, 2001:db8:cafe::17"},
				"X-Forwarded-Host":  {"example.com"},
				"X-Forwarded-Proto": {"HTTPS"},
			},
			[]string{"for=192.0.2.43;host=example.com;proto=https", `for="[2001:db8:cafe::17]"`},
			false,
		},
		{"legacy proto only", http.Header{"X-Forwarded-Proto": {"http"}}, []string{"proto=http"}, false},
		{"legacy blanks", http.Header{"X-Forwarded-For": {" , 192.0.2.1 ,"}}, []string{"for=192.0.2.1"}, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			h := forwarded.FromRequest(c.hdr)
			if c.wantNil {
				if h != nil {
					t.Errorf("forwarded.FromRequest() = %q, want nil", h)
				}
				return
			}
			if h == nil {
				t.Fatal("forwarded.FromRequest() = nil, want non-nil")
			}
			got := make([]string, len(h))
			for i, e := range h {
				got[i] = e.String()
			}
			if diff := cmp.Diff(c.want, got); diff != "" {
				t.Errorf("forwarded.FromRequest() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

type getterOnly map[string]string

func (g getterOnly) Get(name string) string { return g[name] }

func TestFromRequest_Getter(t *testing.T) {
	t.Parallel()

	h := forwarded.FromRequest(getterOnly{"Forwarded": "for=a"})
	if got := h.String(); got != "for=a" {
		t.Errorf("forwarded.FromRequest() = %q, want %q", got, "for=a")
	}

	mh := textproto.MIMEHeader{}
	mh.Add("X-Forwarded-For", "192.0.2.7")
	if got := forwarded.FromRequest(mh).String(); got != "for=192.0.2.7" {
		t.Errorf("forwarded.FromRequest(MIMEHeader) = %q, want %q", got, "for=192.0.2.7")
	}

	if h := forwarded.FromRequest(nil); h == nil || len(h) != 0 {
		t.Errorf("forwarded.FromRequest(nil) = %v, want empty", h)
	}
}
