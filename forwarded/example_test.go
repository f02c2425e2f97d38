package forwarded_test

import (
	"fmt"
	"net/http"

	"github.com/phax/ph-web-sub004/forwarded"
)

func ExampleParse() {
	e := forwarded.Parse(`For="[2001:db8:cafe::17]:4711";proto=https;by=_gw`)
	n, _ := e.ForNode()
	proto, _ := e.Proto()
	fmt.Println(n.Addr, n.Port, proto)
	fmt.Println(e)

	fmt.Println(forwarded.Parse("for=192.0.2.1;;proto=http") == nil)
	// Output:
	// 2001:db8:cafe::17 4711 https
	// for="[2001:db8:cafe::17]:4711";proto=https;by=_gw
	// true
}

func ExampleElement_SetFor() {
	e := forwarded.NewElement().
		SetFor("192.168.1.1:8080").
		SetHost("example.com").
		SetProto("https")
	fmt.Println(e)
	// Output:
	// for="192.168.1.1:8080";host=example.com;proto=https
}

func ExampleFromRequest() {
	hdr := http.Header{}
	hdr.Set("X-Forwarded-For", "192.0.2.43, 2001:db8:cafe::17")
	hdr.Set("X-Forwarded-Proto", "https")

	fmt.Println(forwarded.FromRequest(hdr))
	// Output:
	// for=192.0.2.43;proto=https, for="[2001:db8:cafe::17]"
}
