package forwarded

import (
	"io"

	"braces.dev/errtrace"

	"github.com/phax/ph-web-sub004/internal/grammar"
	"github.com/phax/ph-web-sub004/internal/ioutil"
)

// renderElement writes pairs as token=value joined by ";" without spaces.
// Values that are not tokens are written as quoted-strings.
func renderElement(w io.Writer, e *Element) (num int, err error) {
	if e.IsEmpty() {
		return 0, nil
	}

	lw := ioutil.GetListWriter(w, ";")
	defer ioutil.FreeListWriter(lw)

	for _, p := range e.params {
		for _, v := range p.values {
			lw.Next().WriteString(p.name)  //nolint:errcheck
			lw.WriteByte('=')              //nolint:errcheck
			lw.WriteString(renderValue(v)) //nolint:errcheck
		}
	}
	return errtrace.Wrap2(lw.Result())
}

func renderValue(v string) string { return grammar.QuoteIfNeeded(v) }

// renderHeader writes non-empty elements joined by ", ".
func renderHeader(w io.Writer, h Header) (num int, err error) {
	lw := ioutil.GetListWriter(w, ", ")
	defer ioutil.FreeListWriter(lw)

	for _, e := range h {
		if !e.IsEmpty() {
			lw.Next().Call(e.RenderTo)
		}
	}
	return errtrace.Wrap2(lw.Result())
}
