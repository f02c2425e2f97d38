// Package ioutil provides writer helpers for rendering header values.
package ioutil

//go:generate go tool errtrace -w .

import (
	"io"
	"sync"

	"braces.dev/errtrace"
)

// ListWriter writes separated list items to an underlying writer and counts
// the bytes written. The first write error sticks: later calls write nothing
// and [ListWriter.Result] reports that error.
type ListWriter struct {
	w     io.Writer
	sep   string
	items int
	num   int
	err   error
}

// Next starts a new item, writing the separator before all but the first.
func (lw *ListWriter) Next() *ListWriter {
	if lw.items > 0 {
		lw.WriteString(lw.sep) //nolint:errcheck
	}
	lw.items++
	return lw
}

func (lw *ListWriter) Write(p []byte) (int, error) {
	if lw.err != nil {
		return 0, errtrace.Wrap(lw.err)
	}
	return lw.track(lw.w.Write(p))
}

func (lw *ListWriter) WriteString(s string) (int, error) {
	if lw.err != nil {
		return 0, errtrace.Wrap(lw.err)
	}
	return lw.track(io.WriteString(lw.w, s))
}

func (lw *ListWriter) WriteByte(c byte) error {
	_, err := lw.Write([]byte{c})
	return errtrace.Wrap(err)
}

// Call lets fn write to the underlying writer, as RenderTo methods do.
func (lw *ListWriter) Call(fn func(io.Writer) (int, error)) *ListWriter {
	if lw.err == nil {
		lw.track(fn(lw.w)) //nolint:errcheck
	}
	return lw
}

func (lw *ListWriter) track(n int, err error) (int, error) {
	lw.num += n
	if err != nil {
		lw.err = err
		return n, errtrace.Wrap(err)
	}
	return n, nil
}

// Result returns the bytes written and the first write error.
func (lw *ListWriter) Result() (int, error) {
	return lw.num, errtrace.Wrap(lw.err)
}

var listWriters = sync.Pool{
	New: func() any { return new(ListWriter) },
}

// GetListWriter returns a pooled writer for a list separated by sep.
func GetListWriter(w io.Writer, sep string) *ListWriter {
	lw := listWriters.Get().(*ListWriter) //nolint:forcetypeassert
	lw.w, lw.sep = w, sep
	return lw
}

// FreeListWriter resets lw and returns it to the pool.
func FreeListWriter(lw *ListWriter) {
	*lw = ListWriter{}
	listWriters.Put(lw)
}
