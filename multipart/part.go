package multipart

import (
	"bytes"
	"io"
	"log/slog"
	"mime"
	"net/textproto"
	"strings"

	"braces.dev/errtrace"
)

// PartReader reads one part's body from the scanner's buffer.
type PartReader struct {
	s *Scanner
	// pos is the offset of the delimiter in the buffer, -1 if not buffered yet.
	pos int
	// pad is the number of trailing buffer bytes held back because they may
	// start a delimiter.
	pad    int
	n      int64
	closed bool
}

func (pr *PartReader) findSeparator() {
	s := pr.s
	pr.pos = -1
	if i := bytes.Index(s.buf[s.head:s.tail], s.delim); i >= 0 {
		pr.pos = s.head + i
		return
	}
	pr.pad = min(len(s.delim), s.tail-s.head)
}

func (pr *PartReader) available() int {
	if pr.pos == -1 {
		return pr.s.tail - pr.s.head - pr.pad
	}
	return pr.pos - pr.s.head
}

func (pr *PartReader) makeAvailable() (int, error) {
	if pr.pos != -1 {
		return 0, nil
	}

	s := pr.s
	copy(s.buf, s.buf[s.tail-pr.pad:s.tail])
	s.head, s.tail = 0, pr.pad
	for {
		if err := s.fill(); err != nil {
			return 0, errtrace.Wrap(err)
		}
		pr.findSeparator()
		if av := pr.available(); av > 0 || pr.pos != -1 {
			return av, nil
		}
	}
}

// Read reads body bytes and returns [io.EOF] at the delimiter.
// A stream that ends before the delimiter fails with [ErrMalformedStream].
func (pr *PartReader) Read(p []byte) (int, error) {
	if pr.closed {
		return 0, errtrace.Wrap(ErrItemClosed)
	}
	if len(p) == 0 {
		return 0, nil
	}

	av := pr.available()
	if av == 0 {
		var err error
		if av, err = pr.makeAvailable(); err != nil {
			return 0, errtrace.Wrap(err)
		}
		if av == 0 {
			return 0, io.EOF //errtrace:skip
		}
	}

	n := copy(p, pr.s.buf[pr.s.head:pr.s.head+av])
	pr.s.head += n
	pr.n += int64(n)
	return n, nil
}

// BytesRead returns the number of body bytes read so far.
func (pr *PartReader) BytesRead() int64 { return pr.n }

// Close discards the rest of the body so the scanner stands at the next
// delimiter. Reading after Close fails with [ErrItemClosed].
func (pr *PartReader) Close() error {
	if pr.closed {
		return nil
	}
	_, err := io.Copy(io.Discard, pr)
	pr.closed = true
	return errtrace.Wrap(err)
}

// Part is a single part of a multipart stream.
type Part struct {
	Header textproto.MIMEHeader

	body *PartReader
	log  *slog.Logger

	dispParsed bool
	disp       string
	dispParams map[string]string
}

func newPart(hdr textproto.MIMEHeader, body *PartReader, log *slog.Logger) *Part {
	return &Part{Header: hdr, body: body, log: log}
}

// Read reads the part's body.
func (p *Part) Read(b []byte) (int, error) {
	n, err := p.body.Read(b)
	if err == io.EOF { //nolint:errorlint
		return n, io.EOF //errtrace:skip
	}
	return n, errtrace.Wrap(err)
}

// Close discards the unread rest of the body.
func (p *Part) Close() error {
	if p.body.closed {
		return nil
	}
	before := p.body.n
	if err := p.body.Close(); err != nil {
		return errtrace.Wrap(err)
	}
	if skipped := p.body.n - before; skipped > 0 {
		p.log.Debug("multipart part closed before end, rest discarded",
			slog.String("name", p.FormName()),
			slog.Int64("discarded", skipped),
		)
	}
	return nil
}

func (p *Part) parseDisposition() {
	if p.dispParsed {
		return
	}
	p.dispParsed = true
	v := p.Header.Get("Content-Disposition")
	if v == "" {
		return
	}
	disp, params, err := mime.ParseMediaType(v)
	if err != nil {
		return
	}
	p.disp, p.dispParams = disp, params
}

// FormName returns the name parameter of a form-data Content-Disposition.
func (p *Part) FormName() string {
	p.parseDisposition()
	if p.disp != "form-data" {
		return ""
	}
	return p.dispParams["name"]
}

// FileName returns the filename parameter of the Content-Disposition as sent.
func (p *Part) FileName() string {
	p.parseDisposition()
	return p.dispParams["filename"]
}

// IsFormField reports whether the part carries no filename parameter.
func (p *Part) IsFormField() bool {
	p.parseDisposition()
	_, ok := p.dispParams["filename"]
	return !ok
}

// BytesRead returns the number of body bytes read so far, including the
// bytes discarded by [Part.Close].
func (p *Part) BytesRead() int64 { return p.body.BytesRead() }

// ContentType returns the Content-Type field.
func (p *Part) ContentType() string { return p.Header.Get("Content-Type") }

// IsMultipart reports whether the part is itself a multipart body.
func (p *Part) IsMultipart() bool {
	mt, _, err := mime.ParseMediaType(p.ContentType())
	return err == nil && strings.HasPrefix(mt, "multipart/")
}

// Boundary returns the boundary of a nested multipart body.
func (p *Part) Boundary() string {
	b, err := BoundaryFromContentType(p.ContentType())
	if err != nil {
		return ""
	}
	return b
}
