// Package multipart implements a streaming scanner for multipart bodies
// (RFC 2046 Section 5.1, RFC 7578) that works with a fixed-size read-ahead buffer.
//
// The high level API is [Scanner.NextPart]. The low level methods
// [Scanner.SkipPreamble], [Scanner.ReadBoundary], [Scanner.ReadHeaders] and
// [Scanner.Body] expose the individual scanning steps, and together with
// [Scanner.SetBoundary] allow descending into nested multipart/mixed parts
// without a second buffer.
//
// A Scanner is not safe for concurrent use.
package multipart

//go:generate go tool errtrace -w .

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/textproto"
	"strings"

	"braces.dev/errtrace"

	"github.com/phax/ph-web-sub004/internal/errorutil"
	"github.com/phax/ph-web-sub004/internal/grammar"
	"github.com/phax/ph-web-sub004/internal/log"
	"github.com/phax/ph-web-sub004/internal/util"
)

const (
	ErrMalformedStream errorutil.Error = "malformed multipart stream"
	ErrIllegalBoundary errorutil.Error = "illegal boundary"
	ErrHeaderTooLarge  errorutil.Error = "part header too large"
	ErrMalformedHeader errorutil.Error = "malformed part header"
	ErrBufferTooSmall  errorutil.Error = "buffer too small for boundary"
	ErrItemClosed      errorutil.Error = "part already closed"
	ErrNotMultipart    errorutil.Error = "not a multipart content type"
)

const (
	DefaultBufferSize    = 4096
	DefaultMaxHeaderSize = 10240
)

// BoundaryFromContentType returns the boundary parameter of a multipart media type.
func BoundaryFromContentType(ct string) (string, error) {
	mt, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return "", errtrace.Wrap(errorutil.NewWrapperError(ErrNotMultipart, err))
	}
	if !strings.HasPrefix(mt, "multipart/") {
		return "", errtrace.Wrap(errorutil.NewWrapperError(ErrNotMultipart, "media type %q", mt))
	}
	b := params["boundary"]
	if b == "" {
		return "", errtrace.Wrap(errorutil.NewWrapperError(ErrNotMultipart, "missing boundary"))
	}
	return b, nil
}

// Option configures a [Scanner].
type Option func(s *Scanner)

// WithBufferSize sets the read-ahead buffer size, [DefaultBufferSize] by default.
// It must exceed the delimiter length ("\r\n--" plus the boundary).
func WithBufferSize(n int) Option {
	return func(s *Scanner) { s.bufSize = n }
}

// WithMaxHeaderSize limits the size of a part's header block, [DefaultMaxHeaderSize] by default.
func WithMaxHeaderSize(n int) Option {
	return func(s *Scanner) { s.maxHdrSize = n }
}

// WithLogger sets the logger for debug messages.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.log = l }
}

// Scanner reads the parts of a multipart stream.
type Scanner struct {
	r          io.Reader
	bufSize    int
	maxHdrSize int
	log        *slog.Logger

	buf  []byte
	head int
	tail int
	eof  bool

	// boundary is "\r\n--" followed by the boundary, delim is the
	// delimiter currently searched for.
	boundary []byte
	delim    []byte

	started bool
	done    bool
	cur     *Part
	lineBuf []byte
}

// NewScanner creates a scanner reading parts separated by boundary from r.
func NewScanner(r io.Reader, boundary string, opts ...Option) (*Scanner, error) {
	if boundary == "" {
		return nil, errtrace.Wrap(errorutil.NewInvalidArgumentError("empty boundary"))
	}

	s := &Scanner{
		r:          r,
		bufSize:    DefaultBufferSize,
		maxHdrSize: DefaultMaxHeaderSize,
	}
	for _, o := range opts {
		o(s)
	}
	s.log = log.OrNoop(s.log)

	s.boundary = append([]byte("\r\n--"), boundary...)
	s.delim = s.boundary
	if s.bufSize <= len(s.boundary) {
		return nil, errtrace.Wrap(errorutil.NewWrapperError(ErrBufferTooSmall,
			"buffer size %d, delimiter length %d", s.bufSize, len(s.boundary)))
	}
	if s.maxHdrSize <= 0 {
		s.maxHdrSize = DefaultMaxHeaderSize
	}
	s.buf = make([]byte, s.bufSize)
	return s, nil
}

func newMalformedErr(args ...any) error {
	return errorutil.NewWrapperError(ErrMalformedStream, args...) //errtrace:skip
}

// SetBoundary replaces the boundary, for example to scan the parts of a nested
// multipart/mixed body. The new boundary must have the same length as the
// one the scanner was created with.
func (s *Scanner) SetBoundary(boundary string) error {
	if len(boundary) != len(s.boundary)-4 {
		return errtrace.Wrap(errorutil.NewWrapperError(ErrIllegalBoundary,
			"boundary %q has length %d, want %d", boundary, len(boundary), len(s.boundary)-4))
	}
	copy(s.boundary[4:], boundary)
	return nil
}

// Boundary returns the current boundary.
func (s *Scanner) Boundary() string { return string(s.boundary[4:]) }

func (s *Scanner) fill() error {
	if s.eof {
		return errtrace.Wrap(newMalformedErr("stream ended unexpectedly"))
	}
	n, err := s.r.Read(s.buf[s.tail:])
	s.tail += n
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return errtrace.Wrap(err)
		}
		s.eof = true
	}
	return nil
}

func (s *Scanner) readByte() (byte, error) {
	for s.head == s.tail {
		s.head, s.tail = 0, 0
		if err := s.fill(); err != nil {
			return 0, errtrace.Wrap(err)
		}
	}
	c := s.buf[s.head]
	s.head++
	return c, nil
}

// peek buffers at least n unread bytes unless the stream ends first.
func (s *Scanner) peek(n int) ([]byte, error) {
	for s.tail-s.head < n && !s.eof {
		if s.head > 0 {
			s.tail = copy(s.buf, s.buf[s.head:s.tail])
			s.head = 0
		}
		if err := s.fill(); err != nil {
			return nil, errtrace.Wrap(err)
		}
	}
	return s.buf[s.head:s.tail], nil
}

// SkipPreamble discards everything up to the first delimiter and reads it
// with [Scanner.ReadBoundary]. The delimiter is recognized at the start of
// the stream or after a line break (RFC 2046 Section 5.1.1).
// It fails with [ErrMalformedStream] if the stream ends first.
func (s *Scanner) SkipPreamble() (bool, error) {
	open := s.boundary[2:]
	b, err := s.peek(len(open))
	if err != nil {
		return false, errtrace.Wrap(err)
	}
	if bytes.HasPrefix(b, open) {
		s.delim = open
		defer func() { s.delim = s.boundary }()
		return errtrace.Wrap2(s.ReadBoundary())
	}

	n, err := s.DiscardBody()
	if err != nil {
		return false, errtrace.Wrap(err)
	}
	if n > 0 {
		s.log.Debug("multipart preamble skipped", slog.Int64("size", n))
	}
	return errtrace.Wrap2(s.ReadBoundary())
}

// ReadBoundary consumes the delimiter at the current position and the two
// characters after it. It reports true if another part follows ("\r\n") and
// false after the close delimiter ("--").
func (s *Scanner) ReadBoundary() (bool, error) {
	if s.tail-s.head < len(s.delim) || !bytes.Equal(s.buf[s.head:s.head+len(s.delim)], s.delim) {
		return false, errtrace.Wrap(newMalformedErr("boundary expected"))
	}
	s.head += len(s.delim)

	var marker [2]byte
	for i := range marker {
		c, err := s.readByte()
		if err != nil {
			return false, errtrace.Wrap(err)
		}
		marker[i] = c
	}
	switch string(marker[:]) {
	case "\r\n":
		return true, nil
	case "--":
		return false, nil
	default:
		return false, errtrace.Wrap(newMalformedErr("unexpected characters %q after boundary", marker[:]))
	}
}

func (s *Scanner) readLine(size *int) (string, error) {
	s.lineBuf = s.lineBuf[:0]
	for {
		c, err := s.readByte()
		if err != nil {
			return "", errtrace.Wrap(err)
		}
		*size++
		if *size > s.maxHdrSize {
			return "", errtrace.Wrap(errorutil.NewWrapperError(ErrHeaderTooLarge, "exceeds %d bytes", s.maxHdrSize))
		}
		if c == '\n' {
			break
		}
		s.lineBuf = append(s.lineBuf, c)
	}
	return string(bytes.TrimSuffix(s.lineBuf, []byte{'\r'})), nil
}

// ReadHeaders reads a part's header block up to and including the empty line.
// Folded lines are joined with a space. Field names must be tokens.
func (s *Scanner) ReadHeaders() (textproto.MIMEHeader, error) {
	var (
		hdr  = make(textproto.MIMEHeader)
		size int
		last string
	)
	for {
		line, err := s.readLine(&size)
		if err != nil {
			return nil, errtrace.Wrap(err)
		}
		if line == "" {
			return hdr, nil
		}

		if grammar.IsWSP(int(line[0])) {
			if last == "" {
				return nil, errtrace.Wrap(errorutil.NewWrapperError(ErrMalformedHeader, "continuation line without field"))
			}
			vals := hdr[last]
			vals[len(vals)-1] = strings.TrimLeft(vals[len(vals)-1]+" "+util.TrimOWS(line), " ")
			continue
		}

		name, value, ok := strings.Cut(line, ":")
		if !ok || !grammar.IsToken(name) {
			return nil, errtrace.Wrap(errorutil.NewWrapperError(ErrMalformedHeader, "line %q", util.Ellipsis(line, 64)))
		}
		last = textproto.CanonicalMIMEHeaderKey(name)
		hdr[last] = append(hdr[last], util.TrimOWS(value))
	}
}

// Body returns a reader for the current part's body. It stops at the next
// delimiter and leaves it for [Scanner.ReadBoundary].
func (s *Scanner) Body() *PartReader {
	pr := &PartReader{s: s}
	pr.findSeparator()
	return pr
}

// DiscardBody skips the current part's body and returns the number of bytes skipped.
func (s *Scanner) DiscardBody() (int64, error) {
	return errtrace.Wrap2(io.Copy(io.Discard, s.Body()))
}

// NextPart returns the next part, or [io.EOF] after the close delimiter.
// An unread remainder of the previous part is discarded.
func (s *Scanner) NextPart() (*Part, error) {
	if s.cur != nil {
		if err := s.cur.Close(); err != nil {
			return nil, errtrace.Wrap(err)
		}
		s.cur = nil
	}
	if s.done {
		return nil, io.EOF //errtrace:skip
	}

	var (
		more bool
		err  error
	)
	if !s.started {
		s.started = true
		more, err = s.SkipPreamble()
	} else {
		more, err = s.ReadBoundary()
	}
	if err != nil {
		s.done = true
		return nil, errtrace.Wrap(err)
	}
	if !more {
		s.done = true
		return nil, io.EOF //errtrace:skip
	}

	hdr, err := s.ReadHeaders()
	if err != nil {
		s.done = true
		return nil, errtrace.Wrap(err)
	}
	p := newPart(hdr, s.Body(), s.log)
	s.cur = p

	s.log.Debug("multipart part found",
		slog.String("name", p.FormName()),
		slog.String("content_type", p.ContentType()),
		slog.Any("headers", hdr),
	)
	return p, nil
}
