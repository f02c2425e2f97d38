package forwarded

import (
	"fmt"
	"log/slog"

	"braces.dev/errtrace"

	"github.com/phax/ph-web-sub004/internal/errorutil"
	"github.com/phax/ph-web-sub004/internal/grammar"
	"github.com/phax/ph-web-sub004/internal/log"
	"github.com/phax/ph-web-sub004/internal/util"
)

const (
	// ErrMalformedInput is matched by every parse failure.
	ErrMalformedInput = grammar.ErrMalformedInput

	ErrInvalidToken      errorutil.Error = "invalid token"
	ErrMissingEquals     errorutil.Error = "missing '=' after token"
	ErrEmptyPair         errorutil.Error = "empty forwarded-pair"
	ErrEmptyValue        errorutil.Error = "empty value"
	ErrInvalidValue      errorutil.Error = "invalid token value"
	ErrControlChar       errorutil.Error = "unescaped control character in quoted-string"
	ErrUnterminatedQuote errorutil.Error = "unterminated quoted-string"
	ErrIllegalEscape     errorutil.Error = "backslash at end of input"
	ErrExpectedSemicolon errorutil.Error = "expected ';' or end of input"
)

type parseState int

const (
	stateStart parseState = iota
	stateReadToken
	stateExpectEquals
	stateReadValueToken
	stateReadValueQuoted
	stateReadValueQuotedEscape
	stateExpectSemiOrEnd
	stateError
)

func (s parseState) String() string {
	switch s {
	case stateStart:
		return "START"
	case stateReadToken:
		return "READ_TOKEN"
	case stateExpectEquals:
		return "EXPECT_EQUALS"
	case stateReadValueToken:
		return "READ_VALUE_TOKEN"
	case stateReadValueQuoted:
		return "READ_VALUE_QUOTED"
	case stateReadValueQuotedEscape:
		return "READ_VALUE_QUOTED_ESCAPE"
	case stateExpectSemiOrEnd:
		return "EXPECT_SEMI_OR_END"
	case stateError:
		return "ERROR"
	default:
		return fmt.Sprintf("parseState(%d)", int(s))
	}
}

// ParseError describes where and why parsing failed.
// It matches [ErrMalformedInput] and the detail error in Err.
type ParseError struct {
	Input string
	// Pos is the byte offset of the offending character in the trimmed input,
	// len(Input) on premature end of input.
	Pos int
	// State is the parser state that rejected the input.
	State string
	Err   error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("malformed Forwarded value %q at %d (%s): %v", util.Ellipsis(e.Input, 64), e.Pos, e.State, e.Err)
}

func (e *ParseError) Unwrap() []error {
	if e == nil {
		return nil
	}
	return []error{ErrMalformedInput, e.Err}
}

// Grammar marks the error as a grammar error.
func (*ParseError) Grammar() bool { return true }

// Parser parses Forwarded header values.
// A Parser is stateless and safe for concurrent use.
type Parser struct {
	log *slog.Logger
}

// ParserOption configures a [Parser].
type ParserOption func(p *Parser)

// WithLogger sets the logger that receives rejected inputs at debug level.
func WithLogger(l *slog.Logger) ParserOption {
	return func(p *Parser) { p.log = l }
}

// NewParser creates a parser.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{}
	for _, o := range opts {
		o(p)
	}
	p.log = log.OrNoop(p.log)
	return p
}

var defParser = NewParser()

// Parse parses a single forwarded-element using the default parser.
// It returns nil if the input is malformed.
func Parse(s string) *Element { return defParser.Parse(s) }

// ParseStrict parses a single forwarded-element using the default parser.
func ParseStrict(s string) (*Element, error) { return errtrace.Wrap2(defParser.ParseStrict(s)) }

// Parse parses a single forwarded-element.
// Blank input yields an empty element, malformed input yields nil.
func (p *Parser) Parse(s string) *Element {
	e, err := p.ParseStrict(s)
	if err != nil {
		return nil
	}
	return e
}

// ParseStrict parses a single forwarded-element:
//
//	forwarded-element = [ forwarded-pair ] *( ";" [ forwarded-pair ] )
//	forwarded-pair    = token "=" value
//	value             = token / quoted-string
//
// Surrounding whitespace is ignored and blank input yields an empty element.
// A single trailing ";" is accepted, empty pairs elsewhere are not.
// Escaped characters in quoted-strings are stored unescaped.
// Failures are reported as [*ParseError].
func (p *Parser) ParseStrict(s string) (*Element, error) {
	e, err := parseElement(util.TrimOWS(s))
	if err != nil {
		p.logReject(err)
		return nil, errtrace.Wrap(err)
	}
	return e, nil
}

func (p *Parser) logReject(err error) {
	if perr, ok := err.(*ParseError); ok { //nolint:errorlint
		p.log.Debug("Forwarded value rejected",
			slog.String("input", perr.Input),
			slog.Int("pos", perr.Pos),
			slog.String("state", perr.State),
			slog.Any("error", perr.Err),
		)
		return
	}
	p.log.Debug("Forwarded value rejected", slog.Any("error", err))
}

func parseElement(s string) (*Element, error) {
	var (
		elem     = &Element{}
		state    = stateStart
		tokStart int
		valStart int
		token    string
		val      []byte
	)

	fail := func(pos int, err error) (*Element, error) {
		return nil, &ParseError{Input: s, Pos: pos, State: state.String(), Err: err} //errtrace:skip
	}

	// token positions by lower-cased name keep repeated tokens O(1)
	seen := make(map[string]int)
	add := func(token, value string) {
		k := util.LCase(token)
		if i, ok := seen[k]; ok {
			elem.params[i].values = append(elem.params[i].values, value)
			return
		}
		seen[k] = len(elem.params)
		elem.params = append(elem.params, param{canonicToken(token), []string{value}})
	}

	for i := 0; i <= len(s); i++ {
		atEnd := i == len(s)
		c := -1
		if !atEnd {
			c = int(s[i])
		}

		switch state {
		case stateStart:
			switch {
			case atEnd:
				return elem, nil
			case c == ';':
				return fail(i, ErrEmptyPair)
			case grammar.IsTokenChar(c):
				tokStart = i
				state = stateReadToken
			default:
				return fail(i, ErrInvalidToken)
			}
		case stateReadToken:
			if !atEnd && grammar.IsTokenChar(c) {
				continue
			}
			token = s[tokStart:i]
			state = stateExpectEquals
			i-- // same position, next state
		case stateExpectEquals:
			switch {
			case atEnd:
				return fail(i, ErrMissingEquals)
			case c != '=':
				return fail(i, ErrInvalidToken)
			case i+1 < len(s) && s[i+1] == '"':
				i++
				val = val[:0]
				state = stateReadValueQuoted
			default:
				valStart = i + 1
				state = stateReadValueToken
			}
		case stateReadValueToken:
			switch {
			case atEnd || c == ';':
				if i == valStart {
					return fail(i, ErrEmptyValue)
				}
				add(token, s[valStart:i])
				state = stateExpectSemiOrEnd
				i--
			case !grammar.IsTokenChar(c):
				return fail(i, ErrInvalidValue)
			}
		case stateReadValueQuoted:
			switch {
			case atEnd:
				return fail(i, ErrUnterminatedQuote)
			case c == '"':
				add(token, string(val))
				state = stateExpectSemiOrEnd
			case c == '\\':
				state = stateReadValueQuotedEscape
			case grammar.IsCtl(c) && !grammar.IsHTab(c):
				return fail(i, ErrControlChar)
			default:
				val = append(val, s[i])
			}
		case stateReadValueQuotedEscape:
			if atEnd {
				return fail(i, ErrIllegalEscape)
			}
			val = append(val, s[i])
			state = stateReadValueQuoted
		case stateExpectSemiOrEnd:
			switch {
			case atEnd:
				return elem, nil
			case c == ';':
				state = stateStart
				// a lone trailing ";" closes the element
				if i+1 == len(s) {
					return elem, nil
				}
			default:
				return fail(i, ErrExpectedSemicolon)
			}
		default:
			return fail(i, ErrMalformedInput)
		}
	}
	// unreachable: the loop handles end of input in every state
	state = stateError
	return fail(len(s), ErrMalformedInput)
}
