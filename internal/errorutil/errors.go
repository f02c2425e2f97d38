// Package errorutil provides the error kinds shared by the header model, the
// grammar and the multipart scanner.
package errorutil

//go:generate go tool errtrace -w .

import (
	"errors"
	"fmt"
	"strings"

	"github.com/phax/ph-web-sub004/internal/util"
)

// Error is a constant error. Packages declare their sentinels with it.
type Error string

func (s Error) Error() string { return string(s) }

const (
	// ErrInvalidArgument marks a malformed token, value or option.
	ErrInvalidArgument Error = "invalid argument"
	// ErrNullValue marks a value that must be present but is null.
	ErrNullValue Error = "null value"
)

// NewWrapperError attaches a detail to sentinel. The detail is either an
// error, which stays reachable through errors.Is, or a format string with
// its arguments. Without a usable detail the sentinel itself is returned.
func NewWrapperError(sentinel error, args ...any) error {
	if len(args) == 0 {
		return sentinel //errtrace:skip
	}
	switch d := args[0].(type) {
	case error:
		if errors.Is(d, sentinel) {
			return d //errtrace:skip
		}
		return fmt.Errorf("%w: %w", sentinel, d) //errtrace:skip
	case string:
		msg := d
		if len(args) > 1 {
			msg = fmt.Sprintf(d, args[1:]...)
		}
		return fmt.Errorf("%w: %s", sentinel, msg) //errtrace:skip
	}
	return sentinel //errtrace:skip
}

// NewInvalidArgumentError wraps its detail with [ErrInvalidArgument].
func NewInvalidArgumentError(args ...any) error {
	return NewWrapperError(ErrInvalidArgument, args...) //errtrace:skip
}

// NewNullValueError wraps its detail with [ErrNullValue].
func NewNullValueError(args ...any) error {
	return NewWrapperError(ErrNullValue, args...) //errtrace:skip
}

// JoinPrefix joins the non-nil errs under a common prefix. It returns nil
// when there is nothing to join and a single wrapped error for one.
func JoinPrefix(prefix string, errs ...error) error {
	var list []error
	for _, err := range errs {
		if err != nil {
			list = append(list, err)
		}
	}
	switch len(list) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s: %w", strings.TrimSuffix(prefix, ":"), list[0]) //errtrace:skip
	}
	return &joinError{prefix: prefix, errs: list} //errtrace:skip
}

// joinError renders one error per line below its prefix.
type joinError struct {
	prefix string
	errs   []error
}

func (e *joinError) Error() string {
	sb := util.GetStringBuilder()
	defer util.FreeStringBuilder(sb)

	sb.WriteString(e.prefix)
	for _, err := range e.errs {
		sb.WriteString("\n  - ")
		sb.WriteString(strings.ReplaceAll(err.Error(), "\n", "\n    "))
	}
	return sb.String()
}

func (e *joinError) Unwrap() []error { return e.errs }
