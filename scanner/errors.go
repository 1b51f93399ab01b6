package scanner

import (
	"errors"
	"fmt"

	"github.com/shibukawa/safeyaml/token"
)

// Sentinel errors
var (
	ErrUnexpectedCharacter = errors.New("unexpected character")
	ErrUnterminatedQuote   = errors.New("unterminated quoted scalar")
	ErrInvalidEscape       = errors.New("invalid escape sequence")
	ErrTabIndentation      = errors.New("tab character used for indentation")
	ErrMalformedDirective  = errors.New("malformed directive")
	ErrMalformedTag        = errors.New("malformed tag")
	ErrInvalidAnchorName   = errors.New("invalid anchor name")
	ErrMisplacedIndicator  = errors.New("indicator not allowed in this context")
)

// Error is a scan failure. It carries the position of the offending input
// and wraps either a sentinel error or a limit violation, so callers can
// distinguish malformed input from resource exhaustion with errors.Is/As.
type Error struct {
	Pos token.Position
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%v: %s at %s", e.Err, e.Msg, e.Pos)
	}
	return fmt.Sprintf("%v at %s", e.Err, e.Pos)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Position returns where the error occurred.
func (e *Error) Position() token.Position {
	return e.Pos
}

func (s *Scanner) errorf(pos token.Position, sentinel error, format string, args ...any) error {
	return &Error{Pos: pos, Err: sentinel, Msg: fmt.Sprintf(format, args...)}
}

func (s *Scanner) limitError(err error) error {
	return &Error{Pos: s.mark(), Err: err}
}
