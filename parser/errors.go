package parser

import (
	"errors"
	"fmt"

	"github.com/shibukawa/safeyaml/token"
)

var (
	// ErrUnexpectedToken is returned when a token is invalid for the
	// current grammar state.
	ErrUnexpectedToken = errors.New("unexpected token")
	// ErrDirectivesWithoutDocument is returned when directives are not
	// followed by an explicit document start marker.
	ErrDirectivesWithoutDocument = errors.New("expected '---' after directives")
	// ErrAliasProperties is returned when an alias node carries an anchor
	// or a tag.
	ErrAliasProperties = errors.New("alias node cannot have properties")
)

// Error is a structural parse error. After one is returned the stream
// position is unreliable and the parser stays failed.
type Error struct {
	Pos token.Position
	Msg string
	Err error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Err, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Position reports where the offending token begins.
func (e *Error) Position() token.Position {
	return e.Pos
}

func (p *Parser) errorf(pos token.Position, sentinel error, format string, args ...any) error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...), Err: sentinel}
}

func (p *Parser) limitError(err error) error {
	pos := token.Start()
	if p.tok != nil {
		pos = p.tok.Start
	}
	return &Error{Pos: pos, Err: err}
}
