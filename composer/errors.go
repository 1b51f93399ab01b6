package composer

import (
	"errors"
	"fmt"

	"github.com/shibukawa/safeyaml/token"
)

var (
	// ErrUndefinedAlias is returned for an alias naming an anchor that is
	// not defined at that point of the document.
	ErrUndefinedAlias = errors.New("undefined alias")
	// ErrCyclicReference is returned when an alias refers to an anchor
	// whose own subtree is still being composed.
	ErrCyclicReference = errors.New("cyclic reference")
	// ErrInvalidMergeValue is returned when a merge key's value is neither
	// a mapping nor a sequence of mappings.
	ErrInvalidMergeValue = errors.New("invalid merge value")
	// ErrDuplicateKey is returned under the error duplicate-key policy.
	ErrDuplicateKey = errors.New("duplicate mapping key")
	// ErrUnknownTag is returned in strict mode for a tag with no registered
	// constructor, and always for an unresolvable tag handle.
	ErrUnknownTag = errors.New("unknown tag")
	// ErrInvalidTagValue is returned when a node cannot be constructed
	// under its explicit tag, e.g. !!int abc.
	ErrInvalidTagValue = errors.New("invalid value for tag")
	// ErrRegistrySealed is returned when registering a constructor on a
	// loader that forbids it.
	ErrRegistrySealed = errors.New("tag registry is sealed")
	// ErrUnexpectedEvent indicates an event sequence the composer cannot
	// accept.
	ErrUnexpectedEvent = errors.New("unexpected event")
)

// Error is a composition failure with its source position.
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

// Position reports where composition failed.
func (e *Error) Position() token.Position {
	return e.Pos
}

func (c *Composer) errorf(pos token.Position, sentinel error, format string, args ...any) error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...), Err: sentinel}
}

func (c *Composer) limitError(pos token.Position, err error) error {
	return &Error{Pos: pos, Err: err}
}
