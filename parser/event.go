package parser

import (
	"fmt"

	"github.com/shibukawa/safeyaml/token"
)

// EventType identifies a structural parse event.
type EventType int

const (
	StreamStart EventType = iota
	StreamEnd
	DocumentStart
	DocumentEnd
	SequenceStart
	SequenceEnd
	MappingStart
	MappingEnd
	Scalar
	Alias
)

func (t EventType) String() string {
	switch t {
	case StreamStart:
		return "STREAM_START"
	case StreamEnd:
		return "STREAM_END"
	case DocumentStart:
		return "DOCUMENT_START"
	case DocumentEnd:
		return "DOCUMENT_END"
	case SequenceStart:
		return "SEQUENCE_START"
	case SequenceEnd:
		return "SEQUENCE_END"
	case MappingStart:
		return "MAPPING_START"
	case MappingEnd:
		return "MAPPING_END"
	case Scalar:
		return "SCALAR"
	case Alias:
		return "ALIAS"
	default:
		return fmt.Sprintf("EVENT(%d)", int(t))
	}
}

// Tag is an unresolved node tag as written in the source. Handle is "!",
// "!!", "!name!", or "" for a verbatim !<uri> tag whose URI is in Suffix.
// Expansion against the active %TAG table happens in the composer.
type Tag struct {
	Handle string
	Suffix string
}

// TagDirective is one %TAG handle/prefix association.
type TagDirective struct {
	Handle string
	Prefix string
}

// Event is one structural step of a document. Events are transient: the
// composer consumes each one before the next is produced.
type Event struct {
	Type EventType

	Anchor string // SequenceStart, MappingStart, Scalar
	Tag    *Tag   // SequenceStart, MappingStart, Scalar

	Value string            // Scalar text, or Alias anchor name
	Style token.ScalarStyle // valid for Scalar

	// Flow is set on SequenceStart/MappingStart for collections written in
	// flow style, as a round-trip hint.
	Flow bool

	// Explicit is set on DocumentStart/DocumentEnd produced by a literal
	// --- or ... marker.
	Explicit bool

	// Directive payload, valid for DocumentStart.
	Version       string
	TagDirectives []TagDirective

	Start token.Position
	End   token.Position
}

func (e *Event) String() string {
	switch e.Type {
	case Scalar:
		return fmt.Sprintf("%s(%q)", e.Type, e.Value)
	case Alias:
		return fmt.Sprintf("%s(*%s)", e.Type, e.Value)
	default:
		return e.Type.String()
	}
}
