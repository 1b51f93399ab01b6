package token

import "fmt"

// Position points at a location in the input stream. Line and Column are
// 1-based, Offset is the 0-based byte offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Start returns the position of the first byte of a stream.
func Start() Position {
	return Position{Line: 1, Column: 1, Offset: 0}
}

func (p Position) String() string {
	return fmt.Sprintf("line %d, column %d", p.Line, p.Column)
}

// ScalarStyle records how a scalar was written in the source, or how it
// should be written on output.
type ScalarStyle int

const (
	StylePlain ScalarStyle = iota
	StyleSingleQuoted
	StyleDoubleQuoted
	StyleLiteral // | block scalar
	StyleFolded  // > block scalar
)

func (s ScalarStyle) String() string {
	switch s {
	case StylePlain:
		return "plain"
	case StyleSingleQuoted:
		return "single-quoted"
	case StyleDoubleQuoted:
		return "double-quoted"
	case StyleLiteral:
		return "literal"
	case StyleFolded:
		return "folded"
	default:
		return "unknown"
	}
}

// Quoted reports whether the style forces string typing regardless of the
// scalar's spelling.
func (s ScalarStyle) Quoted() bool {
	return s == StyleSingleQuoted || s == StyleDoubleQuoted
}

// Type represents the type of a token
type Type int

const (
	// Basic tokens
	EOF Type = iota
	DOCUMENT_START // ---
	DOCUMENT_END   // ...
	YAML_DIRECTIVE // %YAML
	TAG_DIRECTIVE  // %TAG

	// Block structure
	BLOCK_SEQUENCE_START
	BLOCK_MAPPING_START
	BLOCK_END
	BLOCK_ENTRY // -

	// Flow structure
	FLOW_SEQUENCE_START // [
	FLOW_SEQUENCE_END   // ]
	FLOW_MAPPING_START  // {
	FLOW_MAPPING_END    // }
	FLOW_ENTRY          // ,

	// Key/value indicators
	KEY   // ? (or an implicit simple key)
	VALUE // :

	// Node content
	SCALAR
	ANCHOR // &name
	ALIAS  // *name
	TAG    // !, !!suffix, !handle!suffix, !<uri>
)

// String returns the string representation of Type
func (t Type) String() string {
	switch t {
	case EOF:
		return "EOF"
	case DOCUMENT_START:
		return "DOCUMENT_START"
	case DOCUMENT_END:
		return "DOCUMENT_END"
	case YAML_DIRECTIVE:
		return "YAML_DIRECTIVE"
	case TAG_DIRECTIVE:
		return "TAG_DIRECTIVE"
	case BLOCK_SEQUENCE_START:
		return "BLOCK_SEQUENCE_START"
	case BLOCK_MAPPING_START:
		return "BLOCK_MAPPING_START"
	case BLOCK_END:
		return "BLOCK_END"
	case BLOCK_ENTRY:
		return "BLOCK_ENTRY"
	case FLOW_SEQUENCE_START:
		return "FLOW_SEQUENCE_START"
	case FLOW_SEQUENCE_END:
		return "FLOW_SEQUENCE_END"
	case FLOW_MAPPING_START:
		return "FLOW_MAPPING_START"
	case FLOW_MAPPING_END:
		return "FLOW_MAPPING_END"
	case FLOW_ENTRY:
		return "FLOW_ENTRY"
	case KEY:
		return "KEY"
	case VALUE:
		return "VALUE"
	case SCALAR:
		return "SCALAR"
	case ANCHOR:
		return "ANCHOR"
	case ALIAS:
		return "ALIAS"
	case TAG:
		return "TAG"
	default:
		return "UNKNOWN"
	}
}

// Token is a positioned lexeme produced by the scanner. Tokens are transient:
// the parser consumes each one within a single pipeline step.
type Token struct {
	Type  Type
	Value string      // scalar text, anchor/alias name, or %YAML version
	Style ScalarStyle // valid for SCALAR

	// Tag fields, valid for TAG and TAG_DIRECTIVE. For TAG, Handle is "!",
	// "!!", "!name!" or "" for a verbatim !<uri> tag (the URI is in Suffix).
	// For TAG_DIRECTIVE, Handle and Suffix hold the handle and prefix.
	Handle string
	Suffix string

	Start Position
	End   Position
}

func (t Token) String() string {
	if t.Value != "" {
		return fmt.Sprintf("%s(%q)", t.Type, t.Value)
	}
	return t.Type.String()
}
