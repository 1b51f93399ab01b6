// Package value defines the persistent result type of YAML composition: an
// ordered, deeply comparable value graph.
//
// A composed graph is a tree (or a DAG in shared-alias mode) of owned
// subtrees, never a true cycle. Mappings preserve insertion order and keep
// keys unique by deep equality.
package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shibukawa/safeyaml/token"
)

// Kind enumerates the value types of the data model.
type Kind int

const (
	Null Kind = iota
	Bool
	Int
	Float
	String
	Sequence
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Pair is one mapping entry.
type Pair struct {
	Key   *Value
	Value *Value
}

// Value is a single node of a composed YAML document.
type Value struct {
	kind   Kind
	boolV  bool
	intV   int64
	floatV float64
	strV   string
	seq    []*Value
	pairs  []Pair

	// Style hints captured at composition time so the emitter can prefer the
	// original rendering on round-trips.
	style    token.ScalarStyle
	hasStyle bool
	flow     bool
}

// NewNull creates a null value.
func NewNull() *Value {
	return &Value{kind: Null}
}

// NewBool creates a boolean value.
func NewBool(b bool) *Value {
	return &Value{kind: Bool, boolV: b}
}

// NewInt creates an integer value.
func NewInt(i int64) *Value {
	return &Value{kind: Int, intV: i}
}

// NewFloat creates a floating point value.
func NewFloat(f float64) *Value {
	return &Value{kind: Float, floatV: f}
}

// NewString creates a string value.
func NewString(s string) *Value {
	return &Value{kind: String, strV: s}
}

// NewSequence creates an empty sequence.
func NewSequence() *Value {
	return &Value{kind: Sequence}
}

// NewSequenceOf creates a sequence holding the given items.
func NewSequenceOf(items ...*Value) *Value {
	return &Value{kind: Sequence, seq: items}
}

// NewMapping creates an empty mapping.
func NewMapping() *Value {
	return &Value{kind: Mapping}
}

// Kind returns the value's kind.
func (v *Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v *Value) IsNull() bool {
	return v.kind == Null
}

// AsBool returns the boolean payload.
func (v *Value) AsBool() (bool, bool) {
	if v.kind != Bool {
		return false, false
	}
	return v.boolV, true
}

// AsInt returns the integer payload.
func (v *Value) AsInt() (int64, bool) {
	if v.kind != Int {
		return 0, false
	}
	return v.intV, true
}

// AsFloat returns the float payload. Integers convert losslessly.
func (v *Value) AsFloat() (float64, bool) {
	switch v.kind {
	case Float:
		return v.floatV, true
	case Int:
		return float64(v.intV), true
	default:
		return 0, false
	}
}

// AsString returns the string payload.
func (v *Value) AsString() (string, bool) {
	if v.kind != String {
		return "", false
	}
	return v.strV, true
}

// Len returns the number of items for sequences and mappings, zero otherwise.
func (v *Value) Len() int {
	switch v.kind {
	case Sequence:
		return len(v.seq)
	case Mapping:
		return len(v.pairs)
	default:
		return 0
	}
}

// Items returns the backing slice of a sequence. Nil for other kinds.
func (v *Value) Items() []*Value {
	if v.kind != Sequence {
		return nil
	}
	return v.seq
}

// At returns the i-th sequence item, or nil when out of range.
func (v *Value) At(i int) *Value {
	if v.kind != Sequence || i < 0 || i >= len(v.seq) {
		return nil
	}
	return v.seq[i]
}

// Append adds an item to a sequence.
func (v *Value) Append(item *Value) {
	if v.kind == Sequence {
		v.seq = append(v.seq, item)
	}
}

// Pairs returns the ordered entries of a mapping. Nil for other kinds.
func (v *Value) Pairs() []Pair {
	if v.kind != Mapping {
		return nil
	}
	return v.pairs
}

// Get looks up a mapping entry by deep key equality.
func (v *Value) Get(key *Value) *Value {
	if v.kind != Mapping {
		return nil
	}
	for _, p := range v.pairs {
		if p.Key.Equal(key) {
			return p.Value
		}
	}
	return nil
}

// GetString looks up a mapping entry by string key.
func (v *Value) GetString(key string) *Value {
	return v.Get(NewString(key))
}

// Has reports whether a mapping contains the key.
func (v *Value) Has(key *Value) bool {
	return v.kind == Mapping && v.Get(key) != nil
}

// Set inserts or replaces a mapping entry, preserving insertion order for
// existing keys.
func (v *Value) Set(key, val *Value) {
	if v.kind != Mapping {
		return
	}
	for i, p := range v.pairs {
		if p.Key.Equal(key) {
			v.pairs[i].Value = val
			return
		}
	}
	v.pairs = append(v.pairs, Pair{Key: key, Value: val})
}

// Delete removes a mapping entry by deep key equality.
func (v *Value) Delete(key *Value) bool {
	if v.kind != Mapping {
		return false
	}
	for i, p := range v.pairs {
		if p.Key.Equal(key) {
			v.pairs = append(v.pairs[:i], v.pairs[i+1:]...)
			return true
		}
	}
	return false
}

// SetStyle records the scalar style this value was written with.
func (v *Value) SetStyle(s token.ScalarStyle) {
	v.style = s
	v.hasStyle = true
}

// Style returns the recorded scalar style hint.
func (v *Value) Style() (token.ScalarStyle, bool) {
	return v.style, v.hasStyle
}

// SetFlow marks a collection as originally written in flow style.
func (v *Value) SetFlow(flow bool) {
	v.flow = flow
}

// Flow reports whether the collection carries a flow style hint.
func (v *Value) Flow() bool {
	return v.flow
}

// Equal performs deep structural comparison. Two NaN floats compare equal so
// equality stays a proper equivalence relation; integers and floats are
// distinct kinds and never compare equal to each other.
func (v *Value) Equal(other *Value) bool {
	if v == other {
		return true
	}
	if v == nil || other == nil || v.kind != other.kind {
		return false
	}
	switch v.kind {
	case Null:
		return true
	case Bool:
		return v.boolV == other.boolV
	case Int:
		return v.intV == other.intV
	case Float:
		if math.IsNaN(v.floatV) && math.IsNaN(other.floatV) {
			return true
		}
		return v.floatV == other.floatV
	case String:
		return v.strV == other.strV
	case Sequence:
		if len(v.seq) != len(other.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(other.seq[i]) {
				return false
			}
		}
		return true
	case Mapping:
		if len(v.pairs) != len(other.pairs) {
			return false
		}
		for i := range v.pairs {
			if !v.pairs[i].Key.Equal(other.pairs[i].Key) || !v.pairs[i].Value.Equal(other.pairs[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep copy that shares no subtrees with the original.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{
		kind:     v.kind,
		boolV:    v.boolV,
		intV:     v.intV,
		floatV:   v.floatV,
		strV:     v.strV,
		style:    v.style,
		hasStyle: v.hasStyle,
		flow:     v.flow,
	}
	if v.seq != nil {
		out.seq = make([]*Value, len(v.seq))
		for i, item := range v.seq {
			out.seq[i] = item.Clone()
		}
	}
	if v.pairs != nil {
		out.pairs = make([]Pair, len(v.pairs))
		for i, p := range v.pairs {
			out.pairs[i] = Pair{Key: p.Key.Clone(), Value: p.Value.Clone()}
		}
	}
	return out
}

// Depth returns the maximum nesting depth of the subtree. Scalars have
// depth 1.
func (v *Value) Depth() int {
	switch v.kind {
	case Sequence:
		max := 0
		for _, item := range v.seq {
			if d := item.Depth(); d > max {
				max = d
			}
		}
		return 1 + max
	case Mapping:
		max := 0
		for _, p := range v.pairs {
			if d := p.Key.Depth(); d > max {
				max = d
			}
			if d := p.Value.Depth(); d > max {
				max = d
			}
		}
		return 1 + max
	default:
		return 1
	}
}

// Complexity returns the work-unit score of the subtree, used to charge
// alias expansions without re-walking the referenced structure.
func (v *Value) Complexity() int {
	switch v.kind {
	case Sequence:
		score := 1 + len(v.seq)
		for _, item := range v.seq {
			score += item.Complexity()
		}
		return score
	case Mapping:
		score := 1 + 2*len(v.pairs)
		for _, p := range v.pairs {
			score += p.Key.Complexity() + p.Value.Complexity()
		}
		return score
	default:
		return 1
	}
}

// String renders a compact JSON-like debugging representation.
func (v *Value) String() string {
	var sb strings.Builder
	v.writeTo(&sb)
	return sb.String()
}

func (v *Value) writeTo(sb *strings.Builder) {
	switch v.kind {
	case Null:
		sb.WriteString("null")
	case Bool:
		sb.WriteString(strconv.FormatBool(v.boolV))
	case Int:
		sb.WriteString(strconv.FormatInt(v.intV, 10))
	case Float:
		sb.WriteString(strconv.FormatFloat(v.floatV, 'g', -1, 64))
	case String:
		fmt.Fprintf(sb, "%q", v.strV)
	case Sequence:
		sb.WriteByte('[')
		for i, item := range v.seq {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.writeTo(sb)
		}
		sb.WriteByte(']')
	case Mapping:
		sb.WriteByte('{')
		for i, p := range v.pairs {
			if i > 0 {
				sb.WriteString(", ")
			}
			p.Key.writeTo(sb)
			sb.WriteString(": ")
			p.Value.writeTo(sb)
		}
		sb.WriteByte('}')
	}
}
