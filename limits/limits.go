// Package limits provides resource ceilings and live usage tracking for YAML
// processing under attacker-hostile input assumptions.
//
// A Limits value is read-only during a parse and may be shared between
// concurrent parse invocations. Each invocation owns its own Tracker; the
// first counter that crosses its ceiling produces a fatal, kind-typed Error
// that terminates the parse.
package limits

import (
	"fmt"
	"time"
)

// Kind identifies which resource ceiling was exceeded. Callers distinguish
// limit violations from syntax errors by kind, never by message matching.
type Kind int

const (
	DepthExceeded Kind = iota + 1
	AnchorCountExceeded
	DocumentSizeExceeded
	StringLengthExceeded
	AliasDepthExceeded
	CollectionSizeExceeded
	ComplexityExceeded
	TimedOut
)

func (k Kind) String() string {
	switch k {
	case DepthExceeded:
		return "depth exceeded"
	case AnchorCountExceeded:
		return "anchor count exceeded"
	case DocumentSizeExceeded:
		return "document size exceeded"
	case StringLengthExceeded:
		return "string length exceeded"
	case AliasDepthExceeded:
		return "alias depth exceeded"
	case CollectionSizeExceeded:
		return "collection size exceeded"
	case ComplexityExceeded:
		return "complexity score exceeded"
	case TimedOut:
		return "timed out"
	default:
		return "limit exceeded"
	}
}

// Error reports a violated resource limit. Limit is the configured ceiling
// and Actual the value that crossed it (zero for TimedOut).
type Error struct {
	Kind   Kind
	Limit  int
	Actual int
}

func (e *Error) Error() string {
	if e.Kind == TimedOut {
		return fmt.Sprintf("processing %s after %v", e.Kind, time.Duration(e.Limit))
	}
	return fmt.Sprintf("%s: %d > maximum %d", e.Kind, e.Actual, e.Limit)
}

// Limits holds the numeric ceilings consulted by every pipeline stage.
type Limits struct {
	// MaxDepth is the maximum nesting depth for collections.
	MaxDepth int
	// MaxAnchors is the maximum number of anchors in a document.
	MaxAnchors int
	// MaxDocumentSize is the maximum input size in bytes.
	MaxDocumentSize int
	// MaxStringLength is the maximum length of a single scalar in bytes.
	MaxStringLength int
	// MaxAliasDepth is the maximum structural depth an alias expansion may
	// introduce.
	MaxAliasDepth int
	// MaxCollectionSize is the maximum number of items across collections.
	MaxCollectionSize int
	// MaxComplexityScore bounds total composition work, defeating
	// amplification attacks such as deeply shared alias graphs.
	MaxComplexityScore int
	// Timeout aborts processing after the given wall-clock duration.
	// Zero disables the check.
	Timeout time.Duration
}

// Default returns limits suitable for ordinary inputs.
func Default() Limits {
	return Limits{
		MaxDepth:           1000,
		MaxAnchors:         10_000,
		MaxDocumentSize:    100 * 1024 * 1024,
		MaxStringLength:    10 * 1024 * 1024,
		MaxAliasDepth:      100,
		MaxCollectionSize:  1_000_000,
		MaxComplexityScore: 1_000_000,
	}
}

// Strict returns limits for untrusted input.
func Strict() Limits {
	return Limits{
		MaxDepth:           50,
		MaxAnchors:         100,
		MaxDocumentSize:    1024 * 1024,
		MaxStringLength:    64 * 1024,
		MaxAliasDepth:      5,
		MaxCollectionSize:  10_000,
		MaxComplexityScore: 10_000,
		Timeout:            5 * time.Second,
	}
}

// Permissive returns generous limits for trusted input.
func Permissive() Limits {
	return Limits{
		MaxDepth:           10_000,
		MaxAnchors:         100_000,
		MaxDocumentSize:    1024 * 1024 * 1024,
		MaxStringLength:    100 * 1024 * 1024,
		MaxAliasDepth:      1000,
		MaxCollectionSize:  10_000_000,
		MaxComplexityScore: 100_000_000,
	}
}

// Unlimited disables every ceiling. Use with caution.
func Unlimited() Limits {
	const max = int(^uint(0) >> 1)

	return Limits{
		MaxDepth:           max,
		MaxAnchors:         max,
		MaxDocumentSize:    max,
		MaxStringLength:    max,
		MaxAliasDepth:      max,
		MaxCollectionSize:  max,
		MaxComplexityScore: max,
	}
}

// Stats is a snapshot of tracker counters, exposed for diagnostics.
type Stats struct {
	MaxDepth        int
	AnchorCount     int
	BytesProcessed  int
	CollectionItems int
	ComplexityScore int
}

// Tracker accumulates live resource usage for one parse invocation and
// compares each counter against the configured Limits after every increment.
type Tracker struct {
	limits Limits

	depth        int
	maxDepthSeen int
	anchors      int
	bytes        int
	aliasDepth   int
	items        int
	complexity   int

	deadline    time.Time
	clockChecks int
}

// NewTracker creates a tracker bound to the given limits. The timeout clock
// starts immediately.
func NewTracker(l Limits) *Tracker {
	t := &Tracker{limits: l}
	if l.Timeout > 0 {
		t.deadline = time.Now().Add(l.Timeout)
	}
	return t
}

// Limits returns the ceilings this tracker enforces.
func (t *Tracker) Limits() Limits {
	return t.limits
}

// EnterNode records descending one nesting level.
func (t *Tracker) EnterNode() error {
	t.depth++
	if t.depth > t.maxDepthSeen {
		t.maxDepthSeen = t.depth
	}
	if t.depth > t.limits.MaxDepth {
		return &Error{Kind: DepthExceeded, Limit: t.limits.MaxDepth, Actual: t.depth}
	}
	return nil
}

// ExitNode records ascending one nesting level.
func (t *Tracker) ExitNode() {
	if t.depth > 0 {
		t.depth--
	}
}

// Depth returns the current nesting depth.
func (t *Tracker) Depth() int {
	return t.depth
}

// CheckDepth verifies that an absolute depth is within bounds without
// changing the current level. Used when an alias splices an already-composed
// subtree into the current nesting.
func (t *Tracker) CheckDepth(depth int) error {
	if depth > t.maxDepthSeen {
		t.maxDepthSeen = depth
	}
	if depth > t.limits.MaxDepth {
		return &Error{Kind: DepthExceeded, Limit: t.limits.MaxDepth, Actual: depth}
	}
	return nil
}

// AddAnchor counts one anchor definition.
func (t *Tracker) AddAnchor() error {
	t.anchors++
	if t.anchors > t.limits.MaxAnchors {
		return &Error{Kind: AnchorCountExceeded, Limit: t.limits.MaxAnchors, Actual: t.anchors}
	}
	return nil
}

// AddBytes charges consumed input bytes.
func (t *Tracker) AddBytes(n int) error {
	t.bytes += n
	if t.bytes > t.limits.MaxDocumentSize {
		return &Error{Kind: DocumentSizeExceeded, Limit: t.limits.MaxDocumentSize, Actual: t.bytes}
	}
	return nil
}

// CheckStringLength verifies a scalar length. Scanners call this while a
// scalar accumulates so oversized strings fail before full materialization.
func (t *Tracker) CheckStringLength(n int) error {
	if n > t.limits.MaxStringLength {
		return &Error{Kind: StringLengthExceeded, Limit: t.limits.MaxStringLength, Actual: n}
	}
	return nil
}

// CheckAliasDepth verifies the structural depth an alias expansion would
// introduce.
func (t *Tracker) CheckAliasDepth(depth int) error {
	if depth > t.limits.MaxAliasDepth {
		return &Error{Kind: AliasDepthExceeded, Limit: t.limits.MaxAliasDepth, Actual: depth}
	}
	return nil
}

// EnterAlias tracks one level of live alias expansion.
func (t *Tracker) EnterAlias() error {
	if t.aliasDepth+1 > t.limits.MaxAliasDepth {
		return &Error{Kind: AliasDepthExceeded, Limit: t.limits.MaxAliasDepth, Actual: t.aliasDepth + 1}
	}
	t.aliasDepth++
	return nil
}

// ExitAlias leaves one level of alias expansion.
func (t *Tracker) ExitAlias() {
	if t.aliasDepth > 0 {
		t.aliasDepth--
	}
}

// AddItem counts one collection entry.
func (t *Tracker) AddItem() error {
	t.items++
	if t.items > t.limits.MaxCollectionSize {
		return &Error{Kind: CollectionSizeExceeded, Limit: t.limits.MaxCollectionSize, Actual: t.items}
	}
	return nil
}

// AddComplexity charges composition work units.
func (t *Tracker) AddComplexity(n int) error {
	t.complexity += n
	if t.complexity > t.limits.MaxComplexityScore {
		return &Error{Kind: ComplexityExceeded, Limit: t.limits.MaxComplexityScore, Actual: t.complexity}
	}
	return nil
}

// CheckDeadline polls the wall-clock timeout. The check runs at bounded
// intervals (every 64th call consults the clock) so callers can poll per
// token without syscall overhead.
func (t *Tracker) CheckDeadline() error {
	if t.deadline.IsZero() {
		return nil
	}
	t.clockChecks++
	if t.clockChecks%64 != 1 {
		return nil
	}
	if time.Now().After(t.deadline) {
		return &Error{Kind: TimedOut, Limit: int(t.limits.Timeout)}
	}
	return nil
}

// Reset clears all counters for a new document. The deadline keeps running:
// the timeout bounds the whole invocation, not each document.
func (t *Tracker) Reset() {
	t.depth = 0
	t.maxDepthSeen = 0
	t.anchors = 0
	t.bytes = 0
	t.aliasDepth = 0
	t.items = 0
	t.complexity = 0
}

// Stats returns a snapshot of the counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		MaxDepth:        t.maxDepthSeen,
		AnchorCount:     t.anchors,
		BytesProcessed:  t.bytes,
		CollectionItems: t.items,
		ComplexityScore: t.complexity,
	}
}
