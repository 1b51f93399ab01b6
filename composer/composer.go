// Package composer builds value graphs from parse events.
//
// All reference resolution happens here: anchors and aliases, merge keys,
// tag constructors and plain-scalar typing. It is also where every
// amplification-shaped attack is stopped, because aliases and merges are
// the only places where small inputs can produce large outputs. Subtree
// depth and complexity are recorded once per anchor definition and charged
// per alias use without re-walking the subtree.
package composer

import (
	"iter"

	"github.com/shibukawa/safeyaml/limits"
	"github.com/shibukawa/safeyaml/parser"
	"github.com/shibukawa/safeyaml/token"
	"github.com/shibukawa/safeyaml/value"
)

// DuplicateKeyPolicy selects what happens when a mapping key repeats.
type DuplicateKeyPolicy int

const (
	DuplicateError DuplicateKeyPolicy = iota
	DuplicateFirstWins
	DuplicateLastWins
)

// Options configure one composer.
type Options struct {
	Loader        LoaderType
	Schema        Schema
	DuplicateKeys DuplicateKeyPolicy
	// StrictTags turns an unregistered explicit tag into an error instead
	// of falling back to natural resolution.
	StrictTags bool
	// SharedAliases returns the anchored subtree itself for each alias
	// instead of a deep copy. The result is a DAG; mutating one branch
	// mutates all of them.
	SharedAliases bool
	// KeepTracker carries resource counters across documents in a stream
	// instead of resetting them per document.
	KeepTracker bool
	// Registry overrides the constructor table built from Loader.
	Registry *Registry
}

type anchorEntry struct {
	v          *value.Value
	inProgress bool
	depth      int
	complexity int
}

type frame struct {
	v       *value.Value
	tag     string
	entry   *anchorEntry
	key     *value.Value
	haveKey bool

	mergePending bool
	merges       []*value.Value

	start token.Position
}

// Composer consumes events and produces one value per document.
type Composer struct {
	parser   *parser.Parser
	tracker  *limits.Tracker
	opts     Options
	registry *Registry

	anchors  map[string]*anchorEntry
	tagTable map[string]string

	started bool
	done    bool
	err     error
}

// New creates a composer over an event source.
func New(p *parser.Parser, tracker *limits.Tracker, opts Options) *Composer {
	if opts.Loader == LoaderBase && opts.Schema == SchemaCore {
		// the failsafe constructor set pairs with failsafe resolution
		opts.Schema = SchemaFailsafe
	}
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry(opts.Loader)
	}
	return &Composer{parser: p, tracker: tracker, opts: opts, registry: reg}
}

// NewForSource composes documents from src with a fresh scanner and parser.
func NewForSource(src string, tracker *limits.Tracker, opts Options) *Composer {
	return New(parser.NewForSource(src, tracker), tracker, opts)
}

// Registry exposes the constructor table, for registration under
// LoaderFull.
func (c *Composer) Registry() *Registry {
	return c.registry
}

// Stats reports the tracker's resource counters.
func (c *Composer) Stats() limits.Stats {
	return c.tracker.Stats()
}

// ComposeNext returns the next document's value, or (nil, nil) once the
// stream is exhausted. After an error every subsequent call returns the
// same error.
func (c *Composer) ComposeNext() (*value.Value, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.done {
		return nil, nil
	}
	root, err := c.composeNext()
	if err != nil {
		c.err = err
		return nil, err
	}
	return root, nil
}

// Documents returns an iterator over the stream's documents. Iteration
// stops at stream end or the first error.
func (c *Composer) Documents() iter.Seq2[*value.Value, error] {
	return func(yield func(*value.Value, error) bool) {
		for {
			v, err := c.ComposeNext()
			if err != nil {
				yield(nil, err)
				return
			}
			if v == nil {
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

func (c *Composer) composeNext() (*value.Value, error) {
	if !c.started {
		ev, err := c.parser.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil || ev.Type != parser.StreamStart {
			return nil, c.errorf(eventPos(ev), ErrUnexpectedEvent, "expected stream start")
		}
		c.started = true
	}

	ev, err := c.parser.Next()
	if err != nil {
		return nil, err
	}
	if ev == nil || ev.Type == parser.StreamEnd {
		c.done = true
		return nil, nil
	}
	if ev.Type != parser.DocumentStart {
		return nil, c.errorf(eventPos(ev), ErrUnexpectedEvent, "expected document start, got %s", ev.Type)
	}
	c.beginDocument(ev)

	root, err := c.composeDocument()
	if err != nil {
		return nil, err
	}

	end, err := c.parser.Next()
	if err != nil {
		return nil, err
	}
	if end == nil || end.Type != parser.DocumentEnd {
		return nil, c.errorf(eventPos(end), ErrUnexpectedEvent, "expected document end")
	}
	return root, nil
}

func eventPos(ev *parser.Event) token.Position {
	if ev == nil {
		return token.Start()
	}
	return ev.Start
}

// beginDocument sets up per-document state: fresh anchor table, the %TAG
// handle table over the two default handles, and a tracker reset.
func (c *Composer) beginDocument(ev *parser.Event) {
	c.anchors = map[string]*anchorEntry{}
	c.tagTable = map[string]string{"!": "!", "!!": YAMLTagPrefix}
	for _, d := range ev.TagDirectives {
		c.tagTable[d.Handle] = d.Prefix
	}
	if !c.opts.KeepTracker {
		c.tracker.Reset()
	}
}

func (c *Composer) composeDocument() (*value.Value, error) {
	var stack []frame
	for {
		ev, err := c.parser.Next()
		if err != nil {
			return nil, err
		}
		if ev == nil {
			return nil, c.errorf(token.Start(), ErrUnexpectedEvent, "stream ended inside a document")
		}
		if err := c.tracker.CheckDeadline(); err != nil {
			return nil, c.limitError(ev.Start, err)
		}

		switch ev.Type {
		case parser.Scalar:
			if n := len(stack); n > 0 {
				f := &stack[n-1]
				if f.v.Kind() == value.Mapping && !f.haveKey && !f.mergePending &&
					ev.Style == token.StylePlain && ev.Tag == nil && ev.Anchor == "" && ev.Value == "<<" {
					f.mergePending = true
					continue
				}
			}
			v, err := c.scalarValue(ev)
			if err != nil {
				return nil, err
			}
			if err := c.tracker.AddComplexity(1); err != nil {
				return nil, c.limitError(ev.Start, err)
			}
			if ev.Anchor != "" {
				if err := c.defineAnchor(ev.Anchor, v, ev.Start); err != nil {
					return nil, err
				}
			}
			if root, done, err := c.place(stack, v, ev.Start); done || err != nil {
				return root, err
			}

		case parser.Alias:
			v, err := c.resolveAlias(ev)
			if err != nil {
				return nil, err
			}
			if root, done, err := c.place(stack, v, ev.Start); done || err != nil {
				return root, err
			}

		case parser.SequenceStart, parser.MappingStart:
			uri, err := c.resolveTagURI(ev.Tag, ev.Start)
			if err != nil {
				return nil, err
			}
			var v *value.Value
			if ev.Type == parser.MappingStart {
				v = value.NewMapping()
			} else {
				v = value.NewSequence()
			}
			v.SetFlow(ev.Flow)
			if err := c.tracker.AddComplexity(1); err != nil {
				return nil, c.limitError(ev.Start, err)
			}
			var entry *anchorEntry
			if ev.Anchor != "" {
				if err := c.tracker.AddAnchor(); err != nil {
					return nil, c.limitError(ev.Start, err)
				}
				entry = &anchorEntry{inProgress: true}
				c.anchors[ev.Anchor] = entry
			}
			stack = append(stack, frame{v: v, tag: uri, entry: entry, start: ev.Start})

		case parser.SequenceEnd, parser.MappingEnd:
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			v, err := c.finishCollection(&f, ev.Start)
			if err != nil {
				return nil, err
			}
			if root, done, err := c.place(stack, v, ev.Start); done || err != nil {
				return root, err
			}

		default:
			return nil, c.errorf(ev.Start, ErrUnexpectedEvent, "%s inside a document", ev.Type)
		}
	}
}

// place attaches v to the innermost open collection. When no collection is
// open, v is the document root and composition is done.
func (c *Composer) place(stack []frame, v *value.Value, pos token.Position) (*value.Value, bool, error) {
	if len(stack) == 0 {
		return v, true, nil
	}
	f := &stack[len(stack)-1]
	if f.v.Kind() == value.Sequence {
		if err := c.tracker.AddItem(); err != nil {
			return nil, false, c.limitError(pos, err)
		}
		if err := c.tracker.AddComplexity(1); err != nil {
			return nil, false, c.limitError(pos, err)
		}
		f.v.Append(v)
		return nil, false, nil
	}
	if f.mergePending {
		f.merges = append(f.merges, v)
		f.mergePending = false
		return nil, false, nil
	}
	if !f.haveKey {
		f.key = v
		f.haveKey = true
		return nil, false, nil
	}
	if err := c.tracker.AddItem(); err != nil {
		return nil, false, c.limitError(pos, err)
	}
	if err := c.tracker.AddComplexity(2); err != nil {
		return nil, false, c.limitError(pos, err)
	}
	err := c.insertPair(f, v, pos)
	f.key = nil
	f.haveKey = false
	return nil, false, err
}

func (c *Composer) insertPair(f *frame, v *value.Value, pos token.Position) error {
	if f.v.Has(f.key) {
		switch c.opts.DuplicateKeys {
		case DuplicateFirstWins:
			return nil
		case DuplicateLastWins:
			f.v.Set(f.key, v)
			return nil
		default:
			return c.errorf(pos, ErrDuplicateKey, "%s", f.key)
		}
	}
	f.v.Set(f.key, v)
	return nil
}

func (c *Composer) finishCollection(f *frame, pos token.Position) (*value.Value, error) {
	if f.mergePending {
		// "<<" was the last key and never received a value
		return nil, c.errorf(pos, ErrInvalidMergeValue, "merge key without a value")
	}
	if f.haveKey {
		// trailing key without a value gets an explicit null
		if err := c.tracker.AddItem(); err != nil {
			return nil, c.limitError(pos, err)
		}
		if err := c.tracker.AddComplexity(2); err != nil {
			return nil, c.limitError(pos, err)
		}
		if err := c.insertPair(f, value.NewNull(), pos); err != nil {
			return nil, err
		}
		f.haveKey = false
	}
	if len(f.merges) > 0 {
		if err := c.applyMerges(f, pos); err != nil {
			return nil, err
		}
	}

	v := f.v
	if f.tag != "" && f.tag != "!" {
		if fn, ok := c.registry.collection(f.tag); ok {
			nv, err := fn(v)
			if err != nil {
				return nil, &Error{Pos: f.start, Err: err}
			}
			v = nv
		} else if c.opts.StrictTags {
			return nil, c.errorf(f.start, ErrUnknownTag, "%s", f.tag)
		}
	}

	if f.entry != nil {
		f.entry.v = v
		f.entry.depth = v.Depth()
		f.entry.complexity = v.Complexity()
		f.entry.inProgress = false
	}
	return v, nil
}

// applyMerges folds the collected merge sources into the mapping. Explicit
// keys always win; among the sources themselves, later wins. Merged keys
// are charged against the collection and complexity limits even when an
// explicit key overrides them.
func (c *Composer) applyMerges(f *frame, pos token.Position) error {
	merged := value.NewMapping()
	for _, src := range f.merges {
		switch src.Kind() {
		case value.Mapping:
			for _, p := range src.Pairs() {
				merged.Set(p.Key, p.Value)
			}
		case value.Sequence:
			for _, item := range src.Items() {
				if item.Kind() != value.Mapping {
					return c.errorf(pos, ErrInvalidMergeValue, "sequence element is %s", item.Kind())
				}
				for _, p := range item.Pairs() {
					merged.Set(p.Key, p.Value)
				}
			}
		default:
			return c.errorf(pos, ErrInvalidMergeValue, "%s", src.Kind())
		}
	}
	for _, p := range merged.Pairs() {
		if err := c.tracker.AddItem(); err != nil {
			return c.limitError(pos, err)
		}
		if err := c.tracker.AddComplexity(2); err != nil {
			return c.limitError(pos, err)
		}
		if !f.v.Has(p.Key) {
			f.v.Set(p.Key, p.Value)
		}
	}
	return nil
}

func (c *Composer) defineAnchor(name string, v *value.Value, pos token.Position) error {
	if err := c.tracker.AddAnchor(); err != nil {
		return c.limitError(pos, err)
	}
	c.anchors[name] = &anchorEntry{v: v, depth: v.Depth(), complexity: v.Complexity()}
	return nil
}

func (c *Composer) resolveAlias(ev *parser.Event) (*value.Value, error) {
	entry, ok := c.anchors[ev.Value]
	if !ok {
		return nil, c.errorf(ev.Start, ErrUndefinedAlias, "*%s", ev.Value)
	}
	if entry.inProgress {
		return nil, c.errorf(ev.Start, ErrCyclicReference, "*%s", ev.Value)
	}
	if err := c.tracker.EnterAlias(); err != nil {
		return nil, c.limitError(ev.Start, err)
	}
	defer c.tracker.ExitAlias()
	if err := c.tracker.CheckAliasDepth(entry.depth); err != nil {
		return nil, c.limitError(ev.Start, err)
	}
	if err := c.tracker.CheckDepth(c.tracker.Depth() + entry.depth); err != nil {
		return nil, c.limitError(ev.Start, err)
	}
	if err := c.tracker.AddComplexity(entry.complexity); err != nil {
		return nil, c.limitError(ev.Start, err)
	}
	if c.opts.SharedAliases {
		return entry.v, nil
	}
	return entry.v.Clone(), nil
}

func (c *Composer) scalarValue(ev *parser.Event) (*value.Value, error) {
	uri, err := c.resolveTagURI(ev.Tag, ev.Start)
	if err != nil {
		return nil, err
	}
	var v *value.Value
	switch {
	case uri == "":
		if ev.Style == token.StylePlain {
			v = c.opts.Schema.Resolve(ev.Value)
		} else {
			v = value.NewString(ev.Value)
		}
	case uri == "!":
		// non-specific "!" forces the failsafe type
		v = value.NewString(ev.Value)
	default:
		if fn, ok := c.registry.scalar(uri); ok {
			v, err = fn(ev.Value)
			if err != nil {
				return nil, &Error{Pos: ev.Start, Err: err}
			}
		} else if c.opts.StrictTags {
			return nil, c.errorf(ev.Start, ErrUnknownTag, "%s", uri)
		} else if ev.Style == token.StylePlain {
			v = c.opts.Schema.Resolve(ev.Value)
		} else {
			v = value.NewString(ev.Value)
		}
	}
	if ev.Style != token.StylePlain {
		v.SetStyle(ev.Style)
	}
	return v, nil
}

// resolveTagURI expands a tag's handle against the active %TAG table. A
// verbatim !<uri> tag passes through, and the bare "!" non-specific tag is
// returned as "!".
func (c *Composer) resolveTagURI(t *parser.Tag, pos token.Position) (string, error) {
	if t == nil {
		return "", nil
	}
	if t.Handle == "" {
		return t.Suffix, nil
	}
	if t.Handle == "!" && t.Suffix == "" {
		return "!", nil
	}
	prefix, ok := c.tagTable[t.Handle]
	if !ok {
		return "", c.errorf(pos, ErrUnknownTag, "undeclared handle %q", t.Handle)
	}
	return prefix + t.Suffix, nil
}
