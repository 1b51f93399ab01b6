// Package parser turns scanner tokens into structural events.
//
// The grammar is walked with an explicit state stack instead of recursion:
// nesting depth becomes a counter the resource tracker can bound, and the
// machine suspends cleanly between events for streaming input. Each Next
// call consumes tokens until exactly one event is produced.
package parser

import (
	"iter"

	"github.com/shibukawa/safeyaml/limits"
	"github.com/shibukawa/safeyaml/scanner"
	"github.com/shibukawa/safeyaml/token"
)

type state int

const (
	stateStreamStart state = iota
	stateImplicitDocumentStart
	stateDocumentStart
	stateDocumentContent
	stateDocumentEnd
	stateBlockSequenceFirstEntry
	stateBlockSequenceEntry
	stateIndentlessSequenceEntry
	stateBlockMappingFirstKey
	stateBlockMappingKey
	stateBlockMappingValue
	stateFlowSequenceFirstEntry
	stateFlowSequenceEntry
	stateFlowSequenceEntryMappingKey
	stateFlowSequenceEntryMappingValue
	stateFlowSequenceEntryMappingEnd
	stateFlowMappingFirstKey
	stateFlowMappingKey
	stateFlowMappingValue
	stateFlowMappingEmptyValue
	stateEnd
)

// Parser produces events from a token stream.
type Parser struct {
	scanner *scanner.Scanner
	tracker *limits.Tracker

	state  state
	states []state

	tok *token.Token // lookahead

	version     string // active %YAML version, persists across documents
	pendingTags []TagDirective

	err error
}

// New creates a parser over the given token source.
func New(s *scanner.Scanner, tracker *limits.Tracker) *Parser {
	return &Parser{scanner: s, tracker: tracker, state: stateStreamStart}
}

// NewForSource scans src with a fresh scanner and parses it.
func NewForSource(src string, tracker *limits.Tracker) *Parser {
	return New(scanner.New(src, tracker), tracker)
}

// Next returns the next event. After the StreamEnd event it returns
// (nil, nil). After an error every subsequent call returns the same error.
func (p *Parser) Next() (*Event, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.state == stateEnd {
		return nil, nil
	}
	ev, err := p.step()
	if err != nil {
		p.err = err
		return nil, err
	}
	return ev, nil
}

// Events returns an iterator over the event stream. Iteration stops after
// StreamEnd or the first error.
func (p *Parser) Events() iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		for {
			ev, err := p.Next()
			if err != nil {
				yield(Event{}, err)
				return
			}
			if ev == nil {
				return
			}
			if !yield(*ev, nil) {
				return
			}
		}
	}
}

func (p *Parser) peek() (*token.Token, error) {
	if p.tok == nil {
		tok, err := p.scanner.Next()
		if err != nil {
			return nil, err
		}
		p.tok = tok
	}
	return p.tok, nil
}

func (p *Parser) skip() {
	p.tok = nil
}

func (p *Parser) push(s state) {
	p.states = append(p.states, s)
}

func (p *Parser) pop() state {
	s := p.states[len(p.states)-1]
	p.states = p.states[:len(p.states)-1]
	return s
}

func (p *Parser) enter() error {
	if err := p.tracker.EnterNode(); err != nil {
		return p.limitError(err)
	}
	return nil
}

func (p *Parser) emptyScalar(pos token.Position, anchor string, tag *Tag) *Event {
	return &Event{Type: Scalar, Anchor: anchor, Tag: tag, Style: token.StylePlain, Start: pos, End: pos}
}

func (p *Parser) step() (*Event, error) {
	switch p.state {
	case stateStreamStart:
		return p.parseStreamStart()
	case stateImplicitDocumentStart:
		return p.parseDocumentStart(true)
	case stateDocumentStart:
		return p.parseDocumentStart(false)
	case stateDocumentContent:
		return p.parseDocumentContent()
	case stateDocumentEnd:
		return p.parseDocumentEnd()
	case stateBlockSequenceFirstEntry, stateBlockSequenceEntry:
		return p.parseBlockSequenceEntry()
	case stateIndentlessSequenceEntry:
		return p.parseIndentlessSequenceEntry()
	case stateBlockMappingFirstKey, stateBlockMappingKey:
		return p.parseBlockMappingKey()
	case stateBlockMappingValue:
		return p.parseBlockMappingValue()
	case stateFlowSequenceFirstEntry:
		return p.parseFlowSequenceEntry(true)
	case stateFlowSequenceEntry:
		return p.parseFlowSequenceEntry(false)
	case stateFlowSequenceEntryMappingKey:
		return p.parseFlowSequenceEntryMappingKey()
	case stateFlowSequenceEntryMappingValue:
		return p.parseFlowSequenceEntryMappingValue()
	case stateFlowSequenceEntryMappingEnd:
		return p.parseFlowSequenceEntryMappingEnd()
	case stateFlowMappingFirstKey:
		return p.parseFlowMappingKey(true)
	case stateFlowMappingKey:
		return p.parseFlowMappingKey(false)
	case stateFlowMappingValue:
		return p.parseFlowMappingValue(false)
	case stateFlowMappingEmptyValue:
		return p.parseFlowMappingValue(true)
	default:
		tok, _ := p.peek()
		pos := token.Start()
		if tok != nil {
			pos = tok.Start
		}
		return nil, p.errorf(pos, ErrUnexpectedToken, "invalid parser state")
	}
}

func (p *Parser) parseStreamStart() (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	p.state = stateImplicitDocumentStart
	return &Event{Type: StreamStart, Start: tok.Start, End: tok.Start}, nil
}

func (p *Parser) parseDocumentStart(implicit bool) (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	// Stray "..." markers between documents are harmless.
	for tok.Type == token.DOCUMENT_END {
		p.skip()
		if tok, err = p.peek(); err != nil {
			return nil, err
		}
	}

	sawDirective := false
	for tok.Type == token.YAML_DIRECTIVE || tok.Type == token.TAG_DIRECTIVE {
		sawDirective = true
		if tok.Type == token.YAML_DIRECTIVE {
			p.version = tok.Value
		} else {
			p.addTagDirective(TagDirective{Handle: tok.Handle, Prefix: tok.Suffix})
		}
		p.skip()
		if tok, err = p.peek(); err != nil {
			return nil, err
		}
	}

	if tok.Type == token.EOF && !sawDirective {
		p.state = stateEnd
		return &Event{Type: StreamEnd, Start: tok.Start, End: tok.End}, nil
	}

	ev := &Event{
		Type:          DocumentStart,
		Version:       p.version,
		TagDirectives: append([]TagDirective(nil), p.pendingTags...),
		Start:         tok.Start,
		End:           tok.Start,
	}
	if tok.Type == token.DOCUMENT_START {
		p.skip()
		ev.Explicit = true
		ev.End = tok.End
	} else if sawDirective || !implicit {
		return nil, p.errorf(tok.Start, ErrDirectivesWithoutDocument, "")
	}
	p.push(stateDocumentEnd)
	p.state = stateDocumentContent
	return ev, nil
}

func (p *Parser) addTagDirective(d TagDirective) {
	for i := range p.pendingTags {
		if p.pendingTags[i].Handle == d.Handle {
			p.pendingTags[i] = d
			return
		}
	}
	p.pendingTags = append(p.pendingTags, d)
}

func (p *Parser) parseDocumentContent() (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case token.YAML_DIRECTIVE, token.TAG_DIRECTIVE, token.DOCUMENT_START, token.DOCUMENT_END, token.EOF:
		// empty document body
		p.state = p.pop()
		return p.emptyScalar(tok.Start, "", nil), nil
	}
	return p.parseNode(true, false)
}

func (p *Parser) parseDocumentEnd() (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	ev := &Event{Type: DocumentEnd, Start: tok.Start, End: tok.Start}
	if tok.Type == token.DOCUMENT_END {
		p.skip()
		ev.Explicit = true
		ev.End = tok.End
	}
	// %TAG associations are scoped to one document
	p.pendingTags = nil
	p.state = stateDocumentStart
	return ev, nil
}

// parseNode parses a complete node start. block enables block collections;
// indentless enables a sequence whose entries sit at the enclosing mapping's
// own column, which is only legal as a block mapping key or value.
func (p *Parser) parseNode(block, indentless bool) (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	start := tok.Start
	var anchor string
	var tag *Tag

	for {
		if tok.Type == token.ANCHOR && anchor == "" {
			anchor = tok.Value
			p.skip()
		} else if tok.Type == token.TAG && tag == nil {
			tag = &Tag{Handle: tok.Handle, Suffix: tok.Suffix}
			p.skip()
		} else {
			break
		}
		if tok, err = p.peek(); err != nil {
			return nil, err
		}
	}

	switch tok.Type {
	case token.ALIAS:
		if anchor != "" || tag != nil {
			return nil, p.errorf(tok.Start, ErrAliasProperties, "*%s", tok.Value)
		}
		p.skip()
		p.state = p.pop()
		return &Event{Type: Alias, Value: tok.Value, Start: tok.Start, End: tok.End}, nil
	case token.SCALAR:
		p.skip()
		p.state = p.pop()
		return &Event{
			Type: Scalar, Anchor: anchor, Tag: tag,
			Value: tok.Value, Style: tok.Style,
			Start: start, End: tok.End,
		}, nil
	case token.FLOW_SEQUENCE_START:
		if err := p.enter(); err != nil {
			return nil, err
		}
		p.skip()
		p.state = stateFlowSequenceFirstEntry
		return &Event{Type: SequenceStart, Anchor: anchor, Tag: tag, Flow: true, Start: start, End: tok.End}, nil
	case token.FLOW_MAPPING_START:
		if err := p.enter(); err != nil {
			return nil, err
		}
		p.skip()
		p.state = stateFlowMappingFirstKey
		return &Event{Type: MappingStart, Anchor: anchor, Tag: tag, Flow: true, Start: start, End: tok.End}, nil
	case token.BLOCK_SEQUENCE_START:
		if block {
			if err := p.enter(); err != nil {
				return nil, err
			}
			p.skip()
			p.state = stateBlockSequenceFirstEntry
			return &Event{Type: SequenceStart, Anchor: anchor, Tag: tag, Start: start, End: tok.End}, nil
		}
	case token.BLOCK_MAPPING_START:
		if block {
			if err := p.enter(); err != nil {
				return nil, err
			}
			p.skip()
			p.state = stateBlockMappingFirstKey
			return &Event{Type: MappingStart, Anchor: anchor, Tag: tag, Start: start, End: tok.End}, nil
		}
	case token.BLOCK_ENTRY:
		if indentless {
			if err := p.enter(); err != nil {
				return nil, err
			}
			// the entry token itself is consumed by the entry state
			p.state = stateIndentlessSequenceEntry
			return &Event{Type: SequenceStart, Anchor: anchor, Tag: tag, Start: start, End: tok.Start}, nil
		}
	}

	if anchor != "" || tag != nil {
		// properties with no node, e.g. "key: !!str" followed by a dedent
		p.state = p.pop()
		return p.emptyScalar(start, anchor, tag), nil
	}
	return nil, p.errorf(tok.Start, ErrUnexpectedToken, "%s while parsing a node", tok.Type)
}

func (p *Parser) parseBlockSequenceEntry() (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case token.BLOCK_ENTRY:
		p.skip()
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next.Type == token.BLOCK_ENTRY || next.Type == token.BLOCK_END {
			p.state = stateBlockSequenceEntry
			return p.emptyScalar(tok.End, "", nil), nil
		}
		p.push(stateBlockSequenceEntry)
		return p.parseNode(true, false)
	case token.BLOCK_END:
		p.skip()
		p.tracker.ExitNode()
		p.state = p.pop()
		return &Event{Type: SequenceEnd, Start: tok.Start, End: tok.End}, nil
	}
	return nil, p.errorf(tok.Start, ErrUnexpectedToken, "%s while parsing a block sequence", tok.Type)
}

func (p *Parser) parseIndentlessSequenceEntry() (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Type != token.BLOCK_ENTRY {
		// The sequence ends at the first token that is not another entry:
		// the enclosing mapping's next key, value or end.
		p.tracker.ExitNode()
		p.state = p.pop()
		return &Event{Type: SequenceEnd, Start: tok.Start, End: tok.Start}, nil
	}
	p.skip()
	next, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch next.Type {
	case token.BLOCK_ENTRY, token.KEY, token.VALUE, token.BLOCK_END:
		p.state = stateIndentlessSequenceEntry
		return p.emptyScalar(tok.End, "", nil), nil
	}
	p.push(stateIndentlessSequenceEntry)
	return p.parseNode(true, false)
}

func (p *Parser) parseBlockMappingKey() (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case token.KEY:
		p.skip()
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch next.Type {
		case token.KEY, token.VALUE, token.BLOCK_END:
			p.state = stateBlockMappingValue
			return p.emptyScalar(tok.End, "", nil), nil
		}
		p.push(stateBlockMappingValue)
		return p.parseNode(true, true)
	case token.VALUE:
		// value with no key, e.g. a line starting with ':'
		p.state = stateBlockMappingValue
		return p.emptyScalar(tok.Start, "", nil), nil
	case token.BLOCK_END:
		p.skip()
		p.tracker.ExitNode()
		p.state = p.pop()
		return &Event{Type: MappingEnd, Start: tok.Start, End: tok.End}, nil
	}
	return nil, p.errorf(tok.Start, ErrUnexpectedToken, "%s while parsing a block mapping", tok.Type)
}

func (p *Parser) parseBlockMappingValue() (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Type != token.VALUE {
		// key without a value
		p.state = stateBlockMappingKey
		return p.emptyScalar(tok.Start, "", nil), nil
	}
	p.skip()
	next, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch next.Type {
	case token.KEY, token.VALUE, token.BLOCK_END:
		p.state = stateBlockMappingKey
		return p.emptyScalar(tok.End, "", nil), nil
	}
	p.push(stateBlockMappingKey)
	return p.parseNode(true, true)
}

func (p *Parser) parseFlowSequenceEntry(first bool) (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Type != token.FLOW_SEQUENCE_END && !first {
		if tok.Type != token.FLOW_ENTRY {
			return nil, p.errorf(tok.Start, ErrUnexpectedToken, "expected ',' or ']' in flow sequence")
		}
		p.skip()
		if tok, err = p.peek(); err != nil {
			return nil, err
		}
	}
	if tok.Type == token.FLOW_SEQUENCE_END {
		p.skip()
		p.tracker.ExitNode()
		p.state = p.pop()
		return &Event{Type: SequenceEnd, Start: tok.Start, End: tok.End}, nil
	}
	if tok.Type == token.KEY {
		// single-pair mapping entry: [a: b]
		if err := p.enter(); err != nil {
			return nil, err
		}
		p.skip()
		p.state = stateFlowSequenceEntryMappingKey
		return &Event{Type: MappingStart, Flow: true, Start: tok.Start, End: tok.End}, nil
	}
	p.push(stateFlowSequenceEntry)
	return p.parseNode(false, false)
}

func (p *Parser) parseFlowSequenceEntryMappingKey() (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case token.VALUE, token.FLOW_ENTRY, token.FLOW_SEQUENCE_END:
		p.state = stateFlowSequenceEntryMappingValue
		return p.emptyScalar(tok.Start, "", nil), nil
	}
	p.push(stateFlowSequenceEntryMappingValue)
	return p.parseNode(false, false)
}

func (p *Parser) parseFlowSequenceEntryMappingValue() (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Type == token.VALUE {
		p.skip()
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next.Type != token.FLOW_ENTRY && next.Type != token.FLOW_SEQUENCE_END {
			p.push(stateFlowSequenceEntryMappingEnd)
			return p.parseNode(false, false)
		}
		p.state = stateFlowSequenceEntryMappingEnd
		return p.emptyScalar(tok.End, "", nil), nil
	}
	p.state = stateFlowSequenceEntryMappingEnd
	return p.emptyScalar(tok.Start, "", nil), nil
}

func (p *Parser) parseFlowSequenceEntryMappingEnd() (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	p.tracker.ExitNode()
	p.state = stateFlowSequenceEntry
	return &Event{Type: MappingEnd, Start: tok.Start, End: tok.Start}, nil
}

func (p *Parser) parseFlowMappingKey(first bool) (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if tok.Type != token.FLOW_MAPPING_END && !first {
		if tok.Type != token.FLOW_ENTRY {
			return nil, p.errorf(tok.Start, ErrUnexpectedToken, "expected ',' or '}' in flow mapping")
		}
		p.skip()
		if tok, err = p.peek(); err != nil {
			return nil, err
		}
	}
	switch tok.Type {
	case token.FLOW_MAPPING_END:
		p.skip()
		p.tracker.ExitNode()
		p.state = p.pop()
		return &Event{Type: MappingEnd, Start: tok.Start, End: tok.End}, nil
	case token.KEY:
		p.skip()
		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		switch next.Type {
		case token.VALUE, token.FLOW_ENTRY, token.FLOW_MAPPING_END:
			p.state = stateFlowMappingValue
			return p.emptyScalar(tok.End, "", nil), nil
		}
		p.push(stateFlowMappingValue)
		return p.parseNode(false, false)
	case token.VALUE:
		p.state = stateFlowMappingValue
		return p.emptyScalar(tok.Start, "", nil), nil
	}
	// bare key with no ':', e.g. {a}
	p.push(stateFlowMappingEmptyValue)
	return p.parseNode(false, false)
}

func (p *Parser) parseFlowMappingValue(empty bool) (*Event, error) {
	tok, err := p.peek()
	if err != nil {
		return nil, err
	}
	if empty || tok.Type != token.VALUE {
		p.state = stateFlowMappingKey
		return p.emptyScalar(tok.Start, "", nil), nil
	}
	p.skip()
	next, err := p.peek()
	if err != nil {
		return nil, err
	}
	if next.Type != token.FLOW_ENTRY && next.Type != token.FLOW_MAPPING_END {
		p.push(stateFlowMappingKey)
		return p.parseNode(false, false)
	}
	p.state = stateFlowMappingKey
	return p.emptyScalar(tok.End, "", nil), nil
}
