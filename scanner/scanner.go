// Package scanner converts YAML text into positioned tokens.
//
// The scanner owns the two context rules that make YAML context sensitive:
// the indentation-column stack (a nested block may begin only at a column
// strictly greater than its enclosing block's indentation) and the flow
// nesting counter. Simple keys ("a: b") are detected retroactively through a
// token queue: when a ':' indicator resolves a pending key, KEY and
// BLOCK_MAPPING_START tokens are inserted in front of the already-queued key
// node.
//
// Every consumed byte is charged to the resource tracker, so oversized
// documents abort immediately regardless of surrounding well-formedness.
package scanner

import (
	"iter"
	"strings"

	"github.com/shibukawa/safeyaml/limits"
	"github.com/shibukawa/safeyaml/token"
)

// simpleKey remembers a token that may turn out to be a mapping key once a
// later ':' indicator is scanned.
type simpleKey struct {
	possible   bool
	tokenIndex int // absolute token number where KEY would be inserted
	pos        token.Position
}

// Scanner turns an in-memory buffer into a token stream.
type Scanner struct {
	src     string
	tracker *limits.Tracker

	pos  int // byte offset
	line int // 1-based
	col  int // 0-based

	tokens      []token.Token
	tokensTaken int // count of tokens already handed to the caller

	indent  int // current block indentation column (0-based), -1 at stream start
	indents []int

	flowLevel      int
	simpleKeys     []simpleKey // one slot per flow level, plus the block slot
	allowSimpleKey bool

	tokenThisLine bool // a token already started on the current line

	done     bool
	err      error
	limitErr error
}

// New creates a scanner over src, charging consumption to tracker.
func New(src string, tracker *limits.Tracker) *Scanner {
	s := &Scanner{
		src:            src,
		tracker:        tracker,
		line:           1,
		indent:         -1,
		simpleKeys:     make([]simpleKey, 1),
		allowSimpleKey: true,
	}
	if len(src) > tracker.Limits().MaxDocumentSize {
		s.limitErr = &limits.Error{
			Kind:   limits.DocumentSizeExceeded,
			Limit:  tracker.Limits().MaxDocumentSize,
			Actual: len(src),
		}
	}
	return s
}

// Next returns the next token. At end of input it returns a token of type
// EOF, repeatedly. After an error every subsequent call returns the same
// error: stream position is unreliable past a scan failure.
func (s *Scanner) Next() (*token.Token, error) {
	if s.err != nil {
		return nil, s.err
	}
	for {
		if len(s.tokens) > 0 && !s.keyPendingAtHead() {
			break
		}
		if s.done {
			if len(s.tokens) == 0 {
				return &token.Token{Type: token.EOF, Start: s.mark(), End: s.mark()}, nil
			}
			break
		}
		if err := s.fetchNextToken(); err != nil {
			s.err = err
			return nil, err
		}
	}
	tok := s.tokens[0]
	s.tokens = s.tokens[1:]
	s.tokensTaken++
	return &tok, nil
}

// Tokens returns an iterator over the token stream. Iteration stops after
// yielding the EOF token or the first error.
func (s *Scanner) Tokens() iter.Seq2[token.Token, error] {
	return func(yield func(token.Token, error) bool) {
		for {
			tok, err := s.Next()
			if err != nil {
				yield(token.Token{}, err)
				return
			}
			if !yield(*tok, nil) {
				return
			}
			if tok.Type == token.EOF {
				return
			}
		}
	}
}

// keyPendingAtHead reports whether an unresolved simple key still points at
// the queue head. The head token cannot be released while a KEY might have
// to be inserted in front of it.
func (s *Scanner) keyPendingAtHead() bool {
	for i := range s.simpleKeys {
		sk := &s.simpleKeys[i]
		if sk.possible && sk.tokenIndex == s.tokensTaken {
			return true
		}
	}
	return false
}

func (s *Scanner) mark() token.Position {
	return token.Position{Line: s.line, Column: s.col + 1, Offset: s.pos}
}

func (s *Scanner) peek(i int) byte {
	if s.pos+i < len(s.src) {
		return s.src[s.pos+i]
	}
	return 0
}

func (s *Scanner) eof() bool {
	return s.pos >= len(s.src)
}

func isBlank(c byte) bool {
	return c == ' ' || c == '\t'
}

func isBreak(c byte) bool {
	return c == '\n' || c == '\r'
}

// isBlankBreakOrZero treats the zero byte as end of input.
func isBlankBreakOrZero(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == 0
}

func isFlowIndicator(c byte) bool {
	return c == ',' || c == '[' || c == ']' || c == '{' || c == '}'
}

// advance consumes n bytes of non-break content, charging them to the
// tracker. Line breaks must go through skipBreak.
func (s *Scanner) advance(n int) {
	for i := 0; i < n; i++ {
		if s.src[s.pos]&0xC0 != 0x80 { // count runes, not continuation bytes
			s.col++
		}
		s.pos++
	}
	s.charge(n)
}

// skipBreak consumes one line break (\n, \r or \r\n) and resets the column.
func (s *Scanner) skipBreak() {
	n := 1
	if s.peek(0) == '\r' && s.peek(1) == '\n' {
		n = 2
	}
	s.pos += n
	s.line++
	s.col = 0
	s.tokenThisLine = false
	s.charge(n)
}

func (s *Scanner) charge(n int) {
	if err := s.tracker.AddBytes(n); err != nil && s.limitErr == nil {
		s.limitErr = err
	}
}

func (s *Scanner) emit(tok token.Token) {
	s.tokens = append(s.tokens, tok)
	s.tokenThisLine = true
}

func (s *Scanner) insertToken(index int, tok token.Token) {
	s.tokens = append(s.tokens, token.Token{})
	copy(s.tokens[index+1:], s.tokens[index:])
	s.tokens[index] = tok
}

func (s *Scanner) simple(typ token.Type, pos token.Position) token.Token {
	return token.Token{Type: typ, Start: pos, End: pos}
}

// rollIndent begins a new block collection at the given column. number is
// the absolute token index where the start token must be inserted, or -1 to
// append.
func (s *Scanner) rollIndent(col, number int, typ token.Type, pos token.Position) {
	if s.flowLevel > 0 {
		return
	}
	if s.indent < col {
		s.indents = append(s.indents, s.indent)
		s.indent = col
		tok := s.simple(typ, pos)
		if number == -1 {
			s.emit(tok)
		} else {
			s.insertToken(number-s.tokensTaken, tok)
		}
	}
}

// unrollIndent closes block collections whose indentation column exceeds
// col, emitting one BLOCK_END per closed level.
func (s *Scanner) unrollIndent(col int) {
	if s.flowLevel > 0 {
		return
	}
	for s.indent > col {
		s.emit(s.simple(token.BLOCK_END, s.mark()))
		if len(s.indents) > 0 {
			s.indent = s.indents[len(s.indents)-1]
			s.indents = s.indents[:len(s.indents)-1]
		} else {
			s.indent = -1
		}
	}
}

func (s *Scanner) saveSimpleKey() {
	if !s.allowSimpleKey {
		return
	}
	s.simpleKeys[len(s.simpleKeys)-1] = simpleKey{
		possible:   true,
		tokenIndex: s.tokensTaken + len(s.tokens),
		pos:        s.mark(),
	}
}

func (s *Scanner) removeSimpleKey() {
	s.simpleKeys[len(s.simpleKeys)-1].possible = false
}

// staleSimpleKeys expires pending keys whose line has already passed: an
// implicit key and its ':' must share a line.
func (s *Scanner) staleSimpleKeys() {
	for i := range s.simpleKeys {
		sk := &s.simpleKeys[i]
		if sk.possible && sk.pos.Line < s.line {
			sk.possible = false
		}
	}
}

func (s *Scanner) fetchNextToken() error {
	if err := s.scanToNextToken(); err != nil {
		return err
	}
	if s.limitErr != nil {
		return s.limitError(s.limitErr)
	}
	if err := s.tracker.CheckDeadline(); err != nil {
		return s.limitError(err)
	}
	s.staleSimpleKeys()
	if s.eof() {
		return s.fetchStreamEnd()
	}
	s.unrollIndent(s.col)

	c := s.peek(0)
	if s.col == 0 {
		switch {
		case c == '%':
			return s.fetchDirective()
		case s.atDocumentIndicator("---"):
			return s.fetchDocumentIndicator(token.DOCUMENT_START)
		case s.atDocumentIndicator("..."):
			return s.fetchDocumentIndicator(token.DOCUMENT_END)
		}
	}

	switch c {
	case '[':
		return s.fetchFlowCollectionStart(token.FLOW_SEQUENCE_START)
	case '{':
		return s.fetchFlowCollectionStart(token.FLOW_MAPPING_START)
	case ']':
		return s.fetchFlowCollectionEnd(token.FLOW_SEQUENCE_END)
	case '}':
		return s.fetchFlowCollectionEnd(token.FLOW_MAPPING_END)
	case ',':
		return s.fetchFlowEntry()
	case '-':
		if isBlankBreakOrZero(s.peek(1)) {
			return s.fetchBlockEntry()
		}
	case '?':
		if s.flowLevel > 0 || isBlankBreakOrZero(s.peek(1)) {
			return s.fetchKey()
		}
	case ':':
		if s.flowLevel > 0 || isBlankBreakOrZero(s.peek(1)) {
			return s.fetchValue()
		}
	case '*':
		return s.fetchAnchorOrAlias(token.ALIAS)
	case '&':
		return s.fetchAnchorOrAlias(token.ANCHOR)
	case '!':
		return s.fetchTag()
	case '|':
		if s.flowLevel == 0 {
			return s.fetchBlockScalar(token.StyleLiteral)
		}
		return s.errorf(s.mark(), ErrMisplacedIndicator, "block scalar in flow context")
	case '>':
		if s.flowLevel == 0 {
			return s.fetchBlockScalar(token.StyleFolded)
		}
		return s.errorf(s.mark(), ErrMisplacedIndicator, "block scalar in flow context")
	case '\'':
		return s.fetchFlowScalar(token.StyleSingleQuoted)
	case '"':
		return s.fetchFlowScalar(token.StyleDoubleQuoted)
	case '@', '`':
		return s.errorf(s.mark(), ErrUnexpectedCharacter, "reserved indicator %q", c)
	}
	if c < 0x20 || c == 0x7f {
		return s.errorf(s.mark(), ErrUnexpectedCharacter, "control character %#x", c)
	}
	return s.fetchPlainScalar()
}

// scanToNextToken skips whitespace, comments and line breaks up to the next
// token start, enforcing the no-tabs-in-indentation rule in block context.
func (s *Scanner) scanToNextToken() error {
	for !s.eof() {
		c := s.peek(0)
		switch {
		case c == ' ':
			s.advance(1)
		case c == '\t':
			if s.flowLevel == 0 && !s.tokenThisLine {
				if err := s.checkTabIndent(); err != nil {
					return err
				}
			}
			s.advance(1)
		case c == '#':
			for !s.eof() && !isBreak(s.peek(0)) {
				s.advance(1)
			}
		case isBreak(c):
			s.skipBreak()
			if s.flowLevel == 0 {
				s.allowSimpleKey = true
			}
		default:
			return nil
		}
	}
	return nil
}

// checkTabIndent rejects a tab inside the leading whitespace of a line that
// carries content. Tabs before comments or on blank lines are harmless.
func (s *Scanner) checkTabIndent() error {
	j := s.pos
	for j < len(s.src) && isBlank(s.src[j]) {
		j++
	}
	if j < len(s.src) && s.src[j] != '#' && !isBreak(s.src[j]) {
		return s.errorf(s.mark(), ErrTabIndentation, "")
	}
	return nil
}

func (s *Scanner) atDocumentIndicator(marker string) bool {
	if !strings.HasPrefix(s.src[s.pos:], marker) {
		return false
	}
	return isBlankBreakOrZero(s.peek(3))
}

func (s *Scanner) fetchStreamEnd() error {
	s.unrollIndent(-1)
	for i := range s.simpleKeys {
		s.simpleKeys[i].possible = false
	}
	s.allowSimpleKey = false
	s.emit(s.simple(token.EOF, s.mark()))
	s.done = true
	return nil
}

func (s *Scanner) fetchDocumentIndicator(typ token.Type) error {
	s.unrollIndent(-1)
	for i := range s.simpleKeys {
		s.simpleKeys[i].possible = false
	}
	s.allowSimpleKey = false
	pos := s.mark()
	s.advance(3)
	s.emit(token.Token{Type: typ, Start: pos, End: s.mark()})
	return nil
}

func (s *Scanner) fetchFlowCollectionStart(typ token.Type) error {
	s.saveSimpleKey()
	s.simpleKeys = append(s.simpleKeys, simpleKey{})
	s.flowLevel++
	s.allowSimpleKey = true
	pos := s.mark()
	s.advance(1)
	s.emit(token.Token{Type: typ, Start: pos, End: s.mark()})
	return nil
}

func (s *Scanner) fetchFlowCollectionEnd(typ token.Type) error {
	s.removeSimpleKey()
	if s.flowLevel > 0 {
		s.flowLevel--
		s.simpleKeys = s.simpleKeys[:len(s.simpleKeys)-1]
	}
	s.allowSimpleKey = false
	pos := s.mark()
	s.advance(1)
	s.emit(token.Token{Type: typ, Start: pos, End: s.mark()})
	return nil
}

func (s *Scanner) fetchFlowEntry() error {
	s.removeSimpleKey()
	s.allowSimpleKey = true
	pos := s.mark()
	s.advance(1)
	s.emit(token.Token{Type: token.FLOW_ENTRY, Start: pos, End: s.mark()})
	return nil
}

func (s *Scanner) fetchBlockEntry() error {
	if s.flowLevel == 0 {
		if !s.allowSimpleKey {
			return s.errorf(s.mark(), ErrMisplacedIndicator, "block sequence entry")
		}
		s.rollIndent(s.col, -1, token.BLOCK_SEQUENCE_START, s.mark())
	}
	s.removeSimpleKey()
	s.allowSimpleKey = true
	pos := s.mark()
	s.advance(1)
	s.emit(token.Token{Type: token.BLOCK_ENTRY, Start: pos, End: s.mark()})
	return nil
}

func (s *Scanner) fetchKey() error {
	if s.flowLevel == 0 {
		if !s.allowSimpleKey {
			return s.errorf(s.mark(), ErrMisplacedIndicator, "mapping key")
		}
		s.rollIndent(s.col, -1, token.BLOCK_MAPPING_START, s.mark())
	}
	s.removeSimpleKey()
	s.allowSimpleKey = s.flowLevel == 0
	pos := s.mark()
	s.advance(1)
	s.emit(token.Token{Type: token.KEY, Start: pos, End: s.mark()})
	return nil
}

func (s *Scanner) fetchValue() error {
	sk := &s.simpleKeys[len(s.simpleKeys)-1]
	if sk.possible {
		s.insertToken(sk.tokenIndex-s.tokensTaken, s.simple(token.KEY, sk.pos))
		s.rollIndent(sk.pos.Column-1, sk.tokenIndex, token.BLOCK_MAPPING_START, sk.pos)
		sk.possible = false
		s.allowSimpleKey = false
	} else {
		if s.flowLevel == 0 {
			if !s.allowSimpleKey {
				return s.errorf(s.mark(), ErrMisplacedIndicator, "mapping value")
			}
			s.rollIndent(s.col, -1, token.BLOCK_MAPPING_START, s.mark())
		}
		s.allowSimpleKey = s.flowLevel == 0
	}
	pos := s.mark()
	s.advance(1)
	s.emit(token.Token{Type: token.VALUE, Start: pos, End: s.mark()})
	return nil
}

func (s *Scanner) fetchAnchorOrAlias(typ token.Type) error {
	s.saveSimpleKey()
	s.allowSimpleKey = false
	pos := s.mark()
	s.advance(1)
	start := s.pos
	for !s.eof() {
		c := s.peek(0)
		if isBlankBreakOrZero(c) || isFlowIndicator(c) {
			break
		}
		s.advance(1)
	}
	name := s.src[start:s.pos]
	if name == "" {
		return s.errorf(pos, ErrInvalidAnchorName, "empty name")
	}
	s.emit(token.Token{Type: typ, Value: name, Start: pos, End: s.mark()})
	return nil
}

// fetchTag scans !, !suffix, !!suffix, !handle!suffix and !<uri> forms. The
// handle/suffix split is preserved so the composer can expand handles
// against the active %TAG table.
func (s *Scanner) fetchTag() error {
	s.saveSimpleKey()
	s.allowSimpleKey = false
	pos := s.mark()

	if s.peek(1) == '<' {
		s.advance(2)
		start := s.pos
		for !s.eof() && s.peek(0) != '>' && !isBreak(s.peek(0)) {
			s.advance(1)
		}
		if s.peek(0) != '>' {
			return s.errorf(pos, ErrMalformedTag, "unterminated verbatim tag")
		}
		uri := s.src[start:s.pos]
		s.advance(1)
		if uri == "" {
			return s.errorf(pos, ErrMalformedTag, "empty verbatim tag")
		}
		s.emit(token.Token{Type: token.TAG, Suffix: uri, Start: pos, End: s.mark()})
		return nil
	}

	s.advance(1)
	start := s.pos
	for !s.eof() {
		c := s.peek(0)
		if isBlankBreakOrZero(c) || isFlowIndicator(c) {
			break
		}
		s.advance(1)
	}
	body := s.src[start:s.pos]

	handle, suffix := "!", body
	switch {
	case body == "":
		suffix = ""
	case body[0] == '!':
		handle, suffix = "!!", body[1:]
		if suffix == "" {
			return s.errorf(pos, ErrMalformedTag, "empty secondary tag")
		}
	default:
		if i := strings.IndexByte(body, '!'); i >= 0 {
			handle, suffix = "!"+body[:i+1], body[i+1:]
			if suffix == "" {
				return s.errorf(pos, ErrMalformedTag, "empty suffix after handle %q", handle)
			}
		}
	}
	s.emit(token.Token{Type: token.TAG, Handle: handle, Suffix: suffix, Start: pos, End: s.mark()})
	return nil
}

// fetchDirective scans %YAML and %TAG lines. Unknown directives are skipped,
// matching common YAML processor behavior.
func (s *Scanner) fetchDirective() error {
	s.unrollIndent(-1)
	s.removeSimpleKey()
	s.allowSimpleKey = false
	pos := s.mark()
	s.advance(1)

	start := s.pos
	for !s.eof() && !isBlankBreakOrZero(s.peek(0)) {
		s.advance(1)
	}
	name := s.src[start:s.pos]

	switch name {
	case "YAML":
		s.skipLineBlanks()
		vstart := s.pos
		for !s.eof() && !isBlankBreakOrZero(s.peek(0)) {
			s.advance(1)
		}
		version := s.src[vstart:s.pos]
		if !isValidVersion(version) {
			return s.errorf(pos, ErrMalformedDirective, "invalid %%YAML version %q", version)
		}
		if err := s.expectLineEnd(pos); err != nil {
			return err
		}
		s.emit(token.Token{Type: token.YAML_DIRECTIVE, Value: version, Start: pos, End: s.mark()})
	case "TAG":
		s.skipLineBlanks()
		hstart := s.pos
		for !s.eof() && !isBlankBreakOrZero(s.peek(0)) {
			s.advance(1)
		}
		handle := s.src[hstart:s.pos]
		if len(handle) < 1 || handle[0] != '!' || (len(handle) > 1 && handle[len(handle)-1] != '!') {
			return s.errorf(pos, ErrMalformedDirective, "invalid %%TAG handle %q", handle)
		}
		s.skipLineBlanks()
		pstart := s.pos
		for !s.eof() && !isBlankBreakOrZero(s.peek(0)) {
			s.advance(1)
		}
		prefix := s.src[pstart:s.pos]
		if prefix == "" {
			return s.errorf(pos, ErrMalformedDirective, "missing %%TAG prefix")
		}
		if err := s.expectLineEnd(pos); err != nil {
			return err
		}
		s.emit(token.Token{Type: token.TAG_DIRECTIVE, Handle: handle, Suffix: prefix, Start: pos, End: s.mark()})
	default:
		// Unknown directive: consume the rest of the line.
		for !s.eof() && !isBreak(s.peek(0)) {
			s.advance(1)
		}
	}
	return nil
}

func (s *Scanner) skipLineBlanks() {
	for !s.eof() && isBlank(s.peek(0)) {
		s.advance(1)
	}
}

// expectLineEnd verifies that only blanks or a comment remain on the line.
func (s *Scanner) expectLineEnd(pos token.Position) error {
	s.skipLineBlanks()
	if s.eof() || isBreak(s.peek(0)) {
		return nil
	}
	if s.peek(0) == '#' {
		for !s.eof() && !isBreak(s.peek(0)) {
			s.advance(1)
		}
		return nil
	}
	return s.errorf(pos, ErrMalformedDirective, "trailing characters")
}

func isValidVersion(v string) bool {
	major, minor, ok := strings.Cut(v, ".")
	if !ok || major == "" || minor == "" {
		return false
	}
	for _, part := range []string{major, minor} {
		for i := 0; i < len(part); i++ {
			if part[i] < '0' || part[i] > '9' {
				return false
			}
		}
	}
	return true
}
