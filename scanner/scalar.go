package scanner

import (
	"strings"
	"unicode/utf8"

	"github.com/shibukawa/safeyaml/token"
)

type chomping int

const (
	chompClip chomping = iota
	chompStrip
	chompKeep
)

func (s *Scanner) fetchPlainScalar() error {
	s.saveSimpleKey()
	s.allowSimpleKey = false
	tok, err := s.scanPlain()
	if err != nil {
		return err
	}
	s.emit(tok)
	return nil
}

// scanPlain reads a plain scalar, folding continuation lines: a single line
// break becomes a space, n breaks become n-1 newlines. The scalar ends at a
// ': ' indicator, a ' #' comment, a flow indicator (in flow context), a line
// at or left of the enclosing indentation, or a document marker.
func (s *Scanner) scanPlain() (token.Token, error) {
	start := s.mark()
	end := s.mark()
	indent := s.indent + 1
	var sb strings.Builder
	pendingSpaces := ""
	pendingBreaks := 0

	for !s.eof() {
		c := s.peek(0)
		if c == '#' && (pendingSpaces != "" || pendingBreaks > 0) {
			break
		}
		if isBreak(c) {
			s.skipBreak()
			pendingSpaces = ""
			pendingBreaks++
			for !s.eof() && s.peek(0) == ' ' {
				s.advance(1)
			}
			if s.eof() {
				break
			}
			next := s.peek(0)
			if !isBreak(next) && s.col < indent {
				break
			}
			if s.col == 0 && (s.atDocumentIndicator("---") || s.atDocumentIndicator("...")) {
				break
			}
			continue
		}
		if isBlank(c) {
			if pendingBreaks == 0 {
				pendingSpaces += string(c)
			}
			s.advance(1)
			continue
		}
		if c == ':' {
			next := s.peek(1)
			if isBlankBreakOrZero(next) || (s.flowLevel > 0 && isFlowIndicator(next)) {
				break
			}
		}
		if s.flowLevel > 0 && isFlowIndicator(c) {
			break
		}

		if pendingBreaks > 0 {
			if pendingBreaks == 1 {
				sb.WriteByte(' ')
			} else {
				sb.WriteString(strings.Repeat("\n", pendingBreaks-1))
			}
			pendingBreaks = 0
		} else if pendingSpaces != "" {
			sb.WriteString(pendingSpaces)
			pendingSpaces = ""
		}

		_, size := utf8.DecodeRuneInString(s.src[s.pos:])
		sb.WriteString(s.src[s.pos : s.pos+size])
		s.advance(size)
		end = s.mark()

		if err := s.tracker.CheckStringLength(sb.Len()); err != nil {
			return token.Token{}, s.limitError(err)
		}
		if s.limitErr != nil {
			return token.Token{}, s.limitError(s.limitErr)
		}
	}
	if pendingBreaks > 0 {
		// The scalar ended after a line break, so the next line may start a
		// fresh simple key.
		s.allowSimpleKey = s.flowLevel == 0
	}
	return token.Token{
		Type:  token.SCALAR,
		Value: sb.String(),
		Style: token.StylePlain,
		Start: start,
		End:   end,
	}, nil
}

func (s *Scanner) fetchFlowScalar(style token.ScalarStyle) error {
	s.saveSimpleKey()
	s.allowSimpleKey = false
	tok, err := s.scanFlowScalar(style)
	if err != nil {
		return err
	}
	s.emit(tok)
	return nil
}

func (s *Scanner) scanFlowScalar(style token.ScalarStyle) (token.Token, error) {
	start := s.mark()
	single := style == token.StyleSingleQuoted
	s.advance(1)

	var sb strings.Builder
	pendingSpaces := ""
	pendingBreaks := 0

	flush := func() {
		if pendingBreaks > 0 {
			if pendingBreaks == 1 {
				sb.WriteByte(' ')
			} else {
				sb.WriteString(strings.Repeat("\n", pendingBreaks-1))
			}
			pendingBreaks = 0
		} else if pendingSpaces != "" {
			sb.WriteString(pendingSpaces)
		}
		pendingSpaces = ""
	}

	for {
		if s.eof() {
			return token.Token{}, s.errorf(start, ErrUnterminatedQuote, "")
		}
		if err := s.tracker.CheckStringLength(sb.Len()); err != nil {
			return token.Token{}, s.limitError(err)
		}
		if s.limitErr != nil {
			return token.Token{}, s.limitError(s.limitErr)
		}
		c := s.peek(0)
		if isBreak(c) {
			s.skipBreak()
			pendingSpaces = ""
			pendingBreaks++
			for !s.eof() && isBlank(s.peek(0)) {
				s.advance(1)
			}
			continue
		}
		if single && c == '\'' {
			if s.peek(1) == '\'' {
				flush()
				sb.WriteByte('\'')
				s.advance(2)
				continue
			}
			s.advance(1)
			break
		}
		if !single && c == '"' {
			s.advance(1)
			break
		}
		if !single && c == '\\' {
			flush()
			if isBreak(s.peek(1)) {
				// Escaped line break: join without a separator.
				s.advance(1)
				s.skipBreak()
				for !s.eof() && isBlank(s.peek(0)) {
					s.advance(1)
				}
				continue
			}
			r, err := s.scanEscape()
			if err != nil {
				return token.Token{}, err
			}
			sb.WriteRune(r)
			continue
		}
		if isBlank(c) {
			if pendingBreaks == 0 {
				pendingSpaces += string(c)
			}
			s.advance(1)
			continue
		}
		flush()
		_, size := utf8.DecodeRuneInString(s.src[s.pos:])
		sb.WriteString(s.src[s.pos : s.pos+size])
		s.advance(size)
	}

	return token.Token{
		Type:  token.SCALAR,
		Value: sb.String(),
		Style: style,
		Start: start,
		End:   s.mark(),
	}, nil
}

// scanEscape decodes one double-quoted escape sequence, positioned at the
// backslash.
func (s *Scanner) scanEscape() (rune, error) {
	pos := s.mark()
	s.advance(1)
	if s.eof() {
		return 0, s.errorf(pos, ErrInvalidEscape, "truncated escape")
	}
	c := s.peek(0)
	var r rune
	switch c {
	case '0':
		r = 0
	case 'a':
		r = '\a'
	case 'b':
		r = '\b'
	case 't', '\t':
		r = '\t'
	case 'n':
		r = '\n'
	case 'v':
		r = '\v'
	case 'f':
		r = '\f'
	case 'r':
		r = '\r'
	case 'e':
		r = 0x1b
	case ' ':
		r = ' '
	case '"':
		r = '"'
	case '/':
		r = '/'
	case '\\':
		r = '\\'
	case 'N':
		r = 0x85
	case '_':
		r = 0xa0
	case 'L':
		r = 0x2028
	case 'P':
		r = 0x2029
	case 'x', 'u', 'U':
		width := 2
		if c == 'u' {
			width = 4
		} else if c == 'U' {
			width = 8
		}
		s.advance(1)
		v := rune(0)
		for i := 0; i < width; i++ {
			h := s.peek(i)
			switch {
			case h >= '0' && h <= '9':
				v = v<<4 | rune(h-'0')
			case h >= 'a' && h <= 'f':
				v = v<<4 | rune(h-'a'+10)
			case h >= 'A' && h <= 'F':
				v = v<<4 | rune(h-'A'+10)
			default:
				return 0, s.errorf(pos, ErrInvalidEscape, "expected %d hex digits", width)
			}
		}
		if !utf8.ValidRune(v) {
			return 0, s.errorf(pos, ErrInvalidEscape, "invalid code point %#x", v)
		}
		s.advance(width)
		return v, nil
	default:
		return 0, s.errorf(pos, ErrInvalidEscape, "\\%c", c)
	}
	s.advance(1)
	return r, nil
}

func (s *Scanner) fetchBlockScalar(style token.ScalarStyle) error {
	s.removeSimpleKey()
	s.allowSimpleKey = true
	tok, err := s.scanBlockScalar(style)
	if err != nil {
		return err
	}
	s.emit(tok)
	return nil
}

// scanBlockScalar reads a | or > scalar: header with optional chomping and
// explicit indentation indicators, then every following line indented beyond
// the enclosing block (or blank).
func (s *Scanner) scanBlockScalar(style token.ScalarStyle) (token.Token, error) {
	start := s.mark()
	s.advance(1)

	chomp := chompClip
	increment := 0
	seenChomp := false
	for !s.eof() {
		c := s.peek(0)
		switch {
		case c == '+' || c == '-':
			if seenChomp {
				return token.Token{}, s.errorf(start, ErrUnexpectedCharacter, "repeated chomping indicator")
			}
			seenChomp = true
			if c == '+' {
				chomp = chompKeep
			} else {
				chomp = chompStrip
			}
			s.advance(1)
			continue
		case c == '0':
			return token.Token{}, s.errorf(start, ErrUnexpectedCharacter, "indentation indicator must be 1-9")
		case c >= '1' && c <= '9':
			if increment > 0 {
				return token.Token{}, s.errorf(start, ErrUnexpectedCharacter, "repeated indentation indicator")
			}
			increment = int(c - '0')
			s.advance(1)
			continue
		}
		break
	}
	s.skipLineBlanks()
	if !s.eof() && s.peek(0) == '#' {
		for !s.eof() && !isBreak(s.peek(0)) {
			s.advance(1)
		}
	}
	if !s.eof() && !isBreak(s.peek(0)) {
		return token.Token{}, s.errorf(start, ErrUnexpectedCharacter, "unexpected character after block scalar header")
	}
	if !s.eof() {
		s.skipBreak()
	}

	parentIndent := s.indent
	blockIndent := 0
	detecting := increment == 0
	if !detecting {
		base := parentIndent
		if base < 0 {
			base = 0
		}
		blockIndent = base + increment
	}

	var raw []string
	total := 0
	for !s.eof() {
		// Measure the line before consuming it: the terminating line
		// belongs to the enclosing block.
		j := s.pos
		n := 0
		for j < len(s.src) && s.src[j] == ' ' {
			j++
			n++
		}
		k := j
		for k < len(s.src) && !isBreak(s.src[k]) {
			k++
		}
		hasContent := k > j
		if hasContent {
			if s.src[j] == '\t' && n < blockIndent {
				return token.Token{}, s.errorf(token.Position{Line: s.line, Column: n + 1, Offset: j}, ErrTabIndentation, "")
			}
			if detecting {
				if n <= parentIndent {
					break
				}
				blockIndent = n
				detecting = false
			} else if n < blockIndent {
				break
			}
			if n == 0 && (s.atDocumentIndicator("---") || s.atDocumentIndicator("...")) {
				break
			}
		}
		line := s.src[s.pos:k]
		s.advance(k - s.pos)
		if !s.eof() {
			s.skipBreak()
		}
		raw = append(raw, line)
		total += len(line) + 1
		if err := s.tracker.CheckStringLength(total); err != nil {
			return token.Token{}, s.limitError(err)
		}
		if s.limitErr != nil {
			return token.Token{}, s.limitError(s.limitErr)
		}
	}

	lines := make([]string, len(raw))
	for i, ln := range raw {
		if len(ln) > blockIndent {
			lines[i] = ln[blockIndent:]
		}
	}

	var value string
	if style == token.StyleLiteral {
		value = buildLiteral(lines, chomp)
	} else {
		value = buildFolded(lines, chomp)
	}
	s.allowSimpleKey = true
	return token.Token{
		Type:  token.SCALAR,
		Value: value,
		Style: style,
		Start: start,
		End:   s.mark(),
	}, nil
}

func buildLiteral(lines []string, chomp chomping) string {
	lastContent := -1
	for i, ln := range lines {
		if ln != "" {
			lastContent = i
		}
	}
	if lastContent < 0 {
		if chomp == chompKeep {
			return strings.Repeat("\n", len(lines))
		}
		return ""
	}
	core := strings.Join(lines[:lastContent+1], "\n")
	trailing := len(lines) - lastContent - 1
	switch chomp {
	case chompStrip:
		return core
	case chompKeep:
		return core + strings.Repeat("\n", trailing+1)
	default:
		return core + "\n"
	}
}

// buildFolded joins lines per folding rules: a single break between two
// non-indented content lines becomes a space, k breaks become k-1 newlines,
// and breaks adjacent to more-indented lines stay literal.
func buildFolded(lines []string, chomp chomping) string {
	var sb strings.Builder
	emptyRun := 0
	started := false
	prevMore := false
	for _, ln := range lines {
		if ln == "" {
			emptyRun++
			continue
		}
		more := ln[0] == ' ' || ln[0] == '\t'
		if !started {
			sb.WriteString(strings.Repeat("\n", emptyRun))
		} else if prevMore || more {
			sb.WriteString(strings.Repeat("\n", emptyRun+1))
		} else if emptyRun == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(strings.Repeat("\n", emptyRun))
		}
		sb.WriteString(ln)
		started = true
		prevMore = more
		emptyRun = 0
	}
	core := sb.String()
	switch chomp {
	case chompStrip:
		return core
	case chompKeep:
		if started {
			return core + strings.Repeat("\n", emptyRun+1)
		}
		return strings.Repeat("\n", emptyRun)
	default:
		if core != "" {
			return core + "\n"
		}
		return ""
	}
}
