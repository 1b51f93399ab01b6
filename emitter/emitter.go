// Package emitter serializes value graphs back to text.
//
// Subtrees shared by pointer identity are emitted once with a generated
// anchor and referenced with aliases afterwards, so a DAG loaded with
// shared aliases round-trips without exploding. A well-formed value never
// fails to serialize; errors come only from the output sink.
package emitter

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shibukawa/safeyaml/token"
	"github.com/shibukawa/safeyaml/value"
)

// Options control rendering.
type Options struct {
	// Indent is the step width for nested block collections. Default 2.
	Indent int
	// LineWidth caps the width a flow collection may take on one line
	// before falling back to block style. Default 80.
	LineWidth int
	// ExplicitStart emits a --- marker before every document.
	ExplicitStart bool
	// ExplicitEnd emits a ... marker after every document.
	ExplicitEnd bool
	// ForceFlow renders every collection in flow style.
	ForceFlow bool
	// ForceBlock renders every non-empty collection in block style,
	// ignoring preserved flow hints.
	ForceBlock bool
}

// Emitter renders values with a fixed set of options.
type Emitter struct {
	opts Options
}

// New creates an emitter. Zero-valued options get defaults.
func New(opts Options) *Emitter {
	if opts.Indent <= 0 {
		opts.Indent = 2
	}
	if opts.LineWidth <= 0 {
		opts.LineWidth = 80
	}
	return &Emitter{opts: opts}
}

// Dump renders one document.
func (e *Emitter) Dump(v *value.Value) (string, error) {
	var sb strings.Builder
	if err := e.DumpTo(&sb, v); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// DumpTo renders one document into w.
func (e *Emitter) DumpTo(w io.Writer, v *value.Value) error {
	return e.DumpAllTo(w, []*value.Value{v})
}

// DumpAll renders a document stream separated by --- markers.
func (e *Emitter) DumpAll(docs []*value.Value) (string, error) {
	var sb strings.Builder
	if err := e.DumpAllTo(&sb, docs); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// DumpAllTo renders a document stream into w.
func (e *Emitter) DumpAllTo(w io.Writer, docs []*value.Value) error {
	s := &sink{w: w}
	for i, doc := range docs {
		if doc == nil {
			doc = value.NewNull()
		}
		if i > 0 || e.opts.ExplicitStart {
			s.WriteString("---\n")
		}
		d := &docEmitter{e: e, s: s}
		d.collectShared(doc)
		d.block(doc, 0, "")
		if e.opts.ExplicitEnd {
			s.WriteString("...\n")
		}
		if s.err != nil {
			return s.err
		}
	}
	return s.err
}

type sink struct {
	w   io.Writer
	err error
}

func (s *sink) WriteString(str string) {
	if s.err == nil {
		_, s.err = io.WriteString(s.w, str)
	}
}

type docEmitter struct {
	e *Emitter
	s *sink

	shared  map[*value.Value]string
	emitted map[*value.Value]bool
	nextID  int
}

// collectShared walks the graph counting pointer occurrences; every value
// reached more than once gets an anchor name.
func (d *docEmitter) collectShared(v *value.Value) {
	d.shared = map[*value.Value]string{}
	d.emitted = map[*value.Value]bool{}
	seen := map[*value.Value]bool{}
	var walk func(n *value.Value)
	walk = func(n *value.Value) {
		if n == nil {
			return
		}
		if seen[n] {
			if _, ok := d.shared[n]; !ok {
				d.nextID++
				d.shared[n] = "a" + strconv.Itoa(d.nextID)
			}
			return
		}
		seen[n] = true
		switch n.Kind() {
		case value.Sequence:
			for _, item := range n.Items() {
				walk(item)
			}
		case value.Mapping:
			for _, p := range n.Pairs() {
				walk(p.Key)
				walk(p.Value)
			}
		}
	}
	walk(v)
}

// aliasName reports the anchor to reference when v was already emitted.
func (d *docEmitter) aliasName(v *value.Value) string {
	if name, ok := d.shared[v]; ok && d.emitted[v] {
		return name
	}
	return ""
}

// defineAnchor returns "&name" the first time a shared value is emitted.
func (d *docEmitter) defineAnchor(v *value.Value) string {
	name, ok := d.shared[v]
	if !ok || d.emitted[v] {
		return ""
	}
	d.emitted[v] = true
	return "&" + name
}

func (d *docEmitter) line(col int, text string) {
	d.s.WriteString(strings.Repeat(" ", col))
	d.s.WriteString(text)
	d.s.WriteString("\n")
}

func joinParts(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

func (d *docEmitter) useFlow(v *value.Value) bool {
	if d.e.opts.ForceBlock {
		return v.Len() == 0
	}
	return d.e.opts.ForceFlow || v.Flow() || v.Len() == 0
}

// block emits v as a block node. lead is text (such as "- ") already owed
// at column col on the node's first line; continuation lines indent past it.
func (d *docEmitter) block(v *value.Value, col int, lead string) {
	if name := d.aliasName(v); name != "" {
		d.line(col, joinParts(strings.TrimRight(lead, " "), "*"+name))
		return
	}
	inner := col + len(lead)

	switch v.Kind() {
	case value.Sequence:
		if d.useFlow(v) {
			d.line(col, joinParts(strings.TrimRight(lead, " "), d.flowText(v)))
			return
		}
		if anchor := d.defineAnchor(v); anchor != "" {
			d.line(col, joinParts(strings.TrimRight(lead, " "), anchor))
			lead = ""
		}
		for i, item := range v.Items() {
			itemCol, itemLead := inner, "- "
			if i == 0 && lead != "" {
				itemCol, itemLead = col, lead+"- "
			}
			d.block(item, itemCol, itemLead)
		}
	case value.Mapping:
		if d.useFlow(v) {
			d.line(col, joinParts(strings.TrimRight(lead, " "), d.flowText(v)))
			return
		}
		if anchor := d.defineAnchor(v); anchor != "" {
			d.line(col, joinParts(strings.TrimRight(lead, " "), anchor))
			lead = ""
		}
		for i, p := range v.Pairs() {
			pairCol, pairLead := inner, ""
			if i == 0 && lead != "" {
				pairCol, pairLead = col, lead
			}
			d.blockPair(p, pairCol, pairLead)
		}
	default:
		anchor := d.defineAnchor(v)
		if s, ok := v.AsString(); ok && strings.Contains(s, "\n") && literalOK(s) {
			header, body := literalBlock(s, inner+d.e.opts.Indent)
			d.line(col, joinParts(strings.TrimRight(lead, " "), anchor, header))
			d.s.WriteString(body)
			return
		}
		d.line(col, joinParts(strings.TrimRight(lead, " "), anchor, d.scalarText(v, false)))
	}
}

func (d *docEmitter) blockPair(p value.Pair, col int, lead string) {
	key := p.Key
	inner := col + len(lead)
	if !isScalarKind(key) || isMultiline(key) {
		// complex key: explicit ? / : form
		d.block(key, col, lead+"? ")
		d.block(p.Value, inner, ": ")
		return
	}
	kText := d.scalarText(key, false)
	val := p.Value

	if name := d.aliasName(val); name != "" {
		d.line(col, lead+kText+": *"+name)
		return
	}
	if s, ok := val.AsString(); ok && strings.Contains(s, "\n") && literalOK(s) {
		header, body := literalBlock(s, inner+d.e.opts.Indent)
		d.line(col, joinParts(lead+kText+":", d.defineAnchor(val), header))
		d.s.WriteString(body)
		return
	}
	switch val.Kind() {
	case value.Sequence, value.Mapping:
		if d.useFlow(val) {
			d.line(col, joinParts(lead+kText+":", d.flowText(val)))
			return
		}
		d.line(col, lead+kText+":")
		d.block(val, inner+d.e.opts.Indent, "")
	default:
		d.line(col, joinParts(lead+kText+":", d.defineAnchor(val), d.scalarText(val, false)))
	}
}

// flowText renders v inline, recursively in flow style.
func (d *docEmitter) flowText(v *value.Value) string {
	if name := d.aliasName(v); name != "" {
		return "*" + name
	}
	anchor := d.defineAnchor(v)
	var body string
	switch v.Kind() {
	case value.Sequence:
		parts := make([]string, 0, v.Len())
		for _, item := range v.Items() {
			parts = append(parts, d.flowText(item))
		}
		body = "[" + strings.Join(parts, ", ") + "]"
	case value.Mapping:
		parts := make([]string, 0, v.Len())
		for _, p := range v.Pairs() {
			parts = append(parts, d.flowText(p.Key)+": "+d.flowText(p.Value))
		}
		body = "{" + strings.Join(parts, ", ") + "}"
	default:
		body = d.scalarText(v, true)
	}
	return joinParts(anchor, body)
}

func isScalarKind(v *value.Value) bool {
	switch v.Kind() {
	case value.Sequence, value.Mapping:
		return false
	}
	return true
}

func isMultiline(v *value.Value) bool {
	s, ok := v.AsString()
	return ok && strings.Contains(s, "\n")
}

func (d *docEmitter) scalarText(v *value.Value, inFlow bool) string {
	switch v.Kind() {
	case value.Null:
		return "null"
	case value.Bool:
		b, _ := v.AsBool()
		if b {
			return "true"
		}
		return "false"
	case value.Int:
		i, _ := v.AsInt()
		return strconv.FormatInt(i, 10)
	case value.Float:
		f, _ := v.AsFloat()
		return formatFloat(f)
	default:
		s, _ := v.AsString()
		return d.stringText(v, s, inFlow)
	}
}

func (d *docEmitter) stringText(v *value.Value, s string, inFlow bool) string {
	if style, ok := v.Style(); ok {
		switch style {
		case token.StyleDoubleQuoted:
			return quoteDouble(s)
		case token.StyleSingleQuoted:
			if singleQuotable(s) {
				return quoteSingle(s)
			}
			return quoteDouble(s)
		}
		// literal and folded hints fall through; multi-line block form is
		// chosen by the caller, anything else renders like plain text
	}
	if strings.Contains(s, "\n") {
		return quoteDouble(s)
	}
	if plainOK(s, inFlow) {
		return s
	}
	if singleQuotable(s) {
		return quoteSingle(s)
	}
	return quoteDouble(s)
}

func formatFloat(f float64) string {
	switch {
	case f != f:
		return ".nan"
	case f > 0 && f*0.5 == f && f != 0:
		return ".inf"
	case f < 0 && f*0.5 == f:
		return "-.inf"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	// keep a float marker so the text re-resolves as a float
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// plainOK reports whether s can be written unquoted without changing its
// content or its resolved type.
func plainOK(s string, inFlow bool) bool {
	if s == "" {
		return false
	}
	if s[0] == ' ' || s[len(s)-1] == ' ' {
		return false
	}
	if strings.IndexByte("-?:,[]{}#&*!|>'\"%@`", s[0]) >= 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return false
		}
	}
	if strings.Contains(s, ": ") || strings.HasSuffix(s, ":") || strings.Contains(s, " #") {
		return false
	}
	if inFlow && strings.ContainsAny(s, ",[]{}:") {
		return false
	}
	// would re-read as null, bool or a number
	if resolvesToNonString(s) {
		return false
	}
	return true
}

// resolvesToNonString mirrors the core schema's plain-scalar typing.
func resolvesToNonString(s string) bool {
	switch s {
	case "", "~", "null", "Null", "NULL",
		"true", "True", "TRUE", "yes", "Yes", "YES", "on", "On", "ON",
		"false", "False", "FALSE", "no", "No", "NO", "off", "Off", "OFF",
		".inf", ".Inf", ".INF", "+.inf", "+.Inf", "+.INF",
		"-.inf", "-.Inf", "-.INF", ".nan", ".NaN", ".NAN":
		return true
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return true
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return true
	}
	if len(s) > 2 && (s[0] == '0' && (s[1] == 'x' || s[1] == 'o')) {
		if _, err := strconv.ParseInt(s[2:], 36, 64); err == nil {
			return true
		}
	}
	return false
}

func singleQuotable(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] == 0x7f {
			return false
		}
	}
	return !strings.Contains(s, "\n")
}

func quoteSingle(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteDouble(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case 0:
			sb.WriteString(`\0`)
		case 0x85:
			sb.WriteString(`\N`)
		case 0xa0:
			sb.WriteString(`\_`)
		case 0x2028:
			sb.WriteString(`\L`)
		case 0x2029:
			sb.WriteString(`\P`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&sb, `\x%02x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// literalOK reports whether s survives a literal block round trip: no
// carriage returns or control characters, no line with trailing blanks,
// and a first line that does not start with whitespace.
func literalOK(s string) bool {
	lines := strings.Split(s, "\n")
	first := true
	for _, ln := range lines {
		if ln == "" {
			continue
		}
		if first {
			if ln[0] == ' ' || ln[0] == '\t' {
				return false
			}
			first = false
		}
		if strings.HasSuffix(ln, " ") || strings.HasSuffix(ln, "\t") {
			return false
		}
		for i := 0; i < len(ln); i++ {
			if ln[i] < 0x20 || ln[i] == 0x7f {
				return false
			}
		}
	}
	return !first // at least one non-empty line
}

// literalBlock renders s as a | scalar: the chomping-annotated header and
// the indented body.
func literalBlock(s string, indent int) (header, body string) {
	trailing := 0
	for strings.HasSuffix(s, "\n") {
		s = s[:len(s)-1]
		trailing++
	}
	switch {
	case trailing == 0:
		header = "|-"
	case trailing == 1:
		header = "|"
	default:
		header = "|+"
	}
	pad := strings.Repeat(" ", indent)
	var sb strings.Builder
	for _, ln := range strings.Split(s, "\n") {
		if ln == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString(pad)
		sb.WriteString(ln)
		sb.WriteString("\n")
	}
	for i := 1; i < trailing; i++ {
		sb.WriteString("\n")
	}
	return header, sb.String()
}
