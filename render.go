package safeyaml

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/shibukawa/safeyaml/composer"
	"github.com/shibukawa/safeyaml/limits"
	"github.com/shibukawa/safeyaml/scanner"
	"github.com/shibukawa/safeyaml/token"
)

// Positioned is implemented by pipeline errors that carry a source location.
type Positioned interface {
	Position() token.Position
}

var (
	renderErrColor  = color.New(color.FgRed, color.Bold)
	renderPosColor  = color.New(color.FgCyan)
	renderHintColor = color.New(color.FgYellow)
)

// Render formats err against its source for terminal display: the message,
// the offending line with a caret under the reported column, and a hint for
// the well-known failure modes. Colors follow the NO_COLOR convention via
// fatih/color's global switch.
func Render(err error, source string) string {
	var sb strings.Builder
	sb.WriteString(renderErrColor.Sprint("error:"))
	sb.WriteString(" ")
	sb.WriteString(err.Error())
	sb.WriteString("\n")

	var p Positioned
	if errors.As(err, &p) {
		pos := p.Position()
		sb.WriteString(renderPosColor.Sprintf("  --> line %d, column %d", pos.Line, pos.Column))
		sb.WriteString("\n")
		if line, ok := sourceLine(source, pos.Line); ok {
			fmt.Fprintf(&sb, "%5d | %s\n", pos.Line, line)
			col := pos.Column
			if col < 1 {
				col = 1
			}
			if col > len(line)+1 {
				col = len(line) + 1
			}
			fmt.Fprintf(&sb, "      | %s^\n", strings.Repeat(" ", col-1))
		}
	}
	if hint := suggestion(err); hint != "" {
		sb.WriteString(renderHintColor.Sprint("  hint:"))
		sb.WriteString(" ")
		sb.WriteString(hint)
		sb.WriteString("\n")
	}
	return sb.String()
}

func sourceLine(src string, line int) (string, bool) {
	if line < 1 {
		return "", false
	}
	lines := strings.Split(src, "\n")
	if line > len(lines) {
		return "", false
	}
	return strings.ReplaceAll(lines[line-1], "\t", " "), true
}

func suggestion(err error) string {
	var lim *limits.Error
	if errors.As(err, &lim) {
		return fmt.Sprintf("the %s ceiling is %d and the input needed %d; raise the limit only for trusted input",
			lim.Kind, lim.Limit, lim.Actual)
	}
	switch {
	case errors.Is(err, scanner.ErrUnterminatedQuote):
		return "close the quoted scalar before the end of input"
	case errors.Is(err, scanner.ErrTabIndentation):
		return "indent with spaces; tabs are not valid indentation"
	case errors.Is(err, composer.ErrUndefinedAlias):
		return "define the anchor before the first alias that references it"
	case errors.Is(err, composer.ErrCyclicReference):
		return "an anchor cannot be referenced inside its own definition"
	case errors.Is(err, composer.ErrDuplicateKey):
		return "remove the duplicate key or choose a merge policy via DuplicateKeys"
	case errors.Is(err, composer.ErrInvalidMergeValue):
		return "a << merge key takes a mapping or a sequence of mappings"
	}
	return ""
}
