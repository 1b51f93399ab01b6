package composer

import (
	"math"
	"strconv"
	"strings"

	"github.com/shibukawa/safeyaml/value"
)

// Schema selects how untagged plain scalars resolve to typed values.
// Quoted and block scalars are always strings regardless of schema.
type Schema int

const (
	// SchemaCore resolves the YAML core set: null/bool (including the
	// yes/no/on/off forms), decimal, hex and octal integers, floats with
	// .inf/.nan, everything else a string.
	SchemaCore Schema = iota
	// SchemaJSON resolves only the JSON literals true, false and null and
	// strictly formed numbers.
	SchemaJSON
	// SchemaFailsafe resolves everything to a string.
	SchemaFailsafe
)

func (s Schema) String() string {
	switch s {
	case SchemaCore:
		return "core"
	case SchemaJSON:
		return "json"
	case SchemaFailsafe:
		return "failsafe"
	default:
		return "schema(" + strconv.Itoa(int(s)) + ")"
	}
}

// Resolve types an untagged plain scalar. Resolution never fails: text that
// matches no typed form is a string.
func (s Schema) Resolve(text string) *value.Value {
	switch s {
	case SchemaFailsafe:
		return value.NewString(text)
	case SchemaJSON:
		return resolveJSON(text)
	default:
		return resolveCore(text)
	}
}

func resolveCore(text string) *value.Value {
	switch text {
	case "", "~", "null", "Null", "NULL":
		return value.NewNull()
	case "true", "True", "TRUE", "yes", "Yes", "YES", "on", "On", "ON":
		return value.NewBool(true)
	case "false", "False", "FALSE", "no", "No", "NO", "off", "Off", "OFF":
		return value.NewBool(false)
	case ".inf", ".Inf", ".INF", "+.inf", "+.Inf", "+.INF":
		return value.NewFloat(math.Inf(1))
	case "-.inf", "-.Inf", "-.INF":
		return value.NewFloat(math.Inf(-1))
	case ".nan", ".NaN", ".NAN":
		return value.NewFloat(math.NaN())
	}
	if i, ok := parseCoreInt(text); ok {
		return value.NewInt(i)
	}
	if f, ok := parseCoreFloat(text); ok {
		return value.NewFloat(f)
	}
	return value.NewString(text)
}

func parseCoreInt(text string) (int64, bool) {
	body := text
	neg := false
	if len(body) > 0 && (body[0] == '+' || body[0] == '-') {
		neg = body[0] == '-'
		body = body[1:]
	}
	base := 10
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		base = 16
		body = body[2:]
	} else if strings.HasPrefix(body, "0o") || strings.HasPrefix(body, "0O") {
		base = 8
		body = body[2:]
	}
	if body == "" {
		return 0, false
	}
	i, err := strconv.ParseInt(body, base, 64)
	if err != nil {
		return 0, false
	}
	if neg {
		i = -i
	}
	return i, true
}

// parseCoreFloat accepts only digit-built forms so that strconv's laxer
// spellings (inf, nan, hex floats) do not leak into plain scalars.
func parseCoreFloat(text string) (float64, bool) {
	body := text
	if len(body) > 0 && (body[0] == '+' || body[0] == '-') {
		body = body[1:]
	}
	hasDigit := false
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c >= '0' && c <= '9':
			hasDigit = true
		case c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-':
		default:
			return 0, false
		}
	}
	if !hasDigit {
		return 0, false
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func resolveJSON(text string) *value.Value {
	switch text {
	case "null":
		return value.NewNull()
	case "true":
		return value.NewBool(true)
	case "false":
		return value.NewBool(false)
	}
	if isJSONInt(text) {
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return value.NewInt(i)
		}
	}
	if isJSONNumber(text) {
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return value.NewFloat(f)
		}
	}
	return value.NewString(text)
}

func isJSONInt(text string) bool {
	body, _ := strings.CutPrefix(text, "-")
	if body == "" {
		return false
	}
	if body != "0" && body[0] == '0' {
		return false
	}
	for i := 0; i < len(body); i++ {
		if body[i] < '0' || body[i] > '9' {
			return false
		}
	}
	return true
}

func isJSONNumber(text string) bool {
	body, _ := strings.CutPrefix(text, "-")
	if body == "" {
		return false
	}
	intPart := 0
	i := 0
	for i < len(body) && body[i] >= '0' && body[i] <= '9' {
		i++
		intPart++
	}
	if intPart == 0 || (intPart > 1 && body[0] == '0') {
		return false
	}
	if i < len(body) && body[i] == '.' {
		i++
		frac := 0
		for i < len(body) && body[i] >= '0' && body[i] <= '9' {
			i++
			frac++
		}
		if frac == 0 {
			return false
		}
	}
	if i < len(body) && (body[i] == 'e' || body[i] == 'E') {
		i++
		if i < len(body) && (body[i] == '+' || body[i] == '-') {
			i++
		}
		exp := 0
		for i < len(body) && body[i] >= '0' && body[i] <= '9' {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(body)
}
