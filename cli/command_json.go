package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/shibukawa/safeyaml"
	"github.com/shibukawa/safeyaml/value"
)

// ErrUnrepresentableKey is returned when a mapping key cannot become a JSON
// object key.
var ErrUnrepresentableKey = errors.New("mapping key cannot be represented in JSON")

// JSONCmd represents the json command.
type JSONCmd struct {
	LimitFlags
	Files   []string `arg:"" optional:"" help:"Files to convert; - or no argument reads stdin" type:"path"`
	Compact bool     `help:"Emit compact JSON instead of indented"`
}

func (cmd *JSONCmd) Run(ctx *Context) error {
	cfg, err := cmd.config()
	if err != nil {
		return err
	}
	inputs, err := readInputs(cmd.Files, os.Stdin)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(ctx.stdout())
	if !cmd.Compact {
		enc.SetIndent("", "  ")
	}
	for _, in := range inputs {
		docs, err := cfg.LoadAllString(in.text)
		if err != nil {
			fmt.Fprintf(ctx.stderr(), "%s:\n%s", color.New(color.Bold).Sprint(in.name), safeyaml.Render(err, in.text))
			return fmt.Errorf("%w: %s", ErrValidationFailed, in.name)
		}
		for _, doc := range docs {
			native, err := toJSON(doc)
			if err != nil {
				return fmt.Errorf("%s: %w", in.name, err)
			}
			if err := enc.Encode(native); err != nil {
				return err
			}
		}
	}
	return nil
}

// toJSON converts a value graph to data encoding/json accepts. Mapping keys
// must be scalars; they render through their plain text form.
func toJSON(v *value.Value) (any, error) {
	switch v.Kind() {
	case value.Null:
		return nil, nil
	case value.Bool:
		b, _ := v.AsBool()
		return b, nil
	case value.Int:
		i, _ := v.AsInt()
		return i, nil
	case value.Float:
		f, _ := v.AsFloat()
		return f, nil
	case value.String:
		s, _ := v.AsString()
		return s, nil
	case value.Sequence:
		out := make([]any, 0, v.Len())
		for _, item := range v.Items() {
			native, err := toJSON(item)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil
	default:
		out := orderedObject{}
		for _, p := range v.Pairs() {
			key, err := jsonKey(p.Key)
			if err != nil {
				return nil, err
			}
			native, err := toJSON(p.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, member{key: key, value: native})
		}
		return out, nil
	}
}

func jsonKey(key *value.Value) (string, error) {
	switch key.Kind() {
	case value.String:
		s, _ := key.AsString()
		return s, nil
	case value.Int:
		i, _ := key.AsInt()
		return fmt.Sprintf("%d", i), nil
	case value.Bool:
		b, _ := key.AsBool()
		return fmt.Sprintf("%t", b), nil
	case value.Null:
		return "null", nil
	case value.Float:
		f, _ := key.AsFloat()
		return fmt.Sprintf("%g", f), nil
	default:
		return "", ErrUnrepresentableKey
	}
}

type member struct {
	key   string
	value any
}

// orderedObject marshals as a JSON object preserving member order, which
// encoding/json's map type would not.
type orderedObject []member

func (o orderedObject) MarshalJSON() ([]byte, error) {
	out := []byte{'{'}
	for i, m := range o {
		if i > 0 {
			out = append(out, ',')
		}
		key, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		out = append(out, key...)
		out = append(out, ':')
		val, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		out = append(out, val...)
	}
	return append(out, '}'), nil
}
