package composer

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/shibukawa/safeyaml/value"
)

// YAMLTagPrefix is the namespace the "!!" handle expands into.
const YAMLTagPrefix = "tag:yaml.org,2002:"

// LoaderType gates which tag constructors a composer accepts.
type LoaderType int

const (
	// LoaderSafe activates the full standard constructor set. Custom
	// constructors cannot be registered.
	LoaderSafe LoaderType = iota
	// LoaderBase activates only the failsafe set: str, seq and map.
	LoaderBase
	// LoaderFull is LoaderSafe plus caller-registered constructors.
	LoaderFull
)

func (t LoaderType) String() string {
	switch t {
	case LoaderSafe:
		return "safe"
	case LoaderBase:
		return "base"
	case LoaderFull:
		return "full"
	default:
		return fmt.Sprintf("loader(%d)", int(t))
	}
}

// ScalarConstructor builds a value from explicitly tagged scalar text.
type ScalarConstructor func(text string) (*value.Value, error)

// CollectionConstructor transforms a composed collection carrying an
// explicit tag, e.g. !!omap over a sequence of single-pair mappings.
type CollectionConstructor func(v *value.Value) (*value.Value, error)

// Registry maps resolved tag URIs to constructors. Each composer owns one;
// there is no global mutable state, so differently configured engines
// coexist in one process.
type Registry struct {
	scalars     map[string]ScalarConstructor
	collections map[string]CollectionConstructor
	sealed      bool
}

// NewRegistry builds the constructor table for a loader type.
func NewRegistry(loader LoaderType) *Registry {
	r := &Registry{
		scalars:     map[string]ScalarConstructor{},
		collections: map[string]CollectionConstructor{},
	}
	r.scalars[YAMLTagPrefix+"str"] = constructStr
	r.collections[YAMLTagPrefix+"seq"] = constructSeq
	r.collections[YAMLTagPrefix+"map"] = constructMap
	if loader != LoaderBase {
		r.scalars[YAMLTagPrefix+"int"] = constructInt
		r.scalars[YAMLTagPrefix+"float"] = constructFloat
		r.scalars[YAMLTagPrefix+"bool"] = constructBool
		r.scalars[YAMLTagPrefix+"null"] = constructNull
		r.scalars[YAMLTagPrefix+"binary"] = constructBinary
		r.scalars[YAMLTagPrefix+"timestamp"] = constructTimestamp
		r.collections[YAMLTagPrefix+"set"] = constructSet
		r.collections[YAMLTagPrefix+"omap"] = constructOmap
		r.collections[YAMLTagPrefix+"pairs"] = constructPairs
	}
	r.sealed = loader != LoaderFull
	return r
}

// RegisterScalar adds a scalar constructor. Only a LoaderFull registry
// accepts registrations.
func (r *Registry) RegisterScalar(uri string, fn ScalarConstructor) error {
	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, uri)
	}
	r.scalars[uri] = fn
	return nil
}

// RegisterCollection adds a collection constructor.
func (r *Registry) RegisterCollection(uri string, fn CollectionConstructor) error {
	if r.sealed {
		return fmt.Errorf("%w: cannot register %q", ErrRegistrySealed, uri)
	}
	r.collections[uri] = fn
	return nil
}

func (r *Registry) scalar(uri string) (ScalarConstructor, bool) {
	fn, ok := r.scalars[uri]
	return fn, ok
}

func (r *Registry) collection(uri string) (CollectionConstructor, bool) {
	fn, ok := r.collections[uri]
	return fn, ok
}

func constructStr(text string) (*value.Value, error) {
	return value.NewString(text), nil
}

func constructInt(text string) (*value.Value, error) {
	if i, ok := parseCoreInt(text); ok {
		return value.NewInt(i), nil
	}
	return nil, fmt.Errorf("%w: !!int %q", ErrInvalidTagValue, text)
}

func constructFloat(text string) (*value.Value, error) {
	v := resolveCore(text)
	switch v.Kind() {
	case value.Float:
		return v, nil
	case value.Int:
		i, _ := v.AsInt()
		return value.NewFloat(float64(i)), nil
	}
	return nil, fmt.Errorf("%w: !!float %q", ErrInvalidTagValue, text)
}

func constructBool(text string) (*value.Value, error) {
	v := resolveCore(text)
	if v.Kind() == value.Bool {
		return v, nil
	}
	return nil, fmt.Errorf("%w: !!bool %q", ErrInvalidTagValue, text)
}

func constructNull(text string) (*value.Value, error) {
	v := resolveCore(text)
	if v.IsNull() {
		return v, nil
	}
	return nil, fmt.Errorf("%w: !!null %q", ErrInvalidTagValue, text)
}

// constructBinary decodes base64 text; the decoded bytes are held in a
// string value.
func constructBinary(text string) (*value.Value, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, text)
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: !!binary: %v", ErrInvalidTagValue, err)
	}
	return value.NewString(string(decoded)), nil
}

var timestampLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 -07:00",
}

// constructTimestamp validates the text against the YAML timestamp forms
// and keeps it as a string.
func constructTimestamp(text string) (*value.Value, error) {
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, text); err == nil {
			return value.NewString(text), nil
		}
	}
	return nil, fmt.Errorf("%w: !!timestamp %q", ErrInvalidTagValue, text)
}

func constructSeq(v *value.Value) (*value.Value, error) {
	if v.Kind() != value.Sequence {
		return nil, fmt.Errorf("%w: !!seq on %s", ErrInvalidTagValue, v.Kind())
	}
	return v, nil
}

func constructMap(v *value.Value) (*value.Value, error) {
	if v.Kind() != value.Mapping {
		return nil, fmt.Errorf("%w: !!map on %s", ErrInvalidTagValue, v.Kind())
	}
	return v, nil
}

// constructSet accepts a mapping with null values, or a sequence of keys.
// Either way the result is a mapping whose values are null.
func constructSet(v *value.Value) (*value.Value, error) {
	switch v.Kind() {
	case value.Mapping:
		for _, p := range v.Pairs() {
			if !p.Value.IsNull() {
				return nil, fmt.Errorf("%w: !!set entry with a value", ErrInvalidTagValue)
			}
		}
		return v, nil
	case value.Sequence:
		set := value.NewMapping()
		for _, item := range v.Items() {
			set.Set(item, value.NewNull())
		}
		return set, nil
	}
	return nil, fmt.Errorf("%w: !!set on %s", ErrInvalidTagValue, v.Kind())
}

// constructOmap flattens a sequence of single-pair mappings into one
// mapping, rejecting duplicate keys.
func constructOmap(v *value.Value) (*value.Value, error) {
	if v.Kind() != value.Sequence {
		return nil, fmt.Errorf("%w: !!omap on %s", ErrInvalidTagValue, v.Kind())
	}
	omap := value.NewMapping()
	for _, item := range v.Items() {
		if item.Kind() != value.Mapping || item.Len() != 1 {
			return nil, fmt.Errorf("%w: !!omap entries must be single-pair mappings", ErrInvalidTagValue)
		}
		p := item.Pairs()[0]
		if omap.Has(p.Key) {
			return nil, fmt.Errorf("%w: !!omap duplicate key", ErrInvalidTagValue)
		}
		omap.Set(p.Key, p.Value)
	}
	return omap, nil
}

// constructPairs validates a sequence of single-pair mappings; unlike omap,
// duplicate keys are allowed and the sequence form is kept.
func constructPairs(v *value.Value) (*value.Value, error) {
	if v.Kind() != value.Sequence {
		return nil, fmt.Errorf("%w: !!pairs on %s", ErrInvalidTagValue, v.Kind())
	}
	for _, item := range v.Items() {
		if item.Kind() != value.Mapping || item.Len() != 1 {
			return nil, fmt.Errorf("%w: !!pairs entries must be single-pair mappings", ErrInvalidTagValue)
		}
	}
	return v, nil
}
