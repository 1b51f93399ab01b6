// Package safeyaml loads and serializes YAML-class documents under hard
// resource ceilings. Every load runs the full scanner, parser and composer
// pipeline against a limits.Tracker, so hostile input fails with a typed
// limit error instead of exhausting memory or CPU.
//
// The zero-friction entry points use Default limits:
//
//	doc, err := safeyaml.LoadOne(data)
//
// Tighter or looser behavior goes through a Config:
//
//	cfg := safeyaml.SecureConfig()
//	docs, err := cfg.LoadAll(data)
package safeyaml

import (
	"errors"
	"io"
	"iter"

	"github.com/shibukawa/safeyaml/composer"
	"github.com/shibukawa/safeyaml/emitter"
	"github.com/shibukawa/safeyaml/limits"
	"github.com/shibukawa/safeyaml/value"
)

var (
	// ErrNoDocument is returned by LoadOne when the input holds no document.
	ErrNoDocument = errors.New("no document in input")
	// ErrMultipleDocuments is returned by LoadOne when the input holds more
	// than one document.
	ErrMultipleDocuments = errors.New("multiple documents in input")
)

// Config bundles resource limits, composition behavior and emitter options.
// A zero Limits field falls back to the Default preset; disabling limits
// requires an explicit limits.Unlimited().
type Config struct {
	// Limits are the resource ceilings enforced while loading.
	Limits limits.Limits
	// Loader selects the tag capability level.
	Loader composer.LoaderType
	// Schema selects plain-scalar typing.
	Schema composer.Schema
	// DuplicateKeys selects the duplicate mapping key policy.
	DuplicateKeys composer.DuplicateKeyPolicy
	// StrictTags rejects unknown tags instead of passing values through.
	StrictTags bool
	// SharedAliases makes aliases share subtrees instead of deep-copying.
	SharedAliases bool
	// Registry overrides the tag registry derived from Loader.
	Registry *composer.Registry
	// Emit controls serialization.
	Emit emitter.Options
}

// DefaultConfig returns a config with Default limits, suitable for
// ordinary inputs.
func DefaultConfig() Config {
	return Config{Limits: limits.Default()}
}

// SecureConfig returns a config for untrusted input: Strict limits,
// duplicate keys rejected, unknown tags rejected.
func SecureConfig() Config {
	return Config{
		Limits:     limits.Strict(),
		StrictTags: true,
	}
}

func (c Config) limits() limits.Limits {
	if c.Limits == (limits.Limits{}) {
		return limits.Default()
	}
	return c.Limits
}

func (c Config) newComposer(src string) *composer.Composer {
	return composer.NewForSource(normalizeSource(src), limits.NewTracker(c.limits()), composer.Options{
		Loader:        c.Loader,
		Schema:        c.Schema,
		DuplicateKeys: c.DuplicateKeys,
		StrictTags:    c.StrictTags,
		SharedAliases: c.SharedAliases,
		Registry:      c.Registry,
	})
}

// LoadOne loads exactly one document.
func (c Config) LoadOne(src []byte) (*value.Value, error) {
	return c.LoadOneString(string(src))
}

// LoadOneString loads exactly one document from a string source.
func (c Config) LoadOneString(src string) (*value.Value, error) {
	cmp := c.newComposer(src)
	first, err := cmp.ComposeNext()
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, ErrNoDocument
	}
	second, err := cmp.ComposeNext()
	if err != nil {
		return nil, err
	}
	if second != nil {
		return nil, ErrMultipleDocuments
	}
	return first, nil
}

// LoadOneReader loads exactly one document from r, decoding UTF-16 input
// by byte order mark.
func (c Config) LoadOneReader(r io.Reader) (*value.Value, error) {
	src, err := readSource(r, c.limits().MaxDocumentSize)
	if err != nil {
		return nil, err
	}
	return c.LoadOneString(src)
}

// LoadAll loads every document in the stream.
func (c Config) LoadAll(src []byte) ([]*value.Value, error) {
	return c.LoadAllString(string(src))
}

// LoadAllString loads every document from a string source.
func (c Config) LoadAllString(src string) ([]*value.Value, error) {
	var docs []*value.Value
	for doc, err := range c.DocumentsString(src) {
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadAllReader loads every document from r.
func (c Config) LoadAllReader(r io.Reader) ([]*value.Value, error) {
	src, err := readSource(r, c.limits().MaxDocumentSize)
	if err != nil {
		return nil, err
	}
	return c.LoadAllString(src)
}

// Documents lazily iterates the documents in src. Iteration stops after
// yielding the first error.
func (c Config) Documents(src []byte) iter.Seq2[*value.Value, error] {
	return c.DocumentsString(string(src))
}

// DocumentsString lazily iterates the documents in a string source.
func (c Config) DocumentsString(src string) iter.Seq2[*value.Value, error] {
	return c.newComposer(src).Documents()
}

// DocumentsReader lazily iterates the documents read from r.
func (c Config) DocumentsReader(r io.Reader) iter.Seq2[*value.Value, error] {
	src, err := readSource(r, c.limits().MaxDocumentSize)
	if err != nil {
		return func(yield func(*value.Value, error) bool) {
			yield(nil, err)
		}
	}
	return c.DocumentsString(src)
}

// Dump serializes one document.
func (c Config) Dump(v *value.Value) (string, error) {
	return emitter.New(c.Emit).Dump(v)
}

// DumpTo serializes one document into w.
func (c Config) DumpTo(w io.Writer, v *value.Value) error {
	return emitter.New(c.Emit).DumpTo(w, v)
}

// DumpAll serializes a document stream with --- separators.
func (c Config) DumpAll(docs []*value.Value) (string, error) {
	return emitter.New(c.Emit).DumpAll(docs)
}

// DumpAllTo serializes a document stream into w.
func (c Config) DumpAllTo(w io.Writer, docs []*value.Value) error {
	return emitter.New(c.Emit).DumpAllTo(w, docs)
}

// LoadOne loads exactly one document with Default limits.
func LoadOne(src []byte) (*value.Value, error) {
	return DefaultConfig().LoadOne(src)
}

// LoadOneString loads exactly one document from a string with Default limits.
func LoadOneString(src string) (*value.Value, error) {
	return DefaultConfig().LoadOneString(src)
}

// LoadOneReader loads exactly one document from r with Default limits.
func LoadOneReader(r io.Reader) (*value.Value, error) {
	return DefaultConfig().LoadOneReader(r)
}

// LoadAll loads every document with Default limits.
func LoadAll(src []byte) ([]*value.Value, error) {
	return DefaultConfig().LoadAll(src)
}

// LoadAllString loads every document from a string with Default limits.
func LoadAllString(src string) ([]*value.Value, error) {
	return DefaultConfig().LoadAllString(src)
}

// LoadAllReader loads every document from r with Default limits.
func LoadAllReader(r io.Reader) ([]*value.Value, error) {
	return DefaultConfig().LoadAllReader(r)
}

// Documents lazily iterates documents with Default limits.
func Documents(src []byte) iter.Seq2[*value.Value, error] {
	return DefaultConfig().Documents(src)
}

// Dump serializes one document with default emitter options.
func Dump(v *value.Value) (string, error) {
	return DefaultConfig().Dump(v)
}

// DumpTo serializes one document into w with default emitter options.
func DumpTo(w io.Writer, v *value.Value) error {
	return DefaultConfig().DumpTo(w, v)
}

// DumpAll serializes a document stream with default emitter options.
func DumpAll(docs []*value.Value) (string, error) {
	return DefaultConfig().DumpAll(docs)
}
