package composer

import (
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/safeyaml/limits"
	"github.com/shibukawa/safeyaml/value"
)

func compose(t *testing.T, src string) *value.Value {
	t.Helper()
	v, err := composeWith(src, limits.Default(), Options{})
	assert.NoError(t, err)
	assert.NotZero(t, v)
	return v
}

func composeWith(src string, l limits.Limits, opts Options) (*value.Value, error) {
	c := NewForSource(src, limits.NewTracker(l), opts)
	v, err := c.ComposeNext()
	if err != nil {
		return nil, err
	}
	return v, nil
}

func mustInt(t *testing.T, v *value.Value) int64 {
	t.Helper()
	i, ok := v.AsInt()
	assert.True(t, ok)
	return i
}

func mustString(t *testing.T, v *value.Value) string {
	t.Helper()
	s, ok := v.AsString()
	assert.True(t, ok)
	return s
}

func TestComposeCoreSchema(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want *value.Value
	}{
		{"int", "42", value.NewInt(42)},
		{"negative int", "-7", value.NewInt(-7)},
		{"hex int", "0x1F", value.NewInt(31)},
		{"octal int", "0o17", value.NewInt(15)},
		{"float", "3.5", value.NewFloat(3.5)},
		{"scientific", "1e3", value.NewFloat(1000)},
		{"bool true", "true", value.NewBool(true)},
		{"bool yes", "yes", value.NewBool(true)},
		{"bool off", "false", value.NewBool(false)},
		{"null word", "null", value.NewNull()},
		{"null tilde", "~", value.NewNull()},
		{"string", "hello", value.NewString("hello")},
		{"almost number", "1.2.3", value.NewString("1.2.3")},
		{"version-ish", "0x", value.NewString("0x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compose(t, tt.src)
			assert.True(t, v.Equal(tt.want))
		})
	}
}

func TestComposeQuotedStaysString(t *testing.T) {
	v := compose(t, "a: '42'\nb: \"true\"\nc: |\n  7\n")
	assert.Equal(t, value.String, v.GetString("a").Kind())
	assert.Equal(t, value.String, v.GetString("b").Kind())
	assert.Equal(t, value.String, v.GetString("c").Kind())
}

func TestComposeJSONSchema(t *testing.T) {
	opts := Options{Schema: SchemaJSON}
	v, err := composeWith("a: true\nb: yes\nc: 1e3\nd: 0x1F\n", limits.Default(), opts)
	assert.NoError(t, err)
	assert.Equal(t, value.Bool, v.GetString("a").Kind())
	// YAML 1.1 style coercions do not apply
	assert.Equal(t, value.String, v.GetString("b").Kind())
	assert.Equal(t, value.Float, v.GetString("c").Kind())
	assert.Equal(t, value.String, v.GetString("d").Kind())
}

func TestComposeFailsafeSchema(t *testing.T) {
	v, err := composeWith("a: 42\nb: true\nc: null\n", limits.Default(), Options{Schema: SchemaFailsafe})
	assert.NoError(t, err)
	for _, key := range []string{"a", "b", "c"} {
		assert.Equal(t, value.String, v.GetString(key).Kind())
	}
}

func TestComposeCollections(t *testing.T) {
	v := compose(t, "seq:\n  - 1\n  - 2\nmap:\n  a: x\nflow: [1, {b: 2}]\n")
	seq := v.GetString("seq")
	assert.Equal(t, 2, seq.Len())
	assert.Equal(t, int64(1), mustInt(t, seq.At(0)))
	assert.Equal(t, "x", mustString(t, v.GetString("map").GetString("a")))
	flow := v.GetString("flow")
	assert.True(t, flow.Flow())
	assert.Equal(t, int64(2), mustInt(t, flow.At(1).GetString("b")))
}

func TestComposeAnchorsAndAliases(t *testing.T) {
	t.Run("scalar alias", func(t *testing.T) {
		v := compose(t, "a: &x hello\nb: *x\n")
		assert.Equal(t, "hello", mustString(t, v.GetString("b")))
	})
	t.Run("collection alias is a deep copy", func(t *testing.T) {
		v := compose(t, "a: &x [1]\nb: *x\n")
		v.GetString("a").Append(value.NewInt(2))
		assert.Equal(t, 2, v.GetString("a").Len())
		assert.Equal(t, 1, v.GetString("b").Len())
	})
	t.Run("shared aliases return the same subtree", func(t *testing.T) {
		v, err := composeWith("a: &x [1]\nb: *x\n", limits.Default(), Options{SharedAliases: true})
		assert.NoError(t, err)
		assert.True(t, v.GetString("a") == v.GetString("b"))
	})
	t.Run("redefinition overwrites", func(t *testing.T) {
		v := compose(t, "a: &x 1\nb: &x 2\nc: *x\n")
		assert.Equal(t, int64(2), mustInt(t, v.GetString("c")))
	})
	t.Run("alias as key", func(t *testing.T) {
		v := compose(t, "a: &k name\n*k : 5\n")
		assert.Equal(t, int64(5), mustInt(t, v.GetString("name")))
	})
}

func TestComposeUndefinedAlias(t *testing.T) {
	_, err := composeWith("a: *nope\n", limits.Default(), Options{})
	assert.IsError(t, err, ErrUndefinedAlias)
	var cerr *Error
	assert.True(t, errors.As(err, &cerr))
	assert.Equal(t, 1, cerr.Position().Line)
}

func TestComposeCyclicReference(t *testing.T) {
	_, err := composeWith("a: &x {b: *x}\n", limits.Default(), Options{})
	assert.IsError(t, err, ErrCyclicReference)
}

func TestComposeAliasDepthLimit(t *testing.T) {
	l := limits.Default()
	l.MaxAliasDepth = 5
	// the anchored subtree is 6 levels deep
	src := "a: &x {b: {c: {d: {e: {f: 1}}}}}\nz: *x\n"
	_, err := composeWith(src, l, Options{})
	var lerr *limits.Error
	assert.True(t, errors.As(err, &lerr))
	assert.Equal(t, limits.AliasDepthExceeded, lerr.Kind)
	assert.Equal(t, 6, lerr.Actual)

	l.MaxAliasDepth = 6
	_, err = composeWith(src, l, Options{})
	assert.NoError(t, err)
}

func TestComposeMergeKeys(t *testing.T) {
	t.Run("basic", func(t *testing.T) {
		v := compose(t, "base: &b {x: 1, y: 2}\nm:\n  <<: *b\n  z: 3\n")
		m := v.GetString("m")
		assert.Equal(t, int64(1), mustInt(t, m.GetString("x")))
		assert.Equal(t, int64(2), mustInt(t, m.GetString("y")))
		assert.Equal(t, int64(3), mustInt(t, m.GetString("z")))
	})
	t.Run("explicit key wins regardless of order", func(t *testing.T) {
		v := compose(t, "base: &b {x: 1}\nbefore:\n  x: 9\n  <<: *b\nafter:\n  <<: *b\n  x: 9\n")
		assert.Equal(t, int64(9), mustInt(t, v.GetString("before").GetString("x")))
		assert.Equal(t, int64(9), mustInt(t, v.GetString("after").GetString("x")))
	})
	t.Run("later source wins", func(t *testing.T) {
		v := compose(t, "a: &a {x: 1, y: 1}\nb: &b {y: 2}\nm:\n  <<: [*a, *b]\n")
		m := v.GetString("m")
		assert.Equal(t, int64(1), mustInt(t, m.GetString("x")))
		assert.Equal(t, int64(2), mustInt(t, m.GetString("y")))
	})
	t.Run("inline mapping source", func(t *testing.T) {
		v := compose(t, "m:\n  <<: {x: 1}\n  y: 2\n")
		assert.Equal(t, int64(1), mustInt(t, v.GetString("m").GetString("x")))
	})
	t.Run("invalid merge value", func(t *testing.T) {
		_, err := composeWith("m:\n  <<: 5\n", limits.Default(), Options{})
		assert.IsError(t, err, ErrInvalidMergeValue)
		_, err = composeWith("m:\n  <<: [5]\n", limits.Default(), Options{})
		assert.IsError(t, err, ErrInvalidMergeValue)
	})
	t.Run("quoted merge key is literal", func(t *testing.T) {
		v := compose(t, "m:\n  '<<': 1\n")
		assert.Equal(t, int64(1), mustInt(t, v.GetString("m").GetString("<<")))
	})
}

func TestComposeDuplicateKeys(t *testing.T) {
	src := "a: 1\na: 2\n"
	t.Run("error by default", func(t *testing.T) {
		_, err := composeWith(src, limits.Default(), Options{})
		assert.IsError(t, err, ErrDuplicateKey)
	})
	t.Run("first wins", func(t *testing.T) {
		v, err := composeWith(src, limits.Default(), Options{DuplicateKeys: DuplicateFirstWins})
		assert.NoError(t, err)
		assert.Equal(t, int64(1), mustInt(t, v.GetString("a")))
	})
	t.Run("last wins", func(t *testing.T) {
		v, err := composeWith(src, limits.Default(), Options{DuplicateKeys: DuplicateLastWins})
		assert.NoError(t, err)
		assert.Equal(t, int64(2), mustInt(t, v.GetString("a")))
	})
}

func TestComposeExplicitTags(t *testing.T) {
	t.Run("str forces string", func(t *testing.T) {
		v := compose(t, "a: !!str 123\n")
		assert.Equal(t, "123", mustString(t, v.GetString("a")))
	})
	t.Run("int on quoted text", func(t *testing.T) {
		v := compose(t, "a: !!int '42'\n")
		assert.Equal(t, int64(42), mustInt(t, v.GetString("a")))
	})
	t.Run("int rejects junk", func(t *testing.T) {
		_, err := composeWith("a: !!int abc\n", limits.Default(), Options{})
		assert.IsError(t, err, ErrInvalidTagValue)
	})
	t.Run("binary", func(t *testing.T) {
		v := compose(t, "a: !!binary aGVsbG8=\n")
		assert.Equal(t, "hello", mustString(t, v.GetString("a")))
	})
	t.Run("timestamp", func(t *testing.T) {
		v := compose(t, "a: !!timestamp 2001-12-14\n")
		assert.Equal(t, "2001-12-14", mustString(t, v.GetString("a")))
		_, err := composeWith("a: !!timestamp nope\n", limits.Default(), Options{})
		assert.IsError(t, err, ErrInvalidTagValue)
	})
	t.Run("set", func(t *testing.T) {
		v := compose(t, "!!set\n? a\n? b\n")
		assert.Equal(t, value.Mapping, v.Kind())
		assert.Equal(t, 2, v.Len())
		assert.True(t, v.GetString("a").IsNull())
	})
	t.Run("omap", func(t *testing.T) {
		v := compose(t, "!!omap\n- a: 1\n- b: 2\n")
		assert.Equal(t, value.Mapping, v.Kind())
		assert.Equal(t, int64(2), mustInt(t, v.GetString("b")))
	})
	t.Run("pairs keeps duplicates", func(t *testing.T) {
		v := compose(t, "!!pairs\n- a: 1\n- a: 2\n")
		assert.Equal(t, value.Sequence, v.Kind())
		assert.Equal(t, 2, v.Len())
	})
	t.Run("non specific bang", func(t *testing.T) {
		v := compose(t, "a: ! 42\n")
		assert.Equal(t, "42", mustString(t, v.GetString("a")))
	})
}

func TestComposeTagHandles(t *testing.T) {
	t.Run("declared handle expands", func(t *testing.T) {
		c := NewForSource("%TAG !e! tag:example.com,2026:\n---\na: !e!upper abc\n",
			limits.NewTracker(limits.Default()), Options{Loader: LoaderFull})
		err := c.Registry().RegisterScalar("tag:example.com,2026:upper", func(text string) (*value.Value, error) {
			return value.NewString(strings.ToUpper(text)), nil
		})
		assert.NoError(t, err)
		v, err := c.ComposeNext()
		assert.NoError(t, err)
		assert.Equal(t, "ABC", mustString(t, v.GetString("a")))
	})
	t.Run("undeclared handle errors", func(t *testing.T) {
		_, err := composeWith("a: !x!foo 1\n", limits.Default(), Options{})
		assert.IsError(t, err, ErrUnknownTag)
	})
	t.Run("verbatim tag", func(t *testing.T) {
		v, err := composeWith("a: !<tag:yaml.org,2002:str> 42\n", limits.Default(), Options{})
		assert.NoError(t, err)
		assert.Equal(t, "42", mustString(t, v.GetString("a")))
	})
}

func TestComposeStrictTags(t *testing.T) {
	_, err := composeWith("a: !unknown 1\n", limits.Default(), Options{StrictTags: true})
	assert.IsError(t, err, ErrUnknownTag)

	// lenient mode falls back to natural resolution
	v, err := composeWith("a: !unknown 1\n", limits.Default(), Options{})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), mustInt(t, v.GetString("a")))
}

func TestComposeLoaderTypes(t *testing.T) {
	t.Run("base has failsafe constructors only", func(t *testing.T) {
		_, err := composeWith("a: !!int 42\n", limits.Default(), Options{Loader: LoaderBase, StrictTags: true})
		assert.IsError(t, err, ErrUnknownTag)
	})
	t.Run("base resolves plain scalars as strings", func(t *testing.T) {
		v, err := composeWith("a: 42\n", limits.Default(), Options{Loader: LoaderBase})
		assert.NoError(t, err)
		assert.Equal(t, value.String, v.GetString("a").Kind())
	})
	t.Run("safe registry is sealed", func(t *testing.T) {
		err := NewRegistry(LoaderSafe).RegisterScalar("!x", constructStr)
		assert.IsError(t, err, ErrRegistrySealed)
	})
	t.Run("full registry accepts registrations", func(t *testing.T) {
		assert.NoError(t, NewRegistry(LoaderFull).RegisterScalar("!x", constructStr))
	})
}

func TestComposeAnchorCountLimit(t *testing.T) {
	l := limits.Default()
	l.MaxAnchors = 2
	_, err := composeWith("a: &x 1\nb: &y 2\nc: &z 3\n", l, Options{})
	var lerr *limits.Error
	assert.True(t, errors.As(err, &lerr))
	assert.Equal(t, limits.AnchorCountExceeded, lerr.Kind)
}

func TestComposeCollectionSizeLimit(t *testing.T) {
	l := limits.Default()
	l.MaxCollectionSize = 3
	_, err := composeWith("[1, 2, 3, 4, 5]", l, Options{})
	var lerr *limits.Error
	assert.True(t, errors.As(err, &lerr))
	assert.Equal(t, limits.CollectionSizeExceeded, lerr.Kind)
}

func TestComposeComplexityLimit(t *testing.T) {
	// a small document that expands to a large graph through aliases
	l := limits.Default()
	l.MaxComplexityScore = 50
	src := "a: &x [1, 1, 1, 1, 1, 1, 1, 1, 1, 1]\nb: [*x, *x, *x, *x]\n"
	_, err := composeWith(src, l, Options{})
	var lerr *limits.Error
	assert.True(t, errors.As(err, &lerr))
	assert.Equal(t, limits.ComplexityExceeded, lerr.Kind)
}

func TestComposeMultiDocument(t *testing.T) {
	c := NewForSource("---\none\n---\ntwo\n---\nthree\n", limits.NewTracker(limits.Default()), Options{})
	var docs []string
	for {
		v, err := c.ComposeNext()
		assert.NoError(t, err)
		if v == nil {
			break
		}
		docs = append(docs, mustString(t, v))
	}
	assert.Equal(t, []string{"one", "two", "three"}, docs)

	// exhausted stream keeps returning nil
	v, err := c.ComposeNext()
	assert.NoError(t, err)
	assert.Zero(t, v)
}

func TestComposeDocumentsIterator(t *testing.T) {
	c := NewForSource("---\n1\n---\n2\n", limits.NewTracker(limits.Default()), Options{})
	count := 0
	for v, err := range c.Documents() {
		assert.NoError(t, err)
		assert.NotZero(t, v)
		count++
	}
	assert.Equal(t, 2, count)
}

func TestComposeTrackerResetPerDocument(t *testing.T) {
	l := limits.Default()
	l.MaxAnchors = 1
	src := "---\na: &x 1\n---\nb: &y 2\n"

	c := NewForSource(src, limits.NewTracker(l), Options{})
	_, err := c.ComposeNext()
	assert.NoError(t, err)
	_, err = c.ComposeNext()
	assert.NoError(t, err)

	c = NewForSource(src, limits.NewTracker(l), Options{KeepTracker: true})
	_, err = c.ComposeNext()
	assert.NoError(t, err)
	_, err = c.ComposeNext()
	var lerr *limits.Error
	assert.True(t, errors.As(err, &lerr))
	assert.Equal(t, limits.AnchorCountExceeded, lerr.Kind)
}

func TestComposeAnchorInsideMergeSources(t *testing.T) {
	// merged keys are charged even when overridden
	l := limits.Default()
	l.MaxCollectionSize = 4
	src := "a: &x {k1: 1, k2: 2}\nm:\n  <<: *x\n  k1: 9\n  k2: 9\n"
	// pairs: a's two, m's two explicit, plus two merged (overridden) = 7 > 4
	_, err := composeWith(src, l, Options{DuplicateKeys: DuplicateLastWins})
	var lerr *limits.Error
	assert.True(t, errors.As(err, &lerr))
	assert.Equal(t, limits.CollectionSizeExceeded, lerr.Kind)
}

func TestComposeErrorSticky(t *testing.T) {
	c := NewForSource("a: *nope\n", limits.NewTracker(limits.Default()), Options{})
	_, err1 := c.ComposeNext()
	assert.IsError(t, err1, ErrUndefinedAlias)
	_, err2 := c.ComposeNext()
	assert.Equal(t, err1, err2)
}
