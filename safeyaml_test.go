package safeyaml

import (
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"

	"github.com/shibukawa/safeyaml/composer"
	"github.com/shibukawa/safeyaml/limits"
	"github.com/shibukawa/safeyaml/scanner"
	"github.com/shibukawa/safeyaml/value"
)

// plain converts a value graph to native Go data so go-cmp can print
// readable diffs.
func plain(v *value.Value) any {
	if v == nil {
		return nil
	}
	switch v.Kind() {
	case value.Null:
		return nil
	case value.Bool:
		b, _ := v.AsBool()
		return b
	case value.Int:
		i, _ := v.AsInt()
		return i
	case value.Float:
		f, _ := v.AsFloat()
		return f
	case value.String:
		s, _ := v.AsString()
		return s
	case value.Sequence:
		out := make([]any, 0, v.Len())
		for _, item := range v.Items() {
			out = append(out, plain(item))
		}
		return out
	default:
		out := make([][2]any, 0, v.Len())
		for _, p := range v.Pairs() {
			out = append(out, [2]any{plain(p.Key), plain(p.Value)})
		}
		return out
	}
}

func TestLoadOne(t *testing.T) {
	t.Run("single document", func(t *testing.T) {
		doc, err := LoadOne([]byte("name: safeyaml\nstars: 3\n"))
		assert.NoError(t, err)
		name := doc.GetString("name")
		assert.NotZero(t, name)
		s, _ := name.AsString()
		assert.Equal(t, "safeyaml", s)
	})
	t.Run("empty input", func(t *testing.T) {
		_, err := LoadOne(nil)
		assert.True(t, errors.Is(err, ErrNoDocument))
	})
	t.Run("two documents", func(t *testing.T) {
		_, err := LoadOne([]byte("a: 1\n---\nb: 2\n"))
		assert.True(t, errors.Is(err, ErrMultipleDocuments))
	})
}

func TestLoadAll(t *testing.T) {
	docs, err := LoadAll([]byte("one\n---\ntwo\n---\nthree\n"))
	assert.NoError(t, err)
	assert.Equal(t, 3, len(docs))
	want := []any{"one", "two", "three"}
	for i, doc := range docs {
		if diff := cmp.Diff(want[i], plain(doc)); diff != "" {
			t.Errorf("document %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestDocumentsIterator(t *testing.T) {
	t.Run("lazy iteration in order", func(t *testing.T) {
		var got []any
		for doc, err := range Documents([]byte("1\n---\n2\n---\n3\n")) {
			assert.NoError(t, err)
			got = append(got, plain(doc))
		}
		assert.Equal(t, []any{int64(1), int64(2), int64(3)}, got)
	})
	t.Run("stops at first error", func(t *testing.T) {
		var docs, errs int
		for doc, err := range Documents([]byte("ok\n---\n[broken\n---\nnever\n")) {
			if err != nil {
				errs++
			} else if doc != nil {
				docs++
			}
		}
		assert.Equal(t, 1, docs)
		assert.Equal(t, 1, errs)
	})
}

func TestLoadReader(t *testing.T) {
	t.Run("plain utf8", func(t *testing.T) {
		doc, err := LoadOneReader(strings.NewReader("a: 1\n"))
		assert.NoError(t, err)
		v := doc.GetString("a")
		assert.NotZero(t, v)
		i, _ := v.AsInt()
		assert.Equal(t, int64(1), i)
	})
	t.Run("utf8 byte order mark", func(t *testing.T) {
		doc, err := LoadOneReader(strings.NewReader("\xef\xbb\xbfa: 1\n"))
		assert.NoError(t, err)
		assert.True(t, doc.Has(value.NewString("a")))
	})
	t.Run("utf16 little endian", func(t *testing.T) {
		src := []byte{0xff, 0xfe}
		for _, r := range "a: 1\n" {
			src = append(src, byte(r), 0)
		}
		doc, err := LoadOneReader(strings.NewReader(string(src)))
		assert.NoError(t, err)
		v := doc.GetString("a")
		assert.NotZero(t, v)
		i, _ := v.AsInt()
		assert.Equal(t, int64(1), i)
	})
	t.Run("unlimited size ceiling reads the whole stream", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Limits = limits.Unlimited()
		doc, err := cfg.LoadOneReader(strings.NewReader("a: 1\n"))
		assert.NoError(t, err)
		v := doc.GetString("a")
		assert.NotZero(t, v)
		i, _ := v.AsInt()
		assert.Equal(t, int64(1), i)
	})
	t.Run("oversized stream rejected while buffering", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Limits.MaxDocumentSize = 8
		_, err := cfg.LoadOneReader(strings.NewReader("key: a very long scalar\n"))
		var lim *limits.Error
		assert.True(t, errors.As(err, &lim))
		assert.Equal(t, limits.DocumentSizeExceeded, lim.Kind)
	})
}

func TestInMemoryByteOrderMarks(t *testing.T) {
	t.Run("utf8 mark stripped", func(t *testing.T) {
		doc, err := LoadOne([]byte("\xef\xbb\xbfa: 1\n"))
		assert.NoError(t, err)
		assert.True(t, doc.Has(value.NewString("a")))
	})
	t.Run("utf16 source transcoded", func(t *testing.T) {
		src := []byte{0xff, 0xfe}
		for _, r := range "x: ok\n" {
			src = append(src, byte(r), 0)
		}
		doc, err := LoadOne(src)
		assert.NoError(t, err)
		v := doc.GetString("x")
		assert.NotZero(t, v)
		s, _ := v.AsString()
		assert.Equal(t, "ok", s)
	})
}

func TestMergePrecedence(t *testing.T) {
	t.Run("explicit key wins over merge", func(t *testing.T) {
		doc, err := LoadOne([]byte("m:\n  <<: {a: 1, b: 2}\n  b: 3\n"))
		assert.NoError(t, err)
		want := [][2]any{{"m", [][2]any{{"b", int64(3)}, {"a", int64(1)}}}}
		if diff := cmp.Diff(want, plain(doc)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
	t.Run("later merge source wins", func(t *testing.T) {
		src := "m:\n  <<: [{a: 1}, {a: 2, b: 2}]\n  a: 9\n"
		doc, err := LoadOne([]byte(src))
		assert.NoError(t, err)
		want := [][2]any{{"m", [][2]any{{"a", int64(9)}, {"b", int64(2)}}}}
		if diff := cmp.Diff(want, plain(doc)); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestRoundTripThroughFacade(t *testing.T) {
	sources := []string{
		"name: demo\nports:\n  - 80\n  - 443\nenv:\n  DEBUG: 'false'\n",
		"servers:\n  - host: a\n    weight: 1.5\n  - host: b\n    weight: 2.0\n",
		"defaults: &d\n  retries: 3\njob:\n  <<: *d\n  name: sync\n",
	}
	for _, src := range sources {
		t.Run(strings.SplitN(src, ":", 2)[0], func(t *testing.T) {
			first, err := LoadOne([]byte(src))
			assert.NoError(t, err)
			text, err := Dump(first)
			assert.NoError(t, err)
			second, err := LoadOne([]byte(text))
			assert.NoError(t, err)
			if diff := cmp.Diff(plain(first), plain(second)); diff != "" {
				t.Errorf("round trip changed value (-first +second):\n%s\nemitted:\n%s", diff, text)
			}
		})
	}
}

func TestDumpAllSeparators(t *testing.T) {
	docs, err := LoadAll([]byte("a: 1\n---\nb: 2\n"))
	assert.NoError(t, err)
	out, err := DumpAll(docs)
	assert.NoError(t, err)
	assert.Equal(t, "a: 1\n---\nb: 2\n", out)
}

func TestSecureConfig(t *testing.T) {
	t.Run("strict limits apply", func(t *testing.T) {
		deep := strings.Repeat("[", 60) + strings.Repeat("]", 60)
		_, err := SecureConfig().LoadOne([]byte(deep))
		var lim *limits.Error
		assert.True(t, errors.As(err, &lim))
		assert.Equal(t, limits.DepthExceeded, lim.Kind)
	})
	t.Run("unknown tags rejected", func(t *testing.T) {
		_, err := SecureConfig().LoadOne([]byte("a: !custom 1\n"))
		assert.True(t, errors.Is(err, composer.ErrUnknownTag))
	})
}

func TestConfigOptionsFlowThrough(t *testing.T) {
	t.Run("duplicate key policy", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.DuplicateKeys = composer.DuplicateLastWins
		doc, err := cfg.LoadOne([]byte("a: 1\na: 2\n"))
		assert.NoError(t, err)
		i, _ := doc.GetString("a").AsInt()
		assert.Equal(t, int64(2), i)
	})
	t.Run("failsafe schema", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Schema = composer.SchemaFailsafe
		doc, err := cfg.LoadOne([]byte("a: 42\n"))
		assert.NoError(t, err)
		assert.Equal(t, value.String, doc.GetString("a").Kind())
	})
}

func TestRender(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = prev }()

	t.Run("positions a caret under the failure", func(t *testing.T) {
		src := "a: 'unclosed\n"
		_, err := LoadOne([]byte(src))
		assert.Error(t, err)
		out := Render(err, src)
		assert.True(t, strings.Contains(out, "error:"))
		assert.True(t, strings.Contains(out, "--> line 1"))
		assert.True(t, strings.Contains(out, "a: 'unclosed"))
		assert.True(t, strings.Contains(out, "^"))
		assert.True(t, strings.Contains(out, "hint:"))
	})
	t.Run("limit errors explain the ceiling", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Limits.MaxAnchors = 1
		src := "a: &x 1\nb: &y 2\n"
		_, err := cfg.LoadOne([]byte(src))
		assert.Error(t, err)
		out := Render(err, src)
		assert.True(t, strings.Contains(out, "ceiling is 1"))
	})
	t.Run("errors without position still render", func(t *testing.T) {
		out := Render(errors.New("boom"), "")
		assert.True(t, strings.Contains(out, "error: boom"))
	})
}

func TestStickyScannerError(t *testing.T) {
	_, err := LoadAll([]byte("a: \x01\n"))
	var serr *scanner.Error
	assert.True(t, errors.As(err, &serr))
}
