package parser

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/safeyaml/limits"
	"github.com/shibukawa/safeyaml/token"
)

func parseAll(t *testing.T, src string) []Event {
	t.Helper()
	evs, err := parseWith(src, limits.Default())
	assert.NoError(t, err)
	return evs
}

func parseWith(src string, l limits.Limits) ([]Event, error) {
	p := NewForSource(src, limits.NewTracker(l))
	var evs []Event
	for {
		ev, err := p.Next()
		if err != nil {
			return evs, err
		}
		if ev == nil {
			return evs, nil
		}
		evs = append(evs, *ev)
	}
}

func eventTypes(evs []Event) []EventType {
	types := make([]EventType, len(evs))
	for i, ev := range evs {
		types[i] = ev.Type
	}
	return types
}

func TestParseScalarDocument(t *testing.T) {
	evs := parseAll(t, "hello\n")
	assert.Equal(t, []EventType{
		StreamStart, DocumentStart, Scalar, DocumentEnd, StreamEnd,
	}, eventTypes(evs))
	assert.Equal(t, "hello", evs[2].Value)
	assert.False(t, evs[1].Explicit)
}

func TestParseBlockMapping(t *testing.T) {
	evs := parseAll(t, "a: 1\nb: 2\n")
	assert.Equal(t, []EventType{
		StreamStart, DocumentStart, MappingStart,
		Scalar, Scalar, Scalar, Scalar,
		MappingEnd, DocumentEnd, StreamEnd,
	}, eventTypes(evs))
	assert.False(t, evs[2].Flow)
}

func TestParseBlockSequence(t *testing.T) {
	evs := parseAll(t, "- 1\n- 2\n")
	assert.Equal(t, []EventType{
		StreamStart, DocumentStart, SequenceStart,
		Scalar, Scalar,
		SequenceEnd, DocumentEnd, StreamEnd,
	}, eventTypes(evs))
}

func TestParseIndentlessSequence(t *testing.T) {
	// sequence entries at the same column as the mapping key
	evs := parseAll(t, "a:\n- 1\n- 2\nb: 3\n")
	assert.Equal(t, []EventType{
		StreamStart, DocumentStart, MappingStart,
		Scalar, SequenceStart, Scalar, Scalar, SequenceEnd,
		Scalar, Scalar,
		MappingEnd, DocumentEnd, StreamEnd,
	}, eventTypes(evs))
}

func TestParseFlowCollections(t *testing.T) {
	t.Run("sequence", func(t *testing.T) {
		evs := parseAll(t, "[1, 2]")
		assert.Equal(t, []EventType{
			StreamStart, DocumentStart, SequenceStart,
			Scalar, Scalar,
			SequenceEnd, DocumentEnd, StreamEnd,
		}, eventTypes(evs))
		assert.True(t, evs[2].Flow)
	})
	t.Run("mapping", func(t *testing.T) {
		evs := parseAll(t, "{a: 1}")
		assert.Equal(t, []EventType{
			StreamStart, DocumentStart, MappingStart,
			Scalar, Scalar,
			MappingEnd, DocumentEnd, StreamEnd,
		}, eventTypes(evs))
	})
	t.Run("trailing comma", func(t *testing.T) {
		evs := parseAll(t, "[1, 2,]")
		assert.Equal(t, 2, countScalars(evs))
	})
	t.Run("bare key", func(t *testing.T) {
		// {a} is a mapping with a null value
		evs := parseAll(t, "{a}")
		assert.Equal(t, []EventType{
			StreamStart, DocumentStart, MappingStart,
			Scalar, Scalar,
			MappingEnd, DocumentEnd, StreamEnd,
		}, eventTypes(evs))
		assert.Equal(t, "a", evs[3].Value)
		assert.Equal(t, "", evs[4].Value)
	})
	t.Run("single pair in sequence", func(t *testing.T) {
		evs := parseAll(t, "[a: 1]")
		assert.Equal(t, []EventType{
			StreamStart, DocumentStart, SequenceStart,
			MappingStart, Scalar, Scalar, MappingEnd,
			SequenceEnd, DocumentEnd, StreamEnd,
		}, eventTypes(evs))
	})
}

func countScalars(evs []Event) int {
	n := 0
	for _, ev := range evs {
		if ev.Type == Scalar {
			n++
		}
	}
	return n
}

func TestParseNullValues(t *testing.T) {
	// missing values become empty plain scalars
	evs := parseAll(t, "a:\nb: 1\n")
	assert.Equal(t, []EventType{
		StreamStart, DocumentStart, MappingStart,
		Scalar, Scalar, Scalar, Scalar,
		MappingEnd, DocumentEnd, StreamEnd,
	}, eventTypes(evs))
	assert.Equal(t, "", evs[4].Value)
}

func TestParseAnchorsAndAliases(t *testing.T) {
	evs := parseAll(t, "a: &x 1\nb: *x\n")
	var anchored, alias *Event
	for i := range evs {
		if evs[i].Anchor == "x" {
			anchored = &evs[i]
		}
		if evs[i].Type == Alias {
			alias = &evs[i]
		}
	}
	assert.NotZero(t, anchored)
	assert.Equal(t, "1", anchored.Value)
	assert.NotZero(t, alias)
	assert.Equal(t, "x", alias.Value)
}

func TestParseTags(t *testing.T) {
	evs := parseAll(t, "!!str 123\n")
	sc := evs[2]
	assert.Equal(t, Scalar, sc.Type)
	assert.NotZero(t, sc.Tag)
	assert.Equal(t, "!!", sc.Tag.Handle)
	assert.Equal(t, "str", sc.Tag.Suffix)
}

func TestParseTaggedCollection(t *testing.T) {
	evs := parseAll(t, "!!set\n? a\n? b\n")
	assert.Equal(t, MappingStart, evs[2].Type)
	assert.NotZero(t, evs[2].Tag)
	assert.Equal(t, "set", evs[2].Tag.Suffix)
}

func TestParseMultiDocument(t *testing.T) {
	evs := parseAll(t, "---\none\n---\ntwo\n...\n")
	assert.Equal(t, []EventType{
		StreamStart,
		DocumentStart, Scalar, DocumentEnd,
		DocumentStart, Scalar, DocumentEnd,
		StreamEnd,
	}, eventTypes(evs))
	assert.True(t, evs[1].Explicit)
	assert.True(t, evs[6].Explicit)
}

func TestParseEmptyStream(t *testing.T) {
	evs := parseAll(t, "")
	assert.Equal(t, []EventType{StreamStart, StreamEnd}, eventTypes(evs))
}

func TestParseEmptyDocument(t *testing.T) {
	evs := parseAll(t, "---\n")
	assert.Equal(t, []EventType{
		StreamStart, DocumentStart, Scalar, DocumentEnd, StreamEnd,
	}, eventTypes(evs))
	assert.Equal(t, "", evs[2].Value)
}

func TestParseDirectives(t *testing.T) {
	t.Run("version attached", func(t *testing.T) {
		evs := parseAll(t, "%YAML 1.2\n---\nx\n")
		assert.Equal(t, "1.2", evs[1].Version)
	})
	t.Run("version persists across documents", func(t *testing.T) {
		evs := parseAll(t, "%YAML 1.2\n---\nx\n---\ny\n")
		assert.Equal(t, "1.2", evs[4].Version)
	})
	t.Run("tag directive scoped to document", func(t *testing.T) {
		evs := parseAll(t, "%TAG !e! tag:x:\n---\na\n---\nb\n")
		assert.Equal(t, 1, len(evs[1].TagDirectives))
		assert.Equal(t, "!e!", evs[1].TagDirectives[0].Handle)
		assert.Equal(t, 0, len(evs[4].TagDirectives))
	})
	t.Run("directives need explicit start", func(t *testing.T) {
		_, err := parseWith("%YAML 1.2\nfoo\n", limits.Default())
		assert.IsError(t, err, ErrDirectivesWithoutDocument)
	})
}

func TestParseStructuralErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unterminated flow sequence", "[1, 2"},
		{"unterminated flow mapping", "{a: 1"},
		{"scalar after mapping", "a: b\nc\n"},
		{"value indicator in sequence", "- 1\n: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseWith(tt.src, limits.Default())
			assert.IsError(t, err, ErrUnexpectedToken)
			var perr *Error
			assert.True(t, errors.As(err, &perr))
			assert.True(t, perr.Position().Line >= 1)
		})
	}
}

func TestParseAliasWithProperties(t *testing.T) {
	_, err := parseWith("a: &x 1\nb: !!str *x\n", limits.Default())
	assert.IsError(t, err, ErrAliasProperties)
}

func TestParseErrorSticky(t *testing.T) {
	p := NewForSource("[1, 2", limits.NewTracker(limits.Default()))
	var first error
	for {
		_, err := p.Next()
		if err != nil {
			first = err
			break
		}
	}
	_, err := p.Next()
	assert.Equal(t, first, err)
}

func TestParseDepthLimit(t *testing.T) {
	l := limits.Default()
	l.MaxDepth = 2
	_, err := parseWith("[[[1]]]", l)
	var lerr *limits.Error
	assert.True(t, errors.As(err, &lerr))
	assert.Equal(t, limits.DepthExceeded, lerr.Kind)

	// depth 2 is fine
	_, err = parseWith("[[1]]", l)
	assert.NoError(t, err)
}

func TestParseDepthReleased(t *testing.T) {
	// siblings do not accumulate depth
	l := limits.Default()
	l.MaxDepth = 2
	src := "a: [1]\nb: [2]\nc: [3]\n"
	_, err := parseWith(src, l)
	assert.NoError(t, err)
}

func TestParseScalarStylesSurvive(t *testing.T) {
	evs := parseAll(t, "a: 'single'\nb: \"double\"\nc: |\n  lit\nd: plain\n")
	styles := map[string]token.ScalarStyle{}
	var lastKey string
	for _, ev := range evs {
		if ev.Type != Scalar {
			continue
		}
		if lastKey == "" {
			lastKey = ev.Value
			continue
		}
		styles[lastKey] = ev.Style
		lastKey = ""
	}
	assert.Equal(t, token.StyleSingleQuoted, styles["a"])
	assert.Equal(t, token.StyleDoubleQuoted, styles["b"])
	assert.Equal(t, token.StyleLiteral, styles["c"])
	assert.Equal(t, token.StylePlain, styles["d"])
}

func TestEventsIterator(t *testing.T) {
	p := NewForSource("a: 1\n", limits.NewTracker(limits.Default()))
	var types []EventType
	for ev, err := range p.Events() {
		assert.NoError(t, err)
		types = append(types, ev.Type)
	}
	assert.Equal(t, StreamEnd, types[len(types)-1])
}
