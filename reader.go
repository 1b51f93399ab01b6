package safeyaml

import (
	"io"
	"math"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/shibukawa/safeyaml/limits"
)

// readSource decodes r into UTF-8 text, honoring UTF-8 and UTF-16 byte
// order marks, and refuses to buffer more than max bytes of decoded text.
// The size check here guards the buffering step; the scanner re-checks the
// same ceiling before tokenizing.
func readSource(r io.Reader, max int) (string, error) {
	dec := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	// one byte past the ceiling distinguishes "at the limit" from "over";
	// guard the increment so an unlimited ceiling does not wrap negative
	bound := int64(max)
	if bound < math.MaxInt64 {
		bound++
	}
	buf, err := io.ReadAll(io.LimitReader(dec, bound))
	if err != nil {
		return "", err
	}
	if len(buf) > max {
		return "", &limits.Error{
			Kind:   limits.DocumentSizeExceeded,
			Limit:  max,
			Actual: len(buf),
		}
	}
	return string(buf), nil
}

// normalizeSource strips a leading byte order mark from in-memory sources
// and transcodes UTF-16 input identified by its mark. Sources without a
// mark pass through untouched.
func normalizeSource(src string) string {
	switch {
	case strings.HasPrefix(src, "\xef\xbb\xbf"):
		return src[3:]
	case strings.HasPrefix(src, "\xfe\xff"), strings.HasPrefix(src, "\xff\xfe"):
		out, _, err := transform.String(unicode.BOMOverride(unicode.UTF8.NewDecoder()), src)
		if err != nil {
			return src
		}
		return out
	}
	return src
}
