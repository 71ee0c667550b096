package request

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNormalizeEquivalentShapes ensures every accepted payload shape
// reduces to the same canonical URL.
func TestNormalizeEquivalentShapes(t *testing.T) {
	t.Parallel()

	const want = "https://example.com/watch?v=abc"
	shapes := map[string]string{
		"nested query":        `{"query":{"url":"https://example.com/watch?v=abc"}}`,
		"top-level url":       `{"url":"https://example.com/watch?v=abc"}`,
		"array of mapping":    `[{"url":"https://example.com/watch?v=abc"}]`,
		"array of nested":     `[{"query":{"url":"https://example.com/watch?v=abc"}}]`,
		"array of bare url":   `["https://example.com/watch?v=abc"]`,
		"bare string":         `"https://example.com/watch?v=abc"`,
		"extra fields around": `{"url":"https://example.com/watch?v=abc","format":"text"}`,
	}
	for name, payload := range shapes {
		norm, err := Normalize([]byte(payload))
		require.NoError(t, err, "shape %q", name)
		require.Equal(t, want, norm.URL, "shape %q", name)
	}
}

// TestNormalizeQueryURLTakesPriority ensures the nested query.url wins
// over a top-level url when both are present.
func TestNormalizeQueryURLTakesPriority(t *testing.T) {
	t.Parallel()

	norm, err := Normalize([]byte(`{"query":{"url":"https://a.example"},"url":"https://b.example"}`))
	require.NoError(t, err)
	require.Equal(t, "https://a.example", norm.URL)
}

// TestNormalizeRejections enumerates the malformed payloads and the reason
// each one is refused.
func TestNormalizeRejections(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"not json":           `{url:`,
		"number payload":     `42`,
		"empty object":       `{}`,
		"empty array":        `[]`,
		"two-element array":  `["https://a.example","https://b.example"]`,
		"array of number":    `[42]`,
		"non-string url":     `{"url":42}`,
		"non-string nested":  `{"query":{"url":42}}`,
		"empty url":          `{"url":"  "}`,
		"ftp scheme":         `{"url":"ftp://example.com/file"}`,
		"scheme only":        `{"url":"https://"}`,
		"relative reference": `{"url":"/watch?v=abc"}`,
	}
	for name, payload := range cases {
		_, err := Normalize([]byte(payload))
		require.Error(t, err, "payload %q", name)

		var ve *ValidationError
		require.True(t, errors.As(err, &ve), "payload %q must yield a validation error", name)
		require.NotEmpty(t, ve.Reason)
		require.Equal(t, payload, string(ve.Payload), "payload must be preserved for %q", name)
	}
}

// TestNormalizeStrictRejectsLenientShapes ensures the typed endpoints only
// accept the documented mapping forms.
func TestNormalizeStrictRejectsLenientShapes(t *testing.T) {
	t.Parallel()

	norm, err := NormalizeStrict([]byte(`{"url":"https://example.com/a"}`))
	require.NoError(t, err)
	require.Equal(t, "https://example.com/a", norm.URL)

	for name, payload := range map[string]string{
		"array":       `[{"url":"https://example.com/a"}]`,
		"bare string": `"https://example.com/a"`,
	} {
		_, err := NormalizeStrict([]byte(payload))
		require.Error(t, err, "shape %q", name)
	}
}
