// Package request normalizes heterogeneous inbound payloads into one
// canonical URL value.
package request

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Normalized is the canonical form every accepted payload reduces to.
// The URL is guaranteed non-empty with an http or https scheme.
type Normalized struct {
	URL string `json:"url"`
}

// ValidationError reports an unrecognized or malformed payload. Payload
// keeps the original bytes for the debug endpoint.
type ValidationError struct {
	Reason  string
	Payload json.RawMessage
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s", e.Reason)
}

func invalid(reason string, raw []byte) error {
	return &ValidationError{Reason: reason, Payload: append(json.RawMessage(nil), raw...)}
}

// NormalizeStrict accepts only the documented mapping shapes:
// {"query":{"url":...}} or {"url":...}. Used by the typed endpoints.
func NormalizeStrict(raw []byte) (Normalized, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Normalized{}, invalid("body is not valid JSON", raw)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return Normalized{}, invalid("body must be a JSON object", raw)
	}
	return fromMapping(m, raw)
}

// Normalize is the lenient form used by the raw endpoints. On top of the
// mapping shapes it tolerates a single-element array wrapping either
// mapping shape or a bare string, and a bare URL string.
func Normalize(raw []byte) (Normalized, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Normalized{}, invalid("body is not valid JSON", raw)
	}
	switch t := v.(type) {
	case map[string]any:
		return fromMapping(t, raw)
	case []any:
		if len(t) != 1 {
			return Normalized{}, invalid("array payload must contain exactly one element", raw)
		}
		switch el := t[0].(type) {
		case map[string]any:
			return fromMapping(el, raw)
		case string:
			return validateURL(el, raw)
		default:
			return Normalized{}, invalid("array element must be an object or a string", raw)
		}
	case string:
		return validateURL(t, raw)
	default:
		return Normalized{}, invalid("unsupported payload shape", raw)
	}
}

// fromMapping tries the mapping shapes in priority order: a nested
// query.url first, then a top-level url.
func fromMapping(m map[string]any, raw []byte) (Normalized, error) {
	if q, ok := m["query"].(map[string]any); ok {
		if u, ok := q["url"]; ok {
			s, ok := u.(string)
			if !ok {
				return Normalized{}, invalid("query.url must be a string", raw)
			}
			return validateURL(s, raw)
		}
	}
	if u, ok := m["url"]; ok {
		s, ok := u.(string)
		if !ok {
			return Normalized{}, invalid("url must be a string", raw)
		}
		return validateURL(s, raw)
	}
	return Normalized{}, invalid("no url field found", raw)
}

func validateURL(s string, raw []byte) (Normalized, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Normalized{}, invalid("url is empty", raw)
	}
	u, err := url.Parse(s)
	if err != nil {
		return Normalized{}, invalid("url is not parseable", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Normalized{}, invalid("url must use http or https", raw)
	}
	if u.Host == "" {
		return Normalized{}, invalid("url has no host", raw)
	}
	return Normalized{URL: s}, nil
}
