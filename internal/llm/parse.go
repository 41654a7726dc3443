package llm

import (
	"encoding/json"
	"strings"
)

// Decode coerces raw inference output into T. Model output is
// adversarial relative to strict parsing: the JSON object we asked for
// may arrive wrapped in prose or markdown fences, or truncated. The
// whole input is tried first; on failure the substring from the first
// "{" to the last "}" is tried. Absence is reported as data, never as
// an error, so callers branch instead of recovering from panics or
// wrapped failures.
func Decode[T any](raw string) (T, bool) {
	if v, ok := tryDecode[T](strings.TrimSpace(raw)); ok {
		return v, true
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		if v, ok := tryDecode[T](raw[start : end+1]); ok {
			return v, true
		}
	}

	var zero T
	return zero, false
}

// tryDecode accepts only a JSON object with at least one member. An
// empty object carries no extracted fields and is treated the same as
// garbage, so downstream fallbacks still apply.
func tryDecode[T any](s string) (T, bool) {
	var zero T

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &probe); err != nil || len(probe) == 0 {
		return zero, false
	}

	var out T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return zero, false
	}
	return out, true
}
