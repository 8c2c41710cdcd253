package engine

import (
	"encoding/json"
	"strconv"
)

// argAliases maps accepted alias keys to their canonical field name. A
// canonical key already present in the args object always wins over any
// alias also present.
var argAliases = map[string]string{
	"command":  "cmd",
	"filepath": "path",
	"file":     "path",

	"old":      "old_string",
	"old_text": "old_string",
	"oldText":  "old_string",
	"search":   "old_string",
	"from":     "old_string",

	"new":      "new_string",
	"new_text": "new_string",
	"newText":  "new_string",
	"replace":  "new_string",
	"to":       "new_string",
}

// numericKeys are arg fields coerced from a JSON string to a number before
// validation, because some models emit
// integer args quoted (e.g. `"max_results": "50"`).
var numericKeys = map[string]bool{
	"max_results": true,
	"max_bytes":   true,
	"timeout_ms":  true,
	"delay_ms":    true,
}

// normalizeArgs applies the alias table, the globs string-or-array
// flexibility, and numeric-string coercion to a tool call's raw args,
// returning the normalised JSON object ready for the executor's per-tool
// validation.
func normalizeArgs(toolName string, raw map[string]json.RawMessage) json.RawMessage {
	out := make(map[string]json.RawMessage, len(raw))
	for key, value := range raw {
		canonical, isAlias := argAliases[key]
		if !isAlias {
			canonical = key
		}
		if _, exists := out[canonical]; exists && isAlias {
			continue // canonical key already present takes priority
		}
		out[canonical] = value
	}

	if v, ok := out["globs"]; ok {
		out["globs"] = normalizeGlobs(v)
	}

	for key := range numericKeys {
		if v, ok := out[key]; ok {
			out[key] = coerceNumericString(v)
		}
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		// Unreachable for well-formed json.RawMessage values; fall back to
		// the original shape rather than dropping the call's args.
		encoded, _ = json.Marshal(raw)
	}
	return encoded
}

// normalizeGlobs accepts globs as either a JSON string or a JSON array of
// strings, always producing an array.
func normalizeGlobs(v json.RawMessage) json.RawMessage {
	var single string
	if err := json.Unmarshal(v, &single); err == nil {
		wrapped, _ := json.Marshal([]string{single})
		return wrapped
	}
	return v
}

// coerceNumericString converts a JSON string containing an integer into a
// JSON number, leaving any other shape untouched.
func coerceNumericString(v json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return v
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return v
	}
	encoded, _ := json.Marshal(n)
	return encoded
}
