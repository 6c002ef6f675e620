package fingerprint

import (
	"encoding/json"
	"strings"

	"idsynth/internal/loader"
)

// unpackValue reverses the two sentinel encodings the training data uses to
// keep the underlying network simple:
//   - the literal token *MISSING_VALUE* becomes the string "absent"
//     (no Go zero value unambiguously means "the dataset recorded no
//     value here", so unpacking is explicit about it rather than
//     silently emitting "");
//   - a *STRINGIFIED*-prefixed value is inline JSON and is decoded into the
//     equivalent Go value (map[string]any, []any, float64, bool, or string).
//
// unpackValue is idempotent: a value that carries neither sentinel is
// returned unchanged, so running it twice has no further effect.
func unpackValue(raw string) any {
	if raw == loader.MissingValueToken {
		return "absent"
	}
	if strings.HasPrefix(raw, loader.StringifiedPrefix) {
		var decoded any
		payload := raw[len(loader.StringifiedPrefix):]
		if err := json.Unmarshal([]byte(payload), &decoded); err == nil {
			return decoded
		}
	}
	return raw
}

// unpackSample applies unpackValue across every attribute of a raw sample,
// producing the map later reshaped into a Fingerprint by decode().
func unpackSample(sample map[string]string) map[string]any {
	out := make(map[string]any, len(sample))
	for attribute, raw := range sample {
		out[attribute] = unpackValue(raw)
	}
	return out
}
