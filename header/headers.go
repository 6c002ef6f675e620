package header

import (
	"strings"
	"unicode"
)

// Header is a single name/value pair.
type Header struct {
	Name  string
	Value string
}

// Set is an ordered collection of headers. Go's map[string]string cannot
// preserve insertion order, but the generated header set's order is an
// observable property of the generated set, so Set is a slice
// rather than a map — the realistic Go analog of how this sampler's
// original dict-based implementation preserves declaration order for
// free.
type Set []Header

// Get looks up a header by case-insensitive name.
func (s Set) Get(name string) (string, bool) {
	for _, h := range s {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Map converts the set to a plain map, for callers that don't care about
// order (e.g. attaching to an *http.Request via Header.Set in a loop).
func (s Set) Map() map[string]string {
	out := make(map[string]string, len(s))
	for _, h := range s {
		out[h.Name] = h.Value
	}
	return out
}

// reorder returns headers sorted according to order, the browser's
// declared header sequence: headers present in order come first, in that
// relative order; any remaining headers are appended in their existing
// relative order.
func reorder(headers Set, order []string) Set {
	if len(order) == 0 {
		return headers
	}
	byName := headers.Map()
	seen := make(map[string]struct{}, len(headers))

	out := make(Set, 0, len(headers))
	for _, name := range order {
		if v, ok := byName[name]; ok {
			out = append(out, Header{Name: name, Value: v})
			seen[name] = struct{}{}
		}
	}
	for _, h := range headers {
		if _, ok := seen[h.Name]; !ok {
			out = append(out, h)
		}
	}
	return out
}

// pascalizeName title-cases a header name, hyphen-separated:
// keys starting with ":" or "sec-ch-ua" are left untouched;
// dnt/rtt/ect are upper-cased; everything else is title-cased.
func pascalizeName(name string) string {
	lower := strings.ToLower(name)
	if strings.HasPrefix(name, ":") || strings.HasPrefix(lower, "sec-ch-ua") {
		return name
	}
	switch lower {
	case "dnt", "rtt", "ect":
		return strings.ToUpper(name)
	}

	parts := strings.Split(name, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		r := []rune(strings.ToLower(p))
		r[0] = unicode.ToUpper(r[0])
		parts[i] = string(r)
	}
	return strings.Join(parts, "-")
}

// pascalize renders an HTTP/2-cased header set in HTTP/1 titlecase
// convention. Used by the HTTP/1→HTTP/2 downgrade fallback, which
// pascalizes but intentionally does not re-run Sec-Fetch dialect logic.
func pascalize(headers Set) Set {
	out := make(Set, len(headers))
	for i, h := range headers {
		out[i] = Header{Name: pascalizeName(h.Name), Value: h.Value}
	}
	return out
}
