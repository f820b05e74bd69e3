package cache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Key builds a deterministic cache key from a prefix and request
// parameters. Params are sorted by field name and values are
// JSON-serialized, so semantically identical requests collide to the
// same key regardless of how the caller assembled the map.
func Key(prefix string, params map[string]any) string {
	if len(params) == 0 {
		return prefix
	}

	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(prefix)
	for _, name := range names {
		raw, err := json.Marshal(params[name])
		if err != nil {
			// Unserializable values fall back to their Go formatting;
			// the key stays deterministic for any given input.
			raw = []byte(fmt.Sprintf("%v", params[name]))
		}
		b.WriteString(":")
		b.WriteString(name)
		b.WriteString("=")
		b.Write(raw)
	}
	return b.String()
}
