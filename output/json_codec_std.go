//go:build !jsonv2

package output

import (
	"encoding/json"
	"io"
)

// encodeJSON writes v indented and without HTML escaping, so URLs with
// query strings stay readable.
func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func jsonMarshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
