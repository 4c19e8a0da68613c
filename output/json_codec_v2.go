//go:build jsonv2

package output

import (
	"encoding/json/jsontext"
	jsonv2 "encoding/json/v2"
	"io"
)

func encodeJSON(w io.Writer, v any) error {
	data, err := jsonv2.Marshal(v, jsontext.WithIndent("  "), jsontext.EscapeForHTML(false))
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func jsonMarshal(v any) ([]byte, error) {
	return jsonv2.Marshal(v)
}
