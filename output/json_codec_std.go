//go:build !jsonv2

package output

import (
	"bytes"
	"encoding/json"
)

func jsonMarshal(value any) ([]byte, error) {
	return encodeJSON(value, "", "")
}

func jsonMarshalIndent(value any, prefix, indent string) ([]byte, error) {
	return encodeJSON(value, prefix, indent)
}

// encodeJSON writes '<', '>' and '&' verbatim so descriptions stay readable.
func encodeJSON(value any, prefix, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if prefix != "" || indent != "" {
		enc.SetIndent(prefix, indent)
	}
	if err := enc.Encode(value); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
