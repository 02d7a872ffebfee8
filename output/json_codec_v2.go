//go:build jsonv2

package output

import (
	"encoding/json/jsontext"
	jsonv2 "encoding/json/v2"
)

func jsonMarshal(value any) ([]byte, error) {
	return jsonv2.Marshal(value, jsonv2.Deterministic(true))
}

func jsonMarshalIndent(value any, prefix, indent string) ([]byte, error) {
	return jsonv2.Marshal(value,
		jsonv2.Deterministic(true),
		jsontext.EscapeForHTML(false),
		jsontext.WithIndentPrefix(prefix),
		jsontext.WithIndent(indent),
	)
}
