// Package caption pulls the caption text out of an archived post document.
package caption

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrNotObject is returned when a document is valid JSON but not an object.
var ErrNotObject = errors.New("caption document is not a JSON object")

// DefaultFields are the caption fields tried when a Lookup names none.
var DefaultFields = []string{"text", "caption"}

// Lookup configures where the caption is searched for.
type Lookup struct {
	// Fields are tried in order at the top level.
	Fields []string
	// Nested also scans the values of top-level keys, in document order, when
	// the top level has no caption. Only one level deep.
	Nested bool
}

func (l Lookup) fields() []string {
	if len(l.Fields) == 0 {
		return DefaultFields
	}
	return l.Fields
}

// Decode converts raw document bytes to UTF-8, honoring a UTF-8 or UTF-16
// byte order mark.
func Decode(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return out, nil
}

// Extract returns the caption of a post document. An empty string with a nil
// error means the document has no caption, which is a normal state. Invalid
// JSON or a non-object document is an error.
func Extract(data []byte, l Lookup) (string, error) {
	decoded, err := Decode(data)
	if err != nil {
		return "", err
	}

	keys, values, err := readObject(decoded)
	if err != nil {
		return "", err
	}

	fields := l.fields()
	if text := lookupFields(values, fields); text != "" {
		return text, nil
	}
	if !l.Nested {
		return "", nil
	}

	for _, key := range keys {
		raw := bytes.TrimSpace(values[key])
		if len(raw) == 0 || raw[0] != '{' {
			continue
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			continue
		}
		if text := lookupFields(nested, fields); text != "" {
			return text, nil
		}
	}
	return "", nil
}

func lookupFields(obj map[string]json.RawMessage, fields []string) string {
	for _, field := range fields {
		raw, ok := obj[field]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

// readObject decodes a top-level JSON object, keeping its key order.
func readObject(data []byte) ([]string, map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			return nil, nil, fmt.Errorf("invalid JSON document")
		}
		return nil, nil, ErrNotObject
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid JSON document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, ErrNotObject
	}

	var keys []string
	values := make(map[string]json.RawMessage)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, fmt.Errorf("invalid JSON document: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("invalid JSON document: unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("invalid JSON document: %w", err)
		}
		if _, seen := values[key]; !seen {
			keys = append(keys, key)
		}
		values[key] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, fmt.Errorf("invalid JSON document: %w", err)
	}
	return keys, values, nil
}
