package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// marshalData converts entry details to JSON TEXT for storage.
// Map keys come out sorted, so identical details always store identically.
func marshalData(data map[string]any) (string, error) {
	if len(data) == 0 {
		return "{}", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalData parses stored JSON TEXT. Numbers stay json.Number so tick
// counts and ids survive the round trip exactly.
func unmarshalData(text string) (map[string]any, error) {
	if text == "" || text == "{}" {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	return data, nil
}
