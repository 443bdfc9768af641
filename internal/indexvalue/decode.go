package indexvalue

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MediaReference is one picked item of a media picker value.
type MediaReference struct {
	Key      string `json:"key,omitempty"`
	MediaKey string `json:"mediaKey"`
}

// DecodeMediaReferences parses a JSON array of media references. Null
// entries come back as nil elements.
func DecodeMediaReferences(payload string) ([]*MediaReference, error) {
	var refs []*MediaReference
	if err := json.Unmarshal([]byte(payload), &refs); err != nil {
		return nil, fmt.Errorf("decoding media references: %w: %v", ErrMalformedPayload, err)
	}
	return refs, nil
}

// scalar renders a single raw value as text. nil renders as "".
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case json.RawMessage:
		return string(t)
	case fmt.Stringer:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// DefaultScalar returns the first value as text, or "" for an empty sequence
// or a nil first value.
func DefaultScalar(values []any) string {
	if len(values) == 0 {
		return ""
	}
	return scalar(values[0])
}

func splitTokens(s string) []string {
	parts := strings.Split(s, ",")
	tokens := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}
