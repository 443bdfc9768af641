package datatype

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/BRO3886/content-indexer/internal/indexvalue"
)

// ScalarExtractor emits the stored value of a field as a single index value.
type ScalarExtractor struct{}

func (ScalarExtractor) IndexValues(_ context.Context, field indexvalue.Field, culture, _ string, _ bool) ([]indexvalue.IndexValue, error) {
	v := field.Value(culture)
	if v == nil {
		return nil, nil
	}
	return []indexvalue.IndexValue{{Key: field.Alias, Values: []any{v}}}, nil
}

// TagsExtractor emits every stored tag as its own value. Tags may be stored
// as a list, a JSON array or comma separated text.
type TagsExtractor struct{}

func (TagsExtractor) IndexValues(_ context.Context, field indexvalue.Field, culture, _ string, _ bool) ([]indexvalue.IndexValue, error) {
	tags := splitTags(field.Value(culture))
	if len(tags) == 0 {
		return nil, nil
	}
	return []indexvalue.IndexValue{{Key: field.Alias, Values: tags}}, nil
}

func splitTags(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return nil
		}
		if strings.HasPrefix(t, "[") {
			var list []any
			if err := json.Unmarshal([]byte(t), &list); err == nil {
				return list
			}
		}
		var out []any
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return []any{t}
	}
}
