package journal

import (
	"fmt"

	"github.com/SierraSoftworks/connor"
	"github.com/go-json-experiment/json"
)

// Filter returns the entries matching a mongo-style filter such as
// {"caixa": 3} or {"operacao": {"$eq": "EnviarPagamento"}}. A nil or empty
// filter matches everything.
func Filter[T any](entries []T, filter map[string]any) ([]T, error) {
	if len(filter) == 0 {
		return entries, nil
	}
	out := make([]T, 0, len(entries))
	for i, e := range entries {
		payload, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("journal: filter entry %d: %w", i, err)
		}
		row := map[string]any{}
		if err := json.Unmarshal(payload, &row); err != nil {
			// non-object entries (session numbers) never match a field filter
			continue
		}
		match, err := connor.Match(filter, row)
		if err != nil {
			return nil, fmt.Errorf("journal: filter: %w", err)
		}
		if match {
			out = append(out, e)
		}
	}
	return out, nil
}

// ParseFilter decodes a JSON filter expression as given on the command line
// or in a query string.
func ParseFilter(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	filter := map[string]any{}
	if err := json.Unmarshal([]byte(s), &filter); err != nil {
		return nil, fmt.Errorf("journal: parse filter: %w", err)
	}
	return filter, nil
}
