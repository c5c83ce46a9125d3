package chat

import "strings"

// Model identifies an installed model as name plus parameter size tag,
// e.g. "qwen3" and "8b".
type Model struct {
	Name          string `json:"modelName"`
	ParameterSize string `json:"parameterSize"`
}

// ParseModel splits "name:tag". A missing tag leaves ParameterSize empty.
func ParseModel(s string) Model {
	name, size, _ := strings.Cut(strings.TrimSpace(s), ":")
	return Model{Name: name, ParameterSize: size}
}

// String returns the host identifier, "name:tag" or just "name".
func (m Model) String() string {
	if m.ParameterSize == "" {
		return m.Name
	}
	return m.Name + ":" + m.ParameterSize
}

// IsZero reports whether m names no model.
func (m Model) IsZero() bool {
	return m.Name == ""
}

// mergeModels appends the entries of found not already in known, keyed by
// (name, parameter size). Existing entries are never removed.
func mergeModels(known []Model, found []Model) []Model {
	seen := make(map[Model]struct{}, len(known))
	for _, m := range known {
		seen[m] = struct{}{}
	}
	for _, m := range found {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		known = append(known, m)
	}
	return known
}
