package query

import (
	"fmt"
	"strings"

	"github.com/starford/raido/internal/apperr"
)

// Limits on query shape.
const (
	DefaultLimit   = 25
	MaxLimit       = 200
	MaxResourceIDs = 5
)

// NormalizeResourceIDs validates the polymorphic resource_ids parameter.
// Accepted shapes: absent (nil), a single string, or a list of strings with
// at most MaxResourceIDs entries. Booleans, nulls, and mixed lists are
// rejected before any I/O happens. An empty list normalizes to nil.
func NormalizeResourceIDs(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		id, err := validateID(val)
		if err != nil {
			return nil, err
		}
		return []string{id}, nil
	case []string:
		return normalizeList(val)
	case []any:
		ids := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: resource_ids[%d] must be a string", apperr.ErrInvalidParameter, i)
			}
			ids = append(ids, s)
		}
		return normalizeList(ids)
	case bool:
		return nil, fmt.Errorf("%w: resource_ids must not be a boolean", apperr.ErrInvalidParameter)
	default:
		return nil, fmt.Errorf("%w: resource_ids must be a string or list of strings", apperr.ErrInvalidParameter)
	}
}

func normalizeList(ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxResourceIDs {
		return nil, fmt.Errorf("%w: at most %d resource_ids per request, got %d",
			apperr.ErrInvalidParameter, MaxResourceIDs, len(ids))
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		validated, err := validateID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, validated)
	}
	return out, nil
}

func validateID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: resource id must be a non-empty string", apperr.ErrInvalidParameter)
	}
	if strings.ContainsAny(id, "/\\\x00") || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: resource id %q contains invalid characters", apperr.ErrInvalidParameter, id)
	}
	return id, nil
}

// ClampLimit normalizes the page limit: zero picks the default, anything
// outside [1, MaxLimit] is silently clamped.
func ClampLimit(limit int) int {
	switch {
	case limit == 0:
		return DefaultLimit
	case limit < 1:
		return 1
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// uniqueIDProject extracts the project segment of a model unique id
// (model.<project>.<name>). The boolean is false when the shape is wrong.
func uniqueIDProject(uniqueID string) (string, bool) {
	parts := strings.SplitN(uniqueID, ".", 3)
	if len(parts) != 3 || parts[0] != "model" || parts[1] == "" || parts[2] == "" {
		return "", false
	}
	return parts[1], true
}
