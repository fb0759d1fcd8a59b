package agent

import (
	"strings"

	"github.com/fyrsmithlabs/tutord/internal/domain"
)

// Request params arrive as map[string]any, typically decoded from
// JSON, so numbers may be float64 and lists []any. These helpers
// normalize both shapes.

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", domain.Errorf(domain.KindValidation, "missing required parameter %q", key)
	}
	return v, nil
}

func optionalString(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

func boolParam(params map[string]any, key string) bool {
	v, _ := params[key].(bool)
	return v
}

func intParam(params map[string]any, key string) (int, bool) {
	switch v := params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

func stringListParam(params map[string]any, key string) []string {
	switch v := params[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func mapParam(params map[string]any, key string) map[string]any {
	v, _ := params[key].(map[string]any)
	return v
}
