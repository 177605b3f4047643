package operations

import (
	"encoding/json"
	"math"
)

// Params are the positional parameters of a call, as decoded from JSON.
type Params []any

func (p Params) max(n int) error {
	if len(p) > n {
		return invalidParams("expected at most %d params, got %d", n, len(p))
	}
	return nil
}

func (p Params) at(i int) (any, bool) {
	if i >= len(p) || p[i] == nil {
		return nil, false
	}
	return p[i], true
}

func (p Params) string(i int, name string) (string, error) {
	v, ok := p.at(i)
	if !ok {
		return "", invalidParams("missing %s", name)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", invalidParams("%s must be a non-empty string", name)
	}
	return s, nil
}

func (p Params) optString(i int, name, fallback string) (string, error) {
	v, ok := p.at(i)
	if !ok {
		return fallback, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", invalidParams("%s must be a string", name)
	}
	if s == "" {
		return fallback, nil
	}
	return s, nil
}

func (p Params) object(i int, name string) (map[string]any, error) {
	v, ok := p.at(i)
	if !ok {
		return nil, invalidParams("missing %s", name)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, invalidParams("%s must be an object", name)
	}
	return m, nil
}

func (p Params) optInt(i int, name string, fallback int) (int, error) {
	v, ok := p.at(i)
	if !ok {
		return fallback, nil
	}
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		return n, nil
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, invalidParams("%s must be an integer", name)
		}
		f = parsed
	default:
		return 0, invalidParams("%s must be an integer", name)
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, invalidParams("%s must be an integer", name)
	}
	return int(f), nil
}

// deepCopy detaches a decoded JSON value from the caller before it is handed
// to the pump goroutine.
func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return v
	}
}
