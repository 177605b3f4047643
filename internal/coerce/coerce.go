package coerce

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/nerrad567/cadbridge/internal/engine"
)

// Resolver answers whether an object name exists in the document that owns
// the attribute being set. *engine.Document satisfies it.
type Resolver interface {
	HasObject(name string) bool
}

// Apply coerces input into attribute name of target. On error target is
// left unchanged.
func Apply(res Resolver, target *engine.Group, name string, input any) error {
	attr, ok := target.Lookup(name)
	if !ok {
		return &engine.NotFoundError{Name: name}
	}
	value, err := coerce(res, attr, name, input)
	if err != nil {
		return err
	}
	attr.Value = value
	return nil
}

// ApplyAll applies every entry of props to target, all or nothing. Keys are
// applied in sorted order so that the reported error is deterministic.
func ApplyAll(res Resolver, target *engine.Group, props map[string]any) error {
	work := target.Clone()
	if err := applyAll(res, work, "", props); err != nil {
		return err
	}
	target.Assign(work)
	return nil
}

func applyAll(res Resolver, g *engine.Group, prefix string, props map[string]any) error {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := prefix + k
		attr, ok := g.Lookup(k)
		if !ok {
			return &engine.NotFoundError{Name: path}
		}
		value, err := coerce(res, attr, path, props[k])
		if err != nil {
			return err
		}
		attr.Value = value
	}
	return nil
}

// coerce returns the engine value for input without touching attr.
func coerce(res Resolver, attr *engine.Attribute, path string, input any) (any, error) {
	switch attr.Kind {
	case engine.KindString:
		s, ok := input.(string)
		if !ok {
			return nil, mismatch(path, "expected string, got %s", describe(input))
		}
		return s, nil

	case engine.KindBool:
		b, ok := input.(bool)
		if !ok {
			return nil, mismatch(path, "expected bool, got %s", describe(input))
		}
		return b, nil

	case engine.KindFloat:
		f, ok := number(input)
		if !ok {
			return nil, mismatch(path, "expected number, got %s", describe(input))
		}
		return f, nil

	case engine.KindInteger:
		f, ok := number(input)
		if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return nil, mismatch(path, "expected integer, got %s", describe(input))
		}
		return int64(f), nil

	case engine.KindVector:
		return toVector(path, input)

	case engine.KindTransform:
		return toPlacement(path, input)

	case engine.KindColor:
		return toColor(path, input)

	case engine.KindReference:
		if input == nil {
			return engine.Ref(""), nil
		}
		name, ok := input.(string)
		if !ok {
			return nil, mismatch(path, "expected object name, got %s", describe(input))
		}
		return resolve(res, name)

	case engine.KindReferenceSubs:
		return toSubRef(res, path, input)

	case engine.KindReferenceList:
		return toRefList(res, path, input)

	case engine.KindGroup:
		m, ok := input.(map[string]any)
		if !ok {
			return nil, mismatch(path, "expected mapping, got %s", describe(input))
		}
		current, ok := attr.Value.(*engine.Group)
		if !ok {
			return nil, mismatch(path, "attribute holds no group")
		}
		work := current.Clone()
		if err := applyAll(res, work, path+".", m); err != nil {
			return nil, err
		}
		return work, nil
	}
	return nil, mismatch(path, "unsupported attribute kind %s", attr.Kind)
}

func resolve(res Resolver, name string) (engine.Ref, error) {
	if name == "" {
		return engine.Ref(""), nil
	}
	if res == nil || !res.HasObject(name) {
		return "", &engine.NotFoundError{Name: name}
	}
	return engine.Ref(name), nil
}

func toVector(path string, input any) (engine.Vector, error) {
	switch v := input.(type) {
	case map[string]any:
		var out engine.Vector
		axes := []struct {
			key string
			dst *float64
		}{{"x", &out.X}, {"y", &out.Y}, {"z", &out.Z}}
		found := 0
		for _, a := range axes {
			raw, ok := v[a.key]
			if !ok {
				continue
			}
			found++
			f, ok := number(raw)
			if !ok {
				return engine.Vector{}, mismatch(path, "axis %s is %s, not a number", a.key, describe(raw))
			}
			*a.dst = f
		}
		// Absent axes are 0, but a mapping must name at least one.
		if found == 0 {
			return engine.Vector{}, mismatch(path, "vector mapping has none of the keys x, y, z")
		}
		return out, nil
	case []any:
		if len(v) != 2 && len(v) != 3 {
			return engine.Vector{}, mismatch(path, "vector needs 2 or 3 components, got %d", len(v))
		}
		var comps [3]float64
		for i, raw := range v {
			f, ok := number(raw)
			if !ok {
				return engine.Vector{}, mismatch(path, "component %d is %s, not a number", i, describe(raw))
			}
			comps[i] = f
		}
		return engine.Vector{X: comps[0], Y: comps[1], Z: comps[2]}, nil
	}
	return engine.Vector{}, mismatch(path, "expected vector mapping or list, got %s", describe(input))
}

func toPlacement(path string, input any) (engine.Placement, error) {
	m, ok := input.(map[string]any)
	if !ok {
		return engine.Placement{}, mismatch(path, "expected placement mapping, got %s", describe(input))
	}
	out := engine.IdentityPlacement()

	base, hasBase := m["Base"]
	if !hasBase {
		base, hasBase = m["Position"]
	}
	if hasBase {
		v, err := toVector(path+".Base", base)
		if err != nil {
			return engine.Placement{}, err
		}
		out.Base = v
	}

	if raw, ok := m["Rotation"]; ok {
		rot, ok := raw.(map[string]any)
		if !ok {
			return engine.Placement{}, mismatch(path+".Rotation", "expected mapping, got %s", describe(raw))
		}
		if axis, ok := rot["Axis"]; ok {
			v, err := toVector(path+".Rotation.Axis", axis)
			if err != nil {
				return engine.Placement{}, err
			}
			out.Rotation.Axis = v
		}
		if angle, ok := rot["Angle"]; ok {
			f, ok := number(angle)
			if !ok {
				return engine.Placement{}, mismatch(path+".Rotation.Angle", "expected number, got %s", describe(angle))
			}
			out.Rotation.Angle = f
		}
	}
	return out, nil
}

func toColor(path string, input any) (engine.Color, error) {
	list, ok := input.([]any)
	if !ok || (len(list) != 3 && len(list) != 4) {
		return engine.Color{}, mismatch(path, "expected list of 3 or 4 numbers, got %s", describe(input))
	}
	var c engine.Color
	for i, raw := range list {
		f, ok := number(raw)
		if !ok || f < 0 || f > 1 {
			return engine.Color{}, mismatch(path, "component %d must be a number in [0,1]", i)
		}
		c[i] = f
	}
	return c, nil
}

func toSubRef(res Resolver, path string, input any) (engine.SubRef, error) {
	if input == nil {
		return engine.SubRef{}, nil
	}
	m, ok := input.(map[string]any)
	if !ok {
		return engine.SubRef{}, mismatch(path, "expected {ref, subelements}, got %s", describe(input))
	}
	name, ok := m["ref"].(string)
	if !ok {
		return engine.SubRef{}, mismatch(path, "ref must be an object name")
	}
	ref, err := resolve(res, name)
	if err != nil {
		return engine.SubRef{}, err
	}

	var subs []string
	if raw, ok := m["subelements"]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return engine.SubRef{}, mismatch(path, "subelements must be a list of strings")
		}
		subs = make([]string, 0, len(list))
		for _, s := range list {
			str, ok := s.(string)
			if !ok {
				return engine.SubRef{}, mismatch(path, "subelements must be a list of strings")
			}
			subs = append(subs, str)
		}
	}
	return engine.SubRef{Ref: ref, Subelements: subs}, nil
}

func toRefList(res Resolver, path string, input any) (engine.RefList, error) {
	if input == nil {
		return engine.RefList{}, nil
	}
	list, ok := input.([]any)
	if !ok {
		return nil, mismatch(path, "expected list of object names, got %s", describe(input))
	}
	out := make(engine.RefList, 0, len(list))
	for _, raw := range list {
		name, ok := raw.(string)
		if !ok || name == "" {
			return nil, mismatch(path, "expected list of object names")
		}
		ref, err := resolve(res, name)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// number accepts the numeric forms JSON decoding and Go callers produce.
func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case map[string]any:
		return "mapping"
	case []any:
		return "list"
	}
	if _, ok := number(v); ok {
		return "number"
	}
	return "unsupported value"
}
