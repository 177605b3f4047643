// Package serialize converts engine values into transport-safe structures
// built from maps, slices, strings, numbers, bools and nil.
//
// Serialization only reads engine state. Relations between objects are
// emitted as object names, never as nested serializations, so output size is
// bounded whatever the shape of the object graph.
package serialize

import (
	"fmt"
	"math"

	"github.com/nerrad567/cadbridge/internal/engine"
)

// MaxDepth bounds recursion through generic maps and slices.
const MaxDepth = 16

// Value converts an engine value into its transport form.
func Value(v any) any {
	return value(v, 0)
}

func value(v any, depth int) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool, int, int32, int64:
		return val
	case float64:
		return finite(val)
	case float32:
		return finite(float64(val))
	case engine.Vector:
		return vector(val)
	case engine.Rotation:
		return rotation(val)
	case engine.Placement:
		return map[string]any{
			"Base":     vector(val.Base),
			"Rotation": rotation(val.Rotation),
		}
	case engine.Ref:
		if val == "" {
			return nil
		}
		return string(val)
	case engine.SubRef:
		if val.Ref == "" {
			return nil
		}
		subs := make([]string, len(val.Subelements))
		copy(subs, val.Subelements)
		return map[string]any{"ref": string(val.Ref), "subelements": subs}
	case engine.RefList:
		names := make([]string, len(val))
		for i, r := range val {
			names[i] = string(r)
		}
		return names
	case engine.Color:
		return []any{finite(val[0]), finite(val[1]), finite(val[2]), finite(val[3])}
	case *engine.Group:
		if val == nil {
			return nil
		}
		return group(val, depth)
	case *engine.ShapeSummary:
		return Shape(val)
	case map[string]any:
		if depth >= MaxDepth {
			return "<max depth>"
		}
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = value(item, depth+1)
		}
		return out
	case []any:
		if depth >= MaxDepth {
			return "<max depth>"
		}
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = value(item, depth+1)
		}
		return out
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}

func finite(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func vector(v engine.Vector) map[string]any {
	return map[string]any{"x": finite(v.X), "y": finite(v.Y), "z": finite(v.Z)}
}

func rotation(r engine.Rotation) map[string]any {
	return map[string]any{"Axis": vector(r.Axis), "Angle": finite(r.Angle)}
}

func group(g *engine.Group, depth int) any {
	if depth >= MaxDepth {
		return "<max depth>"
	}
	out := make(map[string]any, g.Len())
	for _, a := range g.Attributes() {
		out[a.Name] = value(a.Value, depth+1)
	}
	return out
}

// Shape converts a shape summary. An invalid shape reports null measures.
func Shape(s *engine.ShapeSummary) any {
	if s == nil {
		return nil
	}
	if !s.Valid {
		return map[string]any{
			"Valid":       false,
			"Volume":      nil,
			"Area":        nil,
			"VertexCount": 0,
			"EdgeCount":   0,
			"FaceCount":   0,
		}
	}
	return map[string]any{
		"Valid":       true,
		"Volume":      finite(s.Volume),
		"Area":        finite(s.Area),
		"VertexCount": s.VertexCount,
		"EdgeCount":   s.EdgeCount,
		"FaceCount":   s.FaceCount,
	}
}

// Object converts an object. Properties holds every attribute except the
// ViewObject group, which is reported on its own.
func Object(obj *engine.Object) map[string]any {
	props := make(map[string]any, obj.Attributes.Len())
	for _, a := range obj.Attributes.Attributes() {
		if a.Name == "ViewObject" {
			continue
		}
		props[a.Name] = Value(a.Value)
	}

	var placement any
	if p, ok := obj.Placement(); ok {
		placement = Value(p)
	}
	var view any
	if g, ok := obj.ViewObject(); ok {
		view = Value(g)
	}

	return map[string]any{
		"Name":       obj.Name,
		"Label":      obj.Label(),
		"TypeId":     obj.TypeID,
		"Properties": props,
		"Placement":  placement,
		"Shape":      Shape(obj.Shape),
		"ViewObject": view,
	}
}

// Objects converts a list of objects.
func Objects(objs []*engine.Object) []map[string]any {
	out := make([]map[string]any, len(objs))
	for i, o := range objs {
		out[i] = Object(o)
	}
	return out
}

// Document converts a document. Objects are listed by name.
func Document(doc *engine.Document) map[string]any {
	return map[string]any{
		"Name":     doc.Name,
		"Label":    doc.Label,
		"FileName": doc.FileName,
		"Objects":  doc.ObjectNames(),
	}
}

// TypeSpec describes a catalog entry: its type ID and the kind of each
// attribute, with nested groups expanded.
func TypeSpec(spec *engine.TypeSpec) map[string]any {
	return map[string]any{
		"TypeId":     spec.TypeID,
		"Attributes": attrKinds(spec.Attrs),
	}
}

func attrKinds(specs []engine.AttrSpec) map[string]any {
	out := make(map[string]any, len(specs)+1)
	out["Label"] = engine.KindString.String()
	for _, s := range specs {
		if s.Kind == engine.KindGroup {
			nested := attrKinds(s.Group)
			delete(nested, "Label")
			out[s.Name] = nested
			continue
		}
		out[s.Name] = s.Kind.String()
	}
	return out
}
