package engine

import "slices"

// Kind is the declared kind of an attribute. It decides how caller input is
// coerced into the attribute and how the attribute is serialized.
type Kind int

// Attribute kinds.
const (
	KindString Kind = iota
	KindFloat
	KindInteger
	KindBool
	KindVector
	KindTransform
	KindReference
	KindReferenceSubs
	KindReferenceList
	KindColor
	KindGroup
)

var kindNames = map[Kind]string{
	KindString:        "String",
	KindFloat:         "Float",
	KindInteger:       "Integer",
	KindBool:          "Bool",
	KindVector:        "Vector",
	KindTransform:     "Transform",
	KindReference:     "Reference",
	KindReferenceSubs: "ReferenceWithSubelements",
	KindReferenceList: "ReferenceList",
	KindColor:         "Color",
	KindGroup:         "NestedGroup",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Vector is a point or direction in model space.
type Vector struct {
	X, Y, Z float64
}

// Rotation is an axis and an angle in degrees.
type Rotation struct {
	Axis  Vector
	Angle float64
}

// Placement is a rigid transform: a base position plus a rotation.
type Placement struct {
	Base     Vector
	Rotation Rotation
}

// IdentityPlacement returns a placement at the origin with no rotation
// around the Z axis.
func IdentityPlacement() Placement {
	return Placement{Rotation: Rotation{Axis: Vector{Z: 1}}}
}

// Ref is a reference to another object in the same document, by name.
// The empty Ref means "unset".
type Ref string

// SubRef references an object plus named sub-elements of its shape
// ("Edge1", "Face3"). Sub-element names are stored unresolved.
type SubRef struct {
	Ref         Ref
	Subelements []string
}

// RefList is an ordered list of object references.
type RefList []Ref

// Color is an RGBA color with components in [0, 1].
type Color [4]float64

// ShapeSummary describes a recomputed shape.
type ShapeSummary struct {
	Valid       bool
	Volume      float64
	Area        float64
	VertexCount int
	EdgeCount   int
	FaceCount   int
}

// cloneValue deep-copies an attribute value so that clones never share
// mutable backing storage.
func cloneValue(v any) any {
	switch val := v.(type) {
	case SubRef:
		return SubRef{Ref: val.Ref, Subelements: slices.Clone(val.Subelements)}
	case RefList:
		return slices.Clone(val)
	case *Group:
		return val.Clone()
	default:
		return v
	}
}

// references returns the object names an attribute value points at.
func references(v any) []Ref {
	switch val := v.(type) {
	case Ref:
		if val != "" {
			return []Ref{val}
		}
	case SubRef:
		if val.Ref != "" {
			return []Ref{val.Ref}
		}
	case RefList:
		return val
	}
	return nil
}
