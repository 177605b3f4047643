package engine

import (
	"math"
	"sort"
	"strings"
)

// AttrSpec declares one attribute of an object type.
type AttrSpec struct {
	Name    string
	Kind    Kind
	Default any
	// Group lists the nested attributes when Kind is KindGroup.
	Group []AttrSpec
}

// TypeSpec describes an object type: its attributes and, for solids, how to
// derive a shape summary and local bounds from those attributes.
type TypeSpec struct {
	TypeID string
	Attrs  []AttrSpec

	// Shape derives the shape summary on recompute. Nil for types without a
	// shape of their own.
	Shape func(attrs *Group) *ShapeSummary

	// Bounds returns the local-space bounding box, used by the snapshot
	// renderer. Nil for types that are not drawn.
	Bounds func(attrs *Group) (lo, hi Vector)
}

// BaseName is the part of the type ID after the namespace ("Part::Box" -> "Box").
// It names objects created without an explicit name.
func (t *TypeSpec) BaseName() string {
	if i := strings.LastIndex(t.TypeID, "::"); i >= 0 {
		return t.TypeID[i+2:]
	}
	return t.TypeID
}

// newAttributes builds an object's attribute group from the spec defaults.
func (t *TypeSpec) newAttributes(label string) *Group {
	g := NewGroup()
	g.Declare("Label", KindString, label)
	declareAll(g, t.Attrs)
	return g
}

func declareAll(g *Group, specs []AttrSpec) {
	for _, s := range specs {
		if s.Kind == KindGroup {
			nested := NewGroup()
			declareAll(nested, s.Group)
			g.Declare(s.Name, KindGroup, nested)
			continue
		}
		g.Declare(s.Name, s.Kind, cloneValue(s.Default))
	}
}

// Catalog maps type IDs to their specs.
type Catalog map[string]*TypeSpec

// Lookup returns the spec for typeID.
func (c Catalog) Lookup(typeID string) (*TypeSpec, bool) {
	spec, ok := c[typeID]
	return spec, ok
}

// TypeIDs returns the catalogued type IDs in sorted order.
func (c Catalog) TypeIDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// viewObjectSpec is the display group shared by every type.
var viewObjectSpec = AttrSpec{
	Name: "ViewObject",
	Kind: KindGroup,
	Group: []AttrSpec{
		{Name: "Visibility", Kind: KindBool, Default: true},
		{Name: "ShapeColor", Kind: KindColor, Default: Color{0.8, 0.8, 0.8, 0}},
		{Name: "LineColor", Kind: KindColor, Default: Color{0.1, 0.1, 0.1, 0}},
		{Name: "LineWidth", Kind: KindFloat, Default: 2.0},
		{Name: "Transparency", Kind: KindInteger, Default: int64(0)},
		{Name: "DisplayMode", Kind: KindString, Default: "Flat Lines"},
	},
}

var placementSpec = AttrSpec{Name: "Placement", Kind: KindTransform, Default: IdentityPlacement()}

// solid prepends the attributes every placed solid carries.
func solid(attrs ...AttrSpec) []AttrSpec {
	return append([]AttrSpec{placementSpec}, append(attrs, viewObjectSpec)...)
}

// DefaultCatalog returns the built-in object types.
func DefaultCatalog() Catalog {
	specs := []*TypeSpec{
		{
			TypeID: "Part::Box",
			Attrs: solid(
				AttrSpec{Name: "Length", Kind: KindFloat, Default: 10.0},
				AttrSpec{Name: "Width", Kind: KindFloat, Default: 10.0},
				AttrSpec{Name: "Height", Kind: KindFloat, Default: 10.0},
			),
			Shape:  boxShape,
			Bounds: boxBounds,
		},
		{
			TypeID: "Part::Cylinder",
			Attrs: solid(
				AttrSpec{Name: "Radius", Kind: KindFloat, Default: 2.0},
				AttrSpec{Name: "Height", Kind: KindFloat, Default: 10.0},
				AttrSpec{Name: "Angle", Kind: KindFloat, Default: 360.0},
			),
			Shape:  cylinderShape,
			Bounds: cylinderBounds,
		},
		{
			TypeID: "Part::Sphere",
			Attrs: solid(
				AttrSpec{Name: "Radius", Kind: KindFloat, Default: 5.0},
			),
			Shape:  sphereShape,
			Bounds: sphereBounds,
		},
		{
			TypeID: "Part::Cone",
			Attrs: solid(
				AttrSpec{Name: "Radius1", Kind: KindFloat, Default: 2.0},
				AttrSpec{Name: "Radius2", Kind: KindFloat, Default: 4.0},
				AttrSpec{Name: "Height", Kind: KindFloat, Default: 10.0},
			),
			Shape:  coneShape,
			Bounds: coneBounds,
		},
		booleanSpec("Part::Cut"),
		booleanSpec("Part::Fuse"),
		booleanSpec("Part::Common"),
		{
			TypeID: "PartDesign::Body",
			Attrs: solid(
				AttrSpec{Name: "Group", Kind: KindReferenceList, Default: RefList{}},
				AttrSpec{Name: "Tip", Kind: KindReference, Default: Ref("")},
				AttrSpec{Name: "BaseFeature", Kind: KindReference, Default: Ref("")},
			),
		},
		sketchBasedSpec("PartDesign::Pad", 10.0),
		sketchBasedSpec("PartDesign::Pocket", 5.0),
		{
			TypeID: "PartDesign::Fillet",
			Attrs: solid(
				AttrSpec{Name: "Base", Kind: KindReferenceSubs, Default: SubRef{}},
				AttrSpec{Name: "Radius", Kind: KindFloat, Default: 1.0},
				AttrSpec{Name: "BaseFeature", Kind: KindReference, Default: Ref("")},
			),
		},
		{
			TypeID: "Sketcher::SketchObject",
			Attrs: solid(
				AttrSpec{Name: "AttachmentSupport", Kind: KindReferenceSubs, Default: SubRef{}},
				AttrSpec{Name: "MapMode", Kind: KindString, Default: "Deactivated"},
			),
		},
		{
			TypeID: "App::DocumentObjectGroup",
			Attrs: []AttrSpec{
				{Name: "Group", Kind: KindReferenceList, Default: RefList{}},
				viewObjectSpec,
			},
		},
	}

	c := make(Catalog, len(specs))
	for _, s := range specs {
		c[s.TypeID] = s
	}
	return c
}

func booleanSpec(typeID string) *TypeSpec {
	return &TypeSpec{
		TypeID: typeID,
		Attrs: solid(
			AttrSpec{Name: "Base", Kind: KindReference, Default: Ref("")},
			AttrSpec{Name: "Tool", Kind: KindReference, Default: Ref("")},
			AttrSpec{Name: "Refine", Kind: KindBool, Default: false},
		),
	}
}

func sketchBasedSpec(typeID string, length float64) *TypeSpec {
	return &TypeSpec{
		TypeID: typeID,
		Attrs: solid(
			AttrSpec{Name: "Profile", Kind: KindReference, Default: Ref("")},
			AttrSpec{Name: "BaseFeature", Kind: KindReference, Default: Ref("")},
			AttrSpec{Name: "Length", Kind: KindFloat, Default: length},
			AttrSpec{Name: "Type", Kind: KindInteger, Default: int64(0)},
			AttrSpec{Name: "Reversed", Kind: KindBool, Default: false},
			AttrSpec{Name: "Midplane", Kind: KindBool, Default: false},
		),
	}
}

func boxShape(g *Group) *ShapeSummary {
	l, w, h := g.Float("Length", 0), g.Float("Width", 0), g.Float("Height", 0)
	if l <= 0 || w <= 0 || h <= 0 {
		return &ShapeSummary{}
	}
	return &ShapeSummary{
		Valid:       true,
		Volume:      l * w * h,
		Area:        2 * (l*w + l*h + w*h),
		VertexCount: 8,
		EdgeCount:   12,
		FaceCount:   6,
	}
}

func boxBounds(g *Group) (Vector, Vector) {
	return Vector{}, Vector{X: g.Float("Length", 0), Y: g.Float("Width", 0), Z: g.Float("Height", 0)}
}

func cylinderShape(g *Group) *ShapeSummary {
	r, h, angle := g.Float("Radius", 0), g.Float("Height", 0), g.Float("Angle", 360)
	if r <= 0 || h <= 0 || angle <= 0 || angle > 360 {
		return &ShapeSummary{}
	}
	frac := angle / 360
	s := &ShapeSummary{
		Valid:       true,
		Volume:      math.Pi * r * r * h * frac,
		Area:        2*math.Pi*r*h*frac + 2*math.Pi*r*r*frac,
		VertexCount: 2,
		EdgeCount:   3,
		FaceCount:   3,
	}
	if angle < 360 {
		// Two planar cut faces close the wedge.
		s.Area += 2 * r * h
		s.VertexCount, s.EdgeCount, s.FaceCount = 6, 9, 5
	}
	return s
}

func cylinderBounds(g *Group) (Vector, Vector) {
	r := g.Float("Radius", 0)
	return Vector{X: -r, Y: -r}, Vector{X: r, Y: r, Z: g.Float("Height", 0)}
}

func sphereShape(g *Group) *ShapeSummary {
	r := g.Float("Radius", 0)
	if r <= 0 {
		return &ShapeSummary{}
	}
	return &ShapeSummary{
		Valid:       true,
		Volume:      4.0 / 3.0 * math.Pi * r * r * r,
		Area:        4 * math.Pi * r * r,
		VertexCount: 2,
		EdgeCount:   3,
		FaceCount:   1,
	}
}

func sphereBounds(g *Group) (Vector, Vector) {
	r := g.Float("Radius", 0)
	return Vector{X: -r, Y: -r, Z: -r}, Vector{X: r, Y: r, Z: r}
}

func coneShape(g *Group) *ShapeSummary {
	r1, r2, h := g.Float("Radius1", 0), g.Float("Radius2", 0), g.Float("Height", 0)
	if r1 < 0 || r2 < 0 || (r1 == 0 && r2 == 0) || h <= 0 {
		return &ShapeSummary{}
	}
	slant := math.Hypot(r1-r2, h)
	return &ShapeSummary{
		Valid:       true,
		Volume:      math.Pi * h / 3 * (r1*r1 + r1*r2 + r2*r2),
		Area:        math.Pi*(r1+r2)*slant + math.Pi*r1*r1 + math.Pi*r2*r2,
		VertexCount: 2,
		EdgeCount:   3,
		FaceCount:   3,
	}
}

func coneBounds(g *Group) (Vector, Vector) {
	r := math.Max(g.Float("Radius1", 0), g.Float("Radius2", 0))
	return Vector{X: -r, Y: -r}, Vector{X: r, Y: r, Z: g.Float("Height", 0)}
}
