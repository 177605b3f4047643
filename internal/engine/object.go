package engine

// Object is a named entity in a document.
type Object struct {
	Name   string
	TypeID string

	// Attributes holds every attribute of the object, including Label,
	// Placement (for placed types) and the nested ViewObject group.
	Attributes *Group

	// Shape is the summary computed by the last recompute, nil for types
	// without a shape.
	Shape *ShapeSummary

	spec *TypeSpec
}

// Label returns the object's user-facing label.
func (o *Object) Label() string {
	if label, ok := o.Attributes.Get("Label").(string); ok {
		return label
	}
	return o.Name
}

// Placement returns the object's placement, if its type has one.
func (o *Object) Placement() (Placement, bool) {
	p, ok := o.Attributes.Get("Placement").(Placement)
	return p, ok
}

// ViewObject returns the object's display attribute group, if any.
func (o *Object) ViewObject() (*Group, bool) {
	g, ok := o.Attributes.Get("ViewObject").(*Group)
	return g, ok
}

// Spec returns the catalog entry the object was created from.
func (o *Object) Spec() *TypeSpec {
	return o.spec
}

// Bounds returns the object's local-space bounding box, if its type is drawable.
func (o *Object) Bounds() (lo, hi Vector, ok bool) {
	if o.spec == nil || o.spec.Bounds == nil {
		return Vector{}, Vector{}, false
	}
	lo, hi = o.spec.Bounds(o.Attributes)
	return lo, hi, true
}

// References returns the names of the objects this object points at, in
// attribute order. Duplicates are kept.
func (o *Object) References() []Ref {
	var out []Ref
	o.Attributes.visitReferences(func(a *Attribute) {
		out = append(out, references(a.Value)...)
	})
	return out
}

// recompute refreshes the shape summary from the current attributes.
func (o *Object) recompute() {
	if o.spec == nil || o.spec.Shape == nil {
		o.Shape = nil
		return
	}
	o.Shape = o.spec.Shape(o.Attributes)
}

// dropReferences clears every reference to name held by this object.
func (o *Object) dropReferences(name Ref) {
	o.Attributes.visitReferences(func(a *Attribute) {
		switch v := a.Value.(type) {
		case Ref:
			if v == name {
				a.Value = Ref("")
			}
		case SubRef:
			if v.Ref == name {
				a.Value = SubRef{}
			}
		case RefList:
			kept := make(RefList, 0, len(v))
			for _, r := range v {
				if r != name {
					kept = append(kept, r)
				}
			}
			a.Value = kept
		}
	})
}
