package engine

// Attribute is a named, kinded value on an object or in a nested group.
// For KindGroup the Value is a *Group.
type Attribute struct {
	Name  string
	Kind  Kind
	Value any
}

// Group is an ordered set of attributes. Objects keep their attributes in a
// Group, and attributes of KindGroup hold another Group (e.g. ViewObject).
//
// Group is not safe for concurrent use; the Store's lock covers it.
type Group struct {
	attrs []*Attribute
	index map[string]int
}

// NewGroup creates an empty group.
func NewGroup() *Group {
	return &Group{index: make(map[string]int)}
}

// Declare adds an attribute with its initial value. Redeclaring a name
// replaces the existing attribute in place.
func (g *Group) Declare(name string, kind Kind, value any) {
	attr := &Attribute{Name: name, Kind: kind, Value: value}
	if i, ok := g.index[name]; ok {
		g.attrs[i] = attr
		return
	}
	g.index[name] = len(g.attrs)
	g.attrs = append(g.attrs, attr)
}

// Lookup returns the attribute called name.
func (g *Group) Lookup(name string) (*Attribute, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return g.attrs[i], true
}

// Get returns the value of attribute name, or nil if it is not declared.
func (g *Group) Get(name string) any {
	if attr, ok := g.Lookup(name); ok {
		return attr.Value
	}
	return nil
}

// Float returns a float attribute, or fallback if it is absent or not a float.
func (g *Group) Float(name string, fallback float64) float64 {
	if v, ok := g.Get(name).(float64); ok {
		return v
	}
	return fallback
}

// Attributes returns the attributes in declaration order.
// The slice is a copy; the attributes are not.
func (g *Group) Attributes() []*Attribute {
	out := make([]*Attribute, len(g.attrs))
	copy(out, g.attrs)
	return out
}

// Len returns the number of attributes.
func (g *Group) Len() int {
	return len(g.attrs)
}

// Clone deep-copies the group, including nested groups.
func (g *Group) Clone() *Group {
	out := &Group{
		attrs: make([]*Attribute, len(g.attrs)),
		index: make(map[string]int, len(g.index)),
	}
	for i, a := range g.attrs {
		out.attrs[i] = &Attribute{Name: a.Name, Kind: a.Kind, Value: cloneValue(a.Value)}
		out.index[a.Name] = i
	}
	return out
}

// Assign replaces the contents of g with those of src. It is how a fully
// coerced working copy is committed back onto the live group.
func (g *Group) Assign(src *Group) {
	g.attrs = src.attrs
	g.index = src.index
}

// visitReferences calls fn for every reference-valued attribute, descending
// into nested groups.
func (g *Group) visitReferences(fn func(attr *Attribute)) {
	for _, a := range g.attrs {
		switch a.Kind {
		case KindReference, KindReferenceSubs, KindReferenceList:
			fn(a)
		case KindGroup:
			if nested, ok := a.Value.(*Group); ok {
				nested.visitReferences(fn)
			}
		}
	}
}
