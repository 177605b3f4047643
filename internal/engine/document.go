package engine

import (
	"fmt"
	"strings"
	"unicode"
)

// Document is an ordered collection of uniquely named objects.
type Document struct {
	Name     string
	Label    string
	FileName string

	catalog Catalog
	objects []*Object
	byName  map[string]*Object
}

func newDocument(name string, catalog Catalog) *Document {
	return &Document{
		Name:    name,
		Label:   name,
		catalog: catalog,
		byName:  make(map[string]*Object),
	}
}

// Object resolves an object by name.
func (d *Document) Object(name string) (*Object, error) {
	obj, ok := d.byName[name]
	if !ok {
		return nil, notFound(name)
	}
	return obj, nil
}

// HasObject reports whether an object called name exists. It lets the
// document act as the name resolver for reference coercion.
func (d *Document) HasObject(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// Objects returns the objects in creation order.
func (d *Document) Objects() []*Object {
	out := make([]*Object, len(d.objects))
	copy(out, d.objects)
	return out
}

// ObjectNames returns the object names in creation order.
func (d *Document) ObjectNames() []string {
	names := make([]string, len(d.objects))
	for i, o := range d.objects {
		names[i] = o.Name
	}
	return names
}

// AddObject creates an object of typeID. The requested name is sanitized and
// made unique within the document ("Box", "Box001", ...); an empty name
// falls back to the type's base name. The created object is returned so the
// caller can learn the name actually assigned.
func (d *Document) AddObject(typeID, name string) (*Object, error) {
	spec, ok := d.catalog.Lookup(typeID)
	if !ok {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownType, typeID)
	}
	if strings.TrimSpace(name) == "" {
		name = spec.BaseName()
	}
	name = uniqueName(SanitizeName(name), d.HasObject)

	obj := &Object{
		Name:       name,
		TypeID:     typeID,
		Attributes: spec.newAttributes(name),
		spec:       spec,
	}
	obj.recompute()

	d.objects = append(d.objects, obj)
	d.byName[name] = obj
	return obj, nil
}

// RemoveObject deletes the named object and clears references to it held by
// the remaining objects.
func (d *Document) RemoveObject(name string) error {
	if _, ok := d.byName[name]; !ok {
		return notFound(name)
	}
	delete(d.byName, name)
	for i, o := range d.objects {
		if o.Name == name {
			d.objects = append(d.objects[:i], d.objects[i+1:]...)
			break
		}
	}
	for _, o := range d.objects {
		o.dropReferences(Ref(name))
	}
	return nil
}

// Recompute refreshes every object's shape summary.
func (d *Document) Recompute() {
	for _, o := range d.objects {
		o.recompute()
	}
}

// SanitizeName maps name onto the identifier alphabet object and document
// names use: letters, digits and underscores, not starting with a digit.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "Unnamed"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// uniqueName appends a three-digit counter to base until taken reports false.
func uniqueName(base string, taken func(string) bool) string {
	if !taken(base) {
		return base
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s%03d", base, i)
		if !taken(candidate) {
			return candidate
		}
	}
}
