package engine

import (
	"errors"
	"math"
	"testing"
)

func newTestDocument(t *testing.T) (*State, *Document) {
	t.Helper()
	store := NewStore(DefaultCatalog())
	var st *State
	var doc *Document
	if err := store.Exclusive(func(s *State) error {
		st = s
		doc = s.NewDocument("Test")
		return nil
	}); err != nil {
		t.Fatalf("Exclusive() error = %v", err)
	}
	return st, doc
}

func TestAddObject_UniqueNames(t *testing.T) {
	_, doc := newTestDocument(t)

	tests := []struct {
		name     string
		typeID   string
		reqName  string
		wantName string
	}{
		{"first box", "Part::Box", "Box", "Box"},
		{"collision", "Part::Box", "Box", "Box001"},
		{"second collision", "Part::Box", "Box", "Box002"},
		{"empty name uses type", "Part::Cylinder", "", "Cylinder"},
		{"sanitized", "Part::Sphere", "my ball", "my_ball"},
		{"leading digit", "Part::Sphere", "3d", "_3d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := doc.AddObject(tt.typeID, tt.reqName)
			if err != nil {
				t.Fatalf("AddObject() error = %v", err)
			}
			if obj.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", obj.Name, tt.wantName)
			}
			if obj.Label() != tt.wantName {
				t.Errorf("Label() = %q, want %q", obj.Label(), tt.wantName)
			}
		})
	}

	want := []string{"Box", "Box001", "Box002", "Cylinder", "my_ball", "_3d"}
	got := doc.ObjectNames()
	if len(got) != len(want) {
		t.Fatalf("ObjectNames() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ObjectNames()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAddObject_UnknownType(t *testing.T) {
	_, doc := newTestDocument(t)

	_, err := doc.AddObject("Part::Torus", "T")
	if !errors.Is(err, ErrUnknownType) {
		t.Fatalf("AddObject() error = %v, want ErrUnknownType", err)
	}
	if got, want := err.Error(), "unknown object type 'Part::Torus'"; got != want {
		t.Errorf("error = %q, want %q", got, want)
	}
}

func TestObject_NotFoundMessage(t *testing.T) {
	_, doc := newTestDocument(t)

	_, err := doc.Object("Ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Object() error = %v, want ErrNotFound", err)
	}
	if err.Error() != "Ghost not found" {
		t.Errorf("error = %q, want %q", err.Error(), "Ghost not found")
	}
}

func TestRecompute_BoxVolume(t *testing.T) {
	_, doc := newTestDocument(t)

	box, err := doc.AddObject("Part::Box", "Box")
	if err != nil {
		t.Fatalf("AddObject() error = %v", err)
	}
	if box.Shape == nil || !box.Shape.Valid || box.Shape.Volume != 1000 {
		t.Fatalf("default Shape = %+v, want valid volume 1000", box.Shape)
	}

	attr, _ := box.Attributes.Lookup("Length")
	attr.Value = 20.0
	doc.Recompute()
	if box.Shape.Volume != 2000 {
		t.Errorf("Volume = %v, want 2000", box.Shape.Volume)
	}
	if box.Shape.FaceCount != 6 {
		t.Errorf("FaceCount = %d, want 6", box.Shape.FaceCount)
	}

	attr.Value = -1.0
	doc.Recompute()
	if box.Shape.Valid {
		t.Error("Shape.Valid = true for negative length")
	}
}

func TestRecompute_Sphere(t *testing.T) {
	_, doc := newTestDocument(t)

	sphere, err := doc.AddObject("Part::Sphere", "")
	if err != nil {
		t.Fatalf("AddObject() error = %v", err)
	}
	want := 4.0 / 3.0 * math.Pi * 125
	if math.Abs(sphere.Shape.Volume-want) > 1e-9 {
		t.Errorf("Volume = %v, want %v", sphere.Shape.Volume, want)
	}
}

func TestRemoveObject_ClearsReferences(t *testing.T) {
	_, doc := newTestDocument(t)

	for _, n := range []string{"Base", "Tool"} {
		if _, err := doc.AddObject("Part::Box", n); err != nil {
			t.Fatalf("AddObject(%s) error = %v", n, err)
		}
	}
	cut, _ := doc.AddObject("Part::Cut", "Cut")
	setAttr(t, cut.Attributes, "Base", Ref("Base"))
	setAttr(t, cut.Attributes, "Tool", Ref("Tool"))

	group, _ := doc.AddObject("App::DocumentObjectGroup", "Group")
	setAttr(t, group.Attributes, "Group", RefList{"Base", "Tool", "Cut"})

	fillet, _ := doc.AddObject("PartDesign::Fillet", "Fillet")
	setAttr(t, fillet.Attributes, "Base", SubRef{Ref: "Base", Subelements: []string{"Edge1"}})

	if err := doc.RemoveObject("Base"); err != nil {
		t.Fatalf("RemoveObject() error = %v", err)
	}

	if got := cut.Attributes.Get("Base"); got != Ref("") {
		t.Errorf("Cut.Base = %v, want cleared", got)
	}
	if got := cut.Attributes.Get("Tool"); got != Ref("Tool") {
		t.Errorf("Cut.Tool = %v, want Tool", got)
	}
	list := group.Attributes.Get("Group").(RefList)
	if len(list) != 2 || list[0] != "Tool" || list[1] != "Cut" {
		t.Errorf("Group.Group = %v, want [Tool Cut]", list)
	}
	if sub := fillet.Attributes.Get("Base").(SubRef); sub.Ref != "" || len(sub.Subelements) != 0 {
		t.Errorf("Fillet.Base = %+v, want cleared", sub)
	}
	if doc.HasObject("Base") {
		t.Error("HasObject(Base) = true after removal")
	}

	if err := doc.RemoveObject("Base"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second RemoveObject() error = %v, want ErrNotFound", err)
	}
}

func TestObject_References(t *testing.T) {
	_, doc := newTestDocument(t)

	cut, _ := doc.AddObject("Part::Cut", "Cut")
	setAttr(t, cut.Attributes, "Base", Ref("A"))
	setAttr(t, cut.Attributes, "Tool", Ref("B"))

	refs := cut.References()
	if len(refs) != 2 || refs[0] != "A" || refs[1] != "B" {
		t.Errorf("References() = %v, want [A B]", refs)
	}
}

func TestGroup_CloneIsDeep(t *testing.T) {
	_, doc := newTestDocument(t)

	body, _ := doc.AddObject("PartDesign::Body", "Body")
	setAttr(t, body.Attributes, "Group", RefList{"Pad"})

	clone := body.Attributes.Clone()
	setAttr(t, clone, "Group", RefList{"Pocket"})
	view := clone.Get("ViewObject").(*Group)
	setAttr(t, view, "Visibility", false)

	if got := body.Attributes.Get("Group").(RefList); got[0] != "Pad" {
		t.Errorf("original Group = %v, want [Pad]", got)
	}
	orig, _ := body.ViewObject()
	if orig.Get("Visibility") != true {
		t.Error("original ViewObject.Visibility changed through clone")
	}
}

func TestState_Documents(t *testing.T) {
	store := NewStore(DefaultCatalog())

	err := store.Exclusive(func(st *State) error {
		first := st.NewDocument("")
		second := st.NewDocument("")
		if first.Name != DefaultDocumentName || second.Name != DefaultDocumentName+"001" {
			t.Errorf("names = %q, %q", first.Name, second.Name)
		}
		if st.Active() != second {
			t.Errorf("Active() = %v, want most recent document", st.Active().Name)
		}
		if err := st.SetActive(first.Name); err != nil {
			t.Fatalf("SetActive() error = %v", err)
		}
		if err := st.CloseDocument(first.Name); err != nil {
			t.Fatalf("CloseDocument() error = %v", err)
		}
		if st.Active() != second {
			t.Error("closing the active document did not fall back to the remaining one")
		}
		if err := st.SetActive("Nope"); err == nil || err.Error() != "Nope not found" {
			t.Errorf("SetActive(Nope) error = %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Exclusive() error = %v", err)
	}

	err = store.Read(func(v View) error {
		if n := len(v.Documents()); n != 1 {
			t.Errorf("len(Documents()) = %d, want 1", n)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
}

func TestCatalog_TypeIDsSorted(t *testing.T) {
	ids := DefaultCatalog().TypeIDs()
	if len(ids) != 13 {
		t.Fatalf("len(TypeIDs()) = %d, want 13", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] > ids[i] {
			t.Errorf("TypeIDs not sorted at %d: %q > %q", i, ids[i-1], ids[i])
		}
	}
}

func setAttr(t *testing.T, g *Group, name string, value any) {
	t.Helper()
	attr, ok := g.Lookup(name)
	if !ok {
		t.Fatalf("attribute %q not declared", name)
	}
	attr.Value = value
}
