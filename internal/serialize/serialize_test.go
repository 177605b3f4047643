package serialize

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"

	"github.com/nerrad567/cadbridge/internal/engine"
)

func newTestDocument(t *testing.T) *engine.Document {
	t.Helper()
	store := engine.NewStore(engine.DefaultCatalog())
	var doc *engine.Document
	_ = store.Exclusive(func(st *engine.State) error {
		doc = st.NewDocument("Test")
		return nil
	})
	return doc
}

func setAttr(t *testing.T, g *engine.Group, name string, v any) {
	t.Helper()
	attr, ok := g.Lookup(name)
	if !ok {
		t.Fatalf("attribute %q not declared", name)
	}
	attr.Value = v
}

func TestValue(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"string", "abc", "abc"},
		{"bool", true, true},
		{"float", 1.5, 1.5},
		{"nan", math.NaN(), nil},
		{"inf", math.Inf(1), nil},
		{"vector", engine.Vector{X: 1, Y: 2, Z: 3}, map[string]any{"x": 1.0, "y": 2.0, "z": 3.0}},
		{
			"placement",
			engine.IdentityPlacement(),
			map[string]any{
				"Base": map[string]any{"x": 0.0, "y": 0.0, "z": 0.0},
				"Rotation": map[string]any{
					"Axis":  map[string]any{"x": 0.0, "y": 0.0, "z": 1.0},
					"Angle": 0.0,
				},
			},
		},
		{"ref", engine.Ref("Box"), "Box"},
		{"empty ref", engine.Ref(""), nil},
		{"subref", engine.SubRef{Ref: "Box", Subelements: []string{"Face1"}}, map[string]any{"ref": "Box", "subelements": []string{"Face1"}}},
		{"reflist", engine.RefList{"A", "B"}, []string{"A", "B"}},
		{"color", engine.Color{1, 0.5, 0, 0}, []any{1.0, 0.5, 0.0, 0.0}},
		{"kind falls back to its name", engine.KindVector, "Vector"},
		{"generic list", []any{1.0, math.NaN()}, []any{1.0, nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Value(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Value() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestValue_DepthBounded(t *testing.T) {
	var nested any = "leaf"
	for i := 0; i < MaxDepth*2; i++ {
		nested = []any{nested}
	}
	out := Value(nested)

	depth := 0
	for {
		list, ok := out.([]any)
		if !ok {
			break
		}
		out = list[0]
		depth++
	}
	if depth != MaxDepth {
		t.Errorf("depth = %d, want %d", depth, MaxDepth)
	}
	if out != "<max depth>" {
		t.Errorf("leaf = %v, want truncation marker", out)
	}
}

func TestShape_Invalid(t *testing.T) {
	got := Shape(&engine.ShapeSummary{})
	m := got.(map[string]any)
	if m["Valid"] != false || m["Volume"] != nil || m["Area"] != nil {
		t.Errorf("Shape() = %v, want invalid with null measures", m)
	}
	if Shape(nil) != nil {
		t.Error("Shape(nil) should be nil")
	}
}

func TestObject(t *testing.T) {
	doc := newTestDocument(t)
	box, err := doc.AddObject("Part::Box", "Box")
	if err != nil {
		t.Fatalf("AddObject() error = %v", err)
	}

	got := Object(box)
	if got["Name"] != "Box" || got["Label"] != "Box" || got["TypeId"] != "Part::Box" {
		t.Errorf("identity fields = %v, %v, %v", got["Name"], got["Label"], got["TypeId"])
	}
	props := got["Properties"].(map[string]any)
	if props["Length"] != 10.0 {
		t.Errorf("Properties.Length = %v, want 10", props["Length"])
	}
	if _, ok := props["ViewObject"]; ok {
		t.Error("Properties should not include ViewObject")
	}
	if got["Placement"] == nil {
		t.Error("Placement is nil for a placed type")
	}
	shape := got["Shape"].(map[string]any)
	if shape["Volume"] != 1000.0 || shape["FaceCount"] != 6 {
		t.Errorf("Shape = %v", shape)
	}
	view := got["ViewObject"].(map[string]any)
	if view["Visibility"] != true {
		t.Errorf("ViewObject.Visibility = %v", view["Visibility"])
	}

	if _, err := json.Marshal(got); err != nil {
		t.Errorf("json.Marshal() error = %v", err)
	}
}

func TestObject_NoPlacementOrShape(t *testing.T) {
	doc := newTestDocument(t)
	grp, err := doc.AddObject("App::DocumentObjectGroup", "")
	if err != nil {
		t.Fatalf("AddObject() error = %v", err)
	}

	got := Object(grp)
	if got["Placement"] != nil {
		t.Errorf("Placement = %v, want nil", got["Placement"])
	}
	if got["Shape"] != nil {
		t.Errorf("Shape = %v, want nil", got["Shape"])
	}
}

func TestObject_CyclicReferencesTerminate(t *testing.T) {
	doc := newTestDocument(t)
	body, _ := doc.AddObject("PartDesign::Body", "Body")
	pad, _ := doc.AddObject("PartDesign::Pad", "Pad")

	setAttr(t, body.Attributes, "Group", engine.RefList{"Pad"})
	setAttr(t, body.Attributes, "Tip", engine.Ref("Pad"))
	setAttr(t, pad.Attributes, "BaseFeature", engine.Ref("Body"))

	objs := Objects(doc.Objects())
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty payload")
	}

	if got := objs[0]["Properties"].(map[string]any)["Tip"]; got != "Pad" {
		t.Errorf("Body.Tip = %v, want name reference", got)
	}
	if got := objs[1]["Properties"].(map[string]any)["BaseFeature"]; got != "Body" {
		t.Errorf("Pad.BaseFeature = %v, want name reference", got)
	}
}

func TestDocument(t *testing.T) {
	doc := newTestDocument(t)
	_, _ = doc.AddObject("Part::Box", "")
	_, _ = doc.AddObject("Part::Box", "")

	got := Document(doc)
	want := map[string]any{
		"Name":     "Test",
		"Label":    "Test",
		"FileName": "",
		"Objects":  []string{"Box", "Box001"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Document() = %v, want %v", got, want)
	}
}

func TestTypeSpec(t *testing.T) {
	spec, _ := engine.DefaultCatalog().Lookup("Part::Box")
	got := TypeSpec(spec)
	attrs := got["Attributes"].(map[string]any)

	if attrs["Length"] != "Float" || attrs["Placement"] != "Transform" || attrs["Label"] != "String" {
		t.Errorf("Attributes = %v", attrs)
	}
	view := attrs["ViewObject"].(map[string]any)
	if view["ShapeColor"] != "Color" {
		t.Errorf("ViewObject.ShapeColor = %v, want Color", view["ShapeColor"])
	}
	if _, ok := view["Label"]; ok {
		t.Error("nested group should not report Label")
	}
}
