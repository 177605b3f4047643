package render

import (
	"math"

	"github.com/nerrad567/cadbridge/internal/engine"
)

// Item is one drawable object: the eight corners of its placed bounding box
// and its display colour.
type Item struct {
	Name    string
	Corners [8]engine.Vector
	Color   engine.Color
}

// Scene is a detached copy of a document's drawable geometry.
type Scene struct {
	Document string
	Items    []Item
}

// Capture copies the drawable geometry of doc. Hidden objects and objects
// whose shape failed to recompute are skipped.
func Capture(doc *engine.Document) *Scene {
	scene := &Scene{Document: doc.Name}
	for _, obj := range doc.Objects() {
		lo, hi, ok := obj.Bounds()
		if !ok || (obj.Shape != nil && !obj.Shape.Valid) {
			continue
		}

		color := engine.Color{0.8, 0.8, 0.8, 0}
		if vo, ok := obj.ViewObject(); ok {
			if visible, ok := vo.Get("Visibility").(bool); ok && !visible {
				continue
			}
			if c, ok := vo.Get("LineColor").(engine.Color); ok {
				color = c
			}
		}

		placement, _ := obj.Placement()
		item := Item{Name: obj.Name, Color: color}
		for i := range item.Corners {
			corner := engine.Vector{X: lo.X, Y: lo.Y, Z: lo.Z}
			if i&1 != 0 {
				corner.X = hi.X
			}
			if i&2 != 0 {
				corner.Y = hi.Y
			}
			if i&4 != 0 {
				corner.Z = hi.Z
			}
			item.Corners[i] = place(placement, corner)
		}
		scene.Items = append(scene.Items, item)
	}
	return scene
}

// place applies p to a local-space point: rotate about p.Rotation.Axis by
// p.Rotation.Angle degrees, then translate by p.Base.
func place(p engine.Placement, v engine.Vector) engine.Vector {
	axis := p.Rotation.Axis
	n := math.Sqrt(axis.X*axis.X + axis.Y*axis.Y + axis.Z*axis.Z)
	if n == 0 || p.Rotation.Angle == 0 {
		return add(v, p.Base)
	}
	kx, ky, kz := axis.X/n, axis.Y/n, axis.Z/n
	theta := p.Rotation.Angle * math.Pi / 180
	cos, sin := math.Cos(theta), math.Sin(theta)

	// Rodrigues' rotation formula.
	dot := kx*v.X + ky*v.Y + kz*v.Z
	cx := ky*v.Z - kz*v.Y
	cy := kz*v.X - kx*v.Z
	cz := kx*v.Y - ky*v.X
	r := engine.Vector{
		X: v.X*cos + cx*sin + kx*dot*(1-cos),
		Y: v.Y*cos + cy*sin + ky*dot*(1-cos),
		Z: v.Z*cos + cz*sin + kz*dot*(1-cos),
	}
	return add(r, p.Base)
}

func add(a, b engine.Vector) engine.Vector {
	return engine.Vector{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z}
}
