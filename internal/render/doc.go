// Package render draws a wireframe snapshot of a document.
//
// Capture and drawing are split so the engine lock is held only while the
// geometry is copied out:
//
//	scene := render.Capture(doc)    // inside the mutation pump
//	png, err := scene.PNG(view, w, h) // anywhere
//
// Every drawable object becomes a placed bounding box. The projection is a
// fixed orthographic view; nothing here attempts hidden-line removal.
package render
