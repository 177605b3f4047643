package operations

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/nerrad567/cadbridge/internal/bridge"
	"github.com/nerrad567/cadbridge/internal/coerce"
	"github.com/nerrad567/cadbridge/internal/engine"
	"github.com/nerrad567/cadbridge/internal/envelope"
	"github.com/nerrad567/cadbridge/internal/journal"
	"github.com/nerrad567/cadbridge/internal/render"
	"github.com/nerrad567/cadbridge/internal/serialize"
)

func (r *Registry) registerAll() {
	r.register("ping", Probe, "Connectivity probe; always true.", r.ping)

	r.register("create_document", Mutating, "Create a document and make it active.", r.createDocument)
	r.register("create_object", Mutating, "Create an object in a document and set its properties.", r.createObject)
	r.register("edit_object", Mutating, "Set properties of an existing object.", r.editObject)
	r.register("delete_object", Mutating, "Delete an object and clear references to it.", r.deleteObject)
	r.register("recompute_document", Mutating, "Recompute every object of a document.", r.recomputeDocument)
	r.register("close_document", Mutating, "Close a document.", r.closeDocument)
	r.register("set_active_document", Mutating, "Make a document the active one.", r.setActiveDocument)

	r.register("list_documents", ReadOnly, "Names of the open documents.", r.listDocuments)
	r.register("get_objects", ReadOnly, "Every object of a document.", r.getObjects)
	r.register("get_object", ReadOnly, "One object of a document.", r.getObject)
	r.register("get_object_types", ReadOnly, "The object types that can be created.", r.getObjectTypes)
	r.register("get_task_history", ReadOnly, "Recently executed tasks, most recent first.", r.getTaskHistory)
	r.register("get_bridge_status", ReadOnly, "Queue depth and open documents.", r.getBridgeStatus)

	r.register("get_active_screenshot", Payload, "PNG snapshot of the active document, base64 encoded.", r.getActiveScreenshot)
}

// submit runs a mutating task and reports a successful change to the notifier.
// document names the changed document; when empty it is taken from the
// task's "document_name" result.
func (r *Registry) submit(ctx context.Context, method, document string, run bridge.TaskFunc) envelope.Envelope {
	outcome := r.deps.Bridge.Submit(ctx, method, run)
	if outcome.Succeeded && r.deps.Notifier != nil {
		if document == "" {
			if m, ok := outcome.Value.(map[string]any); ok {
				document, _ = m["document_name"].(string)
			}
		}
		r.deps.Notifier.DocumentChanged(document, method)
	}
	return envelope.FromOutcome(outcome)
}

// read runs fn under the store's read lock and wraps its result.
func (r *Registry) read(fn func(v engine.View) (any, error)) envelope.Envelope {
	var data any
	err := r.deps.Store.Read(func(v engine.View) error {
		var err error
		data, err = fn(v)
		return err
	})
	if err != nil {
		return envelope.Fail(err.Error())
	}
	return envelope.Ok(data)
}

func (r *Registry) ping(_ context.Context, p Params) (any, error) {
	if err := p.max(0); err != nil {
		return nil, err
	}
	return true, nil
}

func (r *Registry) createDocument(ctx context.Context, p Params) (any, error) {
	if err := p.max(1); err != nil {
		return nil, err
	}
	name, err := p.optString(0, "name", engine.DefaultDocumentName)
	if err != nil {
		return nil, err
	}
	return r.submit(ctx, "create_document", "", func(st *engine.State) (any, error) {
		doc := st.NewDocument(name)
		return map[string]any{"document_name": doc.Name}, nil
	}), nil
}

func (r *Registry) createObject(ctx context.Context, p Params) (any, error) {
	if err := p.max(2); err != nil {
		return nil, err
	}
	docName, err := p.string(0, "document name")
	if err != nil {
		return nil, err
	}
	spec, err := p.object(1, "object")
	if err != nil {
		return nil, err
	}
	spec = deepCopy(spec).(map[string]any)

	typeID, ok := spec["Type"].(string)
	if !ok || typeID == "" {
		return nil, invalidParams("object Type must be a non-empty string")
	}
	name, _ := spec["Name"].(string)
	props, err := propertiesOf(spec, false)
	if err != nil {
		return nil, err
	}

	return r.submit(ctx, "create_object", docName, func(st *engine.State) (any, error) {
		doc, err := st.Document(docName)
		if err != nil {
			return nil, err
		}
		obj, err := doc.AddObject(typeID, name)
		if err != nil {
			return nil, err
		}
		if err := coerce.ApplyAll(doc, obj.Attributes, props); err != nil {
			_ = doc.RemoveObject(obj.Name) //nolint:errcheck // just added
			return nil, err
		}
		doc.Recompute()
		return map[string]any{"object_name": obj.Name}, nil
	}), nil
}

func (r *Registry) editObject(ctx context.Context, p Params) (any, error) {
	if err := p.max(3); err != nil {
		return nil, err
	}
	docName, err := p.string(0, "document name")
	if err != nil {
		return nil, err
	}
	objName, err := p.string(1, "object name")
	if err != nil {
		return nil, err
	}
	spec, err := p.object(2, "properties")
	if err != nil {
		return nil, err
	}
	props, err := propertiesOf(deepCopy(spec).(map[string]any), true)
	if err != nil {
		return nil, err
	}

	return r.submit(ctx, "edit_object", docName, func(st *engine.State) (any, error) {
		doc, err := st.Document(docName)
		if err != nil {
			return nil, err
		}
		obj, err := doc.Object(objName)
		if err != nil {
			return nil, err
		}
		if err := coerce.ApplyAll(doc, obj.Attributes, props); err != nil {
			return nil, err
		}
		doc.Recompute()
		return map[string]any{"object_name": obj.Name}, nil
	}), nil
}

// propertiesOf extracts the "Properties" mapping of spec. When bareAllowed
// is set and spec has no such key, spec itself is the mapping.
func propertiesOf(spec map[string]any, bareAllowed bool) (map[string]any, error) {
	raw, ok := spec["Properties"]
	if !ok || raw == nil {
		if bareAllowed {
			return spec, nil
		}
		return map[string]any{}, nil
	}
	props, ok := raw.(map[string]any)
	if !ok {
		return nil, invalidParams("Properties must be an object")
	}
	return props, nil
}

func (r *Registry) deleteObject(ctx context.Context, p Params) (any, error) {
	if err := p.max(2); err != nil {
		return nil, err
	}
	docName, err := p.string(0, "document name")
	if err != nil {
		return nil, err
	}
	objName, err := p.string(1, "object name")
	if err != nil {
		return nil, err
	}
	return r.submit(ctx, "delete_object", docName, func(st *engine.State) (any, error) {
		doc, err := st.Document(docName)
		if err != nil {
			return nil, err
		}
		if err := doc.RemoveObject(objName); err != nil {
			return nil, err
		}
		return map[string]any{"object_name": objName}, nil
	}), nil
}

// documentTask builds the single-argument document methods.
func (r *Registry) documentTask(method string, fn func(st *engine.State, name string) error) func(context.Context, Params) (any, error) {
	return func(ctx context.Context, p Params) (any, error) {
		if err := p.max(1); err != nil {
			return nil, err
		}
		name, err := p.string(0, "document name")
		if err != nil {
			return nil, err
		}
		return r.submit(ctx, method, name, func(st *engine.State) (any, error) {
			if err := fn(st, name); err != nil {
				return nil, err
			}
			return map[string]any{"document_name": name}, nil
		}), nil
	}
}

func (r *Registry) recomputeDocument(ctx context.Context, p Params) (any, error) {
	return r.documentTask("recompute_document", func(st *engine.State, name string) error {
		doc, err := st.Document(name)
		if err != nil {
			return err
		}
		doc.Recompute()
		return nil
	})(ctx, p)
}

func (r *Registry) closeDocument(ctx context.Context, p Params) (any, error) {
	return r.documentTask("close_document", (*engine.State).CloseDocument)(ctx, p)
}

func (r *Registry) setActiveDocument(ctx context.Context, p Params) (any, error) {
	return r.documentTask("set_active_document", (*engine.State).SetActive)(ctx, p)
}

func (r *Registry) listDocuments(_ context.Context, p Params) (any, error) {
	if err := p.max(0); err != nil {
		return nil, err
	}
	return r.read(func(v engine.View) (any, error) {
		docs := v.Documents()
		names := make([]string, len(docs))
		for i, d := range docs {
			names[i] = d.Name
		}
		return names, nil
	}), nil
}

func (r *Registry) getObjects(_ context.Context, p Params) (any, error) {
	if err := p.max(1); err != nil {
		return nil, err
	}
	docName, err := p.string(0, "document name")
	if err != nil {
		return nil, err
	}
	return r.read(func(v engine.View) (any, error) {
		doc, err := v.Document(docName)
		if err != nil {
			return nil, err
		}
		return serialize.Objects(doc.Objects()), nil
	}), nil
}

func (r *Registry) getObject(_ context.Context, p Params) (any, error) {
	if err := p.max(2); err != nil {
		return nil, err
	}
	docName, err := p.string(0, "document name")
	if err != nil {
		return nil, err
	}
	objName, err := p.string(1, "object name")
	if err != nil {
		return nil, err
	}
	return r.read(func(v engine.View) (any, error) {
		doc, err := v.Document(docName)
		if err != nil {
			return nil, err
		}
		obj, err := doc.Object(objName)
		if err != nil {
			return nil, err
		}
		return serialize.Object(obj), nil
	}), nil
}

func (r *Registry) getObjectTypes(_ context.Context, p Params) (any, error) {
	if err := p.max(0); err != nil {
		return nil, err
	}
	return r.read(func(v engine.View) (any, error) {
		catalog := v.Catalog()
		out := make([]map[string]any, 0, len(catalog))
		for _, id := range catalog.TypeIDs() {
			spec, _ := catalog.Lookup(id)
			out = append(out, serialize.TypeSpec(spec))
		}
		return out, nil
	}), nil
}

func (r *Registry) getTaskHistory(ctx context.Context, p Params) (any, error) {
	if err := p.max(1); err != nil {
		return nil, err
	}
	limit, err := p.optInt(0, "limit", 0)
	if err != nil {
		return nil, err
	}
	if r.deps.Journal == nil {
		return envelope.Fail(ErrJournalDisabled.Error()), nil
	}
	res, err := r.deps.Journal.List(ctx, journal.Filter{Limit: limit})
	if err != nil {
		return envelope.Fail(fmt.Sprintf("reading task journal: %v", err)), nil
	}
	return envelope.Ok(res.Entries), nil
}

func (r *Registry) getBridgeStatus(_ context.Context, p Params) (any, error) {
	if err := p.max(0); err != nil {
		return nil, err
	}
	depth := r.deps.Bridge.Len()
	return r.read(func(v engine.View) (any, error) {
		docs := v.Documents()
		names := make([]string, len(docs))
		for i, d := range docs {
			names[i] = d.Name
		}
		var active any
		if doc := v.Active(); doc != nil {
			active = doc.Name
		}
		return map[string]any{
			"queue_depth":     depth,
			"documents":       names,
			"active_document": active,
		}, nil
	}), nil
}

// getActiveScreenshot captures the active document on the pump and draws it
// on the calling goroutine. A width or height of 0 means the default. Any
// failure yields a bare null.
func (r *Registry) getActiveScreenshot(ctx context.Context, p Params) (any, error) {
	if err := p.max(3); err != nil {
		return nil, err
	}
	viewName, err := p.optString(0, "view", "")
	if err != nil {
		return nil, err
	}
	view, err := render.ParseView(viewName)
	if err != nil {
		return nil, invalidParams("%v", err)
	}
	width, err := p.optInt(1, "width", render.DefaultWidth)
	if err != nil {
		return nil, err
	}
	height, err := p.optInt(2, "height", render.DefaultHeight)
	if err != nil {
		return nil, err
	}
	// 0 keeps the default for that axis, so a caller can size one dimension.
	if width == 0 {
		width = render.DefaultWidth
	}
	if height == 0 {
		height = render.DefaultHeight
	}

	outcome := r.deps.Bridge.Submit(ctx, "get_active_screenshot", func(st *engine.State) (any, error) {
		doc := st.Active()
		if doc == nil {
			return nil, engine.ErrNoActiveDocument
		}
		return render.Capture(doc), nil
	})
	if !outcome.Succeeded {
		r.logger.Debug("screenshot unavailable", "reason", outcome.Message)
		return nil, nil
	}
	scene, ok := outcome.Value.(*render.Scene)
	if !ok {
		return nil, nil
	}
	data, err := scene.PNG(view, width, height)
	if err != nil {
		r.logger.Warn("rendering screenshot failed", "error", err)
		return nil, nil
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
