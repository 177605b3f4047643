package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nerrad567/cadbridge/internal/envelope"
)

const noPreviewNote = "Note: visual preview is unavailable because there is no active document."

// CreateDocumentInput is the create_document tool input.
type CreateDocumentInput struct {
	Name string `json:"name" jsonschema:"name of the document to create"`
}

// DocumentInput names a document.
type DocumentInput struct {
	DocName string `json:"doc_name" jsonschema:"name of the document"`
}

// CreateObjectInput is the create_object tool input.
type CreateObjectInput struct {
	DocName    string         `json:"doc_name" jsonschema:"document to create the object in"`
	ObjType    string         `json:"obj_type" jsonschema:"object type, e.g. Part::Box, Part::Cylinder, PartDesign::Body"`
	ObjName    string         `json:"obj_name" jsonschema:"name of the new object"`
	Properties map[string]any `json:"obj_properties,omitempty" jsonschema:"initial property values"`
}

// EditObjectInput is the edit_object tool input.
type EditObjectInput struct {
	DocName    string         `json:"doc_name" jsonschema:"document holding the object"`
	ObjName    string         `json:"obj_name" jsonschema:"object to edit"`
	Properties map[string]any `json:"obj_properties" jsonschema:"property values to set"`
}

// ObjectInput names one object of a document.
type ObjectInput struct {
	DocName string `json:"doc_name" jsonschema:"document holding the object"`
	ObjName string `json:"obj_name" jsonschema:"name of the object"`
}

// GetViewInput is the get_view tool input.
type GetViewInput struct {
	ViewName string `json:"view_name,omitempty" jsonschema:"Current, Isometric, Front, Top or Right"`
	Width    int    `json:"width,omitempty" jsonschema:"image width in pixels (default 800)"`
	Height   int    `json:"height,omitempty" jsonschema:"image height in pixels (default 600)"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "create_document",
		Description: "Create a new document and make it the active one.",
	}, s.createDocument)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "create_object",
		Description: "Create an object in a document. Types start with Part::, PartDesign::, Sketcher:: or App::.",
	}, s.createObject)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "edit_object",
		Description: "Set properties of an existing object.",
	}, s.editObject)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "delete_object",
		Description: "Delete an object; references to it held by other objects are cleared.",
	}, s.deleteObject)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "recompute_document",
		Description: "Recompute every object of a document.",
	}, s.recomputeDocument)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "list_documents",
		Description: "List the names of the open documents.",
	}, s.listDocuments)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_objects",
		Description: "Get every object of a document with its properties.",
	}, s.getObjects)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_object",
		Description: "Get one object of a document with its properties.",
	}, s.getObject)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_object_types",
		Description: "List the object types that can be created.",
	}, s.getObjectTypes)
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "get_view",
		Description: "Get a PNG snapshot of the active document.",
	}, s.getView)
}

func (s *Server) createDocument(ctx context.Context, _ *mcp.CallToolRequest, in CreateDocumentInput) (*mcp.CallToolResult, any, error) {
	env, err := s.bridge.CallEnvelope(ctx, "create_document", in.Name)
	if err != nil || !env.Success {
		return s.failure("create document", env, err), nil, nil
	}
	return textResult(fmt.Sprintf("Document '%s' created successfully", dataString(env, "document_name", in.Name))), nil, nil
}

func (s *Server) createObject(ctx context.Context, _ *mcp.CallToolRequest, in CreateObjectInput) (*mcp.CallToolResult, any, error) {
	props := in.Properties
	if props == nil {
		props = map[string]any{}
	}
	env, err := s.bridge.CallEnvelope(ctx, "create_object", in.DocName, map[string]any{
		"Name":       in.ObjName,
		"Type":       in.ObjType,
		"Properties": props,
	})
	if err != nil {
		return s.failure("create object", env, err), nil, nil
	}
	if !env.Success {
		return s.withPreview(ctx, s.failure("create object", env, nil)), nil, nil
	}
	return s.withPreview(ctx, textResult(fmt.Sprintf("Object '%s' created successfully", dataString(env, "object_name", in.ObjName)))), nil, nil
}

func (s *Server) editObject(ctx context.Context, _ *mcp.CallToolRequest, in EditObjectInput) (*mcp.CallToolResult, any, error) {
	env, err := s.bridge.CallEnvelope(ctx, "edit_object", in.DocName, in.ObjName, map[string]any{"Properties": in.Properties})
	if err != nil {
		return s.failure("edit object", env, err), nil, nil
	}
	if !env.Success {
		return s.withPreview(ctx, s.failure("edit object", env, nil)), nil, nil
	}
	return s.withPreview(ctx, textResult(fmt.Sprintf("Object '%s' edited successfully", dataString(env, "object_name", in.ObjName)))), nil, nil
}

func (s *Server) deleteObject(ctx context.Context, _ *mcp.CallToolRequest, in ObjectInput) (*mcp.CallToolResult, any, error) {
	env, err := s.bridge.CallEnvelope(ctx, "delete_object", in.DocName, in.ObjName)
	if err != nil {
		return s.failure("delete object", env, err), nil, nil
	}
	if !env.Success {
		return s.withPreview(ctx, s.failure("delete object", env, nil)), nil, nil
	}
	return s.withPreview(ctx, textResult(fmt.Sprintf("Object '%s' deleted successfully", dataString(env, "object_name", in.ObjName)))), nil, nil
}

func (s *Server) recomputeDocument(ctx context.Context, _ *mcp.CallToolRequest, in DocumentInput) (*mcp.CallToolResult, any, error) {
	env, err := s.bridge.CallEnvelope(ctx, "recompute_document", in.DocName)
	if err != nil || !env.Success {
		return s.failure("recompute document", env, err), nil, nil
	}
	return s.withPreview(ctx, textResult(fmt.Sprintf("Document '%s' recomputed successfully", in.DocName))), nil, nil
}

func (s *Server) listDocuments(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return s.jsonData(ctx, "list documents", "list_documents", false)
}

func (s *Server) getObjects(ctx context.Context, _ *mcp.CallToolRequest, in DocumentInput) (*mcp.CallToolResult, any, error) {
	return s.jsonData(ctx, "get objects", "get_objects", true, in.DocName)
}

func (s *Server) getObject(ctx context.Context, _ *mcp.CallToolRequest, in ObjectInput) (*mcp.CallToolResult, any, error) {
	return s.jsonData(ctx, "get object", "get_object", true, in.DocName, in.ObjName)
}

func (s *Server) getObjectTypes(ctx context.Context, _ *mcp.CallToolRequest, _ struct{}) (*mcp.CallToolResult, any, error) {
	return s.jsonData(ctx, "get object types", "get_object_types", false)
}

func (s *Server) getView(ctx context.Context, _ *mcp.CallToolRequest, in GetViewInput) (*mcp.CallToolResult, any, error) {
	view := in.ViewName
	if strings.EqualFold(view, "Current") {
		view = ""
	}
	png, ok, err := s.bridge.Screenshot(ctx, view, in.Width, in.Height)
	if err != nil {
		s.logger.Warn("get_view failed", "error", err)
		return errorResult("Failed to get view: " + err.Error()), nil, nil
	}
	if !ok {
		return textResult("Cannot get a view: there is no active document"), nil, nil
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.ImageContent{Data: png, MIMEType: "image/png"}}}, nil, nil
}

// jsonData returns the envelope's data as JSON text.
func (s *Server) jsonData(ctx context.Context, action, method string, preview bool, params ...any) (*mcp.CallToolResult, any, error) {
	env, err := s.bridge.CallEnvelope(ctx, method, params...)
	if err != nil || !env.Success {
		return s.failure(action, env, err), nil, nil
	}
	data, err := json.Marshal(env.Data)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to %s: %v", action, err)), nil, nil
	}
	res := textResult(string(data))
	if preview {
		res = s.withPreview(ctx, res)
	}
	return res, nil, nil
}

// failure reports a transport error or a failure envelope as a tool error.
func (s *Server) failure(action string, env envelope.Envelope, err error) *mcp.CallToolResult {
	msg := env.Message()
	if err != nil {
		msg = err.Error()
		s.logger.Warn("bridge call failed", "action", action, "error", err)
	}
	return errorResult(fmt.Sprintf("Failed to %s: %s", action, msg))
}

// withPreview appends a snapshot of the active document, or a note when there
// is none. Nothing is added in text-only mode.
func (s *Server) withPreview(ctx context.Context, res *mcp.CallToolResult) *mcp.CallToolResult {
	if s.textOnly {
		return res
	}
	png, ok, err := s.bridge.Screenshot(ctx, "", 0, 0)
	switch {
	case err != nil:
		s.logger.Warn("preview screenshot failed", "error", err)
	case ok:
		res.Content = append(res.Content, &mcp.ImageContent{Data: png, MIMEType: "image/png"})
	default:
		res.Content = append(res.Content, &mcp.TextContent{Text: noPreviewNote})
	}
	return res
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{IsError: true, Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

// dataString reads a string field of the envelope data, or fallback.
func dataString(env envelope.Envelope, key, fallback string) string {
	if m, ok := env.Data.(map[string]any); ok {
		if v, ok := m[key].(string); ok && v != "" {
			return v
		}
	}
	return fallback
}
