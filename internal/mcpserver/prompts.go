package mcpserver

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const assetCreationStrategy = `Modelling workflow for cadbridge

1. SETUP: create_document() makes a new document and selects it.
2. PRIMITIVES: create_object() with "Part::Box", "Part::Cylinder", "Part::Sphere" or "Part::Cone".
   Pass sizes and a Placement in obj_properties, for example
   {"Length": 20, "Placement": {"Base": {"x": 0, "y": 0, "z": 0}}}.
3. BOOLEANS: combine solids with "Part::Cut", "Part::Fuse" or "Part::Common", naming the operands
   in "Base" and "Tool".
4. PARTDESIGN: "PartDesign::Body" groups features; "PartDesign::Pad", "PartDesign::Pocket" and
   "PartDesign::Fillet" reference their inputs, e.g. {"Base": {"ref": "Pad", "subelements": ["Edge1"]}}.
5. INSPECT: get_objects() / get_object() show properties, get_view() shows the result,
   recompute_document() refreshes derived shapes.

Use get_object_types() to list every type the bridge can create.`

func assetCreationPrompt() *mcp.Prompt {
	return &mcp.Prompt{
		Name:        "asset_creation_strategy",
		Description: "Step-by-step workflow for building parts through the bridge tools.",
	}
}

func assetCreationPromptHandler(_ context.Context, _ *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: assetCreationStrategy}},
		},
	}, nil
}
