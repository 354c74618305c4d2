package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Args decodes the tool call arguments into T. Arguments arrive either as
// raw JSON or an already-decoded map depending on transport, so the decode
// goes through a marshal round trip.
func Args[T any](req *mcp.CallToolRequest) (T, error) {
	var out T
	if req.Params == nil || req.Params.Arguments == nil {
		return out, nil
	}
	raw, err := json.Marshal(req.Params.Arguments)
	if err != nil {
		return out, fmt.Errorf("failed to encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to decode arguments: %w", err)
	}
	return out, nil
}

// Result builds the standard tool result envelope: a single JSON text block
// plus the same value under structuredContent.result.
func Result(v any) *mcp.CallToolResult {
	text, err := json.Marshal(v)
	if err != nil {
		text = []byte("{}")
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(text)}},
		StructuredContent: map[string]any{"result": v},
	}
}

// Errorf builds a tool result carrying an error payload. Upstream failures
// surface this way instead of JSON-RPC errors so callers always get a result.
func Errorf(format string, a ...any) *mcp.CallToolResult {
	return Result(map[string]any{"error": fmt.Sprintf(format, a...)})
}

// Schema construction helpers. Tool input schemas are plain JSON Schema
// objects; these keep the per-tool declarations compact.

// Object returns an object schema with the given properties
func Object(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

// String returns a string property schema
func String(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}

// Number returns a number property schema
func Number(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "number", Description: description}
}

// Integer returns an integer property schema
func Integer(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "integer", Description: description}
}

// Boolean returns a boolean property schema
func Boolean(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "boolean", Description: description}
}

// Array returns an array property schema
func Array(description string, items *jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "array", Description: description, Items: items}
}

// StringArray returns an array-of-strings property schema
func StringArray(description string) *jsonschema.Schema {
	return Array(description, &jsonschema.Schema{Type: "string"})
}
