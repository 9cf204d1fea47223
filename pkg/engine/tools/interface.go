package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"AgentCore/pkg/engine/api"
)

// Tool defines the unified interface for all tools exposed to the runtime.
// Tool schemas are safe to send to the model; tool execution is governed by
// policy and, for mutators, by user confirmation.
type Tool interface {
	Name() string
	Description() string
	Schema() api.ToolSchema
	Kind() api.ToolKind

	// Validate checks args against the declared parameter schema before
	// the call is scheduled.
	Validate(args api.Args) error

	// ShouldConfirm returns the confirmation prompt for this invocation,
	// or nil when the tool itself sees no need to ask. Policy can still
	// force a confirmation regardless.
	ShouldConfirm(ctx context.Context, args api.Args) (*api.ConfirmationDetails, error)

	// Execute runs the tool. onOutput, when non-nil, receives incremental
	// human-readable output while the tool runs.
	Execute(ctx context.Context, args api.Args, onOutput func(string)) (api.ToolResult, error)
}

// ParameterDef describes a single parameter for building JSON-schema tool parameters.
type ParameterDef struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "string", "integer", "boolean", "array", "object"
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// BaseTool provides common functionality for tools: schema construction from
// parameter definitions and schema-driven argument validation.
type BaseTool struct {
	name        string
	description string
	params      []ParameterDef
	kind        api.ToolKind

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// NewBaseTool creates a new BaseTool with the given configuration.
func NewBaseTool(name, description string, params []ParameterDef, kind api.ToolKind) *BaseTool {
	return &BaseTool{
		name:        name,
		description: description,
		params:      params,
		kind:        kind,
	}
}

func (b *BaseTool) Name() string        { return b.name }
func (b *BaseTool) Description() string { return b.description }

func (b *BaseTool) Kind() api.ToolKind {
	if b.kind != "" {
		return b.kind
	}
	return api.KindMutator
}

func (b *BaseTool) Schema() api.ToolSchema {
	properties := make(map[string]any)
	var required []string
	for _, p := range b.params {
		properties[p.Name] = map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Required {
			required = append(required, p.Name)
		}
	}
	params := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		params["required"] = required
	}
	return api.ToolSchema{
		Name:        b.name,
		Description: b.description,
		Parameters:  params,
	}
}

// Validate checks args against the parameter schema. The schema compiles
// lazily on first use and the result is cached.
func (b *BaseTool) Validate(args api.Args) error {
	b.compileOnce.Do(func() {
		raw, err := json.Marshal(b.Schema().Parameters)
		if err != nil {
			b.compileErr = err
			return
		}
		c := jsonschema.NewCompiler()
		url := b.name + ".schema.json"
		if err := c.AddResource(url, strings.NewReader(string(raw))); err != nil {
			b.compileErr = err
			return
		}
		b.compiled, b.compileErr = c.Compile(url)
	})
	if b.compileErr != nil {
		return fmt.Errorf("compile schema for %s: %w", b.name, b.compileErr)
	}

	// jsonschema validates decoded JSON values; round-trip the args so
	// typed values (ints, structs) normalize the same way.
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("unmarshal args: %w", err)
	}
	if v == nil {
		v = map[string]any{}
	}
	if err := b.compiled.Validate(v); err != nil {
		return fmt.Errorf("invalid arguments for %s: %w", b.name, err)
	}
	return nil
}

// ShouldConfirm defaults to no tool-driven confirmation.
func (b *BaseTool) ShouldConfirm(ctx context.Context, args api.Args) (*api.ConfirmationDetails, error) {
	return nil, nil
}

func successResult(content string) api.ToolResult {
	return api.ToolResult{Content: content}
}

func errorResult(kind, msg string) api.ToolResult {
	return api.ToolResult{Content: msg, Error: msg, ErrorKind: kind}
}
