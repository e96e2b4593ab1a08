// Package tools provides the tool execution framework: the built-in
// skill tools, the registry the LLM threads run against, and the bridge
// that proxies tools from external MCP servers.
package tools

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/satchel-sh/satchel/pkg/logger"
	"github.com/satchel-sh/satchel/pkg/skills"
	"github.com/satchel-sh/satchel/pkg/telemetry"
	tooltypes "github.com/satchel-sh/satchel/pkg/types/tools"
)

var tracer = telemetry.Tracer("satchel.tools")

// GenerateSchema reflects a JSON schema from the input struct type.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T

	return reflector.Reflect(v)
}

// Registry holds the tools available to one orchestration loop, preserving
// registration order for prompt stability.
type Registry struct {
	order  []string
	byName map[string]tooltypes.Tool
}

// NewRegistry builds a registry from the given tools. Later registrations
// with a duplicate name replace earlier ones.
func NewRegistry(tools ...tooltypes.Tool) *Registry {
	r := &Registry{byName: make(map[string]tooltypes.Tool)}
	for _, tool := range tools {
		r.Register(tool)
	}
	return r
}

// Register adds a tool to the registry.
func (r *Registry) Register(tool tooltypes.Tool) {
	name := tool.Name()
	if _, exists := r.byName[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byName[name] = tool
}

// Tools returns the registered tools in registration order.
func (r *Registry) Tools() []tooltypes.Tool {
	out := make([]tooltypes.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (tooltypes.Tool, bool) {
	tool, ok := r.byName[name]
	return tool, ok
}

// DefaultTools returns the built-in tool set backed by the loader: skill
// activation and per-resource reads.
func DefaultTools(loader *skills.Loader, allowlist skills.Allowlist) []tooltypes.Tool {
	return []tooltypes.Tool{
		NewSkillTool(loader, allowlist),
		NewSkillResourceTool(loader),
	}
}

// ToAnthropicTools converts internal tool format to Anthropic's format
func ToAnthropicTools(tools []tooltypes.Tool) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		anthropicTools[i] = anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        tool.Name(),
				Description: anthropic.String(tool.Description()),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: tool.GenerateSchema().Properties,
				},
			},
		}
	}

	return anthropicTools
}

// RunTool validates and executes the named tool, wrapping the execution in
// a span. Failures come back as error results, never as panics or Go
// errors, so the model always receives something it can react to.
func (r *Registry) RunTool(ctx context.Context, state tooltypes.State, toolName string, parameters string) tooltypes.ToolResult {
	tool, ok := r.Get(toolName)
	if !ok {
		return tooltypes.BaseToolResult{
			Error: errors.Errorf("unknown tool %q", toolName).Error(),
		}
	}

	kvs, err := tool.TracingKVs(parameters)
	if err != nil {
		logger.G(ctx).WithError(err).Error("failed to get tracing kvs")
	}

	ctx, span := tracer.Start(
		ctx,
		fmt.Sprintf("tools.run_tool.%s", toolName),
		trace.WithAttributes(kvs...),
	)
	defer span.End()

	if err := tool.ValidateInput(state, parameters); err != nil {
		return tooltypes.BaseToolResult{
			Error: err.Error(),
		}
	}
	result := tool.Execute(ctx, state, parameters)

	if result.IsError() {
		span.SetStatus(codes.Error, result.GetError())
		span.RecordError(errors.New(result.GetError()))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	return result
}
