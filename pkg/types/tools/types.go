// Package tools defines the tool contract shared by the local registry,
// the LLM threads and the MCP bridge. A Tool advertises a JSON schema for
// its input and executes against the run state; a ToolResult carries
// either output or an error back to the model.
package tools

import (
	"context"
	"fmt"

	"github.com/invopop/jsonschema"
	"go.opentelemetry.io/otel/attribute"
)

// Tool is implemented by every capability exposed to the model, local or
// proxied from an MCP server.
type Tool interface {
	GenerateSchema() *jsonschema.Schema
	Name() string
	Description() string
	ValidateInput(state State, parameters string) error
	Execute(ctx context.Context, state State, parameters string) ToolResult
	TracingKVs(parameters string) ([]attribute.KeyValue, error)
}

// ToolResult is the outcome of one tool execution.
type ToolResult interface {
	GetResult() string
	GetError() string
	IsError() bool
	// AssistantFacing renders the result in the tagged form fed back to
	// the model.
	AssistantFacing() string
}

// BaseToolResult is the plain implementation of ToolResult used by all
// built-in tools.
type BaseToolResult struct {
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// GetResult returns the tool output.
func (r BaseToolResult) GetResult() string { return r.Result }

// GetError returns the error message, empty on success.
func (r BaseToolResult) GetError() string { return r.Error }

// IsError reports whether the execution failed.
func (r BaseToolResult) IsError() bool { return r.Error != "" }

// AssistantFacing renders the result for the model.
func (r BaseToolResult) AssistantFacing() string {
	return StringifyToolResult(r.Result, r.Error)
}

// StringifyToolResult wraps output and error in the tags the model is
// prompted to expect. The result section is always present so the model
// can rely on its shape; an error section is prepended when set.
func StringifyToolResult(result, errMsg string) string {
	out := ""
	if errMsg != "" {
		out = fmt.Sprintf("<error>\n%s\n</error>\n", errMsg)
	}
	if result == "" {
		result = "(No output)"
	}
	out += fmt.Sprintf("<result>\n%s\n</result>\n", result)
	return out
}

// State carries per-run bookkeeping shared across tool executions within
// one orchestration loop.
type State interface {
	// ActivateSkill records that the model has pulled a skill's
	// instructions into the conversation. It returns false when the skill
	// was already active.
	ActivateSkill(id string) bool
	// ActiveSkills lists activated skill ids in activation order.
	ActiveSkills() []string
}
