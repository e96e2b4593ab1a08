package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/satchel-sh/satchel/pkg/skills"
	tooltypes "github.com/satchel-sh/satchel/pkg/types/tools"
)

var _ tooltypes.Tool = &SkillResourceTool{}

// SkillResourceTool reads a single bundled file from a skill package. The
// content is fetched from disk once and served from the skill handle on
// repeat reads.
type SkillResourceTool struct {
	loader *skills.Loader
}

// SkillResourceInput defines the input parameters for the skill_resource tool
type SkillResourceInput struct {
	SkillID string `json:"skill_id" jsonschema:"description=The id of the skill that bundles the resource"`
	Path    string `json:"path" jsonschema:"description=The resource path relative to the skill directory,example=references/style-guide.md"`
}

// SkillResourceToolResult represents the result of a resource read
type SkillResourceToolResult struct {
	skillID string
	path    string
	content string
	err     string
}

// NewSkillResourceTool creates a resource reader backed by the loader.
func NewSkillResourceTool(loader *skills.Loader) *SkillResourceTool {
	return &SkillResourceTool{loader: loader}
}

// Name returns the tool name
func (t *SkillResourceTool) Name() string {
	return "skill_resource"
}

// Description returns the tool description
func (t *SkillResourceTool) Description() string {
	return `Read a file bundled with a skill, such as a template, reference document, script or asset.

# Usage
- Provide the skill id and the resource path exactly as listed in the skill's bundled resource inventory
- The path is relative to the skill directory, e.g. "templates/report.template.md" or "assets/img/logo.png"

## Important
- Activate the skill with the skill tool first to see which resources it bundles
- Resource contents are read-only`
}

// GenerateSchema generates the JSON schema for the tool's input
func (t *SkillResourceTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[SkillResourceInput]()
}

// ValidateInput validates the input parameters
func (t *SkillResourceTool) ValidateInput(_ tooltypes.State, parameters string) error {
	var input SkillResourceInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return errors.Wrap(err, "invalid input")
	}

	if input.SkillID == "" {
		return errors.New("skill_id is required")
	}
	if input.Path == "" {
		return errors.New("path is required")
	}

	return nil
}

// TracingKVs returns tracing key-value pairs for observability
func (t *SkillResourceTool) TracingKVs(parameters string) ([]attribute.KeyValue, error) {
	var input SkillResourceInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return nil, err
	}

	return []attribute.KeyValue{
		attribute.String("skill_id", input.SkillID),
		attribute.String("path", input.Path),
	}, nil
}

// Execute reads the resource and returns its content
func (t *SkillResourceTool) Execute(ctx context.Context, _ tooltypes.State, parameters string) tooltypes.ToolResult {
	var input SkillResourceInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return &SkillResourceToolResult{err: err.Error()}
	}

	skill, err := t.loader.Load(ctx, input.SkillID)
	if err != nil {
		return &SkillResourceToolResult{
			err: errors.Wrapf(err, "loading skill '%s'", input.SkillID).Error(),
		}
	}
	if skill == nil {
		return &SkillResourceToolResult{
			err: fmt.Sprintf("skill '%s' not found", input.SkillID),
		}
	}

	resource, found := skill.FindResource(input.Path)
	if !found {
		return &SkillResourceToolResult{
			err: fmt.Sprintf("resource '%s' not found in skill '%s'. Available resources: %s",
				input.Path, skill.ID, strings.Join(resourceInventory(skill), ", ")),
		}
	}

	content, ok, err := t.loader.LoadResourceContent(ctx, resource)
	if err != nil {
		return &SkillResourceToolResult{
			err: errors.Wrapf(err, "reading resource '%s'", input.Path).Error(),
		}
	}
	if !ok {
		return &SkillResourceToolResult{
			err: fmt.Sprintf("resource '%s' is no longer available on disk", input.Path),
		}
	}

	return &SkillResourceToolResult{
		skillID: skill.ID,
		path:    resource.RelativePath,
		content: content,
	}
}

// GetResult returns the result string
func (r *SkillResourceToolResult) GetResult() string {
	return r.content
}

// GetError returns the error string
func (r *SkillResourceToolResult) GetError() string {
	return r.err
}

// IsError returns true if there was an error
func (r *SkillResourceToolResult) IsError() bool {
	return r.err != ""
}

// AssistantFacing returns the content to be fed to the LLM
func (r *SkillResourceToolResult) AssistantFacing() string {
	if r.err != "" {
		return tooltypes.StringifyToolResult("", r.err)
	}

	result := fmt.Sprintf("# Resource: %s (skill: %s)\n\n%s", r.path, r.skillID, r.content)
	return tooltypes.StringifyToolResult(result, "")
}
