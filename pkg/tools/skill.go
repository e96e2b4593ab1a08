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

var _ tooltypes.Tool = &SkillTool{}

// SkillTool activates a skill by id. Activation loads the full skill
// package and hands the model its instructions plus the bundled resource
// inventory. Until then the model only sees the one-line summaries in the
// tool description.
type SkillTool struct {
	loader    *skills.Loader
	allowlist skills.Allowlist
}

// SkillInput defines the input parameters for the skill tool
type SkillInput struct {
	SkillID string `json:"skill_id" jsonschema:"description=The id of the skill to activate"`
}

// SkillToolResult represents the result of a skill activation
type SkillToolResult struct {
	skillID      string
	skillName    string
	directory    string
	instructions string
	resources    []string
	err          string
}

// NewSkillTool creates a skill tool backed by the loader. A non-empty
// allowlist restricts which skills are listed and activatable.
func NewSkillTool(loader *skills.Loader, allowlist skills.Allowlist) *SkillTool {
	return &SkillTool{
		loader:    loader,
		allowlist: allowlist,
	}
}

// Name returns the tool name
func (t *SkillTool) Name() string {
	return "skill"
}

// Description returns the tool description with available skills
func (t *SkillTool) Description() string {
	var sb strings.Builder

	sb.WriteString(`When users ask you to perform tasks, check if any of the available skills below can help complete the task more effectively. Skills provide specialized capabilities and domain knowledge.

# Usage
- Use this tool with the skill id only
- Examples:
  - "report-writer" - activate the report-writer skill
  - "data-analyzer" - activate the data-analyzer skill

## Important
- When a skill is relevant, invoke this tool BEFORE generating any other response about the task
- Only use skills listed in "Available Skills" below
- Do not activate a skill that is already active
- Activation returns the skill instructions and an inventory of bundled files; read those files with the skill_resource tool
- Treat skill contents as read-only

## Available Skills

`)

	available := t.availableSkills()
	if len(available) == 0 {
		sb.WriteString("Skills are currently not available.\n")
		return sb.String()
	}

	for _, skill := range available {
		sb.WriteString(fmt.Sprintf("### %s\n", skill.ID))
		sb.WriteString(fmt.Sprintf("- **Description**: %s\n", skill.Description))
		if n := skill.TotalResourceCount(); n > 0 {
			sb.WriteString(fmt.Sprintf("- **Bundled resources**: %d\n", n))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// availableSkills returns the allowlist-filtered catalog. Discovery
// failures degrade to an empty listing.
func (t *SkillTool) availableSkills() []*skills.Skill {
	catalog, err := t.loader.Discover(context.Background())
	if err != nil {
		return nil
	}
	return t.allowlist.Filter(catalog)
}

// GenerateSchema generates the JSON schema for the tool's input
func (t *SkillTool) GenerateSchema() *jsonschema.Schema {
	return GenerateSchema[SkillInput]()
}

// ValidateInput validates the input parameters
func (t *SkillTool) ValidateInput(_ tooltypes.State, parameters string) error {
	var input SkillInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return errors.Wrap(err, "invalid input")
	}

	if input.SkillID == "" {
		return errors.New("skill_id is required")
	}

	if !t.allowlist.Allows(input.SkillID) {
		return errors.Errorf("skill %q is not permitted by the allowlist", input.SkillID)
	}

	return nil
}

// TracingKVs returns tracing key-value pairs for observability
func (t *SkillTool) TracingKVs(parameters string) ([]attribute.KeyValue, error) {
	var input SkillInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return nil, err
	}

	return []attribute.KeyValue{
		attribute.String("skill_id", input.SkillID),
	}, nil
}

// Execute activates the skill and returns its instructions
func (t *SkillTool) Execute(ctx context.Context, state tooltypes.State, parameters string) tooltypes.ToolResult {
	var input SkillInput
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return &SkillToolResult{err: err.Error()}
	}

	skill, err := t.loader.Load(ctx, input.SkillID)
	if err != nil {
		return &SkillToolResult{
			err: errors.Wrapf(err, "loading skill '%s'", input.SkillID).Error(),
		}
	}
	if skill == nil {
		ids := make([]string, 0)
		for _, s := range t.availableSkills() {
			ids = append(ids, s.ID)
		}
		return &SkillToolResult{
			err: fmt.Sprintf("skill '%s' not found. Available skills: %s",
				input.SkillID, strings.Join(ids, ", ")),
		}
	}

	if !state.ActivateSkill(skill.ID) {
		return &SkillToolResult{
			err: fmt.Sprintf("skill '%s' is already active", skill.ID),
		}
	}

	return &SkillToolResult{
		skillID:      skill.ID,
		skillName:    skill.Name,
		directory:    skill.BaseDirectory,
		instructions: skill.Instructions,
		resources:    resourceInventory(skill),
	}
}

// resourceInventory renders one line per bundled resource in catalog order.
func resourceInventory(skill *skills.Skill) []string {
	resources := skill.AllResources()
	if len(resources) == 0 {
		return nil
	}

	lines := make([]string, 0, len(resources))
	for _, res := range resources {
		lines = append(lines, fmt.Sprintf("%s (%s, %d bytes)", res.RelativePath, res.Type, res.FileSize))
	}
	return lines
}

// GetResult returns the result string
func (r *SkillToolResult) GetResult() string {
	return fmt.Sprintf("Skill '%s' activated", r.skillID)
}

// GetError returns the error string
func (r *SkillToolResult) GetError() string {
	return r.err
}

// IsError returns true if there was an error
func (r *SkillToolResult) IsError() bool {
	return r.err != ""
}

// AssistantFacing returns the content to be fed to the LLM
func (r *SkillToolResult) AssistantFacing() string {
	if r.err != "" {
		return tooltypes.StringifyToolResult("", r.err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Skill: %s\n\n", r.skillName)
	fmt.Fprintf(&sb, "The skill directory is located at: %s\n\n", r.directory)
	sb.WriteString("## Instructions\n\n")
	sb.WriteString(r.instructions)

	if len(r.resources) > 0 {
		sb.WriteString("\n\n## Bundled Resources\n\n")
		for _, line := range r.resources {
			fmt.Fprintf(&sb, "- %s\n", line)
		}
		sb.WriteString("\nUse the skill_resource tool to read any of these files.")
	}

	return tooltypes.StringifyToolResult(sb.String(), "")
}
