// Package agent runs the orchestration loop: it builds a system prompt from
// the discovered skill catalog, hands the model a tool registry backed by
// the loader and any configured MCP servers, and drives the conversation
// until the model stops calling tools or the turn budget runs out. Finished
// runs are recorded in the history store.
package agent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/satchel-sh/satchel/pkg/history"
	"github.com/satchel-sh/satchel/pkg/llm"
	"github.com/satchel-sh/satchel/pkg/logger"
	"github.com/satchel-sh/satchel/pkg/skills"
	"github.com/satchel-sh/satchel/pkg/tools"
)

// Agent wires the skill loader, tool registry and llm thread together for
// one or more runs.
type Agent struct {
	config    llm.Config
	loader    *skills.Loader
	allowlist skills.Allowlist
	mcp       *tools.MCPManager
	store     *history.Store
	renderer  *Renderer

	newThread func(llm.Config, *tools.Registry) (llm.Thread, error)
}

// Option configures an Agent.
type Option func(*Agent)

// WithAllowlist restricts which skills the agent may activate.
func WithAllowlist(allowlist skills.Allowlist) Option {
	return func(a *Agent) {
		a.allowlist = allowlist
	}
}

// WithMCPManager adds tools from external MCP servers to the registry.
func WithMCPManager(manager *tools.MCPManager) Option {
	return func(a *Agent) {
		a.mcp = manager
	}
}

// WithHistoryStore records finished runs in the given store.
func WithHistoryStore(store *history.Store) Option {
	return func(a *Agent) {
		a.store = store
	}
}

// WithRenderer replaces the default prompt renderer, e.g. to override
// templates.
func WithRenderer(renderer *Renderer) Option {
	return func(a *Agent) {
		a.renderer = renderer
	}
}

// NewAgent creates an agent over the given loader and provider config.
func NewAgent(config llm.Config, loader *skills.Loader, opts ...Option) *Agent {
	a := &Agent{
		config:    config,
		loader:    loader,
		renderer:  defaultRenderer,
		newThread: llm.NewThread,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunRequest describes one agent run.
type RunRequest struct {
	// SkillID preloads the named skill at full disclosure before the first
	// model turn. Optional; without it the model picks skills itself via
	// the skill tool.
	SkillID string
	// Prompt is the user's task.
	Prompt string
	// Handler receives streaming-style callbacks for text and tool
	// activity. Defaults to a presenter-backed handler.
	Handler llm.MessageHandler
}

// RunResult is what a finished run produced.
type RunResult struct {
	RunID        string
	Response     string
	Usage        llm.Usage
	ActiveSkills []string
	Messages     []llm.Message
}

// Run executes one agent run. The returned result is valid even when
// recording it to history failed; persistence problems are logged, not
// fatal.
func (a *Agent) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.Prompt == "" {
		return nil, errors.New("prompt is required")
	}

	handler := req.Handler
	if handler == nil {
		handler = &PresenterHandler{}
	}

	registry, err := a.buildRegistry(ctx)
	if err != nil {
		return nil, err
	}

	promptCtx, err := a.buildPromptContext(ctx)
	if err != nil {
		return nil, err
	}

	state := tools.NewBasicState()
	if req.SkillID != "" {
		skill, err := a.preloadSkill(ctx, req.SkillID)
		if err != nil {
			return nil, err
		}
		state.ActivateSkill(skill.ID)
		promptCtx.ActiveSkill = activeSkillContext(skill)
	}

	systemPrompt, err := a.renderer.RenderSystemPrompt(promptCtx)
	if err != nil {
		return nil, errors.Wrap(err, "rendering system prompt")
	}

	config := a.config
	config.SystemPrompt = systemPrompt

	thread, err := a.newThread(config, registry)
	if err != nil {
		return nil, err
	}
	thread.SetState(state)

	runID := uuid.New().String()
	log := logger.G(ctx).WithField("run_id", runID)
	log.WithField("skill_id", req.SkillID).Debug("starting agent run")

	response, err := thread.SendMessage(ctx, req.Prompt, handler, llm.MessageOpt{PromptCache: true})
	if err != nil {
		return nil, errors.Wrap(err, "agent run failed")
	}

	usage := thread.GetUsage()
	messages, err := thread.GetMessages()
	if err != nil {
		log.WithError(err).Warn("failed to extract run transcript")
	}

	result := &RunResult{
		RunID:        runID,
		Response:     response,
		Usage:        usage,
		ActiveSkills: state.ActiveSkills(),
		Messages:     messages,
	}

	a.recordRun(ctx, thread, req, result)

	return result, nil
}

func (a *Agent) buildRegistry(ctx context.Context) (*tools.Registry, error) {
	registry := tools.NewRegistry(tools.DefaultTools(a.loader, a.allowlist)...)

	if a.mcp != nil {
		mcpTools, err := a.mcp.ListMCPTools(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "listing mcp tools")
		}
		for _, tool := range mcpTools {
			registry.Register(tool)
		}
	}

	return registry, nil
}

func (a *Agent) buildPromptContext(ctx context.Context) (*PromptContext, error) {
	promptCtx := NewPromptContext()

	catalog, err := a.loader.Discover(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "discovering skills")
	}

	for _, skill := range a.allowlist.Filter(catalog) {
		promptCtx.Skills = append(promptCtx.Skills, SkillEntry{
			ID:            skill.ID,
			Description:   skill.Description,
			ResourceCount: skill.TotalResourceCount(),
		})
	}

	return promptCtx, nil
}

func (a *Agent) preloadSkill(ctx context.Context, id string) (*skills.Skill, error) {
	if !a.allowlist.Allows(id) {
		return nil, errors.Errorf("skill %q is not permitted by the allowlist", id)
	}

	skill, err := a.loader.Load(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "loading skill %q", id)
	}
	if skill == nil {
		return nil, errors.Errorf("skill %q not found", id)
	}
	return skill, nil
}

func activeSkillContext(skill *skills.Skill) *ActiveSkillContext {
	ctx := &ActiveSkillContext{
		ID:           skill.ID,
		Name:         skill.Name,
		Directory:    skill.BaseDirectory,
		Instructions: skill.Instructions,
	}
	for _, res := range skill.AllResources() {
		ctx.Resources = append(ctx.Resources, fmt.Sprintf("%s (%s, %d bytes)", res.RelativePath, res.Type, res.FileSize))
	}
	return ctx
}

// recordRun persists the finished run when a history store is configured.
func (a *Agent) recordRun(ctx context.Context, thread llm.Thread, req RunRequest, result *RunResult) {
	if a.store == nil {
		return
	}

	run := history.Run{
		ID:       result.RunID,
		SkillID:  req.SkillID,
		Provider: thread.Provider(),
		Model:    a.config.Model,
		Prompt:   req.Prompt,
		Messages: result.Messages,
		Usage:    result.Usage,
	}
	if err := a.store.Save(ctx, run); err != nil {
		logger.G(ctx).WithError(err).WithField("run_id", result.RunID).Warn("failed to record run history")
	}
}
