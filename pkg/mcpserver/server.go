// Package mcpserver exposes the skill catalog as an MCP tool server so
// external agents can discover and load skills over the Model Context
// Protocol. The four tools mirror the disclosure levels of the loader:
// list_skills and find_skills_by_tag answer from metadata, get_skill
// promotes one skill to full detail, and read_skill_resource
// materializes a single bundled file.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"

	"github.com/satchel-sh/satchel/pkg/skills"
)

const serverInstructions = `Satchel serves reusable agent skills with progressive disclosure.
Start with list_skills to see what is available; the listing is cheap, metadata-only detail.
Call get_skill when you decide to use one: it returns the full instructions plus an
inventory of bundled resources. Read individual resources with read_skill_resource only
when the instructions point you at them. find_skills_by_tag narrows the catalog by tag.`

// Server wraps an MCP server whose tools answer from the skill loader.
// The allowlist applies the same activation gate the local agent uses,
// so a restricted install exposes the same subset over MCP.
type Server struct {
	mcp       *server.MCPServer
	loader    *skills.Loader
	allowlist skills.Allowlist
}

// NewServer builds the MCP server and registers the catalog tools.
func NewServer(loader *skills.Loader, allowlist skills.Allowlist, version string) (*Server, error) {
	if loader == nil {
		return nil, errors.New("loader is required")
	}

	s := &Server{
		mcp: server.NewMCPServer(
			"satchel",
			version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
			server.WithInstructions(serverInstructions),
		),
		loader:    loader,
		allowlist: allowlist,
	}

	s.registerTools()

	return s, nil
}

func (s *Server) registerTools() {
	listTool := mcp.NewTool("list_skills",
		mcp.WithDescription("List every available skill with metadata-level detail"),
	)
	s.mcp.AddTool(listTool, s.handleListSkills)

	getTool := mcp.NewTool("get_skill",
		mcp.WithDescription("Load one skill in full, including its instructions and resource inventory"),
		mcp.WithString("id", mcp.Required(),
			mcp.Description("Skill identifier as returned by list_skills")),
	)
	s.mcp.AddTool(getTool, s.handleGetSkill)

	readTool := mcp.NewTool("read_skill_resource",
		mcp.WithDescription("Read the content of one bundled skill resource"),
		mcp.WithString("id", mcp.Required(),
			mcp.Description("Skill identifier")),
		mcp.WithString("path", mcp.Required(),
			mcp.Description("Resource path relative to the skill directory, e.g. references/style.md")),
	)
	s.mcp.AddTool(readTool, s.handleReadResource)

	tagTool := mcp.NewTool("find_skills_by_tag",
		mcp.WithDescription("List the skills carrying a tag, matched case-insensitively"),
		mcp.WithString("tag", mcp.Required(),
			mcp.Description("Tag to match")),
	)
	s.mcp.AddTool(tagTool, s.handleFindByTag)
}

type skillSummary struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Category      string   `json:"category,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	ResourceCount int      `json:"resourceCount"`
}

type resourceInfo struct {
	Path string `json:"path"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

type skillDetail struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Instructions string         `json:"instructions"`
	Version      string         `json:"version,omitempty"`
	Author       string         `json:"author,omitempty"`
	Category     string         `json:"category,omitempty"`
	Tags         []string       `json:"tags,omitempty"`
	Resources    []resourceInfo `json:"resources"`
}

func summarize(catalog []*skills.Skill) []skillSummary {
	out := make([]skillSummary, 0, len(catalog))
	for _, skill := range catalog {
		out = append(out, skillSummary{
			ID:            skill.ID,
			Name:          skill.Name,
			Description:   skill.Description,
			Category:      skill.Category,
			Tags:          skill.Tags,
			ResourceCount: skill.TotalResourceCount(),
		})
	}
	return out
}

func summaryResult(catalog []*skills.Skill) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(summarize(catalog), "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode skill list: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleListSkills(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	catalog, err := s.loader.Discover(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list skills: %v", err)), nil
	}
	return summaryResult(s.allowlist.Filter(catalog))
}

func (s *Server) handleFindByTag(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tag, err := req.RequireString("tag")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	catalog, err := s.loader.FindSkillsByTag(ctx, tag)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list skills: %v", err)), nil
	}
	return summaryResult(s.allowlist.Filter(catalog))
}

func (s *Server) handleGetSkill(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.allowlist.Allows(id) {
		return mcp.NewToolResultError(fmt.Sprintf("skill %q is not permitted by the allowlist", id)), nil
	}

	skill, err := s.loader.Load(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load skill: %v", err)), nil
	}
	if skill == nil {
		return mcp.NewToolResultError(fmt.Sprintf("skill not found: %s", id)), nil
	}

	all := skill.AllResources()
	resources := make([]resourceInfo, 0, len(all))
	for _, res := range all {
		resources = append(resources, resourceInfo{
			Path: res.RelativePath,
			Type: string(res.Type),
			Size: res.FileSize,
		})
	}

	detail := skillDetail{
		ID:           skill.ID,
		Name:         skill.Name,
		Description:  skill.Description,
		Instructions: skill.Instructions,
		Version:      skill.Version,
		Author:       skill.Author,
		Category:     skill.Category,
		Tags:         skill.Tags,
		Resources:    resources,
	}

	b, err := json.MarshalIndent(detail, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode skill: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func (s *Server) handleReadResource(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !s.allowlist.Allows(id) {
		return mcp.NewToolResultError(fmt.Sprintf("skill %q is not permitted by the allowlist", id)), nil
	}

	skill, err := s.loader.Load(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load skill: %v", err)), nil
	}
	if skill == nil {
		return mcp.NewToolResultError(fmt.Sprintf("skill not found: %s", id)), nil
	}

	res, ok := skill.FindResource(path)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("resource not found: %s", path)), nil
	}

	content, ok, err := s.loader.LoadResourceContent(ctx, res)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read resource: %v", err)), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("resource not found: %s", path)), nil
	}

	return mcp.NewToolResultText(content), nil
}

// ServeStdio serves the catalog over stdin/stdout until the stream
// closes or the process receives a termination signal.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}
