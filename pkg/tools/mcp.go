package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"

	"github.com/satchel-sh/satchel/pkg/logger"
	tooltypes "github.com/satchel-sh/satchel/pkg/types/tools"
	"github.com/satchel-sh/satchel/pkg/version"
)

var (
	_ tooltypes.Tool = &MCPTool{}
)

type MCPServerType string

const (
	MCPServerTypeStdio MCPServerType = "stdio"
	MCPServerTypeSSE   MCPServerType = "sse"
)

type MCPServerConfig struct {
	ServerType    MCPServerType     `json:"server_type" mapstructure:"server_type"`         // stdio or sse
	Command       string            `json:"command" mapstructure:"command"`                 // stdio: command to start the server
	Args          []string          `json:"args" mapstructure:"args"`                       // stdio: arguments to pass to the server
	Envs          map[string]string `json:"envs" mapstructure:"envs"`                       // stdio: environment variables to set
	BaseURL       string            `json:"base_url" mapstructure:"base_url"`               // sse: base URL of the server
	Headers       map[string]string `json:"headers" mapstructure:"headers"`                 // sse: headers to send to the server
	ToolWhiteList []string          `json:"tool_white_list" mapstructure:"tool_white_list"` // tools exposed to the model, empty means all
}

type MCPServersConfig struct {
	Servers map[string]MCPServerConfig `json:"servers" mapstructure:"servers"`
}

func NewMCPClient(config MCPServerConfig) (*client.Client, error) {
	if config.ServerType == "" {
		if config.BaseURL != "" {
			config.ServerType = MCPServerTypeSSE
		} else if config.Command != "" {
			config.ServerType = MCPServerTypeStdio
		} else {
			return nil, errors.New("server_type is required")
		}
	}

	switch config.ServerType {
	case MCPServerTypeStdio:
		if config.Command == "" {
			return nil, errors.New("command is required for stdio server")
		}
		envArgs := []string{}
		for k, v := range config.Envs {
			envArgs = append(envArgs, fmt.Sprintf("%s=%s", k, v))
		}
		tp := transport.NewStdio(config.Command, envArgs, config.Args...)
		return client.NewClient(tp), nil
	case MCPServerTypeSSE:
		if config.BaseURL == "" {
			return nil, errors.New("base_url is required for sse server")
		}
		tp, err := transport.NewSSE(config.BaseURL, transport.WithHeaders(config.Headers))
		if err != nil {
			return nil, err
		}
		return client.NewClient(tp), nil
	default:
		return nil, errors.Errorf("invalid server type %q", config.ServerType)
	}
}

// MCPManager owns the clients for the configured MCP servers and exposes
// their tools to the orchestration loop.
type MCPManager struct {
	clients map[string]*client.Client

	whiteList map[string][]string
}

func NewMCPManager(config MCPServersConfig) (*MCPManager, error) {
	manager := &MCPManager{
		clients:   make(map[string]*client.Client),
		whiteList: make(map[string][]string),
	}
	for name, serverConfig := range config.Servers {
		cli, err := NewMCPClient(serverConfig)
		if err != nil {
			return nil, errors.Wrapf(err, "creating mcp client %q", name)
		}
		manager.clients[name] = cli
		manager.whiteList[name] = serverConfig.ToolWhiteList
	}
	return manager, nil
}

// NewMCPManagerFromViper builds the manager from the `mcp.servers`
// configuration section.
func NewMCPManagerFromViper() (*MCPManager, error) {
	var config MCPServersConfig
	if err := viper.UnmarshalKey("mcp", &config); err != nil {
		return nil, errors.Wrap(err, "parsing mcp configuration")
	}
	return NewMCPManager(config)
}

func (m *MCPManager) Initialize(ctx context.Context) error {
	for name, cli := range m.clients {
		logger.G(ctx).WithField("name", name).Info("initializing mcp client")
		initReq := mcp.InitializeRequest{}
		initReq.Params.ClientInfo = mcp.Implementation{
			Name:    "satchel",
			Version: version.Version,
		}
		initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		err := cli.Start(ctx)
		if err != nil {
			return errors.Wrapf(err, "starting mcp client %q", name)
		}
		_, err = cli.Initialize(ctx, initReq)
		if err != nil {
			return errors.Wrapf(err, "initializing mcp client %q", name)
		}
		logger.G(ctx).WithField("name", name).Info("initialized mcp client")
	}
	return nil
}

func (m *MCPManager) Close(ctx context.Context) error {
	var errs *multierror.Error
	for name, cli := range m.clients {
		if err := cli.Close(); err != nil {
			logger.G(ctx).WithField("name", name).WithError(err).Error("failed to close mcp client")
			errs = multierror.Append(errs, errors.Wrapf(err, "closing mcp client %q", name))
		}
	}
	return errs.ErrorOrNil()
}

func (m *MCPManager) ListMCPTools(ctx context.Context) ([]tooltypes.Tool, error) {
	tools := []tooltypes.Tool{}
	for name, cli := range m.clients {
		logger.G(ctx).WithField("name", name).Info("listing mcp tools")
		listToolResult, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
		if err != nil {
			return nil, errors.Wrapf(err, "listing tools of mcp client %q", name)
		}
		for _, tool := range listToolResult.Tools {
			if toolWhiteListed(tool, m.whiteList[name]) {
				tools = append(tools, NewMCPTool(cli, tool))
			}
		}
	}
	return tools, nil
}

func (m *MCPManager) GetMCPClient(clientName string) (*client.Client, error) {
	cli, ok := m.clients[clientName]
	if !ok {
		return nil, errors.Errorf("mcp client %q not found", clientName)
	}
	return cli, nil
}

func toolWhiteListed(tool mcp.Tool, whiteList []string) bool {
	return len(whiteList) == 0 || slices.Contains(whiteList, tool.GetName())
}

// MCPTool adapts one tool of an MCP server to the Tool interface.
type MCPTool struct {
	client             *client.Client
	mcpToolInputSchema mcp.ToolInputSchema
	mcpToolName        string
	mcpToolDescription string
}

func NewMCPTool(client *client.Client, tool mcp.Tool) *MCPTool {
	return &MCPTool{
		client:             client,
		mcpToolInputSchema: tool.InputSchema,
		mcpToolName:        tool.GetName(),
		mcpToolDescription: tool.Description,
	}
}

func (t *MCPTool) Name() string {
	return fmt.Sprintf("mcp_%s", t.mcpToolName)
}

func (t *MCPTool) Description() string {
	return t.mcpToolDescription
}

// GenerateSchema passes the server-declared input schema through untouched.
func (t *MCPTool) GenerateSchema() *jsonschema.Schema {
	b, err := t.mcpToolInputSchema.MarshalJSON()
	if err != nil {
		return GenerateSchema[map[string]any]()
	}
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(b, schema); err != nil {
		return GenerateSchema[map[string]any]()
	}
	return schema
}

func (t *MCPTool) TracingKVs(parameters string) ([]attribute.KeyValue, error) {
	return []attribute.KeyValue{
		attribute.String("mcp_tool", t.mcpToolName),
	}, nil
}

func (t *MCPTool) ValidateInput(state tooltypes.State, parameters string) error {
	return nil
}

func (t *MCPTool) Execute(ctx context.Context, state tooltypes.State, parameters string) tooltypes.ToolResult {
	var input map[string]any
	if err := json.Unmarshal([]byte(parameters), &input); err != nil {
		return tooltypes.BaseToolResult{
			Error: err.Error(),
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Arguments = input
	req.Params.Name = t.mcpToolName
	result, err := t.client.CallTool(ctx, req)
	if err != nil {
		return tooltypes.BaseToolResult{
			Error: err.Error(),
		}
	}
	content := ""
	for _, c := range result.Content {
		if v, ok := c.(mcp.TextContent); ok {
			content += v.Text
		} else {
			content += fmt.Sprintf("%v", c)
		}
	}
	return tooltypes.BaseToolResult{
		Result: content,
	}
}
