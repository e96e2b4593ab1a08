package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMCPClient(t *testing.T) {
	t.Run("explicit stdio", func(t *testing.T) {
		cli, err := NewMCPClient(MCPServerConfig{
			ServerType: MCPServerTypeStdio,
			Command:    "mcp-server",
			Args:       []string{"--stdio"},
		})
		require.NoError(t, err)
		assert.NotNil(t, cli)
	})

	t.Run("explicit sse", func(t *testing.T) {
		cli, err := NewMCPClient(MCPServerConfig{
			ServerType: MCPServerTypeSSE,
			BaseURL:    "http://example.com/sse",
			Headers:    map[string]string{"Authorization": "Bearer test-token"},
		})
		require.NoError(t, err)
		assert.NotNil(t, cli)
	})

	t.Run("type inferred from base_url", func(t *testing.T) {
		cli, err := NewMCPClient(MCPServerConfig{BaseURL: "http://example.com/sse"})
		require.NoError(t, err)
		assert.NotNil(t, cli)
	})

	t.Run("type inferred from command", func(t *testing.T) {
		cli, err := NewMCPClient(MCPServerConfig{Command: "mcp-server"})
		require.NoError(t, err)
		assert.NotNil(t, cli)
	})

	t.Run("no type and no hints", func(t *testing.T) {
		_, err := NewMCPClient(MCPServerConfig{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "server_type is required")
	})

	t.Run("stdio without command", func(t *testing.T) {
		_, err := NewMCPClient(MCPServerConfig{ServerType: MCPServerTypeStdio})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "command is required")
	})

	t.Run("sse without base_url", func(t *testing.T) {
		_, err := NewMCPClient(MCPServerConfig{ServerType: MCPServerTypeSSE})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "base_url is required")
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := NewMCPClient(MCPServerConfig{ServerType: "grpc"})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server type")
	})
}

func TestNewMCPManager(t *testing.T) {
	t.Run("empty config", func(t *testing.T) {
		manager, err := NewMCPManager(MCPServersConfig{
			Servers: make(map[string]MCPServerConfig),
		})
		require.NoError(t, err)
		assert.Empty(t, manager.clients)
		assert.Empty(t, manager.whiteList)
	})

	t.Run("valid servers", func(t *testing.T) {
		manager, err := NewMCPManager(MCPServersConfig{
			Servers: map[string]MCPServerConfig{
				"files": {
					Command:       "mcp-files",
					ToolWhiteList: []string{"list_directory"},
				},
				"time": {
					BaseURL: "http://example.com/sse",
				},
			},
		})
		require.NoError(t, err)
		assert.Len(t, manager.clients, 2)
		assert.Equal(t, []string{"list_directory"}, manager.whiteList["files"])
		assert.Empty(t, manager.whiteList["time"])
	})

	t.Run("invalid server fails construction", func(t *testing.T) {
		manager, err := NewMCPManager(MCPServersConfig{
			Servers: map[string]MCPServerConfig{
				"broken": {ServerType: "invalid-type"},
			},
		})
		assert.Error(t, err)
		assert.Nil(t, manager)
		assert.Contains(t, err.Error(), "broken")
	})
}

func TestNewMCPManagerFromViper(t *testing.T) {
	viper.Reset()
	defer viper.Reset()

	viper.Set("mcp.servers.files.command", "mcp-files")
	viper.Set("mcp.servers.files.args", []string{"--root", "/"})
	viper.Set("mcp.servers.files.tool_white_list", []string{"list_directory"})

	manager, err := NewMCPManagerFromViper()
	require.NoError(t, err)
	assert.Len(t, manager.clients, 1)
	assert.Equal(t, []string{"list_directory"}, manager.whiteList["files"])
}

func TestGetMCPClient(t *testing.T) {
	manager, err := NewMCPManager(MCPServersConfig{
		Servers: map[string]MCPServerConfig{
			"files": {Command: "mcp-files"},
		},
	})
	require.NoError(t, err)

	cli, err := manager.GetMCPClient("files")
	require.NoError(t, err)
	assert.NotNil(t, cli)

	_, err = manager.GetMCPClient("unknown")
	assert.Error(t, err)
}

func TestToolWhiteListed(t *testing.T) {
	tool := mcp.Tool{Name: "get_current_time"}

	assert.True(t, toolWhiteListed(tool, nil))
	assert.True(t, toolWhiteListed(tool, []string{}))
	assert.True(t, toolWhiteListed(tool, []string{"get_current_time", "convert_time"}))
	assert.False(t, toolWhiteListed(tool, []string{"convert_time"}))
}

func TestMCPToolName(t *testing.T) {
	tool := NewMCPTool(nil, mcp.Tool{Name: "list_directory", Description: "List a directory"})

	assert.Equal(t, "mcp_list_directory", tool.Name())
	assert.Equal(t, "List a directory", tool.Description())
}

func TestMCPToolGenerateSchema(t *testing.T) {
	mcpTool := mcp.Tool{
		Name: "convert_time",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"source_timezone": map[string]any{"type": "string"},
				"time":            map[string]any{"type": "string"},
			},
			Required: []string{"time"},
		},
	}
	tool := NewMCPTool(nil, mcpTool)

	schema := tool.GenerateSchema()
	require.NotNil(t, schema)

	got, err := json.Marshal(schema)
	require.NoError(t, err)

	expected, err := json.Marshal(mcpTool.InputSchema)
	require.NoError(t, err)

	assert.JSONEq(t, string(expected), string(got))
}

func TestMCPToolExecuteInvalidInput(t *testing.T) {
	tool := NewMCPTool(nil, mcp.Tool{Name: "list_directory"})

	result := tool.Execute(context.Background(), NewBasicState(), `not json`)
	assert.True(t, result.IsError())
	assert.NotEmpty(t, result.GetError())
}

func TestMCPToolTracingKVs(t *testing.T) {
	tool := NewMCPTool(nil, mcp.Tool{Name: "list_directory"})

	kvs, err := tool.TracingKVs(`{}`)
	require.NoError(t, err)
	assert.Len(t, kvs, 1)
}
