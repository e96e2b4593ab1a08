package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/satchel-sh/satchel/pkg/agent"
	"github.com/satchel-sh/satchel/pkg/history"
	"github.com/satchel-sh/satchel/pkg/llm"
	"github.com/satchel-sh/satchel/pkg/logger"
	"github.com/satchel-sh/satchel/pkg/presenter"
	"github.com/satchel-sh/satchel/pkg/tools"
)

// RunConfig holds configuration for the run command
type RunConfig struct {
	NoSave bool
	NoMCP  bool
}

// NewRunConfig creates a new RunConfig with default values
func NewRunConfig() *RunConfig {
	return &RunConfig{}
}

var runCmd = &cobra.Command{
	Use:   "run <skill-id> [prompt]",
	Short: "Run one agent turn with a skill preloaded",
	Long: `Run the agent against a prompt with the named skill loaded at full
disclosure. The rest of the catalog stays available to the model at
metadata level through the skill tool, and configured MCP servers
contribute their tools to the loop.

The prompt can be given as arguments, piped on stdin, or both; piped
content is appended after the arguments.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			presenter.Warning("Cancellation requested, shutting down...")
			cancel()
		}()

		config := getRunConfigFromFlags(cmd)
		skillID := args[0]

		prompt := strings.Join(args[1:], " ")

		// Check if there's input from stdin (pipe)
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			stdinBytes, err := io.ReadAll(os.Stdin)
			if err != nil {
				presenter.Error(err, "Failed to read from stdin")
				os.Exit(1)
			}
			if prompt != "" {
				prompt = prompt + "\n" + string(stdinBytes)
			} else {
				prompt = string(stdinBytes)
			}
		}
		if strings.TrimSpace(prompt) == "" {
			presenter.Error(errors.New("no prompt provided"), "Nothing to run")
			os.Exit(1)
		}

		llmConfig, err := llm.GetConfigFromViper()
		if err != nil {
			presenter.Error(err, "Failed to load LLM configuration")
			os.Exit(1)
		}

		loader, err := newLoader()
		if err != nil {
			presenter.Error(err, "Failed to initialize skill loader")
			os.Exit(1)
		}

		allowlist, err := loadAllowlist()
		if err != nil {
			presenter.Error(err, "Invalid skill allowlist")
			os.Exit(1)
		}

		opts := []agent.Option{agent.WithAllowlist(allowlist)}

		if !config.NoMCP && viper.IsSet("mcp.servers") {
			manager, err := tools.NewMCPManagerFromViper()
			if err != nil {
				presenter.Error(err, "Failed to configure MCP servers")
				os.Exit(1)
			}
			if err := manager.Initialize(ctx); err != nil {
				presenter.Error(err, "Failed to initialize MCP servers")
				os.Exit(1)
			}
			defer func() {
				if err := manager.Close(ctx); err != nil {
					logger.G(ctx).WithError(err).Warn("failed to close mcp clients")
				}
			}()
			opts = append(opts, agent.WithMCPManager(manager))
		}

		if !config.NoSave {
			store, err := history.NewDefaultStore(ctx)
			if err != nil {
				presenter.Warning(fmt.Sprintf("Run history disabled: %v", err))
			} else {
				defer store.Close()
				opts = append(opts, agent.WithHistoryStore(store))
			}
		}

		a := agent.NewAgent(llmConfig, loader, opts...)

		result, err := a.Run(ctx, agent.RunRequest{
			SkillID: skillID,
			Prompt:  prompt,
		})
		if err != nil {
			presenter.Error(err, "Agent run failed")
			os.Exit(1)
		}

		presenter.Separator()
		presenter.Stats(&presenter.UsageStats{
			InputTokens:      int64(result.Usage.InputTokens),
			OutputTokens:     int64(result.Usage.OutputTokens),
			CacheWriteTokens: int64(result.Usage.CacheCreationInputTokens),
			CacheReadTokens:  int64(result.Usage.CacheReadInputTokens),
		})
		if len(result.ActiveSkills) > 0 {
			presenter.Info(fmt.Sprintf("Skills used: %s", strings.Join(result.ActiveSkills, ", ")))
		}
		if result.RunID != "" {
			presenter.Info(fmt.Sprintf("Run recorded as %s", result.RunID))
		}
	},
}

func init() {
	defaults := NewRunConfig()
	runCmd.Flags().Bool("no-save", defaults.NoSave, "Do not record the run in history")
	runCmd.Flags().Bool("no-mcp", defaults.NoMCP, "Do not connect configured MCP servers")
}

// getRunConfigFromFlags extracts run configuration from command flags
func getRunConfigFromFlags(cmd *cobra.Command) *RunConfig {
	config := NewRunConfig()

	if noSave, err := cmd.Flags().GetBool("no-save"); err == nil {
		config.NoSave = noSave
	}
	if noMCP, err := cmd.Flags().GetBool("no-mcp"); err == nil {
		config.NoMCP = noMCP
	}

	return config
}
