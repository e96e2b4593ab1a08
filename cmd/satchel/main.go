package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/satchel-sh/satchel/pkg/logger"
	"github.com/satchel-sh/satchel/pkg/skills"
)

func init() {
	// Initialize Viper configuration
	viper.SetEnvPrefix("SATCHEL")
	viper.AutomaticEnv()

	// Set default config file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME/.satchel")
	viper.AddConfigPath(".")

	// Read the config file if it exists
	_ = viper.ReadInConfig()
}

var rootCmd = &cobra.Command{
	Use:   "satchel",
	Short: "Progressive disclosure for agent skill packages",
	Long: `Satchel manages a catalog of agent skill packages: directories with a
SKILL.md definition plus bundled templates, references, scripts and assets.

Skills are disclosed progressively. Listing reads frontmatter only, showing
a skill loads its full instructions, and resource content is read one file
at a time. The same catalog can be handed to a model directly (run), served
to other agents over MCP stdio (serve), or browsed over a read-only REST
API (serve --http).`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if level, err := cmd.Flags().GetString("log-level"); err == nil && level != "" {
			if err := logger.SetLogLevel(level); err != nil {
				return fmt.Errorf("invalid log level %q: %w", level, err)
			}
		}
		if format, err := cmd.Flags().GetString("log-format"); err == nil && format != "" {
			logger.SetLogFormat(format)
		}
		return nil
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (json, text, fmt)")
	rootCmd.PersistentFlags().String("skills-dir", "", "Directory containing skill packages (overrides config)")
	rootCmd.PersistentFlags().Duration("cache-duration", 0, "How long discovered catalog entries stay cached (overrides config)")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider to use (anthropic or openai)")
	rootCmd.PersistentFlags().String("model", "", "LLM model to use (overrides config)")
	rootCmd.PersistentFlags().Int("max-tokens", 0, "Maximum tokens for response (overrides config)")

	viper.BindPFlag("skills.dir", rootCmd.PersistentFlags().Lookup("skills-dir"))
	viper.BindPFlag("skills.cache_duration", rootCmd.PersistentFlags().Lookup("cache-duration"))
	viper.BindPFlag("provider", rootCmd.PersistentFlags().Lookup("provider"))
	viper.BindPFlag("model", rootCmd.PersistentFlags().Lookup("model"))
	viper.BindPFlag("max_tokens", rootCmd.PersistentFlags().Lookup("max-tokens"))

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}

// newLoader builds the skill loader shared by the catalog commands,
// honoring the skills.* configuration keys.
func newLoader() (*skills.Loader, error) {
	var opts []skills.Option
	if dir := viper.GetString("skills.dir"); dir != "" {
		opts = append(opts, skills.WithBasePath(dir))
	}
	if d := viper.GetDuration("skills.cache_duration"); d > 0 {
		opts = append(opts, skills.WithCacheDuration(d))
	}
	if name := viper.GetString("skills.file_name"); name != "" {
		opts = append(opts, skills.WithSkillFileName(name))
	}
	return skills.NewLoader(opts...)
}

// loadAllowlist compiles the skills.allowed patterns. An empty list
// permits every skill.
func loadAllowlist() (skills.Allowlist, error) {
	return skills.CompileAllowlist(viper.GetStringSlice("skills.allowed"))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
