package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/satchel-sh/satchel/pkg/draft"
	"github.com/satchel-sh/satchel/pkg/presenter"
)

// CatConfig holds configuration for the cat command
type CatConfig struct {
	Render bool
	Vars   []string
}

// NewCatConfig creates a new CatConfig with default values
func NewCatConfig() *CatConfig {
	return &CatConfig{}
}

var catCmd = &cobra.Command{
	Use:   "cat <skill-id> <resource-path>",
	Short: "Print the content of a skill resource",
	Long: `Print the raw content of one bundled resource file to stdout.

The resource path is relative to the skill directory, for example
templates/report.md or scripts/validate.sh.

With --render the resource is treated as a document template: its YAML
frontmatter supplies default variable values, --var overrides them, and
the rendered body is printed instead of the raw file.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getCatConfigFromFlags(cmd)
		id, path := args[0], args[1]

		loader, err := newLoader()
		if err != nil {
			presenter.Error(err, "Failed to initialize skill loader")
			os.Exit(1)
		}

		skill, err := loader.Load(ctx, id)
		if err != nil {
			presenter.Error(err, "Failed to load skill")
			os.Exit(1)
		}
		if skill == nil {
			presenter.Error(errors.Errorf("no skill with id %q under %s", id, loader.BasePath()), "Skill not found")
			os.Exit(1)
		}

		res, found := skill.FindResource(path)
		if !found {
			presenter.Error(errors.Errorf("skill %q has no resource %q", id, path), "Resource not found")
			os.Exit(1)
		}

		content, ok, err := loader.LoadResourceContent(ctx, res)
		if err != nil {
			presenter.Error(err, "Failed to read resource")
			os.Exit(1)
		}
		if !ok {
			presenter.Error(errors.Errorf("resource file is missing on disk: %s", res.FilePath), "Resource not found")
			os.Exit(1)
		}

		if config.Render {
			vars, err := parseTemplateVars(config.Vars)
			if err != nil {
				presenter.Error(err, "Invalid template variable")
				os.Exit(1)
			}
			rendered, err := draft.RenderTemplate(content, vars)
			if err != nil {
				presenter.Error(err, "Failed to render template")
				os.Exit(1)
			}
			fmt.Print(rendered)
			return
		}

		fmt.Print(content)
	},
}

func init() {
	defaults := NewCatConfig()
	catCmd.Flags().Bool("render", defaults.Render, "Render the resource as a document template")
	catCmd.Flags().StringArray("var", defaults.Vars, "Template variable as key=value, repeatable (implies --render)")
}

// getCatConfigFromFlags extracts cat configuration from command flags
func getCatConfigFromFlags(cmd *cobra.Command) *CatConfig {
	config := NewCatConfig()

	if render, err := cmd.Flags().GetBool("render"); err == nil {
		config.Render = render
	}
	if vars, err := cmd.Flags().GetStringArray("var"); err == nil {
		config.Vars = vars
	}
	if len(config.Vars) > 0 {
		config.Render = true
	}

	return config
}

// parseTemplateVars turns repeated key=value flags into a template data map.
func parseTemplateVars(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	vars := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, errors.Errorf("expected key=value, got %q", pair)
		}
		vars[key] = value
	}
	return vars, nil
}
