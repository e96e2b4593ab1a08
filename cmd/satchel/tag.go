package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/satchel-sh/satchel/pkg/presenter"
)

var tagCmd = &cobra.Command{
	Use:   "tag <tag>",
	Short: "List the skills carrying a tag",
	Long: `List every skill whose frontmatter tags include the given tag.

Matching is case-insensitive, so "tag WRITING" and "tag writing" return
the same skills.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		tag := args[0]

		loader, err := newLoader()
		if err != nil {
			presenter.Error(err, "Failed to initialize skill loader")
			os.Exit(1)
		}

		matches, err := loader.FindSkillsByTag(ctx, tag)
		if err != nil {
			presenter.Error(err, "Failed to search the catalog")
			os.Exit(1)
		}

		format := TableFormat
		if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil && jsonOutput {
			format = JSONFormat
		}

		if len(matches) == 0 && format == TableFormat {
			presenter.Info(fmt.Sprintf("No skills tagged %q", tag))
			return
		}

		output := NewSkillListOutput(matches, format)
		if err := output.Render(os.Stdout); err != nil {
			presenter.Error(err, "Failed to render skill list")
			os.Exit(1)
		}
	},
}

func init() {
	tagCmd.Flags().Bool("json", false, "Output in JSON format")
}
