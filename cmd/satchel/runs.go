package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/satchel-sh/satchel/pkg/draft"
	"github.com/satchel-sh/satchel/pkg/history"
	"github.com/satchel-sh/satchel/pkg/presenter"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Manage recorded agent runs",
	Long:  `List, inspect and delete agent runs recorded in the local history store.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		store, err := history.NewDefaultStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open run history")
			os.Exit(1)
		}
		defer store.Close()

		skillID, _ := cmd.Flags().GetString("skill")

		var summaries []history.Summary
		if skillID != "" {
			summaries, err = store.ListBySkill(ctx, skillID)
		} else {
			summaries, err = store.List(ctx)
		}
		if err != nil {
			presenter.Error(err, "Failed to list runs")
			os.Exit(1)
		}

		format := TableFormat
		if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil && jsonOutput {
			format = JSONFormat
		}

		if len(summaries) == 0 && format == TableFormat {
			presenter.Info("No recorded runs")
			return
		}

		output := &RunListOutput{Runs: summaries, Format: format}
		if err := output.Render(os.Stdout); err != nil {
			presenter.Error(err, "Failed to render run list")
			os.Exit(1)
		}
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		id := args[0]

		store, err := history.NewDefaultStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open run history")
			os.Exit(1)
		}
		defer store.Close()

		run, err := store.Get(ctx, id)
		if err != nil {
			presenter.Error(err, "Failed to load run")
			os.Exit(1)
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			data, err := json.MarshalIndent(run, "", "  ")
			if err != nil {
				presenter.Error(err, "Failed to marshal run to JSON")
				os.Exit(1)
			}
			fmt.Println(string(data))
		case "text":
			displayRun(run)
		default:
			presenter.Error(errors.Errorf("invalid format: %s (must be text or json)", format), "Invalid format")
			os.Exit(1)
		}
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a recorded run",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		id := args[0]

		store, err := history.NewDefaultStore(ctx)
		if err != nil {
			presenter.Error(err, "Failed to open run history")
			os.Exit(1)
		}
		defer store.Close()

		if err := store.Delete(ctx, id); err != nil {
			presenter.Error(err, "Failed to delete run")
			os.Exit(1)
		}

		presenter.Success(fmt.Sprintf("Deleted run %s", id))
	},
}

func init() {
	runsListCmd.Flags().Bool("json", false, "Output in JSON format")
	runsListCmd.Flags().String("skill", "", "Only list runs that preloaded this skill")
	runsShowCmd.Flags().String("format", "text", "Output format (text, json)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}

// RunListOutput holds run summaries together with the requested format.
type RunListOutput struct {
	Runs   []history.Summary `json:"runs"`
	Format OutputFormat      `json:"-"`
}

// Render writes the output in the configured format.
func (o *RunListOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderTable(w)
}

func (o *RunListOutput) renderJSON(w io.Writer) error {
	data, err := json.MarshalIndent(o.Runs, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal runs to JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func (o *RunListOutput) renderTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tSkill\tModel\tCreated\tMessages\tPrompt")
	fmt.Fprintln(tw, "--\t-----\t-----\t-------\t--------\t------")

	for _, summary := range o.Runs {
		created := summary.CreatedAt.Format(time.RFC3339)
		prompt := draft.Headline(summary.Prompt, draft.HeadlineOptions{MaxWidth: 60})

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			summary.ID,
			summary.SkillID,
			summary.Model,
			created,
			summary.MessageCount,
			prompt,
		)
	}

	return tw.Flush()
}

// displayRun renders the transcript in a readable text format.
func displayRun(run history.Run) {
	presenter.Section(fmt.Sprintf("Run %s", run.ID))
	if run.SkillID != "" {
		fmt.Printf("Skill: %s\n", run.SkillID)
	}
	fmt.Printf("Provider: %s\n", run.Provider)
	fmt.Printf("Model: %s\n", run.Model)
	fmt.Printf("Created: %s\n", run.CreatedAt.Format(time.RFC3339))

	for _, msg := range run.Messages {
		presenter.Separator()

		roleLabel := ""
		switch msg.Role {
		case "user":
			roleLabel = "You"
		case "assistant":
			roleLabel = "Assistant"
		default:
			if len(msg.Role) > 0 {
				roleLabel = strings.ToUpper(msg.Role[:1]) + msg.Role[1:]
			}
		}

		presenter.Section(roleLabel)
		fmt.Printf("%s\n", msg.Content)
	}

	presenter.Separator()
	presenter.Stats(&presenter.UsageStats{
		InputTokens:      int64(run.Usage.InputTokens),
		OutputTokens:     int64(run.Usage.OutputTokens),
		CacheWriteTokens: int64(run.Usage.CacheCreationInputTokens),
		CacheReadTokens:  int64(run.Usage.CacheReadInputTokens),
	})
}
