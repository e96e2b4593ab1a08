package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/satchel-sh/satchel/pkg/presenter"
	"github.com/satchel-sh/satchel/pkg/skills"
)

// OutputFormat defines the format of the output
type OutputFormat int

const (
	// TableFormat renders a human-readable table
	TableFormat OutputFormat = iota
	// JSONFormat renders machine-readable JSON
	JSONFormat
)

// SkillRow is the listing projection of one catalog entry.
type SkillRow struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Resources   int      `json:"resources"`
}

// SkillListOutput holds catalog rows together with the requested format.
type SkillListOutput struct {
	Skills []SkillRow   `json:"skills"`
	Total  int          `json:"total"`
	Format OutputFormat `json:"-"`
}

// NewSkillListOutput projects discovered skills into listing rows.
func NewSkillListOutput(catalog []*skills.Skill, format OutputFormat) *SkillListOutput {
	rows := make([]SkillRow, 0, len(catalog))
	for _, skill := range catalog {
		rows = append(rows, SkillRow{
			ID:          skill.ID,
			Name:        skill.Name,
			Description: skill.Description,
			Category:    skill.Category,
			Tags:        skill.Tags,
			Resources:   skill.TotalResourceCount(),
		})
	}
	return &SkillListOutput{Skills: rows, Total: len(rows), Format: format}
}

// Render writes the output in the configured format.
func (o *SkillListOutput) Render(w io.Writer) error {
	if o.Format == JSONFormat {
		return o.renderJSON(w)
	}
	return o.renderTable(w)
}

func (o *SkillListOutput) renderJSON(w io.Writer) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal skills to JSON")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func (o *SkillListOutput) renderTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tName\tDescription\tTags\tResources")
	fmt.Fprintln(tw, "--\t----\t-----------\t----\t---------")

	for _, row := range o.Skills {
		// Truncate long descriptions
		description := row.Description
		if len(description) > 60 {
			description = strings.TrimSpace(description[:57]) + "..."
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
			row.ID,
			row.Name,
			description,
			strings.Join(row.Tags, ","),
			row.Resources,
		)
	}

	return tw.Flush()
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the skills in the catalog",
	Long: `List every skill package in the catalog with its metadata.

Discovery reads frontmatter and stats resource files only; instruction
bodies are not loaded.`,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		loader, err := newLoader()
		if err != nil {
			presenter.Error(err, "Failed to initialize skill loader")
			os.Exit(1)
		}

		catalog, err := loader.Discover(ctx)
		if err != nil {
			presenter.Error(err, "Failed to discover skills")
			os.Exit(1)
		}

		format := TableFormat
		if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil && jsonOutput {
			format = JSONFormat
		}

		if len(catalog) == 0 && format == TableFormat {
			presenter.Info(fmt.Sprintf("No skills found under %s", loader.BasePath()))
			return
		}

		output := NewSkillListOutput(catalog, format)
		if err := output.Render(os.Stdout); err != nil {
			presenter.Error(err, "Failed to render skill list")
			os.Exit(1)
		}
	},
}

func init() {
	listCmd.Flags().Bool("json", false, "Output in JSON format")
}
