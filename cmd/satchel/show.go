package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/satchel-sh/satchel/pkg/draft"
	"github.com/satchel-sh/satchel/pkg/presenter"
	"github.com/satchel-sh/satchel/pkg/skills"
)

// ShowConfig holds configuration for the show command
type ShowConfig struct {
	Format  string
	Outline bool
}

// NewShowConfig creates a new ShowConfig with default values
func NewShowConfig() *ShowConfig {
	return &ShowConfig{
		Format: "text",
	}
}

var showCmd = &cobra.Command{
	Use:   "show <skill-id>",
	Short: "Show one skill at full disclosure",
	Long: `Load one skill and print its instructions and resource inventory.

Resource files are listed but their content is not read; use "satchel cat"
to print a single resource.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getShowConfigFromFlags(cmd)
		id := args[0]

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

		switch config.Format {
		case "json":
			data, err := json.MarshalIndent(newSkillDetail(skill), "", "  ")
			if err != nil {
				presenter.Error(err, "Failed to marshal skill to JSON")
				os.Exit(1)
			}
			fmt.Println(string(data))
		case "text":
			displaySkill(skill, config.Outline)
		default:
			presenter.Error(errors.Errorf("invalid format: %s (must be text or json)", config.Format), "Invalid format")
			os.Exit(1)
		}
	},
}

func init() {
	defaults := NewShowConfig()
	showCmd.Flags().String("format", defaults.Format, "Output format (text, json)")
	showCmd.Flags().Bool("outline", defaults.Outline, "Print the instruction heading outline instead of the full body")
}

// getShowConfigFromFlags extracts show configuration from command flags
func getShowConfigFromFlags(cmd *cobra.Command) *ShowConfig {
	config := NewShowConfig()

	if format, err := cmd.Flags().GetString("format"); err == nil {
		config.Format = format
	}
	if outline, err := cmd.Flags().GetBool("outline"); err == nil {
		config.Outline = outline
	}

	return config
}

// SkillResourceRow is the JSON projection of one bundled resource.
type SkillResourceRow struct {
	Path         string    `json:"path"`
	Type         string    `json:"type"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// SkillDetail is the JSON projection of a fully loaded skill.
type SkillDetail struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Description  string             `json:"description"`
	Instructions string             `json:"instructions"`
	Version      string             `json:"version,omitempty"`
	Author       string             `json:"author,omitempty"`
	Category     string             `json:"category,omitempty"`
	Tags         []string           `json:"tags,omitempty"`
	Location     string             `json:"location"`
	LastModified time.Time          `json:"lastModified"`
	Resources    []SkillResourceRow `json:"resources,omitempty"`
}

func newSkillDetail(skill *skills.Skill) *SkillDetail {
	detail := &SkillDetail{
		ID:           skill.ID,
		Name:         skill.Name,
		Description:  skill.Description,
		Instructions: skill.Instructions,
		Version:      skill.Version,
		Author:       skill.Author,
		Category:     skill.Category,
		Tags:         skill.Tags,
		Location:     skill.BaseDirectory,
		LastModified: skill.LastModified,
	}
	for _, res := range skill.AllResources() {
		detail.Resources = append(detail.Resources, SkillResourceRow{
			Path:         res.RelativePath,
			Type:         string(res.Type),
			Size:         res.FileSize,
			LastModified: res.LastModified,
		})
	}
	return detail
}

// displaySkill renders the skill in a readable text format.
func displaySkill(skill *skills.Skill, outline bool) {
	presenter.Section(skill.Name)
	fmt.Printf("ID: %s\n", skill.ID)
	if skill.Version != "" {
		fmt.Printf("Version: %s\n", skill.Version)
	}
	if skill.Author != "" {
		fmt.Printf("Author: %s\n", skill.Author)
	}
	if skill.Category != "" {
		fmt.Printf("Category: %s\n", skill.Category)
	}
	if len(skill.Tags) > 0 {
		fmt.Printf("Tags: %s\n", strings.Join(skill.Tags, ", "))
	}
	fmt.Printf("Description: %s\n", skill.Description)
	fmt.Printf("Location: %s\n", skill.BaseDirectory)

	if outline {
		presenter.Section("Outline")
		headings := draft.Outline(skill.Instructions, 0)
		if headings == "" {
			presenter.Info("No headings found in the instructions")
		} else {
			fmt.Print(headings)
		}
	} else {
		presenter.Section("Instructions")
		fmt.Println(strings.TrimSpace(skill.Instructions))
	}

	resources := skill.AllResources()
	if len(resources) == 0 {
		return
	}

	presenter.Section("Resources")
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Path\tType\tSize")
	fmt.Fprintln(tw, "----\t----\t----")
	for _, res := range resources {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", res.RelativePath, res.Type, res.FileSize)
	}
	tw.Flush()
}
