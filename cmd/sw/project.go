package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/spectreweave/spectreweave/internal/schema"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a project",
	Long: `Create a project.

The --deadline flag accepts natural language as well as dates:
  sw project create "Winter Book" --deadline "next friday"
  sw project create "Winter Book" --deadline 2026-12-01`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fail("%v", err)
		}

		p := &schema.Project{
			ID:    uuid.New().String(),
			Title: args[0],
		}
		p.ProjectType, _ = cmd.Flags().GetString("type")
		p.TargetAge, _ = cmd.Flags().GetString("age")
		p.BookTheme, _ = cmd.Flags().GetString("theme")
		p.Description, _ = cmd.Flags().GetString("description")

		if raw, _ := cmd.Flags().GetString("deadline"); raw != "" {
			deadline, err := parseDeadline(raw)
			if err != nil {
				return fail("%v", err)
			}
			p.Deadline = &deadline
		}

		p.SetDefaults()
		if err := p.Validate(); err != nil {
			return fail("invalid project: %v", err)
		}

		ctx := context.Background()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return fail("%v", err)
		}
		defer st.Close()

		if err := st.CreateProject(ctx, owner, p); err != nil {
			return fail("failed to create project: %v", err)
		}

		fmt.Println(okStyle.Render("Created project ") + titleStyle.Render(p.Title))
		fmt.Println(dimStyle.Render("id: " + p.ID))
		if p.Deadline != nil {
			fmt.Println(dimStyle.Render("deadline: " + p.Deadline.Format("2006-01-02")))
		}
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fail("%v", err)
		}

		ctx := context.Background()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return fail("%v", err)
		}
		defer st.Close()

		projects, err := st.ListProjects(ctx, owner)
		if err != nil {
			return fail("failed to list projects: %v", err)
		}
		if len(projects) == 0 {
			fmt.Println(dimStyle.Render("No projects. Create one with 'sw init' or 'sw project create'."))
			return nil
		}

		for _, p := range projects {
			line := titleStyle.Render(p.Title) + dimStyle.Render(" ("+p.ProjectType+")")
			fmt.Println(line)
			fmt.Println(dimStyle.Render("  id: " + p.ID))
			if p.Deadline != nil {
				due := p.Deadline.Format("2006-01-02")
				if p.Deadline.Before(time.Now()) {
					fmt.Println("  " + errStyle.Render("deadline: "+due+" (overdue)"))
				} else {
					fmt.Println(dimStyle.Render("  deadline: " + due))
				}
			}
		}
		return nil
	},
}

// parseDeadline accepts plain dates and natural language ("next friday").
// Plain dates must be tried first: the natural-language rules match ISO
// dates too, but resolve them relative to the base time instead of the
// written date.
func parseDeadline(raw string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	if r, err := w.Parse(raw, time.Now()); err == nil && r != nil {
		return r.Time, nil
	}
	return time.Time{}, fmt.Errorf("could not parse deadline %q", raw)
}

func init() {
	projectCreateCmd.Flags().String("type", schema.ProjectTypeManuscript, "Project type (manuscript, picture_book, hybrid)")
	projectCreateCmd.Flags().String("age", "", "Target age range")
	projectCreateCmd.Flags().String("theme", "", "Book theme")
	projectCreateCmd.Flags().String("description", "", "Project description")
	projectCreateCmd.Flags().String("deadline", "", "Deadline (natural language or YYYY-MM-DD)")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	rootCmd.AddCommand(projectCmd)
}
