package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/spectreweave/spectreweave/internal/schema"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up a new project",
	Long: `Initialize the config directory and create a first project.

Running in a terminal opens an interactive form. In scripts, pass
--title (and optionally --type, --age, --theme) instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fail("%v", err)
		}

		title, _ := cmd.Flags().GetString("title")
		projectType, _ := cmd.Flags().GetString("type")
		targetAge, _ := cmd.Flags().GetString("age")
		theme, _ := cmd.Flags().GetString("theme")

		interactive := term.IsTerminal(int(os.Stdin.Fd())) && title == ""
		if interactive {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Project title").
						Value(&title).
						Validate(func(s string) error {
							if s == "" {
								return fmt.Errorf("title is required")
							}
							return nil
						}),
					huh.NewSelect[string]().
						Title("Project type").
						Options(
							huh.NewOption("Manuscript", schema.ProjectTypeManuscript),
							huh.NewOption("Picture book", schema.ProjectTypePictureBook),
							huh.NewOption("Hybrid", schema.ProjectTypeHybrid),
						).
						Value(&projectType),
					huh.NewInput().
						Title("Target age range").
						Placeholder("e.g. 4-8").
						Value(&targetAge),
					huh.NewInput().
						Title("Book theme").
						Placeholder("e.g. friendship in the forest").
						Value(&theme),
				),
			)
			if err := form.Run(); err != nil {
				return fail("init cancelled: %v", err)
			}
		}
		if title == "" {
			return fail("--title is required outside a terminal")
		}

		ctx := context.Background()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return fail("%v", err)
		}
		defer st.Close()

		p := &schema.Project{
			ID:          uuid.New().String(),
			Title:       title,
			ProjectType: projectType,
			TargetAge:   targetAge,
			BookTheme:   theme,
		}
		p.SetDefaults()
		if err := p.Validate(); err != nil {
			return fail("invalid project: %v", err)
		}
		if err := st.CreateProject(ctx, owner, p); err != nil {
			return fail("failed to create project: %v", err)
		}

		fmt.Println(okStyle.Render("Created project ") + titleStyle.Render(p.Title))
		fmt.Println(dimStyle.Render("id: " + p.ID))
		fmt.Println(dimStyle.Render("config: " + configDir))
		return nil
	},
}

func init() {
	initCmd.Flags().String("title", "", "Project title")
	initCmd.Flags().String("type", schema.ProjectTypeManuscript, "Project type (manuscript, picture_book, hybrid)")
	initCmd.Flags().String("age", "", "Target age range")
	initCmd.Flags().String("theme", "", "Book theme")

	rootCmd.AddCommand(initCmd)
}
