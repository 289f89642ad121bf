package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/spectreweave/spectreweave/internal/pipeline"
	"github.com/spectreweave/spectreweave/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate <pipeline-file>",
	Short: "Validate a pipeline definition",
	Long: `Validate a pipeline file and print its staged execution plan.

The file may be YAML or JSON. Structural problems (missing ids,
duplicate steps) fail validation; graph anomalies (cycles, dangling
edges) are reported as issues alongside the stages that could still be
ordered.

Example usage:
  sw validate pipeline.yaml
  sw validate pipeline.yaml --check-agents   # Verify agent ids against the database
  sw validate pipeline.yaml --strict         # Exit non-zero when issues are found`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fail("failed to read pipeline file: %v", err)
		}

		var p schema.Pipeline
		if err := yaml.Unmarshal(data, &p); err != nil {
			return fail("failed to parse pipeline file: %v", err)
		}
		if p.ID == "" {
			p.ID = "file"
		}
		p.SetDefaults()
		if err := p.Validate(); err != nil {
			return fail("invalid pipeline: %v", err)
		}

		var knownAgents map[string]bool
		if check, _ := cmd.Flags().GetBool("check-agents"); check {
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

			knownAgents, err = st.AgentIDs(ctx, owner)
			if err != nil {
				return fail("failed to load agents: %v", err)
			}
		}

		report := pipeline.Validate(&p, knownAgents)
		printReport(&p, report)

		if strict, _ := cmd.Flags().GetBool("strict"); strict && len(report.Issues) > 0 {
			return fmt.Errorf("%d validation issues", len(report.Issues))
		}
		return nil
	},
}

func printReport(p *schema.Pipeline, report *pipeline.Report) {
	fmt.Println(titleStyle.Render(p.Name))
	fmt.Println(dimStyle.Render(report.Summary))
	fmt.Println()

	for _, stage := range report.Stages {
		fmt.Printf("%s\n", okStyle.Render(fmt.Sprintf("Stage %d", stage.Index)))
		for _, step := range stage.Steps {
			line := fmt.Sprintf("  %s (%s)", step.ID, step.Role)
			if step.AgentID != "" {
				line += dimStyle.Render(" agent=" + step.AgentID)
			}
			fmt.Println(line)
		}
	}

	if len(report.Issues) > 0 {
		fmt.Println()
		fmt.Println(warnStyle.Render(fmt.Sprintf("%d issues:", len(report.Issues))))
		for _, issue := range report.Issues {
			fmt.Println("  " + warnStyle.Render("! ") + issue)
		}
	}
}

func init() {
	validateCmd.Flags().Bool("check-agents", false, "Verify agent references against the database")
	validateCmd.Flags().Bool("strict", false, "Exit non-zero when issues are found")

	rootCmd.AddCommand(validateCmd)
}
