package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spectreweave/spectreweave/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Export a project bundle",
	Long: `Export a project and its content as a JSONL bundle.

The bundle includes the project, chapters, characters, pages, and the
owner's agents and pipelines.

Example usage:
  sw export 4f1c... -o fox.jsonl
  sw export 4f1c...               # Writes to stdout`,
	Args: cobra.ExactArgs(1),
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

		out := os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return fail("failed to create output file: %v", err)
			}
			defer f.Close()
			out = f
		}

		result, err := export.Export(ctx, st, owner, args[0], out)
		if err != nil {
			return fail("export failed: %v", err)
		}

		fmt.Fprintln(os.Stderr, okStyle.Render(fmt.Sprintf("Exported %d records", result.Total())))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <bundle-file>",
	Short: "Import a project bundle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fail("%v", err)
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fail("failed to open bundle: %v", err)
		}
		defer f.Close()

		ctx := context.Background()
		st, err := openStore(ctx, cfg)
		if err != nil {
			return fail("%v", err)
		}
		defer st.Close()

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		result, err := export.Import(ctx, st, owner, f, dryRun)
		if err != nil {
			return fail("import failed: %v", err)
		}

		if dryRun {
			fmt.Println(okStyle.Render(fmt.Sprintf("Bundle OK: %d records", result.Total())))
		} else {
			fmt.Println(okStyle.Render(fmt.Sprintf("Imported %d records", result.Total())))
		}
		for _, msg := range result.Errors {
			fmt.Println(warnStyle.Render("  skipped: ") + msg)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	importCmd.Flags().Bool("dry-run", false, "Validate the bundle without writing anything")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
