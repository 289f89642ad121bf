package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/spectreweave/spectreweave/internal/config"
	"github.com/spectreweave/spectreweave/internal/store"
)

// version is set via -ldflags at release time.
var version = "dev"

var (
	configDir string
	owner     string
)

// Output styles. The profile is detected once so piped output degrades
// to plain text.
var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

var rootCmd = &cobra.Command{
	Use:   "sw",
	Short: "SpectreWeave writing studio",
	Long: `sw manages SpectreWeave projects: a dual-surface studio for
manuscripts and picture books with agent pipelines for AI-assisted
drafting.

Run 'sw serve' to start the API server, or 'sw init' to set up a new
project interactively.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	lipgloss.SetColorProfile(termenv.ColorProfile())

	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", config.DefaultConfigDir(), "Config directory")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", "local", "Owner subject for direct database access")
}

// loadConfig reads the resolved configuration for the chosen config dir.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStore opens the configured database and ensures its schema.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.InitSchema(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return st, nil
}

func fail(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	fmt.Fprintln(os.Stderr, errStyle.Render("Error: ")+err.Error())
	return err
}
