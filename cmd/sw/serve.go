package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spectreweave/spectreweave/internal/backend"
	"github.com/spectreweave/spectreweave/internal/config"
	"github.com/spectreweave/spectreweave/internal/draftsync"
	"github.com/spectreweave/spectreweave/internal/server"
	"github.com/spectreweave/spectreweave/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the SpectreWeave API server.

The server exposes project, chapter, character, page, agent, and
pipeline CRUD, pipeline validation, AI proxy routes, and a WebSocket
event stream at /ws.

With drafts_dir configured, a sync daemon watches the drafts directory
and mirrors chapter and character files into the database.

Example usage:
  sw serve                       # Use config from .spectreweave/
  sw serve --listen :9000        # Override the listen address`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fail("%v", err)
		}
		if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
			cfg.ListenAddr = listen
		}

		logger := cfg.NewLogger("[sw] ")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return fail("%v", err)
		}
		defer st.Close()

		if err := seedAgents(ctx, cfg, st, logger); err != nil {
			return fail("%v", err)
		}

		engine := backend.New(backend.Config{
			Origin:          cfg.BackendOrigin,
			AnthropicAPIKey: cfg.AnthropicAPIKey,
			Timeout:         cfg.BackendTimeout,
			Logger:          logger,
		})

		srv := server.NewServer(&server.Config{
			Addr:       cfg.ListenAddr,
			Store:      st,
			Backend:    engine,
			ServiceJWT: cfg.ServiceJWT,
			Neo4jURL:   cfg.Neo4jURL,
			Logger:     logger,
		})
		if err := srv.Start(); err != nil {
			return fail("failed to start server: %v", err)
		}

		fmt.Println(okStyle.Render("Server listening on ") + srv.Addr())
		fmt.Println(dimStyle.Render("WebSocket endpoint: ws://" + srv.Addr() + "/ws"))
		fmt.Println(dimStyle.Render("Press Ctrl+C to stop..."))

		daemonDone := make(chan error, 1)
		if cfg.DraftsDir != "" {
			daemon, err := draftsync.New(st, cfg.DraftsDir, srv.Hub(), &draftsync.Config{
				DebounceInterval:     draftsync.DefaultConfig().DebounceInterval,
				StatsRefreshInterval: draftsync.DefaultConfig().StatsRefreshInterval,
				Logger:               logger,
			})
			if err != nil {
				_ = srv.Stop()
				return fail("failed to create drafts sync: %v", err)
			}
			go func() { daemonDone <- daemon.Start(ctx) }()
		} else {
			daemonDone <- nil
		}

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := srv.Stop(); err != nil {
			return fail("shutdown error: %v", err)
		}
		if err := <-daemonDone; err != nil {
			return fail("drafts sync error: %v", err)
		}

		fmt.Println(okStyle.Render("Server stopped"))
		return nil
	},
}

// seedAgents loads the agent seed file when the owner has no agents yet.
func seedAgents(ctx context.Context, cfg *config.Config, st *store.Store, logger *log.Logger) error {
	count, err := st.CountAgents(ctx, owner)
	if err != nil {
		return fmt.Errorf("failed to count agents: %w", err)
	}
	if count > 0 {
		return nil
	}

	agents, err := config.LoadAgentSeeds(cfg.AgentSeedFile)
	if err != nil {
		return fmt.Errorf("failed to load agent seeds: %w", err)
	}
	for _, a := range agents {
		if err := st.CreateAgent(ctx, owner, a); err != nil {
			return fmt.Errorf("failed to seed agent %s: %w", a.Name, err)
		}
	}
	if len(agents) > 0 {
		logger.Printf("Seeded %d agents from %s", len(agents), cfg.AgentSeedFile)
	}
	return nil
}

func init() {
	serveCmd.Flags().String("listen", "", "Listen address (overrides config)")

	rootCmd.AddCommand(serveCmd)
}
