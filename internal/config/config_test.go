package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".spectreweave")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "spectreweave.yaml")); err != nil {
		t.Errorf("Expected default config file to be written: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Errorf("Expected default listen addr :8080, got %q", cfg.ListenAddr)
	}
	if cfg.DatabaseDSN == "" {
		t.Error("Expected default database DSN")
	}
	if cfg.AgentSeedFile != "agents.toml" {
		t.Errorf("Expected default seed file, got %q", cfg.AgentSeedFile)
	}
}

func TestLoadPreservesExistingConfig(t *testing.T) {
	dir := t.TempDir()
	custom := "listen_addr: \":9999\"\ndatabase_dsn: custom.db\n"
	if err := os.WriteFile(filepath.Join(dir, "spectreweave.yaml"), []byte(custom), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Errorf("Expected :9999 from file, got %q", cfg.ListenAddr)
	}
	if cfg.DatabaseDSN != "custom.db" {
		t.Errorf("Expected custom.db from file, got %q", cfg.DatabaseDSN)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("SW_LISTEN_ADDR", ":7777")
	t.Setenv("SW_DATABASE_DSN", "libsql://studio.turso.io")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ListenAddr != ":7777" {
		t.Errorf("Expected env override :7777, got %q", cfg.ListenAddr)
	}
	if cfg.DatabaseDSN != "libsql://studio.turso.io" {
		t.Errorf("Expected env override DSN, got %q", cfg.DatabaseDSN)
	}
}

func TestEnvOverridesKeysAbsentFromFile(t *testing.T) {
	// Keys with empty defaults and no config file entry must still pick up
	// their SW_ overrides.
	t.Setenv("SW_BACKEND_ORIGIN", "https://engine.example.com")
	t.Setenv("SW_SERVICE_JWT", "jwt-abc")
	t.Setenv("SW_DRAFTS_DIR", "drafts")
	t.Setenv("SW_NEO4J_URL", "http://localhost:7474")
	t.Setenv("SW_LOG_FILE", "sw.log")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.BackendOrigin != "https://engine.example.com" {
		t.Errorf("SW_BACKEND_ORIGIN ignored: got %q", cfg.BackendOrigin)
	}
	if cfg.ServiceJWT != "jwt-abc" {
		t.Errorf("SW_SERVICE_JWT ignored: got %q", cfg.ServiceJWT)
	}
	if cfg.DraftsDir != "drafts" {
		t.Errorf("SW_DRAFTS_DIR ignored: got %q", cfg.DraftsDir)
	}
	if cfg.Neo4jURL != "http://localhost:7474" {
		t.Errorf("SW_NEO4J_URL ignored: got %q", cfg.Neo4jURL)
	}
	if cfg.LogFile != "sw.log" {
		t.Errorf("SW_LOG_FILE ignored: got %q", cfg.LogFile)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{ListenAddr: ":8080", DatabaseDSN: "x.db"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	cfg.ListenAddr = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for empty listen addr")
	}

	cfg = &Config{ListenAddr: ":8080", DatabaseDSN: "x.db", LogMaxSizeMB: -1}
	if err := cfg.Validate(); err == nil {
		t.Error("Expected error for negative log size")
	}
}

func TestLoadAgentSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.toml")
	seeds := `
[[agent]]
name = "Outliner"
role = "outliner"
model = "claude-sonnet-4-5-20250929"
system_prompt = "You outline children's books."
temperature = 0.4

[[agent]]
name = "Drafter"
role = "drafter"
`
	if err := os.WriteFile(path, []byte(seeds), 0o644); err != nil {
		t.Fatalf("Failed to write seed file: %v", err)
	}

	agents, err := LoadAgentSeeds(path)
	if err != nil {
		t.Fatalf("LoadAgentSeeds failed: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("Expected 2 agents, got %d", len(agents))
	}
	if agents[0].Name != "Outliner" || agents[0].Temperature != 0.4 {
		t.Errorf("Unexpected first agent: %+v", agents[0])
	}
	if agents[0].ID == "" {
		t.Error("Expected generated agent id")
	}
	if !agents[1].Enabled {
		t.Error("Seeded agents should be enabled")
	}
}

func TestLoadAgentSeedsMissingFile(t *testing.T) {
	agents, err := LoadAgentSeeds(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Missing seed file should not error: %v", err)
	}
	if agents != nil {
		t.Errorf("Expected nil agents, got %v", agents)
	}
}

func TestLoadAgentSeedsRejectsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.toml")
	if err := os.WriteFile(path, []byte("[[agent]]\nname = \"NoRole\"\n"), 0o644); err != nil {
		t.Fatalf("Failed to write seed file: %v", err)
	}

	if _, err := LoadAgentSeeds(path); err == nil {
		t.Error("Expected error for agent without role")
	}
}
