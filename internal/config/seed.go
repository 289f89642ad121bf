package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"

	"github.com/spectreweave/spectreweave/internal/schema"
)

// agentSeedFile is the TOML shape of an agent seed file:
//
//	[[agent]]
//	name = "Outliner"
//	role = "outliner"
//	model = "claude-sonnet-4-5-20250929"
//	system_prompt = "You outline children's books."
//	temperature = 0.4
type agentSeedFile struct {
	Agents []agentSeed `toml:"agent"`
}

type agentSeed struct {
	Name         string  `toml:"name"`
	Role         string  `toml:"role"`
	Model        string  `toml:"model"`
	SystemPrompt string  `toml:"system_prompt"`
	Temperature  float64 `toml:"temperature"`
}

// LoadAgentSeeds parses an agents.toml seed file into ready-to-insert
// agents. A missing file returns an empty slice, not an error: seeding is
// optional.
func LoadAgentSeeds(path string) ([]*schema.Agent, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	var seeds agentSeedFile
	if _, err := toml.DecodeFile(path, &seeds); err != nil {
		return nil, fmt.Errorf("failed to parse agent seed file %s: %w", path, err)
	}

	now := time.Now()
	agents := make([]*schema.Agent, 0, len(seeds.Agents))
	for i, s := range seeds.Agents {
		if s.Name == "" || s.Role == "" {
			return nil, fmt.Errorf("agent seed %d: name and role are required", i)
		}
		a := &schema.Agent{
			ID:           uuid.New().String(),
			Name:         s.Name,
			Role:         s.Role,
			Model:        s.Model,
			SystemPrompt: s.SystemPrompt,
			Temperature:  s.Temperature,
			Enabled:      true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		a.SetDefaults()
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("agent seed %d (%s): %w", i, s.Name, err)
		}
		agents = append(agents, a)
	}
	return agents, nil
}
