package model

import (
	"path/filepath"
	"time"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/types"
)

// Defaults applied by AgentConfig.Normalize
const (
	DefaultAgentModel   = "gemini-2.0-flash"
	DefaultTemperature  = 0.2
	DefaultMemoryWindow = 50
)

// AgentConfig is the per-thread configuration handed to the agent factory
type AgentConfig struct {
	ThreadID          types.ThreadID
	UserID            types.UserID
	DataDir           string
	Model             string
	Temperature       float64
	MemoryWindow      int
	SelectedDocuments []types.DocumentID
}

// Normalize fills zero-valued fields with defaults. DataDir gets a
// per-thread subdirectory under baseDir so concurrent sessions never
// share scratch space.
func (c *AgentConfig) Normalize(baseDir string) {
	if c.Model == "" {
		c.Model = DefaultAgentModel
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MemoryWindow <= 0 {
		c.MemoryWindow = DefaultMemoryWindow
	}
	if c.DataDir == "" && baseDir != "" {
		c.DataDir = filepath.Join(baseDir, c.ThreadID.String())
	}
}

// AgentReply is the structured result of one agent turn
type AgentReply struct {
	Answer        string         `json:"answer"`
	Type          string         `json:"response_type"`
	Confidence    float64        `json:"confidence"`
	Sources       []string       `json:"sources"`
	Visualization map[string]any `json:"visualization"`
}

// PoolStats reports the session pool occupancy
type PoolStats struct {
	ActiveSessions int
	Capacity       int
	IdleTimeout    time.Duration
}
