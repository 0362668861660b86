package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/domain/model"
)

// Agent holds CLI flags for the agent session pool and memory window.
// Model defaults can additionally come from a TOML file; explicit flags
// win over the file.
type Agent struct {
	configPath       string
	dataDir          string
	model            string
	temperature      float64
	memoryWindow     int
	maxSessions      int
	idleTimeoutMin   int
	sweepIntervalMin int
	sweepBackoffMin  int
	cacheTTLMin      int
}

// AgentSettings is the resolved agent configuration
type AgentSettings struct {
	DataDir       string
	Model         string
	Temperature   float64
	MemoryWindow  int
	MaxSessions   int
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	SweepBackoff  time.Duration
	CacheTTL      time.Duration
}

// agentFileConfig is the TOML representation of agent model defaults
type agentFileConfig struct {
	Model        string  `toml:"model"`
	Temperature  float64 `toml:"temperature"`
	MemoryWindow int     `toml:"memory_window"`
}

// Flags returns CLI flags for agent configuration
func (a *Agent) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "agent-config",
			Usage:       "TOML file with agent model defaults",
			Sources:     cli.EnvVars("QUOKKA_AGENT_CONFIG"),
			Destination: &a.configPath,
		},
		&cli.StringFlag{
			Name:        "agent-data-dir",
			Usage:       "Directory for per-thread document staging",
			Value:       "./data",
			Sources:     cli.EnvVars("QUOKKA_AGENT_DATA_DIR"),
			Destination: &a.dataDir,
		},
		&cli.StringFlag{
			Name:        "agent-model",
			Usage:       "Model name for agent sessions",
			Sources:     cli.EnvVars("QUOKKA_AGENT_MODEL"),
			Destination: &a.model,
		},
		&cli.FloatFlag{
			Name:        "agent-temperature",
			Usage:       "Sampling temperature for agent sessions",
			Sources:     cli.EnvVars("QUOKKA_AGENT_TEMPERATURE"),
			Destination: &a.temperature,
		},
		&cli.IntFlag{
			Name:        "memory-window",
			Usage:       "Maximum messages kept per thread memory",
			Value:       model.DefaultMemoryWindow,
			Sources:     cli.EnvVars("QUOKKA_MEMORY_WINDOW"),
			Destination: &a.memoryWindow,
		},
		&cli.IntFlag{
			Name:        "max-sessions",
			Usage:       "Maximum concurrently resident agent sessions",
			Value:       10,
			Sources:     cli.EnvVars("QUOKKA_MAX_SESSIONS"),
			Destination: &a.maxSessions,
		},
		&cli.IntFlag{
			Name:        "idle-timeout-min",
			Usage:       "Minutes of inactivity before a session is evicted",
			Value:       60,
			Sources:     cli.EnvVars("QUOKKA_IDLE_TIMEOUT_MIN"),
			Destination: &a.idleTimeoutMin,
		},
		&cli.IntFlag{
			Name:        "sweep-interval-min",
			Usage:       "Minutes between idle session sweeps",
			Value:       5,
			Sources:     cli.EnvVars("QUOKKA_SWEEP_INTERVAL_MIN"),
			Destination: &a.sweepIntervalMin,
		},
		&cli.IntFlag{
			Name:        "sweep-backoff-min",
			Usage:       "Minutes to wait before retrying a failed sweep",
			Value:       1,
			Sources:     cli.EnvVars("QUOKKA_SWEEP_BACKOFF_MIN"),
			Destination: &a.sweepBackoffMin,
		},
		&cli.IntFlag{
			Name:        "memory-cache-ttl-min",
			Usage:       "Minutes a cached memory snapshot stays valid",
			Value:       30,
			Sources:     cli.EnvVars("QUOKKA_MEMORY_CACHE_TTL_MIN"),
			Destination: &a.cacheTTLMin,
		},
	}
}

// LogValue implements slog.LogValuer
func (a Agent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("model", a.model),
		slog.Int("memory_window", a.memoryWindow),
		slog.Int("max_sessions", a.maxSessions),
		slog.Int("idle_timeout_min", a.idleTimeoutMin),
	)
}

// Configure resolves the agent settings: TOML file defaults first, then
// explicit flags on top.
func (a *Agent) Configure() (*AgentSettings, error) {
	settings := &AgentSettings{
		DataDir:       a.dataDir,
		Model:         a.model,
		Temperature:   a.temperature,
		MemoryWindow:  a.memoryWindow,
		MaxSessions:   a.maxSessions,
		IdleTimeout:   time.Duration(a.idleTimeoutMin) * time.Minute,
		SweepInterval: time.Duration(a.sweepIntervalMin) * time.Minute,
		SweepBackoff:  time.Duration(a.sweepBackoffMin) * time.Minute,
		CacheTTL:      time.Duration(a.cacheTTLMin) * time.Minute,
	}

	if a.configPath != "" {
		fileCfg, err := loadAgentFile(a.configPath)
		if err != nil {
			return nil, err
		}
		if settings.Model == "" {
			settings.Model = fileCfg.Model
		}
		if settings.Temperature == 0 {
			settings.Temperature = fileCfg.Temperature
		}
		if fileCfg.MemoryWindow > 0 && settings.MemoryWindow == model.DefaultMemoryWindow {
			settings.MemoryWindow = fileCfg.MemoryWindow
		}
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	return settings, nil
}

// Validate checks the resolved settings
func (s *AgentSettings) Validate() error {
	if s.Temperature < 0 || s.Temperature > 2 {
		return goerr.Wrap(ErrInvalidConfig, "temperature must be between 0 and 2",
			goerr.V("temperature", s.Temperature))
	}
	if s.MemoryWindow <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "memory window must be positive",
			goerr.V("memory_window", s.MemoryWindow))
	}
	if s.MaxSessions <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "max sessions must be positive",
			goerr.V("max_sessions", s.MaxSessions))
	}
	if s.IdleTimeout <= 0 {
		return goerr.Wrap(ErrInvalidConfig, "idle timeout must be positive",
			goerr.V("idle_timeout", s.IdleTimeout))
	}
	return nil
}

func loadAgentFile(path string) (*agentFileConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrConfigNotFound, "agent config file does not exist",
				goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read agent config file", goerr.V(ConfigPathKey, path))
	}

	var cfg agentFileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML agent config", goerr.V(ConfigPathKey, path))
	}

	return &cfg, nil
}
