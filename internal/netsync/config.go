package netsync

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config describes one hosted session.
type Config struct {
	Addr       string `yaml:"addr"`
	TickRateHz int    `yaml:"tick_rate_hz"`
	// TickDelay is how many ticks ahead accepted commands are
	// scheduled; it absorbs network latency and keeps the hosting
	// player from acting a tick earlier than everyone else.
	TickDelay  uint64 `yaml:"tick_delay"`
	MaxClients int    `yaml:"max_clients"`
	// MinClients is the lobby size: ticking starts once this many
	// peers joined. There is no state transfer, so nobody may join a
	// session that already started.
	MinClients int `yaml:"min_clients"`

	MapWidth      int   `yaml:"map_width"`
	MapHeight     int   `yaml:"map_height"`
	Seed          int64 `yaml:"seed"`
	StartingFunds int64 `yaml:"starting_funds"`
	MaxLoan       int64 `yaml:"max_loan"`

	// Command log ring capacities (main / auxiliary).
	LogMain int `yaml:"log_main"`
	LogAux  int `yaml:"log_aux"`

	DataDir string `yaml:"data_dir"`
}

func defaults() Config {
	return Config{
		Addr:          ":8642",
		TickRateHz:    30,
		TickDelay:     2,
		MaxClients:    8,
		MinClients:    1,
		MapWidth:      64,
		MapHeight:     64,
		Seed:          1337,
		StartingFunds: 100000,
		MaxLoan:       300000,
		LogMain:       128,
		LogAux:        256,
		DataDir:       "./data",
	}
}

// Load reads a session config, falling back to defaults when path is
// empty.
func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("session.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("session.yaml: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.TickRateHz <= 0 || c.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz out of range: %d", c.TickRateHz)
	}
	if c.TickDelay == 0 {
		return fmt.Errorf("tick_delay must be at least 1")
	}
	if c.MapWidth < 16 || c.MapHeight < 16 {
		return fmt.Errorf("map too small: %dx%d", c.MapWidth, c.MapHeight)
	}
	if c.MaxClients < 1 {
		return fmt.Errorf("max_clients must be positive")
	}
	if c.MinClients < 1 || c.MinClients > c.MaxClients {
		return fmt.Errorf("min_clients out of range: %d", c.MinClients)
	}
	if c.LogMain <= 0 || c.LogAux <= 0 {
		return fmt.Errorf("log ring capacities must be positive")
	}
	return nil
}
