package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server     ServerConfig     `toml:"server"`
	Simulation SimulationConfig `toml:"simulation"`
	Logging    LoggingConfig    `toml:"logging"`
	Scripting  ScriptingConfig  `toml:"scripting"`
	Bridge     BridgeConfig     `toml:"bridge"`
	SceneStore SceneStoreConfig `toml:"scene_store"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	StartTime int64  // set at boot, not from config
}

type SimulationConfig struct {
	TickRate      time.Duration `toml:"tick_rate"`
	PerTick       int           `toml:"per_tick"`        // commands per ordered worker per tick
	PickRadiusMax float64       `toml:"pick_radius_max"` // 0 = unlimited
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

type ScriptingConfig struct {
	Dir         string        `toml:"dir"`
	Startup     []string      `toml:"startup"` // scripts run once the loop is up, relative to Dir
	CallTimeout time.Duration `toml:"call_timeout"`
}

type BridgeConfig struct {
	Enabled      bool          `toml:"enabled"`
	BindAddress  string        `toml:"bind_address"`
	Path         string        `toml:"path"`
	OutQueueSize int           `toml:"out_queue_size"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	CallTimeout  time.Duration `toml:"call_timeout"` // 0 = wait until the session ends
	TokenHash    string        `toml:"token_hash"` // bcrypt hash; empty disables auth
}

type SceneStoreConfig struct {
	DSN             string        `toml:"dsn"` // empty disables the store
	MaxOpenConns    int           `toml:"max_open_conns"`
	MaxIdleConns    int           `toml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `toml:"conn_max_lifetime"`
	SeedTimeout     time.Duration `toml:"seed_timeout"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse decodes TOML over the defaults. name is only used in errors.
func Parse(data []byte, name string) (*Config, error) {
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", name, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

// Default returns the built-in configuration, used when no file is given.
func Default() *Config {
	cfg := defaults()
	cfg.Server.StartTime = time.Now().Unix()
	return cfg
}

func (c *Config) validate() error {
	if c.Simulation.TickRate <= 0 {
		return fmt.Errorf("simulation.tick_rate must be positive, got %s", c.Simulation.TickRate)
	}
	if c.Simulation.PerTick < 1 {
		return fmt.Errorf("simulation.per_tick must be at least 1, got %d", c.Simulation.PerTick)
	}
	if c.Simulation.PickRadiusMax < 0 {
		return fmt.Errorf("simulation.pick_radius_max must not be negative")
	}
	if c.Bridge.Enabled && c.Bridge.OutQueueSize < 1 {
		return fmt.Errorf("bridge.out_queue_size must be at least 1, got %d", c.Bridge.OutQueueSize)
	}
	return nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "canvasdock",
		},
		Simulation: SimulationConfig{
			TickRate:      16 * time.Millisecond,
			PerTick:       1,
			PickRadiusMax: 512,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Scripting: ScriptingConfig{
			Dir:         "scripts",
			CallTimeout: 5 * time.Second,
		},
		Bridge: BridgeConfig{
			Enabled:      true,
			BindAddress:  "127.0.0.1:7400",
			Path:         "/dock",
			OutQueueSize: 256,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			CallTimeout:  30 * time.Second,
		},
		SceneStore: SceneStoreConfig{
			MaxOpenConns:    4,
			MaxIdleConns:    1,
			ConnMaxLifetime: 30 * time.Minute,
			SeedTimeout:     30 * time.Second,
		},
	}
}
