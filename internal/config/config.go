// Package config loads the station simulator configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/station-simulator/core"
	"github.com/signalsfoundry/station-simulator/internal/logging"
	"github.com/signalsfoundry/station-simulator/internal/observability"
	"github.com/signalsfoundry/station-simulator/internal/sim/station"
	"github.com/signalsfoundry/station-simulator/model"
)

// Config is the full simulator configuration.
type Config struct {
	Station    station.Config              `yaml:"station"`
	Rendezvous core.RendezvousParams       `yaml:"rendezvous"`
	Orbit      OrbitConfig                 `yaml:"orbit"`
	Sim        SimConfig                   `yaml:"sim"`
	Manifest   []model.ModuleConfig        `yaml:"manifest"`
	Logging    LoggingConfig               `yaml:"logging"`
	Metrics    MetricsConfig               `yaml:"metrics"`
	GRPC       GRPCConfig                  `yaml:"grpc"`
	Tracing    observability.TracingConfig `yaml:"tracing"`
	Export     ExportConfig                `yaml:"export"`
}

// OrbitConfig places the whole station on an SGP4 orbit.
type OrbitConfig struct {
	Enabled  bool      `yaml:"enabled"`
	TLELine1 string    `yaml:"tle_line1"`
	TLELine2 string    `yaml:"tle_line2"`
	Epoch    time.Time `yaml:"epoch"`
}

// SimConfig drives the headless run loop and its scripted commands. A zero
// interval disables that command.
type SimConfig struct {
	Tick     time.Duration `yaml:"tick"`
	Duration time.Duration `yaml:"duration"`
	Seed     int64         `yaml:"seed"`
	// RealTime paces ticks against the wall clock instead of running as
	// fast as possible.
	RealTime bool `yaml:"real_time"`

	LaunchInterval time.Duration `yaml:"launch_interval"`
	FaultInterval  time.Duration `yaml:"fault_interval"`
	RepairInterval time.Duration `yaml:"repair_interval"`
	// StatusInterval is how often a station summary is logged.
	StatusInterval time.Duration `yaml:"status_interval"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

// ExportConfig enables the JSONL event log when Path is set.
type ExportConfig struct {
	Path string `yaml:"path"`
}

// DefaultManifest is the launch order of the demo scenario. The expansion
// node docks before the first ring fills so later launches have somewhere
// to go.
func DefaultManifest() []model.ModuleConfig {
	return []model.ModuleConfig{
		{Name: "Graphene", ColorTag: "#2563eb", Kind: model.KindStandard},
		{Name: "ZBLAN Fiber", ColorTag: "#d946ef", Kind: model.KindStandard},
		{Name: "Ti-Al Alloy", ColorTag: "#f97316", Kind: model.KindStandard},
		{Name: "Expansion Node", ColorTag: "#e2e8f0", Kind: model.KindHub},
		{Name: "Thermal Ceramic", ColorTag: "#a8a29e", Kind: model.KindStandard},
		{Name: "Bio-Printed Tissue", ColorTag: "#10b981", Kind: model.KindStandard},
		{Name: "Protein Crystal", ColorTag: "#06b6d4", Kind: model.KindStandard},
	}
}

// Default returns the reference configuration.
func Default() Config {
	sc := station.DefaultConfig()
	return Config{
		Station:    sc,
		Rendezvous: sc.Rendezvous,
		Orbit: OrbitConfig{
			TLELine1: core.DefaultTLELine1,
			TLELine2: core.DefaultTLELine2,
		},
		Sim: SimConfig{
			Tick:           50 * time.Millisecond,
			Duration:       30 * time.Minute,
			Seed:           1,
			LaunchInterval: time.Second,
			FaultInterval:  45 * time.Second,
			RepairInterval: 2 * time.Minute,
			StatusInterval: 30 * time.Second,
		},
		Manifest: DefaultManifest(),
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Tracing:  observability.DefaultTracingConfig(),
	}
}

// Load reads path over the defaults, then applies environment overrides and
// validates the result. An empty path loads the defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// StationConfig returns the controller configuration with the rendezvous
// parameters folded in.
func (c *Config) StationConfig() station.Config {
	sc := c.Station
	sc.Rendezvous = c.Rendezvous
	return sc
}

// LoggerConfig maps the logging section onto the logger's options.
func (c *Config) LoggerConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format, AddSource: c.Logging.AddSource}
}

func (c *Config) applyDefaults() {
	if len(c.Manifest) == 0 {
		c.Manifest = DefaultManifest()
	}
	if c.Orbit.TLELine1 == "" || c.Orbit.TLELine2 == "" {
		c.Orbit.TLELine1 = core.DefaultTLELine1
		c.Orbit.TLELine2 = core.DefaultTLELine2
	}
	if c.Orbit.Epoch.IsZero() {
		c.Orbit.Epoch = time.Date(2021, 10, 2, 14, 0, 0, 0, time.UTC)
	}
	if c.Station.HubName == "" {
		c.Station.HubName = "Central Hub"
	}
	for i := range c.Manifest {
		if c.Manifest[i].Name == "" {
			c.Manifest[i].Name = fmt.Sprintf("Module %d", i+1)
		}
	}
}

func (c *Config) applyEnv() error {
	if raw := os.Getenv("STATION_SEED"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("STATION_SEED: %w", err)
		}
		c.Sim.Seed = seed
	}
	if raw := os.Getenv("STATION_TICK"); raw != "" {
		tick, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("STATION_TICK: %w", err)
		}
		c.Sim.Tick = tick
	}
	if addr := os.Getenv("STATION_METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}
	if addr := os.Getenv("STATION_GRPC_ADDR"); addr != "" {
		c.GRPC.Addr = addr
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	c.Tracing = c.Tracing.ApplyEnv()
	return nil
}

func (c *Config) validate() error {
	if err := c.StationConfig().Validate(); err != nil {
		return fmt.Errorf("station config: %w", err)
	}
	if c.Sim.Tick <= 0 {
		return errors.New("sim.tick must be positive")
	}
	if c.Sim.Duration < 0 {
		return errors.New("sim.duration must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"sim.launch_interval": c.Sim.LaunchInterval,
		"sim.fault_interval":  c.Sim.FaultInterval,
		"sim.repair_interval": c.Sim.RepairInterval,
		"sim.status_interval": c.Sim.StatusInterval,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative", name)
		}
	}
	if err := c.Tracing.Validate(); err != nil {
		return err
	}
	return nil
}
