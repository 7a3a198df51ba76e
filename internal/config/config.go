package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"offroad-sim/internal/collision"
	"offroad-sim/internal/geometry/vector"
	"offroad-sim/internal/terrain"
	"offroad-sim/internal/vehicle"
)

// EnvPrefix is the prefix of environment overrides, e.g. OFFROAD_SERVER_PORT.
const EnvPrefix = "OFFROAD"

// Recorder backends.
const (
	RecorderNone   = "none"
	RecorderMemory = "memory"
	RecorderSQLite = "sqlite"
)

type ServerConfig struct {
	Port int `json:"port" mapstructure:"port"`
}

type SimConfig struct {
	TickHz       float64     `json:"tickHz" mapstructure:"tickHz"`
	MaxDt        float64     `json:"maxDt" mapstructure:"maxDt"`
	GridCellSize float64     `json:"gridCellSize" mapstructure:"gridCellSize"` // 0 disables the broad phase
	Spawn        vector.Vec3 `json:"spawn" mapstructure:"spawn"`
}

// RecorderConfig selects where frames are written.
type RecorderConfig struct {
	Type       string `json:"type" mapstructure:"type"`
	OutputDir  string `json:"outputDir" mapstructure:"outputDir"`
	Compress   bool   `json:"compress" mapstructure:"compress"`
	SQLitePath string `json:"sqlitePath" mapstructure:"sqlitePath"`
	BatchSize  int    `json:"batchSize" mapstructure:"batchSize"`
}

// Config is the full process configuration.
type Config struct {
	LogLevel string `json:"logLevel" mapstructure:"logLevel"`
	LogFile  string `json:"logFile" mapstructure:"logFile"`

	Server    ServerConfig          `json:"server" mapstructure:"server"`
	Sim       SimConfig             `json:"sim" mapstructure:"sim"`
	Terrain   terrain.Params        `json:"terrain" mapstructure:"terrain"`
	Vehicle   vehicle.Config        `json:"vehicle" mapstructure:"vehicle"`
	Collision collision.Options     `json:"collision" mapstructure:"collision"`
	Obstacles []collision.Placement `json:"obstacles" mapstructure:"obstacles"`
	Recorder  RecorderConfig        `json:"recorder" mapstructure:"recorder"`
}

// Default returns the stock world: default terrain, car and contact response
// plus a few rocks and trees around the spawn point.
func Default() Config {
	return Config{
		LogLevel: "info",
		Server:   ServerConfig{Port: 8080},
		Sim: SimConfig{
			TickHz:       60,
			MaxDt:        0.033,
			GridCellSize: 16,
			Spawn:        vector.Vec3{Y: 10},
		},
		Terrain:   terrain.DefaultParams(),
		Vehicle:   vehicle.DefaultConfig(),
		Collision: collision.DefaultOptions(),
		Obstacles: []collision.Placement{
			{Position: vector.Vec3{X: 0, Z: 25}, Scale: vector.Vec3{X: 0.8, Y: 0.6, Z: 0.8}, Kind: "rock"},
			{Position: vector.Vec3{X: 12, Z: 40}, Scale: vector.Vec3{X: 1.2, Y: 1, Z: 1.1}, Kind: "rock"},
			{Position: vector.Vec3{X: -15, Z: 30}, Scale: vector.Vec3{X: 0.6, Y: 3, Z: 0.6}, Kind: "tree"},
			{Position: vector.Vec3{X: 20, Z: -10}, Scale: vector.Vec3{X: 0.7, Y: 4, Z: 0.7}, Kind: "tree"},
			{Position: vector.Vec3{X: -30, Z: -25}, Scale: vector.Vec3{X: 1.5, Y: 1, Z: 1.5}, Kind: "rock"},
		},
		Recorder: RecorderConfig{
			Type:       RecorderNone,
			OutputDir:  "./recordings",
			Compress:   true,
			SQLitePath: "./recordings/trajectory.db",
			BatchSize:  120,
		},
	}
}

// Load reads configuration from path (JSON or YAML by extension) over the
// defaults. An empty path skips the file. Environment variables with the
// OFFROAD_ prefix override scalar keys.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := Default()
	if v.IsSet("obstacles") {
		// a configured list replaces the stock one wholesale
		cfg.Obstacles = nil
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers the scalar keys so env overrides reach them.
// Nested component sections start from their package defaults in Default.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("logLevel", d.LogLevel)
	v.SetDefault("logFile", d.LogFile)

	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("sim.tickHz", d.Sim.TickHz)
	v.SetDefault("sim.maxDt", d.Sim.MaxDt)
	v.SetDefault("sim.gridCellSize", d.Sim.GridCellSize)
	v.SetDefault("sim.spawn.x", d.Sim.Spawn.X)
	v.SetDefault("sim.spawn.y", d.Sim.Spawn.Y)
	v.SetDefault("sim.spawn.z", d.Sim.Spawn.Z)

	v.SetDefault("recorder.type", d.Recorder.Type)
	v.SetDefault("recorder.outputDir", d.Recorder.OutputDir)
	v.SetDefault("recorder.compress", d.Recorder.Compress)
	v.SetDefault("recorder.sqlitePath", d.Recorder.SQLitePath)
	v.SetDefault("recorder.batchSize", d.Recorder.BatchSize)
}

// Validate checks every section. Component errors keep their sentinels.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if !(c.Sim.TickHz > 0) {
		errs = append(errs, fmt.Errorf("sim.tickHz must be positive, got %v", c.Sim.TickHz))
	}
	if !(c.Sim.MaxDt > 0) {
		errs = append(errs, fmt.Errorf("sim.maxDt must be positive, got %v", c.Sim.MaxDt))
	}
	if c.Sim.GridCellSize < 0 {
		errs = append(errs, fmt.Errorf("sim.gridCellSize must not be negative, got %v", c.Sim.GridCellSize))
	}
	if !c.Sim.Spawn.IsFinite() {
		errs = append(errs, errors.New("sim.spawn must be finite"))
	}
	if err := c.Terrain.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Vehicle.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Collision.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Colliders(); err != nil {
		errs = append(errs, err)
	}

	switch c.Recorder.Type {
	case RecorderNone, RecorderMemory:
	case RecorderSQLite:
		if c.Recorder.SQLitePath == "" {
			errs = append(errs, errors.New("recorder.sqlitePath is required for the sqlite recorder"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown recorder.type %q", c.Recorder.Type))
	}

	return errors.Join(errs...)
}

// Colliders builds the obstacle arena in list order. Rocks are breakable,
// trees are not.
func (c *Config) Colliders() ([]collision.Collider, error) {
	out := make([]collision.Collider, 0, len(c.Obstacles))
	for i, p := range c.Obstacles {
		var opt collision.BuildOptions
		switch p.Kind {
		case "rock":
			opt = collision.RockBuildOptions()
		case "tree":
			opt = collision.TreeBuildOptions()
		default:
			return nil, fmt.Errorf("%w: obstacle %d has unknown kind %q", collision.ErrInvalidCollider, i, p.Kind)
		}
		cs, err := collision.BuildColliders([]collision.Placement{p}, opt)
		if err != nil {
			return nil, fmt.Errorf("obstacle %d: %w", i, err)
		}
		out = append(out, cs...)
	}
	return out, nil
}
