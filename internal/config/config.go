// Package config loads dicomgroup settings from a YAML file, DICOMGROUP_*
// environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrsinham/dicomgroup/internal/grouping"
	"github.com/mrsinham/dicomgroup/internal/report"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g.
// DICOMGROUP_GROUPING_POSITION_TOLERANCE.
const EnvPrefix = "DICOMGROUP"

type Config struct {
	Import   ImportConfig   `mapstructure:"import" yaml:"import"`
	Grouping GroupingConfig `mapstructure:"grouping" yaml:"grouping"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

type ImportConfig struct {
	Recursive bool `mapstructure:"recursive" yaml:"recursive"`
	Workers   int  `mapstructure:"workers" yaml:"workers"`
}

type GroupingConfig struct {
	PositionTolerance      float64 `mapstructure:"position_tolerance" yaml:"position_tolerance"`
	CollisionWarnThreshold int     `mapstructure:"collision_warn_threshold" yaml:"collision_warn_threshold"`
	// VendorOrders maps a manufacturer to a slice order name: spatial, file
	// or instance.
	VendorOrders map[string]string `mapstructure:"vendor_orders" yaml:"vendor_orders"`
}

type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Import: ImportConfig{Recursive: true},
		Grouping: GroupingConfig{
			PositionTolerance:      grouping.DefaultPositionTolerance,
			CollisionWarnThreshold: grouping.DefaultCollisionWarnThreshold,
			VendorOrders:           map[string]string{"KONING": grouping.OrderFile},
		},
		Output: OutputConfig{Format: report.FormatText},
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads the configuration. An empty path uses defaults and the
// environment only; a named file must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Default()
	v.SetDefault("import.recursive", def.Import.Recursive)
	v.SetDefault("import.workers", def.Import.Workers)
	v.SetDefault("grouping.position_tolerance", def.Grouping.PositionTolerance)
	v.SetDefault("grouping.collision_warn_threshold", def.Grouping.CollisionWarnThreshold)
	v.SetDefault("grouping.vendor_orders", def.Grouping.VendorOrders)
	v.SetDefault("output.format", def.Output.Format)
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("log.level", def.Log.Level)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Import.Workers < 0 {
		errs = append(errs, fmt.Errorf("import.workers must be >= 0, got %d", c.Import.Workers))
	}
	if c.Grouping.PositionTolerance < 0 {
		errs = append(errs, fmt.Errorf("grouping.position_tolerance must be >= 0, got %g", c.Grouping.PositionTolerance))
	}
	if c.Grouping.CollisionWarnThreshold < 0 {
		errs = append(errs, fmt.Errorf("grouping.collision_warn_threshold must be >= 0, got %d", c.Grouping.CollisionWarnThreshold))
	}
	for manufacturer, name := range c.Grouping.VendorOrders {
		if _, err := grouping.OrderByName(name, 0); err != nil {
			errs = append(errs, fmt.Errorf("grouping.vendor_orders[%s]: %w", manufacturer, err))
		}
	}
	if err := report.ValidateFormat(c.Output.Format); err != nil {
		errs = append(errs, fmt.Errorf("output.format: %w", err))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	return errors.Join(errs...)
}

// GroupingOptions converts the grouping section. Manufacturer names are
// matched case-insensitively, so an empty vendor table disables overrides.
func (c *Config) GroupingOptions(logger *zerolog.Logger) (grouping.Options, error) {
	orders := grouping.VendorOrders{}
	for manufacturer, name := range c.Grouping.VendorOrders {
		order, err := grouping.OrderByName(name, c.Grouping.PositionTolerance)
		if err != nil {
			return grouping.Options{}, fmt.Errorf("vendor order for %s: %w", manufacturer, err)
		}
		orders.Set(manufacturer, order)
	}
	return grouping.Options{
		PositionTolerance:      c.Grouping.PositionTolerance,
		CollisionWarnThreshold: c.Grouping.CollisionWarnThreshold,
		VendorOrders:           orders,
		Logger:                 logger,
	}, nil
}

// Save writes cfg as YAML, creating the parent directory.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
