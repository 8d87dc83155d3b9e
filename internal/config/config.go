// Package config handles configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"netinspect/internal/log"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("netinspect: invalid configuration")

const envPrefix = "NETINSPECT"

// Config is the top-level configuration.
type Config struct {
	Capture    CaptureConfig    `mapstructure:"capture"`
	Signatures SignaturesConfig `mapstructure:"signatures"`
	Export     ExportConfig     `mapstructure:"export"`
	Report     ReportConfig     `mapstructure:"report"`
	Log        log.Config       `mapstructure:"log"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// CaptureConfig holds live capture settings.
type CaptureConfig struct {
	Interface    string        `mapstructure:"interface"` // empty = first usable device
	Filter       string        `mapstructure:"filter"`    // BPF expression
	Snaplen      int           `mapstructure:"snaplen"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// SignaturesConfig locates the signature file.
type SignaturesConfig struct {
	Path  string `mapstructure:"path"`  // empty = built-in defaults
	Watch bool   `mapstructure:"watch"` // reload on change for the next session
}

// ExportConfig sets where captures are exported.
type ExportConfig struct {
	Path string `mapstructure:"path"`
}

// ReportConfig sets where HTML session reports are written.
type ReportConfig struct {
	Dir string `mapstructure:"dir"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// Load reads path (if non-empty), applies NETINSPECT_* environment
// overrides and defaults, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// key "capture.interface" -> env NETINSPECT_CAPTURE_INTERFACE
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
func setDefaults(v *viper.Viper) {
	// Capture defaults
	v.SetDefault("capture.interface", "")
	v.SetDefault("capture.filter", "")
	v.SetDefault("capture.snaplen", 65535)
	v.SetDefault("capture.poll_interval", "100ms")

	// Signature defaults
	v.SetDefault("signatures.path", "")
	v.SetDefault("signatures.watch", false)

	// Output defaults
	v.SetDefault("export.path", "packets.pcap")
	v.SetDefault("report.dir", ".")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file.enabled", false)
	v.SetDefault("log.file.path", "netinspect.log")
	v.SetDefault("log.file.max_size_mb", 50)
	v.SetDefault("log.file.max_backups", 3)
	v.SetDefault("log.file.max_age_days", 14)
	v.SetDefault("log.file.compress", false)

	// Metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9091")
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks value ranges and enumerations.
func (cfg *Config) Validate() error {
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("%w: log level %q (must be debug/info/warn/error)", ErrInvalid, cfg.Log.Level)
	}
	if f := strings.ToLower(cfg.Log.Format); f != "json" && f != "text" {
		return fmt.Errorf("%w: log format %q (must be json/text)", ErrInvalid, cfg.Log.Format)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", ErrInvalid)
	}

	if cfg.Capture.Snaplen < 1 || cfg.Capture.Snaplen > 262144 {
		return fmt.Errorf("%w: capture.snaplen %d (must be 1..262144)", ErrInvalid, cfg.Capture.Snaplen)
	}
	if cfg.Capture.PollInterval <= 0 {
		return fmt.Errorf("%w: capture.poll_interval must be positive", ErrInvalid)
	}

	if cfg.Export.Path == "" {
		return fmt.Errorf("%w: export.path must not be empty", ErrInvalid)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", ErrInvalid)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			return fmt.Errorf("%w: metrics.path %q must start with /", ErrInvalid, cfg.Metrics.Path)
		}
	}
	return nil
}
