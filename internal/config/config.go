// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rhinomusic/rhino/internal/logger"
)

// Surface types.
const (
	SurfaceMPRIS  = "mpris"
	SurfaceRemote = "remote"
)

// MemoryStorage keeps preferences in memory only.
const MemoryStorage = ":memory:"

// Config represents the application configuration.
type Config struct {
	Log      LogConfig       `yaml:"log"`
	Audio    AudioConfig     `yaml:"audio"`
	Player   PlayerConfig    `yaml:"player"`
	Library  LibraryConfig   `yaml:"library"`
	Storage  StorageConfig   `yaml:"storage"`
	Surfaces []SurfaceConfig `yaml:"surfaces" validate:"dive"`
}

// LogConfig represents logging configuration.
type LogConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=trace debug info warn warning error"`
	Format     string `yaml:"format" default:"console" validate:"oneof=console json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" default:"10" validate:"gte=1"`
	MaxBackups int    `yaml:"max_backups" default:"3" validate:"gte=0"`
}

// AudioConfig selects and tunes the media engine.
type AudioConfig struct {
	Engine     string `yaml:"engine" default:"beep" validate:"oneof=beep mock"`
	SampleRate int    `yaml:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	BufferMs   int    `yaml:"buffer_ms" default:"100" validate:"gte=10,lte=2000"`
}

// PlayerConfig represents playback controller configuration.
type PlayerConfig struct {
	ProgressIntervalMs      int     `yaml:"progress_interval_ms" default:"333" validate:"gte=10,lte=10000"`
	RestartThresholdPercent float64 `yaml:"restart_threshold_percent" default:"1" validate:"gt=0,lte=100"`
}

// LibraryConfig represents music library configuration.
type LibraryConfig struct {
	Paths      []string `yaml:"paths"`
	Watch      bool     `yaml:"watch"`
	Extensions []string `yaml:"extensions"`
}

// StorageConfig represents preference storage configuration.
type StorageConfig struct {
	// Path of the preferences database, or ":memory:"
	Path string `yaml:"path"`
}

// SurfaceConfig represents one control surface.
type SurfaceConfig struct {
	Type     string         `yaml:"type" validate:"required,oneof=mpris remote"`
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "rhino.yaml"
	}
	return filepath.Join(dir, "rhino", "rhino.yaml")
}

// DefaultStoragePath returns the default preferences database location.
func DefaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "rhino.db"
	}
	return filepath.Join(dir, "rhino", "rhino.db")
}

// Default returns the configuration used when no file exists.
func Default() (*Config, error) {
	return finish(&Config{})
}

// Load loads configuration from a YAML file. A missing file yields the defaults.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default()
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = DefaultStoragePath()
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("RHINO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("RHINO_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("RHINO_REMOTE_ADDR"); v != "" {
		found := false
		for i := range c.Surfaces {
			if c.Surfaces[i].Type == SurfaceRemote {
				if c.Surfaces[i].Settings == nil {
					c.Surfaces[i].Settings = map[string]any{}
				}
				c.Surfaces[i].Settings["addr"] = v
				found = true
			}
		}
		if !found {
			c.Surfaces = append(c.Surfaces, SurfaceConfig{
				Type:     SurfaceRemote,
				Enabled:  true,
				Settings: map[string]any{"addr": v},
			})
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	for _, s := range c.Surfaces {
		if !s.Enabled {
			continue
		}
		var err error
		switch s.Type {
		case SurfaceMPRIS:
			_, err = decodeMPRIS(s.Settings)
		case SurfaceRemote:
			_, err = decodeRemote(s.Settings)
		}
		if err != nil {
			return errors.Wrapf(err, "surface %s", s.Type)
		}
	}
	return nil
}

// Logger returns the logger configuration.
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:      logger.ParseLevel(c.Log.Level),
		Format:     c.Log.Format,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	}
}

// ProgressInterval returns the progress notification period.
func (c *Config) ProgressInterval() time.Duration {
	return time.Duration(c.Player.ProgressIntervalMs) * time.Millisecond
}

// Buffer returns the audio output buffer length.
func (c *Config) Buffer() time.Duration {
	return time.Duration(c.Audio.BufferMs) * time.Millisecond
}

// IsSurfaceEnabled checks if a surface type is enabled.
func (c *Config) IsSurfaceEnabled(surface string) bool {
	for _, s := range c.Surfaces {
		if s.Type == surface && s.Enabled {
			return true
		}
	}
	return false
}

func (c *Config) surfaceSettings(surface string) map[string]any {
	for _, s := range c.Surfaces {
		if s.Type == surface && s.Enabled {
			return s.Settings
		}
	}
	return nil
}
