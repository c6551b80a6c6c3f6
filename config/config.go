// Package config loads the engine configuration from a TOML or YAML file and
// the environment.
//
// Values are resolved in order: built-in defaults, the config file (when
// present), MTSBLEND_* environment variables. Command line flags are applied
// on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Export modes.
const (
	ExportRender = "render"
	ExportOnly   = "export"
)

// Render modes.
const (
	RenderCLI = "cli"
	RenderGUI = "gui"
)

var (
	ErrUnsupportedFormat = errors.New("config: unsupported config file format")
	ErrInvalid           = errors.New("config: invalid configuration")
)

type Config struct {
	Engine   Engine   `toml:"engine" yaml:"engine"`
	Defaults Defaults `toml:"defaults" yaml:"defaults"`
	Display  Display  `toml:"display" yaml:"display"`
	Log      Log      `toml:"log" yaml:"log"`
}

type Engine struct {
	// BinaryPath is the Mitsuba installation directory.
	BinaryPath string `toml:"binary_path" yaml:"binary_path"`

	// PluginDir holds the bundled preview scene (matpreview/matpreview.xml).
	PluginDir string `toml:"plugin_dir" yaml:"plugin_dir"`

	// RefreshInterval in seconds; drives the poll loop and the renderer's -r flag.
	RefreshInterval int `toml:"refresh_interval" yaml:"refresh_interval"`

	ExportMode string `toml:"export_mode" yaml:"export_mode"`
	RenderMode string `toml:"render_mode" yaml:"render_mode"`
}

// Defaults used for material preview renders.
type Defaults struct {
	PreviewSPP   int `toml:"preview_spp" yaml:"preview_spp"`
	PreviewDepth int `toml:"preview_depth" yaml:"preview_depth"`
}

type Display struct {
	// KickPeriod in seconds between display updates. Zero selects the refresh interval.
	KickPeriod int `toml:"kick_period" yaml:"kick_period"`
}

type Log struct {
	Level string `toml:"level" yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: Engine{
			RefreshInterval: 1,
			ExportMode:      ExportRender,
			RenderMode:      RenderCLI,
		},
		Defaults: Defaults{
			PreviewSPP:   16,
			PreviewDepth: 2,
		},
		Log: Log{
			Level: "notice",
		},
	}
}

// Load reads the config file at path on top of the defaults and applies
// environment overrides. An empty path or a missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err = decode(path, data, cfg); err != nil {
				return nil, err
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	if err != nil {
		return fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("MTSBLEND_BINARY_PATH"); ok {
		c.Engine.BinaryPath = v
	}
	if v, ok := os.LookupEnv("MTSBLEND_PLUGIN_DIR"); ok {
		c.Engine.PluginDir = v
	}
	if v, ok := os.LookupEnv("MTSBLEND_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := os.LookupEnv("MTSBLEND_REFRESH_INTERVAL"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: MTSBLEND_REFRESH_INTERVAL %q is not an integer", ErrInvalid, v)
		}
		c.Engine.RefreshInterval = n
	}
	return nil
}

// Validate checks value ranges and enumerations. An empty binary path is
// allowed here; it is reported when a render is requested.
func (c *Config) Validate() error {
	if c.Engine.RefreshInterval <= 0 {
		return fmt.Errorf("%w: refresh_interval must be positive; got %d", ErrInvalid, c.Engine.RefreshInterval)
	}
	if c.Display.KickPeriod < 0 {
		return fmt.Errorf("%w: kick_period must not be negative; got %d", ErrInvalid, c.Display.KickPeriod)
	}
	if c.Defaults.PreviewSPP <= 0 || c.Defaults.PreviewDepth <= 0 {
		return fmt.Errorf("%w: preview_spp and preview_depth must be positive", ErrInvalid)
	}
	switch c.Engine.ExportMode {
	case ExportRender, ExportOnly:
	default:
		return fmt.Errorf("%w: export_mode %q (expected %s or %s)", ErrInvalid, c.Engine.ExportMode, ExportRender, ExportOnly)
	}
	switch c.Engine.RenderMode {
	case RenderCLI, RenderGUI:
	default:
		return fmt.Errorf("%w: render_mode %q (expected %s or %s)", ErrInvalid, c.Engine.RenderMode, RenderCLI, RenderGUI)
	}
	return nil
}

// Refresh returns the refresh interval as a duration.
func (c *Config) Refresh() time.Duration {
	return time.Duration(c.Engine.RefreshInterval) * time.Second
}

// Kick returns the display kick period, falling back to the refresh interval.
func (c *Config) Kick() time.Duration {
	if c.Display.KickPeriod == 0 {
		return c.Refresh()
	}
	return time.Duration(c.Display.KickPeriod) * time.Second
}
