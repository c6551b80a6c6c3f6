package renderer

import (
	"time"

	"github.com/achilleasa/mtsblend/config"
)

type Options struct {
	// Mitsuba installation directory.
	BinaryPath string

	// Directory holding the bundled preview scene.
	PluginDir string

	// Poll loop period and renderer output refresh interval.
	RefreshInterval time.Duration

	// Display update period. Zero selects RefreshInterval.
	KickPeriod time.Duration

	// Export and render modes (see the config package constants).
	ExportMode string
	RenderMode string

	// Material preview quality.
	PreviewSPP   int
	PreviewDepth int
}

// Build engine options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BinaryPath:      cfg.Engine.BinaryPath,
		PluginDir:       cfg.Engine.PluginDir,
		RefreshInterval: cfg.Refresh(),
		KickPeriod:      cfg.Kick(),
		ExportMode:      cfg.Engine.ExportMode,
		RenderMode:      cfg.Engine.RenderMode,
		PreviewSPP:      cfg.Defaults.PreviewSPP,
		PreviewDepth:    cfg.Defaults.PreviewDepth,
	}
}
