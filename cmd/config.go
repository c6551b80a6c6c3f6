package cmd

import (
	"bytes"
	"fmt"

	"github.com/achilleasa/mtsblend/config"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Load the configuration named by the global --config flag and apply any
// engine flags set on the command.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.GlobalString("config"))
	if err != nil {
		return nil, err
	}

	if ctx.IsSet("binary-path") {
		cfg.Engine.BinaryPath = ctx.String("binary-path")
	}
	if ctx.IsSet("plugin-dir") {
		cfg.Engine.PluginDir = ctx.String("plugin-dir")
	}
	if ctx.IsSet("refresh") {
		cfg.Engine.RefreshInterval = ctx.Int("refresh")
	}
	if ctx.IsSet("kick") {
		cfg.Display.KickPeriod = ctx.Int("kick")
	}
	if ctx.Bool("export-only") {
		cfg.Engine.ExportMode = config.ExportOnly
	}
	if ctx.Bool("gui") {
		cfg.Engine.RenderMode = config.RenderGUI
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Print the effective configuration.
func ShowConfig(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg)

	source := ctx.GlobalString("config")
	if source == "" {
		source = "(defaults)"
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Setting", "Value"})
	for _, row := range configRows(cfg) {
		table.Append(row)
	}
	table.SetFooter([]string{"SOURCE", source})

	table.Render()
	logger.Noticef("effective configuration\n%s", buf.String())
	return nil
}

func configRows(cfg *config.Config) [][]string {
	binaryPath := cfg.Engine.BinaryPath
	if binaryPath == "" {
		binaryPath = "(unset)"
	}
	pluginDir := cfg.Engine.PluginDir
	if pluginDir == "" {
		pluginDir = "(unset)"
	}

	return [][]string{
		{"engine.binary_path", binaryPath},
		{"engine.plugin_dir", pluginDir},
		{"engine.refresh_interval", fmt.Sprintf("%s", cfg.Refresh())},
		{"engine.export_mode", cfg.Engine.ExportMode},
		{"engine.render_mode", cfg.Engine.RenderMode},
		{"defaults.preview_spp", fmt.Sprintf("%d", cfg.Defaults.PreviewSPP)},
		{"defaults.preview_depth", fmt.Sprintf("%d", cfg.Defaults.PreviewDepth)},
		{"display.kick_period", fmt.Sprintf("%s", cfg.Kick())},
		{"log.level", cfg.Log.Level},
	}
}
