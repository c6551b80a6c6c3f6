package main

import (
	"os"
	"runtime"

	"github.com/achilleasa/mtsblend/cmd"
	"github.com/achilleasa/mtsblend/log"
	"github.com/urfave/cli"
)

func init() {
	// glfw must run on the main OS thread.
	runtime.LockOSThread()
}

// Flags shared by all commands that talk to the renderer.
func engineFlags() []cli.Flag {
	return []cli.Flag{
		cli.StringFlag{
			Name:  "binary-path",
			Usage: "Mitsuba installation directory (overrides engine.binary_path)",
		},
		cli.StringFlag{
			Name:  "plugin-dir",
			Usage: "directory holding matpreview/matpreview.xml (overrides engine.plugin_dir)",
		},
		cli.IntFlag{
			Name:  "refresh",
			Usage: "renderer output refresh interval in seconds",
		},
		cli.IntFlag{
			Name:  "kick",
			Usage: "display update period in seconds (0 = refresh interval)",
		},
		cli.StringSliceFlag{
			Name:  "define, D",
			Value: &cli.StringSlice{},
			Usage: "pass a KEY=VALUE scene parameter to the renderer",
		},
		cli.BoolFlag{
			Name:  "window",
			Usage: "show render progress in an OpenGL window",
		},
		cli.StringFlag{
			Name:  "save",
			Usage: "write the final displayed frame to this PNG file",
		},
	}
}

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "mtsblend"
	app.Usage = "render exported scenes with Mitsuba and stream progress to a display"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:   "config, c",
			Usage:  "load configuration from a TOML or YAML file",
			EnvVar: "MTSBLEND_CONFIG",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "render scene",
			Subcommands: []cli.Command{
				{
					Name:  "frame",
					Usage: "render a single frame",
					Description: `
Stage an exported Mitsuba scene next to the output path and render it with the
command line renderer. The output image is polled while the renderer runs and
the display is updated as it converges.

Interrupting the command (or closing the display window) asks the renderer to
stop and waits for it to exit; the partially converged frame is kept.`,
					ArgsUsage: "scene.xml",
					Flags: append(engineFlags(),
						cli.IntFlag{
							Name:  "width",
							Value: 512,
							Usage: "frame width",
						},
						cli.IntFlag{
							Name:  "height",
							Value: 512,
							Usage: "frame height",
						},
						cli.IntFlag{
							Name:  "frame, f",
							Value: 1,
							Usage: "frame number",
						},
						cli.StringFlag{
							Name:  "scene",
							Value: "Scene",
							Usage: "scene name",
						},
						cli.StringFlag{
							Name:  "project",
							Usage: "project name used as the exported file prefix (defaults to the scene file name)",
						},
						cli.StringFlag{
							Name:  "out, o",
							Value: ".",
							Usage: "output directory (or a file inside it)",
						},
						cli.BoolFlag{
							Name:  "export-only",
							Usage: "stage the scene without rendering it",
						},
						cli.BoolFlag{
							Name:  "gui",
							Usage: "open the staged scene in the interactive renderer",
						},
					),
					Action: cmd.RenderFrame,
				},
				{
					Name:        "preview",
					Usage:       "render a material preview",
					Description: `Render the bundled material preview scene using the materials in the given file.`,
					ArgsUsage:   "materials.xml",
					Flags: append(engineFlags(),
						cli.IntFlag{
							Name:  "width",
							Value: 128,
							Usage: "preview width",
						},
						cli.IntFlag{
							Name:  "height",
							Value: 128,
							Usage: "preview height",
						},
						cli.StringFlag{
							Name:  "material",
							Value: "Material",
							Usage: "material name",
						},
					),
					Action: cmd.RenderPreview,
				},
			},
		},
		{
			Name:   "config",
			Usage:  "print the effective configuration",
			Flags:  engineFlags()[:4],
			Action: cmd.ShowConfig,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.New("mtsblend").Error(err)
		os.Exit(1)
	}
}
