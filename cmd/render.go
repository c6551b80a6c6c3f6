package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"syscall"

	"github.com/achilleasa/mtsblend/config"
	"github.com/achilleasa/mtsblend/display"
	"github.com/achilleasa/mtsblend/display/window"
	"github.com/achilleasa/mtsblend/export"
	"github.com/achilleasa/mtsblend/renderer"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Render a single frame from an exported scene.
func RenderFrame(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg)

	if ctx.NArg() != 1 {
		return errors.New("missing scene file argument")
	}

	defines, err := renderer.ParseDefines(ctx.StringSlice("define"))
	if err != nil {
		return err
	}

	return runRender(ctx, cfg, renderer.Request{
		Scene:       ctx.String("scene"),
		Frame:       ctx.Int("frame"),
		Project:     ctx.String("project"),
		Width:       ctx.Int("width"),
		Height:      ctx.Int("height"),
		OutputPath:  ctx.String("out"),
		SceneSource: ctx.Args().First(),
		Defines:     defines,
	})
}

// Render a material preview.
func RenderPreview(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	setupLogging(ctx, cfg)

	if ctx.NArg() != 1 {
		return errors.New("missing material file argument")
	}

	defines, err := renderer.ParseDefines(ctx.StringSlice("define"))
	if err != nil {
		return err
	}

	return runRender(ctx, cfg, renderer.Request{
		Scene:          ctx.String("material"),
		Width:          ctx.Int("width"),
		Height:         ctx.Int("height"),
		MaterialSource: ctx.Args().First(),
		Preview:        true,
		Defines:        defines,
	})
}

func runRender(ctx *cli.Context, cfg *config.Config, req renderer.Request) error {
	if req.Width <= 0 || req.Height <= 0 {
		return fmt.Errorf("invalid resolution %dx%d", req.Width, req.Height)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fb := display.NewFramebuffer(req.Width, req.Height)
	sink := display.NewFanout(fb)

	engine := renderer.NewEngine(
		renderer.OptionsFromConfig(cfg),
		renderer.ExecLauncher{Stdout: os.Stdout, Stderr: os.Stderr},
		export.NewFileExporter(),
		sink,
		nil,
	)

	var (
		stats *renderer.SessionStats
		err   error
	)
	if ctx.Bool("window") && cfg.Engine.ExportMode == config.ExportRender && cfg.Engine.RenderMode == config.RenderCLI {
		stats, err = renderWithWindow(runCtx, engine, sink, req)
	} else {
		stats, err = engine.Render(runCtx, req)
	}
	if err != nil {
		return err
	}
	if stats == nil {
		return nil
	}

	displaySessionStats(stats)

	if out := ctx.String("save"); out != "" {
		if !stats.FinalFrame {
			logger.Warningf("no final frame available; not writing %s", out)
			return nil
		}
		return saveFrame(fb, out)
	}
	return nil
}

// Run the render on a separate goroutine while the window is driven from
// the calling one. Closing the window cancels a render in progress; once the
// render completes the window stays open until dismissed.
func renderWithWindow(ctx context.Context, engine *renderer.Engine, sink *display.Fanout, req renderer.Request) (*renderer.SessionStats, error) {
	win := window.New(fmt.Sprintf("mtsblend - %s", req.Scene), req.Width, req.Height)
	detach := sink.Attach(win)
	defer detach()

	renderCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		stats *renderer.SessionStats
		err   error
	}
	winCtx, closeWin := context.WithCancel(ctx)
	defer closeWin()

	resCh := make(chan result, 1)
	go func() {
		stats, err := engine.Render(renderCtx, req)
		if err != nil || stats == nil {
			// Nothing to show.
			closeWin()
		} else {
			logger.Notice("render complete; close the window to exit")
		}
		resCh <- result{stats, err}
	}()
	go func() {
		select {
		case <-win.Closed():
			cancel()
		case <-renderCtx.Done():
		}
	}()

	if err := win.Run(winCtx); err != nil {
		logger.Warningf("display window unavailable: %s", err)
	}

	res := <-resCh
	return res.stats, res.err
}

func saveFrame(fb *display.Framebuffer, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err = png.Encode(f, fb.Snapshot()); err != nil {
		return fmt.Errorf("error encoding png file: %w", err)
	}
	res := fb.Resolution()
	logger.Noticef("wrote %dx%d frame to %s", res.X, res.Y, path)
	return nil
}

func displaySessionStats(stats *renderer.SessionStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Session", "Kind", "State", "Exit code", "Polls", "Frames shown", "Render time"})
	table.Append([]string{
		stats.Id,
		stats.Kind.String(),
		stats.State.String(),
		fmt.Sprintf("%d", stats.ExitCode),
		fmt.Sprintf("%d", stats.Ticks),
		fmt.Sprintf("%d (%d skipped)", stats.FramesPushed, stats.FramesSkipped),
		fmt.Sprintf("%s", stats.RenderTime),
	})
	table.SetFooter([]string{"", "", "", "", "", "FINAL FRAME", fmt.Sprintf("%t", stats.FinalFrame)})

	table.Render()
	logger.Noticef("session statistics\n%s", buf.String())
}
