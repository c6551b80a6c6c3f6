package renderer

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/achilleasa/mtsblend/config"
	"github.com/achilleasa/mtsblend/display"
	"github.com/achilleasa/mtsblend/export"
	"github.com/achilleasa/mtsblend/log"
)

// Preview renders at this resolution are material thumbnails and are skipped.
var previewIconSize = image.Pt(96, 96)

const (
	previewScene   = "matpreview/matpreview.xml"
	previewOutput  = "matpreview.png"
	previewRefresh = time.Second
)

// An Exporter stages the scene descriptions consumed by the renderer.
type Exporter interface {
	ExportScene(ctx context.Context, req export.SceneRequest) (string, error)
	ExportMaterials(ctx context.Context, req export.MaterialRequest) (string, error)
}

// A Request describes a single render invocation.
type Request struct {
	// Scene name and frame number; both end up in the exported file name.
	Scene string
	Frame int

	// Project name used as the exported file name prefix. Defaults to the
	// scene source file name.
	Project string

	// Output resolution.
	Width  int
	Height int

	// Render output location: either a directory or a file path whose
	// parent directory is used.
	OutputPath string

	// Previously exported scene (frame renders) or material (previews)
	// description; a local path or http(s) URL.
	SceneSource    string
	MaterialSource string

	// Render a material preview instead of a frame.
	Preview bool

	// Additional scene parameters passed to the renderer.
	Defines []Define
}

// Engine serializes render requests and runs one supervised session at a time.
type Engine struct {
	mu sync.Mutex

	opts     Options
	launcher Launcher
	exporter Exporter
	sink     display.Sink
	notifier Notifier
	logger   log.Logger

	// Base environment the renderer overlay is applied to.
	environ func() []string
}

// Create a new engine. A nil notifier reports through the engine logger.
func NewEngine(opts Options, launcher Launcher, exporter Exporter, sink display.Sink, notifier Notifier) *Engine {
	logger := log.New("engine")
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = time.Second
	}
	if opts.ExportMode == "" {
		opts.ExportMode = config.ExportRender
	}
	if opts.RenderMode == "" {
		opts.RenderMode = config.RenderCLI
	}

	return &Engine{
		opts:     opts,
		launcher: launcher,
		exporter: exporter,
		sink:     sink,
		notifier: notifier,
		logger:   logger,
		environ:  os.Environ,
	}
}

// Render runs req to completion. Concurrent calls are serialized. Errors are
// reported through the notifier and returned; a nil stats value means no
// supervised session was run (export only, GUI launch or skipped preview).
func (e *Engine) Render(ctx context.Context, req Request) (*SessionStats, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if strings.TrimSpace(req.Scene) == "" {
		return nil, e.fail(ErrSceneNotDefined, "Scene to render is not valid")
	}
	if req.Width <= 0 || req.Height <= 0 {
		return nil, e.fail(fmt.Errorf("%w: invalid resolution %dx%d", ErrConfiguration, req.Width, req.Height), "")
	}

	inst, err := ResolveInstallation(e.opts.BinaryPath)
	if err != nil {
		return nil, e.fail(err, "")
	}

	if req.Preview {
		return e.renderPreview(ctx, inst, req)
	}
	return e.renderFrame(ctx, inst, req)
}

func (e *Engine) renderFrame(ctx context.Context, inst Installation, req Request) (*SessionStats, error) {
	outputDir, err := resolveOutputDir(req.OutputPath)
	if err != nil {
		return nil, e.fail(err, "")
	}
	e.logger.Infof("current directory = %q", outputDir)

	scenePath, err := e.exporter.ExportScene(ctx, export.SceneRequest{
		Source: req.SceneSource,
		Dir:    outputDir,
		Name:   exportBasename(req),
	})
	if err != nil {
		e.logger.Errorf("export failed: %s", err)
		return nil, e.fail(fmt.Errorf("%w: %s", ErrExport, err), "Error while exporting -- check the console for details.")
	}

	if e.opts.ExportMode == config.ExportOnly {
		e.logger.Noticef("scene exported to %s", scenePath)
		return nil, nil
	}

	if e.opts.RenderMode == config.RenderGUI {
		return nil, e.launchGUI(inst, scenePath)
	}

	outputFile := strings.TrimSuffix(scenePath, ".xml") + ".png"
	inv, err := inst.RenderInvocation(LaunchParams{
		RefreshInterval: e.opts.RefreshInterval,
		OutputFile:      outputFile,
		SceneFile:       scenePath,
		Defines:         req.Defines,
	}, e.environ())
	if err != nil {
		return nil, e.fail(err, "")
	}

	return e.runSession(ctx, SessionOptions{
		Kind:            FrameRender,
		Invocation:      inv,
		OutputFile:      outputFile,
		RefreshInterval: e.opts.RefreshInterval,
		KickPeriod:      e.opts.KickPeriod,
		Resolution:      image.Pt(req.Width, req.Height),
	})
}

func (e *Engine) renderPreview(ctx context.Context, inst Installation, req Request) (*SessionStats, error) {
	if image.Pt(req.Width, req.Height) == previewIconSize {
		e.logger.Debugf("skipping %dx%d preview", req.Width, req.Height)
		return nil, nil
	}
	if e.opts.PluginDir == "" {
		return nil, e.fail(ErrPluginDirUnspecified, "")
	}

	sceneFile := filepath.Join(e.opts.PluginDir, filepath.FromSlash(previewScene))
	if _, err := os.Stat(sceneFile); err != nil {
		return nil, e.fail(fmt.Errorf("%w: preview scene not found at %s", ErrConfiguration, sceneFile), "")
	}

	tempDir, err := os.MkdirTemp("", "mtsblend-preview-")
	if err != nil {
		return nil, e.fail(fmt.Errorf("%w: could not create preview directory: %s", ErrConfiguration, err), "")
	}
	defer os.RemoveAll(tempDir)

	matFile, err := e.exporter.ExportMaterials(ctx, export.MaterialRequest{Source: req.MaterialSource, Dir: tempDir})
	if err != nil {
		e.logger.Errorf("material export failed: %s", err)
		return nil, e.fail(fmt.Errorf("%w: %s", ErrExport, err), "Error while exporting -- check the console for details.")
	}

	outputFile := filepath.Join(tempDir, previewOutput)
	defines := append([]Define{
		{Key: "matfile", Value: matFile},
		{Key: "width", Value: strconv.Itoa(req.Width)},
		{Key: "height", Value: strconv.Itoa(req.Height)},
		{Key: "spp", Value: strconv.Itoa(e.opts.PreviewSPP)},
		{Key: "depth", Value: strconv.Itoa(e.opts.PreviewDepth)},
	}, req.Defines...)

	inv, err := inst.RenderInvocation(LaunchParams{
		Quiet:           true,
		RefreshInterval: previewRefresh,
		OutputFile:      outputFile,
		SceneFile:       sceneFile,
		Defines:         defines,
	}, e.environ())
	if err != nil {
		return nil, e.fail(err, "")
	}

	return e.runSession(ctx, SessionOptions{
		Kind:            PreviewRender,
		Invocation:      inv,
		OutputFile:      outputFile,
		RefreshInterval: previewRefresh,
		Resolution:      image.Pt(req.Width, req.Height),
	})
}

func (e *Engine) runSession(ctx context.Context, opts SessionOptions) (*SessionStats, error) {
	stats, err := NewSession(opts, e.launcher, e.sink, e.notifier).Run(ctx)
	return &stats, err
}

// The interactive renderer is started and left running on its own.
func (e *Engine) launchGUI(inst Installation, scenePath string) error {
	e.logger.Notice("launching interactive renderer")
	proc, err := e.launcher.Launch(inst.GUIInvocation(scenePath, e.environ()))
	if err != nil {
		return e.fail(err, "")
	}
	e.logger.Infof("interactive renderer running (pid %d)", proc.Pid())
	return nil
}

// Report err to the user. An empty message reports the error text.
func (e *Engine) fail(err error, msg string) error {
	if msg == "" {
		msg = err.Error()
	}
	e.notifier.Notify(SeverityError, msg)
	return err
}

func resolveOutputDir(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: missing output path", ErrConfiguration)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: invalid output path %q: %s", ErrConfiguration, path, err)
	}

	dir := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
	}

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: output directory %q does not exist", ErrConfiguration, dir)
	}
	return dir, nil
}

// <project>.<scene>.<frame:05d>
func exportBasename(req Request) string {
	project := req.Project
	if project == "" {
		project = strings.TrimSuffix(filepath.Base(req.SceneSource), filepath.Ext(req.SceneSource))
	}
	if project == "" || project == "." || project == "/" {
		project = "untitled"
	}
	return fmt.Sprintf("%s.%s.%05d", project, req.Scene, req.Frame)
}
