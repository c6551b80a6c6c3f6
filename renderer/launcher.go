package renderer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Shared library directories of a Mitsuba source build, relative to the
// installation directory.
var libraryDirs = []string{
	filepath.Join("src", "libcore"),
	filepath.Join("src", "librender"),
	filepath.Join("src", "libhw"),
	filepath.Join("src", "libbidir"),
}

// A -D<key>=<value> scene parameter.
type Define struct {
	Key   string
	Value string
}

func (d Define) String() string {
	return "-D" + d.Key + "=" + d.Value
}

// ParseDefines parses KEY=VALUE scene parameters.
func ParseDefines(values []string) ([]Define, error) {
	var defines []Define
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: invalid scene parameter %q; expected KEY=VALUE", ErrConfiguration, v)
		}
		defines = append(defines, Define{Key: key, Value: value})
	}
	return defines, nil
}

// LaunchParams describe a single renderer invocation.
type LaunchParams struct {
	// Suppress renderer progress output (-q).
	Quiet bool

	// Interval at which the renderer rewrites its output file (-r). Zero
	// leaves the renderer default in place.
	RefreshInterval time.Duration

	OutputFile string
	SceneFile  string
	Defines    []Define
}

// Invocation is a fully resolved command ready to be spawned.
type Invocation struct {
	Binary string
	Args   []string
	Env    Environment
	Dir    string
}

// CommandLine renders the invocation for log output.
func (inv *Invocation) CommandLine() string {
	return strings.Join(append([]string{inv.Binary}, inv.Args...), " ")
}

// Installation is a validated Mitsuba installation directory.
type Installation struct {
	Dir string
}

// Validate the Mitsuba installation at dir.
func ResolveInstallation(dir string) (Installation, error) {
	if strings.TrimSpace(dir) == "" {
		return Installation{}, ErrBinaryPathUnspecified
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return Installation{}, fmt.Errorf("%w: invalid binary path %q: %s", ErrConfiguration, dir, err)
	}

	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return Installation{}, fmt.Errorf("%w: binary path %q is not a directory", ErrConfiguration, dir)
	}

	inst := Installation{Dir: abs}
	info, err = os.Stat(inst.RendererBinary())
	if err != nil || info.IsDir() {
		return Installation{}, fmt.Errorf("%w: renderer executable not found at %s", ErrConfiguration, inst.RendererBinary())
	}
	return inst, nil
}

// Path to the command line renderer.
func (in Installation) RendererBinary() string {
	return filepath.Join(in.Dir, "mitsuba"+exeSuffix)
}

// Path to the interactive renderer.
func (in Installation) GUIBinary() string {
	return filepath.Join(in.Dir, "mtsgui"+exeSuffix)
}

// Environment returns the overlay that points the platform loader at the
// installation's shared libraries. An existing value in base is kept after
// the installation directories.
func (in Installation) Environment(base []string) Environment {
	dirs := make([]string, 0, len(libraryDirs)+1)
	for _, dir := range libraryDirs {
		dirs = append(dirs, filepath.Join(in.Dir, dir))
	}
	if cur, ok := lookupBase(base, libraryPathVar); ok && cur != "" {
		dirs = append(dirs, cur)
	}
	return Environment{}.With(libraryPathVar, strings.Join(dirs, string(os.PathListSeparator)))
}

// Build the invocation:
//
//	mitsuba [-q] [-r<interval>] -o <output_file> [-D<key>=<value> ...] <scene_file>
func (in Installation) RenderInvocation(p LaunchParams, base []string) (*Invocation, error) {
	if p.SceneFile == "" {
		return nil, fmt.Errorf("%w: missing scene file", ErrConfiguration)
	}
	if p.OutputFile == "" {
		return nil, fmt.Errorf("%w: missing output file", ErrConfiguration)
	}

	var args []string
	if p.Quiet {
		args = append(args, "-q")
	}
	if p.RefreshInterval > 0 {
		args = append(args, fmt.Sprintf("-r%d", refreshSeconds(p.RefreshInterval)))
	}
	args = append(args, "-o", p.OutputFile)
	for _, d := range p.Defines {
		args = append(args, d.String())
	}
	args = append(args, p.SceneFile)

	return &Invocation{
		Binary: in.RendererBinary(),
		Args:   args,
		Env:    in.Environment(base),
		Dir:    in.Dir,
	}, nil
}

// Build an invocation that opens sceneFile in the interactive renderer.
func (in Installation) GUIInvocation(sceneFile string, base []string) *Invocation {
	return &Invocation{
		Binary: in.GUIBinary(),
		Args:   []string{sceneFile},
		Env:    in.Environment(base),
		Dir:    in.Dir,
	}
}

// The renderer accepts whole seconds only.
func refreshSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
