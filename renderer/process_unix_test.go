//go:build !windows

package renderer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitDone(t *testing.T, p Process) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("timeout waiting for process to exit")
	}
}

func TestExecLauncherExitCodes(t *testing.T) {
	type spec struct {
		body    string
		expCode int
	}
	specs := []spec{
		{"exit 0", 0},
		{"exit 3", 3},
		{"echo failing >&2; exit 1", 1},
	}

	dir := t.TempDir()
	for index, s := range specs {
		var stderr bytes.Buffer
		script := writeScript(t, dir, "mitsuba", s.body)

		proc, err := ExecLauncher{Stderr: &stderr}.Launch(&Invocation{Binary: script, Dir: dir})
		if err != nil {
			t.Fatalf("[spec %d] %s", index, err)
		}
		if proc.Pid() <= 0 {
			t.Fatalf("[spec %d] expected a valid pid", index)
		}
		waitDone(t, proc)

		if code := proc.ExitCode(); code != s.expCode {
			t.Fatalf("[spec %d] expected exit code %d; got %d", index, s.expCode, code)
		}
	}
}

func TestExecLauncherEnvironmentAndDir(t *testing.T) {
	const key = "MTSBLEND_PROCESS_TEST"
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	script := writeScript(t, dir, "mitsuba", `printf '%s:%s' "$`+key+`" "$(pwd)" > "$1"`)

	inv := &Invocation{
		Binary: script,
		Args:   []string{out},
		Env:    Environment{}.With(key, "overlay"),
		Dir:    dir,
	}
	proc, err := ExecLauncher{}.Launch(inv)
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, proc)

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}

	realDir, _ := filepath.EvalSymlinks(dir)
	exp1, exp2 := "overlay:"+dir, "overlay:"+realDir
	if got := string(data); got != exp1 && got != exp2 {
		t.Fatalf("expected %q; got %q", exp1, got)
	}
	if _, set := os.LookupEnv(key); set {
		t.Fatal("expected the parent environment to be left untouched")
	}
}

func TestExecLauncherTerminate(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "mitsuba", "exec sleep 30")

	proc, err := ExecLauncher{}.Launch(&Invocation{Binary: script, Dir: dir})
	if err != nil {
		t.Fatal(err)
	}

	if err = proc.Terminate(); err != nil {
		t.Fatal(err)
	}
	waitDone(t, proc)

	if code := proc.ExitCode(); code != -1 {
		t.Fatalf("expected signalled process to report exit code -1; got %d", code)
	}

	// Subsequent calls are no-ops.
	if err = proc.Terminate(); err != nil {
		t.Fatalf("expected repeated terminate to be a no-op; got %v", err)
	}
}

func TestExecLauncherTerminateAfterExit(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "mitsuba", "exit 0")

	proc, err := ExecLauncher{}.Launch(&Invocation{Binary: script, Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	waitDone(t, proc)

	if err = proc.Terminate(); err != nil {
		t.Fatalf("expected terminating an exited process to be a no-op; got %v", err)
	}
}

func TestExecLauncherStartFailure(t *testing.T) {
	_, err := ExecLauncher{}.Launch(&Invocation{Binary: filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error; got %v", err)
	}
}

// A full frame render against a stand-in renderer that copies a prepared
// frame to the requested output file.
func TestEngineWithExecLauncher(t *testing.T) {
	f := newEngineFixture(t, nil)

	frame := filepath.Join(t.TempDir(), "frame.png")
	writeTestFrame(t, frame)
	t.Setenv("MTSBLEND_TEST_FRAME", frame)

	// Args: -r1 -o <output> -Dfoo=bar <scene>
	writeScript(t, f.installDir, "mitsuba", `cp "$MTSBLEND_TEST_FRAME" "$3"`)

	f.engine.launcher = ExecLauncher{}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	stats, err := f.engine.Render(ctx, f.frameRequest(5))
	if err != nil {
		t.Fatal(err)
	}

	if stats.State != Finished || stats.ExitCode != 0 || !stats.FinalFrame {
		t.Fatalf("unexpected session stats %+v", stats)
	}
	if _, flushes := f.sink.counts(); flushes != 1 {
		t.Fatalf("expected a single final flush; got %d", flushes)
	}
	if _, err = os.Stat(filepath.Join(f.outputDir, "cube.Scene.00005.png")); err != nil {
		t.Fatalf("expected render output to exist: %s", err)
	}
}
