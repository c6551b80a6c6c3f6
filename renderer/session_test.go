package renderer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sessionFixture(t *testing.T, refresh time.Duration, spawn func(*Invocation) *fakeProcess) (SessionOptions, *fakeLauncher, *countingSink, *recordingNotifier) {
	t.Helper()
	output := filepath.Join(t.TempDir(), "frame.png")
	opts := SessionOptions{
		Kind: FrameRender,
		Invocation: &Invocation{
			Binary: "mitsuba",
			Args:   []string{"-o", output, "scene.xml"},
		},
		OutputFile:      output,
		RefreshInterval: refresh,
	}
	return opts, &fakeLauncher{spawn: spawn}, &countingSink{}, &recordingNotifier{}
}

func TestSessionFinished(t *testing.T) {
	opts, launcher, sink, notifier := sessionFixture(t, 10*time.Millisecond, func(*Invocation) *fakeProcess {
		return newFakeProcess(1).exitAfter(50*time.Millisecond, 0)
	})
	writeTestFrame(t, opts.OutputFile)

	stats, err := NewSession(opts, launcher, sink, notifier).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if stats.State != Finished || stats.ExitCode != 0 {
		t.Fatalf("expected finished session with exit code 0; got %s/%d", stats.State, stats.ExitCode)
	}
	if _, flushes := sink.counts(); flushes != 1 {
		t.Fatalf("expected exactly one final flush; got %d", flushes)
	}
	if !stats.FinalFrame || stats.Terminations != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if errs := notifier.errors(); len(errs) != 0 {
		t.Fatalf("expected a finished session to be reported silently; got %v", errs)
	}
	if stats.Id == "" {
		t.Fatal("expected session to be assigned an id")
	}
}

func TestSessionFailed(t *testing.T) {
	opts, launcher, sink, notifier := sessionFixture(t, 10*time.Millisecond, func(*Invocation) *fakeProcess {
		return newFakeProcess(1).exitAfter(20*time.Millisecond, 3)
	})
	writeTestFrame(t, opts.OutputFile)

	stats, err := NewSession(opts, launcher, sink, notifier).Run(context.Background())
	if !errors.Is(err, ErrProcessFailure) {
		t.Fatalf("expected ErrProcessFailure; got %v", err)
	}
	if stats.State != Failed || stats.ExitCode != 3 {
		t.Fatalf("expected failed session with exit code 3; got %s/%d", stats.State, stats.ExitCode)
	}
	if _, flushes := sink.counts(); flushes != 0 {
		t.Fatalf("expected no final flush for a failed session; got %d", flushes)
	}
	if errs := notifier.errors(); len(errs) != 1 || errs[0] != failureMessage {
		t.Fatalf("expected a single failure message; got %v", errs)
	}
}

func TestSessionCancelled(t *testing.T) {
	var proc *fakeProcess
	opts, launcher, sink, notifier := sessionFixture(t, 10*time.Millisecond, func(*Invocation) *fakeProcess {
		proc = newFakeProcess(1)
		proc.termDelay = 60 * time.Millisecond
		return proc
	})
	writeTestFrame(t, opts.OutputFile)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(40 * time.Millisecond)
		cancel()
	}()

	stats, err := NewSession(opts, launcher, sink, notifier).Run(ctx)
	returnedAt := time.Now()
	if err != nil {
		t.Fatalf("expected cancellation not to be an error; got %v", err)
	}

	if stats.State != Cancelled {
		t.Fatalf("expected cancelled session; got %s", stats.State)
	}

	terminations, exitedAt := proc.stats()
	if terminations != 1 || stats.Terminations != 1 {
		t.Fatalf("expected exactly one termination signal; got %d (stats %d)", terminations, stats.Terminations)
	}
	if exitedAt.IsZero() || returnedAt.Before(exitedAt) {
		t.Fatal("expected session to end only after the process exited")
	}
	if _, flushes := sink.counts(); flushes != 1 {
		t.Fatalf("expected the final frame to be loaded for a cancelled session; got %d flushes", flushes)
	}
	if errs := notifier.errors(); len(errs) != 0 {
		t.Fatalf("expected cancellation to be silent; got %v", errs)
	}
}

func TestSessionCancelledAfterExit(t *testing.T) {
	var proc *fakeProcess
	ctx, cancel := context.WithCancel(context.Background())
	opts, launcher, sink, notifier := sessionFixture(t, time.Hour, func(*Invocation) *fakeProcess {
		proc = newFakeProcess(1)
		proc.onExit = cancel
		return proc.exitAfter(10*time.Millisecond, 0)
	})

	stats, err := NewSession(opts, launcher, sink, notifier).Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if terminations, _ := proc.stats(); terminations != 0 {
		t.Fatalf("expected no termination signal for an exited process; got %d", terminations)
	}
	if stats.State != Finished {
		t.Fatalf("expected finished session; got %s", stats.State)
	}
}

func TestSessionPollCadence(t *testing.T) {
	type spec struct {
		refresh  time.Duration
		lifetime time.Duration
	}
	specs := []spec{
		{10 * time.Millisecond, 105 * time.Millisecond},
		{25 * time.Millisecond, 140 * time.Millisecond},
	}

	for index, s := range specs {
		opts, launcher, sink, notifier := sessionFixture(t, s.refresh, func(*Invocation) *fakeProcess {
			return newFakeProcess(1).exitAfter(s.lifetime, 0)
		})

		stats, err := NewSession(opts, launcher, sink, notifier).Run(context.Background())
		if err != nil {
			t.Fatal(err)
		}

		expTicks := int(s.lifetime / s.refresh)
		if stats.Ticks < expTicks/2 || stats.Ticks > expTicks+1 {
			t.Fatalf("[spec %d] expected ~%d ticks; got %d", index, expTicks, stats.Ticks)
		}
	}
}

func TestSessionLaunchFailure(t *testing.T) {
	opts, launcher, sink, notifier := sessionFixture(t, 10*time.Millisecond, nil)
	launcher.err = ErrBinaryPathUnspecified

	stats, err := NewSession(opts, launcher, sink, notifier).Run(context.Background())
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error; got %v", err)
	}
	if stats.State != Pending {
		t.Fatalf("expected session to never leave the pending state; got %s", stats.State)
	}
	if len(notifier.errors()) != 1 {
		t.Fatal("expected launch failure to be reported")
	}
}

func TestSessionRunsOnce(t *testing.T) {
	opts, launcher, sink, notifier := sessionFixture(t, 10*time.Millisecond, func(*Invocation) *fakeProcess {
		return newFakeProcess(1).exitAfter(0, 0)
	})

	s := NewSession(opts, launcher, sink, notifier)
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); err != ErrSessionDone {
		t.Fatalf("expected ErrSessionDone; got %v", err)
	}
	if n := len(launcher.launched()); n != 1 {
		t.Fatalf("expected a single launch; got %d", n)
	}
}

func TestSessionRejectsInvalidOptions(t *testing.T) {
	opts, launcher, sink, notifier := sessionFixture(t, 0, nil)
	if _, err := NewSession(opts, launcher, sink, notifier).Run(context.Background()); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error for a zero refresh interval; got %v", err)
	}
	if len(launcher.launched()) != 0 {
		t.Fatal("expected no process to be launched")
	}
}

func TestSessionReportsWaitError(t *testing.T) {
	opts, launcher, sink, notifier := sessionFixture(t, 10*time.Millisecond, func(*Invocation) *fakeProcess {
		p := newFakeProcess(1)
		p.waitErr = errors.New("wait: no child processes")
		return p.exitAfter(10*time.Millisecond, -1)
	})

	_, err := NewSession(opts, launcher, sink, notifier).Run(context.Background())
	if !errors.Is(err, ErrProcessFailure) {
		t.Fatalf("expected ErrProcessFailure; got %v", err)
	}
	if !strings.Contains(err.Error(), "no child processes") {
		t.Fatalf("expected the wait error to be included; got %v", err)
	}
}

func TestSessionWithoutNotifier(t *testing.T) {
	opts, launcher, sink, _ := sessionFixture(t, 10*time.Millisecond, func(*Invocation) *fakeProcess {
		return newFakeProcess(1).exitAfter(10*time.Millisecond, 2)
	})

	stats, err := NewSession(opts, launcher, sink, nil).Run(context.Background())
	if !errors.Is(err, ErrProcessFailure) || stats.State != Failed {
		t.Fatalf("expected a failed session reported through the logger; got %s, %v", stats.State, err)
	}

	launcher.err = ErrBinaryPathUnspecified
	if _, err = NewSession(opts, launcher, sink, nil).Run(context.Background()); !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration error; got %v", err)
	}
}

func TestStateTerminal(t *testing.T) {
	type spec struct {
		state State
		exp   bool
	}
	specs := []spec{
		{Pending, false},
		{Running, false},
		{Cancelled, true},
		{Finished, true},
		{Failed, true},
	}

	for index, s := range specs {
		if got := s.state.Terminal(); got != s.exp {
			t.Fatalf("[spec %d] expected %s terminal=%t; got %t", index, s.state, s.exp, got)
		}
	}
}
