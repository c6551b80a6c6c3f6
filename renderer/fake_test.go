package renderer

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type fakeProcess struct {
	pid  int
	done chan struct{}
	once sync.Once

	mu           sync.Mutex
	exitCode     int
	waitErr      error
	terminations int
	exitedAt     time.Time

	// Delay between a termination signal and the process exiting.
	termDelay time.Duration
	onExit    func()
}

func newFakeProcess(pid int) *fakeProcess {
	return &fakeProcess{pid: pid, done: make(chan struct{}), exitCode: -1}
}

func (p *fakeProcess) exit(code int) {
	p.once.Do(func() {
		p.mu.Lock()
		p.exitCode = code
		p.exitedAt = time.Now()
		onExit := p.onExit
		p.mu.Unlock()
		close(p.done)
		if onExit != nil {
			onExit()
		}
	})
}

func (p *fakeProcess) exitAfter(d time.Duration, code int) *fakeProcess {
	go func() {
		time.Sleep(d)
		p.exit(code)
	}()
	return p
}

func (p *fakeProcess) Pid() int              { return p.pid }
func (p *fakeProcess) Done() <-chan struct{} { return p.done }

func (p *fakeProcess) ExitCode() int {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

func (p *fakeProcess) Err() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	p.terminations++
	delay := p.termDelay
	p.mu.Unlock()

	go func() {
		time.Sleep(delay)
		p.exit(-1)
	}()
	return nil
}

func (p *fakeProcess) stats() (terminations int, exitedAt time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminations, p.exitedAt
}

type fakeLauncher struct {
	mu          sync.Mutex
	invocations []*Invocation
	spawn       func(inv *Invocation) *fakeProcess
	err         error
}

func (l *fakeLauncher) Launch(inv *Invocation) (Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return nil, l.err
	}
	l.invocations = append(l.invocations, inv)
	return l.spawn(inv), nil
}

func (l *fakeLauncher) launched() []*Invocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Invocation(nil), l.invocations...)
}

type countingSink struct {
	mu      sync.Mutex
	updates int
	flushes int
}

func (s *countingSink) Update(image.Image) error {
	s.mu.Lock()
	s.updates++
	s.mu.Unlock()
	return nil
}

func (s *countingSink) Flush(image.Image) error {
	s.mu.Lock()
	s.flushes++
	s.mu.Unlock()
	return nil
}

func (s *countingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates, s.flushes
}

type message struct {
	severity Severity
	text     string
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []message
}

func (n *recordingNotifier) Notify(severity Severity, msg string) {
	n.mu.Lock()
	n.messages = append(n.messages, message{severity, msg})
	n.mu.Unlock()
}

func (n *recordingNotifier) errors() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.messages {
		if m.severity == SeverityError {
			out = append(out, m.text)
		}
	}
	return out
}

func writeTestFrame(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err = png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// Create a fake Mitsuba installation directory.
func fakeInstallation(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range []string{"mitsuba" + exeSuffix, "mtsgui" + exeSuffix} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("#!/bin/sh\n"), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}
