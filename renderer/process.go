package renderer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// A Process is a spawned renderer.
type Process interface {
	Pid() int

	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}

	// ExitCode is valid after Done is closed; -1 if the process was killed
	// by a signal or could not be waited on.
	ExitCode() int

	// Terminate sends the termination signal. Only the first call signals.
	Terminate() error

	// Err is valid after Done is closed; non-nil if the process could not
	// be waited on.
	Err() error
}

// A Launcher spawns invocations without waiting for them to complete.
type Launcher interface {
	Launch(inv *Invocation) (Process, error)
}

// ExecLauncher spawns processes with os/exec. Renderer console output is
// forwarded to Stdout/Stderr when set.
type ExecLauncher struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (l ExecLauncher) Launch(inv *Invocation) (Process, error) {
	cmd := exec.Command(inv.Binary, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env.Apply(os.Environ())
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: could not start %s: %s", ErrConfiguration, inv.Binary, err)
	}

	p := &execProcess{
		cmd:      cmd,
		done:     make(chan struct{}),
		exitCode: -1,
	}
	go p.wait()
	return p, nil
}

type execProcess struct {
	cmd  *exec.Cmd
	done chan struct{}

	exitCode int
	waitErr  error

	termOnce sync.Once
	termErr  error
}

func (p *execProcess) wait() {
	err := p.cmd.Wait()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		p.exitCode = 0
	case errors.As(err, &exitErr):
		p.exitCode = exitErr.ExitCode()
	default:
		p.waitErr = err
	}
	close(p.done)
}

func (p *execProcess) Pid() int {
	return p.cmd.Process.Pid
}

func (p *execProcess) Done() <-chan struct{} {
	return p.done
}

func (p *execProcess) ExitCode() int {
	<-p.done
	return p.exitCode
}

func (p *execProcess) Err() error {
	<-p.done
	return p.waitErr
}

func (p *execProcess) Terminate() error {
	p.termOnce.Do(func() {
		select {
		case <-p.done:
			return
		default:
		}
		p.termErr = terminate(p.cmd.Process)
	})
	return p.termErr
}
