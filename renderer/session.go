package renderer

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/achilleasa/mtsblend/display"
	"github.com/achilleasa/mtsblend/log"
	"github.com/google/uuid"
)

const failureMessage = "rendering failed -- check the console"

// SessionOptions configure a single supervised renderer run.
type SessionOptions struct {
	Kind       Kind
	Invocation *Invocation

	// The file the renderer writes its progressive output to.
	OutputFile string

	// Poll loop period.
	RefreshInterval time.Duration

	// Display update period; defaults to RefreshInterval.
	KickPeriod time.Duration

	// Display resolution; frames of a different size are resampled.
	Resolution image.Point
}

// A Session launches the renderer, supervises it until it exits or the
// context is cancelled and streams its output to a display sink.
type Session struct {
	opts     SessionOptions
	launcher Launcher
	sink     display.Sink
	notifier Notifier
	logger   log.Logger

	mu    sync.Mutex
	stats SessionStats
}

// Create a new session. The session does not start until Run is called.
func NewSession(opts SessionOptions, launcher Launcher, sink display.Sink, notifier Notifier) *Session {
	if opts.KickPeriod <= 0 {
		opts.KickPeriod = opts.RefreshInterval
	}

	logger := log.New("session")
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	return &Session{
		opts:     opts,
		launcher: launcher,
		sink:     sink,
		notifier: notifier,
		logger:   logger,
		stats: SessionStats{
			Id:       uuid.NewString(),
			Kind:     opts.Kind,
			State:    Pending,
			ExitCode: -1,
		},
	}
}

func (s *Session) Id() string {
	return s.stats.Id
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.State
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run the session to completion. Cancelling ctx terminates the renderer;
// Run still waits for it to exit. The returned error is nil for finished and
// cancelled sessions.
func (s *Session) Run(ctx context.Context) (SessionStats, error) {
	if st := s.State(); st.Terminal() {
		return s.Stats(), ErrSessionDone
	} else if st != Pending {
		return s.Stats(), ErrSessionRunning
	}
	if s.opts.Invocation == nil || s.opts.OutputFile == "" {
		return s.Stats(), fmt.Errorf("%w: incomplete session options", ErrConfiguration)
	}
	if s.opts.RefreshInterval <= 0 {
		return s.Stats(), fmt.Errorf("%w: refresh interval must be positive", ErrConfiguration)
	}

	stream := display.NewStream(
		s.opts.OutputFile,
		s.sink,
		display.WithResolution(s.opts.Resolution.X, s.opts.Resolution.Y),
		display.WithLogger(s.logger),
	)
	stream.SetKickPeriod(s.opts.KickPeriod)

	s.logger.Infof("[%s] launching %s", s.Id(), s.opts.Invocation.CommandLine())
	proc, err := s.launcher.Launch(s.opts.Invocation)
	if err != nil {
		s.notifier.Notify(SeverityError, err.Error())
		return s.Stats(), err
	}

	s.mu.Lock()
	s.stats.State = Running
	s.stats.StartedAt = time.Now()
	s.mu.Unlock()
	s.logger.Noticef("[%s] %s render started (pid %d)", s.Id(), s.opts.Kind, proc.Pid())

	if err = stream.Start(); err != nil {
		s.logger.Warningf("[%s] display updates disabled: %s", s.Id(), err)
	} else {
		s.logger.Debugf("[%s] streaming %s to the display", s.Id(), stream.Path())
	}

	state := s.poll(ctx, proc)
	return s.finalize(state, proc, stream)
}

// poll blocks until the renderer exits, terminating it first if ctx is
// cancelled.
func (s *Session) poll(ctx context.Context, proc Process) State {
	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-proc.Done():
			return exitState(proc.ExitCode())
		case <-ctx.Done():
			// The renderer may have exited in the meantime.
			select {
			case <-proc.Done():
				return exitState(proc.ExitCode())
			default:
			}

			s.logger.Noticef("[%s] render cancelled; terminating renderer", s.Id())
			s.mu.Lock()
			s.stats.Terminations++
			s.mu.Unlock()
			if err := proc.Terminate(); err != nil {
				s.logger.Warningf("[%s] could not signal renderer: %s", s.Id(), err)
			}
			<-proc.Done()
			return Cancelled
		case <-ticker.C:
			s.mu.Lock()
			s.stats.Ticks++
			s.mu.Unlock()
			s.logger.Debugf("[%s] renderer still running", s.Id())
		}
	}
}

func exitState(code int) State {
	if code == 0 {
		return Finished
	}
	return Failed
}

// finalize stops the output stream, loads the final frame for sessions
// that did not fail and reports failures.
func (s *Session) finalize(state State, proc Process, stream *display.Stream) (SessionStats, error) {
	stream.Stop()

	var err error
	if state == Failed {
		s.notifier.Notify(SeverityError, failureMessage)
		if waitErr := proc.Err(); waitErr != nil {
			err = fmt.Errorf("%w: renderer exited with code %d: %s", ErrProcessFailure, proc.ExitCode(), waitErr)
		} else {
			err = fmt.Errorf("%w: renderer exited with code %d", ErrProcessFailure, proc.ExitCode())
		}
	} else if kickErr := stream.Kick(true); kickErr != nil {
		s.logger.Warningf("[%s] could not load final frame: %s", s.Id(), kickErr)
	}

	streamStats := stream.Stats()

	s.mu.Lock()
	s.stats.State = state
	s.stats.ExitCode = proc.ExitCode()
	s.stats.FramesPushed = streamStats.Pushed
	s.stats.FramesSkipped = streamStats.Skipped
	s.stats.FinalFrame = streamStats.FinalFrame
	s.stats.RenderTime = time.Since(s.stats.StartedAt)
	stats := s.stats
	s.mu.Unlock()

	s.logger.Noticef("[%s] %s render %s in %s", stats.Id, stats.Kind, stats.State, stats.RenderTime)
	return stats, err
}
