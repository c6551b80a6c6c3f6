package display

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/achilleasa/mtsblend/log"
	"github.com/fsnotify/fsnotify"
	xdraw "golang.org/x/image/draw"
)

var (
	ErrInvalidKickPeriod = errors.New("display: kick period must be positive")
)

// Stream counters.
type Stats struct {
	// Intermediate frames pushed to the sink.
	Pushed int

	// Periodic kicks that found no new or no readable frame.
	Skipped int

	// Number of forced render_end reads and whether one reached the sink.
	Flushes    int
	FinalFrame bool
}

// A Stream periodically reads the renderer's output file and pushes its
// contents to a Sink. It tolerates the file being absent or half-written.
type Stream struct {
	path       string
	resolution image.Point
	kickPeriod time.Duration
	sink       Sink
	decode     Decoder
	logger     log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	watcher *fsnotify.Watcher

	// Serializes kicks and guards the fields below.
	kickMu   sync.Mutex
	lastMod  time.Time
	lastSize int64
	stats    Stats

	dirty atomic.Bool
}

type Option func(*Stream)

// Resample frames to this resolution before pushing them.
func WithResolution(width, height int) Option {
	return func(s *Stream) {
		s.resolution = image.Pt(width, height)
	}
}

// Override the frame decoder.
func WithDecoder(d Decoder) Option {
	return func(s *Stream) {
		if d != nil {
			s.decode = d
		}
	}
}

func WithLogger(l log.Logger) Option {
	return func(s *Stream) {
		if l != nil {
			s.logger = l
		}
	}
}

// Create a stream for outputFile. The kick period defaults to one second.
func NewStream(outputFile string, sink Sink, opts ...Option) *Stream {
	path, err := filepath.Abs(outputFile)
	if err != nil {
		path = filepath.Clean(outputFile)
	}

	s := &Stream{
		path:       path,
		kickPeriod: time.Second,
		sink:       sink,
		decode:     DecodeFile,
		logger:     log.New("display"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set the interval between display updates. Takes effect on the next Start.
func (s *Stream) SetKickPeriod(period time.Duration) {
	s.mu.Lock()
	s.kickPeriod = period
	s.mu.Unlock()
}

// Path returns the absolute path of the watched output file.
func (s *Stream) Path() string {
	return s.path
}

func (s *Stream) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start the update loop. Calling Start on a running stream is a no-op.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}
	if s.kickPeriod <= 0 {
		return ErrInvalidKickPeriod
	}

	s.watcher = s.watchOutputDir()
	s.stopCh = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.loop(s.stopCh, s.kickPeriod, s.watcher)
	return nil
}

// Stop the update loop and wait for it to exit.
func (s *Stream) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	s.wg.Wait()
	if watcher != nil {
		watcher.Close()
	}
}

// Kick reads the output file and pushes it to the sink. Periodic kicks skip
// unchanged, missing or undecodable files and never return an error for them.
// A render_end kick always re-reads the file and flushes it; its error is
// returned so the caller can report a missing final frame.
func (s *Stream) Kick(renderEnd bool) error {
	s.kickMu.Lock()
	defer s.kickMu.Unlock()

	if renderEnd {
		s.stats.Flushes++
		frame, err := s.decode(s.path)
		if err != nil {
			return err
		}
		if err = s.sink.Flush(s.fit(frame)); err != nil {
			return fmt.Errorf("display: flushing final frame: %w", err)
		}
		s.stats.FinalFrame = true
		return nil
	}

	info, err := os.Stat(s.path)
	if err != nil {
		s.stats.Skipped++
		return nil
	}

	dirty := s.dirty.Swap(false)
	if !dirty && info.ModTime().Equal(s.lastMod) && info.Size() == s.lastSize {
		s.stats.Skipped++
		return nil
	}

	frame, err := s.decode(s.path)
	if err != nil {
		s.logger.Debugf("skipping display update: %s", err)
		s.stats.Skipped++
		return nil
	}

	s.lastMod, s.lastSize = info.ModTime(), info.Size()
	if err = s.sink.Update(s.fit(frame)); err != nil {
		s.logger.Warningf("display update failed: %s", err)
		return nil
	}
	s.stats.Pushed++
	return nil
}

// Stats returns a copy of the stream counters.
func (s *Stream) Stats() Stats {
	s.kickMu.Lock()
	defer s.kickMu.Unlock()
	return s.stats
}

func (s *Stream) loop(stopCh <-chan struct{}, period time.Duration, watcher *fsnotify.Watcher) {
	defer s.wg.Done()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var (
		events <-chan fsnotify.Event
		errs   <-chan error
	)
	if watcher != nil {
		events, errs = watcher.Events, watcher.Errors
	}

	for {
		select {
		case <-stopCh:
			return
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(ev.Name) == s.path && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				s.dirty.Store(true)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			s.logger.Debugf("output watcher error: %s", err)
		case <-ticker.C:
			_ = s.Kick(false)
		}
	}
}

// Without a watcher the stream relies on modification time and size alone.
func (s *Stream) watchOutputDir() *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Debugf("file notifications unavailable: %s", err)
		return nil
	}
	if err = watcher.Add(filepath.Dir(s.path)); err != nil {
		s.logger.Debugf("cannot watch %s: %s", filepath.Dir(s.path), err)
		watcher.Close()
		return nil
	}
	return watcher
}

func (s *Stream) fit(frame image.Image) image.Image {
	// Unset or invalid resolutions keep the renderer's size.
	if s.resolution.X <= 0 || s.resolution.Y <= 0 || frame.Bounds().Size() == s.resolution {
		return frame
	}
	dst := image.NewRGBA(image.Rectangle{Max: s.resolution})
	xdraw.CatmullRom.Scale(dst, dst.Rect, frame, frame.Bounds(), xdraw.Src, nil)
	return dst
}
