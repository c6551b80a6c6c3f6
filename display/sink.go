package display

import (
	"errors"
	"image"
	"sync"
)

// A Sink receives frames read from the renderer's output file.
type Sink interface {
	// Update pushes an intermediate (possibly partially converged) frame.
	Update(frame image.Image) error

	// Flush pushes the final frame of a render session.
	Flush(frame image.Image) error
}

// Fanout forwards frames to a set of sinks. Sinks can be attached and detached
// while a stream is running.
type Fanout struct {
	mu    sync.Mutex
	sinks []Sink
}

// Create a fan-out sink for the given sinks.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: append([]Sink(nil), sinks...)}
}

// Attach a sink. The returned function detaches it again.
func (f *Fanout) Attach(s Sink) func() {
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, cur := range f.sinks {
			if cur == s {
				f.sinks = append(f.sinks[:i], f.sinks[i+1:]...)
				return
			}
		}
	}
}

func (f *Fanout) Update(frame image.Image) error {
	return f.each(func(s Sink) error { return s.Update(frame) })
}

func (f *Fanout) Flush(frame image.Image) error {
	return f.each(func(s Sink) error { return s.Flush(frame) })
}

// Every sink sees the frame even if an earlier one fails.
func (f *Fanout) each(fn func(Sink) error) error {
	f.mu.Lock()
	sinks := append([]Sink(nil), f.sinks...)
	f.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
