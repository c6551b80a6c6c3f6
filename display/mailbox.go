package display

import (
	"image"
	"sync"
)

// Mailbox is a Sink that holds only the most recent frame for a consumer that
// presents frames at its own pace. Older frames are dropped.
type Mailbox struct {
	mu      sync.Mutex
	fb      *Framebuffer
	pending bool
	final   bool

	ready chan struct{}
}

// Create a mailbox whose frames are resampled to the given resolution.
func NewMailbox(width, height int) *Mailbox {
	return &Mailbox{
		fb:    NewFramebuffer(width, height),
		ready: make(chan struct{}, 1),
	}
}

func (m *Mailbox) Update(frame image.Image) error {
	return m.put(frame, false)
}

func (m *Mailbox) Flush(frame image.Image) error {
	return m.put(frame, true)
}

func (m *Mailbox) put(frame image.Image, final bool) error {
	m.mu.Lock()
	var err error
	if final {
		err = m.fb.Flush(frame)
	} else {
		err = m.fb.Update(frame)
	}
	m.pending = true
	m.final = m.final || final
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return err
}

// Ready receives a value whenever a new frame is posted.
func (m *Mailbox) Ready() <-chan struct{} {
	return m.ready
}

// Take returns the latest frame if one was posted since the last call.
func (m *Mailbox) Take() (frame *image.RGBA, final, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.pending {
		return nil, m.final, false
	}
	m.pending = false
	return m.fb.Snapshot(), m.final, true
}
