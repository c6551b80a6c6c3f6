package display

import (
	"image"
	"image/draw"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// Framebuffer is an RGBA display buffer with a fixed resolution. Frames whose
// size differs from the buffer are resampled.
type Framebuffer struct {
	mu      sync.RWMutex
	pix     *image.RGBA
	updates int
	final   bool
}

// Create a framebuffer with the given resolution.
func NewFramebuffer(width, height int) *Framebuffer {
	return &Framebuffer{
		pix: image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Resolution returns the buffer dimensions.
func (fb *Framebuffer) Resolution() image.Point {
	return fb.pix.Rect.Size()
}

func (fb *Framebuffer) Update(frame image.Image) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.blit(frame)
	fb.updates++
	return nil
}

func (fb *Framebuffer) Flush(frame image.Image) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	fb.blit(frame)
	fb.final = true
	return nil
}

// Snapshot returns a copy of the buffer contents.
func (fb *Framebuffer) Snapshot() *image.RGBA {
	fb.mu.RLock()
	defer fb.mu.RUnlock()

	out := image.NewRGBA(fb.pix.Rect)
	copy(out.Pix, fb.pix.Pix)
	return out
}

// Updates returns the number of intermediate frames received.
func (fb *Framebuffer) Updates() int {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.updates
}

// Final reports whether the final frame has been flushed.
func (fb *Framebuffer) Final() bool {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.final
}

func (fb *Framebuffer) blit(frame image.Image) {
	dst := fb.pix.Rect
	src := frame.Bounds()
	if src.Size() == dst.Size() {
		draw.Draw(fb.pix, dst, frame, src.Min, draw.Src)
		return
	}
	xdraw.CatmullRom.Scale(fb.pix, dst, frame, src, xdraw.Src, nil)
}
