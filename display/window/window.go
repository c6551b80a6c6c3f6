// Package window shows render progress in an OpenGL window.
package window

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/achilleasa/mtsblend/display"
	"github.com/achilleasa/mtsblend/log"
	"github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Event polling period while waiting for frames.
const pollInterval = time.Second / 30

// Window is a display sink backed by a glfw window. Closing the window or
// pressing ESC signals Closed.
type Window struct {
	*display.Mailbox

	title         string
	width, height int
	logger        log.Logger

	closed    chan struct{}
	closeOnce sync.Once
}

// Create a window sink. The window itself is opened by Run.
func New(title string, width, height int) *Window {
	return &Window{
		Mailbox: display.NewMailbox(width, height),
		title:   title,
		width:   width,
		height:  height,
		logger:  log.New("window"),
		closed:  make(chan struct{}),
	}
}

// Closed is closed when the user dismisses the window.
func (w *Window) Closed() <-chan struct{} {
	return w.closed
}

// Run opens the window and presents frames until the user closes it or ctx
// is cancelled. glfw requires Run to be called from the main goroutine with
// its OS thread locked.
func (w *Window) Run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("window: failed to initialize glfw: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.ContextVersionMajor, 2)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	win, err := glfw.CreateWindow(w.width, w.height, w.title, nil, nil)
	if err != nil {
		return fmt.Errorf("window: could not create opengl window: %w", err)
	}
	defer win.Destroy()
	win.MakeContextCurrent()

	if err = gl.Init(); err != nil {
		return fmt.Errorf("window: could not init opengl: %w", err)
	}

	texFbo := w.initTexture()

	win.SetKeyCallback(func(win *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			win.SetShouldClose(true)
		}
	})

	w.logger.Debugf("opened %dx%d window", w.width, w.height)
	for !win.ShouldClose() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if frame, _, ok := w.Take(); ok {
			gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(w.width), int32(w.height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(frame.Pix))
		}

		// Image rows are stored top-down; flip while blitting.
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, texFbo)
		gl.BlitFramebuffer(0, 0, int32(w.width), int32(w.height), 0, int32(w.height), int32(w.width), 0, gl.COLOR_BUFFER_BIT, gl.LINEAR)
		gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

		win.SwapBuffers()
		glfw.WaitEventsTimeout(pollInterval.Seconds())
	}

	w.logger.Notice("display window closed")
	w.closeOnce.Do(func() { close(w.closed) })
	return nil
}

// Set up a texture for frame data and attach it to a read FBO.
func (w *Window) initTexture() uint32 {
	var fbTexture uint32
	gl.GenTextures(1, &fbTexture)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, fbTexture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w.width), int32(w.height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)

	var texFbo uint32
	gl.GenFramebuffers(1, &texFbo)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, texFbo)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, fbTexture, 0)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	return texFbo
}
