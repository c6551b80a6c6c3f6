package renderer

import "time"

type SessionStats struct {
	// The session id.
	Id string

	Kind  Kind
	State State

	// Renderer exit code; -1 if it was terminated by a signal.
	ExitCode int

	// Poll loop ticks observed while the renderer was running.
	Ticks int

	// Termination signals sent to the renderer.
	Terminations int

	// Display updates pushed and skipped by the output streamer.
	FramesPushed  int
	FramesSkipped int

	// True if the final frame reached the display.
	FinalFrame bool

	StartedAt  time.Time
	RenderTime time.Duration
}
