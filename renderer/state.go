package renderer

import "fmt"

// State of a render session.
type State uint8

const (
	Pending State = iota
	Running
	Cancelled
	Finished
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Cancelled || s == Finished || s == Failed
}

// Kind distinguishes full scene renders from material previews.
type Kind uint8

const (
	FrameRender Kind = iota
	PreviewRender
)

func (k Kind) String() string {
	if k == PreviewRender {
		return "preview"
	}
	return "frame"
}
