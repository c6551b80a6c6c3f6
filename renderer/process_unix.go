//go:build !windows

package renderer

import (
	"os"
	"syscall"
)

const exeSuffix = ""

func envKeyEqual(a, b string) bool {
	return a == b
}

// terminate asks the renderer to shut down. Mitsuba handles SIGTERM by
// stopping the render.
func terminate(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
