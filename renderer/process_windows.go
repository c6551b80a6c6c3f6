//go:build windows

package renderer

import (
	"os"
	"strings"
)

const (
	exeSuffix      = ".exe"
	libraryPathVar = "PATH"
)

func envKeyEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

// Windows has no SIGTERM equivalent that os.Process can deliver.
func terminate(p *os.Process) error {
	return p.Kill()
}
