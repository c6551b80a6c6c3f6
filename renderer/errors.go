package renderer

import (
	"errors"
	"fmt"
)

// Error categories. Specific errors wrap one of these so callers can test
// them with errors.Is.
var (
	ErrConfiguration  = errors.New("renderer: configuration error")
	ErrExport         = errors.New("renderer: export failed")
	ErrProcessFailure = errors.New("renderer: rendering failed")
)

var (
	ErrSceneNotDefined       = fmt.Errorf("%w: scene to render is not valid", ErrConfiguration)
	ErrBinaryPathUnspecified = fmt.Errorf("%w: the Mitsuba binary path is unspecified", ErrConfiguration)
	ErrPluginDirUnspecified  = fmt.Errorf("%w: the plugin directory is unspecified", ErrConfiguration)
	ErrSessionRunning        = errors.New("renderer: session already running")
	ErrSessionDone           = errors.New("renderer: session already completed")
)
