//go:build !darwin && !windows

package renderer

const libraryPathVar = "LD_LIBRARY_PATH"
