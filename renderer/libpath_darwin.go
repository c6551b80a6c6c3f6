package renderer

const libraryPathVar = "DYLD_LIBRARY_PATH"
