package kunruntime

// RuntimeConfig holds the settings a Runtime is opened with. The runner
// fills it from core.Config, the manifest and command-line flags.
type RuntimeConfig struct {
	// LibraryPath is a library file path or a bare library name.
	LibraryPath string

	// LibraryDirs are searched in order when LibraryPath is a bare name.
	LibraryDirs []string

	// Threads selects the executor: 0 or 1 is single-threaded,
	// anything larger builds a worker pool of that size.
	Threads int

	// ValidateHeader checks the shared-object header before loading.
	ValidateHeader bool
}

// ResolvedPath returns the library path after directory lookup.
func (c RuntimeConfig) ResolvedPath() string {
	return ResolveLibraryPath(c.LibraryPath, c.LibraryDirs...)
}
