package kunruntime

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// =============================================================================
// Library Path Atoms
// =============================================================================

// LibraryExt returns the shared-object extension for the running platform.
func LibraryExt() string {
	switch runtime.GOOS {
	case "darwin":
		return ".dylib"
	case "windows":
		return ".dll"
	default:
		return ".so"
	}
}

// LibraryFileName returns the file name the KunQuant compiler gives a
// library called name, e.g. "alpha101" becomes "alpha101.so" on Linux.
// Names that already carry an extension are returned unchanged.
func LibraryFileName(name string) string {
	if filepath.Ext(name) != "" {
		return name
	}
	return name + LibraryExt()
}

// ResolveLibraryPath finds a factor library.
// Paths containing a separator, and absolute paths, are returned as given.
// Bare names are looked up in each directory of dirs in order; the first
// existing file wins. If none exists the name is resolved against the
// first directory (or the working directory) so the load error names a
// concrete path.
func ResolveLibraryPath(name string, dirs ...string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) || strings.ContainsRune(name, filepath.Separator) || strings.Contains(name, "/") {
		return name
	}

	file := LibraryFileName(name)
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, file)
		if LibraryExists(candidate) {
			return candidate
		}
	}

	if len(dirs) > 0 && dirs[0] != "" {
		return filepath.Join(dirs[0], file)
	}
	return file
}

// LibraryExists checks if a regular file exists at path.
func LibraryExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

var (
	elfMagic   = []byte{0x7f, 'E', 'L', 'F'}
	peMagic    = []byte{'M', 'Z'}
	machoMagic = [][]byte{
		{0xfe, 0xed, 0xfa, 0xce}, // 32-bit
		{0xfe, 0xed, 0xfa, 0xcf}, // 64-bit
		{0xce, 0xfa, 0xed, 0xfe},
		{0xcf, 0xfa, 0xed, 0xfe},
		{0xca, 0xfe, 0xba, 0xbe}, // universal
	}
)

// ValidateLibraryPath checks that path points at a readable shared object.
// It looks only at the file header; whether the engine accepts the library
// is decided by LoadLibrary.
func ValidateLibraryPath(path string) error {
	if path == "" {
		return fmt.Errorf("library path is empty")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("library file not found: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access library file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("library path is a directory, not a file: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open library file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 4)
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("cannot read library file header: %w", err)
	}
	if !IsSharedObject(header) {
		return fmt.Errorf("not a shared object: unrecognised header % x", header)
	}
	return nil
}

// IsSharedObject reports whether header starts with an ELF, Mach-O or PE
// magic number.
func IsSharedObject(header []byte) bool {
	if bytes.HasPrefix(header, elfMagic) || bytes.HasPrefix(header, peMagic) {
		return true
	}
	for _, m := range machoMagic {
		if bytes.HasPrefix(header, m) {
			return true
		}
	}
	return false
}
