package kunruntime

import (
	"strings"
	"unicode/utf8"
)

// validateName checks that a buffer, module or path string can cross the
// boundary as a C string. Nothing is sent to the engine for a rejected name.
func validateName(op, name string) error {
	if strings.IndexByte(name, 0) >= 0 {
		return &KunError{
			Op:      op,
			Name:    name,
			Message: "name contains an embedded NUL byte",
			Err:     ErrInvalidName,
		}
	}
	if !utf8.ValidString(name) {
		return &KunError{
			Op:      op,
			Name:    name,
			Message: "name cannot round-trip through the engine",
			Err:     ErrInvalidText,
		}
	}
	return nil
}

// withName runs fn with a temporary engine-owned copy of name.
// Used for lookups where the engine does not keep the pointer.
func withName(api Engine, name string, fn func(NameHandle)) {
	n := api.NewName(name)
	defer api.FreeName(n)
	fn(n)
}
