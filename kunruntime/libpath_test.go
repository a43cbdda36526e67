package kunruntime

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLibraryFileName(t *testing.T) {
	if got := LibraryFileName("alpha101"); got != "alpha101"+LibraryExt() {
		t.Errorf("LibraryFileName = %q", got)
	}
	if got := LibraryFileName("alpha101.so"); got != "alpha101.so" {
		t.Errorf("existing extension changed: %q", got)
	}
}

func TestResolveLibraryPath(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	file := LibraryFileName("alpha")
	if err := os.WriteFile(filepath.Join(second, file), []byte{0x7f, 'E', 'L', 'F'}, 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		in   string
		dirs []string
		want string
	}{
		{"empty", "", []string{first}, ""},
		{"absolute", "/opt/f/alpha.so", []string{first}, "/opt/f/alpha.so"},
		{"relative with dir", "lib/alpha.so", []string{first}, "lib/alpha.so"},
		{"found in second dir", "alpha", []string{first, second}, filepath.Join(second, file)},
		{"not found", "beta", []string{first, second}, filepath.Join(first, LibraryFileName("beta"))},
		{"no dirs", "beta", nil, LibraryFileName("beta")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveLibraryPath(tt.in, tt.dirs...); got != tt.want {
				t.Errorf("ResolveLibraryPath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateLibraryPath(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, data []byte) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"elf", write("a.so", []byte{0x7f, 'E', 'L', 'F', 2, 1}), ""},
		{"macho", write("a.dylib", []byte{0xcf, 0xfa, 0xed, 0xfe}), ""},
		{"pe", write("a.dll", []byte{'M', 'Z', 0x90, 0}), ""},
		{"text", write("a.txt", []byte("hello world")), "not a shared object"},
		{"short", write("short.so", []byte{0x7f}), "cannot read"},
		{"missing", filepath.Join(dir, "missing.so"), "not found"},
		{"directory", dir, "directory"},
		{"empty", "", "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLibraryPath(tt.path)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
