package kunruntime

import (
	"errors"
	"strings"
	"testing"
)

func TestKunError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *KunError
		want []string
	}{
		{
			name: "op only",
			err:  &KunError{Op: "NewBufferMap", Err: ErrBufferMapCreationFailed},
			want: []string{"kunruntime NewBufferMap", "failed to create buffer name map"},
		},
		{
			name: "name and message",
			err:  &KunError{Op: "Module", Name: "alpha001", Message: "no module in f.so", Err: ErrModuleNotFound},
			want: []string{`"alpha001"`, "no module in f.so", "module not found"},
		},
		{
			name: "path",
			err:  &KunError{Op: "LoadLibrary", Path: "/tmp/f.so", Err: ErrLibraryLoadFailed},
			want: []string{"[/tmp/f.so]", "failed to load library"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("Error() = %q, missing %q", got, w)
				}
			}
		})
	}
}

func TestKunError_Unwrap(t *testing.T) {
	err := error(&KunError{Op: "Push", Name: "x", Err: ErrInvalidName})

	if !errors.Is(err, ErrInvalidName) {
		t.Error("errors.Is should see the sentinel")
	}
	if errors.Is(err, ErrInvalidText) {
		t.Error("errors.Is matched the wrong sentinel")
	}
}

func TestSizeMismatchError(t *testing.T) {
	err := error(&SizeMismatchError{Name: "close", Expected: 8, Actual: 5})

	if !errors.Is(err, ErrBufferSizeMismatch) {
		t.Error("expected errors.Is(err, ErrBufferSizeMismatch)")
	}

	var sm *SizeMismatchError
	if !errors.As(err, &sm) {
		t.Fatal("expected errors.As to find *SizeMismatchError")
	}
	if sm.Expected != 8 || sm.Actual != 5 {
		t.Errorf("got expected=%d actual=%d", sm.Expected, sm.Actual)
	}
	if msg := err.Error(); !strings.Contains(msg, "expected 8, got 5") {
		t.Errorf("unexpected message %q", msg)
	}
}
