package kunruntime

import (
	"errors"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"plain", "close", nil},
		{"empty", "", nil},
		{"unicode", "收盘价", nil},
		{"embedded NUL", "clo\x00se", ErrInvalidName},
		{"trailing NUL", "close\x00", ErrInvalidName},
		{"invalid UTF-8", "clo\xffse", ErrInvalidText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateName("test", tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}

			var ke *KunError
			if !errors.As(err, &ke) {
				t.Fatalf("expected *KunError, got %T", err)
			}
			if ke.Name != tt.input {
				t.Errorf("KunError.Name = %q, want %q", ke.Name, tt.input)
			}
		})
	}
}
