package core

import (
	"reflect"
	"testing"
	"time"
)

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 7},
		{"12", 12},
		{" 3 ", 3},
		{"-4", -4},
		{"x", 7},
	}
	for _, tt := range tests {
		t.Setenv("KUN_TEST_INT", tt.value)
		if got := ParseIntEnv("KUN_TEST_INT", 7); got != tt.want {
			t.Errorf("ParseIntEnv(%q) = %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"ON", false, true},
		{"no", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("KUN_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("KUN_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestParseDurationAndList(t *testing.T) {
	t.Setenv("KUN_TEST_SECS", "5")
	if got := ParseDurationEnv("KUN_TEST_SECS", 1); got != 5*time.Second {
		t.Errorf("ParseDurationEnv = %v", got)
	}

	t.Setenv("KUN_TEST_LIST", "")
	if got := ParsePathListEnv("KUN_TEST_LIST", []string{"d"}); !reflect.DeepEqual(got, []string{"d"}) {
		t.Errorf("default list = %v", got)
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("KUN_TEST_STR", "")
	if got := GetEnvOrDefault("KUN_TEST_STR", "x"); got != "x" {
		t.Errorf("got %q", got)
	}
	t.Setenv("KUN_TEST_STR", "y")
	if got := GetEnvOrDefault("KUN_TEST_STR", "x"); got != "y" {
		t.Errorf("got %q", got)
	}
}
