package util

import (
	"os"
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		expected     bool
	}{
		{"unset uses default true", "", true, true},
		{"unset uses default false", "", false, false},
		{"true", "true", false, true},
		{"one", "1", false, true},
		{"yes uppercase", "YES", false, true},
		{"on with spaces", " on ", false, true},
		{"false", "false", true, false},
		{"zero", "0", true, false},
		{"off", "off", true, false},
		{"invalid uses default", "maybe", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "POSTFORGE_TEST_BOOL"
			if tt.value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, tt.value)
				defer os.Unsetenv(key)
			}
			if got := ParseBoolEnv(key, tt.defaultValue); got != tt.expected {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, expected %v", tt.value, tt.defaultValue, got, tt.expected)
			}
		})
	}
}

func TestParseDurationEnv(t *testing.T) {
	key := "POSTFORGE_TEST_DURATION"

	os.Unsetenv(key)
	if got := ParseDurationEnv(key, 30*time.Second); got != 30*time.Second {
		t.Errorf("Expected default 30s for unset var, got %v", got)
	}

	os.Setenv(key, "90s")
	defer os.Unsetenv(key)
	if got := ParseDurationEnv(key, 30*time.Second); got != 90*time.Second {
		t.Errorf("Expected 90s, got %v", got)
	}

	os.Setenv(key, "not-a-duration")
	if got := ParseDurationEnv(key, 30*time.Second); got != 30*time.Second {
		t.Errorf("Expected default for invalid duration, got %v", got)
	}
}

func TestParseIntEnv(t *testing.T) {
	key := "POSTFORGE_TEST_INT"

	os.Unsetenv(key)
	if got := ParseIntEnv(key, 7); got != 7 {
		t.Errorf("Expected default 7 for unset var, got %d", got)
	}

	os.Setenv(key, " 42 ")
	defer os.Unsetenv(key)
	if got := ParseIntEnv(key, 7); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}

	os.Setenv(key, "forty-two")
	if got := ParseIntEnv(key, 7); got != 7 {
		t.Errorf("Expected default for invalid integer, got %d", got)
	}
}
