// config_test.go - Unit Tests fuer die Environment-Konfiguration
package envconfig

import (
	"log/slog"
	"testing"
)

// TestVar testet das Entfernen von Quotes und Leerzeichen
func TestVar(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{value: "plain", want: "plain"},
		{value: "  spaced  ", want: "spaced"},
		{value: `"quoted"`, want: "quoted"},
		{value: "'single'", want: "single"},
		{value: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("DALLE_TEST_VAR", tt.value)
			if got := Var("DALLE_TEST_VAR"); got != tt.want {
				t.Errorf("Var() = %q, erwartet %q", got, tt.want)
			}
		})
	}
}

// TestLogLevel testet die Interpretation von DALLE_DEBUG
func TestLogLevel(t *testing.T) {
	tests := []struct {
		value string
		want  slog.Level
	}{
		{value: "", want: slog.LevelInfo},
		{value: "false", want: slog.LevelInfo},
		{value: "1", want: slog.LevelDebug},
		{value: "true", want: slog.LevelDebug},
		{value: "2", want: slog.Level(-8)},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("DALLE_DEBUG", tt.value)
			if got := LogLevel(); got != tt.want {
				t.Errorf("LogLevel() = %v, erwartet %v", got, tt.want)
			}
		})
	}
}

// TestNumThreads testet die Thread-Konfiguration
func TestNumThreads(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{value: "", want: 0},
		{value: "4", want: 4},
		{value: "-2", want: 0},
		{value: "abc", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("DALLE_NUM_THREADS", tt.value)
			if got := NumThreads(); got != tt.want {
				t.Errorf("NumThreads() = %d, erwartet %d", got, tt.want)
			}
		})
	}
}
