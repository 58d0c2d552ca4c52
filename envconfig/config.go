// config.go - Konfiguration ueber Environment-Variablen
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (DALLE_DEBUG)
// - CacheDir: Gibt Checkpoint-Cache-Verzeichnis zurueck (DALLE_CACHE)
// - NumThreads: Gibt Thread-Anzahl fuers Backend zurueck (DALLE_NUM_THREADS)
// - AsMap: Gibt alle Konfigurationen als Map zurueck
package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via DALLE_DEBUG (bool oder numerisches Level)
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("DALLE_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// CacheDir gibt das Checkpoint-Cache-Verzeichnis zurueck
// Konfigurierbar via DALLE_CACHE; leer bedeutet HuggingFace-Default
func CacheDir() string {
	return Var("DALLE_CACHE")
}

// NumThreads gibt die Thread-Anzahl fuers CPU-Backend zurueck
// Konfigurierbar via DALLE_NUM_THREADS; 0 bedeutet Runtime-Default
func NumThreads() int {
	if s := Var("DALLE_NUM_THREADS"); s != "" {
		if n, err := strconv.ParseInt(s, 10, 32); err != nil {
			slog.Warn("invalid environment variable, using default", "key", "DALLE_NUM_THREADS", "value", s)
		} else if n > 0 {
			return int(n)
		}
	}
	return 0
}

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"DALLE_DEBUG":       {"DALLE_DEBUG", LogLevel(), "Show additional debug information (e.g. DALLE_DEBUG=1)"},
		"DALLE_CACHE":       {"DALLE_CACHE", CacheDir(), "Override the checkpoint cache directory"},
		"DALLE_NUM_THREADS": {"DALLE_NUM_THREADS", NumThreads(), "Number of CPU backend threads (default: all cores)"},
	}
}
