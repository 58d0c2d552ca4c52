// cache.go - Aufloesung von Modell-IDs gegen den HuggingFace-Cache
// Kompatibel mit der Cache-Struktur von Python huggingface_hub:
// models--<org>--<name>/snapshots/<commit>, mit refs/<revision> als
// Zeiger auf den Commit.
package huggingface

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultCacheSubdir = "huggingface/hub"
	cacheRefDir        = "refs"
	cacheSnapshotDir   = "snapshots"
	cacheModelPrefix   = "models--"
)

var ErrModelNotInCache = errors.New("model not in cache")

// CacheDir returns the hub cache root. DALLE_CACHE wins over the
// huggingface_hub environment, which wins over the XDG default.
func CacheDir() string {
	if dir := os.Getenv("DALLE_CACHE"); dir != "" {
		return dir
	}
	if dir := os.Getenv("HF_HUB_CACHE"); dir != "" {
		return dir
	}
	if hfHome := os.Getenv("HF_HOME"); hfHome != "" {
		return filepath.Join(hfHome, "hub")
	}

	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		if home, err := os.UserHomeDir(); err == nil {
			base = filepath.Join(home, ".cache")
		} else {
			base = filepath.Join(os.TempDir(), "huggingface_cache")
		}
	}
	return filepath.Join(base, defaultCacheSubdir)
}

func modelIDToCacheDir(modelID string) string {
	return cacheModelPrefix + strings.ReplaceAll(modelID, "/", "--")
}

func cacheDirToModelID(dir string) string {
	return strings.Replace(strings.TrimPrefix(dir, cacheModelPrefix), "--", "/", 1)
}

// resolveRevision follows refs/<revision> to its commit directory name.
// A revision that is already a snapshot directory resolves to itself.
func resolveRevision(modelRoot, revision string) string {
	bts, err := os.ReadFile(filepath.Join(modelRoot, cacheRefDir, revision))
	if err == nil {
		if commit := strings.TrimSpace(string(bts)); commit != "" {
			return commit
		}
	}
	return revision
}

// Resolve maps a model id like "dalle-mini/dalle-mini" to the snapshot
// directory of the given revision ("main" when empty).
func Resolve(modelID, revision string) (string, error) {
	if revision == "" {
		revision = "main"
	}

	modelRoot := filepath.Join(CacheDir(), modelIDToCacheDir(modelID))
	snapshot := filepath.Join(modelRoot, cacheSnapshotDir, resolveRevision(modelRoot, revision))

	stat, err := os.Stat(snapshot)
	if err != nil || !stat.IsDir() {
		return "", ErrModelNotInCache
	}
	entries, err := os.ReadDir(snapshot)
	if err != nil || len(entries) == 0 {
		return "", ErrModelNotInCache
	}
	return snapshot, nil
}

// CachedFile resolves a single file inside a cached snapshot.
func CachedFile(modelID, revision, filename string) (string, bool) {
	snapshot, err := Resolve(modelID, revision)
	if err != nil {
		return "", false
	}
	path := filepath.Join(snapshot, filename)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

// ListCachedModels enumerates the model ids present in the cache.
func ListCachedModels() ([]string, error) {
	entries, err := os.ReadDir(CacheDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var models []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), cacheModelPrefix) {
			models = append(models, cacheDirToModelID(entry.Name()))
		}
	}
	return models, nil
}
