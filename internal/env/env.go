// Package env resolves the directories and environment overrides used by
// the precompiled-artifact cache.
package env

import (
	"os"
	"path/filepath"
)

const (
	// CacheDirEnv overrides the artifact cache directory.
	CacheDirEnv = "PRECOMP_CACHE_DIR"

	// CACertEnv points at a PEM bundle to use instead of the system
	// trust store when downloading artifacts.
	CACertEnv = "PRECOMP_CACERT"

	// TargetEnv overrides host target detection.
	TargetEnv = "PRECOMP_TARGET"
)

// CacheDir returns the directory holding downloaded and freshly built
// artifact archives. The override environment variable wins; otherwise a
// per-user cache directory is used.
func CacheDir() (string, error) {
	if dir := os.Getenv(CacheDirEnv); dir != "" {
		return dir, nil
	}
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, "precomp"), nil
}

// CACertFile returns the PEM bundle override path, or "" if unset.
func CACertFile() string {
	return os.Getenv(CACertEnv)
}

// TargetOverride returns the forced host target triplet, or "" if unset.
func TargetOverride() string {
	return os.Getenv(TargetEnv)
}
