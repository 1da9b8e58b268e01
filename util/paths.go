package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	AppConfigDir = ".config/tootsite"
)

// GetConfigDir returns the tootsite config directory path (~/.config/tootsite/).
// The directory is not created.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, AppConfigDir), nil
}

// ResolveFilePath resolves a file path with the following priority:
// 1. Local working directory (e.g., ./tootsite.yaml)
// 2. User config directory (e.g., ~/.config/tootsite/tootsite.yaml)
// If neither exists the user config path is returned.
func ResolveFilePath(filename string) string {
	if _, err := os.Stat(filename); err == nil {
		return filename
	}

	configDir, err := GetConfigDir()
	if err != nil {
		return filename
	}
	return filepath.Join(configDir, filename)
}

// IsPathWithinDir reports whether path is dir or below it, after cleaning both
func IsPathWithinDir(path, dir string) bool {
	pathClean := filepath.Clean(path)
	dirClean := filepath.Clean(dir)
	if pathClean == dirClean {
		return true
	}
	if dirClean == "." {
		return !filepath.IsAbs(pathClean) && pathClean != ".." && !strings.HasPrefix(pathClean, ".."+string(os.PathSeparator))
	}
	return strings.HasPrefix(pathClean, dirClean+string(os.PathSeparator))
}
