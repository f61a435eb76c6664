// Package util holds small filesystem helpers shared by the CLI.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath normalizes a user-supplied file path. It handles:
//   - "$XDG_CONFIG_HOME/..." -> expands XDG_CONFIG_HOME, falling back to ~/.config
//   - "~..." -> expands to the user's home directory
//
// Other paths are only cleaned. An empty path stays empty.
func ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "$XDG_CONFIG_HOME") {
		xdg := os.Getenv("XDG_CONFIG_HOME")
		if xdg == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("expand path: %w", err)
			}
			xdg = filepath.Join(home, ".config")
		}
		return joinRemainder(xdg, strings.TrimPrefix(path, "$XDG_CONFIG_HOME")), nil
	}

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand path: %w", err)
		}
		return joinRemainder(home, strings.TrimPrefix(path, "~")), nil
	}
	return filepath.Clean(path), nil
}

func joinRemainder(base, remainder string) string {
	remainder = strings.TrimLeft(remainder, "/\\")
	if remainder == "" {
		return filepath.Clean(base)
	}
	normalized := strings.ReplaceAll(remainder, "\\", "/")
	return filepath.Clean(filepath.Join(base, filepath.FromSlash(normalized)))
}

// FileExists reports whether path names an existing regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
