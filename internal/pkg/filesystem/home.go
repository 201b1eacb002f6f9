package filesystem

import (
	"os"
	"path/filepath"
)

// AppDirName is the per-user state directory under $HOME.
const AppDirName = ".opspilot"

// UserHomeDir returns the current user's home directory.
// If the home directory cannot be determined, it returns "." as a fallback.
func UserHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return "."
}

// AppDir returns the opspilot state directory, e.g. ~/.opspilot.
func AppDir() string {
	return filepath.Join(UserHomeDir(), AppDirName)
}

// EnsureDir creates dir and parents when missing.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// ExpandPath resolves ~/ prefixes and cleans relative paths.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if filepath.IsAbs(path) {
		return path
	}
	if len(path) > 1 && path[:2] == "~/" {
		return filepath.Join(UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}
