// Package session resolves the on-disk layout and naming of daemon
// sessions under ~/.wahook.
package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.wahook.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wahook")
}

// Dir returns the session-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "sessions", name)
}

// CredentialDBPath returns the whatsmeow credential store path.
func CredentialDBPath(name string) string {
	return filepath.Join(Dir(name), "session.db")
}

// MediaDir returns the default media base directory for a session.
func MediaDir(name string) string {
	return filepath.Join(Dir(name), "media")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(Dir(name), "logs", "wahookd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the session directory tree.
func EnsureDir(name string) error {
	for _, d := range []string{
		Dir(name),
		filepath.Join(Dir(name), "logs"),
	} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
