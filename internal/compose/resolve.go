// Package compose implements the Compose Runner (C1): spawning the
// container-compose binary, streaming its stdout/stderr line-by-line into
// a Task, and yielding an exit code. Grounded on the teacher's
// internal/compose/exec.go (argv building, exec.CommandContext wiring).
package compose

import (
	"os"
	"path/filepath"
)

// acceptedComposeFileNames are checked in order when locating an app's
// compose file, matching the teacher's docker-compose.yml discovery.
var acceptedComposeFileNames = []string{
	"docker-compose.yml",
	"docker-compose.yaml",
	"compose.yml",
	"compose.yaml",
}

// FindComposeFile returns the full path to the compose file inside dir,
// checking accepted names in order. Returns "" if none exists.
func FindComposeFile(dir string) string {
	for _, name := range acceptedComposeFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// IsComposeFile reports whether name matches one of the accepted compose
// file names (used by the discovery loop's fsnotify fast path).
func IsComposeFile(name string) bool {
	for _, accepted := range acceptedComposeFileNames {
		if name == accepted {
			return true
		}
	}
	return false
}
