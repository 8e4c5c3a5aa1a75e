package models

import (
	"path/filepath"
	"strings"

	"github.com/scottyhq/scotty/internal/apperr"
)

// File is one user-supplied file to be written into an app's root.
type File struct {
	Name    string `json:"name"`
	Content []byte `json:"content"`
}

// FileList is a batch of files saved together (spec §3 FileList/File).
type FileList []File

// CleanedPath resolves name against root and verifies the result stays
// within root, rejecting directory traversal (spec §3, §4.4 SaveFiles,
// §8 property 2). Grounded on the path-containment check style used by
// the teacher's internal/docker/fileutil.go helpers.
func CleanedPath(root, name string) (string, error) {
	joined := filepath.Join(root, name)
	cleanedRoot := filepath.Clean(root)

	rel, err := filepath.Rel(cleanedRoot, joined)
	if err != nil {
		return "", apperr.ErrDirectoryTraversal
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperr.ErrDirectoryTraversal
	}
	return joined, nil
}
