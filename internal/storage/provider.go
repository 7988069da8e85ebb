// Package storage defines the file-system abstraction used for the ingest
// drop folder and summary exports.
package storage

import "time"

// FileInfo describes one file returned by List.
type FileInfo struct {
	Path      string // relative to the provider root
	Checksum  string
	UpdatedAt time.Time
}

// Provider is the interface for rooted file operations. All paths are
// relative to the provider root.
type Provider interface {
	// List returns metadata for every file under dir whose extension is in
	// exts. Hidden files are skipped.
	List(dir string, exts ...string) ([]FileInfo, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath.
	Move(oldPath, newPath string) error
}
