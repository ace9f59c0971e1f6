// Package manifest tracks per-file modification times so the bulk uploader
// can skip files that have not changed since the last run.
//
// The manifest persists as upload_manifest.json, a flat mapping of relative
// path to {"last_modified": <float seconds>}. The format is shared with
// earlier versions of the upload tooling and must not change shape.
package manifest

import (
	"time"
)

// Entry records the last-known modification time of one uploaded file.
type Entry struct {
	// LastModified is fractional Unix seconds, matching the file's mtime at
	// the moment the upload succeeded.
	LastModified float64 `json:"last_modified"`
}

// Manifest maps relative file paths to their recorded entries.
type Manifest map[string]Entry

// ShouldUpload reports whether relPath needs uploading: the path is unknown,
// or the file's current mtime is strictly newer than the recorded one.
func (m Manifest) ShouldUpload(relPath string, modTime time.Time) bool {
	entry, ok := m[relPath]
	if !ok {
		return true
	}
	return entry.LastModified < mtime(modTime)
}

// Record upserts the entry for relPath with the given modification time.
func (m Manifest) Record(relPath string, modTime time.Time) {
	m[relPath] = Entry{LastModified: mtime(modTime)}
}

func mtime(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
