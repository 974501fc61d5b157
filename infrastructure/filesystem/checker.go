package filesystem

import (
	"os"

	"tourney-media/domain/video"
)

// Checker answers whether a recording or clip is usable on disk
type Checker struct{}

// NewChecker returns a Checker backed by the local filesystem
func NewChecker() *Checker {
	return &Checker{}
}

// Exists reports whether path is a non-empty regular file. Directories do
// not count, and neither does the zero-byte file a killed cutter leaves
// behind, so a batch rerun cuts that segment again.
func (c *Checker) Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

var _ video.FileChecker = (*Checker)(nil)
