package mixer

import "sync"

// RecordingCache holds the last known recording folder and file. Values are
// dropped by Invalidate whenever the mixer reports a recording change or the
// connection is reopened.
type RecordingCache struct {
	mu     sync.Mutex
	folder string
	file   string
}

// Folder returns the cached recording folder, if any
func (c *RecordingCache) Folder() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.folder, c.folder != ""
}

// SetFolder caches the recording folder
func (c *RecordingCache) SetFolder(folder string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.folder = folder
}

// File returns the cached recording file, if any
func (c *RecordingCache) File() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file, c.file != ""
}

// SetFile caches the recording file
func (c *RecordingCache) SetFile(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.file = file
}

// Invalidate drops both cached values
func (c *RecordingCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.folder = ""
	c.file = ""
}
