//go:build integration

package steps

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"tourney-media/domain/video"
)

// mockScanner returns a fixed keyframe list and counts scans
type mockScanner struct {
	mu        sync.Mutex
	keyframes []video.Timestamp
	scans     int
	err       error
}

func (m *mockScanner) Scan(ctx context.Context, path string) ([]video.Timestamp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scans++
	if m.err != nil {
		return nil, m.err
	}
	return append([]video.Timestamp(nil), m.keyframes...), nil
}

// memoryCache is an in-memory keyframe sidecar cache
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]video.Timestamp
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]video.Timestamp)}
}

func (c *memoryCache) Load(path string) ([]video.Timestamp, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, ok := c.entries[path]
	return k, ok, nil
}

func (c *memoryCache) Store(path string, keyframes []video.Timestamp) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = keyframes
	return nil
}

// mockCutter records cuts and marks their outputs as existing
type mockCutter struct {
	mu          sync.Mutex
	cuts        map[string]video.CutRange
	failFor     map[string]bool
	fileChecker *mockFileChecker
}

func newMockCutter(checker *mockFileChecker) *mockCutter {
	return &mockCutter{
		cuts:        make(map[string]video.CutRange),
		failFor:     make(map[string]bool),
		fileChecker: checker,
	}
}

func (m *mockCutter) Cut(ctx context.Context, sourcePath string, r video.CutRange, outputPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[outputPath] {
		return fmt.Errorf("mkvmerge exited with status 2")
	}
	m.cuts[outputPath] = r
	m.fileChecker.set(outputPath, true)
	return nil
}

func (m *mockCutter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cuts)
}

// mockFileChecker simulates file existence
type mockFileChecker struct {
	mu            sync.Mutex
	existingFiles map[string]bool
}

func newMockFileChecker() *mockFileChecker {
	return &mockFileChecker{existingFiles: make(map[string]bool)}
}

func (m *mockFileChecker) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.existingFiles[path]
}

func (m *mockFileChecker) set(path string, exists bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existingFiles[path] = exists
}

// parseKeyframes reads a comma separated list of seconds
func parseKeyframes(list string) ([]video.Timestamp, error) {
	var keyframes []video.Timestamp
	for _, field := range strings.Split(list, ",") {
		t, err := video.ParseSeconds(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("keyframe %q: %w", field, err)
		}
		keyframes = append(keyframes, t)
	}
	return keyframes, nil
}
