package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tourney-media/domain/mixer"

	"github.com/fsnotify/fsnotify"
)

// RecordingFiles implements mixer.RecordingFiles on the local disk
type RecordingFiles struct{}

// NewRecordingFiles creates a new RecordingFiles
func NewRecordingFiles() *RecordingFiles {
	return &RecordingFiles{}
}

// NewestFile finds the most recently modified file in dir, skipping
// directories and hidden files
func (r *RecordingFiles) NewestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory: %w", err)
	}

	var latestPath string
	var latestTime time.Time

	for _, entry := range entries {
		if entry.IsDir() || isHidden(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latestPath == "" || info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestPath = filepath.Join(dir, entry.Name())
		}
	}

	if latestPath == "" {
		return "", fmt.Errorf("no recordings found in %s", dir)
	}

	return latestPath, nil
}

// Watch starts watching dir for newly created files
func (r *RecordingFiles) Watch(dir string) (mixer.DirWatch, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	return &dirWatch{dir: dir, watcher: w}, nil
}

type dirWatch struct {
	dir     string
	watcher *fsnotify.Watcher
}

// WaitForFile returns the first regular file created after Watch was called
func (d *dirWatch) WaitForFile(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case event, ok := <-d.watcher.Events:
			if !ok {
				return "", fmt.Errorf("watch on %s closed", d.dir)
			}
			if !event.Has(fsnotify.Create) || isHidden(filepath.Base(event.Name)) {
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			return event.Name, nil

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return "", fmt.Errorf("watch on %s closed", d.dir)
			}
			return "", fmt.Errorf("watching %s: %w", d.dir, err)

		case <-timer.C:
			return "", fmt.Errorf("no new file in %s after %s: %w", d.dir, timeout, mixer.ErrTimeout)

		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (d *dirWatch) Close() error {
	return d.watcher.Close()
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Ensure RecordingFiles implements mixer.RecordingFiles
var _ mixer.RecordingFiles = (*RecordingFiles)(nil)
