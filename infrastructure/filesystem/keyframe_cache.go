package filesystem

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tourney-media/domain/video"
)

// KeyframeCacheSuffix is appended to the source file name to name its sidecar
const KeyframeCacheSuffix = ".keyframes"

// KeyframeCache implements video.KeyframeCache with one sidecar text file
// per source video
type KeyframeCache struct {
	dir string
}

// NewKeyframeCache creates a cache storing sidecars in dir. An empty dir
// stores each sidecar next to its source video.
func NewKeyframeCache(dir string) *KeyframeCache {
	return &KeyframeCache{dir: dir}
}

// Path returns the sidecar path for sourcePath. Next to the source it is
// "<name>.keyframes". In a shared working directory the name also carries a
// short hash of the absolute source path, so same-named recordings from
// different folders get separate sidecars.
func (c *KeyframeCache) Path(sourcePath string) string {
	base := filepath.Base(sourcePath)
	if c.dir == "" {
		return filepath.Join(filepath.Dir(sourcePath), base+KeyframeCacheSuffix)
	}
	return filepath.Join(c.dir, base+"."+pathHash(sourcePath)+KeyframeCacheSuffix)
}

func pathHash(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sum := sha256.Sum256([]byte(filepath.Clean(path)))
	return hex.EncodeToString(sum[:4])
}

// Load implements video.KeyframeCache. A missing sidecar is a miss, not an error.
func (c *KeyframeCache) Load(sourcePath string) ([]video.Timestamp, bool, error) {
	path := c.Path(sourcePath)
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to open keyframe cache: %w", err)
	}
	defer f.Close()

	keyframes, err := video.ReadKeyframeList(f)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt keyframe cache %s: %w", path, err)
	}
	return keyframes, true, nil
}

// Store implements video.KeyframeCache. The sidecar is replaced atomically.
func (c *KeyframeCache) Store(sourcePath string, keyframes []video.Timestamp) error {
	path := c.Path(sourcePath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create keyframe cache directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create keyframe cache: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := video.WriteKeyframeList(tmp, keyframes); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write keyframe cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write keyframe cache: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace keyframe cache: %w", err)
	}
	return nil
}

// Ensure KeyframeCache implements video.KeyframeCache
var _ video.KeyframeCache = (*KeyframeCache)(nil)
