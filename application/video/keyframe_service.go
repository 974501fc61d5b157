package video

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tourney-media/domain/video"

	"golang.org/x/sync/singleflight"
)

// KeyframeService builds keyframe indexes, amortizing the scan of a source
// through its sidecar cache. Indexes are memoized per source, and concurrent
// loads of one file share a single scan.
type KeyframeService struct {
	scanner video.KeyframeScanner
	cache   video.KeyframeCache
	logger  *slog.Logger

	group  singleflight.Group
	mu     sync.Mutex
	loaded map[string]*video.KeyframeIndex
}

// KeyframeOption is a functional option for configuring KeyframeService
type KeyframeOption func(*KeyframeService)

// WithKeyframeLogger sets the logger
func WithKeyframeLogger(logger *slog.Logger) KeyframeOption {
	return func(s *KeyframeService) {
		s.logger = logger
	}
}

// NewKeyframeService creates a new KeyframeService
func NewKeyframeService(scanner video.KeyframeScanner, cache video.KeyframeCache, opts ...KeyframeOption) *KeyframeService {
	s := &KeyframeService{
		scanner: scanner,
		cache:   cache,
		logger:  slog.Default(),
		loaded:  make(map[string]*video.KeyframeIndex),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Load returns the keyframe index for source. Interval sources need no I/O.
// File sources come from the sidecar cache if present, otherwise from a full
// scan whose result is written back to the cache.
func (s *KeyframeService) Load(ctx context.Context, source video.KeyframeSource) (*video.KeyframeIndex, error) {
	if err := source.Validate(); err != nil {
		return nil, err
	}
	if source.IsInterval() {
		return video.NewIntervalIndex(source.Interval)
	}

	s.mu.Lock()
	index, ok := s.loaded[source.Path]
	s.mu.Unlock()
	if ok {
		return index, nil
	}

	// the shared scan outlives any one caller; each caller stops waiting on its own ctx
	scanCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(source.Path, func() (any, error) {
		s.mu.Lock()
		index, ok := s.loaded[source.Path]
		s.mu.Unlock()
		if ok {
			return index, nil
		}

		index, err := s.build(scanCtx, source)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.loaded[source.Path] = index
		s.mu.Unlock()
		return index, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*video.KeyframeIndex), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *KeyframeService) build(ctx context.Context, source video.KeyframeSource) (*video.KeyframeIndex, error) {
	keyframes, ok, err := s.cache.Load(source.Path)
	if err != nil {
		s.logger.Warn("ignoring unreadable keyframe cache", "source", source.Path, "error", err)
	}
	if ok {
		s.logger.Debug("keyframes loaded from cache", "source", source.Path, "count", len(keyframes))
		return video.NewKeyframeIndex(source, keyframes)
	}

	s.logger.Info("scanning keyframes", "source", source.Path)
	keyframes, err = s.scanner.Scan(ctx, source.Path)
	if err != nil {
		return nil, err
	}

	index, err := video.NewKeyframeIndex(source, keyframes)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Store(source.Path, keyframes); err != nil {
		s.logger.Warn("failed to write keyframe cache", "source", source.Path, "error", err)
	}
	s.logger.Info("keyframes scanned", "source", source.Path, "count", len(keyframes))
	return index, nil
}

// Forget drops the memoized index for path, forcing the next Load to
// consult the cache again
func (s *KeyframeService) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loaded, path)
}

// Source builds the KeyframeSource for a file, or a synthetic grid when
// interval is non-zero
func Source(path string, interval video.Timestamp) (video.KeyframeSource, error) {
	if interval > 0 {
		return video.IntervalKeyframes(interval), nil
	}
	if path == "" {
		return video.KeyframeSource{}, fmt.Errorf("source path is required")
	}
	return video.FileKeyframes(path), nil
}
