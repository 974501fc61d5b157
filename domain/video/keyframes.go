package video

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNoKeyframes is returned when a keyframe list is empty
	ErrNoKeyframes = errors.New("no keyframes found")

	// ErrUnsortedKeyframes is returned when a keyframe list is not ascending
	ErrUnsortedKeyframes = errors.New("keyframes are not sorted")

	// ErrInvalidInterval is returned for a keyframe interval that is not positive
	ErrInvalidInterval = errors.New("keyframe interval must be positive")
)

// KeyframeSource says how keyframe positions for a video are determined.
// Exactly one of Path or Interval is set and it never changes.
type KeyframeSource struct {
	Path     string
	Interval Timestamp
}

// FileKeyframes returns a source backed by the real keyframes of the file at path
func FileKeyframes(path string) KeyframeSource {
	return KeyframeSource{Path: path}
}

// IntervalKeyframes returns a source that assumes a keyframe every interval
func IntervalKeyframes(interval Timestamp) KeyframeSource {
	return KeyframeSource{Interval: interval}
}

// IsInterval reports whether the source uses a synthetic uniform grid
func (s KeyframeSource) IsInterval() bool {
	return s.Path == ""
}

// Validate checks that exactly one variant is set
func (s KeyframeSource) Validate() error {
	if s.Path != "" && s.Interval != 0 {
		return fmt.Errorf("keyframe source cannot have both a file and an interval")
	}
	if s.Path == "" && s.Interval <= 0 {
		return fmt.Errorf("keyframe interval must be positive, got %d", s.Interval)
	}
	return nil
}

// String describes the source for logs
func (s KeyframeSource) String() string {
	if s.IsInterval() {
		return fmt.Sprintf("every %s", s.Interval)
	}
	return s.Path
}

// KeyframeIndex answers nearest-keyframe queries for one source. It is
// immutable once built and safe for concurrent use.
type KeyframeIndex struct {
	source    KeyframeSource
	keyframes []Timestamp
}

// NewKeyframeIndex builds an index from a scanned keyframe list
func NewKeyframeIndex(source KeyframeSource, keyframes []Timestamp) (*KeyframeIndex, error) {
	if err := ValidateKeyframes(keyframes); err != nil {
		return nil, fmt.Errorf("keyframes for %s: %w", source, err)
	}
	owned := make([]Timestamp, len(keyframes))
	copy(owned, keyframes)
	return &KeyframeIndex{source: source, keyframes: owned}, nil
}

// NewIntervalIndex builds an index over a synthetic grid
func NewIntervalIndex(interval Timestamp) (*KeyframeIndex, error) {
	source := IntervalKeyframes(interval)
	if err := source.Validate(); err != nil {
		return nil, err
	}
	return &KeyframeIndex{source: source}, nil
}

// Source returns the source the index was built from
func (k *KeyframeIndex) Source() KeyframeSource {
	return k.source
}

// Keyframes returns a copy of the scanned keyframes (nil for interval indexes)
func (k *KeyframeIndex) Keyframes() []Timestamp {
	if k.keyframes == nil {
		return nil
	}
	out := make([]Timestamp, len(k.keyframes))
	copy(out, k.keyframes)
	return out
}

// ClosestPreceding returns the nearest keyframe at or before t
func (k *KeyframeIndex) ClosestPreceding(t Timestamp) Timestamp {
	if k.source.IsInterval() {
		return ClosestPrecedingKeyframeFromInterval(k.source.Interval, t)
	}
	return ClosestPrecedingKeyframe(k.keyframes, t)
}

// ClosestSubsequent returns the nearest keyframe at or after t
func (k *KeyframeIndex) ClosestSubsequent(t Timestamp) Timestamp {
	if k.source.IsInterval() {
		return ClosestSubsequentKeyframeFromInterval(k.source.Interval, t)
	}
	return ClosestSubsequentKeyframe(k.keyframes, t)
}

// ValidateKeyframes checks that a keyframe list is non-empty and ascending
func ValidateKeyframes(keyframes []Timestamp) error {
	if len(keyframes) == 0 {
		return ErrNoKeyframes
	}
	for i := 1; i < len(keyframes); i++ {
		if keyframes[i] < keyframes[i-1] {
			return fmt.Errorf("%w: %s follows %s", ErrUnsortedKeyframes, keyframes[i], keyframes[i-1])
		}
	}
	return nil
}

// ClosestPrecedingKeyframe returns the keyframe at or before t, clamped to
// the first keyframe. keyframes must be sorted ascending and non-empty.
func ClosestPrecedingKeyframe(keyframes []Timestamp, t Timestamp) Timestamp {
	i := sort.Search(len(keyframes), func(i int) bool { return keyframes[i] >= t })
	if i < len(keyframes) && keyframes[i] == t {
		return t
	}
	if i == 0 {
		return keyframes[0]
	}
	return keyframes[i-1]
}

// ClosestSubsequentKeyframe returns the keyframe at or after t, clamped to
// the last keyframe. keyframes must be sorted ascending and non-empty.
func ClosestSubsequentKeyframe(keyframes []Timestamp, t Timestamp) Timestamp {
	i := sort.Search(len(keyframes), func(i int) bool { return keyframes[i] >= t })
	if i == len(keyframes) {
		return keyframes[len(keyframes)-1]
	}
	return keyframes[i]
}

// ClosestPrecedingKeyframeFromInterval rounds t down to a multiple of interval
func ClosestPrecedingKeyframeFromInterval(interval, t Timestamp) Timestamp {
	return t - t%interval
}

// ClosestSubsequentKeyframeFromInterval rounds t up to a multiple of interval
func ClosestSubsequentKeyframeFromInterval(interval, t Timestamp) Timestamp {
	rem := t % interval
	if rem == 0 {
		return t
	}
	return t + interval - rem
}

// KeyframeScanner finds the keyframe positions of a video file.
// This is a port implemented by an external media probing tool.
type KeyframeScanner interface {
	// Scan returns keyframe offsets in ascending order
	Scan(ctx context.Context, path string) ([]Timestamp, error)
}

// KeyframeCache stores scanned keyframe lists next to other per-video files
type KeyframeCache interface {
	// Load returns the cached keyframes; found is false when no cache exists
	Load(sourcePath string) (keyframes []Timestamp, found bool, err error)

	// Store overwrites the cache for sourcePath
	Store(sourcePath string, keyframes []Timestamp) error
}
