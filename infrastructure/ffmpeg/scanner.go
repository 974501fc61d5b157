package ffmpeg

import (
	"bytes"
	"context"
	"fmt"

	"tourney-media/domain/video"
)

// ScanError is a failed or unparseable keyframe scan
type ScanError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ScanError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("keyframe scan of %s failed: %v: %s", e.Path, e.Err, e.Stderr)
	}
	return fmt.Sprintf("keyframe scan of %s failed: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Scanner implements video.KeyframeScanner using ffprobe
type Scanner struct {
	ffprobePath string
	runner      CommandRunner
}

// ScannerOption is a functional option for configuring Scanner
type ScannerOption func(*Scanner)

// WithFFprobePath sets a custom ffprobe executable path
func WithFFprobePath(path string) ScannerOption {
	return func(s *Scanner) {
		if path != "" {
			s.ffprobePath = path
		}
	}
}

// WithScannerCommandRunner sets a custom command runner (for testing)
func WithScannerCommandRunner(runner CommandRunner) ScannerOption {
	return func(s *Scanner) {
		s.runner = runner
	}
}

// NewScanner creates a new ffprobe-based keyframe scanner
func NewScanner(opts ...ScannerOption) *Scanner {
	s := &Scanner{
		ffprobePath: "ffprobe",
		runner:      &ExecCommandRunner{},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Scan implements video.KeyframeScanner. It decodes only keyframes of the
// first video stream and reads their presentation timestamps.
func (s *Scanner) Scan(ctx context.Context, path string) ([]video.Timestamp, error) {
	args := []string{
		"-v", "error",
		"-skip_frame", "nokey",
		"-select_streams", "v:0",
		"-show_entries", "frame=pts_time",
		"-of", "csv=p=0",
		path,
	}

	out, err := s.runner.Output(ctx, s.ffprobePath, args...)
	if err != nil {
		return nil, &ScanError{Path: path, Stderr: stderrOf(err), Err: err}
	}

	keyframes, err := video.ReadKeyframeList(bytes.NewReader(out))
	if err != nil {
		return nil, &ScanError{Path: path, Err: err}
	}
	return keyframes, nil
}

// VerifyInstalled checks that ffprobe is available
func (s *Scanner) VerifyInstalled(ctx context.Context) error {
	_, err := s.runner.Output(ctx, s.ffprobePath, "-version")
	if err != nil {
		return fmt.Errorf("ffprobe not found or not executable: %w", err)
	}
	return nil
}

// Ensure Scanner implements video.KeyframeScanner
var _ video.KeyframeScanner = (*Scanner)(nil)
