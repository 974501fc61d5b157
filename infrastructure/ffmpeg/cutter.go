package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tourney-media/domain/video"
)

// Cutter tool names accepted by NewCutter
const (
	ToolFFmpeg   = "ffmpeg"
	ToolMKVMerge = "mkvmerge"
)

// errDiagnostics marks a cut whose tool exited cleanly but reported problems
var errDiagnostics = errors.New("tool reported diagnostics")

// CutError is a failed cut, carrying whatever the tool printed
type CutError struct {
	Tool   string
	Source string
	Range  video.CutRange
	Output string
	Err    error
}

func (e *CutError) Error() string {
	msg := fmt.Sprintf("%s cut %s of %s failed: %v", e.Tool, e.Range, e.Source, e.Err)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *CutError) Unwrap() error {
	return e.Err
}

// FFmpegCutter implements video.Cutter by stream-copying with ffmpeg
type FFmpegCutter struct {
	ffmpegPath string
	runner     CommandRunner
}

// FFmpegOption is a functional option for configuring FFmpegCutter
type FFmpegOption func(*FFmpegCutter)

// WithFFmpegPath sets a custom ffmpeg executable path
func WithFFmpegPath(path string) FFmpegOption {
	return func(c *FFmpegCutter) {
		if path != "" {
			c.ffmpegPath = path
		}
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner CommandRunner) FFmpegOption {
	return func(c *FFmpegCutter) {
		c.runner = runner
	}
}

// NewFFmpegCutter creates a new ffmpeg-based cutter
func NewFFmpegCutter(opts ...FFmpegOption) *FFmpegCutter {
	c := &FFmpegCutter{
		ffmpegPath: "ffmpeg",
		runner:     &ExecCommandRunner{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Cut implements video.Cutter. With -v error ffmpeg prints nothing on
// success, so any output at all is treated as a failure.
func (c *FFmpegCutter) Cut(ctx context.Context, sourcePath string, r video.CutRange, outputPath string) error {
	args := []string{
		"-v", "error",
		"-ss", r.Start.Seconds(),
		"-to", r.End.Seconds(),
		"-i", sourcePath,
		"-map", "0",
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y", // Overwrite output file if it exists
		outputPath,
	}

	out, err := c.runner.Run(ctx, c.ffmpegPath, args...)
	output := strings.TrimSpace(string(out))
	if err == nil && output != "" {
		err = errDiagnostics
	}
	if err != nil {
		return &CutError{Tool: ToolFFmpeg, Source: sourcePath, Range: r, Output: output, Err: err}
	}
	return nil
}

// VerifyInstalled checks that ffmpeg is available
func (c *FFmpegCutter) VerifyInstalled(ctx context.Context) error {
	_, err := c.runner.Output(ctx, c.ffmpegPath, "-version")
	if err != nil {
		return fmt.Errorf("ffmpeg not found or not executable: %w", err)
	}
	return nil
}

// MKVMergeCutter implements video.Cutter with mkvmerge's split mode
type MKVMergeCutter struct {
	mkvmergePath string
	runner       CommandRunner
}

// MKVMergeOption is a functional option for configuring MKVMergeCutter
type MKVMergeOption func(*MKVMergeCutter)

// WithMKVMergePath sets a custom mkvmerge executable path
func WithMKVMergePath(path string) MKVMergeOption {
	return func(c *MKVMergeCutter) {
		if path != "" {
			c.mkvmergePath = path
		}
	}
}

// WithMKVMergeCommandRunner sets a custom command runner (for testing)
func WithMKVMergeCommandRunner(runner CommandRunner) MKVMergeOption {
	return func(c *MKVMergeCutter) {
		c.runner = runner
	}
}

// NewMKVMergeCutter creates a new mkvmerge-based cutter
func NewMKVMergeCutter(opts ...MKVMergeOption) *MKVMergeCutter {
	c := &MKVMergeCutter{
		mkvmergePath: "mkvmerge",
		runner:       &ExecCommandRunner{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Cut implements video.Cutter. mkvmerge exits 1 when it only has warnings;
// that is still a failed cut.
func (c *MKVMergeCutter) Cut(ctx context.Context, sourcePath string, r video.CutRange, outputPath string) error {
	args := []string{
		"--quiet",
		"-o", outputPath,
		"--split", "parts:" + r.String(),
		sourcePath,
	}

	out, err := c.runner.Run(ctx, c.mkvmergePath, args...)
	if err != nil {
		output := strings.TrimSpace(string(out))
		if exitCode(err) == 1 {
			err = fmt.Errorf("%w: %v", errDiagnostics, err)
		}
		return &CutError{Tool: ToolMKVMerge, Source: sourcePath, Range: r, Output: output, Err: err}
	}
	return nil
}

// VerifyInstalled checks that mkvmerge is available
func (c *MKVMergeCutter) VerifyInstalled(ctx context.Context) error {
	_, err := c.runner.Output(ctx, c.mkvmergePath, "--version")
	if err != nil {
		return fmt.Errorf("mkvmerge not found or not executable: %w", err)
	}
	return nil
}

// NewCutter returns the cutter for tool, configured with the given executable path
func NewCutter(tool, path string) (video.Cutter, error) {
	switch tool {
	case ToolFFmpeg, "":
		return NewFFmpegCutter(WithFFmpegPath(path)), nil
	case ToolMKVMerge:
		return NewMKVMergeCutter(WithMKVMergePath(path)), nil
	default:
		return nil, fmt.Errorf("unknown cutter %q (want %s or %s)", tool, ToolFFmpeg, ToolMKVMerge)
	}
}

// Ensure both cutters implement video.Cutter
var (
	_ video.Cutter = (*FFmpegCutter)(nil)
	_ video.Cutter = (*MKVMergeCutter)(nil)
)
