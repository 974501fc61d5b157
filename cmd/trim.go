package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	appvideo "tourney-media/application/video"
	"tourney-media/domain/video"
	"tourney-media/infrastructure/filesystem"

	"github.com/spf13/cobra"
)

var (
	trimSourcePath string
	trimStartTime  string
	trimEndTime    string
	trimOutputPath string
	trimName       string
	trimInterval   string
	trimOverwrite  bool
)

var trimCmd = &cobra.Command{
	Use:   "trim",
	Short: "Losslessly trim a recording on keyframe boundaries",
	Long: `Trim a recording to the given start and end timestamps without re-encoding.

The cut is widened to the keyframe at or before --start and the keyframe at
or after --end, so the clip never loses frames. Keyframes are scanned with
ffprobe on first use and cached next to the recording (or in
paths.working_directory).

Use --interval when the encoder emits keyframes on a fixed interval to skip
the scan entirely.

Example:
  tourney-media trim --source "/rec/2026-10-17 18-00-00.mkv" --start 01:02:03.5 --end 01:20:00 --name "Winners Final"`,
	RunE: runTrim,
}

func init() {
	rootCmd.AddCommand(trimCmd)
	trimCmd.Flags().StringVar(&trimSourcePath, "source", "", "Path to source recording (required)")
	trimCmd.Flags().StringVar(&trimStartTime, "start", "", "Start timestamp HH:MM:SS[.mmm] (required)")
	trimCmd.Flags().StringVar(&trimEndTime, "end", "", "End timestamp HH:MM:SS[.mmm] (required)")
	trimCmd.Flags().StringVarP(&trimOutputPath, "output", "o", "", "Output file (defaults to <output_directory>/<name><ext>)")
	trimCmd.Flags().StringVar(&trimName, "name", "", "Clip name used for the default output filename")
	trimCmd.Flags().StringVar(&trimInterval, "interval", "", "Fixed keyframe interval in seconds instead of scanning")
	trimCmd.Flags().BoolVar(&trimOverwrite, "overwrite", false, "Replace the output file if it exists")
	trimCmd.MarkFlagRequired("source")
	trimCmd.MarkFlagRequired("start")
	trimCmd.MarkFlagRequired("end")
}

func runTrim(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	keyframes, scanner := newKeyframeService(cfg)
	cutter, err := newCutter(cfg)
	if err != nil {
		return err
	}
	if err := verifyInstalled(ctx, cutter, cfg.Cutter.Tool); err != nil {
		return err
	}
	if trimInterval == "" {
		if err := verifyInstalled(ctx, scanner, "ffprobe"); err != nil {
			return err
		}
	}

	output := trimOutputPath
	if output == "" {
		output = defaultClipPath(cfg.Paths.OutputDirectory, trimName, trimSourcePath, trimStartTime, trimEndTime)
	}

	return RunTrimWithDependencies(
		ctx,
		keyframes,
		cutter,
		filesystem.NewChecker(),
		TrimCommandInput{
			SourcePath: trimSourcePath,
			StartTime:  trimStartTime,
			EndTime:    trimEndTime,
			OutputPath: output,
			Interval:   trimInterval,
			Overwrite:  trimOverwrite,
		},
		os.Stdout,
	)
}

// defaultClipPath names a clip after --name, or after its requested range
func defaultClipPath(dir, name, source, start, end string) string {
	if name == "" {
		name = "clip " + start + " " + end
	}
	return filepath.Join(dir, video.SegmentFilename(name, source))
}

// OutputWriter allows capturing output in tests
type OutputWriter = io.Writer

// KeyframeLoader loads the keyframe index of a source
type KeyframeLoader interface {
	Load(ctx context.Context, source video.KeyframeSource) (*video.KeyframeIndex, error)
}

// TrimCommandInput holds the flags of the trim command
type TrimCommandInput struct {
	SourcePath string
	StartTime  string
	EndTime    string
	OutputPath string
	Interval   string
	Overwrite  bool
}

// RunTrimWithDependencies runs the trim command with injected dependencies (for testing)
func RunTrimWithDependencies(
	ctx context.Context,
	keyframes KeyframeLoader,
	cutter video.Cutter,
	fileChecker video.FileChecker,
	input TrimCommandInput,
	output OutputWriter,
) error {
	req, err := appvideo.TrimInput{
		SourcePath: input.SourcePath,
		StartTime:  input.StartTime,
		EndTime:    input.EndTime,
		OutputPath: input.OutputPath,
	}.Request()
	if err != nil {
		return err
	}

	if !input.Overwrite && fileChecker.Exists(req.OutputPath) {
		return fmt.Errorf("output file already exists: %s (use --overwrite to replace it)", req.OutputPath)
	}

	interval, err := parseInterval(input.Interval)
	if err != nil {
		return err
	}
	source, err := appvideo.Source(req.SourcePath, interval)
	if err != nil {
		return err
	}

	if !fileChecker.Exists(req.SourcePath) {
		return fmt.Errorf("source file does not exist: %s", req.SourcePath)
	}

	fmt.Fprintf(output, "Loading keyframes (%s)...\n", source)
	index, err := keyframes.Load(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to load keyframes: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	result, err := newTrimService(cutter, fileChecker).Trim(ctx, index, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(output, "Requested: %s\n", result.Requested)
	fmt.Fprintf(output, "Actual:    %s (%s)\n", result.Actual, result.Actual.Length())
	fmt.Fprintf(output, "Successfully created: %s\n", result.OutputPath)
	return nil
}

func newTrimService(cutter video.Cutter, fileChecker video.FileChecker) *appvideo.TrimService {
	return appvideo.NewTrimService(cutter, fileChecker, appvideo.WithTrimLogger(slog.Default()))
}

// parseInterval reads the --interval flag
func parseInterval(value string) (video.Timestamp, error) {
	interval, err := video.ParseInterval(value)
	if err != nil {
		return 0, fmt.Errorf("invalid keyframe interval: %w", err)
	}
	return interval, nil
}
