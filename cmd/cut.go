package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"tourney-media/application/vod"
	"tourney-media/domain/video"
	"tourney-media/infrastructure/filesystem"

	"github.com/spf13/cobra"
)

var (
	cutUpload      bool
	cutConcurrency int
)

var cutCmd = &cobra.Command{
	Use:   "cut <cut-sheet.yaml>",
	Short: "Cut every set of a cut sheet out of a recording",
	Long: `Cut the segments listed in a cut sheet out of one recording, losslessly and
on keyframe boundaries. Segments whose output file already exists are
skipped, so a sheet can be re-run after adding sets. A failed segment is
reported and the rest continue.

Cut sheet format:

  source: "2026-10-17 18-00-00.mkv"
  output_directory: clips        # optional, defaults to the source directory
  keyframe_interval: 2           # optional, skips the keyframe scan
  segments:
    - name: Winners Final
      title: "Winners Final: Alice vs Bob"   # optional, used for uploads
      start: "01:02:03.5"
      end: "01:20:00"

Example:
  tourney-media cut weekly-42.yaml --upload`,
	Args: cobra.ExactArgs(1),
	RunE: runCut,
}

func init() {
	rootCmd.AddCommand(cutCmd)
	cutCmd.Flags().BoolVar(&cutUpload, "upload", false, "Upload each new clip to YouTube")
	cutCmd.Flags().IntVar(&cutConcurrency, "concurrency", 0, "Segments to cut at once (default cutter.concurrency)")
}

func runCut(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	sheet, err := vod.LoadCutSheet(args[0])
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
	if sheet.KeyframeInterval == "" {
		if err := verifyInstalled(ctx, scanner, "ffprobe"); err != nil {
			return err
		}
	}

	concurrency := cutConcurrency
	if concurrency <= 0 {
		concurrency = cfg.Cutter.Concurrency
	}

	var uploader vod.Uploader
	if cutUpload {
		service, err := newUploadService(ctx, cfg, os.Stdout)
		if err != nil {
			return err
		}
		uploader = service
	}

	return RunCutWithDependencies(ctx, keyframes, cutter, filesystem.NewChecker(), uploader, sheet, concurrency, os.Stdout)
}

// RunCutWithDependencies runs the cut command with injected dependencies (for testing)
func RunCutWithDependencies(
	ctx context.Context,
	keyframes KeyframeLoader,
	cutter video.Cutter,
	fileChecker video.FileChecker,
	uploader vod.Uploader,
	sheet *vod.CutSheet,
	concurrency int,
	output OutputWriter,
) error {
	opts := []vod.Option{
		vod.WithConcurrency(concurrency),
		vod.WithLogger(slog.Default()),
		vod.WithOutput(output),
	}
	if uploader != nil {
		opts = append(opts, vod.WithUploader(uploader))
	}

	trimmer := newTrimService(cutter, fileChecker)
	service := vod.NewService(keyframes, trimmer, fileChecker, opts...)

	result, err := service.Run(ctx, sheet)
	if err != nil {
		return err
	}

	for _, seg := range result.Segments {
		if seg.URL != "" {
			fmt.Fprintf(output, "%s: %s\n", seg.Name, seg.URL)
		}
	}

	if failed := result.Count(vod.StatusFailed); failed > 0 {
		return fmt.Errorf("%d of %d segments failed", failed, len(result.Segments))
	}
	return nil
}
