package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	appvideo "tourney-media/application/video"
	"tourney-media/domain/video"
	"tourney-media/infrastructure/filesystem"

	"github.com/spf13/cobra"
)

var (
	keyframesList    bool
	keyframesRefresh bool
	keyframesAt      []string
)

var keyframesCmd = &cobra.Command{
	Use:   "keyframes <recording>",
	Short: "Scan and cache the keyframes of a recording",
	Long: `Scan a recording's keyframes with ffprobe and write the sidecar cache used
by trim and cut. Scanning a multi-hour recording takes a while; doing it
ahead of time makes later cuts instant.

Use --at to see where a timestamp would be cut.

Example:
  tourney-media keyframes "/rec/2026-10-17 18-00-00.mkv"
  tourney-media keyframes "/rec/2026-10-17 18-00-00.mkv" --at 01:02:03.5 --at 01:20:00`,
	Args: cobra.ExactArgs(1),
	RunE: runKeyframes,
}

func init() {
	rootCmd.AddCommand(keyframesCmd)
	keyframesCmd.Flags().BoolVar(&keyframesList, "list", false, "Print every keyframe")
	keyframesCmd.Flags().BoolVar(&keyframesRefresh, "refresh", false, "Discard the cached keyframes and rescan")
	keyframesCmd.Flags().StringArrayVar(&keyframesAt, "at", nil, "Show the keyframes around a timestamp (repeatable)")
}

func runKeyframes(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	keyframes, scanner := newKeyframeService(cfg)
	if err := verifyInstalled(ctx, scanner, "ffprobe"); err != nil {
		return err
	}

	if keyframesRefresh {
		sidecar := filesystem.NewKeyframeCache(cfg.Paths.WorkingDirectory).Path(args[0])
		if err := os.Remove(sidecar); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove keyframe cache: %w", err)
		}
	}

	return RunKeyframesWithDependencies(ctx, keyframes, args[0], keyframesAt, keyframesList, os.Stdout)
}

// RunKeyframesWithDependencies runs the keyframes command with injected dependencies (for testing)
func RunKeyframesWithDependencies(
	ctx context.Context,
	keyframes KeyframeLoader,
	sourcePath string,
	at []string,
	list bool,
	output OutputWriter,
) error {
	source, err := appvideo.Source(sourcePath, 0)
	if err != nil {
		return err
	}

	index, err := keyframes.Load(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to load keyframes: %w", err)
	}

	all := index.Keyframes()
	fmt.Fprintf(output, "%d keyframes in %s\n", len(all), sourcePath)
	if len(all) > 0 {
		fmt.Fprintf(output, "First: %s  Last: %s\n", all[0], all[len(all)-1])
	}

	for _, raw := range at {
		t, err := video.ParseTimestamp(raw)
		if err != nil {
			return fmt.Errorf("invalid --at timestamp: %w", err)
		}
		fmt.Fprintf(output, "%s: preceding %s, subsequent %s\n", t, index.ClosestPreceding(t), index.ClosestSubsequent(t))
	}

	if list {
		for _, k := range all {
			fmt.Fprintln(output, k)
		}
	}
	return nil
}
