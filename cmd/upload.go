package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	appdist "tourney-media/application/distribution"
	"tourney-media/domain/distribution"
	"tourney-media/infrastructure/filesystem"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	uploadTitle       string
	uploadDescription string
	uploadNoProgress  bool
)

var uploadCmd = &cobra.Command{
	Use:   "upload [clip...]",
	Short: "Upload clips to YouTube",
	Long: `Upload one or more clips to YouTube with the configured privacy, category
and tags. With no arguments, the newest file in paths.output_directory is
uploaded.

The first run opens a browser to authorize the YouTube account; the token
is stored in youtube.token_file.

Example:
  tourney-media upload clips/winners-final.mkv --title "Winners Final: Alice vs Bob"
  tourney-media upload clips/*.mkv`,
	RunE: runUpload,
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().StringVar(&uploadTitle, "title", "", "Video title (single clip only; defaults to the file name)")
	uploadCmd.Flags().StringVar(&uploadDescription, "description", "", "Video description")
	uploadCmd.Flags().BoolVar(&uploadNoProgress, "no-progress", false, "Do not draw a progress bar")
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	paths := args
	if len(paths) == 0 {
		latest, err := filesystem.NewRecordingFiles().NewestFile(cfg.Paths.OutputDirectory)
		if err != nil {
			return fmt.Errorf("no clip specified and could not find latest: %w", err)
		}
		paths = []string{latest}
	}
	if uploadTitle != "" && len(paths) > 1 {
		return fmt.Errorf("--title can only be used with a single clip")
	}

	ctx := cmd.Context()
	service, err := newUploadService(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}

	return RunUploadWithDependencies(ctx, service, paths, uploadTitle, uploadDescription, !uploadNoProgress, os.Stdout)
}

// Uploader publishes one clip
type Uploader interface {
	Upload(ctx context.Context, input appdist.UploadInput, progress distribution.ProgressFunc) (*distribution.UploadResult, error)
}

// RunUploadWithDependencies runs the upload command with injected dependencies (for testing)
func RunUploadWithDependencies(
	ctx context.Context,
	uploader Uploader,
	paths []string,
	title string,
	description string,
	showProgress bool,
	output OutputWriter,
) error {
	for i, path := range paths {
		fmt.Fprintf(output, "[%d/%d] Uploading %s...\n", i+1, len(paths), filepath.Base(path))

		var progress distribution.ProgressFunc
		var bar *progressbar.ProgressBar
		if showProgress {
			progress = func(sent, total int64) {
				if bar == nil {
					bar = progressbar.DefaultBytes(total, "      uploading")
				}
				bar.Set64(sent)
			}
		}

		_, err := uploader.Upload(ctx, appdist.UploadInput{
			Path:        path,
			Title:       title,
			Description: description,
		}, progress)
		if bar != nil {
			bar.Finish()
			fmt.Fprintln(output)
		}
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
	}

	fmt.Fprintf(output, "Upload complete!\n")
	return nil
}
