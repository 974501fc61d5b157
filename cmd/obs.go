package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"tourney-media/domain/mixer"

	"github.com/spf13/cobra"
)

var obsCmd = &cobra.Command{
	Use:   "obs",
	Short: "Control OBS over obs-websocket",
	Long: `Control the OBS instance configured under obs: in config.yaml.

Both obs-websocket 4.x and 5.x are supported; set obs.protocol to v4 or v5.

Examples:
  tourney-media obs status
  tourney-media obs record start
  tourney-media obs thumbnail --source "Game Capture" --width 640 -o thumb.png
  tourney-media obs replay`,
}

var obsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show connection, scene and recording status",
	Args:  cobra.NoArgs,
	RunE: withMixer(func(ctx context.Context, c mixer.Controller, args []string) error {
		return RunOBSStatusWithDependencies(ctx, c, os.Stdout)
	}),
}

var obsRecordCmd = &cobra.Command{
	Use:       "record <start|stop>",
	Short:     "Start or stop recording",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"start", "stop"},
	RunE: withMixer(func(ctx context.Context, c mixer.Controller, args []string) error {
		return RunOBSRecordWithDependencies(ctx, c, args[0], os.Stdout)
	}),
}

var (
	thumbnailSource string
	thumbnailWidth  int
	thumbnailOutput string
)

var obsThumbnailCmd = &cobra.Command{
	Use:   "thumbnail",
	Short: "Save a PNG screenshot of a source",
	Args:  cobra.NoArgs,
	RunE: withMixer(func(ctx context.Context, c mixer.Controller, args []string) error {
		return RunOBSThumbnailWithDependencies(ctx, c, thumbnailSource, thumbnailWidth, thumbnailOutput, os.Stdout)
	}),
}

var obsReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Save the replay buffer and print the saved file",
	Args:  cobra.NoArgs,
	RunE: withMixer(func(ctx context.Context, c mixer.Controller, args []string) error {
		return RunOBSReplayWithDependencies(ctx, c, os.Stdout)
	}),
}

func init() {
	rootCmd.AddCommand(obsCmd)
	obsCmd.AddCommand(obsStatusCmd)
	obsCmd.AddCommand(obsRecordCmd)
	obsCmd.AddCommand(obsThumbnailCmd)
	obsCmd.AddCommand(obsReplayCmd)

	obsThumbnailCmd.Flags().StringVar(&thumbnailSource, "source", "", "Source or scene name (defaults to the program scene)")
	obsThumbnailCmd.Flags().IntVar(&thumbnailWidth, "width", 1280, "Image width in pixels")
	obsThumbnailCmd.Flags().StringVarP(&thumbnailOutput, "output", "o", "thumbnail.png", "Output file")
}

// withMixer connects a mixer client for the duration of one command
func withMixer(run func(ctx context.Context, c mixer.Controller, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}

		client, _, err := newMixerClient(cfg)
		if err != nil {
			return err
		}
		defer func() {
			client.Close()
			client.Disconnect()
		}()

		ctx := cmd.Context()
		if err := client.Connect(ctx); err != nil {
			return err
		}
		return run(ctx, client, args)
	}
}

// RunOBSStatusWithDependencies prints the mixer status
func RunOBSStatusWithDependencies(ctx context.Context, c mixer.Controller, output OutputWriter) error {
	fmt.Fprintf(output, "Connected: %t\n", c.IsConnected())

	scene, err := c.CurrentScene(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(output, "Scene:     %s\n", scene)

	folder, err := c.RecordingFolder(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(output, "Folder:    %s\n", folder)

	timestamp, err := c.RecordingTimestamp(ctx)
	switch {
	case errors.Is(err, mixer.ErrNotRecording):
		fmt.Fprintf(output, "Recording: no\n")
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintf(output, "Recording: yes (%s)\n", timestamp)

	if file, err := c.RecordingFile(ctx); err == nil {
		fmt.Fprintf(output, "File:      %s\n", file)
	}
	return nil
}

// RunOBSRecordWithDependencies starts or stops recording
func RunOBSRecordWithDependencies(ctx context.Context, c mixer.Controller, action string, output OutputWriter) error {
	switch action {
	case "start":
		if err := c.StartRecording(ctx); err != nil {
			return err
		}
		fmt.Fprintf(output, "Recording started\n")
	case "stop":
		if err := c.StopRecording(ctx); err != nil {
			return err
		}
		fmt.Fprintf(output, "Recording stopped\n")
	default:
		return fmt.Errorf("unknown record action %q. Use start or stop", action)
	}
	return nil
}

// RunOBSThumbnailWithDependencies saves a screenshot of source to path
func RunOBSThumbnailWithDependencies(ctx context.Context, c mixer.Controller, source string, width int, path string, output OutputWriter) error {
	img, err := c.TakeThumbnail(ctx, source, width)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, img, 0644); err != nil {
		return fmt.Errorf("failed to write thumbnail: %w", err)
	}
	fmt.Fprintf(output, "Saved thumbnail: %s (%d bytes)\n", path, len(img))
	return nil
}

// RunOBSReplayWithDependencies saves the replay buffer
func RunOBSReplayWithDependencies(ctx context.Context, c mixer.Controller, output OutputWriter) error {
	path, err := c.SaveReplayBuffer(ctx)
	if err != nil {
		if errors.Is(err, mixer.ErrTimeout) {
			return fmt.Errorf("replay buffer save was requested but no file appeared: %w", err)
		}
		return err
	}
	fmt.Fprintf(output, "Saved replay: %s\n", path)
	return nil
}
