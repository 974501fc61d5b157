package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"tourney-media/infrastructure/config"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tourney-media",
	Short: "Record, clip and publish tournament streams",
	Long: `tourney-media drives OBS during a tournament and turns the recordings
into published VODs:

  - Control OBS recording, thumbnails and the replay buffer
  - Trim recordings losslessly on keyframe boundaries
  - Cut a whole bracket's sets from a cut sheet
  - Upload finished clips to YouTube

Example:
  tourney-media trim --source "2026-10-17 18-00-00.mkv" --start 01:02:03 --end 01:20:00`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = "config/config.yaml"
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		// Config file is optional for some commands (like help)
		// Commands that need config will check and error appropriately
		cfg = nil
	}
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

// requireConfig returns the loaded configuration or an error naming the fix
func requireConfig() (*config.Config, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded; run 'tourney-media setup' or pass --config")
	}
	return cfg, nil
}
