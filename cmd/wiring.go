package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	appdist "tourney-media/application/distribution"
	appmixer "tourney-media/application/mixer"
	appvideo "tourney-media/application/video"
	"tourney-media/domain/mixer"
	"tourney-media/domain/video"
	"tourney-media/infrastructure/config"
	"tourney-media/infrastructure/ffmpeg"
	"tourney-media/infrastructure/filesystem"
	"tourney-media/infrastructure/obs"
	"tourney-media/infrastructure/youtube"
)

// toolCheckTimeout bounds the "is the binary installed" probes
const toolCheckTimeout = 5 * time.Second

// verifier is implemented by adapters that shell out to an external tool
type verifier interface {
	VerifyInstalled(ctx context.Context) error
}

func verifyInstalled(ctx context.Context, v any, tool string) error {
	check, ok := v.(verifier)
	if !ok {
		return nil
	}
	verifyCtx, cancel := context.WithTimeout(ctx, toolCheckTimeout)
	defer cancel()
	if err := check.VerifyInstalled(verifyCtx); err != nil {
		return fmt.Errorf("%s verification failed: %w", tool, err)
	}
	return nil
}

// newKeyframeService builds the production keyframe service
func newKeyframeService(cfg *config.Config) (*appvideo.KeyframeService, *ffmpeg.Scanner) {
	scanner := ffmpeg.NewScanner(ffmpeg.WithFFprobePath(cfg.Keyframes.FFprobePath))
	cache := filesystem.NewKeyframeCache(cfg.Paths.WorkingDirectory)
	return appvideo.NewKeyframeService(scanner, cache, appvideo.WithKeyframeLogger(slog.Default())), scanner
}

// newCutter builds the configured lossless cutter
func newCutter(cfg *config.Config) (video.Cutter, error) {
	path := cfg.Cutter.FFmpegPath
	if cfg.Cutter.Tool == ffmpeg.ToolMKVMerge {
		path = cfg.Cutter.MKVMergePath
	}
	return ffmpeg.NewCutter(cfg.Cutter.Tool, path)
}

// newMixerClient builds a Client for the configured OBS endpoint. The
// client is not connected; the first request connects it.
func newMixerClient(cfg *config.Config) (*appmixer.Client, mixer.Dialect, error) {
	transport, err := obs.NewTransport(cfg.OBS.Protocol,
		obs.WithRequestTimeout(cfg.OBS.RequestTimeout),
		obs.WithTransportLogger(slog.Default()))
	if err != nil {
		return nil, nil, err
	}

	dialect, err := obs.NewDialect(cfg.OBS.Protocol)
	if err != nil {
		return nil, nil, err
	}

	conn := appmixer.NewConnectionManager(transport,
		mixer.Address{URL: cfg.OBS.Address, Password: cfg.OBS.Password},
		appmixer.WithConnectAttempts(cfg.OBS.ConnectAttempts),
		appmixer.WithReconnectAttempts(cfg.OBS.ReconnectAttempts),
		appmixer.WithBackoff(cfg.OBS.InitialDelay, cfg.OBS.MaxDelay),
		appmixer.WithLogger(slog.Default()))

	client := appmixer.NewClient(conn, dialect, filesystem.NewRecordingFiles(),
		appmixer.WithReplayTimeout(cfg.OBS.ReplayTimeout),
		appmixer.WithClientLogger(slog.Default()))

	return client, dialect, nil
}

// newUploadService builds the YouTube upload service, running the OAuth
// flow on first use
func newUploadService(ctx context.Context, cfg *config.Config, output io.Writer) (*appdist.UploadService, error) {
	client, err := youtube.NewClientWithOAuth(ctx, youtube.OAuthConfig{
		CredentialsFile: cfg.YouTube.CredentialsFile,
		TokenFile:       cfg.YouTube.TokenFile,
		Output:          output,
	}, youtube.WithCategory(cfg.YouTube.CategoryID))
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube client: %w", err)
	}
	return appdist.NewUploadService(client, cfg.YouTube.Privacy, cfg.YouTube.Tags, output), nil
}
