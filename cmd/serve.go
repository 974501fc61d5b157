package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tourney-media/domain/mixer"
	"tourney-media/infrastructure/httpapi"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live operation API",
	Long: `Serve an HTTP API for stream-desk dashboards and hotkey tools. The mixer
connection is opened lazily on the first request and re-established when
OBS restarts.

Endpoints:
  GET  /api/mixer/status        POST /api/mixer/connect   POST /api/mixer/disconnect
  GET  /api/scene               GET  /api/recording
  POST /api/recording/start     POST /api/recording/stop
  GET  /api/thumbnail?source=&width=
  POST /api/replay
  GET  /api/events              (websocket stream of mixer events)

Example:
  tourney-media serve --addr 127.0.0.1:8090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := requireConfig()
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = cfg.Server.Addr
	}

	client, dialect, err := newMixerClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		client.Close()
		client.Disconnect()
	}()

	events := append([]string{mixer.EventConnectionOpened, mixer.EventConnectionClosed}, dialect.RecordingEvents()...)
	server := httpapi.NewServer(client,
		httpapi.WithEvents(events...),
		httpapi.WithLogger(slog.Default()))

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return RunServeWithDependencies(ctx, server, addr)
}

// APIServer is the live operation API
type APIServer interface {
	Run(ctx context.Context, addr string) error
}

// RunServeWithDependencies serves until ctx is cancelled
func RunServeWithDependencies(ctx context.Context, server APIServer, addr string) error {
	slog.Info("starting live operation API", "addr", addr)
	return server.Run(ctx, addr)
}
