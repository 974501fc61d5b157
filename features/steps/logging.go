//go:build integration

package steps

import (
	"io"
	"log/slog"
	"os"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// tempDir creates a scenario directory under the OS temp dir
func tempDir(pattern string) (string, error) {
	return os.MkdirTemp("", pattern)
}
