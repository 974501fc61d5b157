package video

import "context"

// Cutter performs a lossless, container-level cut of a source video.
// This is a port implemented by an external remuxing tool.
type Cutter interface {
	// Cut copies [r.Start, r.End) of sourcePath into outputPath without re-encoding
	Cut(ctx context.Context, sourcePath string, r CutRange, outputPath string) error
}

// FileChecker reports whether a media file is present and usable.
// Sources are checked before scanning; outputs before deciding to skip a cut.
type FileChecker interface {
	Exists(path string) bool
}
