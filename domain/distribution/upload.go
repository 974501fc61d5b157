package distribution

import (
	"context"
	"fmt"
)

// Privacy statuses accepted by the video host
const (
	PrivacyPrivate  = "private"
	PrivacyUnlisted = "unlisted"
	PrivacyPublic   = "public"
)

// MimeTypeMKV and MimeTypeMP4 are the container formats clips are cut into
const (
	MimeTypeMP4 = "video/mp4"
	MimeTypeMKV = "video/x-matroska"
)

// UploadRequest contains the parameters needed to publish one clip
type UploadRequest struct {
	LocalPath   string   // Full path to the local file
	Title       string   // Video title
	Description string   // Video description
	Tags        []string // Optional tags
	Privacy     string   // private, unlisted or public
	MimeType    string   // MIME type of the file
}

// Validate checks the request before any bytes are sent
func (r UploadRequest) Validate() error {
	if r.LocalPath == "" {
		return fmt.Errorf("local path is required")
	}
	if r.Title == "" {
		return fmt.Errorf("title is required")
	}
	switch r.Privacy {
	case PrivacyPrivate, PrivacyUnlisted, PrivacyPublic:
		return nil
	default:
		return fmt.Errorf("invalid privacy status %q", r.Privacy)
	}
}

// UploadResult contains the result of a successful upload
type UploadResult struct {
	VideoID string // Host video ID
	Title   string // Title as published
	URL     string // Watch URL
	Size    int64  // Size of the uploaded file in bytes
}

// ProgressFunc receives upload progress; total is the file size in bytes
type ProgressFunc func(sent, total int64)

// VideoUploader publishes a video file in a single call. Progress is
// reported through the optional callback.
// This is a port that can be implemented by different infrastructure adapters
type VideoUploader interface {
	Upload(ctx context.Context, req UploadRequest, progress ProgressFunc) (*UploadResult, error)
}
