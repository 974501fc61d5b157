package distribution

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tourney-media/domain/distribution"
	"tourney-media/domain/video"
)

// UploadService publishes finished clips to the video host
type UploadService struct {
	uploader distribution.VideoUploader
	privacy  string
	tags     []string
	output   io.Writer
}

// NewUploadService creates a new upload service
func NewUploadService(uploader distribution.VideoUploader, privacy string, tags []string, output io.Writer) *UploadService {
	if output == nil {
		output = io.Discard
	}
	if privacy == "" {
		privacy = distribution.PrivacyPrivate
	}
	return &UploadService{
		uploader: uploader,
		privacy:  privacy,
		tags:     tags,
		output:   output,
	}
}

// UploadInput describes one clip to publish
type UploadInput struct {
	Path        string
	Title       string // defaults to the file name
	Description string
}

// Upload publishes a clip and returns its result
func (s *UploadService) Upload(ctx context.Context, input UploadInput, progress distribution.ProgressFunc) (*distribution.UploadResult, error) {
	// Verify file exists
	if _, err := os.Stat(input.Path); os.IsNotExist(err) {
		return nil, fmt.Errorf("file does not exist: %s", input.Path)
	}

	title := input.Title
	if title == "" {
		title = TitleFromFilename(input.Path)
	}

	description := input.Description
	if description == "" {
		if started, err := video.RecordingStartTime(input.Path); err == nil {
			description = "Recorded " + started.Format("Monday, January 2, 2006 at 15:04")
		}
	}

	req := distribution.UploadRequest{
		LocalPath:   input.Path,
		Title:       title,
		Description: description,
		Tags:        s.tags,
		Privacy:     s.privacy,
		MimeType:    mimeTypeFor(input.Path),
	}

	result, err := s.uploader.Upload(ctx, req, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", filepath.Base(input.Path), err)
	}

	fmt.Fprintf(s.output, "      Uploaded %s (%.1f MB): %s\n", result.Title, float64(result.Size)/1024/1024, result.URL)
	return result, nil
}

// TitleFromFilename turns "grand-finals_set-3.mkv" into "grand finals set 3"
func TitleFromFilename(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.Join(strings.FieldsFunc(base, func(r rune) bool {
		return r == '-' || r == '_'
	}), " ")
}

func mimeTypeFor(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".mp4") {
		return distribution.MimeTypeMP4
	}
	return distribution.MimeTypeMKV
}
