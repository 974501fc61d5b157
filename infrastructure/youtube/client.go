package youtube

import (
	"context"
	"fmt"
	"io"
	"os"

	"tourney-media/domain/distribution"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"
)

// chunkSize is the resumable upload chunk size
const chunkSize = 8 * 1024 * 1024

// WatchURLPrefix is prepended to a video ID to build its public URL
const WatchURLPrefix = "https://www.youtube.com/watch?v="

// VideoService defines the interface for YouTube Data API operations
// This allows mocking the YouTube API in tests
type VideoService interface {
	InsertVideo(ctx context.Context, video *youtube.Video, media io.Reader, progress googleapi.ProgressUpdater) (*youtube.Video, error)
}

// GoogleVideoService is the production implementation using the YouTube Data API
type GoogleVideoService struct {
	service *youtube.Service
}

// InsertVideo performs a resumable Videos.Insert
func (s *GoogleVideoService) InsertVideo(ctx context.Context, video *youtube.Video, media io.Reader, progress googleapi.ProgressUpdater) (*youtube.Video, error) {
	return s.service.Videos.Insert([]string{"snippet", "status"}, video).
		Media(media, googleapi.ChunkSize(chunkSize)).
		ProgressUpdater(progress).
		Context(ctx).
		Do()
}

// Client implements distribution.VideoUploader using the YouTube Data API
type Client struct {
	videoService VideoService
	categoryID   string
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithVideoService sets a custom video service (for testing)
func WithVideoService(svc VideoService) ClientOption {
	return func(c *Client) {
		c.videoService = svc
	}
}

// WithCategory sets the YouTube category ID for uploads
func WithCategory(id string) ClientOption {
	return func(c *Client) {
		if id != "" {
			c.categoryID = id
		}
	}
}

// defaultCategory is the "Gaming" category
const defaultCategory = "20"

// Upload implements distribution.VideoUploader
func (c *Client) Upload(ctx context.Context, req distribution.UploadRequest, progress distribution.ProgressFunc) (*distribution.UploadResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	f, err := os.Open(req.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", req.LocalPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", req.LocalPath, err)
	}
	size := info.Size()

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Description,
			Tags:        req.Tags,
			CategoryId:  c.categoryID,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: req.Privacy,
		},
	}

	updater := func(current, _ int64) {
		if progress != nil {
			progress(current, size)
		}
	}

	uploaded, err := c.videoService.InsertVideo(ctx, video, f, updater)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", req.Title, err)
	}

	if progress != nil {
		progress(size, size)
	}

	title := req.Title
	if uploaded.Snippet != nil && uploaded.Snippet.Title != "" {
		title = uploaded.Snippet.Title
	}

	return &distribution.UploadResult{
		VideoID: uploaded.Id,
		Title:   title,
		URL:     WatchURLPrefix + uploaded.Id,
		Size:    size,
	}, nil
}

// Ensure Client implements distribution.VideoUploader
var _ distribution.VideoUploader = (*Client)(nil)
