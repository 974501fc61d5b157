package video

import (
	"context"
	"fmt"
	"log/slog"

	"tourney-media/domain/video"
)

// TrimResult contains the result of a trim operation
type TrimResult struct {
	OutputPath string
	Requested  video.CutRange
	Actual     video.CutRange
}

// TrimService coordinates keyframe-aligned trimming
type TrimService struct {
	cutter      video.Cutter
	fileChecker video.FileChecker
	logger      *slog.Logger
}

// TrimOption is a functional option for configuring TrimService
type TrimOption func(*TrimService)

// WithTrimLogger sets the logger
func WithTrimLogger(logger *slog.Logger) TrimOption {
	return func(s *TrimService) {
		s.logger = logger
	}
}

// NewTrimService creates a new TrimService
func NewTrimService(cutter video.Cutter, fileChecker video.FileChecker, opts ...TrimOption) *TrimService {
	s := &TrimService{
		cutter:      cutter,
		fileChecker: fileChecker,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TrimInput represents the input for a trim operation
type TrimInput struct {
	SourcePath string
	StartTime  string
	EndTime    string
	OutputPath string
}

// Request parses the input timestamps into a TrimRequest
func (in TrimInput) Request() (*video.TrimRequest, error) {
	start, err := video.ParseTimestamp(in.StartTime)
	if err != nil {
		return nil, fmt.Errorf("invalid start time: %w", err)
	}

	end, err := video.ParseTimestamp(in.EndTime)
	if err != nil {
		return nil, fmt.Errorf("invalid end time: %w", err)
	}

	return video.NewTrimRequest(in.SourcePath, start, end, in.OutputPath)
}

// Trim cuts req out of its source, widened to the enclosing keyframes of
// index so the cut never starts or ends between keyframes
func (s *TrimService) Trim(ctx context.Context, index *video.KeyframeIndex, req *video.TrimRequest) (*TrimResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Verify source file exists
	if !s.fileChecker.Exists(req.SourcePath) {
		return nil, fmt.Errorf("source file does not exist: %s", req.SourcePath)
	}

	actual := req.Align(index)
	s.logger.Debug("trimming",
		"source", req.SourcePath,
		"requested", req.Requested().String(),
		"actual", actual.String())

	if err := s.cutter.Cut(ctx, req.SourcePath, actual, req.OutputPath); err != nil {
		return nil, err
	}

	return &TrimResult{
		OutputPath: req.OutputPath,
		Requested:  req.Requested(),
		Actual:     actual,
	}, nil
}
