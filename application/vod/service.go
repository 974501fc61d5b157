package vod

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	appdist "tourney-media/application/distribution"
	appvideo "tourney-media/application/video"
	"tourney-media/domain/distribution"
	"tourney-media/domain/video"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is how many segments are cut at once
const DefaultConcurrency = 2

// KeyframeLoader builds the keyframe index of a source
type KeyframeLoader interface {
	Load(ctx context.Context, source video.KeyframeSource) (*video.KeyframeIndex, error)
}

// Trimmer cuts one aligned segment
type Trimmer interface {
	Trim(ctx context.Context, index *video.KeyframeIndex, req *video.TrimRequest) (*appvideo.TrimResult, error)
}

// Uploader publishes a finished clip
type Uploader interface {
	Upload(ctx context.Context, input appdist.UploadInput, progress distribution.ProgressFunc) (*distribution.UploadResult, error)
}

// Status is the outcome of one segment
type Status string

const (
	StatusCut     Status = "cut"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// SegmentOutcome reports what happened to one segment
type SegmentOutcome struct {
	Name       string
	OutputPath string
	Status     Status
	Requested  video.CutRange
	Actual     video.CutRange
	URL        string // set when the clip was uploaded
	Err        error
}

// BatchResult contains the outcomes of a cut sheet, in sheet order
type BatchResult struct {
	Source   string
	Segments []SegmentOutcome
	Elapsed  time.Duration
}

// Count returns how many segments ended with status
func (r *BatchResult) Count(status Status) int {
	n := 0
	for _, s := range r.Segments {
		if s.Status == status {
			n++
		}
	}
	return n
}

// Service cuts every segment of a cut sheet out of its recording
type Service struct {
	keyframes   KeyframeLoader
	trimmer     Trimmer
	fileChecker video.FileChecker
	uploader    Uploader
	concurrency int
	logger      *slog.Logger
	output      io.Writer

	outMu sync.Mutex
}

// Option is a functional option for configuring Service
type Option func(*Service)

// WithConcurrency bounds how many segments are cut at once
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithUploader publishes each newly cut clip
func WithUploader(u Uploader) Option {
	return func(s *Service) {
		s.uploader = u
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithOutput sets where progress lines are written
func WithOutput(w io.Writer) Option {
	return func(s *Service) {
		s.output = w
	}
}

// NewService creates a new batch cutting service
func NewService(keyframes KeyframeLoader, trimmer Trimmer, fileChecker video.FileChecker, opts ...Option) *Service {
	s := &Service{
		keyframes:   keyframes,
		trimmer:     trimmer,
		fileChecker: fileChecker,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		output:      io.Discard,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Run cuts the sheet. Segments whose output already exists are skipped and
// a failed segment does not stop the others. The error is non-nil only when
// the sheet itself is unusable or ctx is cancelled.
func (s *Service) Run(ctx context.Context, sheet *CutSheet) (*BatchResult, error) {
	started := time.Now()

	planned, err := sheet.plan()
	if err != nil {
		return nil, err
	}
	if !s.fileChecker.Exists(sheet.Source) {
		return nil, fmt.Errorf("source file does not exist: %s", sheet.Source)
	}

	interval, _ := sheet.Interval()
	source, err := appvideo.Source(sheet.Source, interval)
	if err != nil {
		return nil, err
	}

	s.printf("Source: %s (%d segments)\n", filepath.Base(sheet.Source), len(planned))
	index, err := s.keyframes.Load(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load keyframes: %w", err)
	}

	if err := os.MkdirAll(sheet.OutputDir(), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BatchResult{
		Source:   sheet.Source,
		Segments: make([]SegmentOutcome, len(planned)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, seg := range planned {
		if gctx.Err() != nil {
			result.Segments[i] = s.failed(seg, gctx.Err())
			continue
		}
		g.Go(func() error {
			result.Segments[i] = s.cut(gctx, index, seg)
			return nil
		})
	}
	_ = g.Wait()

	result.Elapsed = time.Since(started)
	s.printf("Done in %s: %d cut, %d skipped, %d failed\n",
		result.Elapsed.Round(time.Second),
		result.Count(StatusCut), result.Count(StatusSkipped), result.Count(StatusFailed))

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Service) cut(ctx context.Context, index *video.KeyframeIndex, seg plannedSegment) SegmentOutcome {
	req := seg.request
	outcome := SegmentOutcome{
		Name:       seg.Name,
		OutputPath: req.OutputPath,
		Requested:  req.Requested(),
		Actual:     req.Align(index),
	}

	if s.fileChecker.Exists(req.OutputPath) {
		outcome.Status = StatusSkipped
		s.printf("  skip  %s (exists)\n", filepath.Base(req.OutputPath))
		return outcome
	}

	trimmed, err := s.trimmer.Trim(ctx, index, req)
	if err != nil {
		return s.failed(seg, err)
	}
	outcome.Status = StatusCut
	outcome.Actual = trimmed.Actual
	s.printf("  cut   %s [%s]\n", filepath.Base(req.OutputPath), trimmed.Actual)

	if s.uploader == nil {
		return outcome
	}

	title := seg.Title
	if title == "" {
		title = seg.Name
	}
	uploaded, err := s.uploader.Upload(ctx, appdist.UploadInput{Path: req.OutputPath, Title: title}, nil)
	if err != nil {
		s.logger.Warn("segment upload failed", "segment", seg.Name, "error", err)
		outcome.Err = err
		return outcome
	}
	outcome.URL = uploaded.URL
	return outcome
}

func (s *Service) failed(seg plannedSegment, err error) SegmentOutcome {
	s.logger.Warn("segment failed", "segment", seg.Name, "output", seg.request.OutputPath, "error", err)
	s.printf("  FAIL  %s: %v\n", filepath.Base(seg.request.OutputPath), err)
	return SegmentOutcome{
		Name:       seg.Name,
		OutputPath: seg.request.OutputPath,
		Status:     StatusFailed,
		Requested:  seg.request.Requested(),
		Err:        err,
	}
}

func (s *Service) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.output, format, args...)
}
