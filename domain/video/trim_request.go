package video

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// TrimRequest represents a request to cut [Start, End) out of a source video
type TrimRequest struct {
	SourcePath string
	Start      Timestamp
	End        Timestamp
	OutputPath string
}

// CutRange is a pair of keyframe-aligned boundaries handed to a Cutter
type CutRange struct {
	Start Timestamp
	End   Timestamp
}

// String returns the range as start-end
func (r CutRange) String() string {
	return r.Start.String() + "-" + r.End.String()
}

// Length returns the length of the range
func (r CutRange) Length() Timestamp {
	return r.End - r.Start
}

// NewTrimRequest creates a new TrimRequest and validates it
func NewTrimRequest(sourcePath string, start, end Timestamp, outputPath string) (*TrimRequest, error) {
	req := &TrimRequest{
		SourcePath: sourcePath,
		Start:      start,
		End:        end,
		OutputPath: outputPath,
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return req, nil
}

// Validate checks that the trim request is valid.
// Start may equal End; the cut is expanded outward to keyframes anyway.
func (r *TrimRequest) Validate() error {
	if r.SourcePath == "" {
		return fmt.Errorf("source path is required")
	}

	if r.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}

	if r.Start < 0 {
		return fmt.Errorf("start time %s must not be negative", r.Start)
	}

	if r.End.Before(r.Start) {
		return fmt.Errorf("end time %s must not be before start time %s", r.End, r.Start)
	}

	return nil
}

// Requested returns the range as the caller asked for it
func (r *TrimRequest) Requested() CutRange {
	return CutRange{Start: r.Start, End: r.End}
}

// Align snaps the request outward to the keyframes of index
func (r *TrimRequest) Align(index *KeyframeIndex) CutRange {
	return CutRange{
		Start: index.ClosestPreceding(r.Start),
		End:   index.ClosestSubsequent(r.End),
	}
}

// recordingFilenameRegex matches the OBS default output name: YYYY-MM-DD HH-MM-SS.ext
var recordingFilenameRegex = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}-\d{2}-\d{2})\.\w+$`)

// RecordingStartTime parses the wall-clock start time from an OBS recording filename
func RecordingStartTime(path string) (time.Time, error) {
	filename := filepath.Base(path)

	matches := recordingFilenameRegex.FindStringSubmatch(filename)
	if matches == nil {
		return time.Time{}, fmt.Errorf("recording filename %q does not match expected format 'YYYY-MM-DD HH-MM-SS.ext'", filename)
	}

	start, err := time.ParseInLocation("2006-01-02 15-04-05", matches[1], time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date in filename: %w", err)
	}
	return start, nil
}

var slugRegex = regexp.MustCompile(`[^a-z0-9]+`)

// SegmentFilename builds an output filename from a segment name and the
// source extension, e.g. "Grand Finals: A vs B" -> "grand-finals-a-vs-b.mkv"
func SegmentFilename(name, sourcePath string) string {
	slug := strings.Trim(slugRegex.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "segment"
	}
	return slug + filepath.Ext(sourcePath)
}
