package vod

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tourney-media/domain/video"

	"gopkg.in/yaml.v3"
)

// CutSheet lists the segments to cut out of one recording
type CutSheet struct {
	Source           string    `yaml:"source"`
	OutputDirectory  string    `yaml:"output_directory,omitempty"`
	KeyframeInterval string    `yaml:"keyframe_interval,omitempty"`
	Segments         []Segment `yaml:"segments"`
}

// Segment is one named range of the recording
type Segment struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title,omitempty"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// LoadCutSheet reads a cut sheet. Relative paths in the sheet are resolved
// against the sheet's own directory.
func LoadCutSheet(path string) (*CutSheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cut sheet: %w", err)
	}

	var sheet CutSheet
	if err := yaml.Unmarshal(data, &sheet); err != nil {
		return nil, fmt.Errorf("failed to parse cut sheet %s: %w", path, err)
	}

	base := filepath.Dir(path)
	sheet.Source = resolve(base, sheet.Source)
	sheet.OutputDirectory = resolve(base, sheet.OutputDirectory)

	return &sheet, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// plannedSegment is a validated segment with parsed times and its output path
type plannedSegment struct {
	Segment
	request *video.TrimRequest
}

// Interval parses keyframe_interval, accepting "2" or "2.5" seconds as well
// as "00:00:02". Zero means the source must be scanned.
func (s *CutSheet) Interval() (video.Timestamp, error) {
	return video.ParseInterval(s.KeyframeInterval)
}

// OutputDir is where clips are written: output_directory, or next to the source
func (s *CutSheet) OutputDir() string {
	if s.OutputDirectory != "" {
		return s.OutputDirectory
	}
	return filepath.Dir(s.Source)
}

// plan validates the sheet and builds one trim request per segment
func (s *CutSheet) plan() ([]plannedSegment, error) {
	if s.Source == "" {
		return nil, fmt.Errorf("cut sheet has no source")
	}
	if len(s.Segments) == 0 {
		return nil, fmt.Errorf("cut sheet has no segments")
	}
	if _, err := s.Interval(); err != nil {
		return nil, fmt.Errorf("invalid keyframe_interval: %w", err)
	}

	outputs := make(map[string]string, len(s.Segments))
	planned := make([]plannedSegment, 0, len(s.Segments))
	for i, seg := range s.Segments {
		if strings.TrimSpace(seg.Name) == "" {
			return nil, fmt.Errorf("segment %d: name is required", i+1)
		}

		start, err := video.ParseTimestamp(seg.Start)
		if err != nil {
			return nil, fmt.Errorf("segment %q: invalid start: %w", seg.Name, err)
		}
		end, err := video.ParseTimestamp(seg.End)
		if err != nil {
			return nil, fmt.Errorf("segment %q: invalid end: %w", seg.Name, err)
		}

		filename := video.SegmentFilename(seg.Name, s.Source)
		if other, dup := outputs[filename]; dup {
			return nil, fmt.Errorf("segments %q and %q both write %s", other, seg.Name, filename)
		}
		outputs[filename] = seg.Name

		req, err := video.NewTrimRequest(s.Source, start, end, filepath.Join(s.OutputDir(), filename))
		if err != nil {
			return nil, fmt.Errorf("segment %q: %w", seg.Name, err)
		}
		planned = append(planned, plannedSegment{Segment: seg, request: req})
	}
	return planned, nil
}
