package video

import (
	"strings"
	"testing"
	"time"
)

func TestNewTrimRequest(t *testing.T) {
	tests := []struct {
		name        string
		sourcePath  string
		start       Timestamp
		end         Timestamp
		outputPath  string
		wantErr     bool
		errContains string
	}{
		{
			name:       "valid request",
			sourcePath: "/vods/2025-12-28 10-06-16.mkv",
			start:      4500,
			end:        10500,
			outputPath: "/vods/out/winners-final.mkv",
		},
		{
			name:       "start equals end is allowed",
			sourcePath: "/vods/source.mkv",
			start:      4500,
			end:        4500,
			outputPath: "/vods/out/clip.mkv",
		},
		{
			name:        "missing source",
			start:       0,
			end:         1000,
			outputPath:  "/vods/out/clip.mkv",
			wantErr:     true,
			errContains: "source path is required",
		},
		{
			name:        "missing output",
			sourcePath:  "/vods/source.mkv",
			start:       0,
			end:         1000,
			wantErr:     true,
			errContains: "output path is required",
		},
		{
			name:        "end before start",
			sourcePath:  "/vods/source.mkv",
			start:       5000,
			end:         1000,
			outputPath:  "/vods/out/clip.mkv",
			wantErr:     true,
			errContains: "must not be before start time",
		},
		{
			name:        "negative start",
			sourcePath:  "/vods/source.mkv",
			start:       -1,
			end:         1000,
			outputPath:  "/vods/out/clip.mkv",
			wantErr:     true,
			errContains: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewTrimRequest(tt.sourcePath, tt.start, tt.end, tt.outputPath)

			if tt.wantErr {
				if err == nil {
					t.Errorf("NewTrimRequest() expected error, got nil")
					return
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewTrimRequest() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}

			if err != nil {
				t.Fatalf("NewTrimRequest() unexpected error: %v", err)
			}
			if got.Requested() != (CutRange{Start: tt.start, End: tt.end}) {
				t.Errorf("Requested() = %v", got.Requested())
			}
		})
	}
}

func TestTrimRequest_Align(t *testing.T) {
	index, err := NewKeyframeIndex(FileKeyframes("/vods/source.mkv"), []Timestamp{0, 3000, 6000, 9000, 12000})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		start Timestamp
		end   Timestamp
		want  CutRange
	}{
		{"expands outward", 4500, 10500, CutRange{3000, 12000}},
		{"already aligned", 3000, 9000, CutRange{3000, 9000}},
		{"zero length between keyframes", 4500, 4500, CutRange{3000, 6000}},
		{"past the end clamps", 10000, 20000, CutRange{9000, 12000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &TrimRequest{SourcePath: "/vods/source.mkv", Start: tt.start, End: tt.end, OutputPath: "/out.mkv"}
			if got := req.Align(index); got != tt.want {
				t.Errorf("Align() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCutRange(t *testing.T) {
	r := CutRange{Start: 3000, End: 12000}
	if got := r.String(); got != "00:00:03.000-00:00:12.000" {
		t.Errorf("String() = %q", got)
	}
	if r.Length() != 9000 {
		t.Errorf("Length() = %d, want 9000", r.Length())
	}
}

func TestRecordingStartTime(t *testing.T) {
	got, err := RecordingStartTime("/path/to/2025-12-28 10-06-16.mkv")
	if err != nil {
		t.Fatalf("RecordingStartTime() unexpected error: %v", err)
	}
	want := time.Date(2025, 12, 28, 10, 6, 16, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("RecordingStartTime() = %v, want %v", got, want)
	}

	if _, err := RecordingStartTime("/path/to/recording.mp4"); err == nil {
		t.Error("expected error for filename without date")
	}
	if _, err := RecordingStartTime("/path/to/12-28-2025 10-06-16.mp4"); err == nil {
		t.Error("expected error for wrong date order")
	}
}

func TestSegmentFilename(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"Grand Finals: A vs B", "/vods/day1.mkv", "grand-finals-a-vs-b.mkv"},
		{"  Pools R1  ", "/vods/day1.mp4", "pools-r1.mp4"},
		{"!!!", "/vods/day1.mkv", "segment.mkv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SegmentFilename(tt.name, tt.source); got != tt.want {
				t.Errorf("SegmentFilename(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
