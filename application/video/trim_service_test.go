package video

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tourney-media/domain/video"
)

// mockCutter implements video.Cutter for testing
type mockCutter struct {
	cuts       []video.CutRange
	outputs    []string
	shouldFail bool
	failError  error
}

func (m *mockCutter) Cut(ctx context.Context, sourcePath string, r video.CutRange, outputPath string) error {
	if m.shouldFail {
		return m.failError
	}
	m.cuts = append(m.cuts, r)
	m.outputs = append(m.outputs, outputPath)
	return nil
}

// mockFileChecker implements video.FileChecker for testing
type mockFileChecker struct {
	existingFiles map[string]bool
}

func (m *mockFileChecker) Exists(path string) bool {
	return m.existingFiles[path]
}

func testIndex(t *testing.T) *video.KeyframeIndex {
	t.Helper()
	index, err := video.NewKeyframeIndex(video.FileKeyframes("/rec/a.mkv"), scanned())
	if err != nil {
		t.Fatal(err)
	}
	return index
}

func TestTrimService_Trim(t *testing.T) {
	tests := []struct {
		name       string
		start      string
		end        string
		wantActual video.CutRange
	}{
		{"between keyframes", "00:00:04.500", "00:00:10.500", video.CutRange{Start: 3000, End: 12000}},
		{"on keyframes", "00:00:03", "00:00:09", video.CutRange{Start: 3000, End: 9000}},
		{"zero length", "00:00:04.500", "00:00:04.500", video.CutRange{Start: 3000, End: 6000}},
		{"past the last keyframe", "00:00:11", "00:01:00", video.CutRange{Start: 9000, End: 12000}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cutter := &mockCutter{}
			svc := NewTrimService(cutter, &mockFileChecker{existingFiles: map[string]bool{"/rec/a.mkv": true}},
				WithTrimLogger(discardLogger()))

			req, err := TrimInput{
				SourcePath: "/rec/a.mkv",
				StartTime:  tt.start,
				EndTime:    tt.end,
				OutputPath: "/out/clip.mkv",
			}.Request()
			if err != nil {
				t.Fatalf("Request() error = %v", err)
			}

			result, err := svc.Trim(context.Background(), testIndex(t), req)
			if err != nil {
				t.Fatalf("Trim() error = %v", err)
			}
			if result.Actual != tt.wantActual {
				t.Errorf("Actual = %v, want %v", result.Actual, tt.wantActual)
			}
			if result.Requested != req.Requested() {
				t.Errorf("Requested = %v, want %v", result.Requested, req.Requested())
			}
			if len(cutter.cuts) != 1 || cutter.cuts[0] != tt.wantActual || cutter.outputs[0] != "/out/clip.mkv" {
				t.Errorf("cutter got %v -> %v", cutter.cuts, cutter.outputs)
			}
		})
	}
}

func TestTrimService_Errors(t *testing.T) {
	boom := errors.New("ffmpeg exited 1")

	tests := []struct {
		name           string
		exists         bool
		cutter         *mockCutter
		req            *video.TrimRequest
		wantErrContain string
		wantErr        error
	}{
		{
			name:           "missing source",
			exists:         false,
			cutter:         &mockCutter{},
			req:            &video.TrimRequest{SourcePath: "/rec/a.mkv", Start: 0, End: 1000, OutputPath: "/out/x.mkv"},
			wantErrContain: "does not exist",
		},
		{
			name:           "invalid request",
			exists:         true,
			cutter:         &mockCutter{},
			req:            &video.TrimRequest{SourcePath: "/rec/a.mkv", Start: 5000, End: 1000, OutputPath: "/out/x.mkv"},
			wantErrContain: "must not be before",
		},
		{
			name:    "cutter failure",
			exists:  true,
			cutter:  &mockCutter{shouldFail: true, failError: boom},
			req:     &video.TrimRequest{SourcePath: "/rec/a.mkv", Start: 0, End: 1000, OutputPath: "/out/x.mkv"},
			wantErr: boom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewTrimService(tt.cutter, &mockFileChecker{existingFiles: map[string]bool{"/rec/a.mkv": tt.exists}},
				WithTrimLogger(discardLogger()))

			_, err := svc.Trim(context.Background(), testIndex(t), tt.req)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErrContain != "" && !strings.Contains(err.Error(), tt.wantErrContain) {
				t.Errorf("error = %q, want containing %q", err, tt.wantErrContain)
			}
		})
	}
}

func TestTrimInput_Request(t *testing.T) {
	if _, err := (TrimInput{SourcePath: "/a", StartTime: "bad", EndTime: "00:00:01", OutputPath: "/o"}).Request(); err == nil ||
		!strings.Contains(err.Error(), "invalid start time") {
		t.Errorf("bad start error = %v", err)
	}
	if _, err := (TrimInput{SourcePath: "/a", StartTime: "00:00:01", EndTime: "1:2", OutputPath: "/o"}).Request(); err == nil ||
		!strings.Contains(err.Error(), "invalid end time") {
		t.Errorf("bad end error = %v", err)
	}
}
