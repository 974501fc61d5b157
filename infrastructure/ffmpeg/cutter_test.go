package ffmpeg

import (
	"context"
	"errors"
	"strings"
	"testing"

	"tourney-media/domain/video"
)

func testRange() video.CutRange {
	return video.CutRange{Start: video.Timestamp(3000), End: video.Timestamp(12000)}
}

func TestFFmpegCutter_Cut(t *testing.T) {
	runner := &mockRunner{}
	cutter := NewFFmpegCutter(WithFFmpegPath("/opt/ffmpeg"), WithCommandRunner(runner))

	if err := cutter.Cut(context.Background(), "/rec/source.mkv", testRange(), "/out/clip.mkv"); err != nil {
		t.Fatalf("Cut() error = %v", err)
	}

	if len(runner.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(runner.calls))
	}
	call := runner.calls[0]
	if call.name != "/opt/ffmpeg" {
		t.Errorf("executable = %q, want /opt/ffmpeg", call.name)
	}

	args := call.args
	checks := map[string]string{
		"-v":  "error",
		"-ss": "3.000",
		"-to": "12.000",
		"-i":  "/rec/source.mkv",
		"-c":  "copy",
	}
	for flag, want := range checks {
		i := indexOf(args, flag)
		if i < 0 || i+1 >= len(args) {
			t.Errorf("missing %s in %v", flag, args)
			continue
		}
		if args[i+1] != want {
			t.Errorf("%s = %q, want %q", flag, args[i+1], want)
		}
	}
	if indexOf(args, "-ss") > indexOf(args, "-i") {
		t.Error("-ss must precede -i for keyframe seeking")
	}
	if args[len(args)-1] != "/out/clip.mkv" {
		t.Errorf("output = %q, want /out/clip.mkv", args[len(args)-1])
	}
}

func TestFFmpegCutter_Failures(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
	}{
		{"non-zero exit", "Invalid data found when processing input", &exitError{code: 1}},
		{"diagnostics on clean exit", "[matroska] Non-monotonous DTS", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{output: []byte(tt.output + "\n"), err: tt.err}
			cutter := NewFFmpegCutter(WithCommandRunner(runner))

			err := cutter.Cut(context.Background(), "/rec/source.mkv", testRange(), "/out/clip.mkv")
			var cutErr *CutError
			if !errors.As(err, &cutErr) {
				t.Fatalf("Cut() error = %v, want *CutError", err)
			}
			if cutErr.Tool != ToolFFmpeg || cutErr.Output != tt.output {
				t.Errorf("CutError = %+v", cutErr)
			}
			if !strings.Contains(err.Error(), "00:00:03.000-00:00:12.000") {
				t.Errorf("error %q does not name the range", err)
			}
		})
	}
}

func TestMKVMergeCutter_Cut(t *testing.T) {
	runner := &mockRunner{}
	cutter := NewMKVMergeCutter(WithMKVMergeCommandRunner(runner))

	if err := cutter.Cut(context.Background(), "/rec/source.mkv", testRange(), "/out/clip.mkv"); err != nil {
		t.Fatalf("Cut() error = %v", err)
	}

	args := runner.calls[0].args
	if runner.calls[0].name != "mkvmerge" {
		t.Errorf("executable = %q, want mkvmerge", runner.calls[0].name)
	}
	if i := indexOf(args, "--split"); i < 0 || args[i+1] != "parts:00:00:03.000-00:00:12.000" {
		t.Errorf("split args = %v", args)
	}
	if i := indexOf(args, "-o"); i < 0 || args[i+1] != "/out/clip.mkv" {
		t.Errorf("output args = %v", args)
	}
	if args[len(args)-1] != "/rec/source.mkv" {
		t.Errorf("source = %q", args[len(args)-1])
	}
}

func TestMKVMergeCutter_WarningsFail(t *testing.T) {
	tests := []struct {
		name            string
		code            int
		wantDiagnostics bool
	}{
		{"warnings", 1, true},
		{"error", 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{output: []byte("Warning: track 2 has no frames"), err: &exitError{code: tt.code}}
			cutter := NewMKVMergeCutter(WithMKVMergeCommandRunner(runner))

			err := cutter.Cut(context.Background(), "/rec/source.mkv", testRange(), "/out/clip.mkv")
			var cutErr *CutError
			if !errors.As(err, &cutErr) {
				t.Fatalf("Cut() error = %v, want *CutError", err)
			}
			if errors.Is(err, errDiagnostics) != tt.wantDiagnostics {
				t.Errorf("errors.Is(errDiagnostics) = %v, want %v", !tt.wantDiagnostics, tt.wantDiagnostics)
			}
			if cutErr.Output != "Warning: track 2 has no frames" {
				t.Errorf("Output = %q", cutErr.Output)
			}
		})
	}
}

func TestNewCutter(t *testing.T) {
	if c, err := NewCutter("", ""); err != nil {
		t.Errorf("NewCutter(\"\") error = %v", err)
	} else if _, ok := c.(*FFmpegCutter); !ok {
		t.Errorf("default cutter = %T, want *FFmpegCutter", c)
	}

	if c, err := NewCutter(ToolMKVMerge, "/usr/bin/mkvmerge"); err != nil {
		t.Errorf("NewCutter(mkvmerge) error = %v", err)
	} else if m, ok := c.(*MKVMergeCutter); !ok || m.mkvmergePath != "/usr/bin/mkvmerge" {
		t.Errorf("mkvmerge cutter = %#v", c)
	}

	if _, err := NewCutter("avidemux", ""); err == nil {
		t.Error("expected error for unknown tool")
	}
}

func TestVerifyInstalled(t *testing.T) {
	missing := errors.New("executable file not found in $PATH")

	if err := NewFFmpegCutter(WithCommandRunner(&mockRunner{err: missing})).VerifyInstalled(context.Background()); err == nil {
		t.Error("ffmpeg VerifyInstalled() expected error")
	}
	if err := NewMKVMergeCutter(WithMKVMergeCommandRunner(&mockRunner{})).VerifyInstalled(context.Background()); err != nil {
		t.Errorf("mkvmerge VerifyInstalled() error = %v", err)
	}
}
