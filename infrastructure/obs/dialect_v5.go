package obs

import (
	"context"
	"fmt"

	"tourney-media/domain/mixer"
)

// eventRecordStateChanged carries outputPath when a recording starts or stops
const eventRecordStateChanged = "RecordStateChanged"

// DialectV5 is the obs-websocket 5.x request vocabulary
type DialectV5 struct{}

// Name implements mixer.Dialect
func (DialectV5) Name() string { return "v5" }

// TakeThumbnail implements mixer.Dialect
func (DialectV5) TakeThumbnail(ctx context.Context, s mixer.Sender, source string, width int) ([]byte, error) {
	args := map[string]any{
		"sourceName":  source,
		"imageFormat": thumbnailFormat,
	}
	if width > 0 {
		args["imageWidth"] = width
	}

	raw, err := s.Send(ctx, "GetSourceScreenshot", args)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ImageData string `json:"imageData"`
	}
	if err := unmarshalResponse("GetSourceScreenshot", raw, &resp); err != nil {
		return nil, err
	}
	return decodeImage(resp.ImageData)
}

// CurrentScene implements mixer.Dialect
func (DialectV5) CurrentScene(ctx context.Context, s mixer.Sender) (string, error) {
	raw, err := s.Send(ctx, "GetCurrentProgramScene", nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		SceneName        string `json:"sceneName"`
		CurrentSceneName string `json:"currentProgramSceneName"`
	}
	if err := unmarshalResponse("GetCurrentProgramScene", raw, &resp); err != nil {
		return "", err
	}
	if resp.SceneName != "" {
		return resp.SceneName, nil
	}
	return resp.CurrentSceneName, nil
}

// StartRecording implements mixer.Dialect
func (DialectV5) StartRecording(ctx context.Context, s mixer.Sender) error {
	_, err := s.Send(ctx, "StartRecord", nil)
	return err
}

// StopRecording implements mixer.Dialect
func (DialectV5) StopRecording(ctx context.Context, s mixer.Sender) error {
	_, err := s.Send(ctx, "StopRecord", nil)
	return err
}

// RecordingFolder implements mixer.Dialect
func (DialectV5) RecordingFolder(ctx context.Context, s mixer.Sender) (string, error) {
	raw, err := s.Send(ctx, "GetRecordDirectory", nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		RecordDirectory string `json:"recordDirectory"`
	}
	if err := unmarshalResponse("GetRecordDirectory", raw, &resp); err != nil {
		return "", err
	}
	if resp.RecordDirectory == "" {
		return "", fmt.Errorf("mixer reported an empty recording directory")
	}
	return resp.RecordDirectory, nil
}

// RecordingStatus implements mixer.Dialect
func (DialectV5) RecordingStatus(ctx context.Context, s mixer.Sender) (mixer.RecordingStatus, error) {
	raw, err := s.Send(ctx, "GetRecordStatus", nil)
	if err != nil {
		return mixer.RecordingStatus{}, err
	}

	var resp struct {
		OutputActive   bool   `json:"outputActive"`
		OutputTimecode string `json:"outputTimecode"`
	}
	if err := unmarshalResponse("GetRecordStatus", raw, &resp); err != nil {
		return mixer.RecordingStatus{}, err
	}

	tc, err := parseTimecode(resp.OutputTimecode)
	if err != nil {
		return mixer.RecordingStatus{}, fmt.Errorf("invalid recording timecode: %w", err)
	}
	return mixer.RecordingStatus{Active: resp.OutputActive, Timecode: tc}, nil
}

// SaveReplayBuffer implements mixer.Dialect
func (DialectV5) SaveReplayBuffer(ctx context.Context, s mixer.Sender) error {
	_, err := s.Send(ctx, "SaveReplayBuffer", nil)
	return err
}

// RecordingEvents implements mixer.Dialect
func (DialectV5) RecordingEvents() []string {
	return []string{eventRecordStateChanged}
}

// RecordingPath implements mixer.Dialect
func (DialectV5) RecordingPath(e mixer.Event) string {
	var data struct {
		OutputPath string `json:"outputPath"`
	}
	if len(e.Data) == 0 || unmarshalResponse(e.Name, e.Data, &data) != nil {
		return ""
	}
	return data.OutputPath
}

var _ mixer.Dialect = DialectV5{}
