package obs

import (
	"context"
	"fmt"

	"tourney-media/domain/mixer"
)

// DialectV4 is the obs-websocket 4.x request vocabulary
type DialectV4 struct{}

// Name implements mixer.Dialect
func (DialectV4) Name() string { return "v4" }

// TakeThumbnail implements mixer.Dialect
func (DialectV4) TakeThumbnail(ctx context.Context, s mixer.Sender, source string, width int) ([]byte, error) {
	args := map[string]any{
		"sourceName":         source,
		"embedPictureFormat": thumbnailFormat,
	}
	if width > 0 {
		args["width"] = width
	}

	raw, err := s.Send(ctx, "TakeSourceScreenshot", args)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Img string `json:"img"`
	}
	if err := unmarshalResponse("TakeSourceScreenshot", raw, &resp); err != nil {
		return nil, err
	}
	return decodeImage(resp.Img)
}

// CurrentScene implements mixer.Dialect
func (DialectV4) CurrentScene(ctx context.Context, s mixer.Sender) (string, error) {
	raw, err := s.Send(ctx, "GetCurrentScene", nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Name string `json:"name"`
	}
	if err := unmarshalResponse("GetCurrentScene", raw, &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}

// StartRecording implements mixer.Dialect
func (DialectV4) StartRecording(ctx context.Context, s mixer.Sender) error {
	_, err := s.Send(ctx, "StartRecording", nil)
	return err
}

// StopRecording implements mixer.Dialect
func (DialectV4) StopRecording(ctx context.Context, s mixer.Sender) error {
	_, err := s.Send(ctx, "StopRecording", nil)
	return err
}

// RecordingFolder implements mixer.Dialect
func (DialectV4) RecordingFolder(ctx context.Context, s mixer.Sender) (string, error) {
	raw, err := s.Send(ctx, "GetRecordingFolder", nil)
	if err != nil {
		return "", err
	}

	var resp struct {
		Folder string `json:"rec-folder"`
	}
	if err := unmarshalResponse("GetRecordingFolder", raw, &resp); err != nil {
		return "", err
	}
	if resp.Folder == "" {
		return "", fmt.Errorf("mixer reported an empty recording folder")
	}
	return resp.Folder, nil
}

// RecordingStatus implements mixer.Dialect
func (DialectV4) RecordingStatus(ctx context.Context, s mixer.Sender) (mixer.RecordingStatus, error) {
	raw, err := s.Send(ctx, "GetRecordingStatus", nil)
	if err != nil {
		return mixer.RecordingStatus{}, err
	}

	var resp struct {
		IsRecording    bool   `json:"isRecording"`
		RecordTimecode string `json:"recordTimecode"`
	}
	if err := unmarshalResponse("GetRecordingStatus", raw, &resp); err != nil {
		return mixer.RecordingStatus{}, err
	}

	tc, err := parseTimecode(resp.RecordTimecode)
	if err != nil {
		return mixer.RecordingStatus{}, fmt.Errorf("invalid recording timecode: %w", err)
	}
	return mixer.RecordingStatus{Active: resp.IsRecording, Timecode: tc}, nil
}

// SaveReplayBuffer implements mixer.Dialect
func (DialectV4) SaveReplayBuffer(ctx context.Context, s mixer.Sender) error {
	_, err := s.Send(ctx, "SaveReplayBuffer", nil)
	return err
}

// RecordingEvents implements mixer.Dialect
func (DialectV4) RecordingEvents() []string {
	return []string{"RecordingStarted", "RecordingStopped"}
}

// RecordingPath implements mixer.Dialect
func (DialectV4) RecordingPath(e mixer.Event) string {
	var data struct {
		Filename string `json:"recordingFilename"`
	}
	if len(e.Data) == 0 || unmarshalResponse(e.Name, e.Data, &data) != nil {
		return ""
	}
	return data.Filename
}

var _ mixer.Dialect = DialectV4{}
