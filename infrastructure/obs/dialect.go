package obs

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"tourney-media/domain/mixer"
	"tourney-media/domain/video"
)

const thumbnailFormat = "png"

// NewDialect returns the request vocabulary for a protocol version
func NewDialect(version string) (mixer.Dialect, error) {
	switch version {
	case "v5", "5", "":
		return DialectV5{}, nil
	case "v4", "4":
		return DialectV4{}, nil
	default:
		return nil, fmt.Errorf("unsupported obs-websocket protocol %q (want v4 or v5)", version)
	}
}

// decodeImage decodes a screenshot, which the mixer returns as a data URI
func decodeImage(s string) ([]byte, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	img, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid screenshot data: %w", err)
	}
	return img, nil
}

// parseTimecode reads the mixer's HH:MM:SS.mmm timecode; empty means zero
func parseTimecode(s string) (video.Timestamp, error) {
	if s == "" {
		return 0, nil
	}
	return video.ParseTimestamp(s)
}

func unmarshalResponse(request string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid %s response: %w", request, err)
	}
	return nil
}
