package video

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Timestamp is an offset from the start of a video in whole milliseconds
type Timestamp int64

// timestampRegex matches H+:MM:SS with an optional fractional second part
var timestampRegex = regexp.MustCompile(`^(\d+):(\d{2}):(\d{2})(?:\.(\d+))?$`)

// secondsRegex matches plain seconds as printed by ffprobe, e.g. 12.345000
var secondsRegex = regexp.MustCompile(`^(\d+)(?:\.(\d+))?$`)

// ParseTimestamp parses a timestamp string in HH:MM:SS or HH:MM:SS.mmm format.
// Fractional seconds are truncated or zero padded to three digits, never rounded.
func ParseTimestamp(s string) (Timestamp, error) {
	matches := timestampRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return 0, fmt.Errorf("invalid timestamp format %q: expected HH:MM:SS.mmm", s)
	}

	hours, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	minutes, _ := strconv.Atoi(matches[2])
	seconds, _ := strconv.Atoi(matches[3])

	if minutes > 59 {
		return 0, fmt.Errorf("invalid timestamp %q: minutes must be 0-59", s)
	}
	if seconds > 59 {
		return 0, fmt.Errorf("invalid timestamp %q: seconds must be 0-59", s)
	}

	ms := (hours*3600+int64(minutes)*60+int64(seconds))*1000 + fractionMillis(matches[4])
	return Timestamp(ms), nil
}

// ParseSeconds parses a decimal seconds value such as "12.345000"
func ParseSeconds(s string) (Timestamp, error) {
	matches := secondsRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return 0, fmt.Errorf("invalid seconds value %q", s)
	}

	whole, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid seconds value %q: %w", s, err)
	}

	return Timestamp(whole*1000 + fractionMillis(matches[2])), nil
}

// ParseInterval reads a synthetic keyframe interval given in seconds
// ("2", "2.5") or as a timestamp ("00:00:02"). An empty value returns zero,
// meaning real keyframes should be scanned. Values that truncate to zero
// milliseconds are rejected.
func ParseInterval(s string) (Timestamp, error) {
	value := strings.TrimSpace(s)
	if value == "" {
		return 0, nil
	}

	var (
		interval Timestamp
		err      error
	)
	if strings.Contains(value, ":") {
		interval, err = ParseTimestamp(value)
	} else {
		interval, err = ParseSeconds(value)
	}
	if err != nil {
		return 0, err
	}
	if interval <= 0 {
		return 0, fmt.Errorf("%w: %q is below one millisecond", ErrInvalidInterval, s)
	}
	return interval, nil
}

// fractionMillis converts the digits after the decimal point to milliseconds
func fractionMillis(digits string) int64 {
	if len(digits) > 3 {
		digits = digits[:3]
	}
	for len(digits) < 3 {
		digits += "0"
	}
	ms, _ := strconv.ParseInt(digits, 10, 64)
	return ms
}

// FromDuration converts a time.Duration, truncating to whole milliseconds
func FromDuration(d time.Duration) Timestamp {
	return Timestamp(d.Milliseconds())
}

// String returns the timestamp in HH:MM:SS.mmm format
func (t Timestamp) String() string {
	ms := int64(t)
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	hours := ms / 3600000
	minutes := ms / 60000 % 60
	seconds := ms / 1000 % 60
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, hours, minutes, seconds, ms%1000)
}

// Milliseconds returns the timestamp as an integer number of milliseconds
func (t Timestamp) Milliseconds() int64 {
	return int64(t)
}

// Duration returns the timestamp as a time.Duration
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t) * time.Millisecond
}

// Seconds returns the timestamp in fractional seconds, as ffmpeg accepts it
func (t Timestamp) Seconds() string {
	return fmt.Sprintf("%d.%03d", int64(t)/1000, int64(t)%1000)
}

// IsZero returns true if the timestamp is 00:00:00.000
func (t Timestamp) IsZero() bool {
	return t == 0
}

// Before returns true if t is before other
func (t Timestamp) Before(other Timestamp) bool {
	return t < other
}

// After returns true if t is after other
func (t Timestamp) After(other Timestamp) bool {
	return t > other
}
