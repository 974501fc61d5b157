package video

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ReadKeyframeList parses one keyframe per line in decimal seconds, the
// format the keyframe scanner emits and the sidecar cache stores. Blank
// lines are skipped; any other unparseable line fails the whole list.
func ReadKeyframeList(r io.Reader) ([]Timestamp, error) {
	var keyframes []Timestamp
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		// csv output may carry a trailing separator
		text := strings.TrimRight(strings.TrimSpace(scanner.Text()), ",")
		if text == "" {
			continue
		}
		t, err := ParseSeconds(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		keyframes = append(keyframes, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if err := ValidateKeyframes(keyframes); err != nil {
		return nil, err
	}
	return keyframes, nil
}

// WriteKeyframeList writes keyframes in the format ReadKeyframeList reads
func WriteKeyframeList(w io.Writer, keyframes []Timestamp) error {
	bw := bufio.NewWriter(w)
	for _, k := range keyframes {
		if _, err := fmt.Fprintln(bw, k.Seconds()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
