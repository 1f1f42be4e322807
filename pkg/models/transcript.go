package models

import (
	"fmt"
	"strings"
)

// TranscriptSegment is one timestamped span of transcribed speech.
// Segments in a Transcript are ordered, non-overlapping, and have
// monotonically increasing start times.
type TranscriptSegment struct {
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	Text      string  `json:"text"`
	Timestamp string  `json:"timestamp"`
}

// FormatTimestamp renders seconds as the MM:SS display form used in
// transcript responses.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Transcript is the full result of a transcription run.
type Transcript struct {
	Segments []TranscriptSegment `json:"segments"`
	Language string              `json:"language"`
	Duration float64             `json:"duration"`
}

// Text joins all segment texts into the flat transcript string.
func (t *Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if txt := strings.TrimSpace(s.Text); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}
