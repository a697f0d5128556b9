package model

import "strings"

// TranscriptSegment is one recognised phrase and where it sits in the clip.
type TranscriptSegment struct {
	Range TimeRange `json:"range"`
	Text  string    `json:"text"`
}

// Transcript is the recognised text of a clip.
type Transcript struct {
	ClipID   string              `json:"clip_id"`
	Language string              `json:"language,omitempty"`
	Segments []TranscriptSegment `json:"segments"`
}

// Text joins every segment with single spaces.
func (t Transcript) Text() string {
	parts := make([]string, 0, len(t.Segments))
	for _, s := range t.Segments {
		if txt := strings.TrimSpace(s.Text); txt != "" {
			parts = append(parts, txt)
		}
	}
	return strings.Join(parts, " ")
}
