package models

import "time"

// StreamDescriptor describes one encoded stream variant from a manifest.
// The URL is signed by the upstream platform and expires with the manifest.
// Descriptors round-trip through the manifest cache but are never embedded
// in API responses.
type StreamDescriptor struct {
	Itag            int    `json:"itag"`
	Container       string `json:"container"`
	Codec           string `json:"codec"`
	HasAudio        bool   `json:"has_audio"`
	HasVideo        bool   `json:"has_video"`
	QualityLabel    string `json:"quality_label"`
	Bitrate         int    `json:"bitrate"`
	ApproxSizeBytes int64  `json:"approx_size_bytes"`
	URL             string `json:"url"`
}

// AudioOnly reports whether the stream carries audio without video.
func (s *StreamDescriptor) AudioOnly() bool {
	return s.HasAudio && !s.HasVideo
}

// Manifest is the set of stream variants available for one video. It is
// valid only until the upstream signed URLs expire; every consumer must
// check Expired before using a descriptor.
type Manifest struct {
	Video     VideoRef           `json:"video"`
	Title     string             `json:"title"`
	Duration  float64            `json:"duration"`
	Streams   []StreamDescriptor `json:"streams"`
	FetchedAt time.Time          `json:"fetched_at"`
	TTL       time.Duration      `json:"ttl"`
}

// Expired reports whether the manifest's signed URLs are past their TTL.
func (m *Manifest) Expired(now time.Time) bool {
	return now.After(m.FetchedAt.Add(m.TTL))
}
