package models

import "fmt"

// VideoRef identifies a single video after URL resolution. It is the
// identity used for caching and logging throughout the pipeline.
type VideoRef struct {
	ID           string `json:"id"`
	CanonicalURL string `json:"canonical_url"`
}

// NewVideoRef builds a VideoRef from a validated video id.
func NewVideoRef(id string) VideoRef {
	return VideoRef{
		ID:           id,
		CanonicalURL: fmt.Sprintf("https://www.youtube.com/watch?v=%s", id),
	}
}

func (r VideoRef) String() string {
	return r.CanonicalURL
}
