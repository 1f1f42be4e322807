// Package resolver validates raw YouTube URLs and normalizes them into a
// canonical VideoRef. It performs no network I/O; anything it rejects never
// reaches the upstream platform.
package resolver

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/ytflow/ytflow/pkg/models"
)

// ErrInvalidURL is returned for any input that is not a recognizable
// YouTube video URL.
var ErrInvalidURL = errors.New("invalid YouTube URL")

// videoIDPattern is the strict id rule: exactly 11 characters from the
// YouTube id alphabet. Matching a loose token first and validating against
// this keeps ids like "abc" or query junk out.
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var recognizedHosts = map[string]bool{
	"youtube.com":   true,
	"youtu.be":      true,
	"m.youtube.com": true,
}

// Resolve validates rawURL and extracts the canonical VideoRef.
//
// Accepted forms, with or without scheme and "www.":
//
//	https://www.youtube.com/watch?v=<id>
//	https://youtu.be/<id>
//	https://www.youtube.com/shorts/<id>
func Resolve(rawURL string) (models.VideoRef, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return models.VideoRef{}, fmt.Errorf("%w: empty input", ErrInvalidURL)
	}

	// url.Parse treats scheme-less input as an opaque path, so normalize
	// before parsing.
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return models.VideoRef{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return models.VideoRef{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if !recognizedHosts[host] {
		return models.VideoRef{}, fmt.Errorf("%w: unrecognized host %q", ErrInvalidURL, u.Hostname())
	}

	id, err := extractVideoID(host, u)
	if err != nil {
		return models.VideoRef{}, err
	}

	if !videoIDPattern.MatchString(id) {
		return models.VideoRef{}, fmt.Errorf("%w: malformed video id %q", ErrInvalidURL, id)
	}

	return models.NewVideoRef(id), nil
}

func extractVideoID(host string, u *url.URL) (string, error) {
	if host == "youtu.be" {
		return strings.Trim(u.Path, "/"), nil
	}

	switch {
	case u.Path == "/watch":
		if !u.Query().Has("v") {
			return "", fmt.Errorf("%w: missing ?v= query parameter", ErrInvalidURL)
		}
		return u.Query().Get("v"), nil
	case strings.HasPrefix(u.Path, "/shorts/"):
		return strings.Trim(strings.TrimPrefix(u.Path, "/shorts/"), "/"), nil
	case strings.HasPrefix(u.Path, "/embed/"):
		return strings.Trim(strings.TrimPrefix(u.Path, "/embed/"), "/"), nil
	case strings.HasPrefix(u.Path, "/v/"):
		return strings.Trim(strings.TrimPrefix(u.Path, "/v/"), "/"), nil
	default:
		return "", fmt.Errorf("%w: unrecognized path %q", ErrInvalidURL, u.Path)
	}
}
