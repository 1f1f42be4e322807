// Package selector deterministically matches an output request against a
// manifest's available streams.
package selector

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ytflow/ytflow/pkg/models"
)

// ErrNoMatchingStream is returned when the manifest has no stream of the
// media kind the request implies. The wrapping error message names the best
// available alternative so callers can surface a precise notice.
var ErrNoMatchingStream = errors.New("no matching stream")

// Select picks the stream best matching the request.
//
// mp3 requests match audio-only streams, ranked by bitrate. mp4 and webm
// requests match muxed audio+video streams, ranked by distance to the
// requested quality: an exact match wins, otherwise the nearest quality
// below is chosen and the substitution flagged. Quality is never upgraded
// past the request. A container mismatch is reported as a transcode
// requirement, not a failure.
func Select(manifest *models.Manifest, req models.OutputRequest) (*models.SelectionResult, error) {
	if req.Format.AudioOnly() {
		return selectAudio(manifest, req)
	}
	return selectVideo(manifest, req)
}

func selectAudio(manifest *models.Manifest, req models.OutputRequest) (*models.SelectionResult, error) {
	var best *models.StreamDescriptor
	for i := range manifest.Streams {
		s := &manifest.Streams[i]
		if !s.AudioOnly() {
			continue
		}
		if best == nil || s.Bitrate > best.Bitrate {
			best = s
		}
	}

	if best == nil {
		return nil, fmt.Errorf("%w: no audio-only stream; %s", ErrNoMatchingStream, alternative(manifest, true))
	}

	return &models.SelectionResult{
		Stream: best,
		// YouTube serves audio as m4a or webm/opus, never mp3.
		NeedsTranscode: true,
		ActualQuality:  req.Quality,
	}, nil
}

func selectVideo(manifest *models.Manifest, req models.OutputRequest) (*models.SelectionResult, error) {
	var candidates []*models.StreamDescriptor
	for i := range manifest.Streams {
		s := &manifest.Streams[i]
		if s.HasVideo && s.HasAudio {
			candidates = append(candidates, s)
		}
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no audio+video stream; %s", ErrNoMatchingStream, alternative(manifest, false))
	}

	// Best quality first, then highest bitrate within a quality.
	sort.SliceStable(candidates, func(i, j int) bool {
		ri := models.QualityFromLabel(candidates[i].QualityLabel).Rank()
		rj := models.QualityFromLabel(candidates[j].QualityLabel).Rank()
		if ri != rj {
			return ri < rj
		}
		return candidates[i].Bitrate > candidates[j].Bitrate
	})

	requested := req.Quality.Rank()
	var chosen *models.StreamDescriptor
	for _, c := range candidates {
		if models.QualityFromLabel(c.QualityLabel).Rank() >= requested {
			chosen = c
			break
		}
	}
	if chosen == nil {
		// Everything available is above the request; never upgrade.
		return nil, fmt.Errorf("%w: nothing at or below %s; %s",
			ErrNoMatchingStream, req.Quality, alternative(manifest, false))
	}

	actual := models.QualityFromLabel(chosen.QualityLabel)
	return &models.SelectionResult{
		Stream:         chosen,
		NeedsTranscode: chosen.Container != string(req.Format),
		Substituted:    actual.Rank() != requested,
		ActualQuality:  actual,
	}, nil
}

// alternative describes the best stream of the opposite media kind, for
// degraded-availability notices.
func alternative(manifest *models.Manifest, wantedAudio bool) string {
	for i := range manifest.Streams {
		s := &manifest.Streams[i]
		if wantedAudio && s.HasVideo {
			return fmt.Sprintf("best alternative is %s video (%s)", s.QualityLabel, s.Container)
		}
		if !wantedAudio && s.AudioOnly() {
			return fmt.Sprintf("best alternative is audio-only (%s)", s.Container)
		}
	}
	return "no alternative streams available"
}
