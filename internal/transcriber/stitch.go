package transcriber

import (
	"strings"

	"github.com/ytflow/ytflow/pkg/models"
)

// similarityThreshold is the token-overlap score above which two segments
// in the overlap window are judged to be the same speech.
const similarityThreshold = 0.5

// chunkResult pairs one chunk's segments with its absolute start offset.
type chunkResult struct {
	offset   float64
	segments []models.TranscriptSegment
}

// stitch reassembles per-chunk segments into a single ordered sequence.
// Timestamps are shifted by each chunk's offset. Within the overlap window
// at a chunk boundary, text judged duplicated keeps the later chunk's
// version. The output has strictly increasing, non-overlapping start times.
func stitch(chunks []chunkResult, overlap float64) []models.TranscriptSegment {
	var out []models.TranscriptSegment

	for ci, chunk := range chunks {
		windowEnd := chunk.offset + overlap

		for _, seg := range chunk.segments {
			seg.Start += chunk.offset
			seg.End += chunk.offset

			if ci > 0 && seg.Start < windowEnd {
				// Remove earlier-chunk tail segments this one duplicates.
				for len(out) > 0 {
					last := out[len(out)-1]
					if last.End > seg.Start && similarity(last.Text, seg.Text) >= similarityThreshold {
						out = out[:len(out)-1]
						continue
					}
					break
				}
			}

			if len(out) > 0 {
				last := out[len(out)-1]
				if seg.Start < last.End {
					if similarity(last.Text, seg.Text) >= similarityThreshold {
						continue
					}
					seg.Start = last.End
				}
				if seg.Start <= last.Start || seg.End <= seg.Start {
					continue
				}
			}

			seg.Timestamp = models.FormatTimestamp(seg.Start)
			out = append(out, seg)
		}
	}

	return out
}

// similarity is the Jaccard index over lowercased tokens.
func similarity(a, b string) float64 {
	ta := strings.Fields(strings.ToLower(a))
	tb := strings.Fields(strings.ToLower(b))
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}

	union := len(set)
	intersect := 0
	for _, t := range tb {
		if set[t] {
			intersect++
			set[t] = false
		} else {
			union++
		}
	}

	return float64(intersect) / float64(union)
}
