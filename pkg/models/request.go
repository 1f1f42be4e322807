package models

import "fmt"

// Format is the requested output container.
type Format string

const (
	FormatMP4  Format = "mp4"
	FormatMP3  Format = "mp3"
	FormatWebM Format = "webm"
)

// ParseFormat validates a client-supplied format string, defaulting to mp4.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "":
		return FormatMP4, nil
	case FormatMP4, FormatMP3, FormatWebM:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown format %q", s)
	}
}

// AudioOnly reports whether the format implies an audio-only stream.
func (f Format) AudioOnly() bool {
	return f == FormatMP3
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWebM:
		return "video/webm"
	default:
		return "video/mp4"
	}
}

// Quality is a rung on the ordered quality ladder.
type Quality string

const (
	Quality4K    Quality = "4K"
	Quality1440p Quality = "1440p"
	Quality1080p Quality = "1080p"
	Quality720p  Quality = "720p"
	Quality480p  Quality = "480p"
	Quality360p  Quality = "360p"
	Quality240p  Quality = "240p"
	Quality144p  Quality = "144p"
)

// qualityLadder is ordered best-first. Upstream labels 4K as 2160p.
var qualityLadder = []Quality{
	Quality4K, Quality1440p, Quality1080p, Quality720p,
	Quality480p, Quality360p, Quality240p, Quality144p,
}

// ParseQuality validates a client-supplied quality string, defaulting to 1080p.
func ParseQuality(s string) (Quality, error) {
	if s == "" {
		return Quality1080p, nil
	}
	if s == "2160p" {
		return Quality4K, nil
	}
	for _, q := range qualityLadder {
		if Quality(s) == q {
			return q, nil
		}
	}
	return "", fmt.Errorf("unknown quality %q", s)
}

// Rank returns the ladder position, 0 being the best. Unknown labels rank
// below everything on the ladder.
func (q Quality) Rank() int {
	for i, l := range qualityLadder {
		if q == l {
			return i
		}
	}
	return len(qualityLadder)
}

// Label returns the label the upstream manifest uses for this quality.
func (q Quality) Label() string {
	if q == Quality4K {
		return "2160p"
	}
	return string(q)
}

// QualityFromLabel maps an upstream quality label back onto the ladder.
func QualityFromLabel(label string) Quality {
	if label == "2160p" {
		return Quality4K
	}
	return Quality(label)
}

// OutputRequest is one validated API call: which video, in what shape.
type OutputRequest struct {
	Video    VideoRef `json:"video"`
	Format   Format   `json:"format"`
	Quality  Quality  `json:"quality"`
	Language string   `json:"language"`
}

// Filename returns the attachment filename for a download response.
func (r OutputRequest) Filename() string {
	return fmt.Sprintf("video.%s", r.Format)
}

// SelectionResult is the outcome of matching an OutputRequest against a
// manifest: the chosen stream, whether it needs transcoding to the target
// container, and whether quality was substituted downward.
type SelectionResult struct {
	Stream         *StreamDescriptor `json:"stream"`
	NeedsTranscode bool              `json:"needs_transcode"`
	Substituted    bool              `json:"substituted"`
	ActualQuality  Quality           `json:"actual_quality"`
}
