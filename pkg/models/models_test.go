package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVideoRef(t *testing.T) {
	ref := NewVideoRef("dQw4w9WgXcQ")
	assert.Equal(t, "dQw4w9WgXcQ", ref.ID)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", ref.CanonicalURL)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatMP4, f, "empty format defaults to mp4")

	for _, s := range []string{"mp4", "mp3", "webm"} {
		f, err := ParseFormat(s)
		require.NoError(t, err)
		assert.Equal(t, Format(s), f)
	}

	_, err = ParseFormat("avi")
	assert.Error(t, err)
}

func TestFormatContentType(t *testing.T) {
	assert.Equal(t, "video/mp4", FormatMP4.ContentType())
	assert.Equal(t, "audio/mpeg", FormatMP3.ContentType())
	assert.Equal(t, "video/webm", FormatWebM.ContentType())
}

func TestParseQuality(t *testing.T) {
	q, err := ParseQuality("")
	require.NoError(t, err)
	assert.Equal(t, Quality1080p, q, "empty quality defaults to 1080p")

	q, err = ParseQuality("2160p")
	require.NoError(t, err)
	assert.Equal(t, Quality4K, q, "2160p is an alias for 4K")

	q, err = ParseQuality("144p")
	require.NoError(t, err)
	assert.Equal(t, Quality144p, q)

	_, err = ParseQuality("potato")
	assert.Error(t, err)
}

func TestQualityRankOrdering(t *testing.T) {
	// Rank must strictly improve up the ladder.
	assert.Less(t, Quality4K.Rank(), Quality1440p.Rank())
	assert.Less(t, Quality1080p.Rank(), Quality720p.Rank())
	assert.Less(t, Quality240p.Rank(), Quality144p.Rank())

	// Unknown labels rank below everything.
	assert.Greater(t, Quality("720p60").Rank(), Quality144p.Rank())
}

func TestQualityLabelRoundTrip(t *testing.T) {
	assert.Equal(t, "2160p", Quality4K.Label())
	assert.Equal(t, "720p", Quality720p.Label())
	assert.Equal(t, Quality4K, QualityFromLabel("2160p"))
	assert.Equal(t, Quality720p, QualityFromLabel("720p"))
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00", FormatTimestamp(0))
	assert.Equal(t, "00:04", FormatTimestamp(4.9))
	assert.Equal(t, "01:05", FormatTimestamp(65))
	assert.Equal(t, "75:00", FormatTimestamp(4500), "minutes keep counting past an hour")
}

func TestTranscriptText(t *testing.T) {
	tr := &Transcript{Segments: []TranscriptSegment{
		{Text: " hello world"},
		{Text: ""},
		{Text: "this is a test "},
	}}
	assert.Equal(t, "hello world this is a test", tr.Text())
}

func TestManifestExpired(t *testing.T) {
	m := &Manifest{FetchedAt: time.Now(), TTL: time.Minute}
	assert.False(t, m.Expired(time.Now()))
	assert.True(t, m.Expired(time.Now().Add(2*time.Minute)))
}

func TestStreamDescriptorAudioOnly(t *testing.T) {
	assert.True(t, (&StreamDescriptor{HasAudio: true}).AudioOnly())
	assert.False(t, (&StreamDescriptor{HasAudio: true, HasVideo: true}).AudioOnly())
	assert.False(t, (&StreamDescriptor{}).AudioOnly())
}

func TestNewJob(t *testing.T) {
	req := OutputRequest{Video: NewVideoRef("dQw4w9WgXcQ"), Format: FormatMP3}
	job := NewJob(req)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobStateResolving, job.State)
	assert.Zero(t, job.Attempt)
	assert.Equal(t, "video.mp3", job.Request.Filename())
}
