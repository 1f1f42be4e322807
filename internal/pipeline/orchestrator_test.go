package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytflow/ytflow/internal/extractor"
	"github.com/ytflow/ytflow/internal/logging"
	"github.com/ytflow/ytflow/internal/source"
	"github.com/ytflow/ytflow/internal/transcriber"
	"github.com/ytflow/ytflow/pkg/models"
)

const testURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

// fakeSource serves a scripted manifest and counts fetch/refresh calls.
type fakeSource struct {
	manifest   *models.Manifest
	err        error
	fetches    int
	refreshes  int
	refreshErr error
}

func (f *fakeSource) FetchManifest(ctx context.Context, ref models.VideoRef) (*models.Manifest, error) {
	f.fetches++
	return f.manifest, f.err
}

func (f *fakeSource) Refresh(ctx context.Context, ref models.VideoRef) (*models.Manifest, error) {
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.manifest, f.err
}

// fakeExtractor fails the first `expireFirst` opens with ErrStreamExpired,
// then serves the payload.
type fakeExtractor struct {
	payload     string
	expireFirst int
	opens       int
	extracts    int
}

func (f *fakeExtractor) open() (io.ReadCloser, error) {
	if f.expireFirst > 0 {
		f.expireFirst--
		return nil, fmt.Errorf("%w: upstream status 403", extractor.ErrStreamExpired)
	}
	return io.NopCloser(strings.NewReader(f.payload)), nil
}

func (f *fakeExtractor) Extract(ctx context.Context, sel *models.SelectionResult, req models.OutputRequest) (io.ReadCloser, error) {
	f.extracts++
	return f.open()
}

func (f *fakeExtractor) Open(ctx context.Context, stream *models.StreamDescriptor) (io.ReadCloser, error) {
	f.opens++
	return f.open()
}

type fakeTranscriber struct {
	transcript *models.Transcript
	err        error
	calls      int
	language   string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio io.Reader, container, language string) (*models.Transcript, error) {
	f.calls++
	f.language = language
	if f.err != nil {
		return nil, f.err
	}
	// Drain like the real engine spools the stream.
	io.Copy(io.Discard, audio)
	return f.transcript, nil
}

func testManifest() *models.Manifest {
	return &models.Manifest{
		Video:     models.NewVideoRef("dQw4w9WgXcQ"),
		Title:     "Test Video",
		Duration:  212,
		FetchedAt: time.Now(),
		TTL:       5 * time.Minute,
		Streams: []models.StreamDescriptor{
			{Itag: 22, Container: "mp4", HasAudio: true, HasVideo: true, QualityLabel: "720p", Bitrate: 1_200_000, URL: "https://cdn/22"},
			{Itag: 140, Container: "mp4", HasAudio: true, Bitrate: 128_000, URL: "https://cdn/140"},
		},
	}
}

func newTestOrchestrator(src ManifestSource, ext MediaExtractor, tr Transcriber) *Orchestrator {
	return New(src, ext, tr, 5*time.Second, logging.Nop())
}

func TestDownload_HappyPath(t *testing.T) {
	src := &fakeSource{manifest: testManifest()}
	ext := &fakeExtractor{payload: "media bytes"}
	o := newTestOrchestrator(src, ext, &fakeTranscriber{})

	res, err := o.Download(context.Background(), testURL, models.FormatMP4, models.Quality720p)
	require.NoError(t, err)
	defer res.Stream.Close()

	assert.Equal(t, "video/mp4", res.ContentType)
	assert.Equal(t, "video.mp4", res.Filename)
	assert.Equal(t, models.JobStateStreaming, res.Job.State)
	assert.False(t, res.Selection.Substituted)

	body, err := io.ReadAll(res.Stream)
	require.NoError(t, err)
	assert.Equal(t, "media bytes", string(body))
}

func TestDownload_InvalidURL(t *testing.T) {
	src := &fakeSource{manifest: testManifest()}
	o := newTestOrchestrator(src, &fakeExtractor{}, &fakeTranscriber{})

	_, err := o.Download(context.Background(), "https://vimeo.com/123", models.FormatMP4, models.Quality720p)
	require.Error(t, err)
	assert.Equal(t, CodeInvalidURL, AsAPIError(err).Code)
	assert.Zero(t, src.fetches, "invalid URLs must not reach the upstream")
}

func TestDownload_ExpiredStreamRetriedOnce(t *testing.T) {
	src := &fakeSource{manifest: testManifest()}
	ext := &fakeExtractor{payload: "media bytes", expireFirst: 1}
	o := newTestOrchestrator(src, ext, &fakeTranscriber{})

	res, err := o.Download(context.Background(), testURL, models.FormatMP4, models.Quality720p)
	require.NoError(t, err)
	defer res.Stream.Close()

	assert.Equal(t, 1, src.refreshes, "retry must refresh the manifest past the cache")
	assert.Equal(t, 2, ext.extracts)
	assert.Equal(t, 1, res.Job.Attempt)
}

func TestDownload_ExpiredStreamNotRetriedTwice(t *testing.T) {
	src := &fakeSource{manifest: testManifest()}
	ext := &fakeExtractor{payload: "media bytes", expireFirst: 2}
	o := newTestOrchestrator(src, ext, &fakeTranscriber{})

	_, err := o.Download(context.Background(), testURL, models.FormatMP4, models.Quality720p)
	require.Error(t, err)

	apiErr := AsAPIError(err)
	assert.Equal(t, CodeStreamExpired, apiErr.Code)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, 1, src.refreshes)
	assert.Equal(t, 2, ext.extracts)
}

func TestDownload_FetchErrorMapped(t *testing.T) {
	src := &fakeSource{err: fmt.Errorf("fetch: %w", source.ErrVideoUnavailable)}
	o := newTestOrchestrator(src, &fakeExtractor{}, &fakeTranscriber{})

	_, err := o.Download(context.Background(), testURL, models.FormatMP4, models.Quality720p)
	require.Error(t, err)
	assert.Equal(t, CodeVideoUnavailable, AsAPIError(err).Code)
}

func TestDownload_NoMatchingFormat(t *testing.T) {
	m := testManifest()
	m.Streams = m.Streams[1:] // audio-only remains
	src := &fakeSource{manifest: m}
	o := newTestOrchestrator(src, &fakeExtractor{}, &fakeTranscriber{})

	_, err := o.Download(context.Background(), testURL, models.FormatMP4, models.Quality720p)
	require.Error(t, err)
	assert.Equal(t, CodeNoMatchingFormat, AsAPIError(err).Code)
}

func TestTranscribe_HappyPath(t *testing.T) {
	src := &fakeSource{manifest: testManifest()}
	ext := &fakeExtractor{payload: "audio bytes"}
	tr := &fakeTranscriber{transcript: &models.Transcript{
		Segments: []models.TranscriptSegment{{Start: 0, End: 4, Text: "hello", Timestamp: "00:00"}},
		Language: "en",
		Duration: 212,
	}}
	o := newTestOrchestrator(src, ext, tr)

	res, err := o.Transcribe(context.Background(), testURL, "en")
	require.NoError(t, err)

	assert.Equal(t, models.JobStateCompleted, res.Job.State)
	assert.Equal(t, "en", res.Transcript.Language)
	assert.Equal(t, "en", tr.language)
	assert.Equal(t, 1, ext.opens, "transcription reads the raw audio stream")
	assert.Zero(t, ext.extracts)
}

func TestTranscribe_UnsupportedLanguageFailsBeforeFetch(t *testing.T) {
	src := &fakeSource{manifest: testManifest()}
	o := newTestOrchestrator(src, &fakeExtractor{}, &fakeTranscriber{})

	_, err := o.Transcribe(context.Background(), testURL, "klingon")
	require.Error(t, err)

	apiErr := AsAPIError(err)
	assert.Equal(t, CodeUnsupportedLanguage, apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Zero(t, src.fetches)
}

func TestTranscribe_ExpiredStreamRetriedOnce(t *testing.T) {
	src := &fakeSource{manifest: testManifest()}
	ext := &fakeExtractor{payload: "audio bytes", expireFirst: 1}
	tr := &fakeTranscriber{transcript: &models.Transcript{Language: "en"}}
	o := newTestOrchestrator(src, ext, tr)

	_, err := o.Transcribe(context.Background(), testURL, "auto")
	require.NoError(t, err)
	assert.Equal(t, 1, src.refreshes)
	assert.Equal(t, 2, ext.opens)
}

func TestTranscribe_ProviderFailure(t *testing.T) {
	src := &fakeSource{manifest: testManifest()}
	ext := &fakeExtractor{payload: "audio bytes"}
	tr := &fakeTranscriber{err: fmt.Errorf("chunk 2: %w", transcriber.ErrProvider)}
	o := newTestOrchestrator(src, ext, tr)

	_, err := o.Transcribe(context.Background(), testURL, "en")
	require.Error(t, err)
	assert.Equal(t, CodeProviderError, AsAPIError(err).Code)
}
