// Package pipeline coordinates the per-request flow: resolve → fetch →
// select → extract or transcribe, with deadline and retry policy.
package pipeline

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/ytflow/ytflow/internal/extractor"
	"github.com/ytflow/ytflow/internal/logging"
	"github.com/ytflow/ytflow/internal/metrics"
	"github.com/ytflow/ytflow/internal/resolver"
	"github.com/ytflow/ytflow/internal/selector"
	"github.com/ytflow/ytflow/internal/tracing"
	"github.com/ytflow/ytflow/internal/transcriber"
	"github.com/ytflow/ytflow/pkg/models"
)

// ManifestSource provides stream manifests.
type ManifestSource interface {
	FetchManifest(ctx context.Context, ref models.VideoRef) (*models.Manifest, error)
	Refresh(ctx context.Context, ref models.VideoRef) (*models.Manifest, error)
}

// MediaExtractor opens and converts media streams.
type MediaExtractor interface {
	Extract(ctx context.Context, sel *models.SelectionResult, req models.OutputRequest) (io.ReadCloser, error)
	Open(ctx context.Context, stream *models.StreamDescriptor) (io.ReadCloser, error)
}

// Transcriber produces transcripts from audio streams.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, container, language string) (*models.Transcript, error)
}

// Orchestrator runs the pipeline for one request at a time. It owns the
// timeout and retry policy; the collaborators are injected so tests can
// substitute fakes.
type Orchestrator struct {
	source      ManifestSource
	extractor   MediaExtractor
	transcriber Transcriber
	// Deadline over resolve+fetch+select. Extraction streaming is bounded
	// by the request context instead, since large transfers legitimately
	// run for minutes.
	pipelineTimeout time.Duration
	log             *logging.Logger
}

// New creates an orchestrator.
func New(src ManifestSource, ext MediaExtractor, tr Transcriber, pipelineTimeout time.Duration, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		source:          src,
		extractor:       ext,
		transcriber:     tr,
		pipelineTimeout: pipelineTimeout,
		log:             log,
	}
}

// DownloadResult is a ready-to-stream extraction.
type DownloadResult struct {
	Job         *models.Job
	Stream      io.ReadCloser
	ContentType string
	Filename    string
	Selection   *models.SelectionResult
}

// TranscribeResult is a finished transcription.
type TranscribeResult struct {
	Job        *models.Job
	Transcript *models.Transcript
}

// Download runs the extraction pipeline. The returned stream must be
// closed by the caller.
func (o *Orchestrator) Download(ctx context.Context, rawURL string, format models.Format, quality models.Quality) (*DownloadResult, error) {
	span, ctx := tracing.StartSpan(ctx, "pipeline.download")
	defer tracing.FinishSpan(span)

	ref, err := resolver.Resolve(rawURL)
	if err != nil {
		return nil, AsAPIError(err)
	}

	req := models.OutputRequest{Video: ref, Format: format, Quality: quality}
	job := models.NewJob(req)
	log := o.log.WithJobID(job.ID).WithVideoID(ref.ID)

	sel, err := o.selectStream(ctx, job, req)
	if err != nil {
		return nil, o.fail(log, job, err)
	}

	job.State = models.JobStateExtracting
	stream, err := o.extractor.Extract(ctx, sel, req)
	if errors.Is(err, extractor.ErrStreamExpired) && job.Attempt == 0 {
		// Signed URLs die quickly; one refresh+retry bounds the cost of a
		// persistently broken upstream.
		job.Attempt++
		log.LogJobEvent(job.ID, "stream_expired_retry", job.State, nil)
		if sel, err = o.reselect(ctx, job, req); err == nil {
			stream, err = o.extractor.Extract(ctx, sel, req)
		}
	}
	if err != nil {
		return nil, o.fail(log, job, err)
	}

	job.State = models.JobStateStreaming
	metrics.DownloadsTotal.WithLabelValues(string(req.Format)).Inc()
	if sel.Substituted {
		log.LogJobEvent(job.ID, "quality_substituted", job.State,
			map[string]interface{}{"requested": req.Quality, "actual": sel.ActualQuality})
	}

	return &DownloadResult{
		Job:         job,
		Stream:      stream,
		ContentType: req.Format.ContentType(),
		Filename:    req.Filename(),
		Selection:   sel,
	}, nil
}

// Transcribe runs the transcription pipeline: the best audio-only stream
// is extracted unmodified and fed to the engine.
func (o *Orchestrator) Transcribe(ctx context.Context, rawURL, language string) (*TranscribeResult, error) {
	span, ctx := tracing.StartSpan(ctx, "pipeline.transcribe")
	defer tracing.FinishSpan(span)

	if language == "" {
		language = "auto"
	}
	// Fail before any upstream work: an explicit bad code never burns a
	// manifest fetch.
	if language != "auto" && !transcriber.SupportedLanguage(language) {
		return nil, AsAPIError(transcriber.ErrUnsupportedLanguage)
	}

	ref, err := resolver.Resolve(rawURL)
	if err != nil {
		return nil, AsAPIError(err)
	}

	req := models.OutputRequest{Video: ref, Format: models.FormatMP3, Quality: models.Quality1080p, Language: language}
	job := models.NewJob(req)
	log := o.log.WithJobID(job.ID).WithVideoID(ref.ID)

	sel, err := o.selectStream(ctx, job, req)
	if err != nil {
		return nil, o.fail(log, job, err)
	}

	job.State = models.JobStateExtracting
	stream, err := o.extractor.Open(ctx, sel.Stream)
	if errors.Is(err, extractor.ErrStreamExpired) && job.Attempt == 0 {
		job.Attempt++
		log.LogJobEvent(job.ID, "stream_expired_retry", job.State, nil)
		if sel, err = o.reselect(ctx, job, req); err == nil {
			stream, err = o.extractor.Open(ctx, sel.Stream)
		}
	}
	if err != nil {
		return nil, o.fail(log, job, err)
	}
	defer stream.Close()

	job.State = models.JobStateTranscribing
	transcript, err := o.transcriber.Transcribe(ctx, stream, sel.Stream.Container, language)
	if err != nil {
		metrics.TranscriptionsTotal.WithLabelValues("error").Inc()
		return nil, o.fail(log, job, err)
	}

	job.State = models.JobStateCompleted
	metrics.TranscriptionsTotal.WithLabelValues("ok").Inc()
	log.LogJobEvent(job.ID, "transcription_completed", job.State,
		map[string]interface{}{"segments": len(transcript.Segments), "language": transcript.Language})

	return &TranscribeResult{Job: job, Transcript: transcript}, nil
}

// selectStream runs fetch+select under the pipeline deadline.
func (o *Orchestrator) selectStream(ctx context.Context, job *models.Job, req models.OutputRequest) (*models.SelectionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.pipelineTimeout)
	defer cancel()

	job.State = models.JobStateFetching
	manifest, err := o.source.FetchManifest(ctx, req.Video)
	if err != nil {
		return nil, err
	}

	job.State = models.JobStateSelecting
	return selector.Select(manifest, req)
}

// reselect refreshes the manifest past the cache and selects again, for
// the single StreamExpired retry.
func (o *Orchestrator) reselect(ctx context.Context, job *models.Job, req models.OutputRequest) (*models.SelectionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, o.pipelineTimeout)
	defer cancel()

	job.State = models.JobStateFetching
	manifest, err := o.source.Refresh(ctx, req.Video)
	if err != nil {
		return nil, err
	}

	job.State = models.JobStateSelecting
	return selector.Select(manifest, req)
}

func (o *Orchestrator) fail(log *logging.Logger, job *models.Job, err error) error {
	job.State = models.JobStateFailed
	apiErr := AsAPIError(err)
	log.WithError(err).LogJobEvent(job.ID, "pipeline_failed", job.State,
		map[string]interface{}{"code": apiErr.Code})
	return apiErr
}
