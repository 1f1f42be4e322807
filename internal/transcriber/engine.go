package transcriber

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ytflow/ytflow/internal/config"
	"github.com/ytflow/ytflow/internal/logging"
	"github.com/ytflow/ytflow/internal/metrics"
	"github.com/ytflow/ytflow/pkg/models"
)

// maxChunks bounds how much audio one request may fan out into. Anything
// longer fails fast instead of hammering the provider.
const maxChunks = 24

// Engine coordinates chunking, provider calls, and stitching.
type Engine struct {
	provider      Provider
	split         splitter
	overlap       time.Duration
	maxConcurrent int
	limiter       *rate.Limiter
	tempDir       string
	log           *logging.Logger
}

// NewEngine creates a transcription engine. ffmpeg/ffprobe are used for
// probing and chunk cutting.
func NewEngine(cfg config.TranscriberConfig, ffmpegPath, ffprobePath string, provider Provider, log *logging.Logger) *Engine {
	return &Engine{
		provider:      provider,
		split:         &ffmpegSplitter{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath},
		overlap:       cfg.ChunkOverlap,
		maxConcurrent: cfg.MaxConcurrent,
		limiter:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
		tempDir:       cfg.TempDir,
		log:           log,
	}
}

// Transcribe produces an ordered, non-overlapping segment sequence for the
// audio stream. container is the source container (used to spool the stream
// under a filename the tools recognize). An explicit unsupported language
// fails before any audio is read.
func (e *Engine) Transcribe(ctx context.Context, audio io.Reader, container, language string) (*models.Transcript, error) {
	if language == "" {
		language = "auto"
	}
	if language != "auto" && !SupportedLanguage(language) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}

	if err := os.MkdirAll(e.tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	workDir, err := os.MkdirTemp(e.tempDir, "transcribe-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	audioPath, err := spool(workDir, audio, container)
	if err != nil {
		return nil, err
	}

	duration, err := e.split.probe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe audio: %w", err)
	}

	maxDur := e.provider.MaxDuration().Seconds()
	if duration <= maxDur {
		return e.transcribeWhole(ctx, audioPath, language, duration)
	}
	return e.transcribeChunked(ctx, audioPath, language, duration, maxDur)
}

func (e *Engine) transcribeWhole(ctx context.Context, path, language string, duration float64) (*models.Transcript, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	res, err := e.provider.Transcribe(ctx, path, language)
	e.log.LogProviderCall("", 0, duration, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	metrics.ProviderCallsTotal.WithLabelValues("ok").Inc()

	segments := stitch([]chunkResult{{offset: 0, segments: res.Segments}}, 0)
	return &models.Transcript{
		Segments: segments,
		Language: res.Language,
		Duration: res.Duration,
	}, nil
}

func (e *Engine) transcribeChunked(ctx context.Context, path, language string, duration, maxDur float64) (*models.Transcript, error) {
	step := maxDur - e.overlap.Seconds()
	if step <= 0 {
		step = maxDur
	}

	var starts []float64
	for start := 0.0; start < duration; start += step {
		starts = append(starts, start)
	}
	if len(starts) > maxChunks {
		return nil, fmt.Errorf("%w: %.0fs of audio needs %d chunks (max %d)",
			ErrAudioTooLong, duration, len(starts), maxChunks)
	}

	// Cut sequentially; transcode of short chunks is cheap compared to the
	// provider round-trips that follow.
	files := make([]string, len(starts))
	for i, start := range starts {
		f, err := e.split.split(ctx, path, i, start, maxDur)
		if err != nil {
			return nil, fmt.Errorf("failed to cut chunk %d: %w", i, err)
		}
		files[i] = f
	}

	// Chunks are independent: fan out with bounded concurrency, gated by
	// the provider rate limit. Any chunk failure fails the whole run. On
	// cancellation no further chunks are dispatched, but calls already in
	// flight run to completion (they are billed regardless).
	results := make([]chunkResult, len(starts))
	languages := make([]string, len(starts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxConcurrent)

	for i := range starts {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := e.limiter.Wait(gctx); err != nil {
				return err
			}

			callStart := time.Now()
			res, err := e.provider.Transcribe(context.WithoutCancel(gctx), files[i], language)
			e.log.LogProviderCall("", i, maxDur, time.Since(callStart), err)
			if err != nil {
				metrics.ProviderCallsTotal.WithLabelValues("error").Inc()
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			metrics.ProviderCallsTotal.WithLabelValues("ok").Inc()

			results[i] = chunkResult{offset: starts[i], segments: res.Segments}
			languages[i] = res.Language
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	metrics.TranscriptionChunksTotal.Add(float64(len(starts)))
	return &models.Transcript{
		Segments: stitch(results, e.overlap.Seconds()),
		Language: languages[0],
		Duration: duration,
	}, nil
}

// spool writes the audio stream to disk under an extension matching its
// container, since both ffmpeg muxer detection and the provider rely on it.
func spool(dir string, audio io.Reader, container string) (string, error) {
	ext := map[string]string{"mp4": ".m4a", "webm": ".webm", "mp3": ".mp3"}[container]
	if ext == "" {
		ext = ".m4a"
	}

	path := filepath.Join(dir, "audio"+ext)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create spool file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, audio); err != nil {
		return "", fmt.Errorf("failed to spool audio: %w", err)
	}
	return path, nil
}
