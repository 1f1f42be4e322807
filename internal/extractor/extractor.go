// Package extractor streams remote encoded media, optionally repackaging it
// into the requested container on the fly. Output is always a stream: no
// stage materializes the file, so memory stays bounded regardless of input
// size and consumer backpressure propagates to the upstream socket.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ytflow/ytflow/internal/config"
	"github.com/ytflow/ytflow/internal/logging"
	"github.com/ytflow/ytflow/pkg/models"
)

var (
	// ErrStreamExpired means the signed stream URL was rejected upstream.
	// The orchestrator refreshes the manifest once and retries once.
	ErrStreamExpired = errors.New("stream URL expired")
	// ErrTranscodeFailed means ffmpeg exited abnormally.
	ErrTranscodeFailed = errors.New("transcode failed")
)

// Extractor opens remote streams and remuxes or reencodes them when the
// selected stream's container does not match the requested format.
type Extractor struct {
	httpClient   *http.Client
	ffmpegPath   string
	audioBitrate string
	bufferSize   int
	log          *logging.Logger
}

// New creates an extractor.
func New(cfg config.ExtractorConfig, log *logging.Logger) *Extractor {
	return &Extractor{
		httpClient:   &http.Client{}, // no overall timeout: transfers can run for minutes
		ffmpegPath:   cfg.FFmpegPath,
		audioBitrate: cfg.AudioBitrate,
		bufferSize:   cfg.BufferSize,
		log:          log,
	}
}

// BufferSize returns the copy buffer size consumers should use when
// draining extraction streams.
func (e *Extractor) BufferSize() int {
	return e.bufferSize
}

// Open starts a raw passthrough transfer of the descriptor's stream.
func (e *Extractor) Open(ctx context.Context, stream *models.StreamDescriptor) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stream.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build stream request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		return resp.Body, nil
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusGone ||
		resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: upstream status %d", ErrStreamExpired, resp.StatusCode)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected upstream status %d", resp.StatusCode)
	}
}

// Extract opens the selected stream and returns the output byte stream.
// When the container already matches the requested format the bytes pass
// through unmodified; otherwise they are piped through ffmpeg.
func (e *Extractor) Extract(ctx context.Context, sel *models.SelectionResult, req models.OutputRequest) (io.ReadCloser, error) {
	body, err := e.Open(ctx, sel.Stream)
	if err != nil {
		return nil, err
	}

	if !sel.NeedsTranscode {
		return body, nil
	}

	e.log.WithVideoID(req.Video.ID).Debugf("Remuxing %s/%s to %s",
		sel.Stream.Container, sel.Stream.Codec, req.Format)
	return e.transcode(ctx, body, req.Format)
}
