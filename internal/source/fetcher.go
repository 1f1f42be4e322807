// Package source fetches stream manifests from the upstream platform,
// classifying failures and caching results for the lifetime of their
// signed URLs.
package source

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/kkdai/youtube/v2"
	"golang.org/x/sync/singleflight"

	"github.com/ytflow/ytflow/internal/cache"
	"github.com/ytflow/ytflow/internal/config"
	"github.com/ytflow/ytflow/internal/logging"
	"github.com/ytflow/ytflow/internal/metrics"
	"github.com/ytflow/ytflow/pkg/models"
)

var (
	// ErrUpstreamUnavailable is surfaced after transient failures exhaust
	// their retry budget.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrVideoUnavailable covers removed and private videos.
	ErrVideoUnavailable = errors.New("video unavailable")
	// ErrAgeRestricted covers videos requiring login for age confirmation.
	ErrAgeRestricted = errors.New("video is age restricted")
	// ErrRegionBlocked covers videos not playable in the server's region.
	ErrRegionBlocked = errors.New("video is region blocked")
)

// playerClient abstracts the upstream player endpoint so the fetcher can be
// tested against a fake.
type playerClient interface {
	GetVideo(ctx context.Context, url string) (*youtube.Video, error)
	StreamURL(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

type ytClient struct {
	client youtube.Client
}

func (c *ytClient) GetVideo(ctx context.Context, url string) (*youtube.Video, error) {
	return c.client.GetVideoContext(ctx, url)
}

func (c *ytClient) StreamURL(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error) {
	return c.client.GetStreamURLContext(ctx, video, format)
}

// Fetcher retrieves manifests with bounded retries and an optional
// Redis-backed cache. Concurrent fetches for the same video are collapsed
// into a single upstream call.
type Fetcher struct {
	upstream    playerClient
	cache       *cache.Cache // nil disables caching
	group       singleflight.Group
	maxAttempts int
	baseBackoff time.Duration
	defaultTTL  time.Duration
	log         *logging.Logger
}

// NewFetcher creates a fetcher backed by the real upstream client. The
// cache may be nil, in which case every request goes upstream.
func NewFetcher(cfg config.UpstreamConfig, c *cache.Cache, log *logging.Logger) *Fetcher {
	return &Fetcher{
		upstream: &ytClient{client: youtube.Client{
			// Bounds manifest calls only; media transfers go through the
			// extractor's own client.
			HTTPClient: &http.Client{Timeout: cfg.ClientTimeout},
		}},
		cache:       c,
		maxAttempts: cfg.MaxAttempts,
		baseBackoff: cfg.BaseBackoff,
		defaultTTL:  cfg.ManifestTTL,
		log:         log,
	}
}

// FetchManifest returns a manifest for the video, from cache when a valid
// entry exists, otherwise from upstream. Every cached read re-validates the
// TTL before the manifest is reused.
func (f *Fetcher) FetchManifest(ctx context.Context, ref models.VideoRef) (*models.Manifest, error) {
	if f.cache != nil {
		m, err := f.cache.GetManifest(ctx, ref.ID)
		if err != nil {
			f.log.WithError(err).WithVideoID(ref.ID).Warn("Manifest cache read failed")
		}
		if m != nil {
			metrics.ManifestFetchesTotal.WithLabelValues("hit").Inc()
			return m, nil
		}
	}
	metrics.ManifestFetchesTotal.WithLabelValues("miss").Inc()
	return f.fetch(ctx, ref)
}

// Refresh drops any cached manifest and fetches a fresh one. The extractor
// retry path uses this when a signed URL expires mid-request.
func (f *Fetcher) Refresh(ctx context.Context, ref models.VideoRef) (*models.Manifest, error) {
	if f.cache != nil {
		if err := f.cache.DeleteManifest(ctx, ref.ID); err != nil {
			f.log.WithError(err).WithVideoID(ref.ID).Warn("Manifest cache invalidation failed")
		}
	}
	return f.fetch(ctx, ref)
}

func (f *Fetcher) fetch(ctx context.Context, ref models.VideoRef) (*models.Manifest, error) {
	v, err, _ := f.group.Do(ref.ID, func() (interface{}, error) {
		manifest, err := f.fetchWithRetry(ctx, ref)
		if err != nil {
			return nil, err
		}
		if f.cache != nil {
			if err := f.cache.SetManifest(ctx, manifest); err != nil {
				f.log.WithError(err).WithVideoID(ref.ID).Warn("Manifest cache write failed")
			}
		}
		return manifest, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Manifest), nil
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, ref models.VideoRef) (*models.Manifest, error) {
	var attempts error

	for attempt := 1; attempt <= f.maxAttempts; attempt++ {
		start := time.Now()
		video, err := f.upstream.GetVideo(ctx, ref.CanonicalURL)
		f.log.LogUpstreamFetch(ref.ID, attempt, time.Since(start), err)

		if err == nil {
			return f.buildManifest(ctx, ref, video)
		}

		if permanent := classify(err); permanent != nil {
			return nil, permanent
		}

		attempts = multierror.Append(attempts, fmt.Errorf("attempt %d: %w", attempt, err))
		if attempt == f.maxAttempts {
			break
		}

		metrics.UpstreamRetriesTotal.Inc()
		if err := sleepBackoff(ctx, f.baseBackoff, attempt); err != nil {
			return nil, err
		}
	}

	metrics.ManifestFetchesTotal.WithLabelValues("error").Inc()
	return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, attempts)
}

// sleepBackoff waits base*2^(attempt-1) with ±25% jitter, or until the
// context is cancelled.
func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	backoff := base << (attempt - 1)
	jitter := time.Duration(rand.Int63n(int64(backoff)/2+1)) - backoff/4
	timer := time.NewTimer(backoff + jitter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// classify maps upstream errors to the fetcher's permanent error kinds.
// A nil return means the error is transient and worth retrying.
func classify(err error) error {
	switch {
	case errors.Is(err, youtube.ErrVideoPrivate):
		return fmt.Errorf("%w: %v", ErrVideoUnavailable, err)
	case errors.Is(err, youtube.ErrLoginRequired):
		return fmt.Errorf("%w: %v", ErrAgeRestricted, err)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		return fmt.Errorf("%w: %v", ErrVideoUnavailable, err)
	}

	var playability *youtube.ErrPlayabiltyStatus
	if errors.As(err, &playability) {
		reason := strings.ToLower(playability.Reason)
		if strings.Contains(reason, "country") || strings.Contains(reason, "region") {
			return ErrRegionBlocked
		}
		return ErrVideoUnavailable
	}

	var status youtube.ErrUnexpectedStatusCode
	if errors.As(err, &status) && int(status) < 500 {
		return fmt.Errorf("%w: upstream status %d", ErrVideoUnavailable, int(status))
	}

	return nil
}

func (f *Fetcher) buildManifest(ctx context.Context, ref models.VideoRef, video *youtube.Video) (*models.Manifest, error) {
	now := time.Now()
	manifest := &models.Manifest{
		Video:     ref,
		Title:     video.Title,
		Duration:  video.Duration.Seconds(),
		FetchedAt: now,
		TTL:       f.defaultTTL,
	}

	for i := range video.Formats {
		format := &video.Formats[i]
		streamURL, err := f.upstream.StreamURL(ctx, video, format)
		if err != nil {
			f.log.WithVideoID(ref.ID).Debugf("Skipping itag %d: %v", format.ItagNo, err)
			continue
		}

		container, codec := splitMimeType(format.MimeType)
		desc := models.StreamDescriptor{
			Itag:            format.ItagNo,
			Container:       container,
			Codec:           codec,
			HasAudio:        format.AudioChannels > 0 || strings.HasPrefix(format.MimeType, "audio/"),
			HasVideo:        strings.HasPrefix(format.MimeType, "video/") && format.QualityLabel != "",
			QualityLabel:    format.QualityLabel,
			Bitrate:         format.Bitrate,
			ApproxSizeBytes: format.ContentLength,
			URL:             streamURL,
		}
		manifest.Streams = append(manifest.Streams, desc)

		if ttl := ttlFromSignedURL(streamURL, now); ttl > 0 && ttl < manifest.TTL {
			manifest.TTL = ttl
		}
	}

	if len(manifest.Streams) == 0 {
		return nil, fmt.Errorf("%w: no usable streams", ErrVideoUnavailable)
	}

	return manifest, nil
}

// splitMimeType parses `video/mp4; codecs="avc1.4d401f, mp4a.40.2"` into
// container and codec.
func splitMimeType(mimeType string) (container, codec string) {
	parts := strings.SplitN(mimeType, ";", 2)
	if kind := strings.SplitN(parts[0], "/", 2); len(kind) == 2 {
		container = strings.TrimSpace(kind[1])
	}
	if len(parts) == 2 {
		codec = strings.Trim(strings.TrimPrefix(strings.TrimSpace(parts[1]), "codecs="), `"`)
	}
	return container, codec
}

// ttlFromSignedURL reads the `expire` unix timestamp YouTube embeds in
// signed stream URLs. Zero means no usable expiry was found.
func ttlFromSignedURL(streamURL string, now time.Time) time.Duration {
	u, err := url.Parse(streamURL)
	if err != nil {
		return 0
	}
	expire, err := strconv.ParseInt(u.Query().Get("expire"), 10, 64)
	if err != nil {
		return 0
	}
	return time.Unix(expire, 0).Sub(now)
}
