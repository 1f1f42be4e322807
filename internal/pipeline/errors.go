package pipeline

import (
	"errors"
	"net/http"

	"github.com/ytflow/ytflow/internal/extractor"
	"github.com/ytflow/ytflow/internal/resolver"
	"github.com/ytflow/ytflow/internal/selector"
	"github.com/ytflow/ytflow/internal/source"
	"github.com/ytflow/ytflow/internal/transcriber"
)

// Code is a stable external error code. Codes never change meaning;
// clients may match on them.
type Code string

const (
	CodeInvalidURL          Code = "INVALID_URL"
	CodeVideoUnavailable    Code = "VIDEO_UNAVAILABLE"
	CodeUpstreamUnavailable Code = "UPSTREAM_UNAVAILABLE"
	CodeStreamExpired       Code = "STREAM_EXPIRED"
	CodeNoMatchingFormat    Code = "NO_MATCHING_FORMAT"
	CodeTranscodeFailed     Code = "TRANSCODE_FAILED"
	CodeProviderError       Code = "PROVIDER_ERROR"
	CodeAudioTooLong        Code = "AUDIO_TOO_LONG"
	CodeUnsupportedLanguage Code = "UNSUPPORTED_LANGUAGE"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// APIError is the only error shape that leaves the pipeline. Its message
// is written for end users; upstream detail (signed URLs, provider error
// text, stack traces) stays in the wrapped error, which is logged but
// never serialized.
type APIError struct {
	Code    Code
	Status  int
	Message string
	err     error
}

func (e *APIError) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *APIError) Unwrap() error {
	return e.err
}

// AsAPIError extracts an APIError, mapping anything unclassified to the
// internal catch-all.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return wrap(err)
}

// wrap maps component sentinel errors to stable external codes.
func wrap(err error) *APIError {
	switch {
	case errors.Is(err, resolver.ErrInvalidURL):
		return &APIError{CodeInvalidURL, http.StatusBadRequest,
			"Invalid YouTube URL", err}
	case errors.Is(err, source.ErrAgeRestricted):
		return &APIError{CodeVideoUnavailable, http.StatusNotFound,
			"Video is age restricted", err}
	case errors.Is(err, source.ErrRegionBlocked):
		return &APIError{CodeVideoUnavailable, http.StatusNotFound,
			"Video is not available in this region", err}
	case errors.Is(err, source.ErrVideoUnavailable):
		return &APIError{CodeVideoUnavailable, http.StatusNotFound,
			"Video is unavailable", err}
	case errors.Is(err, source.ErrUpstreamUnavailable):
		return &APIError{CodeUpstreamUnavailable, http.StatusServiceUnavailable,
			"Upstream platform is unavailable, try again later", err}
	case errors.Is(err, selector.ErrNoMatchingStream):
		// Selector messages name the best alternative and contain nothing
		// upstream-derived, so surfacing them is safe and useful.
		return &APIError{CodeNoMatchingFormat, http.StatusNotFound,
			err.Error(), err}
	case errors.Is(err, extractor.ErrStreamExpired):
		return &APIError{CodeStreamExpired, http.StatusBadGateway,
			"Stream link expired, try again", err}
	case errors.Is(err, extractor.ErrTranscodeFailed):
		return &APIError{CodeTranscodeFailed, http.StatusInternalServerError,
			"Failed to convert media", err}
	case errors.Is(err, transcriber.ErrUnsupportedLanguage):
		return &APIError{CodeUnsupportedLanguage, http.StatusBadRequest,
			"Unsupported transcription language", err}
	case errors.Is(err, transcriber.ErrAudioTooLong):
		return &APIError{CodeAudioTooLong, http.StatusUnprocessableEntity,
			"Audio is too long to transcribe", err}
	case errors.Is(err, transcriber.ErrProvider):
		return &APIError{CodeProviderError, http.StatusInternalServerError,
			"Transcription failed", err}
	default:
		return &APIError{CodeInternal, http.StatusInternalServerError,
			"Failed to process video", err}
	}
}
