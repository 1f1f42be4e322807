// Package transcriber turns audio streams into timestamped transcripts via
// an external speech-to-text provider, chunking inputs that exceed the
// provider's duration limit.
package transcriber

import (
	"context"
	"errors"
	"time"

	"github.com/ytflow/ytflow/pkg/models"
)

var (
	// ErrProvider covers failures of the speech-to-text backend. A chunked
	// transcription fails atomically: one failed chunk fails the whole
	// operation, no partial segments are returned.
	ErrProvider = errors.New("transcription provider failed")
	// ErrAudioTooLong means the input exceeds what the provider accepts
	// even after chunking limits.
	ErrAudioTooLong = errors.New("audio too long")
	// ErrUnsupportedLanguage means an explicit language code the provider
	// does not support. "auto" is always accepted.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Result is a single provider response for one audio file or chunk.
type Result struct {
	Text     string
	Language string
	Duration float64
	Segments []models.TranscriptSegment
}

// Provider is the speech-to-text backend.
type Provider interface {
	// Transcribe transcribes one audio file. language is an ISO-639-1 code
	// or "auto" for provider-side detection.
	Transcribe(ctx context.Context, audioPath, language string) (*Result, error)
	// MaxDuration is the longest single input the provider accepts; longer
	// audio is chunked by the engine.
	MaxDuration() time.Duration
}

// whisperLanguages is the ISO-639-1 set Whisper-style providers accept.
var whisperLanguages = map[string]bool{
	"af": true, "ar": true, "az": true, "be": true, "bg": true, "bs": true,
	"ca": true, "cs": true, "cy": true, "da": true, "de": true, "el": true,
	"en": true, "es": true, "et": true, "fa": true, "fi": true, "fr": true,
	"gl": true, "he": true, "hi": true, "hr": true, "hu": true, "hy": true,
	"id": true, "is": true, "it": true, "ja": true, "kk": true, "kn": true,
	"ko": true, "lt": true, "lv": true, "mi": true, "mk": true, "mr": true,
	"ms": true, "ne": true, "nl": true, "no": true, "pl": true, "pt": true,
	"ro": true, "ru": true, "sk": true, "sl": true, "sr": true, "sv": true,
	"sw": true, "ta": true, "th": true, "tl": true, "tr": true, "uk": true,
	"ur": true, "vi": true, "zh": true,
}

// SupportedLanguage reports whether an explicit language code is accepted.
func SupportedLanguage(code string) bool {
	return whisperLanguages[code]
}
