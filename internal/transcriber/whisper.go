package transcriber

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ytflow/ytflow/internal/config"
	"github.com/ytflow/ytflow/pkg/models"
)

// WhisperProvider calls a Whisper-compatible transcription endpoint
// (POST {base}/audio/transcriptions, multipart, verbose_json response).
type WhisperProvider struct {
	baseURL     string
	apiKey      string
	model       string
	maxDuration time.Duration
	httpClient  *http.Client
}

// NewWhisperProvider creates a provider from configuration.
func NewWhisperProvider(cfg config.TranscriberConfig) *WhisperProvider {
	return &WhisperProvider{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		maxDuration: cfg.MaxAudioDuration,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// MaxDuration implements Provider.
func (p *WhisperProvider) MaxDuration() time.Duration {
	return p.maxDuration
}

// verboseResponse is the provider's verbose_json payload.
type verboseResponse struct {
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

type providerError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Transcribe implements Provider.
func (p *WhisperProvider) Transcribe(ctx context.Context, audioPath, language string) (*Result, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	// Stream the multipart body instead of buffering the audio in memory.
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		pw.CloseWithError(writeForm(form, file, filepath.Base(audioPath), p.model, language))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/audio/transcriptions", pr)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.classifyError(resp)
	}

	var parsed verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrProvider, err)
	}

	result := &Result{
		Text:     parsed.Text,
		Language: parsed.Language,
		Duration: parsed.Duration,
	}
	for _, s := range parsed.Segments {
		result.Segments = append(result.Segments, models.TranscriptSegment{
			Start: s.Start,
			End:   s.End,
			Text:  s.Text,
		})
	}
	return result, nil
}

func writeForm(form *multipart.Writer, file io.Reader, filename, model, language string) error {
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := form.WriteField("model", model); err != nil {
		return err
	}
	if err := form.WriteField("response_format", "verbose_json"); err != nil {
		return err
	}
	// "auto" means provider-side detection: omit the field entirely.
	if language != "" && language != "auto" {
		if err := form.WriteField("language", language); err != nil {
			return err
		}
	}
	return form.Close()
}

func (p *WhisperProvider) classifyError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var perr providerError
	message := resp.Status
	if err := json.Unmarshal(body, &perr); err == nil && perr.Error.Message != "" {
		message = perr.Error.Message
	}

	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return fmt.Errorf("%w: %s", ErrAudioTooLong, message)
	}
	return fmt.Errorf("%w: status %d: %s", ErrProvider, resp.StatusCode, message)
}

var _ Provider = (*WhisperProvider)(nil)
