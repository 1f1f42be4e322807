package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
)

// splitter probes audio duration and cuts chunk files. Abstracted so the
// engine can be tested without ffmpeg on the machine.
type splitter interface {
	probe(ctx context.Context, path string) (float64, error)
	split(ctx context.Context, path string, index int, start, duration float64) (string, error)
}

// ffmpegSplitter shells out to ffprobe/ffmpeg. Chunks are reencoded to mp3
// so the output container is valid regardless of the source codec.
type ffmpegSplitter struct {
	ffmpegPath  string
	ffprobePath string
}

func (s *ffmpegSplitter) probe(ctx context.Context, path string) (float64, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	}

	cmd := exec.CommandContext(ctx, s.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}

	var metadata struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &metadata); err != nil {
		return 0, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	duration, err := strconv.ParseFloat(metadata.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", metadata.Format.Duration, err)
	}
	return duration, nil
}

func (s *ffmpegSplitter) split(ctx context.Context, path string, index int, start, duration float64) (string, error) {
	out := filepath.Join(filepath.Dir(path), fmt.Sprintf("chunk_%03d.mp3", index))
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", start),
		"-t", fmt.Sprintf("%.3f", duration),
		"-i", path,
		"-vn",
		"-c:a", "libmp3lame",
		"-b:a", "128k",
		"-y",
		out,
	}

	cmd := exec.CommandContext(ctx, s.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg chunk failed: %w, stderr: %s", err, stderr.String())
	}
	return out, nil
}
