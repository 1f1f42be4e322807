package extractor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/ytflow/ytflow/pkg/models"
)

// transcode pipes the remote stream through ffmpeg, stdin to stdout, and
// returns the converted stream. ffmpeg reads input only as fast as it can
// emit output, so a slow consumer throttles the upstream transfer.
func (e *Extractor) transcode(ctx context.Context, in io.ReadCloser, format models.Format) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, e.ffmpegPath, muxArgs(format, e.audioBitrate)...)
	cmd.Stdin = in

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		in.Close()
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		in.Close()
		return nil, fmt.Errorf("%w: failed to start ffmpeg: %v", ErrTranscodeFailed, err)
	}

	return &transcodeStream{cmd: cmd, stdout: stdout, in: in, stderr: &stderr}, nil
}

// muxArgs builds the ffmpeg pipeline arguments for the target container.
// mp4 output over a pipe is not seekable, hence the fragmented flags.
func muxArgs(format models.Format, audioBitrate string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", "pipe:0"}

	switch format {
	case models.FormatMP3:
		args = append(args, "-vn", "-c:a", "libmp3lame", "-b:a", audioBitrate, "-f", "mp3")
	case models.FormatWebM:
		// The WebM muxer accepts only VP8/VP9/AV1 video and Vorbis/Opus
		// audio; streams reaching this branch are H.264/AAC, so a plain
		// stream copy can never satisfy it.
		args = append(args, "-c:v", "libvpx-vp9", "-b:v", "0", "-crf", "34",
			"-c:a", "libopus", "-f", "webm")
	default:
		args = append(args, "-c", "copy", "-movflags", "frag_keyframe+empty_moov", "-f", "mp4")
	}

	return append(args, "pipe:1")
}

// transcodeStream is the live ffmpeg pipeline. Closing it tears down the
// process and the upstream transfer.
type transcodeStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	in     io.ReadCloser
	stderr *bytes.Buffer
	waited bool
}

func (t *transcodeStream) Read(p []byte) (int, error) {
	n, err := t.stdout.Read(p)
	if err == io.EOF && !t.waited {
		t.waited = true
		if werr := t.cmd.Wait(); werr != nil {
			return n, fmt.Errorf("%w: %v: %s", ErrTranscodeFailed, werr, t.stderr.String())
		}
	}
	return n, err
}

func (t *transcodeStream) Close() error {
	err := t.in.Close()
	if !t.waited {
		t.waited = true
		if t.cmd.Process != nil {
			t.cmd.Process.Kill()
		}
		t.cmd.Wait()
	}
	return err
}
