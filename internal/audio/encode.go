package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// EncodeM4A writes rec to path as AAC in an MP4 container using ffmpeg.
func EncodeM4A(ctx context.Context, ffmpeg string, rec Recorded, path string) error {
	if len(rec.Samples) == 0 {
		return ErrNoAudio
	}
	if rec.SampleRate <= 0 || rec.Channels <= 0 {
		return fmt.Errorf("invalid recording format: %d Hz, %d channels", rec.SampleRate, rec.Channels)
	}
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}

	pcm := make([]byte, 4*len(rec.Samples))
	for i, s := range rec.Samples {
		binary.LittleEndian.PutUint32(pcm[4*i:], math.Float32bits(s))
	}

	cmd := exec.CommandContext(ctx, ffmpeg,
		"-v", "error", "-hide_banner", "-y",
		"-f", "f32le",
		"-ar", strconv.Itoa(rec.SampleRate),
		"-ac", strconv.Itoa(rec.Channels),
		"-i", "pipe:0",
		"-c:a", "aac", "-b:a", "96k",
		"-movflags", "+faststart",
		path,
	)
	cmd.Stdin = bytes.NewReader(pcm)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(path)
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("encode %s: %w: %s", path, err, msg)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("encode %s: ffmpeg not found: %w", path, err)
		}
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
