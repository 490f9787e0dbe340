package preprocess

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
)

// ErrEmptyPath is returned when Decode is called without a file.
var ErrEmptyPath = errors.New("audio path is empty")

// Audio is decoded mono PCM at its native sample rate.
type Audio struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the clip length in seconds.
func (a Audio) Duration() float64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

// Decoder turns audio containers into mono float PCM. PCM WAV files are
// read in-process; everything else goes through ffprobe and ffmpeg.
type Decoder struct {
	FFmpeg  string
	FFprobe string
}

// Decode reads path and down-mixes it to mono at the native rate.
func (d Decoder) Decode(ctx context.Context, path string) (Audio, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Audio{}, ErrEmptyPath
	}
	if strings.EqualFold(filepath.Ext(path), ".wav") {
		audio, ok, err := decodeWAV(path)
		if err != nil {
			return Audio{}, err
		}
		if ok {
			return audio, nil
		}
	}

	info, err := probe(ctx, d.ffprobe(), path)
	if err != nil {
		return Audio{}, err
	}

	cmd := exec.CommandContext(ctx, d.ffmpeg(),
		"-nostdin", "-v", "error", "-hide_banner",
		"-i", path,
		"-map", "0:a:0",
		"-f", "f32le", "-acodec", "pcm_f32le",
		"-",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Audio{}, fmt.Errorf("ffmpeg decode %q: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	interleaved, err := parseF32LE(stdout.Bytes())
	if err != nil {
		return Audio{}, fmt.Errorf("ffmpeg decode %q: %w", path, err)
	}
	return Audio{Samples: Downmix(interleaved, info.channels), SampleRate: info.sampleRate}, nil
}

func (d Decoder) ffmpeg() string {
	if bin := strings.TrimSpace(d.FFmpeg); bin != "" {
		return bin
	}
	return "ffmpeg"
}

func (d Decoder) ffprobe() string {
	if bin := strings.TrimSpace(d.FFprobe); bin != "" {
		return bin
	}
	return "ffprobe"
}

// Downmix averages interleaved frames into one channel.
func Downmix(interleaved []float32, channels int) []float32 {
	if channels <= 1 {
		return interleaved
	}
	frames := len(interleaved) / channels
	mono := make([]float32, frames)
	for f := 0; f < frames; f++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[f*channels+ch]
		}
		mono[f] = sum / float32(channels)
	}
	return mono
}

type streamInfo struct {
	sampleRate int
	channels   int
}

type probeResult struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// probe reads the first audio stream's rate and channel count.
func probe(ctx context.Context, binary string, path string) (streamInfo, error) {
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_streams", "-of", "json", "--", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return streamInfo{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return streamInfo{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	for _, stream := range result.Streams {
		if !strings.EqualFold(stream.CodecType, "audio") {
			continue
		}
		rate, err := strconv.Atoi(strings.TrimSpace(stream.SampleRate))
		if err != nil || rate <= 0 {
			return streamInfo{}, fmt.Errorf("ffprobe %q: missing sample rate", path)
		}
		channels := stream.Channels
		if channels <= 0 {
			channels = 1
		}
		return streamInfo{sampleRate: rate, channels: channels}, nil
	}
	return streamInfo{}, fmt.Errorf("ffprobe %q: no audio track", path)
}

func parseF32LE(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("truncated f32le stream (%d bytes)", len(raw))
	}
	out := make([]float32, len(raw)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return out, nil
}

// decodeWAV reads integer PCM WAV files. ok is false for WAV variants the
// decoder does not handle, which then fall back to ffmpeg.
func decodeWAV(path string) (Audio, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return Audio{}, false, fmt.Errorf("open audio %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Audio{}, false, nil
	}
	if dec.WavAudioFormat != 1 {
		return Audio{}, false, nil
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Audio{}, false, fmt.Errorf("decode wav %q: %w", path, err)
	}
	if buf == nil || buf.Format == nil {
		return Audio{}, false, fmt.Errorf("decode wav %q: missing format", path)
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float32(math.Pow(2, float64(bitDepth-1)))
	// 8-bit WAV is unsigned around 128.
	offset := 0
	if bitDepth == 8 {
		offset = 128
	}
	interleaved := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		interleaved[i] = float32(v-offset) / scale
	}

	return Audio{
		Samples:    Downmix(interleaved, buf.Format.NumChannels),
		SampleRate: buf.Format.SampleRate,
	}, true, nil
}
