package inference

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rbright/dictate/internal/preprocess"
)

var progressLine = regexp.MustCompile(`progress\s*=\s*(\d+)%`)

// WhisperCLI runs the whisper.cpp command line program as a backend. The
// binary and model are resolved once, on first use.
type WhisperCLI struct {
	Binary string
	Model  string
	Logger *slog.Logger

	initMu   sync.Mutex
	resolved string
}

// Factory returns a Factory producing one attempt per call.
func (w *WhisperCLI) Factory() Factory {
	return func(_ context.Context, path Path) (Backend, error) {
		bin, err := w.init()
		if err != nil {
			return nil, err
		}
		return &cliAttempt{binary: bin, model: w.Model, cpuOnly: path == PathCPU}, nil
	}
}

// init resolves the binary and checks the model. Only success is cached, so
// installing a missing program takes effect on the next job.
func (w *WhisperCLI) init() (string, error) {
	w.initMu.Lock()
	defer w.initMu.Unlock()
	if w.resolved != "" {
		return w.resolved, nil
	}

	name := strings.TrimSpace(w.Binary)
	if name == "" {
		name = "whisper-cli"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("whisper program %q: %w", name, err)
	}
	if _, err := os.Stat(w.Model); err != nil {
		return "", fmt.Errorf("whisper model: %w", err)
	}
	w.resolved = bin
	if w.Logger != nil {
		w.Logger.Debug("whisper runtime ready", "binary", bin, "model", w.Model)
	}
	return bin, nil
}

type cliAttempt struct {
	binary  string
	model   string
	cpuOnly bool
}

type cliOutput struct {
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func (c *cliAttempt) Recognize(ctx context.Context, req Request) ([]Segment, error) {
	dir, err := os.MkdirTemp("", "dictate-whisper-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.wav")
	if err := preprocess.WriteWAV(input, req.Samples, preprocess.TargetSampleRate); err != nil {
		return nil, err
	}
	outBase := filepath.Join(dir, "out")

	cmd := exec.CommandContext(ctx, c.binary, c.args(req, input, outBase)...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("whisper stderr: %w", err)
	}
	cmd.Stdout = io.Discard
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start whisper: %w", err)
	}

	tail := scanProgress(stderr, req.Progress)
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("whisper failed: %w: %s", err, tail)
	}

	raw, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	var out cliOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}

	segments := make([]Segment, 0, len(out.Transcription))
	for _, item := range out.Transcription {
		segments = append(segments, Segment{
			Text:  item.Text,
			Start: time.Duration(item.Offsets.From) * time.Millisecond,
			End:   time.Duration(item.Offsets.To) * time.Millisecond,
		})
	}
	return segments, nil
}

func (c *cliAttempt) args(req Request, input string, outBase string) []string {
	p := req.Params
	lang := req.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	args := []string{
		"-m", c.model,
		"-f", input,
		"-t", strconv.Itoa(max(req.Threads, 1)),
		"-bs", strconv.Itoa(p.BeamSize),
		"-tp", formatFloat(p.Temperature),
		"-tpi", formatFloat(p.TemperatureInc),
		"-lpt", formatFloat(p.LogprobThreshold),
		"-et", formatFloat(p.EntropyThreshold),
		"-nth", formatFloat(p.NoSpeechThreshold),
		"-l", lang,
		"--suppress-nst",
		"-oj",
		"-of", outBase,
	}
	if req.Prompt != "" {
		args = append(args, "--prompt", req.Prompt)
	}
	if req.Progress != nil {
		args = append(args, "-pp")
	}
	if c.cpuOnly {
		args = append(args, "-ng")
	}
	return args
}

// scanProgress forwards progress lines and returns the last few lines of
// stderr for error messages.
func scanProgress(r io.Reader, progress func(int)) string {
	const keep = 8
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if m := progressLine.FindStringSubmatch(line); m != nil {
			if pct, err := strconv.Atoi(m[1]); err == nil && progress != nil {
				progress(pct)
			}
			continue
		}
		lines = append(lines, line)
		if len(lines) > keep {
			lines = lines[1:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
