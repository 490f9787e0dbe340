package inference

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"strings"
)

// Fallback records why the CPU path ran.
type Fallback string

const (
	FallbackNone  Fallback = ""
	FallbackError Fallback = "error"
	FallbackEmpty Fallback = "empty"
)

// Options are per-job inputs to Transcribe.
type Options struct {
	Prompt   string
	Language string
	Progress func(percent int)
}

// Result is the final recognition outcome.
type Result struct {
	Text     string
	Segments []Segment
	Path     Path
	Fallback Fallback
	Attempts int
}

// Invoker runs recognition with accelerator-to-CPU fallback.
type Invoker struct {
	Open    Factory
	Threads int
	Params  DecodeParams
	Logger  *slog.Logger
}

// Transcribe recognizes samples.
//
// The accelerated path runs first. If it fails, the CPU path runs once and
// its outcome is final. If it succeeds with zero segments the CPU path runs
// as well and its result replaces the empty one. Progress is only reported
// for the accelerated attempt.
func (iv *Invoker) Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error) {
	if iv == nil || iv.Open == nil {
		return Result{}, ErrNoBackend
	}
	lang, err := NormalizeLanguage(opts.Language)
	if err != nil {
		return Result{}, err
	}

	req := Request{
		Samples:  samples,
		Prompt:   strings.TrimSpace(opts.Prompt),
		Language: lang,
		Threads:  iv.threads(),
		Params:   iv.params(),
	}
	logger := iv.logger().With(
		"samples", len(samples),
		"duration_sec", float64(len(samples))/16000,
		"language", languageLabel(lang),
		"prompt_len", len(req.Prompt),
		"threads", req.Threads,
	)

	accelReq := req
	accelReq.Progress = newProgressReporter(opts.Progress).callback()
	segments, err := iv.attempt(ctx, PathAccelerated, accelReq)
	result := Result{Path: PathAccelerated, Attempts: 1}
	switch {
	case err != nil:
		logger.Debug("accelerated inference failed; retrying on cpu", "error", err.Error())
		result.Fallback = FallbackError
	case len(segments) == 0:
		// Zero segments without an error has been seen from broken
		// accelerator builds. It can also be genuine silence that slipped
		// past conditioning, so the CPU answer is taken either way.
		logger.Debug("accelerated inference returned no segments; retrying on cpu")
		result.Fallback = FallbackEmpty
	}

	if result.Fallback != FallbackNone {
		segments, err = iv.attempt(ctx, PathCPU, req)
		result.Path = PathCPU
		result.Attempts++
		if err != nil {
			return result, fmt.Errorf("cpu inference: %w", err)
		}
	}

	result.Segments = segments
	result.Text = JoinSegments(segments)
	if len(segments) == 0 {
		logger.Debug("inference returned no segments", "path", string(result.Path))
	} else {
		logger.Debug("inference returned segments", "segments", len(segments), "path", string(result.Path))
	}
	return result, nil
}

func (iv *Invoker) attempt(ctx context.Context, path Path, req Request) ([]Segment, error) {
	backend, err := iv.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", path, err)
	}
	if closer, ok := backend.(io.Closer); ok {
		defer func() {
			if cerr := closer.Close(); cerr != nil {
				iv.logger().Debug("close backend", "path", string(path), "error", cerr.Error())
			}
		}()
	}
	return backend.Recognize(ctx, req)
}

func (iv *Invoker) threads() int {
	if iv.Threads > 0 {
		return iv.Threads
	}
	return runtime.NumCPU()
}

func (iv *Invoker) params() DecodeParams {
	if iv.Params == (DecodeParams{}) {
		return DefaultDecodeParams()
	}
	return iv.Params
}

func (iv *Invoker) logger() *slog.Logger {
	if iv.Logger != nil {
		return iv.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func languageLabel(lang string) string {
	if lang == "" {
		return "default-" + DefaultLanguage
	}
	return lang
}
