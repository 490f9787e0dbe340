package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/rbright/dictate/internal/cli"
	"github.com/rbright/dictate/internal/config"
	"github.com/rbright/dictate/internal/inference"
	"github.com/rbright/dictate/internal/model"
	"github.com/rbright/dictate/internal/storage"
)

// commandTranscribe runs one file through the same pipeline the daemon uses
// and writes the transcript next to it.
func (r Runner) commandTranscribe(ctx context.Context, cfg config.Config, parsed cli.Parsed, logger *slog.Logger) int {
	if parsed.Model != "" {
		if _, err := model.Lookup(parsed.Model); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 2
		}
		cfg.Model = parsed.Model
	}
	if parsed.Language != "" {
		if _, err := inference.NormalizeLanguage(parsed.Language); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 2
		}
		cfg.Language = parsed.Language
	}

	input := config.ExpandHome(parsed.Input)
	if _, err := os.Stat(input); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	target, err := storage.TranscriptPath(input)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	backend := newBackend(cfg, logger)
	defer backend.Close()

	download := r.progress("model " + cfg.Model)
	modelPath, err := backend.Loader().Ensure(ctx, cfg.Model, download.set)
	download.finish()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	inferring := r.progress("transcribing")
	result, err := backend.NewTranscriber(modelPath).TranscribeFile(ctx, input, inferring.set)
	inferring.finish()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if err := storage.WriteTranscript(target, result.Text); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	logger.Info("file transcribed",
		"input", input,
		"output", target,
		"silent", result.Silent,
		"elapsed_ms", result.Elapsed.Milliseconds(),
	)

	if text := strings.TrimSpace(result.Text); text != "" {
		fmt.Fprintln(r.Stdout, text)
	} else {
		fmt.Fprintln(r.Stderr, "no speech detected")
	}
	fmt.Fprintf(r.Stderr, "wrote %s\n", target)
	return 0
}

// progressView draws a percentage bar on interactive terminals and does
// nothing otherwise.
type progressView struct {
	bar *progressbar.ProgressBar
}

func (r Runner) progress(label string) progressView {
	if !isTerminal(r.Stderr) {
		return progressView{}
	}
	return progressView{bar: progressbar.NewOptions(100,
		progressbar.OptionSetWriter(r.Stderr),
		progressbar.OptionSetDescription(label),
		progressbar.OptionClearOnFinish(),
	)}
}

func (p progressView) set(percent int) {
	if p.bar != nil {
		_ = p.bar.Set(percent)
	}
}

func (p progressView) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
