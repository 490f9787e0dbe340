// Package watcher detects settled audio files in configured input directories.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Default stability polling.
const (
	DefaultPollInterval = 200 * time.Millisecond
	DefaultPolls        = 3
)

// Watch pairs an input directory with its destinations.
type Watch struct {
	InputDir     string
	OutputDir    string
	ProcessedDir string
}

// Detection is a settled input file ready to become an auto job.
type Detection struct {
	InputPath    string
	OutputDir    string
	ProcessedDir string
}

// Config controls detection.
type Config struct {
	Watches      []Watch
	Extensions   []string
	PollInterval time.Duration
	Polls        int
	Logger       *slog.Logger
}

// Watcher runs one goroutine per input directory.
type Watcher struct {
	cfg    Config
	sizeOf func(string) (int64, error)
}

// New builds a watcher. Empty extensions default to .m4a.
func New(cfg Config) *Watcher {
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = []string{".m4a"}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Polls <= 1 {
		cfg.Polls = DefaultPolls
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Watcher{cfg: cfg, sizeOf: fileSize}
}

// Run watches every directory until ctx is done. Each settled file is passed
// to detected. A directory that fails is abandoned and reported to failed
// while the others keep running.
func (w *Watcher) Run(ctx context.Context, detected func(Detection), failed func(error)) {
	var wg sync.WaitGroup
	for _, watch := range w.cfg.Watches {
		wg.Add(1)
		go func(watch Watch) {
			defer wg.Done()
			if err := w.watchDir(ctx, watch, detected); err != nil && ctx.Err() == nil {
				failed(fmt.Errorf("auto-transcribe watcher %s: %w", watch.InputDir, err))
			}
		}(watch)
	}
	wg.Wait()
}

func (w *Watcher) watchDir(ctx context.Context, watch Watch, detected func(Detection)) error {
	for _, dir := range []string{watch.InputDir, watch.OutputDir, watch.ProcessedDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("init watcher: %w", err)
	}
	defer fsw.Close()
	if err := fsw.Add(watch.InputDir); err != nil {
		return fmt.Errorf("watch %s: %w", watch.InputDir, err)
	}

	if err := w.scanExisting(ctx, watch, detected); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return errors.New("event stream closed")
			}
			// Rename carries the old name; the moved file arrives as Create.
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			w.consider(ctx, event.Name, watch, detected)
		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("error stream closed")
			}
			return err
		}
	}
}

func (w *Watcher) scanExisting(ctx context.Context, watch Watch, detected func(Detection)) error {
	entries, err := os.ReadDir(watch.InputDir)
	if err != nil {
		return fmt.Errorf("read dir %s: %w", watch.InputDir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.consider(ctx, filepath.Join(watch.InputDir, entry.Name()), watch, detected)
	}
	return nil
}

func (w *Watcher) consider(ctx context.Context, path string, watch Watch, detected func(Detection)) {
	if !HasExtension(path, w.cfg.Extensions) {
		return
	}
	if !WaitForStable(ctx, path, w.cfg.PollInterval, w.cfg.Polls, w.sizeOf) {
		w.cfg.Logger.Debug("auto file not settled", "path", path)
		return
	}
	detected(Detection{
		InputPath:    path,
		OutputDir:    watch.OutputDir,
		ProcessedDir: watch.ProcessedDir,
	})
}

// HasExtension matches path against extensions case-insensitively. Entries
// may be given with or without the leading dot.
func HasExtension(path string, extensions []string) bool {
	ext := filepath.Ext(path)
	if ext == "" {
		return false
	}
	for _, want := range extensions {
		want = strings.TrimSpace(want)
		if want == "" {
			continue
		}
		if !strings.HasPrefix(want, ".") {
			want = "." + want
		}
		if strings.EqualFold(ext, want) {
			return true
		}
	}
	return false
}

// WaitForStable samples the size of path polls times, interval apart, and
// reports whether every sample matched. Any stat error means not stable.
func WaitForStable(ctx context.Context, path string, interval time.Duration, polls int, sizeOf func(string) (int64, error)) bool {
	if sizeOf == nil {
		sizeOf = fileSize
	}
	first, err := sizeOf(path)
	if err != nil {
		return false
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for i := 1; i < polls; i++ {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
		}
		size, err := sizeOf(path)
		if err != nil || size != first {
			return false
		}
		timer.Reset(interval)
	}
	return true
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}
