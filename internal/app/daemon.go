package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rbright/dictate/internal/config"
	"github.com/rbright/dictate/internal/indicator"
	"github.com/rbright/dictate/internal/inference"
	"github.com/rbright/dictate/internal/ipc"
	"github.com/rbright/dictate/internal/metrics"
	"github.com/rbright/dictate/internal/model"
	"github.com/rbright/dictate/internal/orchestrator"
	"github.com/rbright/dictate/internal/output"
	"github.com/rbright/dictate/internal/pipeline"
	"github.com/rbright/dictate/internal/preprocess"
	"github.com/rbright/dictate/internal/remoteasr"
	"github.com/rbright/dictate/internal/watcher"
)

// commandRun owns the runtime socket and drives the daemon until quit or a
// termination signal.
func (r Runner) commandRun(ctx context.Context, loaded config.Loaded, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: dictate daemon already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	cfg := loaded.Config
	display := indicator.New(cfg.Indicator, logger)
	backend := newBackend(cfg, logger)
	defer backend.Close()

	var saveMu sync.Mutex
	orch := orchestrator.New(orchestrator.Options{
		ModelName:     cfg.Model,
		RecordingsDir: cfg.RecordingsDir,
		Extensions:    cfg.AutoTranscribe.Extensions,
		SelectedMic:   cfg.SelectedMic,
		FallbackMic:   cfg.FallbackMic,
	}, orchestrator.Deps{
		Encoder:        orchestrator.FFmpegEncoder{Binary: "ffmpeg"},
		Model:          backend.Loader(),
		NewTranscriber: backend.NewTranscriber,
		Committer:      output.NewCommitter(cfg.Clipboard.Argv, logger),
		Display:        display,
		SaveMic: func(selected string) error {
			saveMu.Lock()
			defer saveMu.Unlock()
			latest, err := config.Load(loaded.Path)
			if err != nil {
				return err
			}
			next := latest.Config
			next.SelectedMic = selected
			return config.Save(latest.Path, next)
		},
		Logger: logger,
	})

	watches := make([]watcher.Watch, 0, len(cfg.AutoTranscribe.Watches))
	for _, w := range cfg.AutoTranscribe.Watches {
		watches = append(watches, watcher.Watch(w))
	}
	watch := watcher.New(watcher.Config{
		Watches:    watches,
		Extensions: cfg.AutoTranscribe.Extensions,
		Logger:     logger,
	})

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		display.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		defer cancel()
		return orch.Run(groupCtx)
	})
	group.Go(func() error {
		if err := ipc.Serve(groupCtx, listener, orch); err != nil {
			return fmt.Errorf("ipc server failed: %w", err)
		}
		return nil
	})
	if len(watches) > 0 {
		group.Go(func() error {
			watch.Run(groupCtx, orch.Detected, orch.Failed)
			return nil
		})
	}
	if cfg.Metrics.Listen != "" {
		group.Go(func() error {
			if err := metrics.Serve(groupCtx, cfg.Metrics.Listen); err != nil {
				logger.Error("metrics server failed", "listen", cfg.Metrics.Listen, "error", err.Error())
			}
			return nil
		})
	}

	logger.Info("daemon started",
		"socket", socketPath,
		"backend", cfg.Inference.Backend,
		"model", cfg.Model,
		"watches", len(watches),
	)

	err = group.Wait()
	orch.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	logger.Info("daemon stopped")
	return 0
}

// backend builds per-model transcribers for the configured inference
// backend.
type backend struct {
	cfg    config.Config
	logger *slog.Logger
	store  model.Store
	remote *remoteModel
}

func newBackend(cfg config.Config, logger *slog.Logger) *backend {
	b := &backend{
		cfg:    cfg,
		logger: logger,
		store:  model.Store{Dir: cfg.ModelsDir, Logger: logger},
	}
	if cfg.Inference.Backend == config.BackendGRPC {
		b.remote = &remoteModel{endpoint: cfg.Inference.GRPCEndpoint}
	}
	return b
}

// Loader is the readiness step the daemon runs before accepting jobs.
func (b *backend) Loader() orchestrator.ModelLoader {
	if b.remote != nil {
		return b.remote
	}
	return b.store
}

func (b *backend) NewTranscriber(modelPath string) orchestrator.Transcriber {
	var open inference.Factory
	if b.remote != nil {
		open = b.remote.factory()
	} else {
		open = (&inference.WhisperCLI{
			Binary: b.cfg.Inference.WhisperCLI,
			Model:  modelPath,
			Logger: b.logger,
		}).Factory()
	}
	return newFileTranscriber(b.cfg, open, b.logger)
}

func (b *backend) Close() {
	if b.remote != nil {
		b.remote.close()
	}
}

func newFileTranscriber(cfg config.Config, open inference.Factory, logger *slog.Logger) *pipeline.Transcriber {
	return &pipeline.Transcriber{
		Decoder: preprocess.Decoder{},
		Recognizer: &inference.Invoker{
			Open:    open,
			Threads: cfg.Inference.Threads,
			Logger:  logger,
		},
		Prompt:    config.VocabularyPrompt(cfg.Vocabulary),
		Language:  cfg.Language,
		DumpAudio: cfg.Debug.AudioDump,
		Logger:    logger,
	}
}

// remoteModel treats reaching the recognition server as the model being
// ready. The connection is kept for the life of the daemon.
type remoteModel struct {
	endpoint string

	mu     sync.Mutex
	client *remoteasr.Client
}

func (m *remoteModel) Ensure(ctx context.Context, name string, progress func(int)) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client == nil {
		client, err := remoteasr.Dial(ctx, m.endpoint, remoteasr.DefaultDialTimeout)
		if err != nil {
			return "", fmt.Errorf("connect %s for model %s: %w", m.endpoint, name, err)
		}
		m.client = client
	}
	if progress != nil {
		progress(100)
	}
	return m.endpoint, nil
}

func (m *remoteModel) factory() inference.Factory {
	return func(ctx context.Context, path inference.Path) (inference.Backend, error) {
		m.mu.Lock()
		client := m.client
		m.mu.Unlock()
		if client == nil {
			return nil, inference.ErrNoBackend
		}
		return client.Factory()(ctx, path)
	}
}

func (m *remoteModel) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		_ = m.client.Close()
		m.client = nil
	}
}
