package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/rbright/dictate/internal/cli"
	"github.com/rbright/dictate/internal/config"
	"github.com/rbright/dictate/internal/inference"
	"github.com/rbright/dictate/internal/model"
	"github.com/rbright/dictate/internal/remoteasr"
)

// commandASRServer serves the local whisper backend to remote daemons.
func (r Runner) commandASRServer(ctx context.Context, cfg config.Config, listen string, logger *slog.Logger) int {
	if listen == "" {
		listen = cli.DefaultASRListen
	}

	download := r.progress("model " + cfg.Model)
	store := model.Store{Dir: cfg.ModelsDir, Logger: logger}
	modelPath, err := store.Ensure(ctx, cfg.Model, download.set)
	download.finish()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	lis, err := net.Listen("tcp", listen)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: listen %s: %v\n", listen, err)
		return 1
	}

	whisper := &inference.WhisperCLI{
		Binary: cfg.Inference.WhisperCLI,
		Model:  modelPath,
		Logger: logger,
	}
	server := &remoteasr.Server{Open: whisper.Factory(), Logger: logger}

	fmt.Fprintf(r.Stderr, "serving %s on %s\n", cfg.Model, lis.Addr())
	if err := server.Serve(ctx, lis); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
