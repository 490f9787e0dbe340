// Package app dispatches parsed commands to the daemon, its IPC clients, and
// one-shot tools.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/rbright/dictate/internal/cli"
	"github.com/rbright/dictate/internal/config"
	"github.com/rbright/dictate/internal/doctor"
	"github.com/rbright/dictate/internal/ipc"
	"github.com/rbright/dictate/internal/logging"
	"github.com/rbright/dictate/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("dictate"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("dictate"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	logRuntime, err := logging.New(cfgLoaded.Config.Log.Level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	if cfgLoaded.Exists || parsed.Command == cli.CommandDoctor {
		for _, w := range cfgLoaded.Warnings {
			msg := w.Message
			if w.Line > 0 {
				msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
			}
			fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
			logger.Warn("config warning", "line", w.Line, "message", w.Message)
		}
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded, logger)
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandModels:
		return r.commandModels(cfgLoaded.Config)
	case cli.CommandTranscribe:
		return r.commandTranscribe(ctx, cfgLoaded.Config, parsed, logger)
	case cli.CommandASRServer:
		return r.commandASRServer(ctx, cfgLoaded.Config, parsed.Listen, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandSelectMic:
		return r.commandSelectMic(ctx, cfgLoaded, parsed.Mic)
	case cli.CommandToggle:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandToggle})
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandStop})
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandCancel})
	case cli.CommandRefreshDevices:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandRefreshDevices})
	case cli.CommandQuit:
		return r.forwardOrFail(ctx, ipc.Request{Command: ipc.CommandQuit})
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}
