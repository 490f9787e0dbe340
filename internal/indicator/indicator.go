// Package indicator shows daemon status through Hyprland or desktop
// notifications and plays short audio cues.
package indicator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/rbright/dictate/internal/config"
	"github.com/rbright/dictate/internal/hypr"
)

// Status names shown by the indicator.
const (
	StateIdle         = "idle"
	StateRecording    = "recording"
	StateTranscribing = "transcribing"
	StateDownloading  = "downloading"
)

const (
	persistentTimeoutMS = 300000
	dispatchTimeout     = 400 * time.Millisecond
)

type update struct {
	state   string
	percent int
	queued  int
	errText string
	isError bool
}

// Notifier serializes notification dispatch on its own goroutine so callers
// never wait on hyprctl or DBus.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	notify  func(ctx context.Context, icon int, timeoutMS int, color string, text string) error
	dismiss func(ctx context.Context) error
	cue     func(cueKind) error

	updates chan update
	soundMu sync.Mutex

	// owned by Run
	shown string
}

// New builds a notifier for the configured backend.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	n := &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: messagesFor(cfg),
		cue:      emitCue,
		updates:  make(chan update, 16),
	}
	if cfg.Backend == "desktop" {
		appName := cfg.DesktopAppName
		n.notify = func(_ context.Context, _ int, _ int, _ string, text string) error {
			return beeep.Notify(appName, text, "")
		}
		n.dismiss = func(context.Context) error { return nil }
	} else {
		n.notify = hypr.Notify
		n.dismiss = hypr.DismissNotify
	}
	return n
}

// Run dispatches queued updates until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if n.shown != "" && n.shown != StateIdle {
				cleanup, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
				n.run(cleanup, n.dismiss)
				cancel()
			}
			return
		case u := <-n.updates:
			n.apply(ctx, u)
		}
	}
}

// ShowStatus queues a status change. Repeated states are collapsed.
func (n *Notifier) ShowStatus(state string, percent int, queued int) {
	n.enqueue(update{state: state, percent: percent, queued: queued})
}

// ShowError queues an error message; empty text uses the configured default.
func (n *Notifier) ShowError(text string) {
	n.enqueue(update{isError: true, errText: text})
	n.playCue(cueError)
}

// CueStart plays the recording-start cue.
func (n *Notifier) CueStart() { n.playCue(cueStart) }

// CueStop plays the recording-stop cue.
func (n *Notifier) CueStop() { n.playCue(cueStop) }

// CueComplete plays the transcript-ready cue.
func (n *Notifier) CueComplete() { n.playCue(cueComplete) }

// CueCancel plays the cancel cue.
func (n *Notifier) CueCancel() { n.playCue(cueCancel) }

func (n *Notifier) enqueue(u update) {
	if !n.cfg.Enable {
		return
	}
	select {
	case n.updates <- u:
	default:
		n.log("indicator queue full; dropping update", nil)
	}
}

func (n *Notifier) apply(ctx context.Context, u update) {
	if u.isError {
		text := u.errText
		if text == "" {
			text = n.messages.errorText
		}
		timeout := n.cfg.ErrorTimeoutMS
		if timeout <= 0 {
			timeout = 1200
		}
		if n.shown != "" && n.shown != StateIdle {
			n.run(ctx, n.dismiss)
		}
		// The error stays up until its timeout; idle must not dismiss it.
		n.shown = StateIdle
		n.run(ctx, func(ctx context.Context) error {
			return n.notify(ctx, 3, timeout, "rgb(f38ba8)", text)
		})
		return
	}

	if u.state == n.shown {
		return
	}
	n.shown = u.state

	switch u.state {
	case StateRecording:
		n.run(ctx, func(ctx context.Context) error {
			return n.notify(ctx, 1, persistentTimeoutMS, hypr.DefaultColor, n.messages.recording)
		})
	case StateTranscribing:
		text := withProgress(n.messages.processing, u.percent, u.queued)
		n.run(ctx, func(ctx context.Context) error {
			return n.notify(ctx, 1, persistentTimeoutMS, "rgb(cba6f7)", text)
		})
	case StateDownloading:
		text := withProgress(n.messages.downloading, u.percent, 0)
		n.run(ctx, func(ctx context.Context) error {
			return n.notify(ctx, 1, persistentTimeoutMS, "rgb(f9e2af)", text)
		})
	default:
		n.run(ctx, n.dismiss)
	}
}

// run executes one dispatch with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := n.cue(kind); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil {
		return
	}
	if err == nil {
		n.logger.Debug(message)
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
