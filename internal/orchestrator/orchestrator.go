// Package orchestrator owns the daemon's session state. One goroutine runs
// the event loop; workers report back through typed events and never touch
// loop state directly.
package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/indicator"
	"github.com/rbright/dictate/internal/metrics"
	"github.com/rbright/dictate/internal/scheduler"
	"github.com/rbright/dictate/internal/watcher"
)

// DefaultTick bounds how long buffered events wait when no wake arrives.
const DefaultTick = 50 * time.Millisecond

// idleRefreshInterval spaces background device list refreshes while idle.
const idleRefreshInterval = 30 * time.Second

// Options carries the loop's static settings.
type Options struct {
	ModelName     string
	RecordingsDir string
	Extensions    []string
	SelectedMic   string
	FallbackMic   string
	Tick          time.Duration
	Now           func() time.Time
}

// Deps are the collaborators the loop drives.
type Deps struct {
	Recorder Recorder
	Encoder  Encoder
	// Model is nil when the backend needs no local model.
	Model          ModelLoader
	NewTranscriber func(modelPath string) Transcriber
	Committer      Committer
	Display        Display
	Devices        DeviceLister
	// SaveMic persists a microphone selection. Nil keeps it in memory only.
	SaveMic func(selected string) error
	Logger  *slog.Logger
}

// Status is the published snapshot of derived application state.
type Status struct {
	State      string
	Progress   int
	Queued     int
	Mic        string
	Devices    []string
	ModelReady bool
	ModelError string
}

// Orchestrator is the single owner of scheduler, capture, and in-flight
// state. All fields below the channels are touched only by Run.
type Orchestrator struct {
	opts   Options
	deps   Deps
	logger *slog.Logger

	wake    chan struct{}
	hotkeys *mailbox[hotkeyPress]
	trays   *mailbox[trayClick]
	menus   *mailbox[menuAction]
	events  *mailbox[Event]
	done    chan struct{}
	status  atomic.Pointer[Status]
	workers sync.WaitGroup

	queue         *scheduler.Queue
	inflight      map[string]struct{}
	capture       Capture
	finalizing    bool
	downloading   bool
	modelProgress int
	modelErr      error
	transcriber   Transcriber
	progress      int
	mic           string
	devices       []audio.Device
	quitting      bool
	lastIdleCheck time.Time
	published     Status
	listing       bool
}

// New builds an orchestrator. Run must be called to start it.
func New(opts Options, deps Deps) *Orchestrator {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".m4a"}
	}
	if deps.Display == nil {
		deps.Display = noopDisplay{}
	}
	if deps.Committer == nil {
		deps.Committer = CommitFunc(func(context.Context, string) error { return nil })
	}
	if deps.Recorder == nil {
		deps.Recorder = PulseRecorder{}
	}
	if deps.Encoder == nil {
		deps.Encoder = FFmpegEncoder{}
	}
	if deps.Devices == nil {
		deps.Devices = DeviceListFunc(audio.ListDevices)
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	wake := make(chan struct{}, 1)
	o := &Orchestrator{
		opts:     opts,
		deps:     deps,
		logger:   logger,
		wake:     wake,
		hotkeys:  newMailbox[hotkeyPress](wake),
		trays:    newMailbox[trayClick](wake),
		menus:    newMailbox[menuAction](wake),
		events:   newMailbox[Event](wake),
		done:     make(chan struct{}),
		queue:    scheduler.New(),
		inflight: make(map[string]struct{}),
		progress: -1,
		mic:      opts.SelectedMic,
	}
	o.status.Store(&Status{State: indicator.StateIdle, Progress: -1, Mic: o.mic})
	return o
}

// Post delivers a worker event to the loop. Safe from any goroutine.
func (o *Orchestrator) Post(ev Event) {
	o.events.push(ev)
}

// Detected adapts watcher output into FileDetected events.
func (o *Orchestrator) Detected(d watcher.Detection) {
	o.Post(FileDetected{Detection: d})
}

// Failed adapts background failures into WorkerError events.
func (o *Orchestrator) Failed(err error) {
	o.Post(WorkerError{Err: err})
}

// Snapshot returns the latest published status.
func (o *Orchestrator) Snapshot() Status {
	return *o.status.Load()
}

// Done is closed once Run has returned.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// Wait blocks until every worker goroutine has returned.
func (o *Orchestrator) Wait() {
	o.workers.Wait()
}

// Run starts the model worker and processes events until ctx is done or a
// quit action arrives.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.done)

	o.startModel(ctx)
	o.publish()

	ticker := time.NewTicker(o.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return nil
		case <-ticker.C:
		case <-o.wake:
		}

		o.step(ctx)
		if o.quitting {
			o.shutdown()
			return nil
		}
	}
}

// step drains every source once in fixed priority order.
func (o *Orchestrator) step(ctx context.Context) {
	for _, press := range o.hotkeys.drain() {
		press.reply <- o.handleHotkey(ctx)
	}
	for _, click := range o.trays.drain() {
		click.reply <- o.refreshDevices(ctx)
	}
	for _, action := range o.menus.drain() {
		action.reply <- o.handleMenu(ctx, action)
	}
	for _, ev := range o.events.drain() {
		o.handleEvent(ctx, ev)
	}
	o.refreshIdle(ctx)
	o.publish()
}

func (o *Orchestrator) shutdown() {
	if o.capture != nil {
		o.capture.Cancel()
		o.capture = nil
		o.queue.CancelHotkeySession()
	}
	o.logger.Info("orchestrator stopped", "queued_auto", o.queue.AutoQueueLen())
}

// derive maps loop state onto the displayed status, in priority order.
func (o *Orchestrator) derive() (string, int) {
	switch {
	case o.capture != nil:
		return indicator.StateRecording, -1
	case o.finalizing || o.queue.HotkeyPending():
		return indicator.StateTranscribing, o.progress
	case o.activeKind() != "":
		return indicator.StateTranscribing, o.progress
	case o.downloading:
		return indicator.StateDownloading, o.modelProgress
	default:
		return indicator.StateIdle, -1
	}
}

func (o *Orchestrator) activeKind() scheduler.Kind {
	kind, ok := o.queue.ActiveKind()
	if !ok {
		return ""
	}
	return kind
}

func (o *Orchestrator) publish() {
	state, percent := o.derive()
	queued := o.queue.AutoQueueLen()

	names := make([]string, 0, len(o.devices))
	for _, d := range o.devices {
		names = append(names, d.ID)
	}
	next := Status{
		State:      state,
		Progress:   percent,
		Queued:     queued,
		Mic:        o.mic,
		Devices:    names,
		ModelReady: o.transcriber != nil,
		ModelError: errString(o.modelErr),
	}
	o.status.Store(&next)
	metrics.AutoQueueDepth.Set(float64(queued))

	prev := o.published
	o.published = next
	if prev.State == state && prev.Progress == percent && prev.Queued == queued {
		return
	}
	o.deps.Display.ShowStatus(state, percent, queued)
}

// refreshIdle keeps the cached device list current while nothing runs.
func (o *Orchestrator) refreshIdle(ctx context.Context) {
	if state, _ := o.derive(); state != indicator.StateIdle {
		return
	}
	now := o.opts.Now()
	if !o.lastIdleCheck.IsZero() && now.Sub(o.lastIdleCheck) < idleRefreshInterval {
		return
	}
	o.lastIdleCheck = now
	o.listDevices(ctx)
}
