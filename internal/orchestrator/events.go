package orchestrator

import (
	"time"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/ipc"
	"github.com/rbright/dictate/internal/scheduler"
	"github.com/rbright/dictate/internal/watcher"
)

// Event is a typed result posted by a worker goroutine.
type Event interface {
	event()
}

// ModelReady reports the model is available at Path. Path is empty for
// backends that need no local model.
type ModelReady struct{ Path string }

// ModelProgress reports download progress in whole percent.
type ModelProgress struct{ Percent int }

// ModelError reports a failed model download.
type ModelError struct{ Err error }

// RecordingReady carries a finalized hotkey recording.
type RecordingReady struct{ Job scheduler.HotkeyJob }

// RecordingError reports a capture or encode failure.
type RecordingError struct{ Err error }

// FileDetected carries a settled file from the auto-ingest watcher.
type FileDetected struct{ Detection watcher.Detection }

// TranscriptionProgress reports inference progress of the active job.
type TranscriptionProgress struct{ Percent int }

// HotkeyDone reports a finished hotkey job.
type HotkeyDone struct {
	JobID   string
	Text    string
	Silent  bool
	Elapsed time.Duration
}

// HotkeyFailed reports a failed hotkey job.
type HotkeyFailed struct {
	JobID   string
	Err     error
	Elapsed time.Duration
}

// AutoDone reports a transcribed and moved auto-ingest file.
type AutoDone struct {
	JobID   string
	Input   string
	Silent  bool
	Elapsed time.Duration
}

// AutoFailed reports a failed auto-ingest job. The input stays in place.
type AutoFailed struct {
	JobID   string
	Input   string
	Err     error
	Elapsed time.Duration
}

// DevicesListed carries a refreshed capture device list.
type DevicesListed struct {
	Devices []audio.Device
	Err     error
}

// WorkerError is a non-fatal failure outside any job, such as a watcher
// that gave up on its directory.
type WorkerError struct{ Err error }

func (ModelReady) event()            {}
func (ModelProgress) event()         {}
func (ModelError) event()            {}
func (RecordingReady) event()        {}
func (RecordingError) event()        {}
func (FileDetected) event()          {}
func (TranscriptionProgress) event() {}
func (HotkeyDone) event()            {}
func (HotkeyFailed) event()          {}
func (AutoDone) event()              {}
func (AutoFailed) event()            {}
func (DevicesListed) event()         {}
func (WorkerError) event()           {}

type menuKind int

const (
	menuToggle menuKind = iota + 1
	menuStop
	menuCancel
	menuSelectMic
	menuQuit
)

type menuAction struct {
	kind  menuKind
	mic   string
	reply chan ipc.Response
}

type hotkeyPress struct {
	reply chan ipc.Response
}

type trayClick struct {
	reply chan ipc.Response
}
