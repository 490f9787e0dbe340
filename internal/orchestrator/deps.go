package orchestrator

import (
	"context"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/pipeline"
)

// Capture is one in-progress recording.
type Capture interface {
	Stop() (audio.Recorded, error)
	Cancel()
}

// Recorder opens a capture on the selected microphone, or the fallback.
type Recorder interface {
	Start(ctx context.Context, selected string, fallback string) (Capture, error)
}

// Encoder writes a finished recording to path.
type Encoder interface {
	Encode(ctx context.Context, rec audio.Recorded, path string) error
}

// ModelLoader makes the named model available locally. model.Store
// satisfies it.
type ModelLoader interface {
	Ensure(ctx context.Context, name string, progress func(int)) (string, error)
}

// Transcriber turns one audio file into text. *pipeline.Transcriber
// satisfies it.
type Transcriber interface {
	TranscribeFile(ctx context.Context, path string, progress func(int)) (pipeline.Result, error)
}

// Committer hands a finished hotkey transcript to the user.
type Committer interface {
	Commit(ctx context.Context, transcript string) error
}

// CommitFunc adapts a function to the Committer interface.
type CommitFunc func(context.Context, string) error

func (f CommitFunc) Commit(ctx context.Context, transcript string) error {
	return f(ctx, transcript)
}

// DeviceLister enumerates capture devices.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]audio.Device, error)
}

// DeviceListFunc adapts a function to the DeviceLister interface.
type DeviceListFunc func(context.Context) ([]audio.Device, error)

func (f DeviceListFunc) ListDevices(ctx context.Context) ([]audio.Device, error) {
	return f(ctx)
}

// Display is the status surface. *indicator.Notifier satisfies it.
type Display interface {
	ShowStatus(state string, percent int, queued int)
	ShowError(text string)
	CueStart()
	CueStop()
	CueComplete()
	CueCancel()
}

// noopDisplay preserves loop flow when no display is wired.
type noopDisplay struct{}

func (noopDisplay) ShowStatus(string, int, int) {}
func (noopDisplay) ShowError(string)            {}
func (noopDisplay) CueStart()                   {}
func (noopDisplay) CueStop()                    {}
func (noopDisplay) CueComplete()                {}
func (noopDisplay) CueCancel()                  {}

// PulseRecorder captures from PulseAudio.
type PulseRecorder struct{}

// Start resolves the capture source and begins recording on it.
func (PulseRecorder) Start(ctx context.Context, selected string, fallback string) (Capture, error) {
	selection, err := audio.SelectDevice(ctx, selected, fallback)
	if err != nil {
		return nil, err
	}
	rec, err := audio.StartRecording(ctx, selection.Device)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FFmpegEncoder encodes recordings to AAC with the ffmpeg binary.
type FFmpegEncoder struct {
	Binary string
}

// Encode writes rec to path as m4a.
func (e FFmpegEncoder) Encode(ctx context.Context, rec audio.Recorded, path string) error {
	bin := e.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	return audio.EncodeM4A(ctx, bin, rec, path)
}
