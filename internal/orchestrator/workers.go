package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/dictate/internal/scheduler"
	"github.com/rbright/dictate/internal/storage"
)

func newJobID() string {
	return uuid.NewString()
}

// spawn runs fn on a tracked worker goroutine. A panic becomes a
// WorkerError instead of taking the daemon down.
func (o *Orchestrator) spawn(name string, fn func()) {
	o.workers.Add(1)
	go func() {
		defer o.workers.Done()
		defer func() {
			if r := recover(); r != nil {
				o.logger.Error("worker panic", "worker", name, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
				o.Post(WorkerError{Err: fmt.Errorf("%s panicked: %v", name, r)})
			}
		}()
		fn()
	}()
}

func (o *Orchestrator) startModel(ctx context.Context) {
	if o.deps.Model == nil {
		o.Post(ModelReady{})
		return
	}
	o.downloading = true
	o.modelProgress = -1
	o.modelErr = nil

	loader := o.deps.Model
	name := o.opts.ModelName
	o.spawn("model download", func() {
		o.logger.Info("ensuring model", "model", name)
		path, err := loader.Ensure(ctx, name, func(pct int) {
			o.Post(ModelProgress{Percent: pct})
		})
		if err != nil {
			o.Post(ModelError{Err: err})
			return
		}
		o.Post(ModelReady{Path: path})
	})
}

func (o *Orchestrator) listDevices(ctx context.Context) {
	if o.listing {
		return
	}
	o.listing = true
	lister := o.deps.Devices
	o.spawn("list devices", func() {
		devices, err := lister.ListDevices(ctx)
		o.Post(DevicesListed{Devices: devices, Err: err})
	})
}

func (o *Orchestrator) finalizeRecording(ctx context.Context, capture Capture, dir string, now time.Time) {
	job, err := func() (scheduler.HotkeyJob, error) {
		rec, err := capture.Stop()
		if err != nil {
			return scheduler.HotkeyJob{}, err
		}
		audioPath, textPath, err := storage.RecordingPaths(dir, now)
		if err != nil {
			return scheduler.HotkeyJob{}, err
		}
		if err := o.deps.Encoder.Encode(ctx, rec, audioPath); err != nil {
			return scheduler.HotkeyJob{}, fmt.Errorf("encode recording: %w", err)
		}
		o.logger.Info("recording saved", "path", audioPath, "duration", rec.Duration())
		return scheduler.HotkeyJob{AudioPath: audioPath, TextPath: textPath}, nil
	}()
	if err != nil {
		o.Post(RecordingError{Err: err})
		return
	}
	o.Post(RecordingReady{Job: job})
}

// runJob executes one scheduled job and always reports exactly one
// completion event for it, even on panic.
func (o *Orchestrator) runJob(ctx context.Context, id string, job scheduler.Job, transcriber Transcriber) {
	started := time.Now()
	reported := false
	fail := func(err error) {
		reported = true
		elapsed := time.Since(started)
		if job.Hotkey != nil {
			o.Post(HotkeyFailed{JobID: id, Err: err, Elapsed: elapsed})
			return
		}
		o.Post(AutoFailed{JobID: id, Input: job.Auto.InputPath, Err: err, Elapsed: elapsed})
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("transcription panic", "job_id", id, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			if !reported {
				fail(fmt.Errorf("transcription panicked: %v", r))
			}
		}
	}()

	progress := func(pct int) {
		o.Post(TranscriptionProgress{Percent: pct})
	}

	switch {
	case job.Hotkey != nil:
		res, err := transcriber.TranscribeFile(ctx, job.Hotkey.AudioPath, progress)
		if err != nil {
			fail(err)
			return
		}
		if err := storage.WriteTranscript(job.Hotkey.TextPath, res.Text); err != nil {
			fail(err)
			return
		}
		reported = true
		o.Post(HotkeyDone{JobID: id, Text: res.Text, Silent: res.Silent, Elapsed: time.Since(started)})
	case job.Auto != nil:
		res, err := transcriber.TranscribeFile(ctx, job.Auto.InputPath, progress)
		if err != nil {
			fail(err)
			return
		}
		if err := storage.WriteTranscript(job.Auto.OutputPath, res.Text); err != nil {
			fail(err)
			return
		}
		if err := storage.MoveProcessed(job.Auto.InputPath, job.Auto.ProcessedPath); err != nil {
			fail(err)
			return
		}
		reported = true
		o.Post(AutoDone{JobID: id, Input: job.Auto.InputPath, Silent: res.Silent, Elapsed: time.Since(started)})
	default:
		reported = true
		o.Post(WorkerError{Err: fmt.Errorf("job %s has no payload", id)})
	}
}
