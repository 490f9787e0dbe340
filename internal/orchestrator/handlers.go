package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/ipc"
	"github.com/rbright/dictate/internal/metrics"
	"github.com/rbright/dictate/internal/scheduler"
	"github.com/rbright/dictate/internal/storage"
	"github.com/rbright/dictate/internal/watcher"
)

func (o *Orchestrator) handleHotkey(ctx context.Context) ipc.Response {
	if o.capture != nil {
		return o.stopRecording(ctx)
	}
	if o.downloading {
		o.logger.Info("hotkey ignored while model is downloading")
		return o.reject("model is downloading")
	}
	if o.transcriber == nil && o.modelErr != nil {
		cause := o.modelErr
		o.logger.Warn("hotkey ignored; model unavailable", "error", cause.Error())
		o.startModel(ctx)
		return o.reject(fmt.Sprintf("model unavailable (%v); retrying download", cause))
	}
	return o.startRecording(ctx)
}

func (o *Orchestrator) startRecording(ctx context.Context) ipc.Response {
	if !o.queue.BeginHotkeySession() {
		o.logger.Info("hotkey ignored while busy")
		return o.reject("busy transcribing")
	}

	capture, err := o.deps.Recorder.Start(ctx, o.mic, o.opts.FallbackMic)
	if err != nil {
		o.queue.CancelHotkeySession()
		o.logger.Error("start recording failed", "mic", o.mic, "error", err.Error())
		o.deps.Display.ShowError("Unable to start recording")
		return o.reject(fmt.Sprintf("start recording: %v", err))
	}

	o.capture = capture
	o.deps.Display.CueStart()
	o.logger.Info("recording started", "mic", o.mic)
	return o.accept("recording started")
}

// stopRecording ends capture and hands finalization to a worker; the
// session stays open until that job completes.
func (o *Orchestrator) stopRecording(ctx context.Context) ipc.Response {
	capture := o.capture
	o.capture = nil
	o.finalizing = true
	o.progress = -1
	o.deps.Display.CueStop()
	o.logger.Info("recording stopped; finalizing")

	dir := o.opts.RecordingsDir
	now := o.opts.Now()
	o.spawn("finalize recording", func() {
		o.finalizeRecording(ctx, capture, dir, now)
	})
	return o.accept("recording stopped")
}

func (o *Orchestrator) cancelRecording() ipc.Response {
	if o.capture == nil {
		return o.reject("not recording")
	}
	o.capture.Cancel()
	o.capture = nil
	o.queue.CancelHotkeySession()
	o.deps.Display.CueCancel()
	o.logger.Info("recording cancelled")
	return o.accept("recording cancelled")
}

func (o *Orchestrator) handleMenu(ctx context.Context, action menuAction) ipc.Response {
	switch action.kind {
	case menuToggle:
		return o.handleHotkey(ctx)
	case menuStop:
		if o.capture == nil {
			return o.reject("not recording")
		}
		return o.stopRecording(ctx)
	case menuCancel:
		return o.cancelRecording()
	case menuSelectMic:
		return o.selectMic(action.mic)
	case menuQuit:
		o.logger.Info("quitting")
		o.quitting = true
		return o.accept("quitting")
	default:
		return o.reject(fmt.Sprintf("unknown action %d", action.kind))
	}
}

// selectMic switches the capture source for future recordings and persists
// the choice in the background.
func (o *Orchestrator) selectMic(name string) ipc.Response {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "default"
	}
	o.mic = name
	o.logger.Info("select microphone", "mic", name)

	if save := o.deps.SaveMic; save != nil {
		o.spawn("save microphone", func() {
			if err := save(name); err != nil {
				o.Post(WorkerError{Err: fmt.Errorf("save selected_mic: %w", err)})
			}
		})
	}
	resp := o.accept(fmt.Sprintf("microphone set to %q", name))
	resp.Mic = name
	return resp
}

func (o *Orchestrator) refreshDevices(ctx context.Context) ipc.Response {
	o.listDevices(ctx)
	return o.accept("device refresh requested")
}

func (o *Orchestrator) handleEvent(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case ModelReady:
		o.logger.Info("model ready", "path", ev.Path)
		o.downloading = false
		o.modelProgress = -1
		o.modelErr = nil
		if o.deps.NewTranscriber != nil {
			o.transcriber = o.deps.NewTranscriber(ev.Path)
		}
		metrics.SetModelReady(o.transcriber != nil)
		o.attemptStart(ctx)
	case ModelProgress:
		o.modelProgress = ev.Percent
	case ModelError:
		o.logger.Error("model download failed", "error", errString(ev.Err))
		o.downloading = false
		o.modelProgress = -1
		o.modelErr = ev.Err
		o.deps.Display.ShowError("Model download failed")
	case RecordingReady:
		o.finalizing = false
		if !o.queue.EnqueueHotkey(ev.Job) {
			o.logger.Warn("hotkey recording already queued", "audio", ev.Job.AudioPath)
		}
		o.attemptStart(ctx)
	case RecordingError:
		o.finalizing = false
		o.queue.CancelHotkeySession()
		if errors.Is(ev.Err, audio.ErrNoAudio) {
			o.logger.Info("recording was empty")
		} else {
			o.logger.Error("recording failed", "error", errString(ev.Err))
		}
		o.deps.Display.CueCancel()
	case FileDetected:
		o.enqueueAuto(ctx, ev.Detection)
	case TranscriptionProgress:
		o.progress = ev.Percent
	case HotkeyDone:
		o.logger.Info("hotkey transcription done", "job_id", ev.JobID, "chars", len(ev.Text), "elapsed", ev.Elapsed)
		o.progress = -1
		o.queue.CompleteActive(scheduler.KindHotkey)
		metrics.RecordJob(string(scheduler.KindHotkey), outcome(ev.Silent), ev.Elapsed)
		o.commit(ctx, ev)
		o.attemptStart(ctx)
	case HotkeyFailed:
		o.logger.Error("hotkey transcription failed", "job_id", ev.JobID, "error", errString(ev.Err))
		o.progress = -1
		o.queue.CompleteActive(scheduler.KindHotkey)
		metrics.RecordJob(string(scheduler.KindHotkey), "failed", ev.Elapsed)
		o.deps.Display.ShowError("")
		o.attemptStart(ctx)
	case AutoDone:
		o.logger.Info("auto transcription done", "job_id", ev.JobID, "path", ev.Input, "elapsed", ev.Elapsed)
		delete(o.inflight, ev.Input)
		o.progress = -1
		o.queue.CompleteActive(scheduler.KindAuto)
		metrics.RecordJob(string(scheduler.KindAuto), outcome(ev.Silent), ev.Elapsed)
		o.attemptStart(ctx)
	case AutoFailed:
		o.logger.Error("auto transcription failed", "job_id", ev.JobID, "path", ev.Input, "error", errString(ev.Err))
		delete(o.inflight, ev.Input)
		o.progress = -1
		o.queue.CompleteActive(scheduler.KindAuto)
		metrics.RecordJob(string(scheduler.KindAuto), "failed", ev.Elapsed)
		o.attemptStart(ctx)
	case DevicesListed:
		o.listing = false
		if ev.Err != nil {
			o.logger.Warn("list devices failed", "error", ev.Err.Error())
			return
		}
		o.devices = ev.Devices
	case WorkerError:
		o.logger.Error("worker error", "error", errString(ev.Err))
	default:
		o.logger.Warn("unknown worker event", "type", fmt.Sprintf("%T", ev))
	}
}

// enqueueAuto turns a detection into a queued job unless the file is
// already in flight.
func (o *Orchestrator) enqueueAuto(ctx context.Context, d watcher.Detection) {
	if !watcher.HasExtension(d.InputPath, o.opts.Extensions) {
		return
	}
	if _, ok := o.inflight[d.InputPath]; ok {
		o.logger.Debug("auto file already in flight", "path", d.InputPath)
		return
	}
	output, err := storage.TranscriptPathIn(d.InputPath, d.OutputDir)
	if err != nil {
		o.logger.Error("failed to enqueue auto transcription", "path", d.InputPath, "error", err.Error())
		return
	}
	processed, err := storage.ProcessedPath(d.InputPath, d.ProcessedDir)
	if err != nil {
		o.logger.Error("failed to enqueue auto transcription", "path", d.InputPath, "error", err.Error())
		return
	}

	o.inflight[d.InputPath] = struct{}{}
	o.queue.EnqueueAuto(scheduler.AutoJob{
		InputPath:     d.InputPath,
		OutputPath:    output,
		ProcessedPath: processed,
	})
	o.logger.Info("auto file queued", "path", d.InputPath, "queued", o.queue.AutoQueueLen())
	o.attemptStart(ctx)
}

// attemptStart dispatches the next runnable job, if any. It is safe to call
// after any event that might have unblocked the queue.
func (o *Orchestrator) attemptStart(ctx context.Context) {
	if o.transcriber == nil {
		return
	}
	job, ok := o.queue.NextJob()
	if !ok {
		return
	}

	id := newJobID()
	logger := o.logger.With("job_id", id, "kind", string(job.Kind()))
	if job.Auto != nil {
		total := o.queue.AutoQueueLen() + 1
		logger.Info(fmt.Sprintf("auto transcription: processing 1 of %d", total), "path", job.Auto.InputPath)
	} else {
		logger.Info("hotkey transcription started", "audio", job.Hotkey.AudioPath)
	}
	o.progress = -1

	transcriber := o.transcriber
	o.spawn("transcription", func() {
		o.runJob(ctx, id, job, transcriber)
	})
}

func (o *Orchestrator) commit(ctx context.Context, ev HotkeyDone) {
	if strings.TrimSpace(ev.Text) == "" {
		o.deps.Display.ShowError("No speech detected")
		return
	}
	committer := o.deps.Committer
	display := o.deps.Display
	text := ev.Text
	o.spawn("commit transcript", func() {
		if err := committer.Commit(ctx, text); err != nil {
			display.ShowError("Clipboard update failed")
			o.Post(WorkerError{Err: err})
			return
		}
		display.CueComplete()
	})
}

func (o *Orchestrator) accept(message string) ipc.Response {
	state, _ := o.derive()
	return ipc.Response{OK: true, State: state, Message: message}
}

func (o *Orchestrator) reject(reason string) ipc.Response {
	state, _ := o.derive()
	return ipc.Response{OK: false, State: state, Error: reason}
}

func outcome(silent bool) string {
	if silent {
		return "silent"
	}
	return "done"
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
