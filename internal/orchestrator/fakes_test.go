package orchestrator

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/pipeline"
)

type fakeCapture struct {
	stopErr   error
	cancelled atomic.Bool
}

func (c *fakeCapture) Stop() (audio.Recorded, error) {
	if c.stopErr != nil {
		return audio.Recorded{}, c.stopErr
	}
	return audio.Recorded{Samples: []float32{0.1, -0.1}, SampleRate: 16000, Channels: 1}, nil
}

func (c *fakeCapture) Cancel() { c.cancelled.Store(true) }

type fakeRecorder struct {
	mu       sync.Mutex
	err      error
	stopErr  error
	selected []string
	captures []*fakeCapture
}

func (r *fakeRecorder) Start(_ context.Context, selected string, _ string) (Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selected = append(r.selected, selected)
	if r.err != nil {
		return nil, r.err
	}
	c := &fakeCapture{stopErr: r.stopErr}
	r.captures = append(r.captures, c)
	return c, nil
}

func (r *fakeRecorder) lastCapture() *fakeCapture {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.captures) == 0 {
		return nil
	}
	return r.captures[len(r.captures)-1]
}

func (r *fakeRecorder) lastSelected() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.selected) == 0 {
		return ""
	}
	return r.selected[len(r.selected)-1]
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(_ context.Context, _ audio.Recorded, path string) error {
	return os.WriteFile(path, []byte("m4a"), 0o644)
}

// fakeTranscriber records the paths it saw. When gate is non-nil each call
// waits for one value from it.
type fakeTranscriber struct {
	mu    sync.Mutex
	paths []string
	text  string
	fail  map[string]error
	panic bool
	gate  chan struct{}
}

func (t *fakeTranscriber) TranscribeFile(ctx context.Context, path string, progress func(int)) (pipeline.Result, error) {
	t.mu.Lock()
	t.paths = append(t.paths, path)
	shouldPanic := t.panic
	t.panic = false
	err := t.fail[path]
	t.mu.Unlock()

	if t.gate != nil {
		select {
		case <-t.gate:
		case <-ctx.Done():
			return pipeline.Result{}, ctx.Err()
		}
	}
	if shouldPanic {
		panic("backend exploded")
	}
	if err != nil {
		return pipeline.Result{}, err
	}
	if progress != nil {
		progress(50)
	}
	return pipeline.Result{Text: t.text, Silent: t.text == ""}, nil
}

func (t *fakeTranscriber) calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.paths...)
}

type fakeCommitter struct {
	mu    sync.Mutex
	texts []string
}

func (c *fakeCommitter) Commit(_ context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	return nil
}

func (c *fakeCommitter) committed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

type fakeDisplay struct {
	mu     sync.Mutex
	states []string
	errors []string
	cues   []string
}

func (d *fakeDisplay) ShowStatus(state string, _ int, _ int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.states = append(d.states, state)
}

func (d *fakeDisplay) ShowError(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors = append(d.errors, text)
}

func (d *fakeDisplay) cue(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cues = append(d.cues, name)
}

func (d *fakeDisplay) CueStart()    { d.cue("start") }
func (d *fakeDisplay) CueStop()     { d.cue("stop") }
func (d *fakeDisplay) CueComplete() { d.cue("complete") }
func (d *fakeDisplay) CueCancel()   { d.cue("cancel") }

func (d *fakeDisplay) cueList() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.cues...)
}

// fakeModel blocks in Ensure until release is closed, then returns err or a
// fixed path. Each call consumes the next error from errs.
type fakeModel struct {
	mu      sync.Mutex
	release chan struct{}
	errs    []error
	calls   int
}

func (m *fakeModel) Ensure(ctx context.Context, _ string, progress func(int)) (string, error) {
	m.mu.Lock()
	m.calls++
	var err error
	if len(m.errs) > 0 {
		err = m.errs[0]
		m.errs = m.errs[1:]
	}
	release := m.release
	m.mu.Unlock()

	progress(40)
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return "/models/ggml-small.bin", nil
}

func (m *fakeModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var errBoom = errors.New("boom")
