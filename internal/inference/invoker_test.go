package inference

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type attemptResult struct {
	segments []Segment
	err      error
	progress []int
}

type fakeBackends struct {
	mu       sync.Mutex
	results  map[Path]attemptResult
	calls    []Path
	requests []Request
	closed   atomic.Int32
	opens    atomic.Int32
}

type fakeBackend struct {
	owner *fakeBackends
	path  Path
}

func (f *fakeBackends) factory() Factory {
	return func(_ context.Context, path Path) (Backend, error) {
		f.opens.Add(1)
		return &fakeBackend{owner: f, path: path}, nil
	}
}

func (b *fakeBackend) Recognize(_ context.Context, req Request) ([]Segment, error) {
	b.owner.mu.Lock()
	b.owner.calls = append(b.owner.calls, b.path)
	b.owner.requests = append(b.owner.requests, req)
	res := b.owner.results[b.path]
	b.owner.mu.Unlock()

	if req.Progress != nil {
		for _, pct := range res.progress {
			req.Progress(pct)
		}
	}
	return res.segments, res.err
}

func (b *fakeBackend) Close() error {
	b.owner.closed.Add(1)
	return nil
}

func TestTranscribeAcceleratedSuccess(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{results: map[Path]attemptResult{
		PathAccelerated: {
			segments: []Segment{{Text: " hello"}, {Text: " world "}},
			progress: []int{5, 5, -3, 40, 150, 150},
		},
	}}
	var got []int
	iv := &Invoker{Open: backends.factory()}

	res, err := iv.Transcribe(context.Background(), []float32{0.1}, Options{
		Progress: func(p int) { got = append(got, p) },
	})
	require.NoError(t, err)
	require.Equal(t, "hello world", res.Text)
	require.Equal(t, PathAccelerated, res.Path)
	require.Equal(t, FallbackNone, res.Fallback)
	require.Equal(t, 1, res.Attempts)
	require.Equal(t, []Path{PathAccelerated}, backends.calls)
	require.Equal(t, []int{5, 0, 40, 100}, got)
	require.Equal(t, int32(1), backends.closed.Load())
}

func TestTranscribeFallsBackToCPUOnError(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{results: map[Path]attemptResult{
		PathAccelerated: {err: errors.New("device lost"), progress: []int{10}},
		PathCPU:         {segments: []Segment{{Text: "from cpu"}}, progress: []int{50}},
	}}
	var got []int
	iv := &Invoker{Open: backends.factory()}

	res, err := iv.Transcribe(context.Background(), []float32{0.1}, Options{
		Progress: func(p int) { got = append(got, p) },
	})
	require.NoError(t, err)
	require.Equal(t, "from cpu", res.Text)
	require.Equal(t, PathCPU, res.Path)
	require.Equal(t, FallbackError, res.Fallback)
	require.Equal(t, 2, res.Attempts)
	require.Equal(t, []Path{PathAccelerated, PathCPU}, backends.calls)
	require.Nil(t, backends.requests[1].Progress)
	require.Equal(t, []int{10}, got)
	require.Equal(t, int32(2), backends.closed.Load())
}

func TestTranscribeRetriesOnCPUWhenAcceleratedReturnsNothing(t *testing.T) {
	t.Parallel()

	// An empty accelerated result may be real silence rather than a fault.
	// The CPU result wins in both cases.
	backends := &fakeBackends{results: map[Path]attemptResult{
		PathAccelerated: {segments: nil},
		PathCPU:         {segments: []Segment{{Text: " recovered text"}}},
	}}
	iv := &Invoker{Open: backends.factory()}

	res, err := iv.Transcribe(context.Background(), []float32{0.1}, Options{})
	require.NoError(t, err)
	require.Equal(t, "recovered text", res.Text)
	require.Equal(t, PathCPU, res.Path)
	require.Equal(t, FallbackEmpty, res.Fallback)
	require.Equal(t, []Path{PathAccelerated, PathCPU}, backends.calls)
	require.Equal(t, int32(2), backends.opens.Load())
}

func TestTranscribeEmptyOnBothPathsIsNotAnError(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{results: map[Path]attemptResult{}}
	iv := &Invoker{Open: backends.factory()}

	res, err := iv.Transcribe(context.Background(), []float32{0.1}, Options{})
	require.NoError(t, err)
	require.Empty(t, res.Text)
	require.Equal(t, PathCPU, res.Path)
	require.Len(t, backends.calls, 2)
}

func TestTranscribeSurfacesCPUError(t *testing.T) {
	t.Parallel()

	cpuErr := errors.New("model corrupt")
	backends := &fakeBackends{results: map[Path]attemptResult{
		PathAccelerated: {err: errors.New("no device")},
		PathCPU:         {err: cpuErr},
	}}
	iv := &Invoker{Open: backends.factory()}

	_, err := iv.Transcribe(context.Background(), []float32{0.1}, Options{})
	require.ErrorIs(t, err, cpuErr)
	require.Len(t, backends.calls, 2)
}

func TestTranscribeRequestShape(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{results: map[Path]attemptResult{
		PathAccelerated: {segments: []Segment{{Text: "ok"}}},
	}}
	iv := &Invoker{Open: backends.factory()}

	_, err := iv.Transcribe(context.Background(), []float32{0.1}, Options{
		Prompt:   "  Vocabulary: Hyprland  ",
		Language: "de-CH",
	})
	require.NoError(t, err)

	req := backends.requests[0]
	require.Equal(t, "Vocabulary: Hyprland", req.Prompt)
	require.Equal(t, "de", req.Language)
	require.Positive(t, req.Threads)
	require.Equal(t, DefaultDecodeParams(), req.Params)
}

func TestTranscribeWithoutFactory(t *testing.T) {
	t.Parallel()

	_, err := (&Invoker{}).Transcribe(context.Background(), nil, Options{})
	require.ErrorIs(t, err, ErrNoBackend)
}

func TestTranscribeRejectsBadLanguage(t *testing.T) {
	t.Parallel()

	backends := &fakeBackends{}
	iv := &Invoker{Open: backends.factory()}
	_, err := iv.Transcribe(context.Background(), nil, Options{Language: "not a language"})
	require.Error(t, err)
	require.Zero(t, backends.opens.Load())
}

func TestNormalizeLanguage(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":      "",
		"  ":    "",
		"auto":  LanguageAuto,
		"AUTO":  LanguageAuto,
		"en":    "en",
		"en-US": "en",
		"fr":    "fr",
	}
	for in, want := range cases {
		got, err := NormalizeLanguage(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
}

func TestJoinSegments(t *testing.T) {
	t.Parallel()

	require.Equal(t, "a b", JoinSegments([]Segment{{Text: " a"}, {Text: " b "}}))
	require.Empty(t, JoinSegments(nil))
}

func TestProgressReporterConcurrentUse(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var got []int
	r := newProgressReporter(func(p int) {
		mu.Lock()
		got = append(got, p)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := -10; p <= 110; p++ {
				r.report(p)
			}
		}()
	}
	wg.Wait()

	require.NotEmpty(t, got)
	for i, p := range got {
		require.GreaterOrEqual(t, p, 0)
		require.LessOrEqual(t, p, 100)
		if i > 0 {
			require.Greater(t, p, got[i-1])
		}
	}
	require.Equal(t, 100, got[len(got)-1])
}

func TestProgressReporterDropsBackwardSteps(t *testing.T) {
	t.Parallel()

	var got []int
	r := newProgressReporter(func(p int) { got = append(got, p) })
	for _, p := range []int{10, 40, 20, 40, 55, 0, 100, 90} {
		r.report(p)
	}
	require.Equal(t, []int{10, 40, 55, 100}, got)
}

func TestProgressReporterNilCallback(t *testing.T) {
	t.Parallel()

	r := newProgressReporter(nil)
	require.Nil(t, r.callback())
	r.report(10)
}
