package indicator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rbright/dictate/internal/config"
	"github.com/stretchr/testify/require"
)

type dispatchLog struct {
	mu    sync.Mutex
	lines []string
}

func (d *dispatchLog) add(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lines = append(d.lines, line)
}

func (d *dispatchLog) snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.lines...)
}

func newTestNotifier(cfg config.IndicatorConfig) (*Notifier, *dispatchLog) {
	log := &dispatchLog{}
	n := New(cfg, nil)
	n.notify = func(_ context.Context, icon int, timeoutMS int, color string, text string) error {
		log.add(fmt.Sprintf("notify %d %d %s %s", icon, timeoutMS, color, text))
		return nil
	}
	n.dismiss = func(context.Context) error {
		log.add("dismiss")
		return nil
	}
	n.cue = func(cueKind) error { return nil }
	return n, log
}

func TestNotifierCollapsesRepeatedStates(t *testing.T) {
	cfg := config.Default().Indicator
	n, log := newTestNotifier(cfg)
	ctx := context.Background()

	n.apply(ctx, update{state: StateRecording})
	n.apply(ctx, update{state: StateRecording})
	n.apply(ctx, update{state: StateTranscribing, percent: 40, queued: 1})
	n.apply(ctx, update{state: StateTranscribing, percent: 60, queued: 1})
	n.apply(ctx, update{state: StateIdle})

	require.Equal(t, []string{
		"notify 1 300000 rgb(89b4fa) Recording…",
		"notify 1 300000 rgb(cba6f7) Transcribing… 40% (+1 queued)",
		"dismiss",
	}, log.snapshot())
}

func TestNotifierErrorSurvivesFollowingIdle(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.TextError = "Speech error"
	n, log := newTestNotifier(cfg)
	ctx := context.Background()

	n.apply(ctx, update{state: StateTranscribing})
	n.apply(ctx, update{isError: true})
	n.apply(ctx, update{state: StateIdle})
	n.apply(ctx, update{isError: true, errText: "custom"})

	require.Equal(t, []string{
		"notify 1 300000 rgb(cba6f7) Transcribing…",
		"dismiss",
		"notify 3 1600 rgb(f38ba8) Speech error",
		"notify 3 1600 rgb(f38ba8) custom",
	}, log.snapshot())
}

func TestNotifierDownloadingShowsPercent(t *testing.T) {
	n, log := newTestNotifier(config.Default().Indicator)
	n.apply(context.Background(), update{state: StateDownloading, percent: 12})
	require.Equal(t, []string{"notify 1 300000 rgb(f9e2af) Downloading model… 12%"}, log.snapshot())
}

func TestNotifierErrorTimeoutFallback(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.ErrorTimeoutMS = 0
	n, log := newTestNotifier(cfg)
	n.apply(context.Background(), update{isError: true, errText: "x"})
	require.Equal(t, []string{"notify 3 1200 rgb(f38ba8) x"}, log.snapshot())
}

func TestNotifierDisabledQueuesNothing(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.Enable = false
	n, _ := newTestNotifier(cfg)

	n.ShowStatus(StateRecording, 0, 0)
	n.ShowError("ignored")
	require.Zero(t, len(n.updates))
}

func TestNotifierRunDispatchesAndDismissesOnShutdown(t *testing.T) {
	n, log := newTestNotifier(config.Default().Indicator)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.Run(ctx)
		close(done)
	}()

	n.ShowStatus(StateRecording, 0, 0)
	require.Eventually(t, func() bool { return len(log.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
	require.Equal(t, []string{"notify 1 300000 rgb(89b4fa) Recording…", "dismiss"}, log.snapshot())
}

func TestNotifierPlaysCuesWhenSoundEnabled(t *testing.T) {
	cfg := config.Default().Indicator
	cfg.SoundEnable = true
	n, _ := newTestNotifier(cfg)

	played := make(chan cueKind, 4)
	n.cue = func(kind cueKind) error {
		played <- kind
		return nil
	}

	n.CueStart()
	select {
	case kind := <-played:
		require.Equal(t, cueStart, kind)
	case <-time.After(time.Second):
		t.Fatal("cue not played")
	}

	cfg.SoundEnable = false
	quiet, _ := newTestNotifier(cfg)
	quiet.cue = n.cue
	quiet.CueStop()
	select {
	case <-played:
		t.Fatal("cue played while sound disabled")
	case <-time.After(50 * time.Millisecond):
	}
}
