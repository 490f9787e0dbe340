package app

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/config"
	"github.com/rbright/dictate/internal/inference"
	"github.com/rbright/dictate/internal/ipc"
	"github.com/stretchr/testify/require"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "dictate")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteInvalidConfigFails(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte("model: enormous\n"), 0o600))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerStatusStoppedWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "stopped\n", stdout.String())
}

func TestRunnerClientCommandsFailWithoutDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)

	for _, command := range []string{"toggle", "stop", "cancel", "refresh-devices", "quit"} {
		var stdout bytes.Buffer
		var stderr bytes.Buffer
		runner := Runner{Stdout: &stdout, Stderr: &stderr}

		exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, command})
		require.Equal(t, 1, exitCode, command)
		require.Contains(t, stderr.String(), "daemon is not running", command)
	}
}

func TestRunnerForwardsCommandsToDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)

	var mu sync.Mutex
	var seen []string
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		mu.Lock()
		seen = append(seen, req.Command)
		mu.Unlock()
		return ipc.Response{OK: true, Message: req.Command + " ok"}
	})
	defer shutdown()

	commands := []string{"toggle", "stop", "cancel", "refresh-devices", "quit"}
	for _, command := range commands {
		var stdout bytes.Buffer
		var stderr bytes.Buffer
		runner := Runner{Stdout: &stdout, Stderr: &stderr}

		exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, command})
		require.Equal(t, 0, exitCode, stderr.String())
		require.Equal(t, command+" ok\n", stdout.String())
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, commands, seen)
}

func TestRunnerSurfacesDaemonRejection(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{OK: false, Error: "not recording"}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "not recording")
}

func TestRunnerStatusRendersProgressAndQueue(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		require.Equal(t, ipc.CommandStatus, req.Command)
		return ipc.Response{OK: true, State: "transcribing", Progress: 42, Queued: 2, Mic: "default"}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "transcribing 42% (2 queued) mic=default\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestFormatStatus(t *testing.T) {
	require.Equal(t, "idle", formatStatus(ipc.Response{OK: true}))
	require.Equal(t, "recording", formatStatus(ipc.Response{OK: true, State: "recording"}))
	require.Equal(t, "downloading 7%", formatStatus(ipc.Response{State: "downloading", Progress: 7}))
	require.Equal(t, "transcribing", formatStatus(ipc.Response{State: "transcribing", Progress: 100}))
	require.Equal(t, "idle (1 queued)", formatStatus(ipc.Response{State: "idle", Queued: 1}))
}

func TestRunnerSelectMicForwardsArgument(t *testing.T) {
	paths := setupRunnerEnv(t)

	got := make(chan ipc.Request, 1)
	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(_ context.Context, req ipc.Request) ipc.Response {
		got <- req
		return ipc.Response{OK: true, Message: "microphone set", Mic: req.Arg}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "select-mic", "usb-mic"})
	require.Equal(t, 0, exitCode, stderr.String())
	req := <-got
	require.Equal(t, ipc.CommandSelectMic, req.Command)
	require.Equal(t, "usb-mic", req.Arg)
	require.Equal(t, "microphone set\n", stdout.String())
}

func TestRunnerSelectMicSavesConfigWithoutDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "select-mic", "usb-mic"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "usb-mic")

	loaded, err := config.Load(paths.configPath)
	require.NoError(t, err)
	require.Equal(t, "usb-mic", loaded.Config.SelectedMic)
}

func TestRunnerRunRefusesSecondDaemon(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, paths.socketPath(), func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: "idle"}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "run"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "already running")

	_, statErr := os.Stat(paths.socketPath())
	require.NoError(t, statErr)
}

func TestTryForwardSuccessAndFailureResponses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "dictate.sock")

	shutdown := startIPCServerForRunnerTest(t, socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		if req.Command == ipc.CommandStatus {
			return ipc.Response{OK: true, State: "idle"}
		}
		return ipc.Response{OK: false, Error: "busy transcribing"}
	})
	defer shutdown()

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus})
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "idle", resp.State)

	_, handled, err = tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandToggle})
	require.True(t, handled)
	require.EqualError(t, err, "busy transcribing")
}

func TestTryForwardDoesNotRemoveSocketPathOnForwardFailure(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "dictate.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus})
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "dictate.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus})
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "forward command \"status\":")

	<-done
	require.NoError(t, listener.Close())
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("XDG_SESSION_TYPE", "x11")
	t.Setenv("HYPRLAND_INSTANCE_SIGNATURE", "")
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "config: loaded")
	require.Contains(t, stdout.String(), "XDG_SESSION_TYPE")
}

func TestRunnerDevicesRendersTable(t *testing.T) {
	paths := setupRunnerEnv(t)
	swapListDevices(t, func(context.Context) ([]audio.Device, error) {
		return []audio.Device{
			{ID: "alsa_input.usb", Description: "USB Mic", State: "running", Available: true, Default: true},
			{ID: "alsa_input.pci", Description: "Built-in", State: "suspended", Muted: true},
		}, nil
	})

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "alsa_input.usb")
	require.Contains(t, stdout.String(), "USB Mic")
	require.Contains(t, stdout.String(), "Built-in")
}

func TestRunnerDevicesReportsListingFailure(t *testing.T) {
	paths := setupRunnerEnv(t)
	swapListDevices(t, func(context.Context) ([]audio.Device, error) {
		return nil, errors.New("connect pulse: refused")
	})

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "connect pulse")
}

func TestRunnerModelsMarksDefaultAndInstalled(t *testing.T) {
	paths := setupRunnerEnv(t)
	modelsDir := t.TempDir()
	require.NoError(t, os.WriteFile(paths.configPath, []byte("models_dir: "+modelsDir+"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(modelsDir, "ggml-tiny.bin"), []byte("weights"), 0o600))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "models"})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "small *")
	require.Contains(t, stdout.String(), "tiny")
	require.Contains(t, stdout.String(), "yes")
}

func TestRunnerTranscribeRejectsUnknownModel(t *testing.T) {
	paths := setupRunnerEnv(t)
	input := filepath.Join(t.TempDir(), "memo.m4a")
	require.NoError(t, os.WriteFile(input, []byte("audio"), 0o600))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "transcribe", "-i", input, "-m", "enormous"})
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerTranscribeMissingInput(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "transcribe", "-i", filepath.Join(t.TempDir(), "missing.m4a")})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "missing.m4a")
}

func TestBackendSelectsLoaderByConfig(t *testing.T) {
	cfg := config.Default()
	local := newBackend(cfg, nil)
	_, isRemote := local.Loader().(*remoteModel)
	require.False(t, isRemote)

	cfg.Inference.Backend = config.BackendGRPC
	cfg.Inference.GRPCEndpoint = "127.0.0.1:1"
	remote := newBackend(cfg, nil)
	_, isRemote = remote.Loader().(*remoteModel)
	require.True(t, isRemote)
	remote.Close()
}

func TestRemoteModelWithoutConnectionHasNoBackend(t *testing.T) {
	m := &remoteModel{endpoint: ""}
	_, err := m.Ensure(context.Background(), "small", nil)
	require.Error(t, err)

	_, err = m.factory()(context.Background(), inference.PathAccelerated)
	require.ErrorIs(t, err, inference.ErrNoBackend)
}

func TestSocketErrorHelpers(t *testing.T) {
	require.False(t, isSocketMissing(nil))
	require.False(t, isConnectionRefused(nil))

	require.True(t, isSocketMissing(os.ErrNotExist))
	require.True(t, isSocketMissing(errors.New("dial unix /tmp/dictate.sock: no such file or directory")))
	require.False(t, isSocketMissing(errors.New("other error")))

	require.True(t, isConnectionRefused(syscall.ECONNREFUSED))
	require.False(t, isConnectionRefused(errors.New("other error")))
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

func (p runnerPaths) socketPath() string {
	return filepath.Join(p.runtimeDir, "dictate.sock")
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	xdgStateHome := t.TempDir()
	runtimeDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("\n"), 0o600))

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir}
}

func swapListDevices(t *testing.T, fn func(context.Context) ([]audio.Device, error)) {
	t.Helper()
	original := listDevices
	listDevices = fn
	t.Cleanup(func() { listDevices = original })
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
