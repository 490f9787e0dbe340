// Package doctor runs runtime readiness diagnostics for config, tools, audio, and inference.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rbright/dictate/internal/audio"
	"github.com/rbright/dictate/internal/config"
	"github.com/rbright/dictate/internal/model"
	"github.com/rbright/dictate/internal/remoteasr"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// selectDevice is swapped in tests that must not depend on a sound server.
var selectDevice = audio.SelectDevice

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	configMsg := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		configMsg = fmt.Sprintf("%q not found; using defaults", cfg.Path)
	}
	checks = append(checks, Check{Name: "config", Pass: true, Message: configMsg})

	checks = append(checks, checkEnv("XDG_SESSION_TYPE", func(v string) bool {
		return strings.EqualFold(strings.TrimSpace(v), "wayland")
	}, "session type is wayland", "expected XDG_SESSION_TYPE=wayland"))

	if cfg.Config.Indicator.Enable && cfg.Config.Indicator.Backend == "hypr" {
		checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))
		checks = append(checks, checkBinary("hyprctl", "hypr indicator requires hyprctl"))
	}

	if len(cfg.Config.Clipboard.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Config.Clipboard.Argv, "clipboard_cmd"))
	} else {
		checks = append(checks, Check{Name: "clipboard_cmd", Pass: true, Message: "unset; writing the system clipboard directly"})
	}

	checks = append(checks, checkBinary("ffmpeg", "hotkey recordings are encoded and decoded with ffmpeg"))
	checks = append(checks, checkBackend(ctx, cfg.Config))
	checks = append(checks, checkModel(cfg.Config))
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkWatches(cfg.Config)...)

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkBackend verifies the configured inference backend can be reached.
func checkBackend(ctx context.Context, cfg config.Config) Check {
	switch cfg.Inference.Backend {
	case config.BackendGRPC:
		client, err := remoteasr.Dial(ctx, cfg.Inference.GRPCEndpoint, remoteasr.DefaultDialTimeout)
		if err != nil {
			return Check{Name: "inference.grpc", Pass: false, Message: err.Error()}
		}
		_ = client.Close()
		return Check{Name: "inference.grpc", Pass: true, Message: fmt.Sprintf("connected to %s", cfg.Inference.GRPCEndpoint)}
	default:
		check := checkBinary(cfg.Inference.WhisperCLI, "inference backend")
		check.Name = "inference.whisper_cli"
		return check
	}
}

// checkModel reports whether the configured model is already on disk.
func checkModel(cfg config.Config) Check {
	info, err := model.Lookup(cfg.Model)
	if err != nil {
		return Check{Name: "model", Pass: false, Message: err.Error()}
	}
	path, err := model.Store{Dir: cfg.ModelsDir}.Path(info.Name)
	if err != nil {
		return Check{Name: "model", Pass: false, Message: err.Error()}
	}
	if !model.Exists(path) {
		return Check{
			Name:    "model",
			Pass:    false,
			Message: fmt.Sprintf("%s (%s) not downloaded yet; the daemon fetches it on start", info.Name, info.SizeLabel()),
		}
	}
	return Check{Name: "model", Pass: true, Message: fmt.Sprintf("%s at %s", info.Name, path)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := selectDevice(ctx, cfg.SelectedMic, cfg.FallbackMic)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkWatches confirms every watched input directory exists.
func checkWatches(cfg config.Config) []Check {
	checks := make([]Check, 0, len(cfg.AutoTranscribe.Watches))
	for i, w := range cfg.AutoTranscribe.Watches {
		name := fmt.Sprintf("auto_transcribe.watches[%d]", i)
		info, err := os.Stat(w.InputDir)
		switch {
		case err != nil:
			checks = append(checks, Check{Name: name, Pass: false, Message: fmt.Sprintf("input_dir %q: %v", w.InputDir, err)})
		case !info.IsDir():
			checks = append(checks, Check{Name: name, Pass: false, Message: fmt.Sprintf("input_dir %q is not a directory", w.InputDir)})
		default:
			checks = append(checks, Check{Name: name, Pass: true, Message: fmt.Sprintf("watching %q", w.InputDir)})
		}
	}
	return checks
}
