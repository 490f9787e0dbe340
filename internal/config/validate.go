package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rbright/dictate/internal/inference"
	"github.com/rbright/dictate/internal/model"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if _, err := model.Lookup(cfg.Model); err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	if strings.TrimSpace(cfg.ModelsDir) == "" {
		return nil, fmt.Errorf("models_dir must not be empty")
	}
	if strings.TrimSpace(cfg.RecordingsDir) == "" {
		return nil, fmt.Errorf("recordings_dir must not be empty")
	}
	if _, err := inference.NormalizeLanguage(cfg.Language); err != nil {
		return nil, fmt.Errorf("language: %w", err)
	}

	switch cfg.Inference.Backend {
	case BackendWhisperCLI:
		if strings.TrimSpace(cfg.Inference.WhisperCLI) == "" {
			return nil, fmt.Errorf("inference.whisper_cli must not be empty when inference.backend=%s", BackendWhisperCLI)
		}
	case BackendGRPC:
		if strings.TrimSpace(cfg.Inference.GRPCEndpoint) == "" {
			return nil, fmt.Errorf("inference.grpc_endpoint must not be empty when inference.backend=%s", BackendGRPC)
		}
	default:
		return nil, fmt.Errorf("inference.backend must be one of: %s, %s", BackendWhisperCLI, BackendGRPC)
	}
	if cfg.Inference.Threads < 0 {
		return nil, fmt.Errorf("inference.threads must be >= 0")
	}

	backend := cfg.Indicator.Backend
	if backend != "hypr" && backend != "desktop" {
		return nil, fmt.Errorf("indicator.backend must be one of: hypr, desktop")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	if len(cfg.AutoTranscribe.Watches) > 0 && len(cfg.AutoTranscribe.Extensions) == 0 {
		return nil, fmt.Errorf("auto_transcribe.extensions must not be empty")
	}
	for i, w := range cfg.AutoTranscribe.Watches {
		if strings.TrimSpace(w.InputDir) == "" {
			return nil, fmt.Errorf("auto_transcribe.watches[%d].input_dir must not be empty", i)
		}
		if filepath.Clean(w.InputDir) == filepath.Clean(w.ProcessedDir) {
			return nil, fmt.Errorf("auto_transcribe.watches[%d].processed_dir must differ from input_dir", i)
		}
	}

	if len(cfg.Clipboard.Argv) == 0 {
		warnings = append(warnings, Warning{Message: "clipboard_cmd is empty; using the system clipboard directly"})
	}

	return warnings, nil
}

// VocabularyPrompt builds the initial recognition prompt from vocabulary
// entries, or "" when there are none.
func VocabularyPrompt(words []string) string {
	kept := make([]string, 0, len(words))
	for _, word := range words {
		if word = strings.TrimSpace(word); word != "" {
			kept = append(kept, word)
		}
	}
	if len(kept) == 0 {
		return ""
	}
	return "Vocabulary: " + strings.Join(kept, ", ")
}
