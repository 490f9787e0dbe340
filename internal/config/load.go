package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Loaded{
				Path:   resolvedPath,
				Config: base,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
				Exists: false,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
	}, nil
}

// Save writes cfg to path as YAML, replacing the file atomically.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	content, err := yaml.Marshal(toFile(cfg))
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write config %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close config %q: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("save config %q: %w", path, err)
	}
	return nil
}

func toFile(cfg Config) fileConfig {
	watches := make([]fileWatch, 0, len(cfg.AutoTranscribe.Watches))
	for _, w := range cfg.AutoTranscribe.Watches {
		watches = append(watches, fileWatch(w))
	}
	return fileConfig{
		SelectedMic:   &cfg.SelectedMic,
		FallbackMic:   &cfg.FallbackMic,
		Model:         &cfg.Model,
		ModelsDir:     &cfg.ModelsDir,
		RecordingsDir: &cfg.RecordingsDir,
		Vocabulary:    cfg.Vocabulary,
		Language:      &cfg.Language,
		AutoTranscribe: &fileAuto{
			Extensions:   cfg.AutoTranscribe.Extensions,
			ProcessedDir: &cfg.AutoTranscribe.ProcessedDir,
			Watches:      watches,
		},
		Inference: &fileInference{
			Backend:      &cfg.Inference.Backend,
			WhisperCLI:   &cfg.Inference.WhisperCLI,
			GRPCEndpoint: &cfg.Inference.GRPCEndpoint,
			Threads:      &cfg.Inference.Threads,
		},
		ClipboardCmd: &cfg.Clipboard.Raw,
		Indicator: &fileIndicator{
			Enable:         &cfg.Indicator.Enable,
			Backend:        &cfg.Indicator.Backend,
			DesktopAppName: &cfg.Indicator.DesktopAppName,
			SoundEnable:    &cfg.Indicator.SoundEnable,
			TextRecording:  &cfg.Indicator.TextRecording,
			TextProcessing: &cfg.Indicator.TextProcessing,
			TextError:      &cfg.Indicator.TextError,
			ErrorTimeoutMS: &cfg.Indicator.ErrorTimeoutMS,
		},
		Metrics: &fileMetrics{Listen: &cfg.Metrics.Listen},
		Log:     &fileLog{Level: &cfg.Log.Level},
		Debug:   &fileDebug{AudioDump: &cfg.Debug.AudioDump},
	}
}
