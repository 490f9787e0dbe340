package config

import "github.com/rbright/dictate/internal/model"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		SelectedMic:   "default",
		FallbackMic:   "default",
		Model:         model.DefaultName,
		ModelsDir:     defaultDataDir("models"),
		RecordingsDir: defaultDataDir("recordings"),
		AutoTranscribe: AutoTranscribeConfig{
			Extensions: []string{".m4a"},
		},
		Inference: InferenceConfig{
			Backend:    BackendWhisperCLI,
			WhisperCLI: "whisper-cli",
		},
		Clipboard: CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "hypr",
			DesktopAppName: "dictate",
			SoundEnable:    true,
			ErrorTimeoutMS: 1600,
		},
		Log: LogConfig{Level: "info"},
	}
}
