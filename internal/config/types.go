// Package config resolves, parses, validates, and saves dictate configuration.
package config

// Config is the fully materialized runtime configuration used by dictate.
type Config struct {
	SelectedMic    string
	FallbackMic    string
	Model          string
	ModelsDir      string
	RecordingsDir  string
	Vocabulary     []string
	Language       string
	AutoTranscribe AutoTranscribeConfig
	Inference      InferenceConfig
	Clipboard      CommandConfig
	Indicator      IndicatorConfig
	Metrics        MetricsConfig
	Log            LogConfig
	Debug          DebugConfig
}

// AutoTranscribeConfig controls directory watching.
type AutoTranscribeConfig struct {
	Extensions   []string
	ProcessedDir string
	Watches      []WatchConfig
}

// WatchConfig is one watched input directory. Empty OutputDir writes
// transcripts beside the input; empty ProcessedDir falls back to the
// shared processed dir.
type WatchConfig struct {
	InputDir     string
	OutputDir    string
	ProcessedDir string
}

// Inference backend names.
const (
	BackendWhisperCLI = "whisper-cli"
	BackendGRPC       = "grpc"
)

// InferenceConfig selects and tunes the recognition backend.
type InferenceConfig struct {
	Backend      string
	WhisperCLI   string
	GRPCEndpoint string
	Threads      int
}

// IndicatorConfig controls visual indicator and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
	TextRecording  string
	TextProcessing string
	TextError      string
	ErrorTimeoutMS int
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string
}

// LogConfig controls the daemon log.
type LogConfig struct {
	Level string
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	AudioDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
