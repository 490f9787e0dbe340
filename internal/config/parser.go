package config

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	SelectedMic    *string        `yaml:"selected_mic,omitempty"`
	FallbackMic    *string        `yaml:"fallback_mic,omitempty"`
	Model          *string        `yaml:"model,omitempty"`
	ModelsDir      *string        `yaml:"models_dir,omitempty"`
	RecordingsDir  *string        `yaml:"recordings_dir,omitempty"`
	Vocabulary     []string       `yaml:"vocabulary,omitempty"`
	Language       *string        `yaml:"language,omitempty"`
	AutoTranscribe *fileAuto      `yaml:"auto_transcribe,omitempty"`
	Inference      *fileInference `yaml:"inference,omitempty"`
	ClipboardCmd   *string        `yaml:"clipboard_cmd,omitempty"`
	Indicator      *fileIndicator `yaml:"indicator,omitempty"`
	Metrics        *fileMetrics   `yaml:"metrics,omitempty"`
	Log            *fileLog       `yaml:"log,omitempty"`
	Debug          *fileDebug     `yaml:"debug,omitempty"`
}

type fileAuto struct {
	Extensions   []string    `yaml:"extensions,omitempty"`
	ProcessedDir *string     `yaml:"processed_dir,omitempty"`
	Watches      []fileWatch `yaml:"watches,omitempty"`
}

type fileWatch struct {
	InputDir     string `yaml:"input_dir"`
	OutputDir    string `yaml:"output_dir,omitempty"`
	ProcessedDir string `yaml:"processed_dir,omitempty"`
}

type fileInference struct {
	Backend      *string `yaml:"backend,omitempty"`
	WhisperCLI   *string `yaml:"whisper_cli,omitempty"`
	GRPCEndpoint *string `yaml:"grpc_endpoint,omitempty"`
	Threads      *int    `yaml:"threads,omitempty"`
}

type fileIndicator struct {
	Enable         *bool   `yaml:"enable,omitempty"`
	Backend        *string `yaml:"backend,omitempty"`
	DesktopAppName *string `yaml:"desktop_app_name,omitempty"`
	SoundEnable    *bool   `yaml:"sound_enable,omitempty"`
	TextRecording  *string `yaml:"text_recording,omitempty"`
	TextProcessing *string `yaml:"text_processing,omitempty"`
	TextError      *string `yaml:"text_error,omitempty"`
	ErrorTimeoutMS *int    `yaml:"error_timeout_ms,omitempty"`
}

type fileMetrics struct {
	Listen *string `yaml:"listen,omitempty"`
}

type fileLog struct {
	Level *string `yaml:"level,omitempty"`
}

type fileDebug struct {
	AudioDump *bool `yaml:"audio_dump,omitempty"`
}

// Parse reads YAML configuration content over base. Unknown keys are errors.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}

	decoder := yaml.NewDecoder(strings.NewReader(content))
	decoder.KnownFields(true)

	var payload fileConfig
	if err := decoder.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return Parse("", base)
		}
		return Config{}, nil, err
	}

	cfg := base
	if err := payload.applyTo(&cfg); err != nil {
		return Config{}, nil, err
	}
	normalize(&cfg)

	var root yaml.Node
	if err := yaml.Unmarshal([]byte(content), &root); err != nil {
		return Config{}, nil, err
	}
	warnings := lineWarnings(&root)

	validated, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, append(warnings, validated...), nil
}

func (payload fileConfig) applyTo(cfg *Config) error {
	setString(&cfg.SelectedMic, payload.SelectedMic)
	setString(&cfg.FallbackMic, payload.FallbackMic)
	setString(&cfg.Model, payload.Model)
	setString(&cfg.ModelsDir, payload.ModelsDir)
	setString(&cfg.RecordingsDir, payload.RecordingsDir)
	setString(&cfg.Language, payload.Language)
	if payload.Vocabulary != nil {
		cfg.Vocabulary = append([]string(nil), payload.Vocabulary...)
	}

	if auto := payload.AutoTranscribe; auto != nil {
		if auto.Extensions != nil {
			cfg.AutoTranscribe.Extensions = append([]string(nil), auto.Extensions...)
		}
		setString(&cfg.AutoTranscribe.ProcessedDir, auto.ProcessedDir)
		if auto.Watches != nil {
			cfg.AutoTranscribe.Watches = make([]WatchConfig, 0, len(auto.Watches))
			for _, w := range auto.Watches {
				cfg.AutoTranscribe.Watches = append(cfg.AutoTranscribe.Watches, WatchConfig(w))
			}
		}
	}

	if inf := payload.Inference; inf != nil {
		setString(&cfg.Inference.Backend, inf.Backend)
		setString(&cfg.Inference.WhisperCLI, inf.WhisperCLI)
		setString(&cfg.Inference.GRPCEndpoint, inf.GRPCEndpoint)
		if inf.Threads != nil {
			cfg.Inference.Threads = *inf.Threads
		}
	}

	if payload.ClipboardCmd != nil {
		argv, err := parseArgv(*payload.ClipboardCmd)
		if err != nil {
			return fmt.Errorf("clipboard_cmd: %w", err)
		}
		cfg.Clipboard = CommandConfig{Raw: strings.TrimSpace(*payload.ClipboardCmd), Argv: argv}
	}

	if ind := payload.Indicator; ind != nil {
		setBool(&cfg.Indicator.Enable, ind.Enable)
		setString(&cfg.Indicator.Backend, ind.Backend)
		setString(&cfg.Indicator.DesktopAppName, ind.DesktopAppName)
		setBool(&cfg.Indicator.SoundEnable, ind.SoundEnable)
		setString(&cfg.Indicator.TextRecording, ind.TextRecording)
		setString(&cfg.Indicator.TextProcessing, ind.TextProcessing)
		setString(&cfg.Indicator.TextError, ind.TextError)
		if ind.ErrorTimeoutMS != nil {
			cfg.Indicator.ErrorTimeoutMS = *ind.ErrorTimeoutMS
		}
	}

	if payload.Metrics != nil {
		setString(&cfg.Metrics.Listen, payload.Metrics.Listen)
	}
	if payload.Log != nil {
		setString(&cfg.Log.Level, payload.Log.Level)
	}
	if payload.Debug != nil {
		setBool(&cfg.Debug.AudioDump, payload.Debug.AudioDump)
	}
	return nil
}

// normalize expands paths and fills per-watch defaults.
func normalize(cfg *Config) {
	cfg.ModelsDir = ExpandHome(cfg.ModelsDir)
	cfg.RecordingsDir = ExpandHome(cfg.RecordingsDir)
	cfg.AutoTranscribe.ProcessedDir = ExpandHome(cfg.AutoTranscribe.ProcessedDir)
	cfg.Inference.Backend = strings.ToLower(cfg.Inference.Backend)
	cfg.Indicator.Backend = strings.ToLower(cfg.Indicator.Backend)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	for i := range cfg.AutoTranscribe.Watches {
		w := &cfg.AutoTranscribe.Watches[i]
		w.InputDir = ExpandHome(w.InputDir)
		w.OutputDir = ExpandHome(w.OutputDir)
		w.ProcessedDir = ExpandHome(w.ProcessedDir)
		if w.OutputDir == "" {
			w.OutputDir = w.InputDir
		}
		if w.ProcessedDir == "" {
			w.ProcessedDir = cfg.AutoTranscribe.ProcessedDir
		}
		if w.ProcessedDir == "" && w.InputDir != "" {
			w.ProcessedDir = filepath.Join(w.InputDir, "processed")
		}
	}
}

// lineWarnings reports suspicious but valid entries with their YAML line.
func lineWarnings(root *yaml.Node) []Warning {
	doc := root
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	warnings := make([]Warning, 0)

	if vocab := mappingValue(doc, "vocabulary"); vocab != nil && vocab.Kind == yaml.SequenceNode {
		for _, item := range vocab.Content {
			if strings.TrimSpace(item.Value) == "" {
				warnings = append(warnings, Warning{Line: item.Line, Message: "empty vocabulary entry ignored"})
			}
		}
	}

	auto := mappingValue(doc, "auto_transcribe")
	watches := mappingValue(auto, "watches")
	if watches != nil && watches.Kind == yaml.SequenceNode {
		seen := map[string]int{}
		for _, item := range watches.Content {
			input := mappingValue(item, "input_dir")
			if input == nil {
				continue
			}
			dir := filepath.Clean(ExpandHome(input.Value))
			if first, ok := seen[dir]; ok {
				warnings = append(warnings, Warning{
					Line:    input.Line,
					Message: fmt.Sprintf("input_dir %q already watched at line %d", input.Value, first),
				})
				continue
			}
			seen[dir] = input.Line
		}
	}
	return warnings
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
