package config

import (
	"strings"
	"testing"
)

func TestParseValidConfig(t *testing.T) {
	input := `
# comment
selected_mic: "Elgato Wave"
language: de-CH
vocabulary: [Hyprland, "", PipeWire]
auto_transcribe:
  processed_dir: /data/done
  extensions: [m4a, .wav]
  watches:
    - input_dir: /data/meetings
    - input_dir: /data/voice
      output_dir: /data/notes
      processed_dir: /data/voice-done
    - input_dir: /data/meetings/
clipboard_cmd: "wl-copy --type 'text/plain'"
indicator:
  backend: Desktop
  sound_enable: false
`

	cfg, warnings, err := Parse(input, Default())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.SelectedMic != "Elgato Wave" {
		t.Fatalf("unexpected selected_mic: %s", cfg.SelectedMic)
	}
	if cfg.Language != "de-CH" {
		t.Fatalf("unexpected language: %s", cfg.Language)
	}
	if len(cfg.AutoTranscribe.Watches) != 3 {
		t.Fatalf("expected 3 watches, got %d", len(cfg.AutoTranscribe.Watches))
	}
	first := cfg.AutoTranscribe.Watches[0]
	if first.OutputDir != "/data/meetings" || first.ProcessedDir != "/data/done" {
		t.Fatalf("watch defaults not applied: %+v", first)
	}
	second := cfg.AutoTranscribe.Watches[1]
	if second.OutputDir != "/data/notes" || second.ProcessedDir != "/data/voice-done" {
		t.Fatalf("explicit watch dirs overridden: %+v", second)
	}
	if got := strings.Join(cfg.Clipboard.Argv, "|"); got != "wl-copy|--type|text/plain" {
		t.Fatalf("unexpected clipboard argv: %s", got)
	}
	if cfg.Indicator.Backend != "desktop" || cfg.Indicator.SoundEnable {
		t.Fatalf("unexpected indicator config: %+v", cfg.Indicator)
	}

	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %+v", warnings)
	}
	if warnings[0].Line != 5 || !strings.Contains(warnings[0].Message, "empty vocabulary") {
		t.Fatalf("unexpected vocabulary warning: %+v", warnings[0])
	}
	if warnings[1].Line != 14 || !strings.Contains(warnings[1].Message, "already watched at line 10") {
		t.Fatalf("unexpected duplicate watch warning: %+v", warnings[1])
	}
}

func TestParseUnknownKeyFails(t *testing.T) {
	_, _, err := Parse("foo: 1\n", Default())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "foo") {
		t.Fatalf("error should name the key: %v", err)
	}
}

func TestParseUnknownNestedKeyFails(t *testing.T) {
	_, _, err := Parse("indicator:\n  height: 20\n", Default())
	if err == nil {
		t.Fatal("expected error for removed indicator.height")
	}
}

func TestParseEmptyContentReturnsBase(t *testing.T) {
	cfg, _, err := Parse("  \n", Default())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Model != Default().Model {
		t.Fatalf("unexpected model: %s", cfg.Model)
	}
}

func TestParseInvalidClipboardCommand(t *testing.T) {
	_, _, err := Parse(`clipboard_cmd: "wl-copy 'oops"`+"\n", Default())
	if err == nil || !strings.Contains(err.Error(), "clipboard_cmd") {
		t.Fatalf("expected clipboard_cmd error, got %v", err)
	}
}
