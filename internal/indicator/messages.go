package indicator

import (
	"fmt"
	"strings"

	"github.com/rbright/dictate/internal/config"
)

type messages struct {
	recording   string
	processing  string
	downloading string
	errorText   string
}

func messagesFor(cfg config.IndicatorConfig) messages {
	msg := messages{
		recording:   "Recording…",
		processing:  "Transcribing…",
		downloading: "Downloading model…",
		errorText:   "Speech recognition error",
	}
	if text := strings.TrimSpace(cfg.TextRecording); text != "" {
		msg.recording = text
	}
	if text := strings.TrimSpace(cfg.TextProcessing); text != "" {
		msg.processing = text
	}
	if text := strings.TrimSpace(cfg.TextError); text != "" {
		msg.errorText = text
	}
	return msg
}

// withProgress appends a percentage while work is measurable.
func withProgress(text string, percent int, queued int) string {
	if percent > 0 && percent < 100 {
		text = fmt.Sprintf("%s %d%%", text, percent)
	}
	if queued > 0 {
		text = fmt.Sprintf("%s (+%d queued)", text, queued)
	}
	return text
}
