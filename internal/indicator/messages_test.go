package indicator

import (
	"testing"

	"github.com/rbright/dictate/internal/config"
	"github.com/stretchr/testify/require"
)

func TestMessagesDefaults(t *testing.T) {
	msg := messagesFor(config.IndicatorConfig{})
	require.Equal(t, "Recording…", msg.recording)
	require.Equal(t, "Transcribing…", msg.processing)
	require.Equal(t, "Speech recognition error", msg.errorText)
}

func TestMessagesOverrides(t *testing.T) {
	msg := messagesFor(config.IndicatorConfig{TextRecording: " Rec ", TextProcessing: "Busy", TextError: "Oops"})
	require.Equal(t, "Rec", msg.recording)
	require.Equal(t, "Busy", msg.processing)
	require.Equal(t, "Oops", msg.errorText)
}

func TestWithProgress(t *testing.T) {
	require.Equal(t, "Transcribing…", withProgress("Transcribing…", 0, 0))
	require.Equal(t, "Transcribing… 40%", withProgress("Transcribing…", 40, 0))
	require.Equal(t, "Transcribing… (+2 queued)", withProgress("Transcribing…", 100, 2))
}
