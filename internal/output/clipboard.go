// Package output delivers finished hotkey transcripts to the clipboard.
package output

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"
)

const clipboardTimeout = 2 * time.Second

// Committer copies transcript text to the clipboard, either through a
// configured command or through the system clipboard directly.
type Committer struct {
	argv     []string
	logger   *slog.Logger
	writeAll func(string) error
}

// NewCommitter constructs a committer. An empty argv uses the system clipboard.
func NewCommitter(argv []string, logger *slog.Logger) *Committer {
	return &Committer{
		argv:     append([]string(nil), argv...),
		logger:   logger,
		writeAll: clipboard.WriteAll,
	}
}

// Commit copies transcript. Empty transcripts are ignored.
func (c *Committer) Commit(ctx context.Context, transcript string) error {
	if strings.TrimSpace(transcript) == "" {
		return nil
	}

	if len(c.argv) == 0 {
		if err := c.writeAll(transcript); err != nil {
			return fmt.Errorf("set clipboard: %w", err)
		}
		c.logDebug("transcript copied via system clipboard", len(transcript))
		return nil
	}

	cmdCtx, cancel := context.WithTimeout(ctx, clipboardTimeout)
	defer cancel()
	if err := runCommandWithInput(cmdCtx, c.argv, transcript); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	c.logDebug("transcript copied via "+c.argv[0], len(transcript))
	return nil
}

// runCommandWithInput executes argv with input on stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("run %s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("run %s: %w", argv[0], err)
	}
	return nil
}

func (c *Committer) logDebug(msg string, chars int) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(msg, "chars", chars)
}
