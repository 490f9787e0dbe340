// Package storage derives transcript, recording, and processed-file paths and
// writes transcripts durably.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout names recordings by local time with milliseconds and zone.
const TimestampLayout = "2006-01-02T15-04-05.000-0700"

// TranscriptExt is the extension used for every transcript.
const TranscriptExt = ".md"

// RecordingExt is the container used for hotkey recordings.
const RecordingExt = ".m4a"

// EnsureDir creates path and any parents.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", path, err)
	}
	return nil
}

// Sanitize replaces characters that are unsafe in file names with a hyphen.
func Sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return '-'
		case strings.ContainsRune(`<>:"/\|?*`, r):
			return '-'
		default:
			return r
		}
	}, name)
}

// RecordingPaths returns a fresh audio/transcript pair in dir named by now.
func RecordingPaths(dir string, now time.Time) (audio string, text string, err error) {
	if err := EnsureDir(dir); err != nil {
		return "", "", err
	}
	stamp := now.Format(TimestampLayout)
	return filepath.Join(dir, stamp+RecordingExt), filepath.Join(dir, stamp+TranscriptExt), nil
}

// TranscriptPath is the sibling transcript for input: <dir>/<stem>.md.
func TranscriptPath(input string) (string, error) {
	return TranscriptPathIn(input, filepath.Dir(input))
}

// TranscriptPathIn places input's transcript in outputDir.
func TranscriptPathIn(input string, outputDir string) (string, error) {
	stem, err := stemOf(input)
	if err != nil {
		return "", err
	}
	return filepath.Join(outputDir, Sanitize(stem)+TranscriptExt), nil
}

// ProcessedPath is where input is moved once transcribed.
func ProcessedPath(input string, processedDir string) (string, error) {
	base := filepath.Base(input)
	if base == "." || base == string(filepath.Separator) || strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("input %q has no file name", input)
	}
	return filepath.Join(processedDir, Sanitize(base)), nil
}

func stemOf(input string) (string, error) {
	base := filepath.Base(input)
	if base == "." || base == string(filepath.Separator) || strings.TrimSpace(base) == "" {
		return "", fmt.Errorf("input %q has no file name", input)
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return stem, nil
}

// WriteTranscript stores text at path through a synced temp file and rename,
// so a crash never leaves a partial transcript behind.
func WriteTranscript(path string, text string) (err error) {
	dir := filepath.Dir(path)
	if err := EnsureDir(dir); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp transcript: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write transcript %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync transcript %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close transcript %s: %w", path, err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod transcript %s: %w", path, err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename transcript %s: %w", path, err)
	}
	syncDir(dir)
	return nil
}

// MoveProcessed moves input to processed, replacing any earlier file of the
// same name. Callers write the transcript first.
func MoveProcessed(input string, processed string) error {
	if err := EnsureDir(filepath.Dir(processed)); err != nil {
		return err
	}
	if err := os.Rename(input, processed); err != nil {
		return fmt.Errorf("move processed file %s -> %s: %w", input, processed, err)
	}
	syncDir(filepath.Dir(processed))
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
