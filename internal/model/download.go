package model

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 250 * time.Millisecond

// Store downloads models into Dir on demand.
type Store struct {
	Dir     string
	BaseURL string
	Client  *http.Client
	Logger  *slog.Logger
}

// Path returns where name would be stored without downloading it.
func (s Store) Path(name string) (string, error) {
	info, err := Lookup(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, info.File), nil
}

// Ensure returns the local path for name, downloading it first if needed.
// Concurrent callers share one download through a lock file next to the
// model. progress receives whole percentages when the size is known.
func (s Store) Ensure(ctx context.Context, name string, progress func(int)) (string, error) {
	info, err := Lookup(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create models dir %s: %w", s.Dir, err)
	}
	target := filepath.Join(s.Dir, info.File)
	if Exists(target) {
		return target, nil
	}

	lock := flock.New(target + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return "", fmt.Errorf("lock model %s: %w", info.Name, err)
	}
	if !locked {
		return "", fmt.Errorf("lock model %s: not acquired", info.Name)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	// Another process may have finished while we waited.
	if Exists(target) {
		return target, nil
	}

	s.logger().Info("downloading model", "model", info.Name, "size", info.SizeLabel())
	if err := s.download(ctx, info, target, progress); err != nil {
		return "", err
	}
	s.logger().Info("model downloaded", "model", info.Name, "path", target)
	return target, nil
}

func (s Store) download(ctx context.Context, info Info, target string, progress func(int)) (err error) {
	url := info.URL(s.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("download model %s: %w", url, err)
	}
	resp, err := s.client().Do(req)
	if err != nil {
		return fmt.Errorf("download model %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download model %s: unexpected status %s", url, resp.Status)
	}

	part := target + ".part"
	file, err := os.OpenFile(part, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create model file %s: %w", part, err)
	}
	defer func() {
		if err != nil {
			_ = file.Close()
			_ = os.Remove(part)
		}
	}()

	counter := &progressWriter{total: resp.ContentLength, report: progress, last: -1}
	if _, err = io.Copy(io.MultiWriter(file, counter), resp.Body); err != nil {
		return fmt.Errorf("download model %s: %w", url, err)
	}
	if resp.ContentLength > 0 && counter.written != resp.ContentLength {
		err = fmt.Errorf("download model %s: got %d of %d bytes", url, counter.written, resp.ContentLength)
		return err
	}
	if err = file.Sync(); err != nil {
		return fmt.Errorf("sync model file: %w", err)
	}
	if err = file.Close(); err != nil {
		return fmt.Errorf("close model file: %w", err)
	}
	if err = os.Rename(part, target); err != nil {
		return fmt.Errorf("install model file: %w", err)
	}
	return nil
}

func (s Store) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s Store) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type progressWriter struct {
	total   int64
	written int64
	last    int
	report  func(int)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.report != nil && p.total > 0 {
		pct := int(float64(p.written) / float64(p.total) * 100)
		pct = min(pct, 100)
		if pct != p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return len(b), nil
}

// Exists reports whether path is a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
