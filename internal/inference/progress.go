package inference

import "sync"

// progressReporter clamps percentages to 0..100 and forwards only values
// above the last one, so listeners see a strictly rising sequence. It is safe to call from the backend's goroutines.
type progressReporter struct {
	mu   sync.Mutex
	last int
	fn   func(int)
}

func newProgressReporter(fn func(int)) *progressReporter {
	if fn == nil {
		return nil
	}
	return &progressReporter{last: -1, fn: fn}
}

func (r *progressReporter) report(percent int) {
	if r == nil {
		return
	}
	percent = max(0, min(percent, 100))

	r.mu.Lock()
	defer r.mu.Unlock()
	if percent <= r.last {
		return
	}
	r.last = percent
	r.fn(percent)
}

// callback returns the reporter as a plain function, or nil when there is
// nobody listening.
func (r *progressReporter) callback() func(int) {
	if r == nil {
		return nil
	}
	return r.report
}
