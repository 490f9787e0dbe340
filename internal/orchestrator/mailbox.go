package orchestrator

import "sync"

// mailbox is an unbounded multi-producer queue drained by the loop. Pushing
// never blocks, so workers cannot stall on a busy or stopped loop.
type mailbox[T any] struct {
	mu    sync.Mutex
	items []T
	wake  chan<- struct{}
}

func newMailbox[T any](wake chan<- struct{}) *mailbox[T] {
	return &mailbox[T]{wake: wake}
}

func (m *mailbox[T]) push(item T) {
	m.mu.Lock()
	m.items = append(m.items, item)
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// drain returns everything queued so far in arrival order.
func (m *mailbox[T]) drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.items
	m.items = nil
	return items
}
