package sink

import (
	"context"
	"sync"

	"go.viam.com/avclean/pipeline"
)

// MemorySink keeps results in memory.
type MemorySink struct {
	mu      sync.Mutex
	results []pipeline.Result
	closed  bool
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Write records res.
func (m *MemorySink) Write(ctx context.Context, res pipeline.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.results = append(m.results, res)
	return nil
}

// Results returns the recorded results in write order.
func (m *MemorySink) Results() []pipeline.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]pipeline.Result(nil), m.results...)
}

// Close stops further writes.
func (m *MemorySink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
