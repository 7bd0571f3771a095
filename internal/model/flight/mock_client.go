package flight

import (
	"context"
	"fmt"
	"sync"

	"github.com/parakeet-ml/parakeet/internal/engine"
)

// MockModel is an in-memory stand-in for a remote Flight model, used by
// tests that need to drive the engine without a server.
type MockModel struct {
	mu        sync.Mutex
	connected bool
	vocab     int
	dominant  int
	forwards  int
	resets    int
}

// NewMockModel creates a mock whose logits always dominate the given token.
func NewMockModel(vocab, dominant int) *MockModel {
	return &MockModel{vocab: vocab, dominant: dominant}
}

// Connect simulates connection
func (m *MockModel) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Close simulates disconnection
func (m *MockModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// Forward returns one dominant-token logits row per window entry.
func (m *MockModel) Forward(_ context.Context, window []int, _ int, positions []int) (engine.Logits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil, fmt.Errorf("client not connected")
	}
	if len(positions) != len(window) {
		return nil, fmt.Errorf("positions length %d does not match window length %d", len(positions), len(window))
	}
	m.forwards++

	rows := make(engine.Logits, len(window))
	for i := range rows {
		row := make([]float32, m.vocab)
		row[m.dominant] = 100.0
		rows[i] = row
	}
	return rows, nil
}

// ResetCache counts resets.
func (m *MockModel) ResetCache(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return fmt.Errorf("client not connected")
	}
	m.resets++
	return nil
}

// Stats returns the forward and reset call counts (for testing).
func (m *MockModel) Stats() (forwards, resets int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forwards, m.resets
}
