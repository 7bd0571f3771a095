// Package toy provides a deterministic in-process Model for tests and the
// CLI's offline mode. It performs no real inference: scoring is a fixed
// next-token function. What it does implement faithfully is the cache
// contract, tracking cached positions per generation, rejecting positions
// out of bounds, and refusing to start a new generation on a dirty cache.
package toy

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/parakeet-ml/parakeet/internal/engine"
)

// ErrStaleCache indicates Forward was called for position 0 while the cache
// still held state from a previous generation. The caller forgot the
// ResetCache bracket; results would silently corrupt otherwise, so this is a
// hard error.
var ErrStaleCache = errors.New("cache holds stale positions: ResetCache required between generations")

// NextFunc picks the dominant next token given the last window token.
type NextFunc func(last int) int

// Model is a deterministic causal scorer with a position-keyed cache.
type Model struct {
	mu     sync.Mutex
	vocab  int
	next   NextFunc
	cached int // number of contiguous cached positions [0, cached)
}

// Option configures a Model.
type Option func(*Model)

// WithNext overrides the next-token function.
func WithNext(fn NextFunc) Option {
	return func(m *Model) { m.next = fn }
}

// New creates a toy model over the given vocabulary size.
func New(vocab int, opts ...Option) (*Model, error) {
	if vocab <= 1 {
		return nil, fmt.Errorf("vocab size %d too small", vocab)
	}
	m := &Model{
		vocab: vocab,
		// Default: a fixed affine walk through the vocabulary. Coherent,
		// fully deterministic, and never a fixed point for vocab > 1.
		next: func(last int) int { return (last*7 + 3) % vocab },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// VocabSize returns the vocabulary width of the logits rows.
func (m *Model) VocabSize() int {
	return m.vocab
}

// Forward scores the window. Each position must either already be cached or
// extend the cache contiguously, mirroring how a real KV-cache is filled.
func (m *Model) Forward(_ context.Context, window []int, maxSeqLength int, positions []int) (engine.Logits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(window) == 0 {
		return nil, errors.New("empty window")
	}
	if len(positions) != len(window) {
		return nil, fmt.Errorf("positions length %d does not match window length %d", len(positions), len(window))
	}

	// A fresh generation starts at position 0. If the cache still holds
	// positions from an earlier run, the mandatory reset was skipped.
	if positions[0] == 0 && m.cached > 0 {
		return nil, ErrStaleCache
	}

	// Validate the full window before touching cache state so a rejected
	// call leaves the cache exactly as it was.
	next := m.cached
	for i, pos := range positions {
		if pos < 0 || pos >= maxSeqLength {
			return nil, fmt.Errorf("position %d out of bounds [0, %d)", pos, maxSeqLength)
		}
		if pos > next {
			return nil, fmt.Errorf("position %d skips uncached position %d", pos, next)
		}
		if pos == next {
			next++
		}
		if window[i] < 0 || window[i] >= m.vocab {
			return nil, fmt.Errorf("token %d at position %d outside vocab [0, %d)", window[i], pos, m.vocab)
		}
	}
	m.cached = next

	rows := make(engine.Logits, len(window))
	for i, tok := range window {
		row := make([]float32, m.vocab)
		row[m.next(tok)] = 50.0
		rows[i] = row
	}
	return rows, nil
}

// ResetCache clears all cached positions.
func (m *Model) ResetCache(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cached = 0
	return nil
}

// CachedPositions reports how many positions are currently cached.
func (m *Model) CachedPositions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cached
}
