package toy

import (
	"context"
	"errors"
	"testing"

	"github.com/parakeet-ml/parakeet/internal/engine"
)

func TestForward_CachesPositionsContiguously(t *testing.T) {
	m, err := New(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	// Prefill: positions 0..2
	if _, err := m.Forward(ctx, []int{5, 6, 7}, 16, []int{0, 1, 2}); err != nil {
		t.Fatalf("prefill failed: %v", err)
	}
	if m.CachedPositions() != 3 {
		t.Errorf("expected 3 cached positions, got %d", m.CachedPositions())
	}

	// Incremental step at position 3
	if _, err := m.Forward(ctx, []int{9}, 16, []int{3}); err != nil {
		t.Fatalf("incremental step failed: %v", err)
	}
	if m.CachedPositions() != 4 {
		t.Errorf("expected 4 cached positions, got %d", m.CachedPositions())
	}

	// Skipping position 4 entirely must be rejected
	if _, err := m.Forward(ctx, []int{9}, 16, []int{5}); err == nil {
		t.Error("expected error for non-contiguous position")
	}
}

func TestForward_StaleCacheDetection(t *testing.T) {
	m, err := New(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if _, err := m.Forward(ctx, []int{1, 2}, 16, []int{0, 1}); err != nil {
		t.Fatalf("first generation failed: %v", err)
	}

	// Second independent generation without ResetCache: a usage violation,
	// surfaced as a hard error rather than silent corruption.
	_, err = m.Forward(ctx, []int{3, 4}, 16, []int{0, 1})
	if !errors.Is(err, ErrStaleCache) {
		t.Fatalf("expected ErrStaleCache, got %v", err)
	}

	// After a reset the same call succeeds
	if err := m.ResetCache(ctx); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, err := m.Forward(ctx, []int{3, 4}, 16, []int{0, 1}); err != nil {
		t.Errorf("generation after reset failed: %v", err)
	}
}

func TestForward_BoundsChecks(t *testing.T) {
	m, err := New(10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if _, err := m.Forward(ctx, []int{1}, 4, []int{4}); err == nil {
		t.Error("expected error for position >= maxSeqLength")
	}
	if _, err := m.Forward(ctx, []int{11}, 4, []int{0}); err == nil {
		t.Error("expected error for token outside vocab")
	}
	if _, err := m.Forward(ctx, []int{1, 2}, 4, []int{0}); err == nil {
		t.Error("expected error for window/positions length mismatch")
	}
}

func TestForward_DeterministicScoring(t *testing.T) {
	m, err := New(10, WithNext(func(last int) int { return (last + 1) % 10 }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := m.Forward(context.Background(), []int{3}, 4, []int{0})
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if len(rows) != 1 || len(rows[0]) != 10 {
		t.Fatalf("expected 1x10 logits, got %dx%d", len(rows), len(rows[0]))
	}
	for id, v := range rows[0] {
		if id == 4 && v != 50.0 {
			t.Errorf("expected dominant logit at token 4")
		}
		if id != 4 && v != 0 {
			t.Errorf("expected zero logit at token %d, got %f", id, v)
		}
	}
}

func TestEndToEnd_WithEngine(t *testing.T) {
	// Drive the real engine against the toy model: greedy decoding follows
	// the next-token walk exactly.
	m, err := New(10, WithNext(func(last int) int { return (last + 1) % 10 }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e, err := engine.New(m, nil, engine.SamplerConfig{Temperature: 1.0, TopK: 1, Seed: 1})
	if err != nil {
		t.Fatalf("engine construction failed: %v", err)
	}

	res, err := e.Generate(context.Background(), []int{4}, 5, 5, -1)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	want := []int{4, 5, 6, 7, 8}
	for i := range want {
		if res.Tokens[i] != want[i] {
			t.Errorf("token[%d]: expected %d, got %d", i, want[i], res.Tokens[i])
		}
	}

	// Generate brackets the run, so the cache must be clean afterwards
	if m.CachedPositions() != 0 {
		t.Errorf("expected empty cache after bracketed generation, got %d positions", m.CachedPositions())
	}
}
