package engine

import (
	"errors"
	"testing"
)

func TestSampler_TopK1_IsGreedy(t *testing.T) {
	s, err := NewSampler(SamplerConfig{Temperature: 1.0, TopK: 1, Seed: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logits := []float32{2.0, 10.0, 5.0, 1.0}

	// TopK=1 masks everything below the max, so only id 1 has mass
	for i := 0; i < 50; i++ {
		id, err := s.Sample(logits)
		if err != nil {
			t.Fatalf("sample failed: %v", err)
		}
		if id != 1 {
			t.Fatalf("TopK=1 failed. Expected 1 (logit 10.0), got %d", id)
		}
	}
}

func TestSampler_TopK_Filtering(t *testing.T) {
	// K=2. Top 2 are id 1 (10.0) and id 2 (5.0).
	// id 0 (2.0) and id 3 (1.0) must have zero probability mass.
	s, err := NewSampler(SamplerConfig{Temperature: 1.0, TopK: 2, Seed: 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logits := []float32{2.0, 10.0, 5.0, 1.0}

	for i := 0; i < 200; i++ {
		id, err := s.Sample(logits)
		if err != nil {
			t.Fatalf("sample failed: %v", err)
		}
		if id == 0 || id == 3 {
			t.Fatalf("TopK=2 failed. Got excluded token %d", id)
		}
	}
}

func TestSampler_TopK_TiesAtThresholdSurvive(t *testing.T) {
	// K=1, but ids 0 and 1 tie at the threshold value 5.0. Both are kept
	// (strictly-less-than masking), id 2 is masked.
	s, err := NewSampler(SamplerConfig{Temperature: 1.0, TopK: 1, Seed: 99})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logits := []float32{5.0, 5.0, 1.0}
	seen := map[int]bool{}
	for i := 0; i < 400; i++ {
		id, err := s.Sample(logits)
		if err != nil {
			t.Fatalf("sample failed: %v", err)
		}
		if id == 2 {
			t.Fatalf("masked token 2 was sampled")
		}
		seen[id] = true
	}

	// With 400 draws at 50/50 odds, both survivors should appear
	if !seen[0] || !seen[1] {
		t.Errorf("expected both tied tokens to be sampleable, saw %v", seen)
	}
}

func TestSampler_NoTopK_FullDistribution(t *testing.T) {
	// TopK disabled: plain softmax over all logits. With flat logits every
	// token must be reachable.
	s, err := NewSampler(SamplerConfig{Temperature: 0.8, Seed: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logits := []float32{1.0, 1.0, 1.0, 1.0}
	seen := map[int]bool{}
	for i := 0; i < 400; i++ {
		id, err := s.Sample(logits)
		if err != nil {
			t.Fatalf("sample failed: %v", err)
		}
		seen[id] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected all 4 tokens sampleable with flat logits, saw %v", seen)
	}
}

func TestSampler_LowTemperatureSharpens(t *testing.T) {
	// Temperature 0.1 turns a 10-logit gap into a 100-nat gap. The lower
	// token's probability is ~e^-100, effectively unreachable.
	s, err := NewSampler(SamplerConfig{Temperature: 0.1, Seed: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logits := []float32{0.0, 10.0}
	for i := 0; i < 100; i++ {
		id, err := s.Sample(logits)
		if err != nil {
			t.Fatalf("sample failed: %v", err)
		}
		if id != 1 {
			t.Fatalf("expected token 1 at low temperature, got %d", id)
		}
	}
}

func TestSampler_Determinism(t *testing.T) {
	logits := []float32{1.0, 2.0, 3.0, 2.0, 1.0}

	run := func() []int {
		s, err := NewSampler(SamplerConfig{Temperature: 0.8, TopK: 3, Seed: 1234})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := make([]int, 20)
		for i := range out {
			id, err := s.Sample(logits)
			if err != nil {
				t.Fatalf("sample failed: %v", err)
			}
			out[i] = id
		}
		return out
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("draw %d differs with identical seed: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestSampler_InvalidConfig(t *testing.T) {
	if _, err := NewSampler(SamplerConfig{Temperature: 0}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("temperature 0: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewSampler(SamplerConfig{Temperature: -0.5}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("negative temperature: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := NewSampler(SamplerConfig{Temperature: 1.0, TopK: -1}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("negative top-k: expected ErrInvalidConfig, got %v", err)
	}

	// TopK exceeding the vocabulary is only detectable once logits arrive
	s, err := NewSampler(SamplerConfig{Temperature: 1.0, TopK: 10, Seed: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Sample([]float32{1.0, 2.0}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("top-k > vocab: expected ErrInvalidConfig, got %v", err)
	}
}
