package engine

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// SamplerConfig configures the sampling policy for one engine.
type SamplerConfig struct {
	// Temperature scales logits by 1/Temperature before softmax. Must be
	// positive.
	Temperature float64

	// TopK restricts sampling to the K highest-logit tokens. 0 disables the
	// mask; negative values are invalid.
	TopK int

	// Seed for the random source. 0 picks a time-based seed.
	Seed int64
}

// Sampler turns a logits row into one sampled token id. Given a fixed seed
// and identical logits the result is reproducible.
type Sampler struct {
	Config SamplerConfig
	rng    *rand.Rand
}

func NewSampler(cfg SamplerConfig) (*Sampler, error) {
	if cfg.Temperature <= 0 {
		return nil, fmt.Errorf("%w: temperature %g (must be > 0)", ErrInvalidConfig, cfg.Temperature)
	}
	if cfg.TopK < 0 {
		return nil, fmt.Errorf("%w: top-k %d (must be positive or 0 to disable)", ErrInvalidConfig, cfg.TopK)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	return &Sampler{
		Config: cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Sample applies temperature scaling, the optional top-k mask, softmax, and
// one multinomial draw over the full vocabulary. Masked entries carry zero
// probability mass.
func (s *Sampler) Sample(logits []float32) (int, error) {
	if len(logits) == 0 {
		return 0, fmt.Errorf("%w: empty logits", ErrInvalidConfig)
	}
	if s.Config.TopK > len(logits) {
		return 0, fmt.Errorf("%w: top-k %d exceeds vocabulary size %d", ErrInvalidConfig, s.Config.TopK, len(logits))
	}

	scaled := scaleByTemperature(logits, s.Config.Temperature)
	if s.Config.TopK > 0 {
		maskBelowTopK(scaled, s.Config.TopK)
	}
	probs := softmax(scaled)
	return s.draw(probs), nil
}

func scaleByTemperature(logits []float32, temperature float64) []float64 {
	scaled := make([]float64, len(logits))
	for i, v := range logits {
		scaled[i] = float64(v) / temperature
	}
	return scaled
}

// maskBelowTopK replaces every entry strictly below the k-th largest value
// with -Inf. Ties at the threshold all survive, so more than k entries can
// remain finite.
func maskBelowTopK(logits []float64, k int) {
	vals := make([]float64, len(logits))
	copy(vals, logits)
	sort.Sort(sort.Reverse(sort.Float64Slice(vals)))
	threshold := vals[k-1]

	for i := range logits {
		if logits[i] < threshold {
			logits[i] = math.Inf(-1)
		}
	}
}

// softmax with max subtraction for stability. exp(-Inf) contributes zero,
// which is exactly how masked entries drop out of the distribution.
func softmax(logits []float64) []float64 {
	maxVal := math.Inf(-1)
	for _, v := range logits {
		if v > maxVal {
			maxVal = v
		}
	}

	probs := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		probs[i] = math.Exp(v - maxVal)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// draw selects one index from the distribution via inverse CDF.
func (s *Sampler) draw(probs []float64) int {
	r := s.rng.Float64()
	acc := 0.0
	last := 0
	for i, p := range probs {
		if p <= 0 {
			continue
		}
		last = i
		acc += p
		if r < acc {
			return i
		}
	}
	// Floating point shortfall: acc summed to slightly under 1.0. Fall back
	// to the last token with positive mass.
	return last
}
