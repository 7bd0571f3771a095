package engine

import (
	"context"
	"fmt"
)

// Stream yields a fixed number of independent generation results, one at a
// time and in order. The model cache is reset between elements and after the
// last one, on every exit path. A Stream is finite and not restartable; a
// failed sample poisons the remainder.
//
// The Stream assumes exclusive use of the engine's model for its lifetime.
type Stream struct {
	engine            *Engine
	prompt            []int
	maxReturnedTokens int
	maxSeqLength      int
	eosID             int
	remaining         int
	failed            bool
}

// Stream validates the generation parameters once, eagerly, and returns a
// stream of numSamples results. Validation failures surface here, before any
// model call.
func (e *Engine) Stream(prompt []int, maxReturnedTokens, maxSeqLength, eosID, numSamples int) (*Stream, error) {
	if numSamples < 1 {
		return nil, fmt.Errorf("%w: num samples %d (must be >= 1)", ErrInvalidConfig, numSamples)
	}
	// Run the per-generation checks now so a bad config fails before the
	// first Next instead of inside it.
	if _, err := e.NewGeneration(prompt, maxReturnedTokens, maxSeqLength, eosID); err != nil {
		return nil, err
	}

	p := make([]int, len(prompt))
	copy(p, prompt)

	return &Stream{
		engine:            e,
		prompt:            p,
		maxReturnedTokens: maxReturnedTokens,
		maxSeqLength:      maxSeqLength,
		eosID:             eosID,
		remaining:         numSamples,
	}, nil
}

// More reports whether another sample is available.
func (s *Stream) More() bool {
	return s.remaining > 0 && !s.failed
}

// Next produces the next sample. Each call is one full bracketed generation:
// a fresh sequence buffer, a run, and a cache reset regardless of outcome.
func (s *Stream) Next(ctx context.Context) (Result, error) {
	if !s.More() {
		return Result{}, fmt.Errorf("%w: stream exhausted", ErrInvalidConfig)
	}

	g, err := s.engine.NewGeneration(s.prompt, s.maxReturnedTokens, s.maxSeqLength, s.eosID)
	if err != nil {
		s.failed = true
		return Result{}, err
	}

	defer s.engine.resetCache(ctx)
	res, err := g.Run(ctx)
	if err != nil {
		s.failed = true
		return Result{}, err
	}
	s.remaining--
	return res, nil
}
