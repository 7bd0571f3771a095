package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/parakeet-ml/parakeet/internal/logger"
	"github.com/parakeet-ml/parakeet/internal/metrics"
)

// Engine orchestrates the decode loop: it owns the position cursor, feeds
// token windows to the model, samples from the last row of logits, and
// detects termination. One Engine drives one Model; generations run strictly
// one at a time.
type Engine struct {
	model   Model
	runtime *Runtime
	sampler *Sampler
}

func New(model Model, rt *Runtime, samplerCfg SamplerConfig) (*Engine, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil model", ErrInvalidConfig)
	}
	sampler, err := NewSampler(samplerCfg)
	if err != nil {
		return nil, err
	}
	if rt == nil {
		rt = &Runtime{}
	}
	return &Engine{
		model:   model,
		runtime: rt,
		sampler: sampler,
	}, nil
}

// Result is the outcome of one generation run.
type Result struct {
	// Tokens is the prompt plus everything generated, eos included when one
	// terminated the run. Downstream decoding may depend on the eos token
	// being present for text boundary detection, so it is never stripped.
	Tokens []int

	// HitEOS is true when the run stopped on the eos token rather than
	// buffer capacity.
	HitEOS bool

	// Generated counts new tokens only (excludes the prompt).
	Generated int

	Elapsed time.Duration
}

// TokensPerSecond reports decode throughput for the run.
func (r Result) TokensPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Generated) / r.Elapsed.Seconds()
}

// Generation is the mutable state of one in-progress run: the sequence
// buffer and the step counter. Created by NewGeneration, driven by Step or
// Run, discarded at the end of the call.
type Generation struct {
	engine       *Engine
	buf          *SequenceBuffer
	maxSeqLength int
	eosID        int // negative = no eos configured
	promptLen    int
	steps        int // completed decode steps
}

// NewGeneration validates the call preconditions and allocates the sequence
// buffer with the prompt copied in and the cursor at the prompt length.
//
// maxReturnedTokens is the total budget, prompt included. It must exceed the
// prompt length and must not exceed maxSeqLength. eosID < 0 disables
// eos termination.
func (e *Engine) NewGeneration(prompt []int, maxReturnedTokens, maxSeqLength, eosID int) (*Generation, error) {
	if len(prompt) == 0 {
		return nil, fmt.Errorf("%w: empty prompt", ErrInvalidConfig)
	}
	if maxReturnedTokens <= len(prompt) {
		return nil, fmt.Errorf("%w: max returned tokens %d must exceed prompt length %d",
			ErrInvalidConfig, maxReturnedTokens, len(prompt))
	}
	if maxReturnedTokens > maxSeqLength {
		return nil, fmt.Errorf("%w: max returned tokens %d exceeds max sequence length %d",
			ErrInvalidConfig, maxReturnedTokens, maxSeqLength)
	}

	buf, err := NewSequenceBuffer(maxReturnedTokens, prompt)
	if err != nil {
		return nil, err
	}
	metrics.RecordPromptLength(len(prompt))

	return &Generation{
		engine:       e,
		buf:          buf,
		maxSeqLength: maxSeqLength,
		eosID:        eosID,
		promptLen:    len(prompt),
	}, nil
}

// Step performs one decode step and returns the sampled token.
//
// The first step feeds the whole prompt window with positions 0..T-1 so the
// model can populate its cache; every later step feeds only the newest
// position, since earlier ones are already cached.
func (g *Generation) Step(ctx context.Context) (int, error) {
	cursor := g.buf.Len()

	var window, positions []int
	if g.steps == 0 {
		window = g.buf.Prefix()
		positions = make([]int, cursor)
		for i := range positions {
			positions[i] = i
		}
	} else {
		window = g.buf.Prefix()[cursor-1:]
		positions = []int{cursor - 1}
	}

	start := time.Now()
	logits, err := g.engine.model.Forward(ctx, window, g.maxSeqLength, positions)
	if err != nil {
		metrics.RecordModelFailure()
		return 0, &ModelError{Step: g.steps, Position: cursor - 1, Err: err}
	}
	if len(logits) != len(window) {
		metrics.RecordModelFailure()
		return 0, &ModelError{
			Step:     g.steps,
			Position: cursor - 1,
			Err:      fmt.Errorf("logits rows %d do not match window length %d", len(logits), len(window)),
		}
	}

	id, err := g.engine.sampler.Sample(logits[len(logits)-1])
	if err != nil {
		return 0, err
	}
	if err := g.buf.Append(id); err != nil {
		return 0, err
	}
	g.steps++

	g.engine.runtime.stepBarrier()
	metrics.RecordStep(time.Since(start))
	return id, nil
}

// Run loops Step until the buffer is full or the eos token is sampled. The
// eos token is written before the loop stops, so it appears in the result.
// Cancellation is honored at step boundaries only; a step in flight is never
// interrupted, which keeps buffer and cache state coherent.
//
// Run does not reset the model cache. Generate and Stream bracket runs with
// resets; callers driving Run directly must do the same between independent
// generations.
func (g *Generation) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	hitEOS := false

	for !g.buf.Full() {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}

		id, err := g.Step(ctx)
		if err != nil {
			return Result{}, err
		}
		if g.eosID >= 0 && id == g.eosID {
			hitEOS = true
			break
		}
	}

	prefix := g.buf.Prefix()
	tokens := make([]int, len(prefix))
	copy(tokens, prefix)

	res := Result{
		Tokens:    tokens,
		HitEOS:    hitEOS,
		Generated: len(tokens) - g.promptLen,
		Elapsed:   time.Since(start),
	}
	metrics.RecordGeneration(res.Generated, res.Elapsed, res.HitEOS)
	return res, nil
}

// Generate runs one bracketed generation: the model cache is reset after the
// run on every exit path, including failures. This is the entry point for a
// single independent sample; use Stream for several.
func (e *Engine) Generate(ctx context.Context, prompt []int, maxReturnedTokens, maxSeqLength, eosID int) (Result, error) {
	g, err := e.NewGeneration(prompt, maxReturnedTokens, maxSeqLength, eosID)
	if err != nil {
		return Result{}, err
	}
	defer e.resetCache(ctx)
	return g.Run(ctx)
}

// resetCache releases the model's cached state. A reset failure cannot
// invalidate an already-produced result, so it is logged and counted rather
// than propagated.
func (e *Engine) resetCache(ctx context.Context) {
	err := e.model.ResetCache(ctx)
	metrics.RecordCacheReset(err != nil)
	if err != nil {
		logger.Log.Warn("model cache reset failed", "error", err)
	}
}
