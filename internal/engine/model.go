package engine

import "context"

// Logits holds one row of vocabulary scores per window entry.
type Logits [][]float32

// Model is a stateful causal sequence scorer. Position i's output depends
// only on positions <= i. Implementations may keep a KV-cache keyed by the
// positions passed to Forward; cached state is valid for the duration of one
// generation and must be cleared with ResetCache before the model is reused
// for an independent generation.
//
// The engine brackets every generation it runs with ResetCache on all exit
// paths, including failures. Callers driving Forward directly carry that
// responsibility themselves.
type Model interface {
	// Forward scores the window and returns one logits row per entry.
	// positions gives the absolute sequence position of each window entry;
	// the model must not depend on any position not passed here or cached
	// earlier within the same generation.
	Forward(ctx context.Context, window []int, maxSeqLength int, positions []int) (Logits, error)

	// ResetCache clears all cached per-position state.
	ResetCache(ctx context.Context) error
}

// Precision selects the numeric mode a model backend runs in. A closed set,
// not a free-form string.
type Precision int

const (
	PrecisionAuto Precision = iota
	PrecisionFP32
	PrecisionFP16
	PrecisionInt8
	PrecisionInt4
)

func (p Precision) String() string {
	switch p {
	case PrecisionFP32:
		return "fp32"
	case PrecisionFP16:
		return "fp16"
	case PrecisionInt8:
		return "int8"
	case PrecisionInt4:
		return "int4"
	default:
		return "auto"
	}
}

// Runtime is the explicit execution context for an engine. It replaces any
// ambient device singleton: device identity, numeric mode, and the optional
// per-step barrier all travel with it.
type Runtime struct {
	Device    string
	Precision Precision

	// Barrier, when set, runs after each decode step before the next
	// forward call. Backends that need explicit execution barriers between
	// dependent steps hook in here; everyone else leaves it nil.
	Barrier func()
}

func (r *Runtime) stepBarrier() {
	if r != nil && r.Barrier != nil {
		r.Barrier()
	}
}
