package engine

import "fmt"

// SequenceBuffer owns the token sequence being built. Capacity is fixed at
// creation; entries [0, len) are valid prompt/generated tokens and entries
// [len, cap) are uninitialized. Only the engine mutates it, one token per
// decode step.
type SequenceBuffer struct {
	tokens []int
	length int
}

// NewSequenceBuffer allocates a buffer of the given capacity and copies the
// prompt into it. The cursor starts at the prompt length.
func NewSequenceBuffer(capacity int, prompt []int) (*SequenceBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d (must be positive)", ErrInvalidConfig, capacity)
	}
	if len(prompt) > capacity {
		return nil, fmt.Errorf("%w: prompt length %d exceeds capacity %d", ErrInvalidConfig, len(prompt), capacity)
	}
	b := &SequenceBuffer{
		tokens: make([]int, capacity),
		length: len(prompt),
	}
	copy(b.tokens, prompt)
	return b, nil
}

// Append writes one token at the cursor and advances it.
func (b *SequenceBuffer) Append(id int) error {
	if b.length >= len(b.tokens) {
		return fmt.Errorf("%w: write at index %d, capacity %d", ErrCapacityExceeded, b.length, len(b.tokens))
	}
	b.tokens[b.length] = id
	b.length++
	return nil
}

// Prefix returns the valid [0, len) slice. The engine copies it before
// handing a result to the caller.
func (b *SequenceBuffer) Prefix() []int {
	return b.tokens[:b.length]
}

// Len returns the cursor position, i.e. the index of the next write.
func (b *SequenceBuffer) Len() int {
	return b.length
}

// Cap returns the fixed capacity.
func (b *SequenceBuffer) Cap() int {
	return len(b.tokens)
}

// Full reports whether the buffer has no room left.
func (b *SequenceBuffer) Full() bool {
	return b.length == len(b.tokens)
}
