// Package config holds the per-call generation parameters and their
// validation. A Config is immutable for the duration of one generation call.
package config

import (
	"fmt"

	"github.com/parakeet-ml/parakeet/internal/engine"
)

// Config carries the user-facing generation parameters.
type Config struct {
	// MaxNewTokens is the number of tokens to generate beyond the prompt.
	MaxNewTokens int

	// Temperature scales logits by its inverse before softmax.
	Temperature float64

	// TopK restricts sampling to the K highest-logit tokens. 0 disables.
	TopK int

	// NumSamples is how many independent generations to run for one prompt.
	NumSamples int

	// Seed for the sampler's random source. 0 picks a time-based seed.
	Seed int64

	// EOSID stops generation when sampled. Negative disables.
	EOSID int

	// BlockSize is the model's maximum supported context length.
	BlockSize int
}

// Default returns the standard generation parameters.
func Default() Config {
	return Config{
		MaxNewTokens: 50,
		Temperature:  0.8,
		TopK:         20,
		NumSamples:   1,
		Seed:         1234,
		EOSID:        -1,
		BlockSize:    2048,
	}
}

// Validate checks every precondition that can be checked without knowing the
// prompt. Violations surface as engine.ErrInvalidConfig before any model
// call.
func (c *Config) Validate() error {
	if c.MaxNewTokens <= 0 {
		return fmt.Errorf("%w: max new tokens %d (must be positive)", engine.ErrInvalidConfig, c.MaxNewTokens)
	}
	if c.Temperature <= 0 {
		return fmt.Errorf("%w: temperature %g (must be > 0)", engine.ErrInvalidConfig, c.Temperature)
	}
	if c.TopK < 0 {
		return fmt.Errorf("%w: top-k %d (must be positive or 0 to disable)", engine.ErrInvalidConfig, c.TopK)
	}
	if c.NumSamples < 1 {
		return fmt.Errorf("%w: num samples %d (must be >= 1)", engine.ErrInvalidConfig, c.NumSamples)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("%w: block size %d (must be positive)", engine.ErrInvalidConfig, c.BlockSize)
	}
	return nil
}

// CheckPrompt enforces the context-length precondition for a concrete
// prompt: promptLen + MaxNewTokens must fit the model's block size. This is
// a fatal configuration error, checked before any model call.
func (c *Config) CheckPrompt(promptLen int) error {
	if promptLen <= 0 {
		return fmt.Errorf("%w: empty prompt", engine.ErrInvalidConfig)
	}
	if promptLen+c.MaxNewTokens > c.BlockSize {
		return fmt.Errorf("%w: prompt length %d + max new tokens %d exceeds block size %d",
			engine.ErrInvalidConfig, promptLen, c.MaxNewTokens, c.BlockSize)
	}
	return nil
}

// MaxReturnedTokens is the total sequence budget: prompt plus generated.
func (c *Config) MaxReturnedTokens(promptLen int) int {
	return promptLen + c.MaxNewTokens
}
