// Package tokenizer converts between text and token ids. Tokenizers are
// pure: they share no state with the engine.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer encodes text into token ids and decodes them back.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// TikToken wraps an OpenAI BPE encoding (cl100k_base, p50k_base, ...).
type TikToken struct {
	name string
	enc  *tiktoken.Tiktoken
}

// NewTikToken loads the named encoding. The vocabulary file is fetched and
// cached by the tiktoken library on first use.
func NewTikToken(encoding string) (*TikToken, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tiktoken encoding %q: %w", encoding, err)
	}
	return &TikToken{name: encoding, enc: enc}, nil
}

// Name returns the encoding name.
func (t *TikToken) Name() string {
	return t.name
}

func (t *TikToken) Encode(text string) ([]int, error) {
	return t.enc.Encode(text, nil, nil), nil
}

func (t *TikToken) Decode(ids []int) (string, error) {
	return t.enc.Decode(ids), nil
}
