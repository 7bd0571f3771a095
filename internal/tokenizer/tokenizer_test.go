package tokenizer

import "testing"

func TestTikTokenRoundTrip(t *testing.T) {
	tok, err := NewTikToken("cl100k_base")
	if err != nil {
		// The encoding file is fetched on first use; offline environments
		// can't run this test.
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}

	text := "Hello, my name is"
	ids, err := tok.Encode(text)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if len(ids) == 0 {
		t.Fatal("expected non-empty token sequence")
	}

	decoded, err := tok.Decode(ids)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded != text {
		t.Errorf("round trip mismatch: %q -> %q", text, decoded)
	}
}

func TestTikTokenUnknownEncoding(t *testing.T) {
	if _, err := NewTikToken("no_such_encoding"); err == nil {
		t.Error("expected error for unknown encoding")
	}
}
