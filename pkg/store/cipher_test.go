package store

import (
	"strings"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 7)
	}
	return key
}

func TestAnswerCipherRoundTrip(t *testing.T) {
	c, err := NewAnswerCipher(testKey())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sealed, err := c.Seal("tonight's answer")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed == "tonight's answer" {
		t.Fatal("seal returned plaintext")
	}
	plain, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if plain != "tonight's answer" {
		t.Fatalf("round-trip failed: %q", plain)
	}
}

func TestAnswerCipherEmptyPassthrough(t *testing.T) {
	c, err := NewAnswerCipher(testKey())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sealed, err := c.Seal("")
	if err != nil || sealed != "" {
		t.Fatalf("empty seal: %q %v", sealed, err)
	}
	plain, err := c.Open("")
	if err != nil || plain != "" {
		t.Fatalf("empty open: %q %v", plain, err)
	}
}

func TestAnswerCipherRejectsBadKey(t *testing.T) {
	if _, err := NewAnswerCipher([]byte("short")); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestAnswerCipherRejectsTampering(t *testing.T) {
	c, err := NewAnswerCipher(testKey())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sealed, err := c.Seal("original")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	tampered := strings.Map(func(r rune) rune {
		if r == 'A' {
			return 'B'
		}
		return 'A'
	}, sealed)
	if _, err := c.Open(tampered); err == nil {
		t.Fatal("tampered ciphertext opened cleanly")
	}
}
