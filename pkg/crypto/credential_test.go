package crypto

import (
	"errors"
	"strings"
	"testing"
)

func testSealer(t *testing.T) *Sealer {
	t.Helper()
	key := make([]byte, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	s, err := NewSealer(key, 1)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	return s
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := testSealer(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"privkey", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae9d8f1353f"},
		{"short", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := s.Seal(tt.plaintext)
			if err != nil {
				t.Fatalf("Seal: %v", err)
			}
			if !strings.HasPrefix(sealed, "ENC[v1]:") {
				t.Fatalf("missing version prefix: %s", sealed)
			}
			got, err := s.Open(sealed)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			if got != tt.plaintext {
				t.Fatalf("round trip got %q, expected %q", got, tt.plaintext)
			}
		})
	}
}

func TestOpenPassesThroughPlaintext(t *testing.T) {
	s := testSealer(t)
	got, err := s.Open("raw-private-key")
	if err != nil || got != "raw-private-key" {
		t.Fatalf("plaintext passthrough got %q err=%v", got, err)
	}
}

func TestOpenRejectsTampered(t *testing.T) {
	s := testSealer(t)
	sealed, _ := s.Seal("secret")
	tampered := sealed[:len(sealed)-2] + "AA"
	if _, err := s.Open(tampered); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestNewSealerRejectsShortKey(t *testing.T) {
	if _, err := NewSealer([]byte("short"), 1); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}
