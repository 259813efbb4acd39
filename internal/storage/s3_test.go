package storage

import (
	"bytes"
	"strings"
	"testing"
)

func TestGCMRoundTrip(t *testing.T) {
	plain := []byte("%PDF-1.4 test document body")

	enc, err := encryptGCM(plain, "secret")
	if err != nil {
		t.Fatalf("encryptGCM() error = %v", err)
	}
	if !strings.HasPrefix(string(enc), gcmMagic) {
		t.Fatal("encrypted payload missing magic prefix")
	}
	if bytes.Contains(enc, plain) {
		t.Fatal("ciphertext contains plaintext")
	}

	dec, err := decryptGCM(enc, "secret")
	if err != nil {
		t.Fatalf("decryptGCM() error = %v", err)
	}
	if !bytes.Equal(dec, plain) {
		t.Fatalf("round trip mismatch: %q", dec)
	}
}

func TestGCMWrongPassword(t *testing.T) {
	enc, err := encryptGCM([]byte("data"), "right")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := decryptGCM(enc, "wrong"); err == nil {
		t.Fatal("expected auth failure with wrong password")
	}
}

func TestGCMTooShort(t *testing.T) {
	if _, err := decryptGCM([]byte(gcmMagic+"short"), "pw"); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}
