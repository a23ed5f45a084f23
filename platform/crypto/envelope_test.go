package crypto

import (
	"strings"
	"testing"
)

const passphrase = "test-master-key"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	sealed, err := Encrypt("twilio-auth-token-value", passphrase)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if !IsEncrypted(sealed) {
		t.Fatalf("expected envelope prefix on %q", sealed)
	}

	plain, err := Decrypt(sealed, passphrase)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if plain != "twilio-auth-token-value" {
		t.Fatalf("round trip mismatch: got %q", plain)
	}
}

func TestEncryptProducesUniqueCiphertexts(t *testing.T) {
	first, err := Encrypt("same-value", passphrase)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	second, err := Encrypt("same-value", passphrase)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if first == second {
		t.Fatal("expected fresh salt and nonce per value")
	}
}

func TestDecryptWrongPassphraseFails(t *testing.T) {
	sealed, err := Encrypt("secret", passphrase)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}
	if _, err := Decrypt(sealed, "wrong-key"); err == nil {
		t.Fatal("expected decryption failure with wrong passphrase")
	}
}

func TestDecryptPassesThroughPlaintext(t *testing.T) {
	plain, err := Decrypt("not-encrypted", passphrase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain != "not-encrypted" {
		t.Fatalf("expected passthrough, got %q", plain)
	}
}

func TestMask(t *testing.T) {
	masked := Mask("SK1234567890abcd")
	if !strings.HasSuffix(masked, "abcd") {
		t.Fatalf("expected last four visible, got %q", masked)
	}
	if strings.Contains(masked[:len(masked)-4], "1") {
		t.Fatalf("expected body masked, got %q", masked)
	}
	if Mask("abc") != "***" {
		t.Fatalf("short values must be fully masked, got %q", Mask("abc"))
	}
}
