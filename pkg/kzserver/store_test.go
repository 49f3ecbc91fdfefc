package kzserver

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestGenerateAccessKeyHashesThePlaintext(t *testing.T) {
	plaintext, hash, err := generateAccessKey()
	if err != nil {
		t.Fatalf("generateAccessKey error: %v", err)
	}
	if plaintext == "" {
		t.Fatal("expected a non-empty plaintext key")
	}
	if hash == plaintext {
		t.Fatal("expected the stored hash to differ from the plaintext key")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)); err != nil {
		t.Errorf("bcrypt hash does not match its own plaintext: %v", err)
	}
}

func TestGenerateAccessKeyIsUnique(t *testing.T) {
	first, _, err := generateAccessKey()
	if err != nil {
		t.Fatalf("generateAccessKey error: %v", err)
	}
	second, _, err := generateAccessKey()
	if err != nil {
		t.Fatalf("generateAccessKey error: %v", err)
	}
	if first == second {
		t.Errorf("expected two independently generated keys to differ")
	}
}

func TestGenerateAccessKeyRejectsWrongPlaintext(t *testing.T) {
	_, hash, err := generateAccessKey()
	if err != nil {
		t.Fatalf("generateAccessKey error: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("wrong-key")); err == nil {
		t.Errorf("expected a mismatched plaintext to fail comparison")
	}
}
