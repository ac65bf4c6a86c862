package crypto

import (
	"encoding/base64"
	"testing"
)

func TestNewEncryptor_Base64Key(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	encodedKey := base64.StdEncoding.EncodeToString(key)

	enc, err := NewEncryptor(encodedKey)
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}
	if enc == nil {
		t.Fatal("Encryptor is nil")
	}
}

func TestNewEncryptor_SecretString(t *testing.T) {
	// A plain string falls back to HKDF derivation
	enc, err := NewEncryptor("my-secret-password")
	if err != nil {
		t.Fatalf("NewEncryptor with secret failed: %v", err)
	}
	if enc == nil {
		t.Fatal("Encryptor is nil")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	enc, err := NewEncryptor("test-encryption-key-12345")
	if err != nil {
		t.Fatalf("NewEncryptor failed: %v", err)
	}

	plaintext := "my-super-secret-refresh-token"

	ciphertext, err := enc.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	if string(ciphertext) == plaintext {
		t.Fatal("Ciphertext equals plaintext - encryption did not work")
	}

	decrypted, err := enc.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if decrypted != plaintext {
		t.Fatalf("Decrypted text doesn't match: got %q, want %q", decrypted, plaintext)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	enc1, _ := NewEncryptor("key-one")
	enc2, _ := NewEncryptor("key-two")

	ciphertext, err := enc1.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := enc2.Decrypt(ciphertext); err == nil {
		t.Fatal("Decrypt with wrong key should fail")
	}
}

func TestDecrypt_Tampered(t *testing.T) {
	enc, _ := NewEncryptor("test-key")

	ciphertext, err := enc.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	ciphertext[len(ciphertext)-1] ^= 0xff
	if _, err := enc.Decrypt(ciphertext); err == nil {
		t.Fatal("Decrypt of tampered ciphertext should fail")
	}
}

func TestDecrypt_TooShort(t *testing.T) {
	enc, _ := NewEncryptor("test-key")
	if _, err := enc.Decrypt([]byte{1, 2, 3}); err == nil {
		t.Fatal("Decrypt of truncated ciphertext should fail")
	}
}
