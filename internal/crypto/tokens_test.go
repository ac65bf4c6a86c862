package crypto

import "testing"

func TestTokenVerifier(t *testing.T) {
	v, err := NewTokenVerifier("s3cret-token")
	if err != nil {
		t.Fatalf("NewTokenVerifier failed: %v", err)
	}

	if !v.Enabled() {
		t.Error("verifier with a token should be enabled")
	}
	if !v.Verify("s3cret-token") {
		t.Error("correct token rejected")
	}
	if v.Verify("wrong-token") {
		t.Error("wrong token accepted")
	}
	if v.Verify("") {
		t.Error("empty token accepted")
	}
}

func TestTokenVerifier_NoToken(t *testing.T) {
	v, err := NewTokenVerifier("")
	if err != nil {
		t.Fatalf("NewTokenVerifier failed: %v", err)
	}

	if v.Enabled() {
		t.Error("verifier without a token should be disabled")
	}
	if v.Verify("anything") {
		t.Error("disabled verifier must reject everything")
	}
}
