package password

import "testing"

func TestHashAndVerify(t *testing.T) {
	h := NewBcryptHasher(4) // 测试用最小成本

	digest, err := h.Hash("Secret1!")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if digest == "Secret1!" {
		t.Fatal("digest must not equal plaintext")
	}

	if !h.Verify("Secret1!", digest) {
		t.Error("expected correct password to verify")
	}
	if h.Verify("wrong", digest) {
		t.Error("expected wrong password to fail")
	}
}

func TestNewBcryptHasher_ClampsInvalidCost(t *testing.T) {
	h := NewBcryptHasher(100)
	if _, err := h.Hash("x"); err != nil {
		t.Fatalf("expected fallback cost to work, got %v", err)
	}
}
