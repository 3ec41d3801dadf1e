package token

import (
	"testing"
	"time"
)

func TestSignAndVerify(t *testing.T) {
	codec := NewCodec("test-secret")

	raw, err := codec.Sign("user-1", "alice@x.com", "student", 15*time.Minute)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	claims, err := codec.Verify(raw)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("expected subject user-1, got %q", claims.Subject)
	}
	if claims.Email != "alice@x.com" || claims.Role != "student" {
		t.Errorf("claims mismatch: %+v", claims)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	raw, err := NewCodec("secret-a").Sign("user-1", "a@x.com", "student", time.Minute)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := NewCodec("secret-b").Verify(raw); err == nil {
		t.Fatal("expected verify to fail with wrong secret")
	}
}

func TestVerify_Expired(t *testing.T) {
	codec := NewCodec("test-secret")
	raw, err := codec.Sign("user-1", "a@x.com", "student", -time.Minute)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if _, err := codec.Verify(raw); err == nil {
		t.Fatal("expected verify to fail for expired token")
	}
}

func TestDecode_IgnoresExpiryAndSignature(t *testing.T) {
	codec := NewCodec("test-secret")
	raw, err := codec.Sign("user-1", "a@x.com", "student", -time.Minute)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	claims := codec.Decode(raw)
	if claims == nil {
		t.Fatal("expected decode to succeed for expired token")
	}
	if claims.Subject != "user-1" {
		t.Errorf("expected subject user-1, got %q", claims.Subject)
	}

	if got := codec.Decode("not-a-jwt"); got != nil {
		t.Errorf("expected nil for malformed token, got %+v", got)
	}
}

func TestExpirySeconds(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"15m", 900},
		{"7d", 604800},
		{"30s", 30},
		{"2h", 7200},
		{"1d", 86400},
		{"", 900},
		{"abc", 900},
		{"15", 900},
		{"m15", 900},
		{"15w", 900},
	}
	for _, c := range cases {
		if got := ExpirySeconds(c.in); got != c.want {
			t.Errorf("ExpirySeconds(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
