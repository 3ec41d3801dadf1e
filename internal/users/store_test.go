package users

import "testing"

func TestNormalizeEmail(t *testing.T) {
	cases := map[string]string{
		"  Alice@X.COM ": "alice@x.com",
		"bob@x.com":      "bob@x.com",
		"MiXeD@CaSe.IO":  "mixed@case.io",
	}
	for in, want := range cases {
		if got := NormalizeEmail(in); got != want {
			t.Errorf("NormalizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGenerateToken(t *testing.T) {
	a, err := generateToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := generateToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
	if a == b {
		t.Error("expected unique tokens")
	}
}
