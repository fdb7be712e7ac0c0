package crypto

import (
	"fmt"
	"testing"
)

func TestToken_Deterministic(t *testing.T) {
	t.Parallel()
	h := NewHasher("")
	a := h.Token("alice")
	b := h.Token("alice")
	if a != b {
		t.Fatalf("Token not deterministic: %q != %q", a, b)
	}
	if a == h.Token("bob") {
		t.Fatalf("Token must change with identity")
	}
}

func TestToken_FixedWidthHex(t *testing.T) {
	t.Parallel()
	h := NewHasher("")
	for _, raw := range []string{"", "a", "alice", "студент", "a-very-long-identity-with-lots-of-characters"} {
		tok := h.Token(raw)
		if len(tok) != TokenLen {
			t.Fatalf("Token(%q) len=%d, want %d", raw, len(tok), TokenLen)
		}
		if !ValidToken(tok) {
			t.Fatalf("Token(%q)=%q fails ValidToken", raw, tok)
		}
	}
}

func TestToken_NoCollisionsOverCorpus(t *testing.T) {
	t.Parallel()
	h := NewHasher("")
	seen := make(map[string]string)
	for i := 0; i < 5000; i++ {
		raw := fmt.Sprintf("student-%d", i)
		tok := h.Token(raw)
		if prev, dup := seen[tok]; dup {
			t.Fatalf("collision: %q and %q -> %s", prev, raw, tok)
		}
		seen[tok] = raw
	}
}

func TestToken_PepperSeparatesDeployments(t *testing.T) {
	t.Parallel()
	if NewHasher("dep-a").Token("alice") == NewHasher("dep-b").Token("alice") {
		t.Fatalf("different peppers must yield different tokens")
	}
}

func TestValidToken_Shapes(t *testing.T) {
	t.Parallel()
	if ValidToken("short") {
		t.Fatalf("short string accepted")
	}
	bad := make([]byte, TokenLen)
	for i := range bad {
		bad[i] = 'z'
	}
	if ValidToken(string(bad)) {
		t.Fatalf("non-hex string accepted")
	}
}

func TestRandBytes_LengthUniq(t *testing.T) {
	t.Parallel()
	a, err := RandBytes(16)
	if err != nil || len(a) != 16 {
		t.Fatalf("RandBytes: len=%d err=%v", len(a), err)
	}
	b, _ := RandBytes(16)
	if string(a) == string(b) {
		t.Fatalf("RandBytes produced equal slices")
	}
}

func TestVerifierEqual(t *testing.T) {
	t.Parallel()
	if !VerifierEqual([]byte("same"), []byte("same")) {
		t.Fatalf("equal slices reported unequal")
	}
	if VerifierEqual([]byte("same"), []byte("diff")) {
		t.Fatalf("unequal slices reported equal")
	}
	if VerifierEqual([]byte("same"), []byte("samee")) {
		t.Fatalf("length mismatch reported equal")
	}
}
