package util

import "testing"

func TestHashKey(t *testing.T) {
	key := "api-key-12345"
	got := HashKey(key)
	if got != HashKey(key) {
		t.Fatalf("expected stable hash, got %s", got)
	}
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(got))
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("api-key-12345")
	if len(fp) != 16 || fp != HashKey("api-key-12345")[:16] {
		t.Fatalf("unexpected fingerprint %q", fp)
	}
	if Fingerprint("a") == Fingerprint("b") {
		t.Fatalf("expected distinct fingerprints")
	}
}
