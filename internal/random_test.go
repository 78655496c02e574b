package internal

import (
	"strings"
	"testing"
)

func TestNewOTPShape(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := NewOTP(6)
		if err != nil {
			t.Fatalf("NewOTP: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		if strings.Trim(code, "0123456789") != "" {
			t.Fatalf("non-digit in %q", code)
		}
	}
}

func TestNewOTPRejectsBadLength(t *testing.T) {
	if _, err := NewOTP(4); err == nil {
		t.Fatal("expected error for 4 digits")
	}
	if _, err := NewOTP(11); err == nil {
		t.Fatal("expected error for 11 digits")
	}
}

func TestEmailFingerprintNormalizes(t *testing.T) {
	a := EmailFingerprint("User@Example.com ")
	b := EmailFingerprint("user@example.com")
	if a != b {
		t.Fatalf("fingerprints differ: %s vs %s", a, b)
	}
	if len(a) != 12 || strings.Contains(a, "@") {
		t.Fatalf("unexpected fingerprint %q", a)
	}
}

// FuzzNewOTPNeverPanics keeps the generator total over its accepted range.
func FuzzNewOTPNeverPanics(f *testing.F) {
	f.Add(6)
	f.Add(0)
	f.Add(-3)
	f.Fuzz(func(t *testing.T, digits int) {
		code, err := NewOTP(digits)
		if err == nil && len(code) != digits {
			t.Fatalf("length mismatch: %d vs %q", digits, code)
		}
	})
}
