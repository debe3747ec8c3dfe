package security

import (
	"testing"
	"time"
)

func TestGenerateTOTPSecret(t *testing.T) {
	secret, err := GenerateTOTPSecret()
	if err != nil {
		t.Fatalf("GenerateTOTPSecret returned error: %v", err)
	}
	// 20 bytes -> 32 base32 characters without padding.
	if len(secret) != 32 {
		t.Fatalf("expected 32-character secret, got %d", len(secret))
	}

	other, err := GenerateTOTPSecret()
	if err != nil {
		t.Fatalf("GenerateTOTPSecret returned error: %v", err)
	}
	if secret == other {
		t.Fatalf("expected distinct secrets")
	}
}

func TestGenerateTOTP_DeterministicWithinStep(t *testing.T) {
	secret := "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	at := time.Date(2025, 10, 24, 10, 0, 5, 0, time.UTC)

	first, err := GenerateTOTP(secret, at, DefaultTOTPPeriod, DefaultTOTPDigits)
	if err != nil {
		t.Fatalf("GenerateTOTP returned error: %v", err)
	}
	if len(first) != DefaultTOTPDigits {
		t.Fatalf("expected %d digits, got %q", DefaultTOTPDigits, first)
	}

	// Same 30s step must yield the same code.
	second, err := GenerateTOTP(secret, at.Add(20*time.Second), DefaultTOTPPeriod, DefaultTOTPDigits)
	if err != nil {
		t.Fatalf("GenerateTOTP returned error: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical codes within one step, got %s and %s", first, second)
	}

	// The next step must rotate the code.
	third, err := GenerateTOTP(secret, at.Add(30*time.Second), DefaultTOTPPeriod, DefaultTOTPDigits)
	if err != nil {
		t.Fatalf("GenerateTOTP returned error: %v", err)
	}
	if first == third {
		t.Fatalf("expected code rotation across steps")
	}
}

func TestGenerateTOTP_PreservesLeadingZeros(t *testing.T) {
	secret := "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

	// Scan a range of steps; every code must be exactly six characters even
	// when the truncated value is small.
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 500; i++ {
		code, err := GenerateTOTP(secret, base.Add(time.Duration(i)*30*time.Second), DefaultTOTPPeriod, DefaultTOTPDigits)
		if err != nil {
			t.Fatalf("GenerateTOTP returned error: %v", err)
		}
		if len(code) != DefaultTOTPDigits {
			t.Fatalf("expected fixed width code, got %q at step %d", code, i)
		}
	}
}

func TestVerifyTOTP_AdjacentWindow(t *testing.T) {
	secret := "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	now := time.Date(2025, 10, 24, 10, 0, 15, 0, time.UTC)

	current, err := GenerateTOTP(secret, now, DefaultTOTPPeriod, DefaultTOTPDigits)
	if err != nil {
		t.Fatalf("GenerateTOTP returned error: %v", err)
	}
	previous, err := GenerateTOTP(secret, now.Add(-30*time.Second), DefaultTOTPPeriod, DefaultTOTPDigits)
	if err != nil {
		t.Fatalf("GenerateTOTP returned error: %v", err)
	}
	stale, err := GenerateTOTP(secret, now.Add(-2*30*time.Second), DefaultTOTPPeriod, DefaultTOTPDigits)
	if err != nil {
		t.Fatalf("GenerateTOTP returned error: %v", err)
	}

	if ok, err := VerifyTOTP(secret, current, now, DefaultTOTPPeriod, DefaultTOTPDigits, DefaultTOTPSkew); err != nil || !ok {
		t.Fatalf("expected current code to verify, got (%v, %v)", ok, err)
	}
	if ok, err := VerifyTOTP(secret, previous, now, DefaultTOTPPeriod, DefaultTOTPDigits, DefaultTOTPSkew); err != nil || !ok {
		t.Fatalf("expected previous-step code to verify, got (%v, %v)", ok, err)
	}
	if ok, err := VerifyTOTP(secret, stale, now, DefaultTOTPPeriod, DefaultTOTPDigits, DefaultTOTPSkew); err != nil {
		t.Fatalf("VerifyTOTP returned error: %v", err)
	} else if ok {
		t.Fatalf("expected two-step-old code to be rejected")
	}
}

func TestVerifyTOTP_RejectsBadInput(t *testing.T) {
	secret := "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	now := time.Now()

	if ok, err := VerifyTOTP(secret, "12345", now, DefaultTOTPPeriod, DefaultTOTPDigits, DefaultTOTPSkew); err != nil || ok {
		t.Fatalf("expected wrong-width code rejection, got (%v, %v)", ok, err)
	}

	if _, err := VerifyTOTP("", "123456", now, DefaultTOTPPeriod, DefaultTOTPDigits, DefaultTOTPSkew); err == nil {
		t.Fatalf("expected error for missing secret")
	}

	if _, err := GenerateTOTP("not!base32", now, DefaultTOTPPeriod, DefaultTOTPDigits); err == nil {
		t.Fatalf("expected error for undecodable secret")
	}
}
