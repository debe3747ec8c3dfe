package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultTOTPPeriod is the time-step size for code derivation.
	DefaultTOTPPeriod = 30 * time.Second
	// DefaultTOTPDigits is the fixed code width; leading zeros are preserved.
	DefaultTOTPDigits = 6
	// DefaultTOTPSkew is the number of adjacent steps tolerated on verify.
	DefaultTOTPSkew = 1

	totpSecretBytes = 20
)

// ErrMissingSecret is returned when the secret is empty.
var ErrMissingSecret = errors.New("totp secret is required")

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateTOTPSecret returns a fresh 160-bit secret, base32-encoded without
// padding. Generated once at registration.
func GenerateTOTPSecret() (string, error) {
	buf := make([]byte, totpSecretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return b32.EncodeToString(buf), nil
}

// GenerateTOTP derives the numeric code for the time step containing at.
// RFC 6238 over HMAC-SHA1 with dynamic truncation; the result is
// zero-padded to digits characters.
func GenerateTOTP(secret string, at time.Time, period time.Duration, digits int) (string, error) {
	if secret == "" {
		return "", ErrMissingSecret
	}
	if period <= 0 {
		period = DefaultTOTPPeriod
	}
	if digits <= 0 {
		digits = DefaultTOTPDigits
	}

	counter := uint64(at.Unix() / int64(period.Seconds()))
	return hotp(secret, counter, digits)
}

// VerifyTOTP checks the submitted code against the step containing at and
// its immediate neighbors within skew. Codes from any other step never match,
// which prevents replay of stale codes.
func VerifyTOTP(secret, code string, at time.Time, period time.Duration, digits, skew int) (bool, error) {
	if secret == "" {
		return false, ErrMissingSecret
	}
	if period <= 0 {
		period = DefaultTOTPPeriod
	}
	if digits <= 0 {
		digits = DefaultTOTPDigits
	}
	if skew < 0 {
		skew = 0
	}
	if len(code) != digits {
		return false, nil
	}

	step := at.Unix() / int64(period.Seconds())
	matched := false
	for offset := -int64(skew); offset <= int64(skew); offset++ {
		candidate, err := hotp(secret, uint64(step+offset), digits)
		if err != nil {
			return false, err
		}
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			matched = true
		}
	}

	return matched, nil
}

func hotp(secret string, counter uint64, digits int) (string, error) {
	key, err := b32.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, value%mod), nil
}
