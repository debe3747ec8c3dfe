package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// codeByteCeiling is the largest multiple of 10 that fits in a byte. Bytes at
// or above it are discarded during code generation; folding them with a
// modulo would make the digits 0-5 more likely than 6-9.
const codeByteCeiling = 250

// GenerateNumericCode returns a uniformly random numeric string of the given
// length. Used as a fallback when a user record carries no TOTP secret.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("length must be positive")
	}

	digits := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(digits) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		digits = appendCodeDigits(digits, buf, length)
	}

	return string(digits), nil
}

// appendCodeDigits maps random bytes onto decimal digits via rejection
// sampling until dst holds length digits or src runs out.
func appendCodeDigits(dst, src []byte, length int) []byte {
	for _, b := range src {
		if len(dst) >= length {
			break
		}
		if b >= codeByteCeiling {
			continue
		}
		dst = append(dst, '0'+b%10)
	}
	return dst
}

// HashToken calculates a SHA-256 hash of the provided value. Verification
// codes are only ever persisted in this form.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
