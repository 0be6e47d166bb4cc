package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Character set constants
const (
	CharsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	CharsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	CharsetDigits    = "0123456789"
	CharsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	// DefaultCharset is used for one-time backup passwords.
	DefaultCharset = CharsetLowercase + CharsetUppercase + CharsetDigits + CharsetSymbols

	MinPasswordLength     = 8
	MaxPasswordLength     = 256
	DefaultPasswordLength = 32
)

// ErrEmptyCharset indicates no characters are left to draw from.
var ErrEmptyCharset = errors.New("crypto: character set is empty")

// GeneratePassword generates a cryptographically secure random password of
// the given length drawn uniformly from charset.
func GeneratePassword(length int, charset string) (string, error) {
	if length < MinPasswordLength || length > MaxPasswordLength {
		return "", fmt.Errorf("crypto: password length must be between %d and %d", MinPasswordLength, MaxPasswordLength)
	}
	if charset == "" {
		return "", ErrEmptyCharset
	}

	charsetLen := big.NewInt(int64(len(charset)))
	password := make([]byte, length)

	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, charsetLen)
		if err != nil {
			return "", fmt.Errorf("crypto: failed to generate random number: %w", err)
		}
		password[i] = charset[idx.Int64()]
	}

	return string(password), nil
}

// RemoveChars removes every character in chars from s.
func RemoveChars(s, chars string) string {
	excludeSet := make(map[rune]bool)
	for _, c := range chars {
		excludeSet[c] = true
	}

	var result strings.Builder
	for _, c := range s {
		if !excludeSet[c] {
			result.WriteRune(c)
		}
	}
	return result.String()
}
