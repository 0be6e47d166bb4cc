// Package security assesses vault passwords and classifies credential keys.
package security

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/forest6511/credvault/pkg/crypto"
)

// PasswordStrength represents the strength level of a password.
type PasswordStrength int

const (
	// PasswordWeak indicates an insecure password (shorter than 8 characters).
	PasswordWeak PasswordStrength = iota
	// PasswordFair indicates a minimally acceptable password.
	PasswordFair
	// PasswordGood indicates a good password.
	PasswordGood
	// PasswordStrong indicates a strong password.
	PasswordStrong
)

// String returns a human-readable representation of the password strength.
func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "Weak"
	case PasswordFair:
		return "Fair"
	case PasswordGood:
		return "Good"
	case PasswordStrong:
		return "Strong"
	default:
		return "Unknown"
	}
}

// Assessment is the result of EvaluatePassword.
type Assessment struct {
	Strength PasswordStrength
	// Acceptable is false when the password is outside the allowed length.
	Acceptable bool
	// Warnings are advisory; they never block encryption.
	Warnings []string
}

// EvaluatePassword rates a vault password.
//
// Length is the primary factor, following NIST SP 800-63B: composition is
// reported as a warning but never required.
func EvaluatePassword(password string) Assessment {
	n := len(password)
	a := Assessment{Strength: LengthStrength(n), Acceptable: true}

	switch {
	case n < crypto.MinPasswordLength:
		a.Acceptable = false
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("password must be at least %d characters", crypto.MinPasswordLength))
		return a
	case n > crypto.MaxPasswordLength:
		a.Acceptable = false
		a.Strength = PasswordWeak
		a.Warnings = append(a.Warnings,
			fmt.Sprintf("password must be at most %d characters", crypto.MaxPasswordLength))
		return a
	}

	if classes := characterClasses(password); classes < 3 && n < 20 {
		a.Warnings = append(a.Warnings,
			"consider mixing upper and lower case letters, digits and symbols, or using 20+ characters")
	}
	if isRepetitive(password) {
		a.Strength = PasswordWeak
		a.Warnings = append(a.Warnings, "password repeats a single character")
	}
	return a
}

// LengthStrength rates a password of n characters by length alone.
func LengthStrength(n int) PasswordStrength {
	switch {
	case n >= 20:
		return PasswordStrong
	case n >= 14:
		return PasswordGood
	case n >= 8:
		return PasswordFair
	default:
		return PasswordWeak
	}
}

func characterClasses(s string) int {
	var upper, lower, digit, other bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	n := 0
	for _, b := range []bool{upper, lower, digit, other} {
		if b {
			n++
		}
	}
	return n
}

func isRepetitive(s string) bool {
	if s == "" {
		return false
	}
	_, size := utf8.DecodeRuneInString(s)
	return strings.Count(s, s[:size])*size == len(s)
}

// sensitiveKeyNames are substrings marking a credential key as secret.
var sensitiveKeyNames = []string{
	"password", "passwd", "pwd", "secret", "private", "token",
	"credential", "api_key", "apikey", "key_id",
}

// IsSensitiveKey reports whether a credential document key likely holds
// secret material (e.g. "private_key", "client_secret").
func IsSensitiveKey(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveKeyNames {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
