package main

import (
	"strings"
	"testing"

	"github.com/forest6511/credvault/pkg/crypto"
)

func TestValidateGenerateFlags(t *testing.T) {
	tests := []struct {
		name        string
		length      int
		count       int
		exclude     string
		expectError bool
	}{
		{"valid defaults", crypto.DefaultPasswordLength, defaultPasswordCount, "", false},
		{"minimum length", crypto.MinPasswordLength, 1, "", false},
		{"maximum length", crypto.MaxPasswordLength, 1, "", false},
		{"length too short", crypto.MinPasswordLength - 1, 1, "", true},
		{"length too long", crypto.MaxPasswordLength + 1, 1, "", true},
		{"count zero", 24, 0, "", true},
		{"count too high", 24, maxPasswordCount + 1, "", true},
		{"maximum count", 24, maxPasswordCount, "", false},
		{"exclude too long", 24, 1, strings.Repeat("a", maxExcludeLength+1), true},
		{"valid exclude", 24, 1, "0O1lI", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			defer resetFlags()

			generateLength = tt.length
			generateCount = tt.count
			generateExclude = tt.exclude

			err := validateGenerateFlags()
			if tt.expectError && err == nil {
				t.Errorf("expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestBuildCharset(t *testing.T) {
	tests := []struct {
		name        string
		noLowercase bool
		noUppercase bool
		noNumbers   bool
		noSymbols   bool
		exclude     string
		expectError bool
		contains    string
		notContains string
	}{
		{name: "all character types", contains: "aA0!"},
		{name: "no symbols", noSymbols: true, contains: "aA0", notContains: "!@#"},
		{name: "no numbers", noNumbers: true, contains: "aA!", notContains: "0123"},
		{name: "letters only", noNumbers: true, noSymbols: true, contains: "aA", notContains: "0!"},
		{name: "exclude ambiguous", exclude: "0O1lI", contains: "a2!", notContains: "0O1lI"},
		{name: "empty charset", noLowercase: true, noUppercase: true, noNumbers: true, noSymbols: true, expectError: true},
		{name: "everything excluded", noUppercase: true, noNumbers: true, noSymbols: true, exclude: crypto.CharsetLowercase, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags()
			defer resetFlags()

			generateNoLowercase = tt.noLowercase
			generateNoUppercase = tt.noUppercase
			generateNoNumbers = tt.noNumbers
			generateNoSymbols = tt.noSymbols
			generateExclude = tt.exclude

			charset, err := buildCharset()
			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got charset %q", charset)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, c := range tt.contains {
				if !strings.ContainsRune(charset, c) {
					t.Errorf("charset missing %q", c)
				}
			}
			for _, c := range tt.notContains {
				if strings.ContainsRune(charset, c) {
					t.Errorf("charset should not contain %q", c)
				}
			}
		})
	}
}

func TestGenerateCommand(t *testing.T) {
	env := newTestEnv(t)

	stdout, stderr, err := env.run(t, "generate", "-n", "3", "-l", "20", "--no-symbols")
	if err != nil {
		t.Fatalf("generate error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 3 {
		t.Fatalf("generated %d passwords, want 3: %q", len(lines), stdout)
	}
	seen := make(map[string]bool)
	for _, pw := range lines {
		if len(pw) != 20 {
			t.Errorf("password %q has length %d, want 20", pw, len(pw))
		}
		if strings.ContainsAny(pw, crypto.CharsetSymbols) {
			t.Errorf("password %q contains symbols", pw)
		}
		if seen[pw] {
			t.Errorf("duplicate password %q", pw)
		}
		seen[pw] = true
	}
	if !strings.Contains(stderr, "Strong") {
		t.Errorf("stderr should report strength, got %q", stderr)
	}

	if _, _, err := env.run(t, "generate", "-l", "4"); err == nil {
		t.Error("generate with a too-short length should fail")
	}
}
