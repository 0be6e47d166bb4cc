package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/credvault/internal/ui"
	"github.com/forest6511/credvault/pkg/crypto"
	"github.com/forest6511/credvault/pkg/security"
)

const (
	defaultPasswordCount = 1
	maxPasswordCount     = 100
	maxExcludeLength     = 256
)

// Generate command flags
var (
	generateLength      int
	generateCount       int
	generateNoSymbols   bool
	generateNoNumbers   bool
	generateNoUppercase bool
	generateNoLowercase bool
	generateExclude     string
)

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntVarP(&generateLength, "length", "l", crypto.DefaultPasswordLength,
		fmt.Sprintf("Password length (%d-%d)", crypto.MinPasswordLength, crypto.MaxPasswordLength))
	generateCmd.Flags().IntVarP(&generateCount, "count", "n", defaultPasswordCount, "Number of passwords to generate (1-100)")
	generateCmd.Flags().BoolVar(&generateNoSymbols, "no-symbols", false, "Exclude symbols")
	generateCmd.Flags().BoolVar(&generateNoNumbers, "no-numbers", false, "Exclude numbers")
	generateCmd.Flags().BoolVar(&generateNoUppercase, "no-uppercase", false, "Exclude uppercase letters")
	generateCmd.Flags().BoolVar(&generateNoLowercase, "no-lowercase", false, "Exclude lowercase letters")
	generateCmd.Flags().StringVar(&generateExclude, "exclude", "", "Characters to exclude")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate random vault passwords",
	Long: `Generate cryptographically secure random passwords suitable for
CREDVAULT_PASSWORD.

Examples:
  # Generate a 32-character password (default)
  credvault generate

  # Generate a password without symbols, for CI secret stores that mangle them
  credvault generate --no-symbols

  # Exclude ambiguous characters
  credvault generate --exclude "0O1lI"`,
	Args: cobra.NoArgs,
	RunE: executeGenerate,
}

func executeGenerate(cmd *cobra.Command, args []string) error {
	if err := validateGenerateFlags(); err != nil {
		return err
	}

	charset, err := buildCharset()
	if err != nil {
		return err
	}

	for i := 0; i < generateCount; i++ {
		password, err := crypto.GeneratePassword(generateLength, charset)
		if err != nil {
			return fmt.Errorf("failed to generate password: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), password)
	}

	strength := security.LengthStrength(generateLength)
	fmt.Fprintln(cmd.ErrOrStderr(), ui.Muted.Sprintf("%d characters from a set of %d, %s", generateLength, len(charset), strength))
	return nil
}

// validateGenerateFlags validates the generate command flags
func validateGenerateFlags() error {
	if generateLength < crypto.MinPasswordLength {
		return fmt.Errorf("password length must be at least %d characters", crypto.MinPasswordLength)
	}
	if generateLength > crypto.MaxPasswordLength {
		return fmt.Errorf("password length must be at most %d characters", crypto.MaxPasswordLength)
	}
	if generateCount < 1 {
		return fmt.Errorf("count must be at least 1")
	}
	if generateCount > maxPasswordCount {
		return fmt.Errorf("count must be at most %d", maxPasswordCount)
	}
	if len(generateExclude) > maxExcludeLength {
		return fmt.Errorf("exclude string must be at most %d characters", maxExcludeLength)
	}
	return nil
}

// buildCharset builds the character set based on flags
func buildCharset() (string, error) {
	var charset strings.Builder

	if !generateNoLowercase {
		charset.WriteString(crypto.CharsetLowercase)
	}
	if !generateNoUppercase {
		charset.WriteString(crypto.CharsetUppercase)
	}
	if !generateNoNumbers {
		charset.WriteString(crypto.CharsetDigits)
	}
	if !generateNoSymbols {
		charset.WriteString(crypto.CharsetSymbols)
	}

	result := crypto.RemoveChars(charset.String(), generateExclude)
	if result == "" {
		return "", fmt.Errorf("character set is empty: adjust flags to include at least one character type")
	}
	return result, nil
}
