package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/forest6511/credvault/internal/config"
	"github.com/forest6511/credvault/internal/history"
	"github.com/forest6511/credvault/internal/logging"
	"github.com/forest6511/credvault/internal/ui"
	"github.com/forest6511/credvault/pkg/envelope"
	"github.com/forest6511/credvault/pkg/security"
	"github.com/forest6511/credvault/pkg/vault"
)

// Global flags
var (
	configPath  string
	namespace   string
	verbose     bool
	devFallback bool
	noHistory   bool
)

// passwordInput is where interactive passwords are read from.
var passwordInput = os.Stdin

// State built by PersistentPreRunE
var (
	cfg    *config.Config
	logger zerolog.Logger
	v      *vault.Vault
)

var rootCmd = &cobra.Command{
	Use:   "credvault",
	Short: "credvault encrypts credential files for safe storage in a repository",
	Long: `credvault seals JSON credential files (service-account keys, wallet
provider credentials) into AES-256-CBC envelopes under a password-derived
key, so the encrypted copy can be committed and decrypted at build time.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = logging.New(cmd.ErrOrStderr(), logging.Options{Verbose: verbose})

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if devFallback {
			cfg.DevFallback = true
		}

		c, err := envelope.ForNamespace(envelope.Namespace(namespace))
		if err != nil {
			return err
		}
		v = vault.New(c, logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.FileName, "Path to the config file")
	rootCmd.PersistentFlags().StringVar(&namespace, "namespace", string(envelope.NamespaceCredentials),
		"Key namespace (credentials, wallet)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&devFallback, "dev-fallback", false,
		"Use the built-in development password when no other password is available (insecure)")
	rootCmd.PersistentFlags().BoolVar(&noHistory, "no-history", false, "Do not record this operation in the history database")
}

// currentNamespace returns the namespace of the active vault.
func currentNamespace() envelope.Namespace {
	return v.Cipher().Namespace()
}

// resolvePassword obtains the password for the active namespace.
func resolvePassword(cmd *cobra.Command) (string, error) {
	return cfg.ResolvePassword(currentNamespace(), ui.PasswordPrompter(passwordInput, cmd.ErrOrStderr()), logger)
}

// resolveEncryptPassword is resolvePassword plus a strength check. Weak
// passwords are reported but not rejected; the fallback is always flagged.
func resolveEncryptPassword(cmd *cobra.Command) (string, error) {
	password, err := resolvePassword(cmd)
	if err != nil {
		return "", err
	}
	if password == config.DevFallbackPassword {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Warn("encrypting with the development fallback password"))
		return password, nil
	}

	assessment := security.EvaluatePassword(password)
	for _, w := range assessment.Warnings {
		logger.Warn().Str("strength", assessment.Strength.String()).Msg(w)
	}
	return password, nil
}

// recordHistory appends e to the history database. Failures are logged
// and never fail the command.
func recordHistory(ctx context.Context, e *history.Event) {
	if noHistory || cfg.HistoryPath == "" {
		return
	}
	if e.Namespace == "" {
		e.Namespace = string(currentNamespace())
	}

	store, err := history.Open(ctx, cfg.HistoryPath)
	if err != nil {
		logger.Warn().Err(err).Msg("history unavailable")
		return
	}
	defer store.Close()

	if err := store.Record(ctx, e); err != nil {
		logger.Warn().Err(err).Msg("failed to record history")
	}
}
