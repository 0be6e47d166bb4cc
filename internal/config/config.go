// Package config loads the credvault configuration file and resolves
// vault passwords.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/forest6511/credvault/pkg/backup"
	"github.com/forest6511/credvault/pkg/batch"
	"github.com/forest6511/credvault/pkg/envelope"
)

// FileName is the default configuration file name, looked up in the
// working directory.
const FileName = ".credvault.yaml"

// Default environment variables holding the vault passwords.
const (
	DefaultPasswordEnv       = "CREDVAULT_PASSWORD"
	DefaultWalletPasswordEnv = "CREDVAULT_WALLET_PASSWORD"
)

// DevFallbackPassword is a known, non-secret password for local
// development. It is used only when dev_fallback is enabled and no other
// source yields a password. Envelopes sealed with it are not protected.
const DevFallbackPassword = "credvault-insecure-dev-password"

// DefaultHistoryPath is the history database path when history_path is unset.
const DefaultHistoryPath = ".credvault/history.db"

var (
	// ErrConfigInsecure is returned when the config file is writable by
	// other users.
	ErrConfigInsecure = errors.New("config file has insecure permissions")

	// ErrConfigSymlink is returned when the config file is a symlink.
	ErrConfigSymlink = errors.New("config file is a symlink")

	// ErrConfigNotOwnedByUser is returned when the config file belongs to
	// another user.
	ErrConfigNotOwnedByUser = errors.New("config file not owned by current user")

	// ErrNoPassword is returned when no password source is available.
	ErrNoPassword = errors.New("no password available")
)

// FragmentsConfig selects where fragment backups are written.
type FragmentsConfig struct {
	Dir         string           `yaml:"dir"`
	ManifestDir string           `yaml:"manifest_dir"`
	S3          *backup.S3Config `yaml:"s3"`
}

// Config is the parsed .credvault.yaml.
type Config struct {
	Targets           []batch.Target  `yaml:"targets"`
	PasswordEnv       string          `yaml:"password_env"`
	WalletPasswordEnv string          `yaml:"wallet_password_env"`
	DevFallback       bool            `yaml:"dev_fallback"`
	HistoryPath       string          `yaml:"history_path"`
	Fragments         FragmentsConfig `yaml:"fragments"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Targets:           append([]batch.Target(nil), batch.DefaultTargets...),
		PasswordEnv:       DefaultPasswordEnv,
		WalletPasswordEnv: DefaultWalletPasswordEnv,
		HistoryPath:       DefaultHistoryPath,
		Fragments: FragmentsConfig{
			Dir:         "backups/fragments",
			ManifestDir: "backups/manifests",
		},
	}
}

// Load reads the config at path. A missing file yields Default().
//
// The file is opened without following symlinks, must be owned by the
// current user and must not be writable by group or others, since it
// controls where credentials are read from and written to.
func Load(path string) (*Config, error) {
	f, err := openConfigFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if err := checkFilePermissions(info); err != nil {
		return nil, err
	}
	if err := checkFileOwnership(f); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(content)
}

// Parse decodes YAML config content over the defaults.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	if len(strings.TrimSpace(string(content))) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(strings.NewReader(string(content)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for missing or conflicting values.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("targets[%d]: name is required", i)
		}
		if t.Plaintext == "" || t.Encrypted == "" {
			return fmt.Errorf("target %q: plaintext and encrypted paths are required", t.Name)
		}
		if t.Plaintext == t.Encrypted {
			return fmt.Errorf("target %q: plaintext and encrypted paths must differ", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("target %q: duplicate name", t.Name)
		}
		seen[t.Name] = true
	}
	if s3 := c.Fragments.S3; s3 != nil && s3.Bucket == "" {
		return fmt.Errorf("fragments.s3: bucket is required")
	}
	if c.PasswordEnv == "" {
		c.PasswordEnv = DefaultPasswordEnv
	}
	if c.WalletPasswordEnv == "" {
		c.WalletPasswordEnv = DefaultWalletPasswordEnv
	}
	return nil
}

// PasswordEnvFor returns the environment variable holding the password for ns.
func (c *Config) PasswordEnvFor(ns envelope.Namespace) string {
	if ns == envelope.NamespaceWallet {
		return c.WalletPasswordEnv
	}
	return c.PasswordEnv
}

// Prompter reads a password interactively. It returns ErrNoPassword when no
// terminal is attached.
type Prompter func(label string) (string, error)

// ResolvePassword finds the password for ns: the namespace's environment
// variable, then prompt, then DevFallbackPassword if DevFallback is set.
func (c *Config) ResolvePassword(ns envelope.Namespace, prompt Prompter, logger zerolog.Logger) (string, error) {
	env := c.PasswordEnvFor(ns)
	if pw := os.Getenv(env); pw != "" {
		logger.Debug().Str("env", env).Msg("password read from environment")
		return pw, nil
	}

	if prompt != nil {
		pw, err := prompt(fmt.Sprintf("Enter %s password: ", ns))
		switch {
		case err == nil && pw != "":
			return pw, nil
		case err != nil && !errors.Is(err, ErrNoPassword):
			return "", err
		}
	}

	if c.DevFallback {
		logger.Warn().
			Str("namespace", string(ns)).
			Msg("using the built-in development password; do not use this envelope outside local development")
		return DevFallbackPassword, nil
	}

	return "", fmt.Errorf("%w: set %s or run in a terminal", ErrNoPassword, env)
}
