// Package vault encrypts credential files into envelope files and back.
//
// Two error policies live side by side and callers pick one by entry point:
//
//   - Encrypt, Decrypt and GetDecryptedCredentials return every error. Use
//     them from startup code that must fail loudly.
//   - EncryptFile and DecryptFile log the error and report only a bool.
//     They implement FileOps for the batch vault and the CLI. A caller that
//     ignores the bool proceeds with a missing or stale output file.
//
// Writes are not atomic: a crash mid-write can leave a truncated file.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"

	"github.com/forest6511/credvault/pkg/crypto"
	"github.com/forest6511/credvault/pkg/envelope"
)

// Constants
const (
	FileMode = 0600 // Owner read/write only
	DirMode  = 0700 // Owner read/write/execute only

	// MaxFileSize bounds the credential and envelope files read into memory.
	MaxFileSize = 1024 * 1024
)

// Errors
var (
	ErrNotFound     = errors.New("vault: file not found")
	ErrFileTooLarge = errors.New("vault: file too large")

	// ErrParse is returned for invalid JSON in a credential or envelope file.
	ErrParse = envelope.ErrParse
)

// FileOps is the log-and-return-false capability: each call reports
// success as a bool and never returns an error.
type FileOps interface {
	EncryptFile(inputPath, outputPath, password string) bool
	DecryptFile(inputPath, outputPath, password string) bool
}

// Vault performs envelope operations on files.
type Vault struct {
	cipher *envelope.Cipher
	logger zerolog.Logger
}

var _ FileOps = (*Vault)(nil)

// New creates a vault that encrypts with cipher and reports swallowed
// errors to logger.
func New(cipher *envelope.Cipher, logger zerolog.Logger) *Vault {
	return &Vault{
		cipher: cipher,
		logger: logger,
	}
}

// Cipher returns the envelope cipher used by the vault.
func (v *Vault) Cipher() *envelope.Cipher {
	return v.cipher
}

// Encrypt reads the JSON credential file at inputPath, encrypts it and
// writes the envelope as indented JSON to outputPath.
func (v *Vault) Encrypt(inputPath, outputPath, password string) error {
	data, err := v.readFile(inputPath)
	if err != nil {
		return err
	}
	defer crypto.SecureWipe(data)

	doc, err := envelope.DecodeDocument(data)
	if err != nil {
		return fmt.Errorf("%s: %w", inputPath, err)
	}

	env, err := v.cipher.Encrypt(doc, password)
	if err != nil {
		return err
	}

	out, err := envelope.Marshal(env)
	if err != nil {
		return err
	}

	return writeFile(outputPath, out)
}

// Decrypt reads the envelope file at inputPath, decrypts it and writes the
// plaintext document as indented JSON to outputPath. outputPath is not
// touched unless decryption succeeds.
func (v *Vault) Decrypt(inputPath, outputPath, password string) error {
	doc, err := v.GetDecryptedCredentials(inputPath, password)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", envelope.ErrSerialization, err)
	}
	defer crypto.SecureWipe(out)

	return writeFile(outputPath, append(out, '\n'))
}

// GetDecryptedCredentials decrypts the envelope file at inputPath and
// returns the document without writing any plaintext to disk.
func (v *Vault) GetDecryptedCredentials(inputPath, password string) (envelope.Document, error) {
	env, err := v.ReadEnvelope(inputPath)
	if err != nil {
		return nil, err
	}
	return v.cipher.Decrypt(env, password)
}

// ReadEnvelope reads and parses an envelope file.
func (v *Vault) ReadEnvelope(path string) (*envelope.Envelope, error) {
	data, err := v.readFile(path)
	if err != nil {
		return nil, err
	}
	env, err := envelope.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return env, nil
}

// EncryptFile is Encrypt with errors logged instead of returned.
func (v *Vault) EncryptFile(inputPath, outputPath, password string) bool {
	if err := v.Encrypt(inputPath, outputPath, password); err != nil {
		v.logger.Error().
			Err(err).
			Str("input", inputPath).
			Str("output", outputPath).
			Msg("encrypt failed")
		return false
	}
	v.logger.Info().
		Str("input", inputPath).
		Str("output", outputPath).
		Msg("credential file encrypted")
	return true
}

// DecryptFile is Decrypt with errors logged instead of returned.
func (v *Vault) DecryptFile(inputPath, outputPath, password string) bool {
	if err := v.Decrypt(inputPath, outputPath, password); err != nil {
		v.logger.Error().
			Err(err).
			Str("input", inputPath).
			Str("output", outputPath).
			Msg("decrypt failed")
		return false
	}
	v.logger.Info().
		Str("input", inputPath).
		Str("output", outputPath).
		Msg("credential file decrypted")
	return true
}

func (v *Vault) readFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("vault: failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("vault: %s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, path, info.Size())
	}
	v.checkAndWarnPermissions(path, info)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to read %s: %w", path, err)
	}
	return data, nil
}

// checkAndWarnPermissions warns when a file is readable by group or others.
func (v *Vault) checkAndWarnPermissions(path string, info fs.FileInfo) {
	if runtime.GOOS == "windows" {
		return
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		v.logger.Warn().
			Str("path", path).
			Str("mode", fmt.Sprintf("%04o", perm)).
			Msg("file is accessible by other users")
	}
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, DirMode); err != nil {
			return fmt.Errorf("vault: failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, FileMode); err != nil {
		return fmt.Errorf("vault: failed to write %s: %w", path, err)
	}
	return nil
}
