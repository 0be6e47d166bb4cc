// Package backup provides fragmented backups of encrypted credential files.
//
// A backup run:
//   - Generates a one-time random password
//   - Encrypts the credential file into a temporary envelope
//   - Base64-encodes the envelope and splits it into three contiguous parts
//   - Stores each part and a plain-text recovery manifest separately
//   - Removes the temporary envelope
//
// Recovery is deliberately left as separate steps (ReadFragments, Join,
// envelope.Cipher.Decrypt) so that no single call both reassembles and
// decrypts a backup.
//
// Fragments are substrings, not secret shares: each one leaks part of the
// ciphertext and all three are required. The manifest password is the only
// thing that makes them decryptable.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forest6511/credvault/pkg/crypto"
	"github.com/forest6511/credvault/pkg/vault"
)

// ManifestSuffix is appended to the backup base name for the manifest.
const ManifestSuffix = ".manifest.txt"

// BackupOptions configures a backup run.
type BackupOptions struct {
	// Fragments receives the three parts.
	Fragments Store
	// Manifests receives the recovery manifest.
	Manifests Store
	// PasswordLength is the one-time password length (default 32).
	PasswordLength int
	// TempDir holds the temporary envelope (default os.TempDir()).
	TempDir string
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Fragment is one stored part of a backup.
type Fragment struct {
	Index    int    // 1-based position in the concatenation order
	Name     string // Object name within the fragment store
	Location string // Human-readable location
	Data     string
}

// Result is the outcome of a backup run.
type Result struct {
	Fragments        [Parts]Fragment
	Manifest         *Manifest
	ManifestName     string
	ManifestLocation string
}

// FragmentName returns the object name of part i (0-based) for base.
func FragmentName(base string, i int) string {
	return fmt.Sprintf("%s.part%dof%d", base, i+1, Parts)
}

// Backup creates a fragmented backup of the credential file at inputPath.
func Backup(ctx context.Context, v *vault.Vault, inputPath string, opts BackupOptions) (*Result, error) {
	if opts.Fragments == nil || opts.Manifests == nil {
		return nil, ErrStoreRequired
	}
	if opts.PasswordLength == 0 {
		opts.PasswordLength = crypto.DefaultPasswordLength
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	password, err := crypto.GeneratePassword(opts.PasswordLength, crypto.DefaultCharset)
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup password: %w", err)
	}

	envelopeJSON, err := encryptToTemp(v, inputPath, password, opts.TempDir)
	if err != nil {
		return nil, err
	}

	encoded := Encode(envelopeJSON)
	parts := Split(encoded)

	createdAt := opts.Now().UTC()
	base := fmt.Sprintf("%s.%s", filepath.Base(inputPath), createdAt.Format("20060102T150405Z"))

	result := &Result{
		Manifest: &Manifest{
			BackupID:    uuid.New().String(),
			CreatedAt:   createdAt,
			Source:      filepath.Base(inputPath),
			Namespace:   v.Cipher().Namespace(),
			Password:    password,
			TotalLength: len(encoded),
		},
		ManifestName: base + ManifestSuffix,
	}

	var stored []string
	for i, part := range parts {
		name := FragmentName(base, i)
		if err := opts.Fragments.Put(ctx, name, []byte(part)); err != nil {
			return nil, abandon(ctx, opts.Fragments, stored,
				fmt.Errorf("failed to store fragment %d: %w", i+1, err))
		}
		stored = append(stored, name)
		location := opts.Fragments.Location(name)
		result.Fragments[i] = Fragment{
			Index:    i + 1,
			Name:     name,
			Location: location,
			Data:     part,
		}
		result.Manifest.PartLengths[i] = len(part)
		result.Manifest.Fragments[i] = location
	}

	if err := opts.Manifests.Put(ctx, result.ManifestName, result.Manifest.Render()); err != nil {
		return nil, abandon(ctx, opts.Fragments, stored,
			fmt.Errorf("failed to store recovery manifest: %w", err))
	}
	result.ManifestLocation = opts.Manifests.Location(result.ManifestName)

	return result, nil
}

// abandon removes the fragments stored before err. Fragments without a
// manifest are unrecoverable; any that cannot be removed are named in the
// returned error.
func abandon(ctx context.Context, store Store, names []string, err error) error {
	var left []string
	for _, name := range names {
		if delErr := store.Delete(ctx, name); delErr != nil {
			left = append(left, store.Location(name))
		}
	}
	if len(left) > 0 {
		return fmt.Errorf("%w (unrecoverable fragments left behind: %s)", err, strings.Join(left, ", "))
	}
	return err
}

// encryptToTemp encrypts inputPath into a temporary envelope file, reads it
// back and removes it before returning.
func encryptToTemp(v *vault.Vault, inputPath, password, dir string) ([]byte, error) {
	tmp, err := os.CreateTemp(dir, "credvault-envelope-*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary envelope: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := v.Encrypt(inputPath, tmpPath, password); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read temporary envelope: %w", err)
	}

	if err := os.Remove(tmpPath); err != nil {
		return nil, fmt.Errorf("failed to remove temporary envelope: %w", err)
	}
	return data, nil
}

// ReadFragments loads the named fragments from store, in order.
func ReadFragments(ctx context.Context, store Store, names [Parts]string) ([Parts]string, error) {
	var parts [Parts]string
	for i, name := range names {
		data, err := store.Get(ctx, name)
		if err != nil {
			return parts, fmt.Errorf("part %d: %w", i+1, err)
		}
		parts[i] = string(data)
	}
	return parts, nil
}
