package envelope

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/forest6511/credvault/pkg/crypto"
)

// Namespace selects the fixed salt used for key derivation.
type Namespace string

const (
	// NamespaceCredentials protects service-account and API credential files.
	NamespaceCredentials Namespace = "credentials"
	// NamespaceWallet protects mobile-wallet provider credentials.
	NamespaceWallet Namespace = "wallet"
)

// Fixed salts per namespace. They are constants so that the password alone
// is enough to decrypt; see crypto.FixedSalt.
var namespaceSalts = map[Namespace]crypto.FixedSalt{
	NamespaceCredentials: "credvault/credentials/v1",
	NamespaceWallet:      "credvault/wallet/v1",
}

// Namespaces lists the registered namespaces.
func Namespaces() []Namespace {
	return []Namespace{NamespaceCredentials, NamespaceWallet}
}

// Cipher encrypts documents into envelopes under password-derived keys.
type Cipher struct {
	deriver   crypto.KeyDeriver
	namespace Namespace
	now       func() time.Time
}

// NewCipher creates a cipher that derives keys with the given deriver.
func NewCipher(deriver crypto.KeyDeriver) *Cipher {
	return &Cipher{
		deriver: deriver,
		now:     time.Now,
	}
}

// ForNamespace creates a cipher using the namespace's fixed salt.
func ForNamespace(ns Namespace) (*Cipher, error) {
	salt, ok := namespaceSalts[ns]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownNamespace, ns)
	}
	c := NewCipher(salt)
	c.namespace = ns
	return c, nil
}

// Namespace returns the namespace the cipher was created for, or "" for a
// cipher built directly from a KeyDeriver.
func (c *Cipher) Namespace() Namespace {
	return c.namespace
}

// Encrypt serializes doc and encrypts it under a key derived from password.
//
// Every call draws a new IV, so encrypting the same document twice yields
// two unrelated envelopes.
func (c *Cipher) Encrypt(doc Document, password string) (*Envelope, error) {
	plaintext, err := EncodeDocument(doc)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(plaintext)

	key, err := c.deriver.DeriveKey(password)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(key)

	ciphertext, iv, err := crypto.EncryptCBC(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("envelope: encryption failed: %w", err)
	}

	return &Envelope{
		IV:        hex.EncodeToString(iv),
		Encrypted: hex.EncodeToString(ciphertext),
		Algorithm: Algorithm,
		Timestamp: c.now().UTC(),
	}, nil
}

// Decrypt recovers the document sealed in env.
//
// A wrong password normally fails the padding check and returns
// ErrDecryption. There is no authentication tag, so a wrong key that
// happens to unpad cleanly is reported as ErrParse instead.
func (c *Cipher) Decrypt(env *Envelope, password string) (Document, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: envelope is nil", ErrDecryption)
	}
	if env.Algorithm != "" && env.Algorithm != Algorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrDecryption, env.Algorithm)
	}

	iv, err := hex.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: iv is not hex: %v", ErrDecryption, err)
	}
	ciphertext, err := hex.DecodeString(env.Encrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not hex: %v", ErrDecryption, err)
	}

	key, err := c.deriver.DeriveKey(password)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(key)

	plaintext, err := crypto.DecryptCBC(key, ciphertext, iv)
	if err != nil {
		if errors.Is(err, crypto.ErrDecryptionFailed) || errors.Is(err, crypto.ErrInvalidIVLength) {
			return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
		}
		return nil, err
	}
	defer crypto.SecureWipe(plaintext)

	return DecodeDocument(plaintext)
}
