// Package crypto provides the cryptographic primitives for credvault.
//
// This package implements password-based key derivation with Argon2id and
// AES-256-CBC encryption with PKCS#7 padding.
//
// # Security Features
//
//   - Argon2id key derivation (64MB memory, 3 iterations, 4 threads)
//   - PRECIS OpaqueString preparation of passwords (RFC 8265)
//   - Cryptographically secure random IV generation
//   - Secure memory wiping for key material
//
// CBC provides confidentiality only. There is no authentication tag, so a
// wrong key is detected solely through the padding check in DecryptCBC.
//
// # Example Usage
//
//	// Derive a key from a password and a namespace salt
//	key, err := crypto.DeriveKey("password", "credvault/credentials/v1")
//
//	// Encrypt data
//	ciphertext, iv, err := crypto.EncryptCBC(key, plaintext)
//
//	// Decrypt data
//	plaintext, err := crypto.DecryptCBC(key, ciphertext, iv)
//
//	// Securely wipe sensitive data
//	crypto.SecureWipe(key)
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/text/secure/precis"
)

// Argon2id parameters following OWASP recommendations.
const (
	// Argon2Memory is the memory cost in KiB (64MB).
	Argon2Memory = 64 * 1024

	// Argon2Time is the number of iterations.
	Argon2Time = 3

	// Argon2Threads is the degree of parallelism.
	Argon2Threads = 4

	// KeyLength is the length of encryption keys in bytes (256 bits).
	KeyLength = 32

	// IVLength is the length of CBC initialization vectors in bytes (128 bits).
	IVLength = aes.BlockSize
)

// Sentinel errors returned by crypto functions.
var (
	// ErrKeyDerivation indicates the password could not be turned into a key.
	ErrKeyDerivation = errors.New("crypto: key derivation failed")

	// ErrInvalidKeyLength indicates the key is not 32 bytes.
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")

	// ErrInvalidIVLength indicates the IV is not 16 bytes.
	ErrInvalidIVLength = errors.New("crypto: invalid iv length, must be 16 bytes")

	// ErrDecryptionFailed indicates the ciphertext length or padding was invalid.
	ErrDecryptionFailed = errors.New("crypto: decryption failed, bad padding or corrupted ciphertext")
)

// KeyDeriver turns a password into a 256-bit key. Implementations decide
// where the salt comes from.
type KeyDeriver interface {
	DeriveKey(password string) ([]byte, error)
}

// FixedSalt derives keys with one constant salt per logical namespace.
// Identical passwords always yield identical keys, so nothing but the
// password has to be kept to decrypt later.
type FixedSalt string

// DeriveKey implements KeyDeriver.
func (s FixedSalt) DeriveKey(password string) ([]byte, error) {
	return DeriveKey(password, string(s))
}

// DeriveKey derives a 256-bit encryption key from a password using Argon2id.
//
// The password is first prepared with the PRECIS OpaqueString profile so
// that canonically equivalent Unicode input produces the same key. Any
// failure is reported as an error wrapping ErrKeyDerivation.
func DeriveKey(password, salt string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("%w: password is empty", ErrKeyDerivation)
	}
	if salt == "" {
		return nil, fmt.Errorf("%w: salt is empty", ErrKeyDerivation)
	}

	prepared, err := precis.OpaqueString.Bytes([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	defer SecureWipe(prepared)

	return argon2.IDKey(prepared, []byte(salt), Argon2Time, Argon2Memory, Argon2Threads, KeyLength), nil
}

// EncryptCBC encrypts plaintext with AES-256 in CBC mode.
//
// A fresh 16-byte IV is read from crypto/rand on every call and returned
// alongside the ciphertext. The plaintext is PKCS#7 padded, so the
// ciphertext is always a non-empty multiple of the block size.
func EncryptCBC(key, plaintext []byte) (ciphertext []byte, iv []byte, err error) {
	if len(key) != KeyLength {
		return nil, nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	iv = make([]byte, IVLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("crypto: failed to generate iv: %w", err)
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	defer SecureWipe(padded)

	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return ciphertext, iv, nil
}

// DecryptCBC decrypts AES-256-CBC ciphertext and strips PKCS#7 padding.
//
// ErrDecryptionFailed is returned when the ciphertext is not a whole number
// of blocks or the padding is malformed, which is what a wrong key usually
// looks like.
func DecryptCBC(key, ciphertext, iv []byte) (plaintext []byte, err error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}

	if len(iv) != IVLength {
		return nil, ErrInvalidIVLength
	}

	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrDecryptionFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	plaintext, err = pkcs7Unpad(padded, aes.BlockSize)
	if err != nil {
		SecureWipe(padded)
		return nil, err
	}
	return plaintext, nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	out := make([]byte, len(data), len(data)+n)
	copy(out, data)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrDecryptionFailed
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, ErrDecryptionFailed
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrDecryptionFailed
		}
	}
	return data[:len(data)-n], nil
}

// SecureWipe overwrites a byte slice with zeros in a way that prevents
// compiler optimization from removing the operation.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// runtime.KeepAlive ensures the write operations are not optimized away
	// by the compiler since b is still "in use" after the loop.
	runtime.KeepAlive(b)
}
