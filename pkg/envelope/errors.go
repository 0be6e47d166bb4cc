// Package envelope encrypts JSON credential documents into self-describing
// envelope records and decrypts them back.
package envelope

import (
	"errors"

	"github.com/forest6511/credvault/pkg/crypto"
)

// Envelope errors
var (
	// ErrSerialization indicates the document could not be encoded as JSON.
	ErrSerialization = errors.New("envelope: document serialization failed")

	// ErrDecryption indicates the cipher or padding check failed. In practice
	// this is how a wrong password surfaces.
	ErrDecryption = errors.New("envelope: decryption failed: wrong password or corrupted envelope")

	// ErrParse indicates JSON that should describe an envelope or a document
	// could not be parsed.
	ErrParse = errors.New("envelope: invalid JSON")

	// ErrKeyDerivation is re-exported so callers only import this package.
	ErrKeyDerivation = crypto.ErrKeyDerivation

	// ErrUnknownNamespace indicates no salt is registered for a namespace.
	ErrUnknownNamespace = errors.New("envelope: unknown namespace")
)
