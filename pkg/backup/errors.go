package backup

import "errors"

// Backup/recovery errors
var (
	// ErrFragmentNotFound indicates a fragment is missing from its store.
	ErrFragmentNotFound = errors.New("fragment not found")

	// ErrInvalidManifest indicates the recovery manifest could not be parsed.
	ErrInvalidManifest = errors.New("invalid recovery manifest")

	// ErrLengthMismatch indicates fragment lengths disagree with the manifest.
	ErrLengthMismatch = errors.New("fragment lengths do not match the recovery manifest")

	// ErrDecode indicates the joined fragments are not valid base64.
	ErrDecode = errors.New("joined fragments are not valid base64")

	// ErrStoreRequired indicates a fragment or manifest store was not configured.
	ErrStoreRequired = errors.New("fragment and manifest stores are required")
)
