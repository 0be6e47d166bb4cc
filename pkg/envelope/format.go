package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"
)

// Algorithm identifies the cipher and mode of every envelope.
const Algorithm = "aes-256-cbc"

// Document is a plaintext credential file: any JSON object.
type Document map[string]any

// Envelope is the persisted result of one encryption.
type Envelope struct {
	IV        string    `json:"iv"`        // Hex-encoded 16-byte IV
	Encrypted string    `json:"encrypted"` // Hex-encoded ciphertext
	Algorithm string    `json:"algorithm"` // Always Algorithm
	Timestamp time.Time `json:"timestamp"` // RFC 3339, UTC
}

// Marshal encodes the envelope as indented JSON, the on-disk format.
func Marshal(env *Envelope) ([]byte, error) {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes an envelope. Missing iv or encrypted fields are
// reported as ErrParse.
func Unmarshal(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if env.IV == "" || env.Encrypted == "" {
		return nil, fmt.Errorf("%w: envelope is missing iv or encrypted", ErrParse)
	}
	return &env, nil
}

// EncodeDocument serializes a document. encoding/json sorts map keys, so
// the output is canonical for a given document.
func EncodeDocument(doc Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", ErrSerialization)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return data, nil
}

// DecodeDocument parses a JSON object. Numbers keep their textual form as
// json.Number.
func DecodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrParse)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrParse)
	}
	return doc, nil
}

// Keys returns the top-level keys of the document in sorted order.
func (d Document) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
