package backup

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/forest6511/credvault/pkg/envelope"
)

// ManifestTitle is the first line of every recovery manifest.
const ManifestTitle = "CREDVAULT FRAGMENTED BACKUP - RECOVERY MANIFEST"

// Manifest header keys
const (
	keyBackupID    = "Backup-ID"
	keyCreated     = "Created"
	keySource      = "Source"
	keyNamespace   = "Namespace"
	keyAlgorithm   = "Algorithm"
	keyPassword    = "Password"
	keyTotalLength = "Total-Length"
)

// Manifest pairs one backup run with the one-time password and the
// fragment layout needed to reassemble it.
type Manifest struct {
	BackupID    string
	CreatedAt   time.Time
	Source      string
	Namespace   envelope.Namespace
	Password    string
	TotalLength int
	PartLengths [Parts]int
	Fragments   [Parts]string // Fragment locations, in concatenation order
}

func partLengthKey(i int) string { return fmt.Sprintf("Part-%d-Length", i+1) }
func partKey(i int) string       { return fmt.Sprintf("Part-%d", i+1) }

// Render formats the manifest as plain text.
func (m *Manifest) Render() []byte {
	var b bytes.Buffer

	fmt.Fprintln(&b, ManifestTitle)
	fmt.Fprintln(&b, "Keep this file apart from the fragments. Together they decrypt the credential.")
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "%s: %s\n", keyBackupID, m.BackupID)
	fmt.Fprintf(&b, "%s: %s\n", keyCreated, m.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "%s: %s\n", keySource, m.Source)
	fmt.Fprintf(&b, "%s: %s\n", keyNamespace, m.Namespace)
	fmt.Fprintf(&b, "%s: %s\n", keyAlgorithm, envelope.Algorithm)
	fmt.Fprintf(&b, "%s: %s\n", keyPassword, m.Password)
	fmt.Fprintf(&b, "%s: %d\n", keyTotalLength, m.TotalLength)
	for i := 0; i < Parts; i++ {
		fmt.Fprintf(&b, "%s: %d\n", partLengthKey(i), m.PartLengths[i])
	}
	for i := 0; i < Parts; i++ {
		fmt.Fprintf(&b, "%s: %s\n", partKey(i), m.Fragments[i])
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "Reconstruction:")
	fmt.Fprintln(&b, "  1. Concatenate part 1, part 2 and part 3 in that order, with no separators.")
	fmt.Fprintln(&b, "  2. Base64-decode the result (standard alphabet, padded).")
	fmt.Fprintln(&b, "  3. The decoded text is an envelope JSON document (iv, encrypted, algorithm, timestamp).")
	fmt.Fprintf(&b, "  4. Decrypt the envelope with the password above in the %q namespace.\n", m.Namespace)
	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "With the credvault CLI:")
	fmt.Fprintf(&b, "  credvault fragment join %s %s %s -o envelope.json --manifest <this file>\n",
		m.Fragments[0], m.Fragments[1], m.Fragments[2])
	fmt.Fprintf(&b, "  credvault decrypt envelope.json %s --namespace %s\n", m.Source, m.Namespace)

	return b.Bytes()
}

// ParseManifest reads a manifest produced by Render.
func ParseManifest(data []byte) (*Manifest, error) {
	fields := make(map[string]string)

	sc := bufio.NewScanner(bytes.NewReader(data))
	first := true
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if first {
			if line != ManifestTitle {
				return nil, fmt.Errorf("%w: missing title line", ErrInvalidManifest)
			}
			first = false
			continue
		}
		if line == "Reconstruction:" {
			break
		}
		if line == "" || strings.HasPrefix(line, " ") {
			continue
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			continue
		}
		fields[key] = value
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if first {
		return nil, fmt.Errorf("%w: empty manifest", ErrInvalidManifest)
	}

	m := &Manifest{
		BackupID:  fields[keyBackupID],
		Source:    fields[keySource],
		Namespace: envelope.Namespace(fields[keyNamespace]),
		Password:  fields[keyPassword],
	}
	if m.Password == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidManifest, keyPassword)
	}
	if m.Namespace == "" {
		m.Namespace = envelope.NamespaceCredentials
	}

	if created, ok := fields[keyCreated]; ok {
		t, err := time.Parse(time.RFC3339, created)
		if err != nil {
			return nil, fmt.Errorf("%w: bad %s: %v", ErrInvalidManifest, keyCreated, err)
		}
		m.CreatedAt = t
	}

	var err error
	if m.TotalLength, err = parseLength(fields, keyTotalLength); err != nil {
		return nil, err
	}
	for i := 0; i < Parts; i++ {
		if m.PartLengths[i], err = parseLength(fields, partLengthKey(i)); err != nil {
			return nil, err
		}
		m.Fragments[i] = fields[partKey(i)]
	}

	return m, nil
}

func parseLength(fields map[string]string, key string) (int, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidManifest, key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: bad %s %q", ErrInvalidManifest, key, raw)
	}
	return n, nil
}

// Check verifies that parts have the lengths recorded in the manifest.
func (m *Manifest) Check(parts [Parts]string) error {
	total := 0
	for i, p := range parts {
		if len(p) != m.PartLengths[i] {
			return fmt.Errorf("%w: part %d is %d bytes, manifest says %d",
				ErrLengthMismatch, i+1, len(p), m.PartLengths[i])
		}
		total += len(p)
	}
	if total != m.TotalLength {
		return fmt.Errorf("%w: total is %d bytes, manifest says %d", ErrLengthMismatch, total, m.TotalLength)
	}
	return nil
}
