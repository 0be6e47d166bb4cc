// Package batch applies vault operations to a fixed list of credential
// file locations, one per build target that needs its own copy.
package batch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/forest6511/credvault/pkg/vault"
)

// Result reasons
const (
	ReasonNotFound = "not_found"
	ReasonFailed   = "failed"
)

// ReasonOf maps a vault error to a result reason.
func ReasonOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, vault.ErrNotFound):
		return ReasonNotFound
	default:
		return ReasonFailed
	}
}

// Target is one credential file pair, relative to a base path.
type Target struct {
	Name      string `yaml:"name"`
	Plaintext string `yaml:"plaintext"`
	Encrypted string `yaml:"encrypted"`
}

// DefaultTargets are the web and mobile builds of the point-of-sale app,
// which both need the same service-account credential.
var DefaultTargets = []Target{
	{
		Name:      "web",
		Plaintext: "web/src/config/serviceAccountKey.json",
		Encrypted: "web/src/config/serviceAccountKey.enc.json",
	},
	{
		Name:      "mobile",
		Plaintext: "mobile/src/config/serviceAccountKey.json",
		Encrypted: "mobile/src/config/serviceAccountKey.enc.json",
	},
}

// Result records the outcome for one target.
type Result struct {
	Target  string `json:"target"`
	Path    string `json:"path"`
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// Report is the outcome of a whole batch.
type Report struct {
	Results      []Result `json:"results"`
	SuccessCount int      `json:"success_count"`
	Total        int      `json:"total"`
}

// OK reports whether every target succeeded.
func (r *Report) OK() bool {
	return r.Total > 0 && r.SuccessCount == r.Total
}

// String renders the success ratio, e.g. "1/2".
func (r *Report) String() string {
	return fmt.Sprintf("%d/%d", r.SuccessCount, r.Total)
}

// Batch runs vault operations over a target list.
type Batch struct {
	ops     vault.FileOps
	targets []Target
}

// New creates a batch over targets. A nil or empty list uses DefaultTargets.
func New(ops vault.FileOps, targets []Target) *Batch {
	if len(targets) == 0 {
		targets = DefaultTargets
	}
	return &Batch{
		ops:     ops,
		targets: targets,
	}
}

// Targets returns the configured targets.
func (b *Batch) Targets() []Target {
	return b.targets
}

// EncryptAll encrypts every target's plaintext file under basePath. A
// missing source is recorded as not_found and the batch moves on.
func (b *Batch) EncryptAll(basePath, password string) *Report {
	return b.run(basePath, func(t Target) (string, string) {
		return t.Plaintext, t.Encrypted
	}, func(in, out string) bool {
		return b.ops.EncryptFile(in, out, password)
	})
}

// DecryptAll decrypts every target's envelope file under basePath.
func (b *Batch) DecryptAll(basePath, password string) *Report {
	return b.run(basePath, func(t Target) (string, string) {
		return t.Encrypted, t.Plaintext
	}, func(in, out string) bool {
		return b.ops.DecryptFile(in, out, password)
	})
}

func (b *Batch) run(basePath string, paths func(Target) (string, string), op func(in, out string) bool) *Report {
	report := &Report{
		Results: make([]Result, 0, len(b.targets)),
		Total:   len(b.targets),
	}

	for _, t := range b.targets {
		src, dst := paths(t)
		in := filepath.Join(basePath, src)
		out := filepath.Join(basePath, dst)

		result := Result{Target: t.Name, Path: in}
		switch {
		case !exists(in):
			result.Reason = ReasonNotFound
		case op(in, out):
			result.Success = true
			report.SuccessCount++
		default:
			result.Reason = ReasonFailed
		}
		report.Results = append(report.Results, result)
	}

	return report
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// Status describes which files of a target are present.
type Status struct {
	Target          string `json:"target"`
	PlaintextPath   string `json:"plaintext_path"`
	PlaintextExists bool   `json:"plaintext_exists"`
	EncryptedPath   string `json:"encrypted_path"`
	EncryptedExists bool   `json:"encrypted_exists"`
}

// Status reports file presence for every target under basePath.
func (b *Batch) Status(basePath string) []Status {
	out := make([]Status, 0, len(b.targets))
	for _, t := range b.targets {
		plain := filepath.Join(basePath, t.Plaintext)
		enc := filepath.Join(basePath, t.Encrypted)
		out = append(out, Status{
			Target:          t.Name,
			PlaintextPath:   plain,
			PlaintextExists: exists(plain),
			EncryptedPath:   enc,
			EncryptedExists: exists(enc),
		})
	}
	return out
}
