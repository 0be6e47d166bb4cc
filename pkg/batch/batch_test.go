package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/forest6511/credvault/pkg/envelope"
	"github.com/forest6511/credvault/pkg/vault"
)

// recordingOps is a FileOps that records calls and fails selected inputs.
type recordingOps struct {
	calls []string
	fail  map[string]bool
}

func (r *recordingOps) EncryptFile(in, out, password string) bool {
	r.calls = append(r.calls, in)
	return !r.fail[in]
}

func (r *recordingOps) DecryptFile(in, out, password string) bool {
	r.calls = append(r.calls, in)
	return !r.fail[in]
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(`{"key":"abc123"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}

var threeTargets = []Target{
	{Name: "one", Plaintext: "one/creds.json", Encrypted: "one/creds.enc.json"},
	{Name: "two", Plaintext: "two/creds.json", Encrypted: "two/creds.enc.json"},
	{Name: "three", Plaintext: "three/creds.json", Encrypted: "three/creds.enc.json"},
}

// TestEncryptAllDoesNotShortCircuit checks a missing second source does not
// stop the first and third targets from being attempted.
func TestEncryptAllDoesNotShortCircuit(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "one/creds.json"))
	touch(t, filepath.Join(base, "three/creds.json"))

	ops := &recordingOps{}
	report := New(ops, threeTargets).EncryptAll(base, "password")

	if len(report.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(report.Results))
	}
	if report.Results[1].Reason != ReasonNotFound || report.Results[1].Success {
		t.Errorf("Results[1] = %+v, want not_found failure", report.Results[1])
	}
	if !report.Results[0].Success || !report.Results[2].Success {
		t.Errorf("Results[0], Results[2] = %+v, %+v, want success", report.Results[0], report.Results[2])
	}

	want := []string{filepath.Join(base, "one/creds.json"), filepath.Join(base, "three/creds.json")}
	if len(ops.calls) != 2 || ops.calls[0] != want[0] || ops.calls[1] != want[1] {
		t.Errorf("calls = %v, want %v", ops.calls, want)
	}

	if report.SuccessCount != 2 || report.Total != 3 {
		t.Errorf("report = %s, want 2/3", report)
	}
	if report.OK() {
		t.Error("OK() = true for partial success")
	}
}

func TestEncryptAllContinuesAfterFailure(t *testing.T) {
	base := t.TempDir()
	for _, tgt := range threeTargets {
		touch(t, filepath.Join(base, tgt.Plaintext))
	}

	ops := &recordingOps{fail: map[string]bool{filepath.Join(base, "one/creds.json"): true}}
	report := New(ops, threeTargets).EncryptAll(base, "password")

	if len(ops.calls) != 3 {
		t.Errorf("attempted %d targets, want 3", len(ops.calls))
	}
	if report.Results[0].Reason != ReasonFailed {
		t.Errorf("Results[0].Reason = %q, want %q", report.Results[0].Reason, ReasonFailed)
	}
	if report.String() != "2/3" {
		t.Errorf("String() = %q, want 2/3", report.String())
	}
}

func TestDecryptAllUsesEncryptedSources(t *testing.T) {
	base := t.TempDir()
	touch(t, filepath.Join(base, "two/creds.enc.json"))

	ops := &recordingOps{}
	report := New(ops, threeTargets).DecryptAll(base, "password")

	if report.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", report.SuccessCount)
	}
	if report.Results[0].Reason != ReasonNotFound || report.Results[2].Reason != ReasonNotFound {
		t.Errorf("Results = %+v", report.Results)
	}
	if len(ops.calls) != 1 || ops.calls[0] != filepath.Join(base, "two/creds.enc.json") {
		t.Errorf("calls = %v", ops.calls)
	}
}

func TestDefaultTargets(t *testing.T) {
	b := New(&recordingOps{}, nil)
	if len(b.Targets()) != len(DefaultTargets) {
		t.Errorf("Targets() = %v, want DefaultTargets", b.Targets())
	}

	report := b.EncryptAll(t.TempDir(), "password")
	if report.Total != 2 || report.SuccessCount != 0 {
		t.Errorf("report = %s, want 0/2", report)
	}
	for _, r := range report.Results {
		if r.Reason != ReasonNotFound {
			t.Errorf("result %+v, want not_found", r)
		}
	}
}

// TestBatchWithVault runs the batch end to end against a real vault.
func TestBatchWithVault(t *testing.T) {
	c, err := envelope.ForNamespace(envelope.NamespaceCredentials)
	if err != nil {
		t.Fatalf("ForNamespace() error = %v", err)
	}
	v := vault.New(c, zerolog.Nop())

	base := t.TempDir()
	touch(t, filepath.Join(base, DefaultTargets[0].Plaintext))

	b := New(v, nil)
	enc := b.EncryptAll(base, "correct-horse")
	if enc.String() != "1/2" {
		t.Fatalf("EncryptAll() = %s, want 1/2", enc)
	}

	if err := os.Remove(filepath.Join(base, DefaultTargets[0].Plaintext)); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	dec := b.DecryptAll(base, "correct-horse")
	if dec.String() != "1/2" {
		t.Fatalf("DecryptAll() = %s, want 1/2", dec)
	}
	doc, err := v.GetDecryptedCredentials(filepath.Join(base, DefaultTargets[0].Encrypted), "correct-horse")
	if err != nil {
		t.Fatalf("GetDecryptedCredentials() error = %v", err)
	}
	if doc["key"] != "abc123" {
		t.Errorf("document = %v", doc)
	}

	status := b.Status(base)
	if !status[0].PlaintextExists || !status[0].EncryptedExists {
		t.Errorf("status[0] = %+v, want both files present", status[0])
	}
	if status[1].PlaintextExists || status[1].EncryptedExists {
		t.Errorf("status[1] = %+v, want no files", status[1])
	}

	wrong := b.DecryptAll(base, "wrong-password")
	if wrong.SuccessCount != 0 || wrong.Results[0].Reason != ReasonFailed {
		t.Errorf("DecryptAll() with wrong password = %+v", wrong.Results)
	}
}

func TestReasonOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", fmt.Errorf("%w: web/key.json", vault.ErrNotFound), ReasonNotFound},
		{"other", errors.New("boom"), ReasonFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ReasonOf(tt.err); got != tt.want {
				t.Errorf("ReasonOf() = %q, want %q", got, tt.want)
			}
		})
	}
}
