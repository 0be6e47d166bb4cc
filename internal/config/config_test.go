package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/forest6511/credvault/pkg/batch"
	"github.com/forest6511/credvault/pkg/envelope"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("Chmod() error = %v", err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Targets) != len(batch.DefaultTargets) {
		t.Errorf("Targets = %v, want defaults", cfg.Targets)
	}
	if cfg.DevFallback {
		t.Error("DevFallback should be off by default")
	}
	if cfg.PasswordEnv != DefaultPasswordEnv {
		t.Errorf("PasswordEnv = %q, want %q", cfg.PasswordEnv, DefaultPasswordEnv)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
targets:
  - name: api
    plaintext: api/keys.json
    encrypted: api/keys.enc.json
password_env: MY_VAULT_PW
dev_fallback: true
history_path: /tmp/h.db
fragments:
  dir: /mnt/usb/fragments
  s3:
    bucket: offsite
    region: eu-west-1
`, 0600)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Targets) != 1 || cfg.Targets[0].Name != "api" || cfg.Targets[0].Encrypted != "api/keys.enc.json" {
		t.Errorf("Targets = %+v", cfg.Targets)
	}
	if cfg.PasswordEnv != "MY_VAULT_PW" {
		t.Errorf("PasswordEnv = %q", cfg.PasswordEnv)
	}
	if cfg.WalletPasswordEnv != DefaultWalletPasswordEnv {
		t.Errorf("WalletPasswordEnv = %q, want default", cfg.WalletPasswordEnv)
	}
	if !cfg.DevFallback {
		t.Error("DevFallback = false, want true")
	}
	if cfg.Fragments.Dir != "/mnt/usb/fragments" {
		t.Errorf("Fragments.Dir = %q", cfg.Fragments.Dir)
	}
	if cfg.Fragments.ManifestDir != "backups/manifests" {
		t.Errorf("Fragments.ManifestDir = %q, want default", cfg.Fragments.ManifestDir)
	}
	if cfg.Fragments.S3 == nil || cfg.Fragments.S3.Bucket != "offsite" || cfg.Fragments.S3.Region != "eu-west-1" {
		t.Errorf("Fragments.S3 = %+v", cfg.Fragments.S3)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "passwrod_env: X\n"},
		{"target without name", "targets:\n  - plaintext: a\n    encrypted: b\n"},
		{"target without paths", "targets:\n  - name: a\n"},
		{"same paths", "targets:\n  - name: a\n    plaintext: x\n    encrypted: x\n"},
		{"duplicate target", "targets:\n  - {name: a, plaintext: x, encrypted: y}\n  - {name: a, plaintext: z, encrypted: w}\n"},
		{"s3 without bucket", "fragments:\n  s3:\n    region: us-east-1\n"},
		{"not yaml", "targets: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.content)); err == nil {
				t.Error("Parse() should fail")
			}
		})
	}
}

func TestLoadInsecure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on Windows")
	}

	t.Run("world writable", func(t *testing.T) {
		path := writeConfig(t, "dev_fallback: false\n", 0666)
		if _, err := Load(path); !errors.Is(err, ErrConfigInsecure) {
			t.Errorf("Load() error = %v, want ErrConfigInsecure", err)
		}
	})

	t.Run("symlink", func(t *testing.T) {
		target := writeConfig(t, "dev_fallback: false\n", 0600)
		link := filepath.Join(t.TempDir(), FileName)
		if err := os.Symlink(target, link); err != nil {
			t.Skipf("Symlink() error = %v", err)
		}
		if _, err := Load(link); !errors.Is(err, ErrConfigSymlink) {
			t.Errorf("Load() error = %v, want ErrConfigSymlink", err)
		}
	})
}

func TestResolvePassword(t *testing.T) {
	noTTY := func(string) (string, error) { return "", ErrNoPassword }

	t.Run("environment first", func(t *testing.T) {
		t.Setenv(DefaultPasswordEnv, "from-env")
		cfg := Default()
		prompted := false
		pw, err := cfg.ResolvePassword(envelope.NamespaceCredentials, func(string) (string, error) {
			prompted = true
			return "from-prompt", nil
		}, zerolog.Nop())
		if err != nil {
			t.Fatalf("ResolvePassword() error = %v", err)
		}
		if pw != "from-env" || prompted {
			t.Errorf("ResolvePassword() = %q (prompted %v), want env value without prompt", pw, prompted)
		}
	})

	t.Run("wallet variable", func(t *testing.T) {
		t.Setenv(DefaultPasswordEnv, "credentials-pw")
		t.Setenv(DefaultWalletPasswordEnv, "wallet-pw")
		pw, err := Default().ResolvePassword(envelope.NamespaceWallet, noTTY, zerolog.Nop())
		if err != nil || pw != "wallet-pw" {
			t.Errorf("ResolvePassword() = %q, %v, want wallet-pw", pw, err)
		}
	})

	t.Run("prompt", func(t *testing.T) {
		t.Setenv(DefaultPasswordEnv, "")
		var label string
		pw, err := Default().ResolvePassword(envelope.NamespaceCredentials, func(l string) (string, error) {
			label = l
			return "typed", nil
		}, zerolog.Nop())
		if err != nil || pw != "typed" {
			t.Errorf("ResolvePassword() = %q, %v, want typed", pw, err)
		}
		if !strings.Contains(label, "credentials") {
			t.Errorf("prompt label = %q, want namespace", label)
		}
	})

	t.Run("no source without fallback", func(t *testing.T) {
		t.Setenv(DefaultPasswordEnv, "")
		_, err := Default().ResolvePassword(envelope.NamespaceCredentials, noTTY, zerolog.Nop())
		if !errors.Is(err, ErrNoPassword) {
			t.Errorf("ResolvePassword() error = %v, want ErrNoPassword", err)
		}
	})

	t.Run("dev fallback warns", func(t *testing.T) {
		t.Setenv(DefaultPasswordEnv, "")
		cfg := Default()
		cfg.DevFallback = true
		var buf bytes.Buffer
		pw, err := cfg.ResolvePassword(envelope.NamespaceCredentials, noTTY, zerolog.New(&buf))
		if err != nil {
			t.Fatalf("ResolvePassword() error = %v", err)
		}
		if pw != DevFallbackPassword {
			t.Errorf("ResolvePassword() = %q, want DevFallbackPassword", pw)
		}
		if !strings.Contains(buf.String(), `"level":"warn"`) {
			t.Errorf("expected a warning log, got %q", buf.String())
		}
	})

	t.Run("prompt error", func(t *testing.T) {
		t.Setenv(DefaultPasswordEnv, "")
		boom := errors.New("read failed")
		cfg := Default()
		cfg.DevFallback = true
		_, err := cfg.ResolvePassword(envelope.NamespaceCredentials, func(string) (string, error) {
			return "", boom
		}, zerolog.Nop())
		if !errors.Is(err, boom) {
			t.Errorf("ResolvePassword() error = %v, want prompt error", err)
		}
	})
}
