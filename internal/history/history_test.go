package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordList(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	events := []*Event{
		{Timestamp: base, Operation: OpEncrypt, Namespace: "credentials", Input: "a.json", Output: "a.enc.json", Success: true},
		{Timestamp: base.Add(time.Minute), Operation: OpDecryptAll, Target: "web", Success: false, Reason: "not_found"},
		{Timestamp: base.Add(2 * time.Minute), Operation: OpEncrypt, Input: "b.json", Output: "b.enc.json", Success: true},
	}
	for _, e := range events {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
		if e.ID == "" {
			t.Error("Record() should assign an ID")
		}
	}

	got, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List() returned %d events, want 3", len(got))
	}
	if got[0].Input != "b.json" || got[2].Input != "a.json" {
		t.Errorf("List() order = %s, %s, want newest first", got[0].Input, got[2].Input)
	}
	if got[1].Success || got[1].Reason != "not_found" || got[1].Target != "web" {
		t.Errorf("failed event = %+v", got[1])
	}
	if got[0].Source != SourceCLI {
		t.Errorf("Source = %q, want default %q", got[0].Source, SourceCLI)
	}
	if !got[2].Timestamp.Equal(base) {
		t.Errorf("Timestamp = %v, want %v", got[2].Timestamp, base)
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by operation", Filter{Operation: OpEncrypt}, 2},
		{"since", Filter{Since: base.Add(30 * time.Second)}, 2},
		{"limit", Filter{Limit: 1}, 1},
		{"no match", Filter{Operation: OpFragmentJoin}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("List() returned %d events, want %d", len(got), tt.want)
			}
		})
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC()
	for _, ts := range []time.Time{now.Add(-48 * time.Hour), now.Add(-time.Hour), now} {
		if err := s.Record(ctx, &Event{Timestamp: ts, Operation: OpCheck, Success: true}); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	n, err := s.Prune(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Prune() removed %d, want 1", n)
	}
	got, _ := s.List(ctx, Filter{})
	if len(got) != 2 {
		t.Errorf("List() after prune returned %d, want 2", len(got))
	}
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Record(ctx, &Event{Operation: OpFragmentCreate, Input: "key.json", Success: true}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("database mode = %o, want 0600", info.Mode().Perm())
		}
	}

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	got, err := s.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].Operation != OpFragmentCreate {
		t.Errorf("List() after reopen = %+v", got)
	}
}

func TestClosed(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	s.Close()

	if err := s.Record(context.Background(), &Event{Operation: OpCheck}); !errors.Is(err, ErrClosed) {
		t.Errorf("Record() error = %v, want ErrClosed", err)
	}
	if _, err := s.List(context.Background(), Filter{}); !errors.Is(err, ErrClosed) {
		t.Errorf("List() error = %v, want ErrClosed", err)
	}
}
