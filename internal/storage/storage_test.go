package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"moneytrack/internal/core"
)

func kvImplementations(t *testing.T) map[string]KV {
	t.Helper()
	sq, err := NewSQLiteKV(filepath.Join(t.TempDir(), "nested", "moneytrack.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]KV{
		"memory": NewMemoryKV(),
		"sqlite": sq,
	}
}

func TestKVGetPut(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvImplementations(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := kv.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if err := kv.Put(ctx, "k", []byte("v1")); err != nil {
				t.Fatalf("put: %v", err)
			}
			if err := kv.Put(ctx, "k", []byte("v2")); err != nil {
				t.Fatalf("put: %v", err)
			}
			got, err := kv.Get(ctx, "k")
			if err != nil || string(got) != "v2" {
				t.Fatalf("expected v2, got %q (err=%v)", got, err)
			}
			if err := kv.Put(ctx, "empty", nil); err != nil {
				t.Fatalf("put nil: %v", err)
			}
			got, err = kv.Get(ctx, "empty")
			if err != nil || len(got) != 0 {
				t.Fatalf("expected empty value, got %q (err=%v)", got, err)
			}
		})
	}
}

func TestSQLiteRevisionAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")

	kv, err := NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := kv.Revision(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := kv.Put(ctx, "k", []byte("x")); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	rev, err := kv.Revision(ctx, "k")
	if err != nil || rev != 3 {
		t.Fatalf("expected revision 3, got %d (err=%v)", rev, err)
	}
	if err := kv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Migrations are idempotent and data survives reopening.
	kv, err = NewSQLiteKV(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer kv.Close()
	got, err := kv.Get(ctx, "k")
	if err != nil || string(got) != "x" {
		t.Fatalf("expected persisted value, got %q (err=%v)", got, err)
	}
}

func TestMemoryKVCopiesAndClose(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	buf := []byte("abc")
	_ = kv.Put(ctx, "k", buf)
	buf[0] = 'z'
	got, _ := kv.Get(ctx, "k")
	if string(got) != "abc" {
		t.Fatalf("Put must copy its input, got %q", got)
	}
	got[0] = 'y'
	again, _ := kv.Get(ctx, "k")
	if string(again) != "abc" {
		t.Fatalf("Get must return a copy, got %q", again)
	}

	_ = kv.Close()
	if _, err := kv.Get(ctx, "k"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := kv.Put(ctx, "k", nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestTransactionRepository(t *testing.T) {
	ctx := context.Background()
	for name, kv := range kvImplementations(t) {
		t.Run(name, func(t *testing.T) {
			repo := NewTransactionRepository(kv)
			if _, err := repo.ReadAll(ctx); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound before first write, got %v", err)
			}

			receipt := "data:image/png;base64,AA=="
			in := []core.Transaction{
				{ID: 1, Title: "Food", Amount: 10, Date: "2024-01-01T00:00:00.000Z"},
				{ID: 2, Title: "Gas", Amount: 20, Date: "2024-01-02T00:00:00.000Z", Receipt: &receipt,
					Location: &core.Location{Latitude: 1, Longitude: 2}, IsSynced: true},
			}
			if err := repo.WriteAll(ctx, in); err != nil {
				t.Fatalf("write: %v", err)
			}
			out, err := repo.ReadAll(ctx)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if len(out) != 2 || out[0].ID != 1 || out[1].ID != 2 {
				t.Fatalf("order or content lost: %+v", out)
			}
			if !out[1].HasReceipt() || *out[1].Receipt != receipt || !out[1].IsSynced || out[1].Location.Longitude != 2 {
				t.Fatalf("optional fields lost: %+v", out[1])
			}

			if err := repo.WriteAll(ctx, nil); err != nil {
				t.Fatalf("write nil: %v", err)
			}
			out, err = repo.ReadAll(ctx)
			if err != nil || out == nil || len(out) != 0 {
				t.Fatalf("expected empty non-nil collection, got %v (err=%v)", out, err)
			}
		})
	}
}

func TestTransactionRepositoryMalformed(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	_ = kv.Put(ctx, TransactionsKey, []byte(`{not json`))
	repo := NewTransactionRepository(kv)
	if _, err := repo.ReadAll(ctx); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	_ = kv.Put(ctx, TransactionsKey, []byte(`null`))
	out, err := repo.ReadAll(ctx)
	if err != nil || out == nil || len(out) != 0 {
		t.Fatalf("null should decode to empty collection, got %v (err=%v)", out, err)
	}
}
