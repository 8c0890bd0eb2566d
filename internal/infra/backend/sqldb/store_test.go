package sqldb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"anystore/pkg/backend/core"
	"anystore/testutil/storetest"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	uri := "sqlite://" + filepath.Join(t.TempDir(), "kv.db")
	s, err := Open(context.Background(), uri, Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformanceSQLite(t *testing.T) {
	storetest.Run(t, openSQLite(t), storetest.Identity)
}

func TestConformancePostgres(t *testing.T) {
	dsn := os.Getenv("ANYSTORE_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("ANYSTORE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, dsn, Config{Table: "anystore_conformance"})
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.DB().ExecContext(ctx, `DROP TABLE IF EXISTS anystore_conformance`)
		_ = s.Close()
	})
	storetest.Run(t, s, storetest.Identity)
}

func TestRowTTL(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	base := time.Now()
	s.now = func() time.Time { return base }

	if err := s.Write(ctx, "volatile", strings.NewReader("x"), core.WriteOptions{TTL: time.Second}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Write(ctx, "durable", strings.NewReader("y"), core.WriteOptions{}); err != nil {
		t.Fatalf("write: %v", err)
	}

	s.now = func() time.Time { return base.Add(500 * time.Millisecond) }
	if _, err := s.Read(ctx, "volatile"); err != nil {
		t.Fatalf("read before expiry: %v", err)
	}

	s.now = func() time.Time { return base.Add(2 * time.Second) }
	if _, err := s.Read(ctx, "volatile"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
	if ok, err := s.Exists(ctx, "volatile"); err != nil || ok {
		t.Fatalf("exists after expiry = %v, %v", ok, err)
	}
	var keys []string
	for k, err := range s.List(ctx, "") {
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		keys = append(keys, k)
	}
	if len(keys) != 1 || keys[0] != "durable" {
		t.Fatalf("listing after expiry = %v, want [durable]", keys)
	}

	var count int
	if err := s.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM anystore WHERE key = 'volatile'`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired row not reaped")
	}
}

func TestOverwriteRefreshesExpiry(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	base := time.Now()
	s.now = func() time.Time { return base }

	if err := s.Write(ctx, "item", strings.NewReader("a"), core.WriteOptions{TTL: time.Second}); err != nil {
		t.Fatalf("write: %v", err)
	}
	s.now = func() time.Time { return base.Add(900 * time.Millisecond) }
	if err := s.Write(ctx, "item", strings.NewReader("b"), core.WriteOptions{TTL: time.Second}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	s.now = func() time.Time { return base.Add(1500 * time.Millisecond) }
	data, err := s.Read(ctx, "item")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "b" {
		t.Fatalf("content = %q, want b", data)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kv.db")
	uri := "sqlite://" + path

	s, err := Open(ctx, uri, Config{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Write(ctx, "keep", strings.NewReader("payload"), core.WriteOptions{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = Open(ctx, uri, Config{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	data, err := s.Read(ctx, "keep")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("content = %q, want payload", data)
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "mysql://localhost/kv", Config{})
	if !errors.Is(err, core.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenRejectsBadTableName(t *testing.T) {
	uri := "sqlite://" + filepath.Join(t.TempDir(), "kv.db")
	if _, err := Open(context.Background(), uri, Config{Table: "bad-name; drop"}); err == nil {
		t.Fatal("expected error for invalid table name")
	}
}
