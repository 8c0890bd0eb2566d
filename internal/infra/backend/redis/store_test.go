package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"anystore/pkg/backend/core"
	"anystore/testutil/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	uri := os.Getenv("ANYSTORE_TEST_REDIS_URL")
	if uri == "" {
		t.Skip("ANYSTORE_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, uri)
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestConformance(t *testing.T) {
	s := openTestStore(t)
	prefix := fmt.Sprintf("anystore-test-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		ctx := context.Background()
		for key, err := range s.List(ctx, prefix) {
			if err != nil {
				return
			}
			_ = s.Delete(ctx, key)
		}
	})
	storetest.Run(t, s, func(rel string) string {
		return prefix + "/" + rel
	})
}

func TestNativeTTL(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := fmt.Sprintf("anystore-ttl-%d", time.Now().UnixNano())

	if err := s.Write(ctx, key, strings.NewReader("x"), core.WriteOptions{TTL: 100 * time.Millisecond}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ok, err := s.Exists(ctx, key); err != nil || !ok {
		t.Fatalf("exists before expiry = %v, %v", ok, err)
	}
	time.Sleep(200 * time.Millisecond)
	if _, err := s.Read(ctx, key); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestParseOptionsStripsNamespacePath(t *testing.T) {
	opts, err := parseOptions("redis://localhost:6379/anystore/nested")
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if opts.Addr != "localhost:6379" {
		t.Fatalf("addr = %q", opts.Addr)
	}
	if opts.DB != 0 {
		t.Fatalf("db = %d, want 0", opts.DB)
	}
}

func TestParseOptionsKeepsDatabaseSelector(t *testing.T) {
	opts, err := parseOptions("redis://localhost:6379/3")
	if err != nil {
		t.Fatalf("parseOptions: %v", err)
	}
	if opts.DB != 3 {
		t.Fatalf("db = %d, want 3", opts.DB)
	}
}

func TestParseOptionsRejectsGarbage(t *testing.T) {
	if _, err := parseOptions("redis://user:pass@%zz"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEscapeMatch(t *testing.T) {
	cases := map[string]string{
		"plain/key":  "plain/key",
		"star*key":   `star\*key`,
		"q?[k]":      `q\?\[k\]`,
		`back\slash`: `back\\slash`,
	}
	for in, want := range cases {
		if got := escapeMatch(in); got != want {
			t.Fatalf("escapeMatch(%q) = %q, want %q", in, got, want)
		}
	}
}
