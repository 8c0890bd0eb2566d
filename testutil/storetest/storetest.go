// Package storetest provides a reusable conformance battery asserting
// the core.Backend contract, shared by the driver test suites.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"anystore/pkg/backend/core"
)

// KeyFunc converts a test-relative key into the backend key form the
// driver under test expects (absolute path, bucket-prefixed, plain).
type KeyFunc func(rel string) string

// Identity passes test keys through unchanged.
func Identity(rel string) string { return rel }

// Run exercises the full Backend contract. Drivers with extra behavior
// (native TTL, content types) assert those in their own tests.
func Run(t *testing.T, b core.Backend, key KeyFunc) {
	t.Helper()
	ctx := context.Background()

	t.Run("write read round trip", func(t *testing.T) {
		put(t, b, key("round/trip"), "hello world")
		data, err := b.Read(ctx, key("round/trip"))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(data) != "hello world" {
			t.Fatalf("unexpected content %q", data)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		put(t, b, key("over/write"), "one")
		put(t, b, key("over/write"), "two")
		data, err := b.Read(ctx, key("over/write"))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(data) != "two" {
			t.Fatalf("unexpected content %q", data)
		}
	})

	t.Run("read missing", func(t *testing.T) {
		if _, err := b.Read(ctx, key("missing/item")); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("read range", func(t *testing.T) {
		put(t, b, key("range/data"), "abcdefghij")
		cases := []struct {
			offset, length int64
			want           string
		}{
			{2, 5, "cdefg"},
			{-3, -1, "hij"},
			{3, -1, "defghij"},
			{0, 4, "abcd"},
			{8, 100, "ij"},
		}
		for _, tc := range cases {
			got, err := b.ReadRange(ctx, key("range/data"), tc.offset, tc.length)
			if err != nil {
				t.Fatalf("read range %d/%d: %v", tc.offset, tc.length, err)
			}
			if string(got) != tc.want {
				t.Fatalf("range %d/%d = %q, want %q", tc.offset, tc.length, got, tc.want)
			}
		}
	})

	t.Run("delete", func(t *testing.T) {
		put(t, b, key("del/item"), "x")
		if err := b.Delete(ctx, key("del/item")); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if ok, err := b.Exists(ctx, key("del/item")); err != nil || ok {
			t.Fatalf("exists after delete = %v, %v", ok, err)
		}
		if err := b.Delete(ctx, key("del/item")); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("exists", func(t *testing.T) {
		if ok, err := b.Exists(ctx, key("exists/nope")); err != nil || ok {
			t.Fatalf("exists = %v, %v", ok, err)
		}
		put(t, b, key("exists/yes"), "x")
		if ok, err := b.Exists(ctx, key("exists/yes")); err != nil || !ok {
			t.Fatalf("exists = %v, %v", ok, err)
		}
	})

	t.Run("stat", func(t *testing.T) {
		put(t, b, key("stat/item"), "12345")
		info, err := b.Stat(ctx, key("stat/item"))
		if err != nil {
			t.Fatalf("stat: %v", err)
		}
		if info.Size != 5 {
			t.Fatalf("size = %d, want 5", info.Size)
		}
		if info.Key != key("stat/item") {
			t.Fatalf("key = %q, want %q", info.Key, key("stat/item"))
		}
		if _, err := b.Stat(ctx, key("stat/missing")); !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("list", func(t *testing.T) {
		put(t, b, key("listing/foo/bar/baz"), "1")
		put(t, b, key("listing/foo/qux"), "2")
		put(t, b, key("listing/other"), "3")
		got := collect(t, b.List(ctx, key("listing")))
		want := []string{
			key("listing/foo/bar/baz"),
			key("listing/foo/qux"),
			key("listing/other"),
		}
		assertKeys(t, got, want)

		got = collect(t, b.List(ctx, key("listing/foo")))
		want = []string{key("listing/foo/bar/baz"), key("listing/foo/qux")}
		assertKeys(t, got, want)
	})

	t.Run("list missing base", func(t *testing.T) {
		got := collect(t, b.List(ctx, key("nothing/here")))
		if len(got) != 0 {
			t.Fatalf("expected empty listing, got %v", got)
		}
	})

	t.Run("glob", func(t *testing.T) {
		put(t, b, key("globs/foo/bar/baz"), "1")
		put(t, b, key("globs/foo/qux"), "2")
		put(t, b, key("globs/other"), "3")
		got := collect(t, b.Glob(ctx, key("globs/foo/*")))
		assertKeys(t, got, []string{key("globs/foo/qux")})

		got = collect(t, b.Glob(ctx, key("globs/**")))
		assertKeys(t, got, []string{
			key("globs/foo/bar/baz"),
			key("globs/foo/qux"),
			key("globs/other"),
		})

		got = collect(t, b.Glob(ctx, key("globs/void/*")))
		if len(got) != 0 {
			t.Fatalf("expected empty glob, got %v", got)
		}
	})

	t.Run("open read seeks", func(t *testing.T) {
		put(t, b, key("seek/item"), "abcdefghij")
		r, err := b.OpenRead(ctx, key("seek/item"))
		if err != nil {
			t.Fatalf("open read: %v", err)
		}
		defer r.Close()
		if _, err := r.Seek(6, io.SeekStart); err != nil {
			t.Fatalf("seek: %v", err)
		}
		rest, err := io.ReadAll(r)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(rest) != "ghij" {
			t.Fatalf("unexpected tail %q", rest)
		}
	})

	t.Run("open write streams", func(t *testing.T) {
		w, err := b.OpenWrite(ctx, key("stream/item"), core.WriteOptions{})
		if err != nil {
			t.Fatalf("open write: %v", err)
		}
		for _, chunk := range []string{"first ", "second ", "third"} {
			if _, err := io.Copy(w, strings.NewReader(chunk)); err != nil {
				t.Fatalf("write: %v", err)
			}
		}
		if err := w.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		data, err := b.Read(ctx, key("stream/item"))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if string(data) != "first second third" {
			t.Fatalf("unexpected content %q", data)
		}
	})

	t.Run("concurrent disjoint writers", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				k := key(fmt.Sprintf("parallel/worker-%d", i))
				body := strings.Repeat(fmt.Sprintf("%d", i), 64)
				if err := b.Write(ctx, k, strings.NewReader(body), core.WriteOptions{}); err != nil {
					errs <- err
					return
				}
				data, err := b.Read(ctx, k)
				if err != nil {
					errs <- err
					return
				}
				if string(data) != body {
					errs <- fmt.Errorf("worker %d read %q", i, data[:8])
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			t.Fatalf("concurrent access: %v", err)
		}
	})
}

func put(t *testing.T, b core.Backend, key, content string) {
	t.Helper()
	if err := b.Write(context.Background(), key, bytes.NewReader([]byte(content)), core.WriteOptions{}); err != nil {
		t.Fatalf("write %s: %v", key, err)
	}
}

func collect(t *testing.T, seq func(func(string, error) bool)) []string {
	t.Helper()
	var keys []string
	seq(func(k string, err error) bool {
		if err != nil {
			t.Fatalf("iterate: %v", err)
		}
		keys = append(keys, k)
		return true
	})
	sort.Strings(keys)
	return keys
}

func assertKeys(t *testing.T, got, want []string) {
	t.Helper()
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
