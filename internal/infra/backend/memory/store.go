// Package memory implements an in-process core.Backend for tests and
// ephemeral stores.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"iter"
	"sort"
	"strings"
	"sync"
	"time"

	"anystore/pkg/backend/core"
)

type entry struct {
	data        []byte
	contentType string
	createdAt   time.Time
	updatedAt   time.Time
}

// One process-wide keyspace shared by every memory:// store, so distinct
// Store values addressing the same namespace see the same items.
var (
	mu    sync.RWMutex
	items = map[string]entry{}
)

// Store implements core.Backend on the shared process map.
type Store struct{}

// New returns a handle on the process-wide memory backend.
func New() *Store { return &Store{} }

// Reset drops every stored item across all namespaces. Tests use it for
// isolation.
func Reset() {
	mu.Lock()
	items = map[string]entry{}
	mu.Unlock()
}

// Scheme returns the driver identifier.
func (s *Store) Scheme() core.Scheme { return core.SchemeMemory }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) Read(_ context.Context, key string) ([]byte, error) {
	mu.RLock()
	e, ok := items[key]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

func (s *Store) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	data, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return core.RangeSlice(data, offset, length), nil
}

func (s *Store) Write(_ context.Context, key string, r io.Reader, opts core.WriteOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	mu.Lock()
	items[key] = entry{data: data, contentType: opts.ContentType, createdAt: now, updatedAt: now}
	mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := items[key]; !ok {
		return fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	delete(items, key)
	return nil
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	mu.RLock()
	_, ok := items[key]
	mu.RUnlock()
	return ok, nil
}

func (s *Store) Stat(_ context.Context, key string) (core.Info, error) {
	mu.RLock()
	e, ok := items[key]
	mu.RUnlock()
	if !ok {
		return core.Info{}, fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	return core.Info{
		Key:         key,
		Size:        int64(len(e.data)),
		ContentType: e.contentType,
		CreatedAt:   e.createdAt,
		UpdatedAt:   e.updatedAt,
	}, nil
}

func (s *Store) List(_ context.Context, base string) iter.Seq2[string, error] {
	keys := snapshot(base)
	return func(yield func(string, error) bool) {
		for _, k := range keys {
			if !yield(k, nil) {
				return
			}
		}
	}
}

func (s *Store) Glob(_ context.Context, pattern string) iter.Seq2[string, error] {
	rx, err := core.TranslateGlob(pattern)
	if err != nil {
		return core.ErrSeq(err)
	}
	keys := snapshot(core.GlobBase(pattern))
	return func(yield func(string, error) bool) {
		for _, k := range keys {
			if !rx.MatchString(k) {
				continue
			}
			if !yield(k, nil) {
				return
			}
		}
	}
}

func (s *Store) OpenRead(ctx context.Context, key string) (io.ReadSeekCloser, error) {
	data, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return core.NopReadSeekCloser(bytes.NewReader(data)), nil
}

func (s *Store) OpenWrite(ctx context.Context, key string, opts core.WriteOptions) (io.WriteCloser, error) {
	return &writer{ctx: ctx, store: s, key: key, opts: opts}, nil
}

// writer buffers written bytes and commits the item on Close.
type writer struct {
	ctx   context.Context
	store *Store
	key   string
	opts  core.WriteOptions
	buf   bytes.Buffer
}

func (w *writer) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *writer) Close() error {
	return w.store.Write(w.ctx, w.key, &w.buf, w.opts)
}

func snapshot(base string) []string {
	mu.RLock()
	defer mu.RUnlock()
	keys := make([]string, 0, len(items))
	for k := range items {
		if !underBase(k, base) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func underBase(key, base string) bool {
	if base == "" {
		return true
	}
	return key == base || strings.HasPrefix(key, base+"/")
}
