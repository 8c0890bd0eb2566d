// Package redis implements core.Backend on a redis server. Values live
// in plain string keys, expiry rides on redis TTLs and listings go
// through SCAN.
package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"

	"anystore/pkg/backend/core"
)

var _ core.Backend = (*Store)(nil)

// Store is a redis-backed store.
type Store struct {
	client *redis.Client
}

// Open connects to the redis server named by uri and verifies
// connectivity with a ping. URIs carrying a key-namespace path such as
// redis://host/prefix are accepted; the path is not a database number.
func Open(ctx context.Context, uri string) (*Store, error) {
	opts, err := parseOptions(uri)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: ping redis: %v", core.ErrUnavailable, err)
	}
	return &Store{client: client}, nil
}

// parseOptions resolves a redis URI. go-redis expects the URL path to
// be a numeric database selector; namespace paths are stripped before
// retrying.
func parseOptions(uri string) (*redis.Options, error) {
	opts, err := redis.ParseURL(uri)
	if err == nil {
		return opts, nil
	}
	u, uerr := url.Parse(uri)
	if uerr != nil {
		return nil, fmt.Errorf("redis: parse uri: %w", uerr)
	}
	u.Path = ""
	u.RawQuery = ""
	opts, rerr := redis.ParseURL(u.String())
	if rerr != nil {
		return nil, fmt.Errorf("redis: parse uri: %w", err)
	}
	return opts, nil
}

// Scheme returns the driver identifier.
func (s *Store) Scheme() core.Scheme { return core.SchemeRedis }

// Close releases the connection pool.
func (s *Store) Close() error { return s.client.Close() }

// Client exposes the underlying client for integration testing hooks.
func (s *Store) Client() *redis.Client { return s.client }

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return data, nil
}

func (s *Store) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	if err := s.ensure(ctx, key); err != nil {
		return nil, err
	}
	if length == 0 {
		return []byte{}, nil
	}
	end := int64(-1)
	if offset >= 0 && length > 0 {
		end = offset + length - 1
	}
	data, err := s.client.GetRange(ctx, key, offset, end).Bytes()
	if err != nil {
		return nil, fmt.Errorf("redis getrange %q: %w", key, err)
	}
	return data, nil
}

func (s *Store) Write(ctx context.Context, key string, r io.Reader, opts core.WriteOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, key, data, opts.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis del %q: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	return nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists %q: %w", key, err)
	}
	return n > 0, nil
}

// Stat reports the stored size. Redis keeps no per-key timestamps, so
// both times stay zero and callers fall back to their own clock.
func (s *Store) Stat(ctx context.Context, key string) (core.Info, error) {
	if err := s.ensure(ctx, key); err != nil {
		return core.Info{}, err
	}
	size, err := s.client.StrLen(ctx, key).Result()
	if err != nil {
		return core.Info{}, fmt.Errorf("redis strlen %q: %w", key, err)
	}
	return core.Info{Key: key, Size: size}, nil
}

func (s *Store) List(ctx context.Context, base string) iter.Seq2[string, error] {
	match := "*"
	if base != "" {
		match = escapeMatch(base) + "*"
	}
	return func(yield func(string, error) bool) {
		seen := map[string]struct{}{}
		it := s.client.Scan(ctx, 0, match, 256).Iterator()
		for it.Next(ctx) {
			key := it.Val()
			if base != "" && key != base && !strings.HasPrefix(key, base+"/") {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if !yield(key, nil) {
				return
			}
		}
		if err := it.Err(); err != nil {
			yield("", fmt.Errorf("redis scan: %w", err))
		}
	}
}

func (s *Store) Glob(ctx context.Context, pattern string) iter.Seq2[string, error] {
	rx, err := core.TranslateGlob(pattern)
	if err != nil {
		return core.ErrSeq(err)
	}
	return func(yield func(string, error) bool) {
		for key, err := range s.List(ctx, core.GlobBase(pattern)) {
			if err != nil {
				yield("", err)
				return
			}
			if !rx.MatchString(key) {
				continue
			}
			if !yield(key, nil) {
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
	return &keyWriter{ctx: ctx, store: s, key: key, opts: opts}, nil
}

// keyWriter buffers streamed content and commits the key on Close.
type keyWriter struct {
	ctx   context.Context
	store *Store
	key   string
	opts  core.WriteOptions
	buf   bytes.Buffer
}

func (w *keyWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *keyWriter) Close() error {
	return w.store.Write(w.ctx, w.key, &w.buf, w.opts)
}

// --- helpers ---

func (s *Store) ensure(ctx context.Context, key string) error {
	ok, err := s.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	return nil
}

// escapeMatch neutralizes SCAN glob metacharacters in literal keys.
func escapeMatch(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
