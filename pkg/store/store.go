// Package store implements the key/value facade over a storage backend:
// get/put/pop/delete/exists/info/checksum/open/stream/touch/iterate with
// pluggable value codecs, missing-key strictness and TTL emulation.
//
// A Store is bound to one base URI. Relative keys are validated and mapped
// to backend keys once per call; all state (backend handle, key mapper,
// policy) is computed at construction, so a Store is safe for concurrent
// use.
package store

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"anystore/pkg/backend"
	"anystore/pkg/backend/core"
	"anystore/pkg/codec"
	"anystore/pkg/keys"
)

// ErrDoesNotExist is returned for absent items on strict reads, Delete
// and Pop. Callers suppress it with errors.Is where absence is fine.
var ErrDoesNotExist = errors.New("store: key does not exist")

// Store is the facade over one backend. Zero value is not usable, use New.
type Store struct {
	uri        string
	mapper     *keys.Mapper
	backend    core.Backend
	codec      codec.Codec
	defaultTTL time.Duration
	strict     bool
	storeNone  bool
	backendCfg backend.Config
	now        func() time.Time
}

// New builds a Store for the base URI, opening (and probing, where the
// driver supports it) the matching backend.
func New(ctx context.Context, uri string, opts ...Option) (*Store, error) {
	mapper, err := keys.NewMapper(uri)
	if err != nil {
		return nil, err
	}
	s := &Store{
		uri:       mapper.URI(),
		mapper:    mapper,
		codec:     codec.Auto{},
		storeNone: true,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	b, err := backend.Open(ctx, s.uri, s.backendCfg)
	if err != nil {
		return nil, err
	}
	s.backend = b
	return s, nil
}

// URI returns the normalized store base URI.
func (s *Store) URI() string { return s.uri }

// Backend exposes the underlying driver.
func (s *Store) Backend() core.Backend { return s.backend }

// Close releases the backend's resources.
func (s *Store) Close() error { return s.backend.Close() }

// Get reads and decodes the value for key. Missing items follow the
// store's strictness: strict stores fail with ErrDoesNotExist,
// non-strict stores return nil.
func (s *Store) Get(ctx context.Context, key string) (any, error) {
	if s.strict {
		return s.GetRequired(ctx, key)
	}
	return s.GetOptional(ctx, key)
}

// GetOptional reads the value for key, returning nil when absent or
// expired.
func (s *Store) GetOptional(ctx context.Context, key string) (any, error) {
	value, err := s.GetRequired(ctx, key)
	if errors.Is(err, ErrDoesNotExist) {
		return nil, nil
	}
	return value, err
}

// GetRequired reads the value for key, failing with ErrDoesNotExist when
// absent or expired.
func (s *Store) GetRequired(ctx context.Context, key string) (any, error) {
	data, err := s.read(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.codec.Decode(data)
}

func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	backendKey, err := s.mapper.ToBackendKey(key)
	if err != nil {
		return nil, err
	}
	valid, err := s.checkTTL(ctx, backendKey)
	if err != nil {
		return nil, err
	}
	if !valid {
		return nil, fmt.Errorf("%w: %q", ErrDoesNotExist, key)
	}
	data, err := s.backend.Read(ctx, backendKey)
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	return data, nil
}

// Pop reads the value for key per the store's strictness, then deletes
// it. The delete is unconditional and its failure propagates.
func (s *Store) Pop(ctx context.Context, key string) (any, error) {
	value, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := s.Delete(ctx, key); err != nil {
		return nil, err
	}
	return value, nil
}

// Put encodes the value and writes it to key. A nil value is skipped
// entirely unless the store keeps none values (the default). The store's
// default TTL is forwarded to TTL-capable backends and can be overridden
// per call.
func (s *Store) Put(ctx context.Context, key string, value any, opts ...PutOption) error {
	if value == nil && !s.storeNone {
		return nil
	}
	backendKey, err := s.mapper.ToBackendKey(key)
	if err != nil {
		return err
	}
	data, err := s.codec.Encode(value)
	if err != nil {
		return err
	}
	return s.backend.Write(ctx, backendKey, bytes.NewReader(data), s.writeOptions(opts))
}

// Delete removes the item at key, failing with ErrDoesNotExist when
// absent. Callers that do not care use errors.Is to ignore it.
func (s *Store) Delete(ctx context.Context, key string) error {
	backendKey, err := s.mapper.ToBackendKey(key)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, backendKey); err != nil {
		return s.mapErr(key, err)
	}
	return nil
}

// Exists reports whether key holds an item. TTL-expired items are
// deleted and reported absent.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	backendKey, err := s.mapper.ToBackendKey(key)
	if err != nil {
		return false, err
	}
	valid, err := s.checkTTL(ctx, backendKey)
	if err != nil || !valid {
		return false, err
	}
	return s.backend.Exists(ctx, backendKey)
}

// Info returns metadata for the item at key.
func (s *Store) Info(ctx context.Context, key string) (Stats, error) {
	backendKey, err := s.mapper.ToBackendKey(key)
	if err != nil {
		return Stats{}, err
	}
	info, err := s.backend.Stat(ctx, backendKey)
	if err != nil {
		return Stats{}, s.mapErr(key, err)
	}
	return newStats(s.uri, key, info), nil
}

// Checksum streams the item's bytes through the named hash algorithm
// (sha256 when empty) and returns the hex digest.
func (s *Store) Checksum(ctx context.Context, key, algorithm string) (string, error) {
	r, err := s.OpenRead(ctx, key)
	if err != nil {
		return "", err
	}
	defer func() { _ = r.Close() }()
	return hashStream(r, algorithm)
}

// OpenRead opens the item at key for seekable streaming reads.
func (s *Store) OpenRead(ctx context.Context, key string) (io.ReadSeekCloser, error) {
	backendKey, err := s.mapper.ToBackendKey(key)
	if err != nil {
		return nil, err
	}
	r, err := s.backend.OpenRead(ctx, backendKey)
	if err != nil {
		return nil, s.mapErr(key, err)
	}
	return r, nil
}

// OpenWrite opens the item at key for streaming writes. The item becomes
// visible on Close.
func (s *Store) OpenWrite(ctx context.Context, key string, opts ...PutOption) (io.WriteCloser, error) {
	backendKey, err := s.mapper.ToBackendKey(key)
	if err != nil {
		return nil, err
	}
	return s.backend.OpenWrite(ctx, backendKey, s.writeOptions(opts))
}

// Stream lazily yields the item's content line by line, each line decoded
// through the store codec. A missing key yields nothing on non-strict
// stores and a single ErrDoesNotExist on strict ones.
func (s *Store) Stream(ctx context.Context, key string) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		r, err := s.OpenRead(ctx, key)
		if err != nil {
			if errors.Is(err, ErrDoesNotExist) && !s.strict {
				return
			}
			yield(nil, err)
			return
		}
		defer func() { _ = r.Close() }()
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			value, err := s.codec.Decode(line)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(value, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, err)
		}
	}
}

// Touch writes the current UTC timestamp to key in RFC 3339 form and
// returns it.
func (s *Store) Touch(ctx context.Context, key string) (time.Time, error) {
	now := s.now().UTC()
	if err := s.Put(ctx, key, now.Format(time.RFC3339Nano)); err != nil {
		return time.Time{}, err
	}
	return now, nil
}

// IterateKeys lazily yields the store's relative keys, filtered by the
// given options. A missing search base yields an empty sequence.
func (s *Store) IterateKeys(ctx context.Context, opts ...ListOption) iter.Seq2[string, error] {
	var q listQuery
	for _, opt := range opts {
		opt(&q)
	}
	return func(yield func(string, error) bool) {
		seq, err := s.listSeq(ctx, q)
		if err != nil {
			yield("", err)
			return
		}
		for backendKey, err := range seq {
			if err != nil {
				yield("", err)
				return
			}
			rel, err := s.mapper.FromBackendKey(backendKey)
			if err != nil {
				yield("", err)
				return
			}
			if q.excludePrefix != "" && strings.HasPrefix(rel, q.excludePrefix) {
				continue
			}
			if !yield(rel, nil) {
				return
			}
		}
	}
}

func (s *Store) listSeq(ctx context.Context, q listQuery) (iter.Seq2[string, error], error) {
	if q.glob != "" {
		pattern, err := s.mapper.ToBackendKey(q.glob)
		if err != nil {
			return nil, err
		}
		return s.backend.Glob(ctx, pattern), nil
	}
	base := s.mapper.Prefix()
	if q.prefix != "" {
		mapped, err := s.mapper.ToBackendKey(q.prefix)
		if err != nil {
			return nil, err
		}
		base = mapped
	}
	return s.backend.List(ctx, base), nil
}

// IterateValues lazily yields the decoded values for the keys matching
// the given options, skipping nil values.
func (s *Store) IterateValues(ctx context.Context, opts ...ListOption) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for key, err := range s.IterateKeys(ctx, opts...) {
			if err != nil {
				yield(nil, err)
				return
			}
			value, err := s.GetOptional(ctx, key)
			if err != nil {
				yield(nil, err)
				return
			}
			if value == nil {
				continue
			}
			if !yield(value, nil) {
				return
			}
		}
	}
}

// checkTTL reports whether the item at backendKey is still live under the
// store's default TTL, deleting it when expired. Items without a creation
// timestamp cannot expire. Stores without a default TTL skip the check.
func (s *Store) checkTTL(ctx context.Context, backendKey string) (bool, error) {
	if s.defaultTTL <= 0 {
		return true, nil
	}
	info, err := s.backend.Stat(ctx, backendKey)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if info.CreatedAt.IsZero() {
		return true, nil
	}
	if s.now().Sub(info.CreatedAt) <= s.defaultTTL {
		return true, nil
	}
	if err := s.backend.Delete(ctx, backendKey); err != nil && !errors.Is(err, core.ErrNotFound) {
		return false, err
	}
	return false, nil
}

func (s *Store) writeOptions(opts []PutOption) core.WriteOptions {
	cfg := putConfig{ttl: s.defaultTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return core.WriteOptions{TTL: cfg.ttl, ContentType: cfg.contentType}
}

func (s *Store) mapErr(key string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("%w: %q", ErrDoesNotExist, key)
	}
	return err
}
