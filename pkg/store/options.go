package store

import (
	"time"

	"anystore/pkg/backend"
	"anystore/pkg/codec"
)

// Option configures a Store at construction.
type Option func(*Store)

// WithCodec sets the value codec, default codec.Auto.
func WithCodec(c codec.Codec) Option {
	return func(s *Store) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithDefaultTTL expires items older than d on read, emulated via the
// backend's creation timestamps and forwarded natively where supported.
func WithDefaultTTL(d time.Duration) Option {
	return func(s *Store) { s.defaultTTL = d }
}

// WithStrict makes reads of absent keys fail with ErrDoesNotExist
// instead of returning nil.
func WithStrict(strict bool) Option {
	return func(s *Store) { s.strict = strict }
}

// WithStoreNoneValues controls whether Put persists nil values. On by
// default; when off, a nil Put is a no-op.
func WithStoreNoneValues(keep bool) Option {
	return func(s *Store) { s.storeNone = keep }
}

// WithBackendConfig passes driver settings to the backend factory.
func WithBackendConfig(cfg backend.Config) Option {
	return func(s *Store) { s.backendCfg = cfg }
}

// PutOption configures a single Put or OpenWrite call.
type PutOption func(*putConfig)

type putConfig struct {
	ttl         time.Duration
	contentType string
}

// WithTTL overrides the store's default TTL for this write.
func WithTTL(d time.Duration) PutOption {
	return func(c *putConfig) { c.ttl = d }
}

// WithContentType forwards a content type to backends that store one.
func WithContentType(contentType string) PutOption {
	return func(c *putConfig) { c.contentType = contentType }
}

// ListOption filters IterateKeys and IterateValues. Options compose; an
// empty value is a no-op so callers can pass request parameters through
// unconditionally.
type ListOption func(*listQuery)

type listQuery struct {
	prefix        string
	excludePrefix string
	glob          string
}

// WithPrefix lists only keys under the given relative prefix.
func WithPrefix(prefix string) ListOption {
	return func(q *listQuery) { q.prefix = prefix }
}

// WithExcludePrefix drops keys under the given relative prefix.
func WithExcludePrefix(prefix string) ListOption {
	return func(q *listQuery) { q.excludePrefix = prefix }
}

// WithGlob lists keys matching the pattern ("*" within a segment, "**"
// across segments). When set, a prefix option does not narrow the
// search base; exclusion still applies.
func WithGlob(pattern string) ListOption {
	return func(q *listQuery) { q.glob = pattern }
}
