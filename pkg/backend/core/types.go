// Package core defines the capability contract storage drivers implement
// and the shared types they exchange.
//
// Drivers operate on backend-absolute keys. Key mapping, codecs and TTL
// policy live in the layers above; a driver only moves bytes.
package core

import (
	"context"
	"errors"
	"io"
	"iter"
	"time"
)

// Scheme identifies a concrete storage driver implementation.
type Scheme string

const (
	// SchemeFS is the local filesystem driver.
	SchemeFS Scheme = "fs"
	// SchemeMemory is the in-process map driver.
	SchemeMemory Scheme = "memory"
	// SchemeS3 is the S3 / MinIO compatible object store driver.
	SchemeS3 Scheme = "s3"
	// SchemeSQL is the relational table driver (SQLite, PostgreSQL).
	SchemeSQL Scheme = "sql"
	// SchemeRedis is the Redis keyspace driver.
	SchemeRedis Scheme = "redis"
	// SchemeHTTP is the read-only plain HTTP(S) driver.
	SchemeHTTP Scheme = "http"
	// SchemeREST is the client driver for the anystore wire protocol.
	SchemeREST Scheme = "rest"
)

// WriteOptions specifies optional parameters for Write and OpenWrite.
type WriteOptions struct {
	// TTL expires the item after the given duration. Honored natively by
	// the redis and sql drivers; all other drivers ignore it.
	TTL time.Duration
	// ContentType is forwarded to backends that store one.
	ContentType string
}

// Info describes a stored item. Timestamps are zero when the backend
// does not track them.
type Info struct {
	Key         string
	Size        int64
	ContentType string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Backend is the uniform capability contract every driver implements.
//
// List and Glob are lazy: keys stream as they are discovered where the
// backend allows it, and a missing base yields an empty sequence rather
// than an error. Read-like operations return ErrNotFound for absent
// keys, Delete does too.
type Backend interface {
	// Read returns the full content for the key.
	Read(ctx context.Context, key string) ([]byte, error)
	// ReadRange returns a byte range. A negative length reads to the
	// end; a negative offset addresses |offset| bytes from the end.
	ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error)
	// Write streams the reader's content to the key, overwriting.
	Write(ctx context.Context, key string, r io.Reader, opts WriteOptions) error
	// Delete removes the key, ErrNotFound when absent.
	Delete(ctx context.Context, key string) error
	// Exists reports whether the key holds a stored item.
	Exists(ctx context.Context, key string) (bool, error)
	// Stat describes a stored item. Implicit directories do not stat.
	Stat(ctx context.Context, key string) (Info, error)
	// List yields all keys under base recursively, lazily.
	List(ctx context.Context, base string) iter.Seq2[string, error]
	// Glob yields all keys matching the pattern ("*" stays inside a
	// path segment, "**" crosses segments, "?" and "[...]" as usual).
	Glob(ctx context.Context, pattern string) iter.Seq2[string, error]
	// OpenRead opens the key for seekable streaming reads.
	OpenRead(ctx context.Context, key string) (io.ReadSeekCloser, error)
	// OpenWrite opens the key for streaming writes; the item becomes
	// visible on Close.
	OpenWrite(ctx context.Context, key string, opts WriteOptions) (io.WriteCloser, error)
	// Scheme returns the driver identifier.
	Scheme() Scheme
	// Close releases driver resources (connections, pools).
	Close() error
}

var (
	// ErrNotFound is returned when a key holds no stored item.
	ErrNotFound = errors.New("backend: key not found")
	// ErrUnsupported is returned when a driver lacks a capability.
	ErrUnsupported = errors.New("backend: unsupported operation")
	// ErrUnavailable is returned when a backend cannot be reached.
	ErrUnavailable = errors.New("backend: unavailable")
)

// EmptySeq returns a key sequence yielding nothing, for missing bases.
func EmptySeq() iter.Seq2[string, error] {
	return func(func(string, error) bool) {}
}

// ErrSeq returns a key sequence yielding a single error.
func ErrSeq(err error) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("", err)
	}
}
