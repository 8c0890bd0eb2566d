// Package keys validates store keys and maps them between their relative
// form and the absolute form a backend operates on.
//
// Every store URI resolves to a Kind and a key prefix, both computed once
// at construction. Relative keys are validated, then joined onto the
// prefix; backend keys are validated, then stripped of it. The mapping
// round-trips for every Kind.
package keys

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"anystore/pkg/uris"
)

var (
	// ErrInvalidKey marks empty, absolute or otherwise malformed keys.
	ErrInvalidKey = errors.New("invalid key")
	// ErrPathTraversal marks keys containing a ../ segment.
	ErrPathTraversal = errors.New("path traversal forbidden")
	// ErrKeyMapping marks backend keys outside the store's prefix.
	ErrKeyMapping = errors.New("key outside store prefix")
)

// Validate checks a key for emptiness and traversal, decodes percent
// escapes and strips trailing slashes.
func Validate(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.Contains(key, "../") {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, key)
	}
	return strings.TrimRight(uris.Unquote(key), "/"), nil
}

// ValidateRelative validates a key that must be relative to a store base:
// absolute paths and scheme-qualified URIs are rejected, "." segments are
// dropped. The bare self-reference "." normalizes to the empty key, which
// maps back to the store's own prefix.
func ValidateRelative(key string) (string, error) {
	k, err := Validate(key)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(k, "/") {
		return "", fmt.Errorf("%w: absolute key %q", ErrInvalidKey, key)
	}
	if u, err := url.Parse(k); err == nil && u.Scheme != "" {
		return "", fmt.Errorf("%w: absolute key %q", ErrInvalidKey, key)
	}
	parts := strings.Split(k, "/")
	kept := parts[:0]
	for _, p := range parts {
		if p == uris.Current {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "/"), nil
}

// Kind identifies how a store URI addresses its key space.
type Kind string

const (
	// KindLocal addresses keys as absolute filesystem paths.
	KindLocal Kind = "local"
	// KindMemory addresses keys inside a named in-process namespace.
	KindMemory Kind = "memory"
	// KindRedis addresses keys in a flat Redis keyspace.
	KindRedis Kind = "redis"
	// KindSQL addresses keys as rows of a table, no prefix at all.
	KindSQL Kind = "sql"
	// KindHTTP addresses keys as full HTTP(S) URLs.
	KindHTTP Kind = "http"
	// KindGeneric addresses keys as netloc/path, e.g. object stores.
	KindGeneric Kind = "generic"
)

// KindOf classifies a store URI by scheme. The anystore+http(s) wire
// protocol scheme classifies as KindHTTP.
func KindOf(uri string) Kind {
	scheme := strings.ToLower(uris.Scheme(uri))
	scheme = strings.TrimPrefix(scheme, "anystore+")
	switch {
	case scheme == "" || scheme == "file" || scheme == "local":
		return KindLocal
	case scheme == "memory":
		return KindMemory
	case scheme == "redis" || scheme == "rediss":
		return KindRedis
	case scheme == "http" || scheme == "https":
		return KindHTTP
	case isSQLScheme(scheme):
		return KindSQL
	default:
		return KindGeneric
	}
}

func isSQLScheme(scheme string) bool {
	switch scheme {
	case "sqlite", "sqlite3", "postgres", "postgresql", "mysql", "mariadb":
		return true
	}
	return strings.Contains(scheme, "sql")
}

// Mapper converts keys between their store-relative and backend form for
// one store URI. Kind and prefix are computed once; a Mapper is immutable
// and safe for concurrent use.
type Mapper struct {
	uri    string
	kind   Kind
	prefix string
}

// NewMapper normalizes the store URI and derives its Kind and key prefix.
func NewMapper(uri string) (*Mapper, error) {
	ensured, err := uris.Ensure(uri)
	if err != nil {
		return nil, err
	}
	if ensured == uris.Stdio {
		return nil, fmt.Errorf("%w: cannot map keys on %q", ErrInvalidKey, uri)
	}
	kind := KindOf(ensured)
	prefix, err := keyPrefix(ensured, kind)
	if err != nil {
		return nil, err
	}
	return &Mapper{uri: ensured, kind: kind, prefix: prefix}, nil
}

// URI returns the normalized store URI.
func (m *Mapper) URI() string { return m.uri }

// Kind returns the store's key space classification.
func (m *Mapper) Kind() Kind { return m.kind }

// Prefix returns the backend key prefix, possibly empty.
func (m *Mapper) Prefix() string { return m.prefix }

// ToBackendKey validates a relative key and joins it onto the prefix.
// The empty key (and thus ".") maps to the bare prefix.
func (m *Mapper) ToBackendKey(key string) (string, error) {
	k, err := ValidateRelative(key)
	if err != nil {
		return "", err
	}
	if m.prefix == "" {
		return k, nil
	}
	if k == "" {
		return m.prefix, nil
	}
	return m.prefix + "/" + k, nil
}

// FromBackendKey validates a backend key and strips the store prefix,
// returning the relative key.
func (m *Mapper) FromBackendKey(backendKey string) (string, error) {
	k, err := Validate(backendKey)
	if err != nil {
		return "", err
	}
	if m.kind == KindMemory {
		k = strings.TrimPrefix(k, "/")
	}
	if !strings.HasPrefix(k, m.prefix) {
		return "", fmt.Errorf("%w: %q does not have base %q", ErrKeyMapping, backendKey, m.prefix)
	}
	return strings.Trim(k[len(m.prefix):], "/"), nil
}

func keyPrefix(uri string, kind Kind) (string, error) {
	switch kind {
	case KindSQL:
		return "", nil
	case KindHTTP:
		return strings.TrimRight(strings.TrimPrefix(uri, "anystore+"), "/"), nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, uri)
	}
	switch kind {
	case KindLocal:
		return strings.TrimRight(u.Path, "/"), nil
	case KindMemory:
		return uris.JoinRelPaths(u.Host, u.Path), nil
	case KindRedis:
		return strings.Trim(u.Path, "/"), nil
	default:
		return uris.JoinRelPaths(u.Host, u.Path), nil
	}
}
