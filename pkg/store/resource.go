package store

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"anystore/pkg/keys"
	"anystore/pkg/uris"
)

// Resource binds one absolute URI into a single-item handle exposing the
// Store verbs with the key pre-applied.
type Resource struct {
	uri   string
	store *Store
	key   string
}

// NewResource splits the URI at its last path separator into a store base
// and a key. A URI without a path (bare host) becomes a store whose own
// root is the item, keyed by the "." sentinel.
func NewResource(ctx context.Context, uri string, opts ...Option) (*Resource, error) {
	ensured, base, key, err := splitResourceURI(uri)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, base, opts...)
	if err != nil {
		return nil, err
	}
	return &Resource{uri: ensured, store: s, key: key}, nil
}

func splitResourceURI(uri string) (ensured, base, key string, err error) {
	ensured, err = uris.Ensure(uri)
	if err != nil {
		return "", "", "", err
	}
	if ensured == uris.Stdio {
		return "", "", "", fmt.Errorf("cannot bind a resource to %q", uri)
	}
	u, err := url.Parse(ensured)
	if err != nil {
		return "", "", "", fmt.Errorf("invalid resource uri %q: %w", uri, err)
	}
	if strings.Trim(u.Path, "/") == "" {
		return ensured, strings.TrimRight(ensured, "/"), uris.Current, nil
	}
	idx := strings.LastIndex(ensured, "/")
	base, key = ensured[:idx], ensured[idx+1:]
	if strings.HasSuffix(base, "://") {
		// single-segment path: the item is the store's own root
		return ensured, ensured, uris.Current, nil
	}
	return ensured, base, key, nil
}

// URI returns the bound absolute URI.
func (r *Resource) URI() string { return r.uri }

// Store returns the underlying store.
func (r *Resource) Store() *Store { return r.store }

// Key returns the relative key within the store.
func (r *Resource) Key() string { return r.key }

// Close releases the underlying store.
func (r *Resource) Close() error { return r.store.Close() }

func (r *Resource) Get(ctx context.Context) (any, error) {
	return r.store.Get(ctx, r.key)
}

func (r *Resource) GetOptional(ctx context.Context) (any, error) {
	return r.store.GetOptional(ctx, r.key)
}

func (r *Resource) GetRequired(ctx context.Context) (any, error) {
	return r.store.GetRequired(ctx, r.key)
}

func (r *Resource) Pop(ctx context.Context) (any, error) {
	return r.store.Pop(ctx, r.key)
}

func (r *Resource) Put(ctx context.Context, value any, opts ...PutOption) error {
	return r.store.Put(ctx, r.key, value, opts...)
}

func (r *Resource) Delete(ctx context.Context) error {
	return r.store.Delete(ctx, r.key)
}

func (r *Resource) Exists(ctx context.Context) (bool, error) {
	return r.store.Exists(ctx, r.key)
}

func (r *Resource) Info(ctx context.Context) (Stats, error) {
	return r.store.Info(ctx, r.key)
}

func (r *Resource) Checksum(ctx context.Context, algorithm string) (string, error) {
	return r.store.Checksum(ctx, r.key, algorithm)
}

func (r *Resource) OpenRead(ctx context.Context) (io.ReadSeekCloser, error) {
	return r.store.OpenRead(ctx, r.key)
}

func (r *Resource) OpenWrite(ctx context.Context, opts ...PutOption) (io.WriteCloser, error) {
	return r.store.OpenWrite(ctx, r.key, opts...)
}

func (r *Resource) Stream(ctx context.Context) iter.Seq2[any, error] {
	return r.store.Stream(ctx, r.key)
}

func (r *Resource) Touch(ctx context.Context) (time.Time, error) {
	return r.store.Touch(ctx, r.key)
}

// LocalPath materializes the resource on the local filesystem and returns
// the path with a release func. Locally stored resources yield their real
// path and the release is a no-op; anything else downloads into a
// temporary directory which the release removes. Callers must invoke the
// release on every exit path.
func (r *Resource) LocalPath(ctx context.Context) (string, func(), error) {
	if r.store.mapper.Kind() == keys.KindLocal {
		p, err := r.store.mapper.ToBackendKey(r.key)
		if err != nil {
			return "", nil, err
		}
		return p, func() {}, nil
	}
	dir, err := os.MkdirTemp("", "anystore-")
	if err != nil {
		return "", nil, err
	}
	release := func() { _ = os.RemoveAll(dir) }
	dst, err := r.download(ctx, dir)
	if err != nil {
		release()
		return "", nil, err
	}
	return dst, release, nil
}

func (r *Resource) download(ctx context.Context, dir string) (string, error) {
	name := path.Base(r.key)
	if name == "" || name == uris.Current || name == "/" {
		name = "resource"
	}
	src, err := r.store.OpenRead(ctx, r.key)
	if err != nil {
		return "", err
	}
	defer func() { _ = src.Close() }()
	dst := filepath.Join(dir, name)
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}

// LocalFile is a local binary read handle on a materialized resource,
// carrying its checksum, path and metadata. Closing it releases the
// temporary copy when one was made.
type LocalFile struct {
	*os.File
	Checksum string
	Path     string
	Stats    Stats
	release  func()
}

// Close closes the handle and releases the local materialization.
func (f *LocalFile) Close() error {
	err := f.File.Close()
	f.release()
	return err
}

// LocalOpen materializes the resource locally, opens it for reading and
// computes its checksum. The returned handle is positioned at the start.
func (r *Resource) LocalOpen(ctx context.Context) (*LocalFile, error) {
	stats, err := r.Info(ctx)
	if err != nil {
		return nil, err
	}
	p, release, err := r.LocalPath(ctx)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		release()
		return nil, err
	}
	sum, err := hashStream(f, DefaultHashAlgorithm)
	if err != nil {
		_ = f.Close()
		release()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		release()
		return nil, err
	}
	return &LocalFile{File: f, Checksum: sum, Path: p, Stats: stats, release: release}, nil
}
