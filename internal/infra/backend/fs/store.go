// Package fs implements core.Backend on the local filesystem. Backend
// keys are absolute file paths; writes create missing parent directories
// and land atomically via a temp file rename.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"

	"anystore/pkg/backend/core"
)

// Store implements core.Backend using the local filesystem.
type Store struct{}

// New returns a filesystem-backed store.
func New() *Store { return &Store{} }

// Scheme returns the driver identifier.
func (s *Store) Scheme() core.Scheme { return core.SchemeFS }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) Read(_ context.Context, key string) ([]byte, error) {
	if err := statRegular(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	return data, err
}

func (s *Store) ReadRange(_ context.Context, key string, offset, length int64) ([]byte, error) {
	f, err := open(key)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	start, end := core.RangeBounds(st.Size(), offset, length)
	if start >= end {
		return []byte{}, nil
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, end-start)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *Store) Write(_ context.Context, key string, r io.Reader, _ core.WriteOptions) error {
	tmp, err := stageTemp(key)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	return commitTemp(tmp, key)
}

func (s *Store) Delete(_ context.Context, key string) error {
	err := os.Remove(key)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	return err
}

func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	st, err := os.Stat(key)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return st.Mode().IsRegular(), nil
}

func (s *Store) Stat(_ context.Context, key string) (core.Info, error) {
	st, err := os.Stat(key)
	if errors.Is(err, fs.ErrNotExist) {
		return core.Info{}, fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	if err != nil {
		return core.Info{}, err
	}
	if !st.Mode().IsRegular() {
		return core.Info{}, fmt.Errorf("%w: %q is not a stored item", core.ErrNotFound, key)
	}
	mtime := st.ModTime().UTC()
	return core.Info{Key: key, Size: st.Size(), CreatedAt: mtime, UpdatedAt: mtime}, nil
}

func (s *Store) List(_ context.Context, base string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		st, err := os.Stat(base)
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		if err != nil {
			yield("", err)
			return
		}
		if st.Mode().IsRegular() {
			yield(filepath.ToSlash(base), nil)
			return
		}
		walkErr := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !d.Type().IsRegular() {
				return nil
			}
			if !yield(filepath.ToSlash(path), nil) {
				return fs.SkipAll
			}
			return nil
		})
		if walkErr != nil {
			yield("", walkErr)
		}
	}
}

func (s *Store) Glob(ctx context.Context, pattern string) iter.Seq2[string, error] {
	rx, err := core.TranslateGlob(pattern)
	if err != nil {
		return core.ErrSeq(err)
	}
	base := core.GlobBase(pattern)
	return func(yield func(string, error) bool) {
		for key, err := range s.List(ctx, base) {
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

func (s *Store) OpenRead(_ context.Context, key string) (io.ReadSeekCloser, error) {
	return open(key)
}

func (s *Store) OpenWrite(_ context.Context, key string, _ core.WriteOptions) (io.WriteCloser, error) {
	tmp, err := stageTemp(key)
	if err != nil {
		return nil, err
	}
	return &fileWriter{tmp: tmp, key: key}, nil
}

// fileWriter streams into a temp file and renames it into place on Close.
type fileWriter struct {
	tmp *os.File
	key string
}

func (w *fileWriter) Write(p []byte) (int, error) { return w.tmp.Write(p) }

func (w *fileWriter) Close() error {
	if err := commitTemp(w.tmp, w.key); err != nil {
		_ = os.Remove(w.tmp.Name())
		return err
	}
	return nil
}

// --- helpers ---

func open(key string) (*os.File, error) {
	if err := statRegular(key); err != nil {
		return nil, err
	}
	f, err := os.Open(key)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	return f, err
}

func statRegular(key string) error {
	st, err := os.Stat(key)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	if err != nil {
		return err
	}
	if !st.Mode().IsRegular() {
		return fmt.Errorf("%w: %q is not a stored item", core.ErrNotFound, key)
	}
	return nil
}

func stageTemp(key string) (*os.File, error) {
	dir := filepath.Dir(key)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.CreateTemp(dir, ".tmp-*")
}

func commitTemp(tmp *os.File, key string) error {
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), key)
}

