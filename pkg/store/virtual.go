package store

import (
	"context"
	"os"
)

// Virtual is a throwaway store on a fresh temporary directory, for
// scoped local processing of remote content.
type Virtual struct {
	*Store
	dir string
}

// NewVirtual creates the temporary directory and a store on it. Callers
// must Teardown when done.
func NewVirtual(ctx context.Context, opts ...Option) (*Virtual, error) {
	dir, err := os.MkdirTemp("", "anystore-")
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, dir, opts...)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}
	return &Virtual{Store: s, dir: dir}, nil
}

// Dir returns the store's temporary directory.
func (v *Virtual) Dir() string { return v.dir }

// Teardown closes the store and removes its directory with all content.
func (v *Virtual) Teardown() error {
	_ = v.Store.Close()
	return os.RemoveAll(v.dir)
}
