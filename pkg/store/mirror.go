package store

import (
	"context"
	"io"

	"go.uber.org/zap"
)

// MirrorOptions filters and controls a Mirror run.
type MirrorOptions struct {
	// Prefix, ExcludePrefix and Glob narrow the source keys, composing
	// like IterateKeys options.
	Prefix        string
	ExcludePrefix string
	Glob          string
	// Overwrite replaces keys already present in the target; off by
	// default, existing keys are skipped.
	Overwrite bool
	// Logger reports per-key progress; nil disables logging.
	Logger *zap.Logger
}

// Mirror copies the matching source keys into the target store,
// streaming each value. It returns the number of copied and skipped
// keys.
func Mirror(ctx context.Context, source, target *Store, opts MirrorOptions) (copied, skipped int, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(
		zap.String("source", source.URI()),
		zap.String("target", target.URI()),
	)
	listOpts := []ListOption{
		WithPrefix(opts.Prefix),
		WithExcludePrefix(opts.ExcludePrefix),
		WithGlob(opts.Glob),
	}
	for key, kerr := range source.IterateKeys(ctx, listOpts...) {
		if kerr != nil {
			return copied, skipped, kerr
		}
		if !opts.Overwrite {
			ok, eerr := target.Exists(ctx, key)
			if eerr != nil {
				return copied, skipped, eerr
			}
			if ok {
				logger.Info("skipping existing key", zap.String("key", key))
				skipped++
				continue
			}
		}
		if cerr := copyKey(ctx, source, target, key); cerr != nil {
			return copied, skipped, cerr
		}
		logger.Info("mirrored key", zap.String("key", key))
		copied++
	}
	return copied, skipped, nil
}

func copyKey(ctx context.Context, source, target *Store, key string) error {
	r, err := source.OpenRead(ctx, key)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	w, err := target.OpenWrite(ctx, key)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
