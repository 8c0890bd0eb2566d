package store

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"iter"
	"os"

	"anystore/pkg/backend/core"
	"anystore/pkg/uris"
)

// SmartRead returns the full content behind a URI. The "-" URI reads
// standard input.
func SmartRead(ctx context.Context, uri string) ([]byte, error) {
	if uri == uris.Stdio {
		return io.ReadAll(os.Stdin)
	}
	r, err := NewResource(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	rc, err := r.OpenRead(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// SmartWrite writes content to a URI. The "-" URI writes standard
// output.
func SmartWrite(ctx context.Context, uri string, content []byte) error {
	if uri == uris.Stdio {
		_, err := os.Stdout.Write(content)
		return err
	}
	r, err := NewResource(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	w, err := r.OpenWrite(ctx)
	if err != nil {
		return err
	}
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// SmartStream lazily yields the raw lines behind a URI. The "-" URI
// streams standard input.
func SmartStream(ctx context.Context, uri string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		var in io.ReadCloser
		if uri == uris.Stdio {
			in = io.NopCloser(os.Stdin)
		} else {
			r, err := NewResource(ctx, uri)
			if err != nil {
				yield(nil, err)
				return
			}
			defer func() { _ = r.Close() }()
			rc, err := r.OpenRead(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			in = rc
		}
		defer func() { _ = in.Close() }()
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := make([]byte, len(scanner.Bytes()))
			copy(line, scanner.Bytes())
			if !yield(line, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield(nil, err)
		}
	}
}

type smartReader struct {
	io.ReadSeekCloser
	resource *Resource
}

func (r smartReader) Close() error {
	err := r.ReadSeekCloser.Close()
	_ = r.resource.Close()
	return err
}

// SmartOpenRead opens a URI for seekable reads. The "-" URI buffers
// standard input fully to stay seekable.
func SmartOpenRead(ctx context.Context, uri string) (io.ReadSeekCloser, error) {
	if uri == uris.Stdio {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, err
		}
		return core.NopReadSeekCloser(bytes.NewReader(data)), nil
	}
	r, err := NewResource(ctx, uri)
	if err != nil {
		return nil, err
	}
	rc, err := r.OpenRead(ctx)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return smartReader{ReadSeekCloser: rc, resource: r}, nil
}

type smartWriter struct {
	io.WriteCloser
	resource *Resource
}

func (w smartWriter) Close() error {
	err := w.WriteCloser.Close()
	_ = w.resource.Close()
	return err
}

// SmartOpenWrite opens a URI for streaming writes. The "-" URI writes
// standard output and ignores Close.
func SmartOpenWrite(ctx context.Context, uri string) (io.WriteCloser, error) {
	if uri == uris.Stdio {
		return nopWriteCloser{os.Stdout}, nil
	}
	r, err := NewResource(ctx, uri)
	if err != nil {
		return nil, err
	}
	w, err := r.OpenWrite(ctx)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return smartWriter{WriteCloser: w, resource: r}, nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
