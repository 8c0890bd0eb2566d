// Package restfs implements core.Backend against a remote anystore
// server. Backend keys are complete URLs below the server base; reads
// ride on plain HTTP semantics while writes, deletes and listings use
// the anystore endpoints (streamed PUT, DELETE, POST /_list).
package restfs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"anystore/internal/infra/backend/httpfs"
	"anystore/pkg/backend/core"
)

var _ core.Backend = (*Store)(nil)

// Store talks to a remote anystore server.
type Store struct {
	*httpfs.Store
	client *http.Client
}

// New returns a client for the anystore wire protocol. A nil client
// falls back to a default one.
func New(client *http.Client) *Store {
	if client == nil {
		client = &http.Client{}
	}
	return &Store{Store: httpfs.New(client), client: client}
}

// Scheme returns the driver identifier.
func (s *Store) Scheme() core.Scheme { return core.SchemeREST }

// Write streams the content through a single PUT request. The server
// owns TTL handling; the option is not part of the wire contract and is
// ignored here.
func (s *Store) Write(ctx context.Context, key string, r io.Reader, opts core.WriteOptions) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, key, r)
	if err != nil {
		return err
	}
	if opts.ContentType != "" {
		req.Header.Set("Content-Type", opts.ContentType)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("anystore: put %q: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, key, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %q", core.ErrNotFound, key)
	case resp.StatusCode >= 300:
		return fmt.Errorf("anystore: delete %q: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}

// Stat prefers the x-anystore metadata headers and falls back to the
// standard HTTP ones.
func (s *Store) Stat(ctx context.Context, key string) (core.Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, key, nil)
	if err != nil {
		return core.Info{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return core.Info{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return core.Info{}, fmt.Errorf("%w: %q", core.ErrNotFound, key)
	case resp.StatusCode != http.StatusOK:
		return core.Info{}, fmt.Errorf("anystore: head %q: unexpected status %d", key, resp.StatusCode)
	}
	info := core.Info{Key: key}
	if v := resp.Header.Get("x-anystore-size"); v != "" {
		info.Size, _ = strconv.ParseInt(v, 10, 64)
	} else if resp.ContentLength >= 0 {
		info.Size = resp.ContentLength
	}
	info.ContentType = resp.Header.Get("x-anystore-mimetype")
	if info.ContentType == "" {
		info.ContentType = resp.Header.Get("Content-Type")
	}
	info.CreatedAt = headerTime(resp.Header, "x-anystore-created-at")
	info.UpdatedAt = headerTime(resp.Header, "x-anystore-updated-at")
	if info.UpdatedAt.IsZero() {
		if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
			info.UpdatedAt = lm.UTC()
		}
	}
	return info, nil
}

func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Stat(ctx, key)
	if errors.Is(err, core.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List streams keys from POST /_list, lazily, one line per key.
func (s *Store) List(ctx context.Context, base string) iter.Seq2[string, error] {
	root, rel, err := splitServer(base)
	if err != nil {
		return core.ErrSeq(err)
	}
	params := url.Values{}
	if rel != "" {
		params.Set("prefix", rel)
	}
	return s.listRequest(ctx, root, params)
}

// Glob pushes the pattern to the server, which matches it against its
// own keyspace.
func (s *Store) Glob(ctx context.Context, pattern string) iter.Seq2[string, error] {
	root, rel, err := splitServer(pattern)
	if err != nil {
		return core.ErrSeq(err)
	}
	params := url.Values{}
	if rel != "" {
		params.Set("glob", rel)
	}
	return s.listRequest(ctx, root, params)
}

func (s *Store) listRequest(ctx context.Context, root string, params url.Values) iter.Seq2[string, error] {
	endpoint := root + "/_list"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	return func(yield func(string, error) bool) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			yield("", err)
			return
		}
		resp, err := s.client.Do(req)
		if err != nil {
			yield("", err)
			return
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			yield("", fmt.Errorf("anystore: list: unexpected status %d", resp.StatusCode))
			return
		}
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			key := strings.TrimSpace(scanner.Text())
			if key == "" {
				continue
			}
			if !yield(root+"/"+key, nil) {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			yield("", fmt.Errorf("anystore: list: %w", err))
		}
	}
}

// OpenWrite feeds a background PUT through a pipe so the payload never
// buffers fully in memory.
func (s *Store) OpenWrite(ctx context.Context, key string, opts core.WriteOptions) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := s.Write(ctx, key, pr, opts)
		if err != nil {
			_ = pr.CloseWithError(err)
		}
		done <- err
	}()
	return &putWriter{pw: pw, done: done}, nil
}

type putWriter struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *putWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *putWriter) Close() error {
	_ = w.pw.Close()
	return <-w.done
}

// --- helpers ---

// splitServer divides a backend key into the server root and the
// server-relative remainder: "https://host/a/b" -> ("https://host", "a/b").
func splitServer(key string) (root, rel string, err error) {
	u, err := url.Parse(key)
	if err != nil {
		return "", "", fmt.Errorf("anystore: parse %q: %w", key, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("anystore: %q is not an absolute server url", key)
	}
	return u.Scheme + "://" + u.Host, strings.Trim(u.Path, "/"), nil
}

func headerTime(h http.Header, name string) time.Time {
	v := h.Get(name)
	if v == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
