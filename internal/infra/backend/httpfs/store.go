// Package httpfs implements a read-only core.Backend over plain HTTP.
// Backend keys are complete URLs; writes, deletes and listings report
// core.ErrUnsupported.
package httpfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"anystore/pkg/backend/core"
)

var _ core.Backend = (*Store)(nil)

// Store reads remote content over GET/HEAD requests.
type Store struct {
	client *http.Client
}

// New returns an HTTP-backed store. A nil client falls back to a
// default one without a global timeout so long streams are not cut off;
// cancellation rides on the request context.
func New(client *http.Client) *Store {
	if client == nil {
		client = &http.Client{}
	}
	return &Store{client: client}
}

// Scheme returns the driver identifier.
func (s *Store) Scheme() core.Scheme { return core.SchemeHTTP }

// Close is a no-op.
func (s *Store) Close() error { return nil }

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	resp, err := s.get(ctx, key, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// ReadRange asks the server for the byte range and falls back to local
// slicing when the server ignores Range headers.
func (s *Store) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	if length == 0 {
		if _, err := s.Stat(ctx, key); err != nil {
			return nil, err
		}
		return []byte{}, nil
	}
	resp, err := s.get(ctx, key, rangeHeader(offset, length))
	if err != nil {
		if statusOf(err) == http.StatusRequestedRangeNotSatisfiable {
			return []byte{}, nil
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		data = core.RangeSlice(data, offset, length)
	}
	return data, nil
}

func (s *Store) Write(context.Context, string, io.Reader, core.WriteOptions) error {
	return fmt.Errorf("%w: http backend is read-only", core.ErrUnsupported)
}

func (s *Store) Delete(context.Context, string) error {
	return fmt.Errorf("%w: http backend is read-only", core.ErrUnsupported)
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

func (s *Store) Stat(ctx context.Context, key string) (core.Info, error) {
	resp, err := s.head(ctx, key)
	if err != nil {
		return core.Info{}, err
	}
	_ = resp.Body.Close()
	info := core.Info{Key: key, ContentType: resp.Header.Get("Content-Type")}
	if resp.ContentLength >= 0 {
		info.Size = resp.ContentLength
	}
	if lm, err := http.ParseTime(resp.Header.Get("Last-Modified")); err == nil {
		info.CreatedAt = lm.UTC()
		info.UpdatedAt = lm.UTC()
	}
	return info, nil
}

func (s *Store) List(context.Context, string) iter.Seq2[string, error] {
	return core.ErrSeq(fmt.Errorf("%w: http backend cannot list", core.ErrUnsupported))
}

func (s *Store) Glob(context.Context, string) iter.Seq2[string, error] {
	return core.ErrSeq(fmt.Errorf("%w: http backend cannot list", core.ErrUnsupported))
}

// OpenRead returns a lazy reader that fetches ranges on demand, so
// seeking does not re-download the whole body. A negative size means
// the server reported no Content-Length.
func (s *Store) OpenRead(ctx context.Context, key string) (io.ReadSeekCloser, error) {
	resp, err := s.head(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()
	return &rangeReader{ctx: ctx, store: s, url: key, size: resp.ContentLength}, nil
}

func (s *Store) OpenWrite(context.Context, string, core.WriteOptions) (io.WriteCloser, error) {
	return nil, fmt.Errorf("%w: http backend is read-only", core.ErrUnsupported)
}

// --- transport ---

// statusError surfaces unexpected response codes to range handling.
type statusError struct {
	url    string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http: unexpected status %d for %q", e.status, e.url)
}

func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}

func (s *Store) get(ctx context.Context, url, rng string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if rng != "" {
		req.Header.Set("Range", rng)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		return resp, nil
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %q", core.ErrNotFound, url)
	default:
		_ = resp.Body.Close()
		return nil, &statusError{url: url, status: resp.StatusCode}
	}
}

// head falls back to a discarded GET when the server rejects HEAD.
func (s *Store) head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %q", core.ErrNotFound, url)
	case http.StatusMethodNotAllowed, http.StatusNotImplemented:
		_ = resp.Body.Close()
		return s.get(ctx, url, "")
	default:
		_ = resp.Body.Close()
		return nil, &statusError{url: url, status: resp.StatusCode}
	}
}

func rangeHeader(offset, length int64) string {
	if offset < 0 {
		return fmt.Sprintf("bytes=%d", offset)
	}
	if length < 0 {
		return fmt.Sprintf("bytes=%d-", offset)
	}
	return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
}

// --- lazy reader ---

type rangeReader struct {
	ctx   context.Context
	store *Store
	url   string
	size  int64
	pos   int64
	body  io.ReadCloser
}

func (r *rangeReader) Read(p []byte) (int, error) {
	if r.body == nil {
		if r.size >= 0 && r.pos >= r.size {
			return 0, io.EOF
		}
		resp, err := r.store.get(r.ctx, r.url, fmt.Sprintf("bytes=%d-", r.pos))
		if err != nil {
			if statusOf(err) == http.StatusRequestedRangeNotSatisfiable {
				return 0, io.EOF
			}
			return 0, err
		}
		body := resp.Body
		if resp.StatusCode == http.StatusOK && r.pos > 0 {
			if _, err := io.CopyN(io.Discard, body, r.pos); err != nil {
				_ = body.Close()
				return 0, err
			}
		}
		r.body = body
	}
	n, err := r.body.Read(p)
	r.pos += int64(n)
	if err == io.EOF {
		_ = r.body.Close()
		r.body = nil
	}
	return n, err
}

func (r *rangeReader) Seek(offset int64, whence int) (int64, error) {
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.pos + offset
	case io.SeekEnd:
		if r.size < 0 {
			return 0, fmt.Errorf("http: content length unknown, cannot seek from end")
		}
		target = r.size + offset
	default:
		return 0, fmt.Errorf("http: invalid seek whence %d", whence)
	}
	if target < 0 {
		return 0, fmt.Errorf("http: negative seek position %d", target)
	}
	if target != r.pos && r.body != nil {
		_ = r.body.Close()
		r.body = nil
	}
	r.pos = target
	return target, nil
}

func (r *rangeReader) Close() error {
	if r.body == nil {
		return nil
	}
	err := r.body.Close()
	r.body = nil
	return err
}
