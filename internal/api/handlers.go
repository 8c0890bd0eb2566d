// Package api exposes a store over the anystore wire protocol: plain
// HTTP reads with range support, streamed writes, newline-delimited
// listings and metadata carried in x-anystore headers.
package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"anystore/pkg/store"
)

type handlers struct {
	store  *store.Store
	logger *zap.Logger
}

// requestKey turns the request path into a store key. Path segments are
// already URL-decoded by the HTTP stack, so encoded names address the
// same items as their literal form.
func requestKey(r *http.Request) string {
	return strings.Trim(r.URL.Path, "/")
}

func (h *handlers) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := requestKey(r)
	stats, err := h.store.Info(ctx, key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if rng := r.Header.Get("Range"); rng != "" {
		h.serveRange(w, r, key, stats, rng)
		return
	}
	reader, err := h.store.OpenRead(ctx, key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer func() { _ = reader.Close() }()
	statsHeaders(w.Header(), stats)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("response stream aborted",
			zap.String("key", key), zap.Error(err))
	}
}

func (h *handlers) serveRange(w http.ResponseWriter, r *http.Request, key string, stats store.Stats, header string) {
	start, end, err := parseRange(header, stats.Size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", stats.Size))
		writeDetail(w, http.StatusRequestedRangeNotSatisfiable, err.Error())
		return
	}
	length := end - start + 1
	reader, err := h.store.OpenRead(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	defer func() { _ = reader.Close() }()
	if _, err := reader.Seek(start, io.SeekStart); err != nil {
		h.writeError(w, r, err)
		return
	}
	statsHeaders(w.Header(), stats)
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, stats.Size))
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	w.WriteHeader(http.StatusPartialContent)
	if _, err := io.CopyN(w, reader, length); err != nil {
		h.logger.Warn("range stream aborted",
			zap.String("key", key), zap.Error(err))
	}
}

func (h *handlers) handleHead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := requestKey(r)
	stats, err := h.store.Info(ctx, key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	statsHeaders(w.Header(), stats)
	query := r.URL.Query()
	if wantChecksum(query.Get("checksum")) {
		// an absent algorithm falls through to the store default
		sum, err := h.store.Checksum(ctx, key, query.Get("algorithm"))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		w.Header().Set("x-anystore-checksum", sum)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *handlers) handlePut(w http.ResponseWriter, r *http.Request) {
	key := requestKey(r)
	var opts []store.PutOption
	if ct := r.Header.Get("Content-Type"); ct != "" {
		opts = append(opts, store.WithContentType(ct))
	}
	sink, err := h.store.OpenWrite(r.Context(), key, opts...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := io.Copy(sink, r.Body); err != nil {
		_ = sink.Close()
		h.writeError(w, r, err)
		return
	}
	if err := sink.Close(); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), requestKey(r)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) handleTouch(w http.ResponseWriter, r *http.Request) {
	ts, err := h.store.Touch(r.Context(), requestKey(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ts.Format(time.RFC3339Nano))
}

func (h *handlers) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	opts := []store.ListOption{
		store.WithPrefix(query.Get("prefix")),
		store.WithExcludePrefix(query.Get("exclude_prefix")),
		store.WithGlob(query.Get("glob")),
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for key, err := range h.store.IterateKeys(r.Context(), opts...) {
		if err != nil {
			h.logger.Error("listing aborted", zap.Error(err))
			return
		}
		if _, err := io.WriteString(w, key+"\n"); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"status":"ok"}`+"\n")
}

// statsHeaders sets the standard HTTP metadata headers plus the
// x-anystore fields describing the item.
func statsHeaders(header http.Header, stats store.Stats) {
	header.Set("Content-Length", strconv.FormatInt(stats.Size, 10))
	header.Set("Content-Type", stats.Mimetype)
	header.Set("Accept-Ranges", "bytes")
	lastModified := stats.UpdatedAt
	if lastModified.IsZero() {
		lastModified = stats.CreatedAt
	}
	if !lastModified.IsZero() {
		header.Set("Last-Modified", lastModified.UTC().Format(http.TimeFormat))
	}
	header.Set("x-anystore-name", stats.Name)
	header.Set("x-anystore-size", strconv.FormatInt(stats.Size, 10))
	if !stats.CreatedAt.IsZero() {
		header.Set("x-anystore-created-at", stats.CreatedAt.UTC().Format(time.RFC3339Nano))
	}
	if !stats.UpdatedAt.IsZero() {
		header.Set("x-anystore-updated-at", stats.UpdatedAt.UTC().Format(time.RFC3339Nano))
	}
	header.Set("x-anystore-mimetype", stats.Mimetype)
	header.Set("x-anystore-store", stats.Store)
	header.Set("x-anystore-key", stats.Key)
}

func wantChecksum(value string) bool {
	ok, err := strconv.ParseBool(value)
	return err == nil && ok
}

// parseRange resolves a bytes range header against the total size into
// inclusive start and end offsets. Suffix ranges ("-N") address the last
// N bytes, open ranges ("N-") run to the end, and ends past the content
// clamp to the final byte.
func parseRange(header string, total int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("only byte ranges supported, got %q", header)
	}
	if rest, ok := strings.CutPrefix(spec, "-"); ok {
		suffix, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed range %q", header)
		}
		start, end = max(total-suffix, 0), total-1
	} else {
		first, rest, _ := strings.Cut(spec, "-")
		start, err = strconv.ParseInt(first, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed range %q", header)
		}
		end = total - 1
		if rest != "" {
			end, err = strconv.ParseInt(rest, 10, 64)
			if err != nil {
				return 0, 0, fmt.Errorf("malformed range %q", header)
			}
			end = min(end, total-1)
		}
	}
	if start > end {
		return 0, 0, fmt.Errorf("range %q out of bounds for %d bytes", header, total)
	}
	return start, end, nil
}
