// Package uris normalizes, validates and joins store URIs.
package uris

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Stdio is the conventional URI for stdin/stdout streams.
const Stdio = "-"

// Current is the self-reference key pointing at a store's own base.
const Current = "."

// Ensure normalizes arbitrary uri-like input to an absolute URI with a
// scheme. Plain and relative paths become file:// URIs, Stdio passes
// through unchanged.
func Ensure(uri string) (string, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return "", fmt.Errorf("invalid empty uri")
	}
	if uri == Stdio {
		return uri, nil
	}
	if strings.Contains(uri, "../") {
		return "", fmt.Errorf("path traversal forbidden: %q", uri)
	}
	uri = Unquote(uri)
	if u, err := url.Parse(uri); err == nil && u.Scheme != "" {
		if u.Host == "" && u.Path == "" && u.Opaque == "" {
			return u.Scheme + "://", nil
		}
		return uri, nil
	}
	abs, err := filepath.Abs(uri)
	if err != nil {
		return "", fmt.Errorf("invalid uri %q: %w", uri, err)
	}
	return "file://" + filepath.ToSlash(abs), nil
}

// Join appends a relative path to a base URI, normalizing redundant
// slashes and "." segments.
func Join(uri string, elem string) (string, error) {
	base, err := Ensure(uri)
	if err != nil {
		return "", err
	}
	if base == Stdio {
		return "", fmt.Errorf("invalid uri: %q", uri)
	}
	if elem == Current {
		return base, nil
	}
	rel := JoinRelPaths(elem)
	if rel == "" {
		return base, nil
	}
	if strings.Contains(rel, "../") {
		return "", fmt.Errorf("path traversal forbidden: %q", elem)
	}
	idx := strings.Index(base, "://")
	scheme, rest := base[:idx+3], base[idx+3:]
	if rest == "" {
		return scheme + rel, nil
	}
	return scheme + strings.TrimRight(rest, "/") + "/" + rel, nil
}

// JoinRelPaths joins relative path segments, dropping empty and "."
// parts and stripping surrounding slashes.
func JoinRelPaths(parts ...string) string {
	var segments []string
	for _, part := range parts {
		for _, p := range strings.Split(strings.Trim(part, "/"), "/") {
			if p == "" || p == Current {
				continue
			}
			segments = append(segments, p)
		}
	}
	return strings.Join(segments, "/")
}

// Name returns the last path segment of a URI, the file name.
func Name(uri string) string {
	ensured, err := Ensure(uri)
	if err != nil {
		return ""
	}
	idx := strings.Index(ensured, "://")
	rest := "/" + strings.TrimLeft(ensured[idx+3:], "/")
	name := path.Base(rest)
	if name == "/" || name == Current {
		return ""
	}
	return name
}

// Scheme returns the URI scheme, empty when none can be parsed.
func Scheme(uri string) string {
	u, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return ""
	}
	return u.Scheme
}

// Unquote decodes percent escapes, returning the input unchanged when it
// carries invalid escape sequences.
func Unquote(s string) string {
	out, err := url.PathUnescape(s)
	if err != nil {
		return s
	}
	return out
}
