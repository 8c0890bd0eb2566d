package keys

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"foo", "foo"},
		{"foo/bar/", "foo/bar"},
		{"foo%20bar", "foo bar"},
		{"/tmp/foo", "/tmp/foo"},
	}
	for _, tc := range cases {
		got, err := Validate(tc.in)
		if err != nil {
			t.Fatalf("Validate(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("Validate(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateErrors(t *testing.T) {
	if _, err := Validate(""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	for _, in := range []string{"../etc/passwd", "foo/../bar", "foo/../../bar"} {
		if _, err := Validate(in); !errors.Is(err, ErrPathTraversal) {
			t.Fatalf("Validate(%q): expected ErrPathTraversal, got %v", in, err)
		}
	}
}

func TestValidateRelative(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"foo/bar", "foo/bar"},
		{"foo/./bar", "foo/bar"},
		{".", ""},
		{"foo/bar/", "foo/bar"},
	}
	for _, tc := range cases {
		got, err := ValidateRelative(tc.in)
		if err != nil {
			t.Fatalf("ValidateRelative(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ValidateRelative(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateRelativeRejectsAbsolute(t *testing.T) {
	for _, in := range []string{"/foo", "https://example.org/foo", "s3://bucket/foo"} {
		if _, err := ValidateRelative(in); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("ValidateRelative(%q): expected ErrInvalidKey, got %v", in, err)
		}
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		uri  string
		want Kind
	}{
		{"file:///tmp/foo", KindLocal},
		{"/tmp/foo", KindLocal},
		{"memory://foo", KindMemory},
		{"redis://localhost", KindRedis},
		{"rediss://localhost", KindRedis},
		{"sqlite:///db.sqlite", KindSQL},
		{"postgresql://user@host/db", KindSQL},
		{"postgres://user@host/db", KindSQL},
		{"http://example.org", KindHTTP},
		{"https://example.org", KindHTTP},
		{"anystore+http://example.org", KindHTTP},
		{"s3://bucket/base", KindGeneric},
		{"gs://bucket", KindGeneric},
	}
	for _, tc := range cases {
		if got := KindOf(tc.uri); got != tc.want {
			t.Fatalf("KindOf(%q) = %q, want %q", tc.uri, got, tc.want)
		}
	}
}

func TestMapperPrefix(t *testing.T) {
	cases := []struct {
		uri  string
		want string
	}{
		{"file:///tmp/foo", "/tmp/foo"},
		{"file:///tmp/foo/", "/tmp/foo"},
		{"memory://foo", "foo"},
		{"s3://anystore/foo", "anystore/foo"},
		{"https://anystore/foo", "https://anystore/foo"},
		{"anystore+https://anystore/foo", "https://anystore/foo"},
		{"redis://anystore/foo", "foo"},
		{"sqlite:///db.sqlite", ""},
		{"postgresql://user@host/db", ""},
	}
	for _, tc := range cases {
		m, err := NewMapper(tc.uri)
		if err != nil {
			t.Fatalf("NewMapper(%q): %v", tc.uri, err)
		}
		if m.Prefix() != tc.want {
			t.Fatalf("Prefix(%q) = %q, want %q", tc.uri, m.Prefix(), tc.want)
		}
	}
}

func TestMapperRoundTrip(t *testing.T) {
	uris := []string{
		"file:///tmp/foo",
		"memory://foo",
		"redis://localhost/cache",
		"sqlite:///db.sqlite",
		"s3://bucket/base",
		"https://example.org/store",
		"anystore+http://example.org",
	}
	keys := []string{"foo", "foo/bar", "foo/bar/baz.txt"}
	for _, uri := range uris {
		m, err := NewMapper(uri)
		if err != nil {
			t.Fatalf("NewMapper(%q): %v", uri, err)
		}
		for _, key := range keys {
			backend, err := m.ToBackendKey(key)
			if err != nil {
				t.Fatalf("ToBackendKey(%q, %q): %v", uri, key, err)
			}
			rel, err := m.FromBackendKey(backend)
			if err != nil {
				t.Fatalf("FromBackendKey(%q, %q): %v", uri, backend, err)
			}
			if rel != key {
				t.Fatalf("round trip %q via %q: got %q", key, uri, rel)
			}
		}
	}
}

func TestMapperSelfReference(t *testing.T) {
	m, err := NewMapper("s3://bucket/base")
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	backend, err := m.ToBackendKey(".")
	if err != nil {
		t.Fatalf("ToBackendKey: %v", err)
	}
	if backend != "bucket/base" {
		t.Fatalf("self reference = %q, want bare prefix", backend)
	}
}

func TestMapperFromBackendKeyMismatch(t *testing.T) {
	m, err := NewMapper("s3://bucket/base")
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	if _, err := m.FromBackendKey("other/key"); !errors.Is(err, ErrKeyMapping) {
		t.Fatalf("expected ErrKeyMapping, got %v", err)
	}
}

func TestMapperMemoryLeadingSlash(t *testing.T) {
	m, err := NewMapper("memory://foo")
	if err != nil {
		t.Fatalf("NewMapper: %v", err)
	}
	rel, err := m.FromBackendKey("/foo/bar")
	if err != nil {
		t.Fatalf("FromBackendKey: %v", err)
	}
	if rel != "bar" {
		t.Fatalf("rel = %q, want %q", rel, "bar")
	}
}
