package store

import (
	"testing"
	"time"

	"anystore/pkg/backend/core"
)

func TestItemMimetype(t *testing.T) {
	cases := []struct {
		contentType string
		name        string
		want        string
	}{
		{"text/plain", "notes", "text/plain"},
		{"Text/Plain; charset=UTF-8", "notes", "text/plain"},
		{"", "report.json", "application/json"},
		{"application/octet-stream", "report.json", "application/json"},
		{"binary/octet-stream", "report.json", "application/json"},
		{"", "blob", DefaultMimetype},
		{"", "archive.unknownext", DefaultMimetype},
		{"not a media type", "blob", DefaultMimetype},
	}
	for _, tc := range cases {
		if got := itemMimetype(tc.contentType, tc.name); got != tc.want {
			t.Errorf("itemMimetype(%q, %q) = %q, want %q",
				tc.contentType, tc.name, got, tc.want)
		}
	}
}

func TestNewStatsTimestampFallback(t *testing.T) {
	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	onlyCreated := newStats("memory://ns", "k", core.Info{CreatedAt: ts})
	if !onlyCreated.UpdatedAt.Equal(ts) {
		t.Fatalf("UpdatedAt = %v, want created fallback", onlyCreated.UpdatedAt)
	}
	onlyUpdated := newStats("memory://ns", "k", core.Info{UpdatedAt: ts})
	if !onlyUpdated.CreatedAt.Equal(ts) {
		t.Fatalf("CreatedAt = %v, want updated fallback", onlyUpdated.CreatedAt)
	}
	neither := newStats("memory://ns", "k", core.Info{})
	if !neither.CreatedAt.IsZero() || !neither.UpdatedAt.IsZero() {
		t.Fatalf("zero info produced timestamps: %+v", neither)
	}
}

func TestNewStatsName(t *testing.T) {
	stats := newStats("memory://ns", "a/b/c.txt", core.Info{})
	if stats.Name != "c.txt" {
		t.Fatalf("Name = %q", stats.Name)
	}
	if stats.URI() != "memory://ns/a/b/c.txt" {
		t.Fatalf("URI = %q", stats.URI())
	}

	// the "." sentinel names the item after the backend key
	root := newStats("memory://ns", ".", core.Info{Key: "ns/leaf"})
	if root.Name != "leaf" {
		t.Fatalf("root Name = %q", root.Name)
	}
}

func TestNewHasherUnsupported(t *testing.T) {
	if _, err := newHasher("crc32"); err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
	if _, err := newHasher(" SHA256 "); err != nil {
		t.Fatalf("case/space-insensitive lookup failed: %v", err)
	}
}
