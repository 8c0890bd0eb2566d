package store

import (
	"mime"
	"path"
	"strings"
	"time"

	"anystore/pkg/backend/core"
	"anystore/pkg/uris"
)

// DefaultMimetype is the generic marker used when no better type is known.
const DefaultMimetype = "application/octet-stream"

// Stats describes a stored item from the store's point of view.
type Stats struct {
	// Name is the last path segment of the key.
	Name string
	// Size is the content length in bytes.
	Size int64
	// CreatedAt and UpdatedAt fall back to each other when the backend
	// reports only one; both are zero when it reports neither.
	CreatedAt time.Time
	UpdatedAt time.Time
	// Mimetype is the normalized backend content type, guessed from the
	// name's extension when the backend reports none or only the generic
	// default.
	Mimetype string
	// Store is the base URI, Key the relative key within it.
	Store string
	Key   string
}

// URI returns the item's full address, store base plus key.
func (s Stats) URI() string {
	return s.Store + "/" + s.Key
}

func newStats(storeURI, key string, info core.Info) Stats {
	name := key
	if name == "" || name == uris.Current {
		name = info.Key
	}
	name = path.Base(name)
	created, updated := info.CreatedAt, info.UpdatedAt
	if updated.IsZero() {
		updated = created
	}
	if created.IsZero() {
		created = updated
	}
	return Stats{
		Name:      name,
		Size:      info.Size,
		CreatedAt: created,
		UpdatedAt: updated,
		Mimetype:  itemMimetype(info.ContentType, name),
		Store:     storeURI,
		Key:       key,
	}
}

func itemMimetype(contentType, name string) string {
	mt := normalizeMimetype(contentType)
	if mt != "" && mt != DefaultMimetype && mt != "binary/octet-stream" {
		return mt
	}
	return guessMimetype(name)
}

func normalizeMimetype(contentType string) string {
	contentType = strings.TrimSpace(strings.ToLower(contentType))
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return mt
}

func guessMimetype(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return DefaultMimetype
	}
	mt := normalizeMimetype(mime.TypeByExtension(ext))
	if mt == "" {
		return DefaultMimetype
	}
	return mt
}
