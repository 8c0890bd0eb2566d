// Package backend re-exports the driver contract for stable external
// imports and opens concrete drivers from store URIs.
package backend

import (
	"anystore/pkg/backend/core"
)

type (
	// Backend is the uniform capability contract every driver implements.
	Backend = core.Backend
	// Info describes a stored item.
	Info = core.Info
	// WriteOptions configures writes (TTL, content type).
	WriteOptions = core.WriteOptions
	// Scheme identifies a concrete driver.
	Scheme = core.Scheme
)

const (
	// SchemeFS is the local filesystem driver.
	SchemeFS = core.SchemeFS
	// SchemeMemory is the in-process map driver.
	SchemeMemory = core.SchemeMemory
	// SchemeS3 is the S3 / MinIO compatible object store driver.
	SchemeS3 = core.SchemeS3
	// SchemeSQL is the relational table driver.
	SchemeSQL = core.SchemeSQL
	// SchemeRedis is the Redis keyspace driver.
	SchemeRedis = core.SchemeRedis
	// SchemeHTTP is the read-only plain HTTP(S) driver.
	SchemeHTTP = core.SchemeHTTP
	// SchemeREST is the client driver for remote anystore servers.
	SchemeREST = core.SchemeREST
)

var (
	// ErrNotFound is returned when a key holds no stored item.
	ErrNotFound = core.ErrNotFound
	// ErrUnsupported is returned when a driver lacks a capability.
	ErrUnsupported = core.ErrUnsupported
	// ErrUnavailable is returned when a backend cannot be reached.
	ErrUnavailable = core.ErrUnavailable
)
