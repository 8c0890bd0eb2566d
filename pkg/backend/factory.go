package backend

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"anystore/internal/infra/backend/fs"
	"anystore/internal/infra/backend/httpfs"
	"anystore/internal/infra/backend/memory"
	"anystore/internal/infra/backend/redis"
	"anystore/internal/infra/backend/restfs"
	"anystore/internal/infra/backend/s3"
	"anystore/internal/infra/backend/sqldb"
	"anystore/pkg/uris"
)

// Config carries driver settings that do not fit in the URI itself.
// The zero value works for local drivers.
type Config struct {
	// SQLTable names the relational table, default "anystore".
	SQLTable string
	// S3 connection settings; credentials fall back to the AWS chain.
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3SessionToken    string
	S3PathStyle       bool
	// HTTPClient overrides the default client for the http and remote
	// anystore drivers.
	HTTPClient *http.Client
}

// ConfigFromEnv builds a Config from process environment:
//
//	ANYSTORE_SQL_TABLE     relational table name
//	ANYSTORE_S3_REGION     s3 region (default us-east-1)
//	ANYSTORE_S3_ENDPOINT   custom endpoint (e.g. MinIO)
//	ANYSTORE_S3_PATH_STYLE true|false (default false)
//	AWS_ACCESS_KEY_ID / AWS_SECRET_ACCESS_KEY / AWS_SESSION_TOKEN (optional)
func ConfigFromEnv() Config {
	return Config{
		SQLTable:    os.Getenv("ANYSTORE_SQL_TABLE"),
		S3Region:    os.Getenv("ANYSTORE_S3_REGION"),
		S3Endpoint:  os.Getenv("ANYSTORE_S3_ENDPOINT"),
		S3PathStyle: strings.EqualFold(os.Getenv("ANYSTORE_S3_PATH_STYLE"), "true"),
	}
}

// Open selects and constructs the driver for a store URI. Drivers with
// a connection probe (redis, sql) report ErrUnavailable here rather
// than on first use.
func Open(ctx context.Context, uri string, cfg Config) (Backend, error) {
	uri, err := uris.Ensure(uri)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(uri, "anystore+") {
		return restfs.New(cfg.HTTPClient), nil
	}
	switch uris.Scheme(uri) {
	case "file":
		return fs.New(), nil
	case "memory":
		return memory.New(), nil
	case "redis", "rediss":
		return redis.Open(ctx, uri)
	case "sqlite", "sqlite3", "postgres", "postgresql", "mysql", "mariadb":
		return sqldb.Open(ctx, uri, sqldb.Config{Table: cfg.SQLTable})
	case "s3":
		return s3.New(ctx, s3.Config{
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			SessionToken:    cfg.S3SessionToken,
			PathStyle:       cfg.S3PathStyle,
		})
	case "http", "https":
		return httpfs.New(cfg.HTTPClient), nil
	default:
		return nil, fmt.Errorf("%w: no driver for scheme %q", ErrUnavailable, uris.Scheme(uri))
	}
}
