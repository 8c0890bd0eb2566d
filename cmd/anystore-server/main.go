// Command anystore-server exposes a single store over the HTTP wire
// protocol. The store is addressed by -uri or ANYSTORE_URI; remote
// clients reach it through anystore+http:// URIs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"anystore/internal/api"
	"anystore/pkg/backend"
	"anystore/pkg/logging"
	"anystore/pkg/store"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	exitFunc(cli(ctx, os.Args[1:], os.Stderr))
}

func cli(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("anystore-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", envDefault("ANYSTORE_ADDR", ":8000"), "listen address (default $ANYSTORE_ADDR)")
	uri := fs.String("uri", os.Getenv("ANYSTORE_URI"), "store uri (default $ANYSTORE_URI)")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "grace period for in-flight requests")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	logger := logging.New("anystore-server")
	defer func() { _ = logger.Sync() }()
	if err := run(ctx, *addr, *uri, *shutdownTimeout, logger); err != nil {
		fmt.Fprintf(stderr, "anystore-server: %v\n", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, addr, uri string, shutdownTimeout time.Duration, logger *zap.Logger) error {
	if uri == "" {
		return errors.New("no store uri: pass -uri or set ANYSTORE_URI")
	}
	s, err := store.New(ctx, uri, store.WithBackendConfig(backend.ConfigFromEnv()))
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	srv, err := api.NewServer(api.Config{
		Addr:   addr,
		Store:  s,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("draining connections", zap.Duration("grace", shutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
