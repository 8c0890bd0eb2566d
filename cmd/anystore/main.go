// Command anystore reads, writes and manages keys in a store from the
// command line. The store is addressed by -uri or the ANYSTORE_URI
// environment variable; `-` stands for stdin or stdout in file
// positions.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anystore/pkg/backend"
	"anystore/pkg/logging"
	"anystore/pkg/store"
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	exitFunc(cli(ctx, os.Args[1:], os.Stdout, os.Stderr, os.Stdin))
}

const usage = `Usage: anystore [-uri URI] <command> [arguments]

Commands:
  get <key> [dest]        write the value to dest (default stdout)
  put <key> [src]         store the content of src (default stdin)
  keys                    list keys, one per line
  rm <key>                delete a key
  touch <key>             update a key's timestamp and print it
  info <key>              print item metadata as JSON
  checksum <key>          print the content checksum
  mirror <source> <target>  copy keys between two stores

Flags:
`

func cli(ctx context.Context, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	global := flag.NewFlagSet("anystore", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() {
		fmt.Fprint(stderr, usage)
		global.PrintDefaults()
	}
	uri := global.String("uri", os.Getenv("ANYSTORE_URI"), "store uri (default $ANYSTORE_URI)")
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}
	if err := runVerb(ctx, rest[0], rest[1:], *uri, stdout, stderr, stdin); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintf(stderr, "anystore: %v\n", err)
		return 1
	}
	return 0
}

func runVerb(ctx context.Context, verb string, args []string, uri string, stdout, stderr io.Writer, stdin io.Reader) error {
	switch verb {
	case "get":
		return cmdGet(ctx, uri, args, stdout)
	case "put":
		return cmdPut(ctx, uri, args, stderr, stdin)
	case "keys":
		return cmdKeys(ctx, uri, args, stdout, stderr)
	case "rm":
		return cmdRemove(ctx, uri, args)
	case "touch":
		return cmdTouch(ctx, uri, args, stdout)
	case "info":
		return cmdInfo(ctx, uri, args, stdout)
	case "checksum":
		return cmdChecksum(ctx, uri, args, stdout, stderr)
	case "mirror":
		return cmdMirror(ctx, args, stdout, stderr)
	default:
		return fmt.Errorf("unknown command %q", verb)
	}
}

func openStore(ctx context.Context, uri string) (*store.Store, error) {
	if uri == "" {
		return nil, errors.New("no store uri: pass -uri or set ANYSTORE_URI")
	}
	return store.New(ctx, uri, store.WithBackendConfig(backend.ConfigFromEnv()))
}

func cmdGet(ctx context.Context, uri string, args []string, stdout io.Writer) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: get <key> [dest]")
	}
	s, err := openStore(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	r, err := s.OpenRead(ctx, args[0])
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()
	out := stdout
	if len(args) == 2 && args[1] != "-" {
		f, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	_, err = io.Copy(out, r)
	return err
}

func cmdPut(ctx context.Context, uri string, args []string, stderr io.Writer, stdin io.Reader) error {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	fs.SetOutput(stderr)
	ttl := fs.Duration("ttl", 0, "expire the key after this duration")
	if err := fs.Parse(args); err != nil {
		return err
	}
	args = fs.Args()
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: put [-ttl 1h] <key> [src]")
	}
	s, err := openStore(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	in := stdin
	if len(args) == 2 && args[1] != "-" {
		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	var opts []store.PutOption
	if *ttl > 0 {
		opts = append(opts, store.WithTTL(*ttl))
	}
	w, err := s.OpenWrite(ctx, args[0], opts...)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func cmdKeys(ctx context.Context, uri string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("keys", flag.ContinueOnError)
	fs.SetOutput(stderr)
	prefix := fs.String("prefix", "", "only keys below this prefix")
	exclude := fs.String("exclude-prefix", "", "drop keys below this prefix")
	glob := fs.String("glob", "", "only keys matching this pattern")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := openStore(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	for key, err := range s.IterateKeys(ctx,
		store.WithPrefix(*prefix),
		store.WithExcludePrefix(*exclude),
		store.WithGlob(*glob),
	) {
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, key)
	}
	return nil
}

func cmdRemove(ctx context.Context, uri string, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: rm <key>")
	}
	s, err := openStore(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	return s.Delete(ctx, args[0])
}

func cmdTouch(ctx context.Context, uri string, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: touch <key>")
	}
	s, err := openStore(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	ts, err := s.Touch(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, ts.Format(time.RFC3339Nano))
	return nil
}

// itemInfo is the printable view of store.Stats.
type itemInfo struct {
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Store     string    `json:"store"`
	URI       string    `json:"uri"`
	Size      int64     `json:"size"`
	Mimetype  string    `json:"mimetype"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

func cmdInfo(ctx context.Context, uri string, args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: info <key>")
	}
	s, err := openStore(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	stats, err := s.Info(ctx, args[0])
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(itemInfo{
		Name:      stats.Name,
		Key:       stats.Key,
		Store:     stats.Store,
		URI:       stats.URI(),
		Size:      stats.Size,
		Mimetype:  stats.Mimetype,
		CreatedAt: stats.CreatedAt,
		UpdatedAt: stats.UpdatedAt,
	})
}

func cmdChecksum(ctx context.Context, uri string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("checksum", flag.ContinueOnError)
	fs.SetOutput(stderr)
	algorithm := fs.String("algorithm", "", "hash algorithm (default "+store.DefaultHashAlgorithm+")")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: checksum [-algorithm sha1] <key>")
	}
	s, err := openStore(ctx, uri)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	sum, err := s.Checksum(ctx, fs.Arg(0), *algorithm)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, sum)
	return nil
}

func cmdMirror(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mirror", flag.ContinueOnError)
	fs.SetOutput(stderr)
	prefix := fs.String("prefix", "", "only keys below this prefix")
	exclude := fs.String("exclude-prefix", "", "drop keys below this prefix")
	glob := fs.String("glob", "", "only keys matching this pattern")
	overwrite := fs.Bool("overwrite", false, "replace keys already present in the target")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("usage: mirror [flags] <source-uri> <target-uri>")
	}
	source, err := openStore(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	defer func() { _ = source.Close() }()
	target, err := openStore(ctx, fs.Arg(1))
	if err != nil {
		return err
	}
	defer func() { _ = target.Close() }()
	copied, skipped, err := store.Mirror(ctx, source, target, store.MirrorOptions{
		Prefix:        *prefix,
		ExcludePrefix: *exclude,
		Glob:          *glob,
		Overwrite:     *overwrite,
		Logger:        logging.New("anystore"),
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "mirrored %d keys (%d skipped)\n", copied, skipped)
	return nil
}
