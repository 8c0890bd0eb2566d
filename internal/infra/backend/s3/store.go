// Package s3 implements core.Backend on S3-compatible object storage
// (AWS S3 or MinIO). Backend keys carry the bucket as their first
// segment: "bucket/path/to/object".
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"anystore/pkg/backend/core"
)

var _ core.Backend = (*Store)(nil)

// Config holds explicit construction parameters. Credentials fall back
// to the default AWS chain when unset.
type Config struct {
	Region          string
	Endpoint        string // optional; if set enables custom endpoint (e.g. MinIO)
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// Store is an object-storage backend over any number of buckets.
type Store struct {
	client *s3.Client
}

// New builds an S3 store from Config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.PathStyle {
			o.UsePathStyle = true
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Store{client: client}, nil
}

// Scheme returns the driver identifier.
func (s *Store) Scheme() core.Scheme { return core.SchemeS3 }

// Close is a no-op; the underlying HTTP client needs no teardown.
func (s *Store) Close() error { return nil }

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	bucket, obj, err := splitKey(key)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &bucket, Key: &obj})
	if err != nil {
		return nil, mapErr(key, err)
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}

func (s *Store) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	bucket, obj, err := splitKey(key)
	if err != nil {
		return nil, err
	}
	if length == 0 {
		if _, err := s.Stat(ctx, key); err != nil {
			return nil, err
		}
		return []byte{}, nil
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &obj,
		Range:  aws.String(rangeHeader(offset, length)),
	})
	if err != nil {
		if statusCode(err) == http.StatusRequestedRangeNotSatisfiable {
			return []byte{}, nil
		}
		return nil, mapErr(key, err)
	}
	defer func() { _ = out.Body.Close() }()
	return io.ReadAll(out.Body)
}

func (s *Store) Write(ctx context.Context, key string, r io.Reader, opts core.WriteOptions) error {
	bucket, obj, err := splitKey(key)
	if err != nil {
		return err
	}
	input := &s3.PutObjectInput{Bucket: &bucket, Key: &obj, Body: r}
	if opts.ContentType != "" {
		input.ContentType = &opts.ContentType
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return mapErr(key, err)
	}
	return nil
}

// Delete heads the object first: DeleteObject succeeds on missing keys
// and the contract wants ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	bucket, obj, err := splitKey(key)
	if err != nil {
		return err
	}
	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &bucket, Key: &obj}); err != nil {
		return mapErr(key, err)
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &bucket, Key: &obj})
	return mapErr(key, err)
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
	bucket, obj, err := splitKey(key)
	if err != nil {
		return core.Info{}, err
	}
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &bucket, Key: &obj})
	if err != nil {
		return core.Info{}, mapErr(key, err)
	}
	info := core.Info{Key: key, Size: aws.ToInt64(out.ContentLength), ContentType: aws.ToString(out.ContentType)}
	if out.LastModified != nil {
		lm := out.LastModified.UTC()
		info.CreatedAt = lm
		info.UpdatedAt = lm
	}
	return info, nil
}

func (s *Store) List(ctx context.Context, base string) iter.Seq2[string, error] {
	bucket, obj, err := splitBase(base)
	if err != nil {
		return core.ErrSeq(err)
	}
	return func(yield func(string, error) bool) {
		if obj != "" {
			if _, err := s.Stat(ctx, base); err == nil {
				if !yield(base, nil) {
					return
				}
			} else if !errors.Is(err, core.ErrNotFound) {
				yield("", err)
				return
			}
		}
		prefix := ""
		if obj != "" {
			prefix = obj + "/"
		}
		var token *string
		for {
			out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
				Bucket:            &bucket,
				Prefix:            &prefix,
				ContinuationToken: token,
			})
			if err != nil {
				if isNoSuchBucket(err) {
					return
				}
				yield("", mapErr(base, err))
				return
			}
			for _, entry := range out.Contents {
				if !yield(bucket+"/"+aws.ToString(entry.Key), nil) {
					return
				}
			}
			if out.IsTruncated != nil && *out.IsTruncated && out.NextContinuationToken != nil {
				token = out.NextContinuationToken
				continue
			}
			return
		}
	}
}

func (s *Store) Glob(ctx context.Context, pattern string) iter.Seq2[string, error] {
	rx, err := core.TranslateGlob(pattern)
	if err != nil {
		return core.ErrSeq(err)
	}
	return func(yield func(string, error) bool) {
		for key, err := range s.List(ctx, core.GlobBase(pattern)) {
			if err != nil {
				yield("", err)
				return
			}
			if !rx.MatchString(key) {
				continue
			}
			if !yield(key, nil) {
				return
			}
		}
	}
}

func (s *Store) OpenRead(ctx context.Context, key string) (io.ReadSeekCloser, error) {
	data, err := s.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return core.NopReadSeekCloser(bytes.NewReader(data)), nil
}

// OpenWrite streams through a pipe into a single PutObject call running
// in the background; Close waits for the upload to settle.
func (s *Store) OpenWrite(ctx context.Context, key string, opts core.WriteOptions) (io.WriteCloser, error) {
	if _, _, err := splitKey(key); err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := s.Write(ctx, key, pr, opts)
		if err != nil {
			_ = pr.CloseWithError(err)
		}
		done <- err
	}()
	return &objectWriter{pw: pw, done: done}, nil
}

type objectWriter struct {
	pw   *io.PipeWriter
	done chan error
}

func (w *objectWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *objectWriter) Close() error {
	_ = w.pw.Close()
	return <-w.done
}

// --- helpers ---

func splitKey(key string) (bucket, obj string, err error) {
	bucket, obj, ok := strings.Cut(key, "/")
	if !ok || bucket == "" || obj == "" {
		return "", "", fmt.Errorf("s3: key %q names no object", key)
	}
	return bucket, obj, nil
}

// splitBase allows bare-bucket bases for whole-bucket listings.
func splitBase(base string) (bucket, obj string, err error) {
	bucket, obj, _ = strings.Cut(base, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3: base %q names no bucket", base)
	}
	return bucket, strings.TrimSuffix(obj, "/"), nil
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

func mapErr(key string, err error) error {
	if err == nil {
		return nil
	}
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	if statusCode(err) == http.StatusNotFound {
		return fmt.Errorf("%w: %q", core.ErrNotFound, key)
	}
	return err
}

func isNoSuchBucket(err error) bool {
	var noBucket *types.NoSuchBucket
	return errors.As(err, &noBucket) || statusCode(err) == http.StatusNotFound
}

func statusCode(err error) int {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}
