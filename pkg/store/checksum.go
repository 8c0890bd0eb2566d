package store

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
)

// DefaultHashAlgorithm is used when a checksum caller names no algorithm.
const DefaultHashAlgorithm = "sha256"

const hashChunkSize = 64 * 1024

func newHasher(algorithm string) (hash.Hash, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", DefaultHashAlgorithm:
		return sha256.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha512":
		return sha512.New(), nil
	case "md5":
		return md5.New(), nil
	default:
		return nil, fmt.Errorf("unsupported checksum algorithm %q", algorithm)
	}
}

// hashStream feeds r through the named hash in fixed-size chunks and
// returns the hex digest.
func hashStream(r io.Reader, algorithm string) (string, error) {
	h, err := newHasher(algorithm)
	if err != nil {
		return "", err
	}
	if _, err := io.CopyBuffer(h, r, make([]byte, hashChunkSize)); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
