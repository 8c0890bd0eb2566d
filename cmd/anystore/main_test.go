package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := cli(context.Background(), args, &stdout, &stderr, strings.NewReader(stdin))
	return code, stdout.String(), stderr.String()
}

func TestPutGet(t *testing.T) {
	dir := t.TempDir()

	code, _, stderr := runCLI(t, "hello world", "-uri", dir, "put", "greeting")
	if code != 0 {
		t.Fatalf("put exit = %d, stderr %q", code, stderr)
	}
	code, stdout, stderr := runCLI(t, "", "-uri", dir, "get", "greeting")
	if code != 0 {
		t.Fatalf("get exit = %d, stderr %q", code, stderr)
	}
	if stdout != "hello world" {
		t.Fatalf("get output = %q", stdout)
	}
}

func TestPutFromFileGetToFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "src.txt")
	dest := filepath.Join(t.TempDir(), "dest.txt")
	if err := os.WriteFile(src, []byte("file content"), 0o644); err != nil {
		t.Fatal(err)
	}

	if code, _, stderr := runCLI(t, "", "-uri", dir, "put", "doc", src); code != 0 {
		t.Fatalf("put exit = %d, stderr %q", code, stderr)
	}
	if code, _, stderr := runCLI(t, "", "-uri", dir, "get", "doc", dest); code != 0 {
		t.Fatalf("get exit = %d, stderr %q", code, stderr)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "file content" {
		t.Fatalf("dest content = %q", data)
	}
}

func TestKeys(t *testing.T) {
	dir := t.TempDir()
	for _, key := range []string{"foo/a", "foo/b", "other"} {
		if code, _, stderr := runCLI(t, "x", "-uri", dir, "put", key); code != 0 {
			t.Fatalf("put %s exit = %d, stderr %q", key, code, stderr)
		}
	}

	code, stdout, _ := runCLI(t, "", "-uri", dir, "keys")
	if code != 0 {
		t.Fatalf("keys exit = %d", code)
	}
	if !strings.Contains(stdout, "foo/a\n") || !strings.Contains(stdout, "other\n") {
		t.Fatalf("keys output = %q", stdout)
	}

	code, stdout, _ = runCLI(t, "", "-uri", dir, "keys", "-prefix", "foo")
	if code != 0 {
		t.Fatalf("keys -prefix exit = %d", code)
	}
	if strings.Contains(stdout, "other") || !strings.Contains(stdout, "foo/b\n") {
		t.Fatalf("filtered keys output = %q", stdout)
	}
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	runCLI(t, "x", "-uri", dir, "put", "victim")

	if code, _, stderr := runCLI(t, "", "-uri", dir, "rm", "victim"); code != 0 {
		t.Fatalf("rm exit = %d, stderr %q", code, stderr)
	}
	if code, _, _ := runCLI(t, "", "-uri", dir, "get", "victim"); code == 0 {
		t.Fatal("get succeeded after rm")
	}
	if code, _, _ := runCLI(t, "", "-uri", dir, "rm", "victim"); code == 0 {
		t.Fatal("second rm succeeded")
	}
}

func TestTouch(t *testing.T) {
	code, stdout, stderr := runCLI(t, "", "-uri", t.TempDir(), "touch", "marker")
	if code != 0 {
		t.Fatalf("exit = %d, stderr %q", code, stderr)
	}
	if _, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(stdout)); err != nil {
		t.Fatalf("timestamp %q: %v", stdout, err)
	}
}

func TestInfo(t *testing.T) {
	dir := t.TempDir()
	runCLI(t, "12345", "-uri", dir, "put", "nested/item.txt")

	code, stdout, stderr := runCLI(t, "", "-uri", dir, "info", "nested/item.txt")
	if code != 0 {
		t.Fatalf("exit = %d, stderr %q", code, stderr)
	}
	var info itemInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	if info.Name != "item.txt" || info.Size != 5 || info.Key != "nested/item.txt" {
		t.Fatalf("info = %+v", info)
	}
	if info.Mimetype != "text/plain" {
		t.Fatalf("mimetype = %q", info.Mimetype)
	}
}

func TestChecksum(t *testing.T) {
	dir := t.TempDir()
	runCLI(t, "hello world", "-uri", dir, "put", "sum")

	code, stdout, _ := runCLI(t, "", "-uri", dir, "checksum", "sum")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if got := strings.TrimSpace(stdout); got != "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9" {
		t.Fatalf("sha256 = %q", got)
	}

	code, stdout, _ = runCLI(t, "", "-uri", dir, "checksum", "-algorithm", "sha1", "sum")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if got := strings.TrimSpace(stdout); got != "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed" {
		t.Fatalf("sha1 = %q", got)
	}
}

func TestMirror(t *testing.T) {
	source, target := t.TempDir(), t.TempDir()
	runCLI(t, "one", "-uri", source, "put", "a")
	runCLI(t, "two", "-uri", source, "put", "b/c")

	code, stdout, stderr := runCLI(t, "", "mirror", source, target)
	if code != 0 {
		t.Fatalf("exit = %d, stderr %q", code, stderr)
	}
	if !strings.Contains(stdout, "mirrored 2 keys (0 skipped)") {
		t.Fatalf("output = %q", stdout)
	}
	if code, stdout, _ := runCLI(t, "", "-uri", target, "get", "b/c"); code != 0 || stdout != "two" {
		t.Fatalf("target get = %d %q", code, stdout)
	}
}

func TestURIFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ANYSTORE_URI", dir)

	if code, _, stderr := runCLI(t, "payload", "put", "envkey"); code != 0 {
		t.Fatalf("put exit = %d, stderr %q", code, stderr)
	}
	code, stdout, _ := runCLI(t, "", "get", "envkey")
	if code != 0 || stdout != "payload" {
		t.Fatalf("get = %d %q", code, stdout)
	}
}

func TestMissingURI(t *testing.T) {
	t.Setenv("ANYSTORE_URI", "")
	code, _, stderr := runCLI(t, "", "get", "whatever")
	if code != 1 {
		t.Fatalf("exit = %d", code)
	}
	if !strings.Contains(stderr, "ANYSTORE_URI") {
		t.Fatalf("stderr = %q", stderr)
	}
}

func TestUnknownCommand(t *testing.T) {
	if code, _, _ := runCLI(t, "", "-uri", t.TempDir(), "frobnicate"); code != 1 {
		t.Fatal("unknown command accepted")
	}
	if code, _, _ := runCLI(t, ""); code != 2 {
		t.Fatal("missing command accepted")
	}
}
