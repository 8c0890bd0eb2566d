package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestSmartWriteRead(t *testing.T) {
	ctx := context.Background()
	target := filepath.Join(t.TempDir(), "out", "data.txt")

	if err := SmartWrite(ctx, target, []byte("smart content")); err != nil {
		t.Fatalf("SmartWrite: %v", err)
	}
	onDisk, err := os.ReadFile(target)
	if err != nil || !bytes.Equal(onDisk, []byte("smart content")) {
		t.Fatalf("on-disk content = (%q, %v)", onDisk, err)
	}
	content, err := SmartRead(ctx, target)
	if err != nil {
		t.Fatalf("SmartRead: %v", err)
	}
	if !bytes.Equal(content, []byte("smart content")) {
		t.Fatalf("content = %q", content)
	}
}

func TestSmartReadMissing(t *testing.T) {
	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "absent.txt")
	if _, err := SmartRead(ctx, missing); !errors.Is(err, ErrDoesNotExist) {
		t.Fatalf("SmartRead missing = %v, want ErrDoesNotExist", err)
	}
}

func TestSmartStream(t *testing.T) {
	ctx := context.Background()
	target := filepath.Join(t.TempDir(), "lines.txt")
	if err := SmartWrite(ctx, target, []byte("alpha\nbeta\ngamma\n")); err != nil {
		t.Fatalf("SmartWrite: %v", err)
	}

	var lines []string
	for line, err := range SmartStream(ctx, target) {
		if err != nil {
			t.Fatalf("SmartStream: %v", err)
		}
		lines = append(lines, string(line))
	}
	if want := []string{"alpha", "beta", "gamma"}; !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines = %v, want %v", lines, want)
	}
}

func TestSmartStreamRawLines(t *testing.T) {
	ctx := context.Background()
	target := filepath.Join(t.TempDir(), "numbers.txt")
	if err := SmartWrite(ctx, target, []byte("1\n2\n")); err != nil {
		t.Fatalf("SmartWrite: %v", err)
	}

	// lines come back as raw bytes, never decoded
	var lines [][]byte
	for line, err := range SmartStream(ctx, target) {
		if err != nil {
			t.Fatalf("SmartStream: %v", err)
		}
		lines = append(lines, line)
	}
	if want := [][]byte{[]byte("1"), []byte("2")}; !reflect.DeepEqual(lines, want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
}

func TestSmartStreamStopsEarly(t *testing.T) {
	ctx := context.Background()
	target := filepath.Join(t.TempDir(), "many.txt")
	if err := SmartWrite(ctx, target, []byte("a\nb\nc\nd\ne\n")); err != nil {
		t.Fatalf("SmartWrite: %v", err)
	}
	var seen int
	for _, err := range SmartStream(ctx, target) {
		if err != nil {
			t.Fatalf("SmartStream: %v", err)
		}
		seen++
		if seen == 2 {
			break
		}
	}
	if seen != 2 {
		t.Fatalf("seen = %d, want 2", seen)
	}
}

func TestSmartOpenRead(t *testing.T) {
	ctx := context.Background()
	target := filepath.Join(t.TempDir(), "seek.txt")
	if err := SmartWrite(ctx, target, []byte("hello world")); err != nil {
		t.Fatalf("SmartWrite: %v", err)
	}

	r, err := SmartOpenRead(ctx, target)
	if err != nil {
		t.Fatalf("SmartOpenRead: %v", err)
	}
	if _, err := r.Seek(6, io.SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(rest) != "world" {
		t.Fatalf("read after seek = %q", rest)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSmartOpenWrite(t *testing.T) {
	ctx := context.Background()
	target := filepath.Join(t.TempDir(), "chunks.bin")

	w, err := SmartOpenWrite(ctx, target)
	if err != nil {
		t.Fatalf("SmartOpenWrite: %v", err)
	}
	for _, chunk := range []string{"one ", "two ", "three"} {
		if _, err := w.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	content, err := SmartRead(ctx, target)
	if err != nil {
		t.Fatalf("SmartRead: %v", err)
	}
	if string(content) != "one two three" {
		t.Fatalf("content = %q", content)
	}
}
