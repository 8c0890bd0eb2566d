package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestVirtual(t *testing.T) {
	ctx := context.Background()
	v, err := NewVirtual(ctx)
	if err != nil {
		t.Fatalf("NewVirtual: %v", err)
	}
	if v.Dir() == "" {
		t.Fatal("empty dir")
	}
	if _, err := os.Stat(v.Dir()); err != nil {
		t.Fatalf("dir missing: %v", err)
	}

	if err := v.Put(ctx, "scratch/data.bin", []byte("ephemeral")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	onDisk, err := os.ReadFile(filepath.Join(v.Dir(), "scratch", "data.bin"))
	if err != nil || !bytes.Equal(onDisk, []byte("ephemeral")) {
		t.Fatalf("on-disk = (%q, %v)", onDisk, err)
	}
	value, err := v.GetRequired(ctx, "scratch/data.bin")
	if err != nil {
		t.Fatalf("GetRequired: %v", err)
	}
	if !bytes.Equal(value.([]byte), []byte("ephemeral")) {
		t.Fatalf("value = %#v", value)
	}

	if err := v.Teardown(); err != nil {
		t.Fatalf("Teardown: %v", err)
	}
	if _, err := os.Stat(v.Dir()); !os.IsNotExist(err) {
		t.Fatalf("dir survived Teardown: %v", err)
	}
}
