package state

import (
	"os"
	"path/filepath"
	"testing"
)

func TestComputeHash(t *testing.T) {
	tmpDir := t.TempDir()
	files := map[string]string{
		"quijote.epub":      "PK\x03\x04 En un lugar de la Mancha",
		"alice.epub":        "PK\x03\x04 Alice was beginning to get very tired",
		"quijote_copy.epub": "PK\x03\x04 En un lugar de la Mancha",
	}
	hashes := make(map[string]string)
	for name, body := range files {
		path := filepath.Join(tmpDir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
		h, err := ComputeHash(path)
		if err != nil {
			t.Fatalf("ComputeHash(%s): %v", name, err)
		}
		if len(h) != 32 {
			t.Errorf("hash of %s has %d chars, want 32", name, len(h))
		}
		hashes[name] = h
	}

	if hashes["quijote.epub"] != hashes["quijote_copy.epub"] {
		t.Error("same content produced different hashes")
	}
	if hashes["quijote.epub"] == hashes["alice.epub"] {
		t.Error("different content produced the same hash")
	}
}

func TestComputeHashOnlyReadsPrefix(t *testing.T) {
	tmpDir := t.TempDir()
	prefix := make([]byte, hashBytes)
	for i := range prefix {
		prefix[i] = byte(i)
	}
	a := filepath.Join(tmpDir, "a.epub")
	b := filepath.Join(tmpDir, "b.epub")
	os.WriteFile(a, append(append([]byte{}, prefix...), "tail one"...), 0o644)
	os.WriteFile(b, append(append([]byte{}, prefix...), "another tail"...), 0o644)

	ha, _ := ComputeHash(a)
	hb, _ := ComputeHash(b)
	if ha != hb {
		t.Errorf("hashes differ past the first %d bytes", hashBytes)
	}
}

func TestComputeHashMissingFile(t *testing.T) {
	if _, err := ComputeHash(filepath.Join(t.TempDir(), "gone.epub")); err == nil {
		t.Error("ComputeHash of a missing file succeeded")
	}
}

func TestStore(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())

	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	const hash = "abcdef1234567890abcdef1234567890"

	if p, ok := store.Get(hash); ok || p != (Progress{}) {
		t.Errorf("Get of unknown hash = %+v %v", p, ok)
	}

	tests := []struct {
		name string
		set  Progress
		want Progress
	}{
		{"start", Progress{}, Progress{}},
		{"middle", Progress{Chapter: 3, Paragraph: 41}, Progress{Chapter: 3, Paragraph: 41}},
		{"negative", Progress{Chapter: -1, Paragraph: -7}, Progress{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := store.Set(hash, tt.set); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if p, ok := store.Get(hash); !ok || p != tt.want {
				t.Errorf("Get = %+v %v, want %+v", p, ok, tt.want)
			}
		})
	}

	if err := store.Clear(hash); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := store.Get(hash); ok {
		t.Error("Get found progress after Clear")
	}
}

func TestStorePersistence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	const hash = "abcdef1234567890abcdef1234567890"

	store1, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := store1.Set(hash, Progress{Chapter: 2, Paragraph: 9}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sdreader", stateFileName)); err != nil {
		t.Errorf("state file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "sdreader", stateFileName+".tmp")); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}

	store2, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if p, _ := store2.Get(hash); p != (Progress{Chapter: 2, Paragraph: 9}) {
		t.Errorf("persisted progress = %+v", p)
	}
}

func TestStoreIgnoresCorruptFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)
	os.MkdirAll(filepath.Join(dir, "sdreader"), 0o755)
	os.WriteFile(filepath.Join(dir, "sdreader", stateFileName), []byte("{not json"), 0o644)

	store, err := NewStore()
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, ok := store.Get("anything"); ok {
		t.Error("corrupt state produced progress")
	}
}
