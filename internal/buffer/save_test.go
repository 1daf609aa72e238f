package buffer

import (
	"context"
	"testing"

	"piecebuf/internal/chunkstore"
	"piecebuf/internal/fsys"
)

func TestSaveToWritesContentAndConsolidates(t *testing.T) {
	mem := fsys.NewMemory(1000)
	mem.Seed("/doc.txt", []byte("old"), 0o644, 1000, 1000)

	store := chunkstore.New(chunkstore.Config{Filesystem: mem})
	b := FromBytes(Config{Store: store}, []byte("new content"))

	err := b.SaveTo(context.Background(), "/doc.txt", SaveConfig{
		Filesystem:  mem,
		ManifestDir: "/recovery",
	})
	if err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	got, ok := mem.Contents("/doc.txt")
	if !ok {
		t.Fatalf("expected /doc.txt to exist")
	}
	if string(got) != "new content" {
		t.Fatalf("Contents = %q, want %q", got, "new content")
	}

	if b.IsModified() {
		t.Fatalf("IsModified() = true, want false right after save")
	}
	if len(b.history) != 0 || len(b.redo) != 0 {
		t.Fatalf("expected undo/redo history cleared after save, got history=%d redo=%d",
			len(b.history), len(b.redo))
	}
	if b.Undo() {
		t.Fatalf("Undo() = true, want false: history must be cleared across a save")
	}
}

func TestSaveToUpdatesPathForNewBuffer(t *testing.T) {
	mem := fsys.NewMemory(1000)
	store := chunkstore.New(chunkstore.Config{Filesystem: mem})
	b := FromBytes(Config{Store: store}, []byte("hello"))

	if err := b.SaveTo(context.Background(), "/new.txt", SaveConfig{
		Filesystem:  mem,
		ManifestDir: "/recovery",
	}); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	got, ok := mem.Contents("/new.txt")
	if !ok || string(got) != "hello" {
		t.Fatalf("Contents = (%q, %v), want (\"hello\", true)", got, ok)
	}
	if b.path != "/new.txt" {
		t.Fatalf("path = %q, want /new.txt", b.path)
	}
}
