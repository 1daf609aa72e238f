package save

import (
	"testing"

	"piecebuf/internal/chunkstore"
	"piecebuf/internal/fsys"
	"piecebuf/internal/piecetree"
)

func TestBuildEmitsLiteralForAddedChunk(t *testing.T) {
	mem := fsys.NewMemory(1000)
	store := chunkstore.New(chunkstore.Config{Filesystem: mem})

	id := store.AppendAdded([]byte("hello"))
	tree := piecetree.FromPieces([]piecetree.Piece{{Chunk: id, Start: 0, Len: 5, Newlines: 0}})

	recipe, err := Build(tree, "/new.txt", store)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(recipe) != 1 || recipe[0].Kind != OpLiteral {
		t.Fatalf("recipe = %+v, want one Literal op", recipe)
	}
	if string(recipe[0].Literal) != "hello" {
		t.Fatalf("Literal = %q, want %q", recipe[0].Literal, "hello")
	}
}

func TestBuildEmitsCopyFromFileWhenChunkBacksDest(t *testing.T) {
	mem := fsys.NewMemory(1000)
	mem.Seed("/doc.txt", []byte("0123456789"), 0o644, 1000, 1000)
	store := chunkstore.New(chunkstore.Config{Filesystem: mem})

	id, err := store.RegisterFileChunk("/doc.txt", 0, 10, true)
	if err != nil {
		t.Fatalf("RegisterFileChunk: %v", err)
	}
	tree := piecetree.FromPieces([]piecetree.Piece{{Chunk: id, Start: 2, Len: 4, Newlines: 0}})

	recipe, err := Build(tree, "/doc.txt", store)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(recipe) != 1 || recipe[0].Kind != OpCopyFromFile {
		t.Fatalf("recipe = %+v, want one CopyFromFile op", recipe)
	}
	if recipe[0].CopyStart != 2 || recipe[0].CopyLen != 4 {
		t.Fatalf("CopyFromFile = %+v, want start 2 len 4", recipe[0])
	}
}

func TestBuildEmitsLiteralWhenFileOwnedChunkBacksDifferentFile(t *testing.T) {
	mem := fsys.NewMemory(1000)
	mem.Seed("/other.txt", []byte("abcdef"), 0o644, 1000, 1000)
	store := chunkstore.New(chunkstore.Config{Filesystem: mem})

	id, err := store.RegisterFileChunk("/other.txt", 0, 6, false)
	if err != nil {
		t.Fatalf("RegisterFileChunk: %v", err)
	}
	tree := piecetree.FromPieces([]piecetree.Piece{{Chunk: id, Start: 0, Len: 6, Newlines: 0}})

	recipe, err := Build(tree, "/doc.txt", store)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(recipe) != 1 || recipe[0].Kind != OpLiteral {
		t.Fatalf("recipe = %+v, want one Literal op", recipe)
	}
}
