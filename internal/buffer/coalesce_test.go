package buffer

import (
	"testing"
	"time"

	"piecebuf/internal/piecetree"
)

// TestCoalesceAdjacentAddedMergesContiguousPieces constructs a tree
// with two leaves that are contiguous slices of the same chunk
// directly, the shape CoalesceAdjacentAdded targets (the piece-tree's
// own splice/split logic produces this shape when an edit's split
// point falls between two regions of one original chunk without
// removing anything between them); going through Insert wouldn't
// reliably reproduce it since every Insert appends to a fresh chunk.
func TestCoalesceAdjacentAddedMergesContiguousPieces(t *testing.T) {
	b := FromBytes(Config{}, []byte("hello world"))
	id := b.tree.Leaves()[0].Chunk

	split := piecetree.FromPieces([]piecetree.Piece{
		{Chunk: id, Start: 0, Len: 5, Newlines: 0},
		{Chunk: id, Start: 5, Len: 6, Newlines: 0},
	})
	b.tree = split

	before := len(b.tree.Leaves())
	changed := b.CoalesceAdjacentAdded()
	after := len(b.tree.Leaves())

	if !changed {
		t.Fatalf("CoalesceAdjacentAdded() = false, want true")
	}
	if after >= before {
		t.Fatalf("leaf count after coalesce = %d, want fewer than %d", after, before)
	}
	if got := readAll(t, b); got != "hello world" {
		t.Fatalf("content after coalesce = %q, want %q", got, "hello world")
	}
}

func TestCoalesceAdjacentAddedNoOpWhenNothingToMerge(t *testing.T) {
	b := FromBytes(Config{}, []byte("hello"))
	if b.CoalesceAdjacentAdded() {
		t.Fatalf("CoalesceAdjacentAdded() = true, want false for a single-piece buffer")
	}
}

func TestIdleSinceReflectsLastMutation(t *testing.T) {
	b := FromBytes(Config{}, []byte("hello"))
	b.lastMutationAt = time.Now().Add(-time.Hour)
	if got := b.IdleSince(); got < 59*time.Minute {
		t.Fatalf("IdleSince() = %v, want at least ~1h", got)
	}
}
