package policy

import (
	"testing"

	"piecebuf/internal/docid"
)

func TestMemoryBudgetUnderLimitEvictsNothing(t *testing.T) {
	p := NewMemoryBudget(1000)
	state := StoreState{
		Resident:   []ResidentChunk{{ID: 1, Bytes: 100, LastAccessSeq: 1}},
		TotalBytes: 100,
	}
	if got := p.Evict(state); got != nil {
		t.Fatalf("Evict() = %v, want nil", got)
	}
}

func TestMemoryBudgetEvictsOldestFirst(t *testing.T) {
	p := NewMemoryBudget(150)
	state := StoreState{
		Resident: []ResidentChunk{
			{ID: 1, Bytes: 100, LastAccessSeq: 3},
			{ID: 2, Bytes: 100, LastAccessSeq: 1},
			{ID: 3, Bytes: 100, LastAccessSeq: 2},
		},
		TotalBytes: 300,
	}
	got := p.Evict(state)
	want := []docid.ChunkID{2, 3}
	if len(got) != len(want) {
		t.Fatalf("Evict() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Evict()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMemoryBudgetSkipsPinned(t *testing.T) {
	p := NewMemoryBudget(50)
	state := StoreState{
		Resident: []ResidentChunk{
			{ID: 1, Bytes: 100, LastAccessSeq: 1, Pinned: true},
			{ID: 2, Bytes: 100, LastAccessSeq: 2},
		},
		TotalBytes: 200,
	}
	got := p.Evict(state)
	if len(got) != 1 || got[0] != docid.ChunkID(2) {
		t.Fatalf("Evict() = %v, want [2]", got)
	}
}

func TestMemoryBudgetZeroMeansUnlimited(t *testing.T) {
	p := NewMemoryBudget(0)
	state := StoreState{
		Resident:   []ResidentChunk{{ID: 1, Bytes: 1 << 30, LastAccessSeq: 1}},
		TotalBytes: 1 << 30,
	}
	if got := p.Evict(state); got != nil {
		t.Fatalf("Evict() = %v, want nil for unlimited budget", got)
	}
}

func TestCompositeUnionsAndDedupes(t *testing.T) {
	always := EvictionPolicyFunc(func(StoreState) []docid.ChunkID {
		return []docid.ChunkID{1, 2}
	})
	overlap := EvictionPolicyFunc(func(StoreState) []docid.ChunkID {
		return []docid.ChunkID{2, 3}
	})
	c := NewComposite(always, overlap)

	got := c.Evict(StoreState{})
	want := []docid.ChunkID{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("Evict() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Evict()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNeverEvict(t *testing.T) {
	var p NeverEvict
	state := StoreState{
		Resident:   []ResidentChunk{{ID: 1, Bytes: 1 << 30}},
		TotalBytes: 1 << 30,
	}
	if got := p.Evict(state); got != nil {
		t.Fatalf("Evict() = %v, want nil", got)
	}
}
