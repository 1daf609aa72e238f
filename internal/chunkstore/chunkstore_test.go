package chunkstore

import (
	"testing"

	"piecebuf/internal/docid"
	"piecebuf/internal/fsys"
	"piecebuf/internal/policy"
)

func TestAppendAddedIsImmediatelyResident(t *testing.T) {
	s := New(Config{Filesystem: fsys.NewMemory(1000)})

	id := s.AppendAdded([]byte("hello\nworld"))
	got, err := s.Resolve(id, 0, 11)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(got) != "hello\nworld" {
		t.Fatalf("Resolve = %q, want %q", got, "hello\nworld")
	}
	if got := s.NewlineCount(id, 0, 11); got != 1 {
		t.Fatalf("NewlineCount = %d, want 1", got)
	}
}

func TestRegisterFileChunkLazyLoadsOnResolve(t *testing.T) {
	mem := fsys.NewMemory(1000)
	mem.Seed("/doc.txt", []byte("line one\nline two\n"), 0o644, 1000, 1000)
	s := New(Config{Filesystem: mem})

	id, err := s.RegisterFileChunk("/doc.txt", 0, 18, true)
	if err != nil {
		t.Fatalf("RegisterFileChunk: %v", err)
	}

	got, err := s.Resolve(id, 9, 9)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if string(got) != "line two\n" {
		t.Fatalf("Resolve = %q, want %q", got, "line two\n")
	}
	if got := s.NewlineCount(id, 0, 18); got != 2 {
		t.Fatalf("NewlineCount = %d, want 2", got)
	}
}

func TestRegisterFileChunkEagerIsResidentImmediately(t *testing.T) {
	mem := fsys.NewMemory(1000)
	mem.Seed("/doc.txt", []byte("abc"), 0o644, 1000, 1000)
	s := New(Config{Filesystem: mem})

	id, err := s.RegisterFileChunk("/doc.txt", 0, 3, false)
	if err != nil {
		t.Fatalf("RegisterFileChunk: %v", err)
	}
	s.mu.Lock()
	resident := s.chunks[id].resident()
	s.mu.Unlock()
	if !resident {
		t.Fatalf("expected eager chunk to be resident immediately")
	}
}

func TestPinPreventsEviction(t *testing.T) {
	mem := fsys.NewMemory(1000)
	mem.Seed("/doc.txt", []byte("aaaaaaaaaa"), 0o644, 1000, 1000)
	s := New(Config{Filesystem: mem, EvictPolicy: policy.NewMemoryBudget(1)})

	id, err := s.RegisterFileChunk("/doc.txt", 0, 10, false)
	if err != nil {
		t.Fatalf("RegisterFileChunk: %v", err)
	}
	s.Pin([]docid.ChunkID{id})
	s.runEviction()

	s.mu.Lock()
	resident := s.chunks[id].resident()
	s.mu.Unlock()
	if !resident {
		t.Fatalf("expected pinned chunk to remain resident")
	}
}

func TestUnpinAllowsEviction(t *testing.T) {
	mem := fsys.NewMemory(1000)
	mem.Seed("/doc.txt", []byte("aaaaaaaaaa"), 0o644, 1000, 1000)
	s := New(Config{Filesystem: mem, EvictPolicy: policy.NewMemoryBudget(1)})

	id, err := s.RegisterFileChunk("/doc.txt", 0, 10, false)
	if err != nil {
		t.Fatalf("RegisterFileChunk: %v", err)
	}
	ids := []docid.ChunkID{id}
	s.Pin(ids)
	s.Unpin(ids)

	s.mu.Lock()
	resident := s.chunks[id].resident()
	s.mu.Unlock()
	if resident {
		t.Fatalf("expected unpinned over-budget chunk to be evicted")
	}
}
