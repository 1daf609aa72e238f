package fsys

import "testing"

func TestMemoryReadRange(t *testing.T) {
	m := NewMemory(1000)
	m.Seed("/doc.txt", []byte("hello world"), 0o644, 1000, 1000)

	got, err := m.ReadRange("/doc.txt", 6, 5)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if string(got) != "world" {
		t.Fatalf("ReadRange = %q, want %q", got, "world")
	}
}

func TestMemoryWriterThenRename(t *testing.T) {
	m := NewMemory(1000)

	w, err := m.OpenWriter("/doc.tmp")
	if err != nil {
		t.Fatalf("OpenWriter: %v", err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := m.Rename("/doc.tmp", "/doc.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	got, ok := m.Contents("/doc.txt")
	if !ok {
		t.Fatalf("expected /doc.txt to exist after rename")
	}
	if string(got) != "payload" {
		t.Fatalf("Contents = %q, want %q", got, "payload")
	}
	if _, ok := m.Contents("/doc.tmp"); ok {
		t.Fatalf("expected /doc.tmp removed after rename")
	}
}

func TestMemorySetLenTruncatesAndExtends(t *testing.T) {
	m := NewMemory(1000)
	m.Seed("/doc.txt", []byte("0123456789"), 0o644, 1000, 1000)

	if err := m.SetLen("/doc.txt", 4); err != nil {
		t.Fatalf("SetLen shrink: %v", err)
	}
	got, _ := m.Contents("/doc.txt")
	if string(got) != "0123" {
		t.Fatalf("after shrink = %q, want %q", got, "0123")
	}

	if err := m.SetLen("/doc.txt", 6); err != nil {
		t.Fatalf("SetLen grow: %v", err)
	}
	got, _ = m.Contents("/doc.txt")
	if len(got) != 6 {
		t.Fatalf("after grow len = %d, want 6", len(got))
	}
}

func TestMemoryIsOwner(t *testing.T) {
	m := NewMemory(1000)
	m.Seed("/mine.txt", []byte("x"), 0o644, 1000, 1000)
	m.Seed("/theirs.txt", []byte("x"), 0o644, 2000, 2000)

	if ok, err := m.IsOwner("/mine.txt"); err != nil || !ok {
		t.Fatalf("IsOwner(/mine.txt) = %v, %v, want true, nil", ok, err)
	}
	if ok, err := m.IsOwner("/theirs.txt"); err != nil || ok {
		t.Fatalf("IsOwner(/theirs.txt) = %v, %v, want false, nil", ok, err)
	}
}
