package buffer

import (
	"context"
	"testing"

	"piecebuf/internal/docid"
	"piecebuf/internal/fsys"
	"piecebuf/internal/markers"
	"piecebuf/internal/piecetree"
)

// TestScenarioS1InsertDeleteSaveReload exercises a small-file round
// trip through insert, delete back to the original content, save, and
// reload, confirming the reloaded bytes match.
func TestScenarioS1InsertDeleteSaveReload(t *testing.T) {
	mem := fsys.NewMemory(1000)
	mem.Seed("/doc.txt", []byte("Hello, World!\n"), 0o644, 1000, 1000)

	b, err := Load(Config{}, mem, "/doc.txt", 1024)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := b.Len(); got != 14 {
		t.Fatalf("Len() = %d, want 14", got)
	}
	if n, ok := b.LineCount(); !ok || n != 2 {
		t.Fatalf("LineCount() = (%d, %v), want (2, true)", n, ok)
	}

	if err := b.Insert(7, []byte("lovely ")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := readAll(t, b); got != "Hello, lovely World!\n" {
		t.Fatalf("content = %q", got)
	}

	if err := b.Delete(7, 14); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := readAll(t, b); got != "Hello, World!\n" {
		t.Fatalf("content after delete = %q, want original", got)
	}

	if err := b.SaveTo(context.Background(), "/doc.txt", SaveConfig{
		Filesystem:  mem,
		ManifestDir: "/recovery",
	}); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	reloaded, err := Load(Config{}, mem, "/doc.txt", 1024)
	if err != nil {
		t.Fatalf("reload Load: %v", err)
	}
	if got := readAll(t, reloaded); got != "Hello, World!\n" {
		t.Fatalf("reloaded content = %q, want original", got)
	}
}

// TestScenarioS4MarkerStabilityAcrossEdits checks left/right affinity
// markers against two independent edits from the same base state: an
// interior insert inside [L,R], and a delete straddling both markers.
func TestScenarioS4MarkerStabilityAcrossEdits(t *testing.T) {
	base := func(t *testing.T) (*Buffer, markersHandles) {
		t.Helper()
		b := FromBytes(Config{}, []byte(""))
		if err := b.Insert(0, []byte("abcdefghij")); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		return b, markersHandles{
			left:  b.Markers().Create(3, markers.Left),
			right: b.Markers().Create(7, markers.Right),
		}
	}

	t.Run("insert_inside_range", func(t *testing.T) {
		b, h := base(t)
		if err := b.Insert(5, []byte("XYZ")); err != nil {
			t.Fatalf("Insert: %v", err)
		}
		lp, ok := b.Markers().Position(h.left)
		if !ok || lp != 3 {
			t.Fatalf("position(left) = (%d, %v), want (3, true)", lp, ok)
		}
		rp, ok := b.Markers().Position(h.right)
		if !ok || rp != 10 {
			t.Fatalf("position(right) = (%d, %v), want (10, true)", rp, ok)
		}
		between, err := b.Bytes(lp, rp)
		if err != nil {
			t.Fatalf("Bytes: %v", err)
		}
		betweenBytes, err := piecetree.ReadAll(between)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if got := string(betweenBytes); got != "deXYZfg" {
			t.Fatalf("bytes(left..right) = %q, want %q", got, "deXYZfg")
		}
	})

	t.Run("delete_straddling_both_markers", func(t *testing.T) {
		b, h := base(t)
		if err := b.Delete(2, 8); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		lp, ok := b.Markers().Position(h.left)
		if !ok || lp != 2 {
			t.Fatalf("position(left) after straddling delete = (%d, %v), want (2, true)", lp, ok)
		}
		rp, ok := b.Markers().Position(h.right)
		if !ok || rp != 2 {
			t.Fatalf("position(right) after straddling delete = (%d, %v), want (2, true)", rp, ok)
		}
	})
}

type markersHandles struct {
	left, right docid.MarkerID
}

// TestScenarioS5UndoPastABulkEditThatCrossedASave exercises undo
// after a save has cleared Snapshot-carrying history: undo only
// reaches back to the save boundary, never past it, and every
// intermediate state remains readable.
func TestScenarioS5UndoPastABulkEditThatCrossedASave(t *testing.T) {
	mem := fsys.NewMemory(1000)
	original := "line1\nline2\nline3\nline4\n"
	mem.Seed("/doc.txt", []byte(original), 0o644, 1000, 1000)

	b, err := Load(Config{}, mem, "/doc.txt", 1024)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := b.Insert(0, []byte("X")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	bulk := "Xline1\nline2\nline3\nline4\n" // pretend toggle-comment result
	if err := b.ApplySnapshot([]byte(bulk)); err != nil {
		t.Fatalf("ApplySnapshot: %v", err)
	}

	if err := b.SaveTo(context.Background(), "/doc.txt", SaveConfig{
		Filesystem:  mem,
		ManifestDir: "/recovery",
	}); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	if len(b.history) != 0 {
		t.Fatalf("expected history cleared by save, got %d entries", len(b.history))
	}

	if err := b.Insert(b.Len(), []byte("Y")); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := b.Bytes(0, b.Len()); err != nil {
		t.Fatalf("buffer unreadable after post-save edit: %v", err)
	}

	// Undo can only unwind back to the save boundary: the bulk edit and
	// the pre-save insert are gone from history, per the documented
	// clear-on-save fallback (see Buffer.consolidateAfterSave).
	if !b.Undo() {
		t.Fatalf("Undo() = false, want true for the post-save insert")
	}
	if _, err := b.Bytes(0, b.Len()); err != nil {
		t.Fatalf("buffer unreadable mid-undo: %v", err)
	}
	if b.Undo() {
		t.Fatalf("Undo() = true, want false: history must not extend past the save boundary")
	}
	if got := readAll(t, b); got != bulk {
		t.Fatalf("content after exhausting undo = %q, want %q (the saved content)", got, bulk)
	}
}

// TestScenarioS6LineIndexScanCorrectness checks that an edit made
// before a completed scan is still reflected once the scan finishes
// and the line count becomes known.
func TestScenarioS6LineIndexScanCorrectness(t *testing.T) {
	mem := fsys.NewMemory(1000)
	var content []byte
	for i := 0; i < 99; i++ {
		content = append(content, []byte("line content here\n")...)
	}
	content = append(content, []byte("last line, no trailing newline")...)
	mem.Seed("/doc.txt", content, 0o644, 1000, 1000)

	b, err := Load(Config{}, mem, "/doc.txt", 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := b.LineCount(); ok {
		t.Fatalf("LineCount() ok = true before scan")
	}
	if diff := b.DiffAgainstSaved(); !diff.Equal {
		t.Fatalf("DiffAgainstSaved() = %+v, want Equal before any edit", diff)
	}

	if err := b.Insert(0, []byte("EDITED: ")); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := b.ScanLines(context.Background()); err != nil {
		t.Fatalf("ScanLines: %v", err)
	}

	n, ok := b.LineCount()
	if !ok || n != 100 {
		t.Fatalf("LineCount() = (%d, %v), want (100, true)", n, ok)
	}
	if diff := b.DiffAgainstSaved(); diff.Equal {
		t.Fatalf("DiffAgainstSaved() = %+v, want not Equal after an edit", diff)
	}
}
