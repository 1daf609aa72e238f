// Package buffer is the edit/query surface consumed by every higher
// layer: it owns one piece tree, a marker index, an undo log, and the
// lazy-loading and save-consolidation bookkeeping that ties a
// document's in-memory state to its backing file.
package buffer

import (
	"bytes"
	"log/slog"
	"time"
	"unicode/utf8"

	"piecebuf/internal/bufferr"
	"piecebuf/internal/chunkstore"
	"piecebuf/internal/docid"
	"piecebuf/internal/logging"
	"piecebuf/internal/markers"
	"piecebuf/internal/piecetree"
	"piecebuf/internal/save"
)

// EncodingHint is a best-effort, informational-only sniff of a
// from-file load's byte encoding. It gates no operation: this core is
// byte-oriented throughout and never transcodes.
type EncodingHint int

const (
	UTF8 EncodingHint = iota
	UTF8WithBOM
	UnknownEncoding
)

// LineCol is a (line, column) position, both zero-based. Line is -1
// in "byte-offset mode": large files whose line index has not yet
// been scanned report positions this way rather than erroring, so a
// renderer always has something to display.
type LineCol struct {
	Line int
	Col  int
}

// byteOffsetMode reports whether lc is a byte-offset-mode result.
func (lc LineCol) byteOffsetMode() bool { return lc.Line < 0 }

// Stats is an immutable diagnostic snapshot, not part of the core
// edit/query contract: chunk count, marker count, undo and redo
// depth, and line-count state, for logging and operator tooling.
type Stats struct {
	ChunkCount   int
	MarkerCount  int
	UndoDepth    int
	RedoDepth    int
	LargeFile    bool
	LineCountKnown bool
}

// DiffSummary reports how the current buffer differs from its
// pristine (last-loaded-or-saved) snapshot.
type DiffSummary struct {
	Equal             bool
	ByteRangesChanged [][2]int
}

// Buffer is single-threaded within one document: all mutations and
// queries for a given Buffer execute on one logical thread of
// control. Concurrent buffers share no mutable state.
type Buffer struct {
	log *slog.Logger

	store   *chunkstore.Store
	markers *markers.Index

	tree     piecetree.Tree
	pristine piecetree.Tree

	history []record
	redo    []record

	path string

	largeFile      bool
	lineCountKnown bool
	lineCount      int

	encoding EncodingHint

	externalChange chan ExternalChangeEvent

	lastMutationAt time.Time
}

// ExternalChangeEvent is delivered on Buffer.ExternalChange() when the
// backing file is modified outside this process. Purely observational:
// it never mutates the buffer.
type ExternalChangeEvent struct {
	Path string
	At   time.Time
}

// Config controls a Buffer's construction.
type Config struct {
	Logger *slog.Logger
	Store  *chunkstore.Store // optional; a fresh store is created if nil
}

// New returns an empty buffer.
func New(cfg Config) *Buffer {
	store := cfg.Store
	if store == nil {
		store = chunkstore.New(chunkstore.Config{Logger: cfg.Logger})
	}
	b := &Buffer{
		log:            logging.Default(cfg.Logger).With("component", "buffer"),
		store:          store,
		markers:        markers.New(),
		tree:           piecetree.Empty,
		pristine:       piecetree.Empty,
		lineCountKnown: true,
		lineCount:      1,
	}
	return b
}

// FromBytes returns a buffer whose initial content is data, held as a
// single resident Added chunk.
func FromBytes(cfg Config, data []byte) *Buffer {
	b := New(cfg)
	if len(data) == 0 {
		return b
	}
	id := b.store.AppendAdded(data)
	b.tree = piecetree.FromPieces([]piecetree.Piece{{
		Chunk: id, Start: 0, Len: len(data), Newlines: countNewlines(data),
	}})
	b.pristine = b.tree
	b.lineCount = b.tree.Lines()
	b.encoding = sniffEncoding(data)
	return b
}

func countNewlines(data []byte) int { return bytes.Count(data, []byte{'\n'}) }

func sniffEncoding(data []byte) EncodingHint {
	if len(data) >= 3 && data[0] == 0xEF && data[1] == 0xBB && data[2] == 0xBF {
		return UTF8WithBOM
	}
	if len(data) == 0 {
		return UTF8
	}
	// Byte-level UTF-8 validity check without transcoding: this core
	// is byte-oriented throughout, the hint is informational only.
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size == 1 {
			return UnknownEncoding
		}
		i += size
	}
	return UTF8
}

// Len reports the buffer's total byte length.
func (b *Buffer) Len() int { return b.tree.Len() }

// LineCount reports the buffer's line count, or (0, false) if the
// buffer is a large file whose line index has not yet been scanned
// (see internal/buffer/scan.go).
func (b *Buffer) LineCount() (int, bool) {
	if !b.lineCountKnown {
		return 0, false
	}
	return b.lineCount, true
}

// Bytes returns a cursor over [start, end).
func (b *Buffer) Bytes(start, end int) (*piecetree.Cursor, error) {
	if start < 0 || end < start || end > b.tree.Len() {
		return nil, bufferr.OutOfRange("buffer range", int64(end), int64(b.tree.Len()))
	}
	return b.tree.NewCursor(start, end, b.store), nil
}

// LineSlice returns a cursor over one line's bytes, including its
// trailing newline if present. Requires a known line count.
func (b *Buffer) LineSlice(line int) (*piecetree.Cursor, error) {
	if !b.lineCountKnown {
		return nil, bufferr.Invariant("buffer: line_slice requires a completed line-index scan")
	}
	if line < 0 || line >= b.lineCount {
		return nil, bufferr.OutOfRange("line", int64(line), int64(b.lineCount))
	}
	start := b.tree.OffsetOf(line, b.store)
	var end int
	if line+1 < b.lineCount {
		end = b.tree.OffsetOf(line+1, b.store)
	} else {
		end = b.tree.Len()
	}
	return b.tree.NewCursor(start, end, b.store), nil
}

// PositionToLineCol converts a byte offset to (line, column). If the
// line count is unknown (unscanned large file), it returns the
// byte-offset-mode sentinel {Line: -1, Col: offset} instead of
// erroring, so a renderer always has something to display.
func (b *Buffer) PositionToLineCol(offset int) (LineCol, error) {
	if offset < 0 || offset > b.tree.Len() {
		return LineCol{}, bufferr.OutOfRange("offset", int64(offset), int64(b.tree.Len()))
	}
	if !b.lineCountKnown {
		return LineCol{Line: -1, Col: offset}, nil
	}
	line := b.tree.LineOf(offset, b.store)
	lineStart := b.tree.OffsetOf(line, b.store)
	return LineCol{Line: line, Col: offset - lineStart}, nil
}

// LineColToPosition converts (line, column) to a byte offset. Not
// valid in byte-offset mode (Line < 0); callers in that mode already
// have a raw byte offset and have no line to convert from.
func (b *Buffer) LineColToPosition(lc LineCol) (int, error) {
	if lc.byteOffsetMode() {
		return 0, bufferr.Invariant("buffer: line_col_to_position called with a byte-offset-mode LineCol")
	}
	if !b.lineCountKnown {
		return 0, bufferr.Invariant("buffer: line_col_to_position requires a completed line-index scan")
	}
	if lc.Line < 0 || lc.Line >= b.lineCount {
		return 0, bufferr.OutOfRange("line", int64(lc.Line), int64(b.lineCount))
	}
	return b.tree.OffsetOf(lc.Line, b.store) + lc.Col, nil
}

// Encoding reports the from-file load's best-effort encoding sniff.
func (b *Buffer) Encoding() EncodingHint { return b.encoding }

// ExternalChange returns the channel external-modification events are
// delivered on, if this buffer is watching a backing file (see
// internal/buffer/watch.go). Returns nil if no watch is active.
func (b *Buffer) ExternalChange() <-chan ExternalChangeEvent { return b.externalChange }

// IsModified reports whether the current root differs structurally
// from the pristine root: cheap, via pointer-equality, never a byte
// comparison.
func (b *Buffer) IsModified() bool {
	return !piecetree.StructuralEqual(b.tree, b.pristine)
}

// DiffAgainstSaved computes which byte ranges differ between the
// current tree and the pristine tree, pruning any subtree pair that
// is pointer-identical. This is what keeps gutter indicators cheap on
// huge files: an untouched region of a large file is never walked.
func (b *Buffer) DiffAgainstSaved() DiffSummary {
	if piecetree.StructuralEqual(b.tree, b.pristine) {
		return DiffSummary{Equal: true}
	}
	diffed := piecetree.Diff(b.tree, b.pristine)
	ranges := make([][2]int, len(diffed))
	for i, r := range diffed {
		ranges[i] = [2]int{r.Start, r.End}
	}
	return DiffSummary{Equal: len(ranges) == 0, ByteRangesChanged: ranges}
}

// Markers exposes the buffer's marker index for position tracking
// (cursors, selections, folds). Pass-through, per the spec's public
// contract: the buffer owns the index and keeps it in sync on every
// splice, but callers create/query/delete markers directly.
func (b *Buffer) Markers() *markers.Index { return b.markers }

// Stats returns an observational diagnostic snapshot.
func (b *Buffer) Stats() Stats {
	return Stats{
		ChunkCount:     len(b.tree.ChunksUsed()),
		MarkerCount:    b.markers.Len(),
		UndoDepth:      len(b.history),
		RedoDepth:      len(b.redo),
		LargeFile:      b.largeFile,
		LineCountKnown: b.lineCountKnown,
	}
}

// buildSaveRecipe constructs the save recipe and the chunk set that
// must be pinned for the duration of the save, shared by SaveTo and
// by anything driving a save.Job directly.
func (b *Buffer) buildSaveRecipe(destPath string) (save.Recipe, []docid.ChunkID, error) {
	recipe, err := save.Build(b.tree, destPath, b.store)
	if err != nil {
		return nil, nil, err
	}
	return recipe, b.tree.ChunksUsed(), nil
}
