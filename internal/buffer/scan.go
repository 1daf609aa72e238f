package buffer

import (
	"context"

	"piecebuf/internal/bufferr"
	"piecebuf/internal/chunkstore"
	"piecebuf/internal/docid"
	"piecebuf/internal/jobstep"
	"piecebuf/internal/piecetree"
)

// LineScan is a jobstep.Job that resolves one FileOwned chunk's
// newline count per Step, the "processes one chunk and yields"
// requirement for counting lines in a large file without blocking the
// caller for the whole file. It is the only way a large-file Buffer's
// LineCount() becomes known.
type LineScan struct {
	buf     *Buffer
	pending []docid.ChunkID
	idx     int
	canceled bool
	done    bool
}

// ScanLines drives a full LineScan to completion, for callers with no
// event loop to interleave Step calls with (a CLI command, a test).
func (b *Buffer) ScanLines(ctx context.Context) error {
	return jobstep.RunToCompletion(ctx, b.NewLineScan())
}

// NewLineScan builds a scan job over every FileOwned chunk b's current
// tree uses, whether or not its newline count is already known. Safe
// to call on any buffer; one whose tree holds only Added chunks has
// no pending chunks and completes on the first Step.
func (b *Buffer) NewLineScan() *LineScan {
	var pending []docid.ChunkID
	for _, id := range b.tree.ChunksUsed() {
		info, ok := b.store.Info(id)
		if ok && info.Provenance == chunkstore.FileOwned {
			pending = append(pending, id)
		}
	}
	return &LineScan{buf: b, pending: pending}
}

// Step resolves the next pending chunk, folding its learned newline
// count into both the buffer's live tree and its pristine snapshot
// immediately, so a cancelled scan keeps whatever progress it made
// and a pure scan (no edits in between) leaves IsModified false: a
// FileOwned chunk's newline count is a property of its bytes, not of
// an edit, so pristine is owed the same correction the live tree
// gets. Only the final Step (once every chunk has contributed) marks
// the buffer's line count as known.
func (s *LineScan) Step(ctx context.Context) (jobstep.Status, error) {
	if s.done {
		return jobstep.Done, nil
	}
	if s.canceled {
		return jobstep.Canceled, nil
	}

	if s.idx >= len(s.pending) {
		s.buf.lineCountKnown = true
		s.buf.lineCount = s.buf.tree.Lines()
		s.done = true
		return jobstep.Done, nil
	}

	id := s.pending[s.idx]
	info, ok := s.buf.store.Info(id)
	if !ok {
		return jobstep.Failed, bufferr.Invariant("line scan: chunk vanished mid-scan")
	}
	if _, err := s.buf.store.Resolve(id, 0, info.Length); err != nil {
		return jobstep.Failed, err
	}
	shared := piecetree.StructuralEqual(s.buf.tree, s.buf.pristine)
	s.buf.tree = s.buf.tree.PatchChunkNewlines(id, s.buf.store)
	if shared {
		// tree and pristine were the same version (no edits yet), so
		// patching both from the one rebuilt tree keeps them sharing
		// whatever subtrees the patch itself left untouched, instead
		// of independently rebuilding pristine into a structurally
		// identical but pointer-distinct tree.
		s.buf.pristine = s.buf.tree
	} else {
		s.buf.pristine = s.buf.pristine.PatchChunkNewlines(id, s.buf.store)
	}
	s.idx++
	return jobstep.Running, nil
}

// Cancel stops the scan before its next Step, leaving whatever
// newline counts have already been folded into the tree and leaving
// LineCount unknown.
func (s *LineScan) Cancel() {
	if s.done {
		return
	}
	s.canceled = true
}

// Progress reports the fraction of pending chunks resolved so far.
func (s *LineScan) Progress() float64 {
	if len(s.pending) == 0 {
		return 1
	}
	return float64(s.idx) / float64(len(s.pending))
}
