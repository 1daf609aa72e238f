package buffer

import (
	"time"

	"piecebuf/internal/piecetree"
)

// IdleSince reports how long it has been since the buffer's last
// mutation, for a caller (internal/idle.Coalescer) deciding whether
// the buffer has been idle long enough to coalesce.
func (b *Buffer) IdleSince() time.Duration { return time.Since(b.lastMutationAt) }

// CoalesceAdjacentAdded merges adjacent pieces in the current tree
// that are contiguous slices of the same underlying chunk, whatever
// the chunk's provenance (a piece split by an insert whose text is
// later deleted ends up this way; separate inserts each get their own
// chunk and are not merged), reducing tree size without changing the buffer's
// content or modification status in any user-visible way. Returns
// whether anything was merged.
//
// Must only be called on the buffer's own logical thread, per the
// single-threaded-per-document model the buffer core follows
// throughout: it mutates the committed tree directly, the same as
// Insert/Delete/Replace.
func (b *Buffer) CoalesceAdjacentAdded() bool {
	leaves := b.tree.Leaves()
	if len(leaves) < 2 {
		return false
	}

	merged := make([]piecetree.Piece, 0, len(leaves))
	merged = append(merged, leaves[0])
	changed := false
	for _, p := range leaves[1:] {
		last := &merged[len(merged)-1]
		if last.Chunk == p.Chunk && last.Start+last.Len == p.Start {
			last.Len += p.Len
			last.Newlines += p.Newlines
			changed = true
			continue
		}
		merged = append(merged, p)
	}
	if !changed {
		return false
	}

	b.tree = piecetree.FromPieces(merged)
	return true
}
