package buffer

import (
	"time"

	"piecebuf/internal/bufferr"
	"piecebuf/internal/piecetree"
)

// Insert inserts bytes at offset. Atomic: on success the buffer is
// fully transitioned to the new version; on error (out-of-range
// offset) the buffer is unchanged.
func (b *Buffer) Insert(offset int, data []byte) error {
	return b.splice(offset, offset, data)
}

// Delete removes [start, end). A zero-length range is a no-op; a
// range extending past the end of the buffer is clamped to end.
func (b *Buffer) Delete(start, end int) error {
	if end > b.tree.Len() {
		end = b.tree.Len()
	}
	if end < start {
		end = start
	}
	return b.splice(start, end, nil)
}

// Replace replaces [start, end) with data.
func (b *Buffer) Replace(start, end int, data []byte) error {
	return b.splice(start, end, data)
}

func (b *Buffer) splice(start, end int, data []byte) error {
	length := b.tree.Len()
	if start < 0 || end < start || end > length {
		return bufferr.OutOfRange("splice range", int64(end), int64(length))
	}
	if start == end && len(data) == 0 {
		return nil
	}

	removed, err := b.readRange(start, end)
	if err != nil {
		return err
	}

	var newPieces []piecetree.Piece
	if len(data) > 0 {
		id := b.store.AppendAdded(data)
		newPieces = []piecetree.Piece{{Chunk: id, Start: 0, Len: len(data), Newlines: countNewlines(data)}}
	}

	before := b.tree
	after := before.Splice(start, end, newPieces, b.store)

	b.markers.Shift(start, end, len(data))
	b.pushSplice(start, start+len(data), removed, before, after, start+len(data))
	b.tree = after
	b.lastMutationAt = time.Now()

	if b.lineCountKnown {
		b.lineCount = b.tree.Lines()
	}
	return nil
}

func (b *Buffer) readRange(start, end int) ([]byte, error) {
	if start == end {
		return nil, nil
	}
	cur := b.tree.NewCursor(start, end, b.store)
	return piecetree.ReadAll(cur)
}

// ApplySnapshot replaces the entire committed content with data as a
// single undo step, for bulk edits (multi-cursor operations, indent
// of a selection, toggle-comment, reformat) whose inverse is cheaper
// to capture as a whole tree root than to reconstruct as a splice
// list.
func (b *Buffer) ApplySnapshot(data []byte) error {
	before := b.tree
	var after piecetree.Tree
	if len(data) == 0 {
		after = piecetree.Empty
	} else {
		id := b.store.AppendAdded(data)
		after = piecetree.FromPieces([]piecetree.Piece{{Chunk: id, Start: 0, Len: len(data), Newlines: countNewlines(data)}})
	}
	b.markers.Shift(0, before.Len(), len(data))
	b.pushSnapshot(before, after)
	b.tree = after
	b.lastMutationAt = time.Now()
	if b.lineCountKnown {
		b.lineCount = b.tree.Lines()
	}
	return nil
}
