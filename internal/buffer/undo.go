package buffer

import (
	"time"

	"piecebuf/internal/piecetree"
)

// record is one entry in a Buffer's linear undo history. Every edit
// produces either a splice (the common case, invertible from the
// bytes it replaced) or a snapshot (bulk edits whose inverse is
// cheaper to capture as a whole tree root than to reconstruct as a
// splice list).
type record interface {
	// before and after return the tree this record came from and the
	// tree it leads to, so undo/redo can move in either direction without
	// distinguishing record kinds at the call site.
	before() piecetree.Tree
	after() piecetree.Tree
}

// spliceRecord inverts an ordinary insert/delete/replace: replaying
// the splice with removedBytes as the new content and the edit's own
// new length as the removed range reverses it exactly.
type spliceRecord struct {
	start, end int // range in the "after" tree's coordinates
	removed    []byte
	beforeTree piecetree.Tree
	afterTree  piecetree.Tree
	at         time.Time
	cursorPos  int
}

func (r *spliceRecord) before() piecetree.Tree { return r.beforeTree }
func (r *spliceRecord) after() piecetree.Tree  { return r.afterTree }

// snapshotRecord captures a bulk edit (multi-cursor, reformat,
// toggle-comment) by its whole before/after roots, because
// reconstructing the inverse as a splice list would be both lossy and
// expensive. Snapshot roots are not rewritten at save time; save-time
// consolidation clears the whole undo/redo history instead; see
// Buffer.consolidateAfterSave.
type snapshotRecord struct {
	beforeTree piecetree.Tree
	afterTree  piecetree.Tree
}

func (r *snapshotRecord) before() piecetree.Tree { return r.beforeTree }
func (r *snapshotRecord) after() piecetree.Tree  { return r.afterTree }

// groupWindow bounds how close in time two consecutive plain inserts
// must land to be merged into one undo step; pushSplice separately
// requires the second insert to start where the first one ended.
const groupWindow = 500 * time.Millisecond

// pushSplice appends a splice record to history, clearing redo, and
// merges it into the previous record when both are plain inserts at
// adjacent positions within groupWindow — the "consecutive typing
// collapses into one undo step" requirement.
func (b *Buffer) pushSplice(start, end int, removed []byte, before, after piecetree.Tree, cursorPos int) {
	now := time.Now()
	if top, ok := b.lastSpliceForGrouping(); ok {
		isPlainInsert := len(removed) == 0 && end > start
		priorWasInsert := len(top.removed) == 0
		adjacent := start == top.cursorPos
		within := now.Sub(top.at) <= groupWindow
		if isPlainInsert && priorWasInsert && adjacent && within {
			top.end = end
			top.afterTree = after
			top.at = now
			top.cursorPos = end
			b.redo = nil
			return
		}
	}

	b.history = append(b.history, &spliceRecord{
		start: start, end: end,
		removed:    removed,
		beforeTree: before,
		afterTree:  after,
		at:         now,
		cursorPos:  end,
	})
	b.redo = nil
}

// lastSpliceForGrouping returns the top history record if it is a
// spliceRecord eligible for grouping.
func (b *Buffer) lastSpliceForGrouping() (*spliceRecord, bool) {
	if len(b.history) == 0 {
		return nil, false
	}
	r, ok := b.history[len(b.history)-1].(*spliceRecord)
	return r, ok
}

// pushSnapshot appends a snapshot record, clearing redo.
func (b *Buffer) pushSnapshot(before, after piecetree.Tree) {
	b.history = append(b.history, &snapshotRecord{beforeTree: before, afterTree: after})
	b.redo = nil
}

// Undo reverts the most recent undo-history record, returning false
// if there is nothing to undo.
func (b *Buffer) Undo() bool {
	if len(b.history) == 0 {
		return false
	}
	r := b.history[len(b.history)-1]
	b.history = b.history[:len(b.history)-1]
	b.tree = r.before()
	if b.lineCountKnown {
		b.lineCount = b.tree.Lines()
	}
	b.redo = append(b.redo, r)
	return true
}

// Redo reapplies the most recently undone record, returning false if
// there is nothing to redo.
func (b *Buffer) Redo() bool {
	if len(b.redo) == 0 {
		return false
	}
	r := b.redo[len(b.redo)-1]
	b.redo = b.redo[:len(b.redo)-1]
	b.tree = r.after()
	if b.lineCountKnown {
		b.lineCount = b.tree.Lines()
	}
	b.history = append(b.history, r)
	return true
}
