package piecetree

import "piecebuf/internal/docid"

// Tree is a persistent piece tree: an immutable value whose Splice
// method returns a new Tree without modifying the receiver. Two trees
// that share a version ancestor share any subtree neither one's edits
// touched, which is what lets undo and diff-against-saved compare
// trees by pointer equality at the node level instead of walking both.
type Tree struct {
	root *node
}

// Empty is the zero-length tree.
var Empty = Tree{}

// Len reports the tree's total byte length.
func (t Tree) Len() int { return bytesOf(t.root) }

// Newlines reports the total number of '\n' bytes in the tree.
func (t Tree) Newlines() int { return newlinesOf(t.root) }

// Lines reports the number of lines in the tree, counting a trailing
// unterminated line as one more than the newline count.
func (t Tree) Lines() int { return t.Newlines() + 1 }

// PatchChunkNewlines returns a tree with every piece backed by chunk
// given its newline count recomputed from src, rebuilding only the
// nodes on the path to a piece whose count actually changed and
// sharing every other subtree by pointer, including t's own root if
// nothing needed patching. Two trees that previously shared a subtree
// and are patched for the same chunk keep sharing that subtree
// afterward, which is what lets a pure line-index scan (no
// intervening edits) leave StructuralEqual still reporting true
// against a tree it is kept in lockstep with.
func (t Tree) PatchChunkNewlines(chunk docid.ChunkID, src ChunkSource) Tree {
	root, changed := patchChunkNewlines(t.root, chunk, src)
	if !changed {
		return t
	}
	return Tree{root: root}
}

// FromPieces builds a tree from an ordered slice of pieces, as when
// constructing the initial tree for a newly opened document from its
// chunk list.
func FromPieces(pieces []Piece) Tree {
	return Tree{root: buildChain(pieces)}
}

// Splice replaces the byte range [start, end) with newPieces, returning
// the resulting tree. 0 <= start <= end <= t.Len(). Splitting a piece
// at start or end, if either falls mid-piece, uses src to recompute
// newline counts for the two halves.
func (t Tree) Splice(start, end int, newPieces []Piece, src ChunkSource) Tree {
	if start < 0 || end < start || end > t.Len() {
		panic("piecetree: splice range out of bounds")
	}
	left, rest := splitAt(t.root, start, src)
	_, right := splitAt(rest, end-start, src)
	mid := buildChain(newPieces)
	return Tree{root: merge(merge(left, mid), right)}
}

// ByteAt returns the byte at absolute offset off.
func (t Tree) ByteAt(off int, src ChunkSource) (byte, error) {
	n := t.root
	for n != nil {
		leftBytes := bytesOf(n.left)
		switch {
		case off < leftBytes:
			n = n.left
		case off < leftBytes+n.piece.Len:
			local := off - leftBytes
			b, err := src.Resolve(n.piece.Chunk, n.piece.Start+local, 1)
			if err != nil {
				return 0, err
			}
			return b[0], nil
		default:
			off -= leftBytes + n.piece.Len
			n = n.right
		}
	}
	panic("piecetree: offset out of bounds")
}

// LineOf returns the line number (0-based) containing byte offset off.
func (t Tree) LineOf(off int, src ChunkSource) int {
	line := 0
	n := t.root
	for n != nil {
		leftBytes := bytesOf(n.left)
		switch {
		case off < leftBytes:
			n = n.left
		case off <= leftBytes+n.piece.Len:
			line += newlinesOf(n.left)
			local := off - leftBytes
			if local > 0 && n.piece.Newlines > 0 {
				line += src.NewlineCount(n.piece.Chunk, n.piece.Start, local)
			}
			return line
		default:
			line += newlinesOf(n.left) + n.piece.Newlines
			off -= leftBytes + n.piece.Len
			n = n.right
		}
	}
	return line
}

// OffsetOf returns the byte offset of the first byte of line (0-based).
// OffsetOf(0) is always 0. Panics if line > t.Lines()-1.
func (t Tree) OffsetOf(line int, src ChunkSource) int {
	if line == 0 {
		return 0
	}
	target := line
	off := 0
	n := t.root
	for n != nil {
		leftNL := newlinesOf(n.left)
		switch {
		case target <= leftNL:
			n = n.left
		case target <= leftNL+n.piece.Newlines:
			off += bytesOf(n.left)
			need := target - leftNL
			off += findNewlinePos(n.piece, need, src) + 1
			return off
		default:
			off += bytesOf(n.left) + n.piece.Len
			target -= leftNL + n.piece.Newlines
			n = n.right
		}
	}
	panic("piecetree: line out of bounds")
}

// findNewlinePos returns the local byte offset, within p, of the
// occ-th '\n' (1-based).
func findNewlinePos(p Piece, occ int, src ChunkSource) int {
	data, err := src.Resolve(p.Chunk, p.Start, p.Len)
	if err != nil {
		panic(err)
	}
	seen := 0
	for i, b := range data {
		if b == '\n' {
			seen++
			if seen == occ {
				return i
			}
		}
	}
	panic("piecetree: newline occurrence not found in piece")
}

// Leaves returns the tree's pieces in order. Intended for tests and
// for building a chunk list at save time; not for hot-path reads.
func (t Tree) Leaves() []Piece {
	var out []Piece
	var walk func(*node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		walk(n.left)
		out = append(out, n.piece)
		walk(n.right)
	}
	walk(t.root)
	return out
}

// StructuralEqual reports whether a and b are built from the exact
// same tree node by pointer identity, meaning no edit has touched
// either subtree since they diverged. Two trees with identical
// content but independently constructed report false: this is an
// identity check, not a value comparison, which is what lets callers
// use it as an O(1) "definitely unchanged" test instead of an O(n)
// diff.
func StructuralEqual(a, b Tree) bool {
	return a.root == b.root
}

// ByteRange is a half-open [Start, End) byte range in a Tree's own
// coordinates.
type ByteRange struct {
	Start, End int
}

// Diff reports the byte ranges in a's coordinates that differ from b,
// by a recursive descent that prunes any subtree pair sharing the
// same node pointer. Subtrees outside an edit's path are reused by
// pointer during Splice, so this prune is usually enough to make the
// walk proportional to the size of the edit rather than the size of
// the tree. When the two trees' shapes diverge at a node (different
// left-subtree lengths), the whole subtree rooted there is reported
// as changed rather than attempting to realign byte offsets across
// incomparable shapes.
func Diff(a, b Tree) []ByteRange {
	var out []ByteRange
	diffNode(a.root, b.root, 0, &out)
	return out
}

func diffNode(a, b *node, base int, out *[]ByteRange) {
	if a == b {
		return
	}
	if a == nil {
		return
	}
	if b == nil {
		*out = append(*out, ByteRange{base, base + bytesOf(a)})
		return
	}
	aLeftLen := bytesOf(a.left)
	if aLeftLen != bytesOf(b.left) || a.piece.Len != b.piece.Len {
		*out = append(*out, ByteRange{base, base + bytesOf(a)})
		return
	}
	diffNode(a.left, b.left, base, out)
	if a.piece != b.piece {
		*out = append(*out, ByteRange{base + aLeftLen, base + aLeftLen + a.piece.Len})
	}
	diffNode(a.right, b.right, base+aLeftLen+a.piece.Len, out)
}

// ChunksUsed collects the distinct chunk ids referenced by the tree's
// pieces, in first-occurrence order. Used by save to determine which
// chunks must be pinned for the duration of the save.
func (t Tree) ChunksUsed() []docid.ChunkID {
	seen := make(map[docid.ChunkID]bool)
	var out []docid.ChunkID
	for _, p := range t.Leaves() {
		if !seen[p.Chunk] {
			seen[p.Chunk] = true
			out = append(out, p.Chunk)
		}
	}
	return out
}
