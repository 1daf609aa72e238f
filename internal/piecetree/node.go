package piecetree

import (
	"math/rand/v2"

	"piecebuf/internal/docid"
)

// node is one node of a persistent treap keyed implicitly by in-order
// position (byte offset), not by an explicit key. Tree shape is kept
// balanced in expectation by randomized priority: a node's priority is
// fixed at construction and merge/split preserve heap order on it.
//
// Nodes are never mutated after construction. Splice produces new
// nodes only along the path touched by the edit; every other subtree
// is shared by pointer with the prior version.
type node struct {
	piece Piece
	prio  uint64

	left, right *node

	subtreeBytes    int
	subtreeNewlines int
}

// newLeaf builds a single-piece node with freshly aggregated subtree
// stats and a random priority.
func newLeaf(p Piece) *node {
	return &node{
		piece:           p,
		prio:            rand.Uint64(),
		subtreeBytes:    p.Len,
		subtreeNewlines: p.Newlines,
	}
}

// recompute rebuilds a node's cached aggregates from its children and
// own piece, keeping the given priority. Called after any merge or
// split that assembles a new node from an existing node's piece and
// new left/right subtrees; prio must be the priority of the node this
// one replaces so heap order established at construction survives
// every rebuild along the splice path.
func recompute(piece Piece, prio uint64, left, right *node) *node {
	n := &node{piece: piece, prio: prio, left: left, right: right}
	n.subtreeBytes = piece.Len + bytesOf(left) + bytesOf(right)
	n.subtreeNewlines = piece.Newlines + newlinesOf(left) + newlinesOf(right)
	return n
}

func bytesOf(n *node) int {
	if n == nil {
		return 0
	}
	return n.subtreeBytes
}

func newlinesOf(n *node) int {
	if n == nil {
		return 0
	}
	return n.subtreeNewlines
}

// withChildren returns a copy of n with new left/right subtrees and
// recomputed aggregates, leaving n itself untouched (n may still be
// reachable from an older tree version).
func (n *node) withChildren(left, right *node) *node {
	return recompute(n.piece, n.prio, left, right)
}

// merge concatenates two treaps, left entirely preceding right in
// byte order, maintaining heap order on priority. Both inputs are
// treated as immutable; the result reuses whichever of left/right's
// subtrees are untouched.
func merge(left, right *node) *node {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	case left.prio >= right.prio:
		return left.withChildren(left.left, merge(left.right, right))
	default:
		return right.withChildren(merge(left, right.left), right.right)
	}
}

// splitAt splits n into (before, after) at absolute byte offset off
// measured from the start of n's subtree, such that before holds
// exactly off bytes. 0 <= off <= bytesOf(n). If off lands inside a
// piece, that piece is divided in two via splitPiece using src.
func splitAt(n *node, off int, src ChunkSource) (before, after *node) {
	if n == nil {
		return nil, nil
	}
	leftBytes := bytesOf(n.left)

	switch {
	case off < leftBytes:
		l, r := splitAt(n.left, off, src)
		return l, recompute(n.piece, n.prio, r, n.right)

	case off > leftBytes+n.piece.Len:
		l, r := splitAt(n.right, off-leftBytes-n.piece.Len, src)
		return recompute(n.piece, n.prio, n.left, l), r

	case off == leftBytes:
		return n.left, recompute(n.piece, n.prio, nil, n.right)

	case off == leftBytes+n.piece.Len:
		return recompute(n.piece, n.prio, n.left, nil), n.right

	default:
		// lp and rp are two brand new pieces carved out of n's single
		// piece, so each gets its own fresh priority rather than
		// inheriting n's: there is no single "n" to preserve heap
		// order for once it has split into two nodes.
		local := off - leftBytes
		lp, rp := splitPiece(n.piece, local, src)
		return recompute(lp, rand.Uint64(), n.left, nil), recompute(rp, rand.Uint64(), nil, n.right)
	}
}

// buildChain merges a slice of pieces, in order, into a single
// treap. Used when splicing in freshly inserted pieces.
func buildChain(pieces []Piece) *node {
	var n *node
	for _, p := range pieces {
		n = merge(n, newLeaf(p))
	}
	return n
}

// patchChunkNewlines recomputes the newline count of every piece of
// chunk in n's subtree from src, returning a node identical in
// content but rebuilt only along paths that actually changed; any
// subtree with nothing to patch is returned unchanged by pointer, so
// a tree sharing structure with another version keeps sharing it
// after both are patched for the same chunk in the same call.
func patchChunkNewlines(n *node, chunk docid.ChunkID, src ChunkSource) (*node, bool) {
	if n == nil {
		return nil, false
	}
	left, leftChanged := patchChunkNewlines(n.left, chunk, src)
	right, rightChanged := patchChunkNewlines(n.right, chunk, src)

	piece := n.piece
	pieceChanged := false
	if piece.Chunk == chunk {
		if nl := src.NewlineCount(piece.Chunk, piece.Start, piece.Len); nl != piece.Newlines {
			piece.Newlines = nl
			pieceChanged = true
		}
	}

	if !leftChanged && !rightChanged && !pieceChanged {
		return n, false
	}
	return recompute(piece, n.prio, left, right), true
}
