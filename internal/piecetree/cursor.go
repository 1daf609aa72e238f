package piecetree

// Cursor streams a byte range of a Tree as a sequence of chunk-backed
// segments, resolving each piece's bytes lazily as Next is called
// rather than eagerly materializing the whole range up front. Readers
// that only need the first few lines of a large range never pay for
// the rest.
type Cursor struct {
	src     ChunkSource
	stack   []segment
	end     int
	consumed int
}

type segment struct {
	piece Piece
	// skip is how many leading bytes of piece to drop (only nonzero
	// for the first segment, when the read starts mid-piece).
	skip int
	// take is how many bytes of piece, after skip, belong to the
	// read range (only less than piece.Len-skip for the last segment).
	take int
}

// NewCursor returns a cursor over t's bytes in [start, end).
func (t Tree) NewCursor(start, end int, src ChunkSource) *Cursor {
	if start < 0 || end < start || end > t.Len() {
		panic("piecetree: cursor range out of bounds")
	}
	c := &Cursor{src: src, end: end}
	c.collect(t.root, 0, start, end)
	return c
}

// collect walks n in reverse in-order (right, piece, left), pushing
// segments covering [start, end) (absolute offsets within the whole
// tree) onto c.stack. Because the stack is LIFO, popping later
// reproduces forward order: left first, then piece, then right.
func (c *Cursor) collect(n *node, base, start, end int) {
	if n == nil || base >= end {
		return
	}
	if base+bytesOf(n) <= start {
		return
	}

	rightBase := base + bytesOf(n.left) + n.piece.Len
	c.collect(n.right, rightBase, start, end)

	pieceStart := base + bytesOf(n.left)
	pieceEnd := pieceStart + n.piece.Len
	if pieceEnd > start && pieceStart < end {
		skip := 0
		if start > pieceStart {
			skip = start - pieceStart
		}
		take := n.piece.Len - skip
		if over := pieceEnd - end; over > 0 {
			take -= over
		}
		c.stack = append(c.stack, segment{piece: n.piece, skip: skip, take: take})
	}

	c.collect(n.left, base, start, end)
}

// Next returns the next segment's resolved bytes, or false when the
// range is exhausted.
func (c *Cursor) Next() ([]byte, bool, error) {
	if len(c.stack) == 0 {
		return nil, false, nil
	}
	seg := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]

	data, err := c.src.Resolve(seg.piece.Chunk, seg.piece.Start+seg.skip, seg.take)
	if err != nil {
		return nil, false, err
	}
	c.consumed += seg.take
	return data, true, nil
}

// ReadAll drains the cursor into a single byte slice. Intended for
// small ranges (a line, a selection); large reads should iterate
// Next directly to avoid the allocation.
func ReadAll(c *Cursor) ([]byte, error) {
	var out []byte
	for {
		b, ok, err := c.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, b...)
	}
}
