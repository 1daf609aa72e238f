package buffer

import (
	"piecebuf/internal/chunkstore"
	"piecebuf/internal/fsys"
	"piecebuf/internal/piecetree"
)

// spanSize is the fixed chunk size a large file is split into on lazy
// load: big enough to amortize per-chunk overhead, small enough that
// editing near the start of a multi-gigabyte file doesn't force a
// large read.
const spanSize = 64 * 1024

// Load opens path through fs, choosing eager (whole file read into
// one resident chunk) or lazy (file split into spanSize lazy chunks)
// load based on whether the file's size is at least threshold.
//
// Lazy load leaves the line count unknown until a LineScan (see scan.go)
// completes, per the piece tree's "newlines are unknown until a lazy
// chunk is resident" contract.
func Load(cfg Config, fs fsys.Filesystem, path string, threshold int64) (*Buffer, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}

	store := cfg.Store
	if store == nil {
		store = chunkstore.New(chunkstore.Config{Filesystem: fs, Logger: cfg.Logger})
	}
	b := New(Config{Logger: cfg.Logger, Store: store})
	b.path = path

	if head, sniffErr := fs.ReadRange(path, 0, minInt(4, int(info.Size))); sniffErr == nil {
		b.encoding = sniffEncoding(head)
	}

	if info.Size < threshold {
		id, err := store.RegisterFileChunk(path, 0, int(info.Size), false)
		if err != nil {
			return nil, err
		}
		nl := store.NewlineCount(id, 0, int(info.Size))
		tree := piecetree.Empty
		if info.Size > 0 {
			tree = piecetree.FromPieces([]piecetree.Piece{{Chunk: id, Start: 0, Len: int(info.Size), Newlines: nl}})
		}
		b.tree = tree
		b.pristine = tree
		b.lineCountKnown = true
		b.lineCount = tree.Lines()
		return b, nil
	}

	b.largeFile = true
	b.lineCountKnown = false

	var pieces []piecetree.Piece
	for off := int64(0); off < info.Size; off += spanSize {
		length := spanSize
		if remaining := info.Size - off; remaining < int64(length) {
			length = int(remaining)
		}
		id, err := store.RegisterFileChunk(path, off, length, true)
		if err != nil {
			return nil, err
		}
		// newlines is unknown for a lazy chunk until it is resident;
		// the piece starts at 0 and Newlines is filled in lazily by
		// the line-index scan updating the tree (see scan.go).
		pieces = append(pieces, piecetree.Piece{Chunk: id, Start: 0, Len: length, Newlines: 0})
	}
	tree := piecetree.FromPieces(pieces)
	b.tree = tree
	b.pristine = tree
	return b, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
