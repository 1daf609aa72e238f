// Package save turns a committed piece-tree root into a durable file
// on disk, choosing between an atomic-rename strategy and an
// in-place streaming strategy, and recovering from a crash that
// happened mid-stream on a prior invocation.
package save

import (
	"fmt"

	"piecebuf/internal/bufferr"
	"piecebuf/internal/chunkstore"
	"piecebuf/internal/piecetree"
)

// Op is one operation in a save recipe. Either Literal or the Copy*
// fields are meaningful, discriminated by Kind.
type Op struct {
	Kind Kind

	// Literal holds already-resolved bytes to write verbatim.
	Literal []byte

	// CopyPath/CopyStart/CopyLen describe a byte range to stream from
	// an existing file — almost always the save destination itself,
	// when a FileOwned piece's chunk is backed by that same path.
	CopyPath  string
	CopyStart int64
	CopyLen   int64
}

type Kind int

const (
	OpLiteral Kind = iota
	OpCopyFromFile
)

// Recipe is an ordered sequence of operations whose concatenated
// output equals the document's bytes at the moment it was built.
type Recipe []Op

// Build walks tree's leaves in order and emits one operation per
// piece: a Literal for Added/Ephemeral chunks and for FileOwned
// chunks not backed by destPath, or a CopyFromFile for FileOwned
// chunks backed by destPath (so the save can stream that range
// straight from the source instead of paying to resolve it into
// memory first).
func Build(tree piecetree.Tree, destPath string, store *chunkstore.Store) (Recipe, error) {
	var recipe Recipe
	for _, p := range tree.Leaves() {
		info, ok := store.Info(p.Chunk)
		if !ok {
			return nil, bufferr.Invariant(fmt.Sprintf("save: recipe references unknown chunk %d", p.Chunk))
		}

		if info.Provenance == chunkstore.FileOwned && info.Path == destPath {
			recipe = append(recipe, Op{
				Kind:      OpCopyFromFile,
				CopyPath:  destPath,
				CopyStart: info.FileOffset + int64(p.Start),
				CopyLen:   int64(p.Len),
			})
			continue
		}

		data, err := store.Resolve(p.Chunk, p.Start, p.Len)
		if err != nil {
			return nil, err
		}
		recipe = append(recipe, Op{Kind: OpLiteral, Literal: data})
	}
	return recipe, nil
}

// Len returns the total byte length the recipe will produce.
func (r Recipe) Len() int64 {
	var n int64
	for _, op := range r {
		switch op.Kind {
		case OpLiteral:
			n += int64(len(op.Literal))
		case OpCopyFromFile:
			n += op.CopyLen
		}
	}
	return n
}

// ReferencesPath reports whether any CopyFromFile operation in r
// reads from path — the condition that forces the copy-reads-before-
// truncate precaution in the in-place strategy.
func (r Recipe) ReferencesPath(path string) bool {
	for _, op := range r {
		if op.Kind == OpCopyFromFile && op.CopyPath == path {
			return true
		}
	}
	return false
}
