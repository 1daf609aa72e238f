package buffer

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"piecebuf/internal/jobstep"
	"piecebuf/internal/piecetree"
	"piecebuf/internal/save"
)

// SaveConfig controls one SaveTo call.
type SaveConfig struct {
	Filesystem save.Filesystem
	// ManifestDir is where in-place recovery manifests are written.
	// Required only when the in-place strategy ends up being chosen.
	ManifestDir string
	RateLimiter *rate.Limiter
	Logger      *slog.Logger
}

// SaveTo writes the buffer's current content to path, choosing the
// atomic-rename or in-place-streaming strategy per save.ChooseStrategy,
// then performs post-save consolidation: the committed tree is
// replaced with a single piece over a fresh lazy FileOwned chunk
// spanning the whole destination file, and that tree becomes the new
// pristine snapshot. This keeps the chunk store from growing without
// bound across repeated saves.
func (b *Buffer) SaveTo(ctx context.Context, path string, cfg SaveConfig) error {
	recipe, chunks, err := b.buildSaveRecipe(path)
	if err != nil {
		return err
	}

	// Pin every chunk the recipe reads from for the duration of the
	// save, so a concurrent line-scan or eviction pass can never
	// demote a chunk the save is mid-read on; see the copy-before-
	// truncate invariant this guards in internal/save.
	b.store.Pin(chunks)
	defer b.store.Unpin(chunks)

	job := save.NewJob(save.Config{
		Filesystem:  cfg.Filesystem,
		ManifestDir: cfg.ManifestDir,
		RateLimiter: cfg.RateLimiter,
		Logger:      cfg.Logger,
	}, recipe, path)

	if err := jobstep.RunToCompletion(ctx, job); err != nil {
		return err
	}

	return b.consolidateAfterSave(cfg.Filesystem, path)
}

// consolidateAfterSave implements the save pipeline's mandatory
// post-save step: replace the tree with a single piece over a fresh
// lazy chunk spanning the whole destination, and make it pristine.
//
// A Snapshot undo record's root_before/root_after may still reference
// pieces from chunks the pre-consolidation store owned. Once save
// has overwritten the destination file, any such root that happened
// to be FileOwned-backed by that same path would, if kept and later
// resolved, read the new file content instead of the content it held
// at record time — undo would silently corrupt, not merely fail
// loudly. Splice records hold before/after tree roots as well, so
// the same risk applies to them. This implementation does not rewrite
// any record's roots: it clears the whole undo and redo history, so
// undo after a save reaches back only to the saved content.
// Identifying which roots are safe would require tracking per-root
// "backed by the save destination" provenance the chunk store does
// not expose.
func (b *Buffer) consolidateAfterSave(fs save.Filesystem, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		return err
	}
	id, err := b.store.RegisterFileChunk(path, 0, int(info.Size), true)
	if err != nil {
		return err
	}
	tree := piecetree.Empty
	if info.Size > 0 {
		tree = piecetree.FromPieces([]piecetree.Piece{{Chunk: id, Start: 0, Len: int(info.Size), Newlines: 0}})
	}
	b.tree = tree
	b.pristine = tree
	b.path = path
	b.largeFile = false
	b.lineCountKnown = false
	b.lineCount = 0

	b.history = nil
	b.redo = nil
	return nil
}
