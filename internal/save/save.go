package save

import (
	"context"
	"log/slog"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"piecebuf/internal/bufferr"
	"piecebuf/internal/fsys"
	"piecebuf/internal/jobstep"
	"piecebuf/internal/logging"
)

// Strategy is the write path chosen for one save.
type Strategy int

const (
	// AtomicRename writes a temp file alongside the destination and
	// renames it into place, preserving crash-safety by construction:
	// the destination is either the old complete file or the new one.
	AtomicRename Strategy = iota
	// InPlaceStreaming truncates and rewrites the destination in
	// place, required when the destination cannot be renamed without
	// losing ownership or when it is not an ordinary file.
	InPlaceStreaming
)

// ChooseStrategy decides which write path a save to destPath should
// take. Atomic-rename is preferred whenever it is safe; in-place is
// required when the caller does not own the destination (rename
// would silently reassign ownership to the current process) or when
// the destination is not an ordinary renameable file.
func ChooseStrategy(fs fsys.Filesystem, destPath string) Strategy {
	info, err := fs.Stat(destPath)
	if err != nil {
		// Destination does not exist yet: a fresh file, atomic-rename
		// applies cleanly.
		return AtomicRename
	}
	if info.NonRenameable {
		return InPlaceStreaming
	}
	owner, err := fs.IsOwner(destPath)
	if err != nil || !owner {
		return InPlaceStreaming
	}
	return AtomicRename
}

// Config controls one Job's construction.
type Config struct {
	Filesystem Filesystem
	// ManifestDir is where in-place recovery manifests are written.
	ManifestDir string
	// RateLimiter throttles save I/O so a large save does not starve
	// interactive edits or the renderer for disk bandwidth. Nil means
	// unlimited.
	RateLimiter *rate.Limiter
	Logger      *slog.Logger
}

// Filesystem is a local alias to avoid importing fsys under a
// different name at every call site in this package.
type Filesystem = fsys.Filesystem

// Job drives one save's recipe to completion, one operation per
// Step call. It implements jobstep.Job so the caller's event loop can
// interleave it with rendering.
type Job struct {
	cfg      Config
	log      *slog.Logger
	recipe   Recipe
	destPath string
	strategy Strategy

	tempPath     string
	manifestPath string
	writer       fsys.Writer
	written      int64
	opIndex      int

	pastPointOfNoReturn bool
	canceled            bool
	done                 bool
	err                  error
}

// NewJob constructs a save Job for recipe, writing to destPath.
func NewJob(cfg Config, recipe Recipe, destPath string) *Job {
	return &Job{
		cfg:      cfg,
		log:      logging.Default(cfg.Logger).With("component", "save", "dest", destPath),
		recipe:   recipe,
		destPath: destPath,
		strategy: ChooseStrategy(cfg.Filesystem, destPath),
	}
}

// Strategy reports which write path this job chose.
func (j *Job) Strategy() Strategy { return j.strategy }

// Step executes the next unit of work: opening the destination on the
// first call, one recipe operation per subsequent call, and the
// final fsync/rename/cleanup on the last call.
func (j *Job) Step(ctx context.Context) (jobstep.Status, error) {
	if j.done {
		return jobstep.Done, nil
	}
	if j.canceled {
		return jobstep.Canceled, nil
	}
	if j.err != nil {
		return jobstep.Failed, j.err
	}

	if j.writer == nil {
		if err := j.begin(); err != nil {
			j.err = err
			return jobstep.Failed, err
		}
		return jobstep.Running, nil
	}

	if j.opIndex < len(j.recipe) {
		if err := j.applyOp(ctx, j.recipe[j.opIndex]); err != nil {
			j.err = err
			j.abort()
			return jobstep.Failed, err
		}
		j.opIndex++
		j.pastPointOfNoReturn = true
		return jobstep.Running, nil
	}

	if err := j.finish(); err != nil {
		j.err = err
		return jobstep.Failed, err
	}
	j.done = true
	return jobstep.Done, nil
}

// Cancel requests early termination. Per the copy-reads-before-
// truncate invariant, cancellation is refused once any recipe
// operation has been applied to the destination or temp file, and in
// the in-place strategy also once the destination is about to be
// truncated.
func (j *Job) Cancel() {
	if j.pastPointOfNoReturn || j.done {
		return
	}
	j.canceled = true
	j.abort()
}

// Progress reports fraction of recipe bytes written so far.
func (j *Job) Progress() float64 {
	total := j.recipe.Len()
	if total == 0 {
		return 1
	}
	return float64(j.written) / float64(total)
}

func (j *Job) begin() error {
	switch j.strategy {
	case AtomicRename:
		j.tempPath = j.destPath + ".piecebuf-tmp-" + randomSuffix()
		w, err := j.cfg.Filesystem.OpenWriter(j.tempPath)
		if err != nil {
			return err
		}
		j.writer = w
		return nil

	default: // InPlaceStreaming
		destInfo, statErr := j.cfg.Filesystem.Stat(j.destPath)

		// Copy-reads-before-truncate: materialise a full, stable copy
		// of the recipe's output into a side temp file before the
		// destination is touched, so any CopyFromFile(dest, ...) op
		// always reads from the side file, never the (soon to be
		// truncated) destination.
		j.tempPath = j.destPath + ".piecebuf-recover-" + randomSuffix()
		sideWriter, err := j.cfg.Filesystem.OpenWriter(j.tempPath)
		if err != nil {
			return err
		}
		hasher := xxhash.New()
		for _, op := range j.recipe {
			data, err := j.readOp(op)
			if err != nil {
				sideWriter.Close()
				j.cfg.Filesystem.Remove(j.tempPath)
				return err
			}
			if _, err := sideWriter.Write(data); err != nil {
				sideWriter.Close()
				j.cfg.Filesystem.Remove(j.tempPath)
				return err
			}
			hasher.Write(data)
		}
		if err := sideWriter.Sync(); err != nil {
			sideWriter.Close()
			return err
		}
		if err := sideWriter.Close(); err != nil {
			return err
		}

		var manifest Manifest
		manifest.DestPath = j.destPath
		manifest.TempPath = j.tempPath
		manifest.Length = j.recipe.Len()
		manifest.Checksum = hasher.Sum64()
		if statErr == nil {
			manifest.OwnerUID = destInfo.OwnerUID
			manifest.OwnerGID = destInfo.OwnerGID
			manifest.Mode = destInfo.Mode
		}
		writtenManifestPath, err := writeManifest(j.cfg.Filesystem, j.cfg.ManifestDir, manifest)
		if err != nil {
			return err
		}
		j.manifestPath = writtenManifestPath

		j.pastPointOfNoReturn = true
		if err := j.cfg.Filesystem.SetLen(j.destPath, 0); err != nil {
			return err
		}
		w, err := j.cfg.Filesystem.OpenAppender(j.destPath)
		if err != nil {
			return err
		}
		j.writer = w
		// Rewrite the recipe to stream from the side temp file rather
		// than re-reading the (now truncated) destination.
		j.recipe = recipeFromSideFile(j.tempPath, j.recipe)
		return nil
	}
}

func (j *Job) readOp(op Op) ([]byte, error) {
	switch op.Kind {
	case OpLiteral:
		return op.Literal, nil
	case OpCopyFromFile:
		return j.cfg.Filesystem.ReadRange(op.CopyPath, op.CopyStart, int(op.CopyLen))
	default:
		return nil, bufferr.Invariant("save: unknown recipe op kind")
	}
}

// recipeFromSideFile rewrites every op to read from sideTempPath
// instead of its original source, preserving total length and order.
// Used only by the in-place strategy, after the side file has
// already captured the recipe's full output.
func recipeFromSideFile(sideTempPath string, original Recipe) Recipe {
	out := make(Recipe, 0, len(original))
	var offset int64
	for _, op := range original {
		var length int64
		switch op.Kind {
		case OpLiteral:
			length = int64(len(op.Literal))
		case OpCopyFromFile:
			length = op.CopyLen
		}
		out = append(out, Op{Kind: OpCopyFromFile, CopyPath: sideTempPath, CopyStart: offset, CopyLen: length})
		offset += length
	}
	return out
}

func (j *Job) applyOp(ctx context.Context, op Op) error {
	if j.cfg.RateLimiter != nil {
		n := len(op.Literal)
		if op.Kind == OpCopyFromFile {
			n = int(op.CopyLen)
		}
		if err := j.cfg.RateLimiter.WaitN(ctx, n); err != nil {
			return err
		}
	}

	data, err := j.readOp(op)
	if err != nil {
		return err
	}
	n, err := j.writer.Write(data)
	j.written += int64(n)
	return err
}

func (j *Job) finish() error {
	if err := j.writer.Sync(); err != nil {
		return err
	}
	if err := j.writer.Close(); err != nil {
		return err
	}

	switch j.strategy {
	case AtomicRename:
		// Carry the destination's existing mode/ownership onto the
		// temp file before the rename, so a save never silently
		// reassigns a file's owner to the current process. A fresh
		// destination (no prior Stat) keeps the temp file's default
		// ownership.
		if info, err := j.cfg.Filesystem.Stat(j.destPath); err == nil {
			if err := j.cfg.Filesystem.Chown(j.tempPath, info.Mode, info.OwnerUID, info.OwnerGID); err != nil {
				j.cfg.Filesystem.Remove(j.tempPath)
				return err
			}
		}
		if err := j.cfg.Filesystem.Rename(j.tempPath, j.destPath); err != nil {
			j.cfg.Filesystem.Remove(j.tempPath)
			return err
		}
		return j.cfg.Filesystem.FsyncDir(j.destPath)

	default: // InPlaceStreaming
		if err := j.cfg.Filesystem.FsyncDir(j.destPath); err != nil {
			return err
		}
		if err := j.cfg.Filesystem.Remove(j.tempPath); err != nil {
			j.log.Warn("failed to remove recovery temp file", "error", err)
		}
		return j.cfg.Filesystem.Remove(j.manifestPath)
	}
}

func (j *Job) abort() {
	if j.writer != nil {
		j.writer.Close()
	}
	if j.tempPath != "" {
		j.cfg.Filesystem.Remove(j.tempPath)
	}
	if j.manifestPath != "" {
		j.cfg.Filesystem.Remove(j.manifestPath)
	}
}

// randomSuffix names a temp file or manifest uniquely, time-ordered
// so a directory listing sorts recovery manifests by creation order.
func randomSuffix() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
