// Package fsys defines the Filesystem capability the buffer core uses
// for all disk interaction, and provides a local-disk implementation,
// an S3-backed implementation, and an in-memory fake for tests.
//
// Routing every read and write through this interface — rather than
// calling os.* directly from chunkstore/save — is what lets the save
// pipeline's crash-recovery and copy-before-truncate invariants be
// exercised deterministically in tests, the same way the chunk
// manager this package's local implementation is adapted from
// routes all of its I/O through small, mockable reader/writer types.
package fsys

import "time"

// Info is the subset of file metadata the buffer core needs to make
// ownership and save-strategy decisions.
type Info struct {
	Size    int64
	Mode    uint32
	OwnerUID uint32
	OwnerGID uint32
	ModTime time.Time
	IsDir   bool

	// NonRenameable is true for files that cannot safely go through
	// the atomic-rename strategy: block devices, FIFOs, and other
	// non-regular files where a rename would not mean what the save
	// pipeline needs it to mean.
	NonRenameable bool
}

// Filesystem is the capability boundary between the buffer core and
// actual storage. Implementations may wrap the local filesystem, a
// remote object store, or an in-memory fake.
type Filesystem interface {
	// ReadRange returns up to length bytes starting at offset. The Local
	// implementation returns an error when the file ends before
	// offset+length; Memory and S3 return the shorter tail instead.
	ReadRange(path string, offset int64, length int) ([]byte, error)

	// OpenWriter opens path for writing from scratch (create/truncate),
	// for streaming a save recipe into a temp or destination file.
	OpenWriter(path string) (Writer, error)

	// OpenAppender opens path for append-only writing.
	OpenAppender(path string) (Writer, error)

	// Rename atomically replaces to with from, when both are on the
	// same filesystem. Used by the atomic-rename save strategy.
	Rename(from, to string) error

	// SetLen truncates or extends path to exactly length bytes.
	SetLen(path string, length int64) error

	Stat(path string) (Info, error)

	// IsOwner reports whether the current process owns path (so an
	// atomic rename would preserve the existing owner/permissions).
	IsOwner(path string) (bool, error)

	CurrentUID() uint32

	// SudoWrite writes bytes to path with an explicit owner and mode,
	// for the rare case a save must hand a file back to a different
	// owner than the running process. Local returns the chown error
	// when the process may not change ownership; S3 writes the object
	// and ignores uid, gid and mode. Its only caller, save.Recover,
	// returns any error as is.
	SudoWrite(path string, bytes []byte, mode uint32, uid, gid uint32) error

	// Chown sets path's mode and owner to match a prior Stat result,
	// without rewriting its contents. Used by the atomic-rename save
	// strategy to carry the destination's ownership and permissions
	// onto the temp file before the rename, so a save never silently
	// reassigns a file's owner to the current process.
	Chown(path string, mode uint32, uid, gid uint32) error

	// Mkdir ensures path exists as a directory, creating parents as
	// needed. Used for the recovery-manifest directory.
	Mkdir(path string) error

	// Remove deletes path. Removing a nonexistent path is not an error.
	Remove(path string) error

	// FsyncDir fsyncs the directory containing path, so a completed
	// rename or a deleted recovery manifest is durable across a crash.
	FsyncDir(path string) error
}

// Writer is a streaming destination with an explicit fsync and close,
// so save strategies can control exactly when data becomes durable.
type Writer interface {
	Write(p []byte) (int, error)
	Sync() error
	Close() error
}
