package save

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	"piecebuf/internal/bufferr"
	"piecebuf/internal/fsys"
)

// Manifest is the durable record of an in-place save in flight,
// written before streaming begins so a later process invocation can
// restore the destination after a crash mid-stream.
type Manifest struct {
	DestPath string `json:"dest_path"`
	TempPath string `json:"temp_path"`
	OwnerUID uint32 `json:"owner_uid"`
	OwnerGID uint32 `json:"owner_gid"`
	Mode     uint32 `json:"mode"`

	// Checksum is the xxhash64 of the temp file's contents at
	// manifest-write time, an optional integrity check recommended
	// (but not required) for recovery to verify the temp file wasn't
	// itself truncated by the same crash.
	Checksum uint64 `json:"checksum"`
	Length   int64  `json:"length"`
}

// manifestPath returns the path a manifest is written to within dir:
// one file per in-flight save, named with a fresh uuid so concurrent
// saves to different destinations never collide.
func manifestPath(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("piecebuf-save-%s.json", randomSuffix()))
}

func writeManifest(fs fsys.Filesystem, dir string, m Manifest) (string, error) {
	if err := fs.Mkdir(dir); err != nil {
		return "", err
	}
	path := manifestPath(dir)

	data, err := json.Marshal(m)
	if err != nil {
		return "", bufferr.Invariant("save: marshal recovery manifest: " + err.Error())
	}

	w, err := fs.OpenWriter(path)
	if err != nil {
		return "", err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Sync(); err != nil {
		w.Close()
		return "", err
	}
	return path, w.Close()
}

func checksumOf(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// ReadManifest loads and parses a recovery manifest from path.
func ReadManifest(fs fsys.Filesystem, path string) (Manifest, error) {
	var m Manifest
	info, err := fs.Stat(path)
	if err != nil {
		return m, err
	}
	data, err := fs.ReadRange(path, 0, int(info.Size))
	if err != nil {
		return m, err
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, bufferr.Invariant("save: parse recovery manifest: " + err.Error())
	}
	return m, nil
}

// Recover restores m.DestPath from m.TempPath and reapplies ownership
// and mode, then deletes the manifest and temp file. Called at editor
// startup for any manifest discovered in the recovery directory.
func Recover(fs fsys.Filesystem, manifestPath string, m Manifest) error {
	tempInfo, err := fs.Stat(m.TempPath)
	if err != nil {
		return fmt.Errorf("save: recovery temp file missing: %w", err)
	}
	if m.Checksum != 0 {
		data, err := fs.ReadRange(m.TempPath, 0, int(tempInfo.Size))
		if err != nil {
			return err
		}
		if checksumOf(data) != m.Checksum {
			return bufferr.Invariant("save: recovery temp file checksum mismatch, refusing to restore")
		}
	}

	tempData, err := fs.ReadRange(m.TempPath, 0, int(tempInfo.Size))
	if err != nil {
		return err
	}
	if err := fs.SudoWrite(m.DestPath, tempData, m.Mode, m.OwnerUID, m.OwnerGID); err != nil {
		return err
	}
	if err := fs.FsyncDir(m.DestPath); err != nil {
		return err
	}
	if err := fs.Remove(m.TempPath); err != nil {
		return err
	}
	return fs.Remove(manifestPath)
}
