package fsys

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Local implements Filesystem against the local disk.
type Local struct{}

// NewLocal returns a Filesystem backed by the local disk.
func NewLocal() Local { return Local{} }

func (Local) ReadRange(path string, offset int64, length int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, length)
	n, err := f.ReadAt(buf, offset)
	if err != nil && n < length {
		return nil, err
	}
	return buf[:n], nil
}

type localWriter struct{ f *os.File }

func (w localWriter) Write(p []byte) (int, error) { return w.f.Write(p) }
func (w localWriter) Sync() error                 { return w.f.Sync() }
func (w localWriter) Close() error                { return w.f.Close() }

func (Local) OpenWriter(path string) (Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return localWriter{f}, nil
}

func (Local) OpenAppender(path string) (Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return localWriter{f}, nil
}

func (Local) Rename(from, to string) error { return os.Rename(from, to) }

func (Local) SetLen(path string, length int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Truncate(length)
}

func (Local) Stat(path string) (Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	info := Info{
		Size:          fi.Size(),
		Mode:          uint32(fi.Mode().Perm()),
		ModTime:       fi.ModTime(),
		IsDir:         fi.IsDir(),
		NonRenameable: fi.Mode()&(os.ModeDevice|os.ModeNamedPipe|os.ModeSocket|os.ModeCharDevice) != 0,
	}
	if st, ok := fi.Sys().(*unix.Stat_t); ok {
		info.OwnerUID = st.Uid
		info.OwnerGID = st.Gid
	}
	return info, nil
}

func (l Local) IsOwner(path string) (bool, error) {
	info, err := l.Stat(path)
	if err != nil {
		return false, err
	}
	return info.OwnerUID == l.CurrentUID(), nil
}

func (Local) CurrentUID() uint32 { return uint32(unix.Getuid()) }

func (Local) SudoWrite(path string, bytes []byte, mode uint32, uid, gid uint32) error {
	if err := os.WriteFile(path, bytes, os.FileMode(mode)); err != nil {
		return err
	}
	return unix.Chown(path, int(uid), int(gid))
}

func (Local) Chown(path string, mode uint32, uid, gid uint32) error {
	if err := os.Chmod(path, os.FileMode(mode)); err != nil {
		return err
	}
	return unix.Chown(path, int(uid), int(gid))
}

func (Local) Mkdir(path string) error { return os.MkdirAll(path, 0o755) }

func (Local) Remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (Local) FsyncDir(path string) error {
	dir := filepath.Dir(path)
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
