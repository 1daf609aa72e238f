package fsys

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory is an in-memory Filesystem fake for tests: it lets save-
// pipeline and chunk-store tests exercise crash-recovery and
// copy-before-truncate scenarios without touching the real disk.
type Memory struct {
	mu    sync.Mutex
	files map[string]*memFile
	uid   uint32
}

type memFile struct {
	data    []byte
	mode    uint32
	uid, gid uint32
	modTime time.Time
}

// NewMemory returns an empty in-memory filesystem owned by uid.
func NewMemory(uid uint32) *Memory {
	return &Memory{files: make(map[string]*memFile), uid: uid}
}

// Seed installs path with the given content and ownership, as if it
// already existed on disk before the test began.
func (m *Memory) Seed(path string, data []byte, mode uint32, uid, gid uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &memFile{data: append([]byte(nil), data...), mode: mode, uid: uid, gid: gid, modTime: time.Now()}
}

// Contents returns a copy of path's current bytes, for assertions.
func (m *Memory) Contents(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), f.data...), true
}

func (m *Memory) ReadRange(path string, offset int64, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return nil, fmt.Errorf("memfs: %s: no such file", path)
	}
	if offset < 0 || offset > int64(len(f.data)) {
		return nil, fmt.Errorf("memfs: %s: offset %d out of range", path, offset)
	}
	end := offset + int64(length)
	if end > int64(len(f.data)) {
		end = int64(len(f.data))
	}
	out := make([]byte, end-offset)
	copy(out, f.data[offset:end])
	return out, nil
}

type memWriter struct {
	m    *Memory
	path string
	buf  bytes.Buffer
}

func (w *memWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }
func (w *memWriter) Sync() error                 { return nil }

func (w *memWriter) Close() error {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	existing := w.m.files[w.path]
	mode, uid, gid := uint32(0o644), w.m.uid, w.m.uid
	if existing != nil {
		mode, uid, gid = existing.mode, existing.uid, existing.gid
	}
	w.m.files[w.path] = &memFile{data: append([]byte(nil), w.buf.Bytes()...), mode: mode, uid: uid, gid: gid, modTime: time.Now()}
	return nil
}

func (m *Memory) OpenWriter(path string) (Writer, error) {
	return &memWriter{m: m, path: path}, nil
}

type memAppender struct {
	m    *Memory
	path string
}

func (a *memAppender) Write(p []byte) (int, error) {
	a.m.mu.Lock()
	defer a.m.mu.Unlock()
	f, ok := a.m.files[a.path]
	if !ok {
		f = &memFile{mode: 0o644, uid: a.m.uid, gid: a.m.uid}
		a.m.files[a.path] = f
	}
	f.data = append(f.data, p...)
	f.modTime = time.Now()
	return len(p), nil
}
func (a *memAppender) Sync() error { return nil }
func (a *memAppender) Close() error { return nil }

func (m *Memory) OpenAppender(path string) (Writer, error) {
	return &memAppender{m: m, path: path}, nil
}

func (m *Memory) Rename(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[from]
	if !ok {
		return fmt.Errorf("memfs: rename: %s: no such file", from)
	}
	m.files[to] = f
	delete(m.files, from)
	return nil
}

func (m *Memory) SetLen(path string, length int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return fmt.Errorf("memfs: %s: no such file", path)
	}
	switch {
	case int64(len(f.data)) > length:
		f.data = f.data[:length]
	case int64(len(f.data)) < length:
		f.data = append(f.data, make([]byte, length-int64(len(f.data)))...)
	}
	return nil
}

func (m *Memory) Stat(path string) (Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return Info{}, fmt.Errorf("memfs: %s: no such file", path)
	}
	return Info{Size: int64(len(f.data)), Mode: f.mode, OwnerUID: f.uid, OwnerGID: f.gid, ModTime: f.modTime}, nil
}

func (m *Memory) IsOwner(path string) (bool, error) {
	info, err := m.Stat(path)
	if err != nil {
		return false, err
	}
	return info.OwnerUID == m.uid, nil
}

func (m *Memory) CurrentUID() uint32 { return m.uid }

func (m *Memory) SudoWrite(path string, data []byte, mode uint32, uid, gid uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &memFile{data: append([]byte(nil), data...), mode: mode, uid: uid, gid: gid, modTime: time.Now()}
	return nil
}

func (m *Memory) Chown(path string, mode uint32, uid, gid uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return fmt.Errorf("memfs: %s: no such file", path)
	}
	f.mode, f.uid, f.gid = mode, uid, gid
	return nil
}

func (m *Memory) Mkdir(path string) error { return nil }

func (m *Memory) Remove(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, path)
	return nil
}

func (m *Memory) FsyncDir(path string) error { return nil }

// Paths returns every path currently present, sorted, for assertions
// that want to check no stray temp/manifest files were left behind.
func (m *Memory) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
