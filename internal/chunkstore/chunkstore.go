// Package chunkstore owns the immutable byte chunks referenced by
// piece-tree leaves: Added chunks (freshly inserted bytes), FileOwned
// chunks (bytes read from a file, eagerly or lazily), and Ephemeral
// chunks (save-pipeline scratch space never referenced by a committed
// tree).
//
// Residency tracking and eviction follow the same "resident set with
// recency tracking, eviction driven by a separate policy decision"
// split used by the chunk-manager/policy pairing this package is
// adapted from: github.com/hashicorp/golang-lru supplies the
// recency-ordered resident set, and internal/policy supplies the
// actual evict-or-keep decision, because an LRU cache's own built-in
// count-based eviction has no notion of "pinned for the duration of a
// save" and would happily evict a chunk the save pipeline is mid-read
// on.
package chunkstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"piecebuf/internal/bufferr"
	"piecebuf/internal/callgroup"
	"piecebuf/internal/docid"
	"piecebuf/internal/fsys"
	"piecebuf/internal/logging"
	"piecebuf/internal/policy"
)

// prefetchConcurrency bounds how many background Prefetch reads run at
// once, so speculative read-ahead cannot starve interactive reads of
// disk bandwidth. Resolve calls (including the line-index scan's) are
// not counted against it.
const prefetchConcurrency = 4

// Provenance records where a chunk's bytes came from.
type Provenance int

const (
	Added Provenance = iota
	FileOwned
	Ephemeral
)

func (p Provenance) String() string {
	switch p {
	case Added:
		return "added"
	case FileOwned:
		return "file-owned"
	case Ephemeral:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// chunk is the store's internal record for one chunk. The contents of
// a loaded bytes slice are never mutated; residency transitions set
// and clear the record's bytes field under the store's lock, so a
// slice already returned by Resolve stays valid after its chunk is
// evicted.
type chunk struct {
	id         docid.ChunkID
	provenance Provenance

	// bytes is nil for a lazy FileOwned chunk that has not yet been
	// loaded.
	bytes []byte

	// lineStarts holds the byte offset of every '\n' in bytes,
	// computed once when the chunk becomes resident.
	lineStarts []int

	// Backing file, for FileOwned chunks (resident or lazy). length is
	// fixed at registration time so a lazy chunk knows how many bytes
	// to read on first resolve, before bytes itself exists.
	path       string
	fileOffset int64
	length     int

	pinned bool
}

func (c *chunk) resident() bool { return c.bytes != nil }

func (c *chunk) newlineCountInRange(start, length int) int {
	lo, hi := start, start+length
	count := 0
	for _, pos := range c.lineStarts {
		if pos >= lo && pos < hi {
			count++
		}
	}
	return count
}

// Store owns every chunk for one buffer. Not safe for concurrent use
// from more than one buffer's logical thread, matching the
// single-threaded-per-document model the chunk store is embedded in;
// internal locking exists only to let a background line-index scan
// or save job call resolve() concurrently with the owning goroutine.
type Store struct {
	log *slog.Logger
	fs  fsys.Filesystem

	mu      sync.Mutex
	chunks  map[docid.ChunkID]*chunk
	resident *lru.Cache // docid.ChunkID -> struct{}, recency-ordered
	nextID  docid.Sequence
	accessSeq atomic.Uint64

	loadGroup callgroup.Group[docid.ChunkID]
	evictPolicy policy.EvictionPolicy

	prefetchGroup *errgroup.Group
	bgLimiter     *rate.Limiter

	// addedPool is the running arena that AppendAdded writes into, so
	// that many small inserts share one underlying allocation.
	addedPool []byte
}

// Config controls a Store's construction.
type Config struct {
	Filesystem fsys.Filesystem
	Logger     *slog.Logger
	EvictPolicy policy.EvictionPolicy

	// BackgroundLimiter throttles Prefetch reads so they do not starve
	// interactive edits or an in-flight save for disk bandwidth; Resolve
	// is not throttled. Nil means unlimited.
	BackgroundLimiter *rate.Limiter
}

// New constructs an empty chunk store.
func New(cfg Config) *Store {
	logger := logging.Default(cfg.Logger)
	if cfg.EvictPolicy == nil {
		cfg.EvictPolicy = policy.NeverEvict{}
	}
	// golang-lru requires size > 0; it is used purely as a recency
	// tracker here (capacity large enough never to trigger its own
	// eviction), so any positive number works.
	residentTracker, _ := lru.New(1 << 20)
	prefetchGroup := &errgroup.Group{}
	prefetchGroup.SetLimit(prefetchConcurrency)
	return &Store{
		log:           logger.With("component", "chunkstore"),
		fs:            cfg.Filesystem,
		chunks:        make(map[docid.ChunkID]*chunk),
		resident:      residentTracker,
		evictPolicy:   cfg.EvictPolicy,
		prefetchGroup: prefetchGroup,
		bgLimiter:     cfg.BackgroundLimiter,
	}
}

// AppendAdded appends bytes to the running Added pool and returns a
// chunk id covering exactly those bytes. Consecutive small inserts
// share one underlying arena for locality; callers needing a distinct
// id per insert still get one, because the returned id addresses the
// piece's (start, len) slice of the shared pool via a per-call chunk
// record, not the pool chunk itself.
func (s *Store) AppendAdded(bytes []byte) docid.ChunkID {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := len(s.addedPool)
	s.addedPool = append(s.addedPool, bytes...)

	id := docid.ChunkID(s.nextID.Next())
	c := &chunk{
		id:         id,
		provenance: Added,
		bytes:      s.addedPool[start : start+len(bytes)],
		lineStarts: lineStartsOf(bytes),
	}
	s.chunks[id] = c
	s.markResident(id)
	return id
}

// RegisterFileChunk creates a FileOwned chunk backed by path at
// [offset, offset+length). If lazy is false, bytes are read
// immediately.
func (s *Store) RegisterFileChunk(path string, offset int64, length int, lazy bool) (docid.ChunkID, error) {
	s.mu.Lock()
	id := docid.ChunkID(s.nextID.Next())
	c := &chunk{id: id, provenance: FileOwned, path: path, fileOffset: offset, length: length}
	s.chunks[id] = c
	s.mu.Unlock()

	if lazy {
		return id, nil
	}

	data, err := s.fs.ReadRange(path, offset, length)
	if err != nil {
		return id, bufferr.NewIoError(path, offset, err)
	}
	s.mu.Lock()
	c.bytes = data
	c.lineStarts = lineStartsOf(data)
	s.markResident(id)
	s.mu.Unlock()
	return id, nil
}

// Resolve blocks until id is resident, then returns the byte range
// [start, start+length). Concurrent resolves of the same lazy chunk
// are collapsed into a single disk read via the store's call group.
func (s *Store) Resolve(id docid.ChunkID, start, length int) ([]byte, error) {
	s.mu.Lock()
	c, ok := s.chunks[id]
	if !ok {
		s.mu.Unlock()
		return nil, bufferr.Invariant(fmt.Sprintf("resolve of unknown chunk %d", id))
	}
	if c.resident() {
		s.bumpAccess(id)
		s.mu.Unlock()
		return c.bytes[start : start+length], nil
	}
	s.mu.Unlock()

	if err := <-s.loadGroup.DoChan(id, func() error { return s.load(c) }); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.bumpAccess(id)
	return c.bytes[start : start+length], nil
}

// Prefetch requests residency for id without blocking the caller,
// running the load on a small bounded worker pool
// (prefetchConcurrency slots) so speculative read-ahead never competes
// unboundedly with interactive reads. When every slot is busy the
// request is dropped rather than queued. Failures are swallowed
// (best-effort by contract) but logged at Debug.
func (s *Store) Prefetch(id docid.ChunkID) {
	s.mu.Lock()
	c, ok := s.chunks[id]
	already := ok && c.resident()
	s.mu.Unlock()
	if !ok || already {
		return
	}
	started := s.prefetchGroup.TryGo(func() error {
		if s.bgLimiter != nil {
			if err := s.bgLimiter.WaitN(context.Background(), c.length); err != nil {
				return nil
			}
		}
		if err := <-s.loadGroup.DoChan(id, func() error { return s.load(c) }); err != nil {
			s.log.Debug("prefetch failed", "chunk", id, "error", err)
		}
		return nil
	})
	if !started {
		s.log.Debug("prefetch dropped: worker pool busy", "chunk", id)
	}
}

// NewlineCount returns the number of '\n' bytes in chunk[start:start+length].
// The chunk must already be resident; callers resolve first.
func (s *Store) NewlineCount(id docid.ChunkID, start, length int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	if !ok || !c.resident() {
		return 0
	}
	return c.newlineCountInRange(start, length)
}

// load reads a lazy FileOwned chunk's bytes and builds its line
// index, then runs the eviction policy to keep resident memory within
// its configured budget.
func (s *Store) load(c *chunk) error {
	data, err := s.fs.ReadRange(c.path, c.fileOffset, c.length)
	if err != nil {
		return bufferr.NewIoError(c.path, c.fileOffset, err)
	}

	s.mu.Lock()
	c.bytes = data
	c.lineStarts = lineStartsOf(data)
	s.markResident(c.id)
	s.mu.Unlock()

	s.runEviction()
	return nil
}

// ChunkInfo is the subset of a chunk's identity the save pipeline
// needs to decide between emitting a Literal or a CopyFromFile
// operation, without exposing the store's internal chunk record.
type ChunkInfo struct {
	Provenance Provenance
	Path       string
	FileOffset int64
	Length     int
}

// Info returns id's provenance and backing-file identity.
func (s *Store) Info(id docid.ChunkID) (ChunkInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	if !ok {
		return ChunkInfo{}, false
	}
	length := c.length
	if c.provenance != FileOwned {
		length = len(c.bytes)
	}
	return ChunkInfo{Provenance: c.provenance, Path: c.path, FileOffset: c.fileOffset, Length: length}, true
}

// Pin marks ids as pinned, preventing eviction until Unpin is called.
// The save pipeline pins every chunk referenced by the tree it is
// about to read from, for the duration of the save.
func (s *Store) Pin(ids []docid.ChunkID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			c.pinned = true
		}
	}
}

// Unpin clears the pin set by Pin.
func (s *Store) Unpin(ids []docid.ChunkID) {
	s.mu.Lock()
	for _, id := range ids {
		if c, ok := s.chunks[id]; ok {
			c.pinned = false
		}
	}
	s.mu.Unlock()
	s.runEviction()
}

func (s *Store) markResident(id docid.ChunkID) {
	s.resident.Add(id, struct{}{})
}

func (s *Store) bumpAccess(id docid.ChunkID) {
	s.resident.Get(id) // bumps recency in the LRU's internal order
}

// runEviction asks the configured policy which resident chunks to
// demote back to lazy, and carries out its verdict. Added and
// Ephemeral chunks are never offered up for eviction: there is no
// backing file to reload them from.
func (s *Store) runEviction() {
	s.mu.Lock()
	state := policy.StoreState{}
	residentChunks := make(map[docid.ChunkID]*chunk)
	for _, key := range s.resident.Keys() {
		id := key.(docid.ChunkID)
		c, ok := s.chunks[id]
		if !ok || !c.resident() || c.provenance != FileOwned {
			continue
		}
		residentChunks[id] = c
		seq := s.accessSeq.Add(1)
		state.Resident = append(state.Resident, policy.ResidentChunk{
			ID: id, Bytes: len(c.bytes), LastAccessSeq: seq, Pinned: c.pinned,
		})
		state.TotalBytes += len(c.bytes)
	}
	s.mu.Unlock()

	victims := s.evictPolicy.Evict(state)
	if len(victims) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range victims {
		c, ok := s.chunks[id]
		if !ok || c.pinned || c.provenance != FileOwned {
			continue
		}
		c.bytes = nil
		c.lineStarts = nil
		s.resident.Remove(id)
		s.log.Debug("evicted chunk", "chunk", id)
	}
}

func lineStartsOf(data []byte) []int {
	var out []int
	for i, b := range data {
		if b == '\n' {
			out = append(out, i)
		}
	}
	return out
}
