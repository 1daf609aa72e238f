// Package markers tracks named byte positions (markers) that must
// stay meaningful as the underlying buffer is spliced: cursor
// positions, selection bounds, fold ranges, and overlay anchors.
//
// Positions are kept in a github.com/google/btree ordered tree keyed
// by (position, id) so that Shift only has to touch markers whose
// position actually moves — everything strictly before the splice
// range is untouched and never visited — rather than walking every
// live marker on every edit, the same "order a sorted index by the
// thing you need a range scan over" idea used by the teacher's
// token/attribute indexers.
package markers

import (
	"sync"

	"github.com/google/btree"

	"piecebuf/internal/docid"
)

// Affinity controls how a marker sitting exactly on a splice boundary
// is adjusted; see Shift.
type Affinity int

const (
	// Left affinity pins the marker to the left edge of an insertion
	// at its position, and to the start of a deletion that consumed it.
	Left Affinity = iota
	// Right affinity rides the marker past an insertion at its
	// position, and to the end of a deletion's replacement text.
	Right
)

type entry struct {
	position int
	id       docid.MarkerID
}

func less(a, b entry) bool {
	if a.position != b.position {
		return a.position < b.position
	}
	return a.id < b.id
}

// state is the mutable per-marker record.
type state struct {
	position int
	affinity Affinity
}

// Index is a marker index for one buffer. Not safe for concurrent
// mutation from more than one goroutine at once without external
// synchronization beyond what's needed to match the single-threaded-
// per-document model the buffer core as a whole follows; the internal
// mutex exists only so a renderer goroutine can call Position
// concurrently with an edit on the owning goroutine.
type Index struct {
	mu      sync.Mutex
	tree    *btree.BTreeG[entry]
	byID    map[docid.MarkerID]state
	nextID  docid.Sequence
}

// New returns an empty marker index.
func New() *Index {
	return &Index{
		tree: btree.NewG(32, less),
		byID: make(map[docid.MarkerID]state),
	}
}

// Create registers a new marker at position with the given affinity
// and returns its id.
func (idx *Index) Create(position int, affinity Affinity) docid.MarkerID {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	id := docid.MarkerID(idx.nextID.Next())
	idx.byID[id] = state{position: position, affinity: affinity}
	idx.tree.ReplaceOrInsert(entry{position: position, id: id})
	return id
}

// Delete removes a marker. Deleting an unknown id is a no-op.
func (idx *Index) Delete(id docid.MarkerID) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	st, ok := idx.byID[id]
	if !ok {
		return
	}
	idx.tree.Delete(entry{position: st.position, id: id})
	delete(idx.byID, id)
}

// Position returns id's current byte position and whether it still
// exists.
func (idx *Index) Position(id docid.MarkerID) (int, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	st, ok := idx.byID[id]
	return st.position, ok
}

// Affinity returns id's affinity and whether it still exists.
func (idx *Index) Affinity(id docid.MarkerID) (Affinity, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	st, ok := idx.byID[id]
	return st.affinity, ok
}

// Shift adjusts every marker for a splice that replaced bytes[s:e]
// with newLen bytes, per the affinity rules:
//
//   - p < s: unchanged.
//   - p > e: p + delta, where delta = newLen - (e - s).
//   - p == s: right affinity -> s + newLen; left affinity -> s.
//   - p == e, e > s: right affinity -> s + newLen; left affinity -> s.
//   - s < p < e: right affinity -> s + newLen; left affinity -> s.
func (idx *Index) Shift(s, e, newLen int) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	delta := newLen - (e - s)

	// Collect affected entries first: mutating idx.tree while
	// ascending it is unsafe, since a reinsertion can land anywhere.
	var affected []entry
	idx.tree.AscendRange(entry{position: s, id: 0}, entry{position: 1 << 62, id: 0}, func(en entry) bool {
		affected = append(affected, en)
		return true
	})

	for _, en := range affected {
		st := idx.byID[en.id]
		var newPos int
		switch {
		case en.position > e:
			newPos = en.position + delta
		default:
			// s <= en.position <= e: covers p == s, s < p < e, and
			// p == e, all of which resolve the same way.
			if st.affinity == Right {
				newPos = s + newLen
			} else {
				newPos = s
			}
		}

		if newPos == en.position {
			continue
		}
		idx.tree.Delete(en)
		idx.tree.ReplaceOrInsert(entry{position: newPos, id: en.id})
		st.position = newPos
		idx.byID[en.id] = st
	}
}

// Len reports the number of live markers.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return len(idx.byID)
}
