// Package policy defines pure decision functions for chunk residency:
// given a snapshot of the chunk store's current state, which resident
// chunks should be evicted back to lazy (unloaded) form.
//
// Policies are pure: no IO, no locks, no mutation, no global state.
// They are called by the chunk store after every resolve() that makes
// a chunk resident, with a fresh immutable snapshot; the store applies
// whatever eviction set they return.
package policy

import (
	"sort"

	"piecebuf/internal/docid"
)

// ResidentChunk is an immutable snapshot of one resident chunk's
// state, enough for an eviction policy to decide on without touching
// the chunk store itself.
type ResidentChunk struct {
	ID docid.ChunkID

	// Bytes is the chunk's resident size in memory.
	Bytes int

	// LastAccessSeq ranks chunks by recency of access: the chunk store
	// numbers its resident chunks from least to most recently accessed
	// each time it builds a StoreState. Higher is more recent.
	LastAccessSeq uint64

	// Pinned chunks are never evicted, regardless of policy: a save in
	// progress pins every chunk it reads to guarantee the copy-before-
	// truncate invariant holds even under memory pressure.
	Pinned bool
}

// StoreState is an immutable snapshot of the chunk store's residency
// state at decision time.
type StoreState struct {
	// Resident holds every currently-resident chunk, in arbitrary order.
	Resident []ResidentChunk

	// TotalBytes is the sum of Resident[i].Bytes.
	TotalBytes int
}

// EvictionPolicy decides which resident chunks to evict.
type EvictionPolicy interface {
	// Evict returns the ids of chunks that should be demoted to lazy.
	// Pinned chunks must never appear in the result; implementations
	// may assume the caller filters them, but well-behaved policies
	// skip them directly so State.TotalBytes-based budgeting is not
	// thrown off by chunks that can't actually be evicted.
	Evict(state StoreState) []docid.ChunkID
}

// EvictionPolicyFunc adapts an ordinary function to EvictionPolicy.
type EvictionPolicyFunc func(state StoreState) []docid.ChunkID

func (f EvictionPolicyFunc) Evict(state StoreState) []docid.ChunkID {
	return f(state)
}

// Composite applies sub-policies in order and unions their results,
// so a size cap and an LRU count cap can both be in force.
type Composite struct {
	policies []EvictionPolicy
}

// NewComposite builds a policy evicting the union of what each
// sub-policy would evict.
func NewComposite(policies ...EvictionPolicy) *Composite {
	return &Composite{policies: policies}
}

func (c *Composite) Evict(state StoreState) []docid.ChunkID {
	seen := make(map[docid.ChunkID]struct{})
	var result []docid.ChunkID
	for _, p := range c.policies {
		for _, id := range p.Evict(state) {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				result = append(result, id)
			}
		}
	}
	return result
}

// MemoryBudget evicts the least-recently-accessed unpinned chunks
// until resident bytes fall at or below maxBytes.
type MemoryBudget struct {
	maxBytes int
}

// NewMemoryBudget builds a policy that keeps total resident bytes
// under maxBytes by evicting oldest-accessed chunks first.
func NewMemoryBudget(maxBytes int) *MemoryBudget {
	return &MemoryBudget{maxBytes: maxBytes}
}

func (p *MemoryBudget) Evict(state StoreState) []docid.ChunkID {
	if p.maxBytes <= 0 || state.TotalBytes <= p.maxBytes {
		return nil
	}

	candidates := make([]ResidentChunk, 0, len(state.Resident))
	for _, c := range state.Resident {
		if !c.Pinned {
			candidates = append(candidates, c)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].LastAccessSeq < candidates[j].LastAccessSeq
	})

	over := state.TotalBytes - p.maxBytes
	var result []docid.ChunkID
	for _, c := range candidates {
		if over <= 0 {
			break
		}
		result = append(result, c.ID)
		over -= c.Bytes
	}
	return result
}

// NeverEvict keeps every resident chunk resident. Useful for tests
// and for small documents where eviction only adds overhead.
type NeverEvict struct{}

func (NeverEvict) Evict(StoreState) []docid.ChunkID { return nil }
