package docid

import "testing"

func TestSequenceNeverReusesOrStartsAtZero(t *testing.T) {
	var seq Sequence
	first := seq.Next()
	if first == 0 {
		t.Fatalf("Next() = 0, want a nonzero first value")
	}
	second := seq.Next()
	if second == first {
		t.Fatalf("Next() returned %d twice in a row", first)
	}
	if second <= first {
		t.Fatalf("Next() = %d, want strictly greater than %d", second, first)
	}
}

func TestSequenceConcurrentUseProducesDistinctValues(t *testing.T) {
	var seq Sequence
	const n = 100
	seen := make(map[uint64]bool, n)
	done := make(chan uint64, n)
	for i := 0; i < n; i++ {
		go func() { done <- seq.Next() }()
	}
	for i := 0; i < n; i++ {
		v := <-done
		if seen[v] {
			t.Fatalf("Next() produced duplicate value %d", v)
		}
		seen[v] = true
	}
}
