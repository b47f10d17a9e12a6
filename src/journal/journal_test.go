package journal

import (
	"fmt"
	"testing"
)

func TestAddAndGet(t *testing.T) {
	j := New(10)

	j.Add(Entry{ID: "a1", Instrument: "AAPL", Side: "B", Price: "100.5", Outcome: OutcomeRelayed, Attempts: 1})

	e, ok := j.Get("a1")
	if !ok {
		t.Fatalf("Expected entry to be found")
	}
	if e.Instrument != "AAPL" || e.Outcome != OutcomeRelayed {
		t.Errorf("Unexpected entry: %+v", e)
	}
	if e.Timestamp == 0 {
		t.Errorf("Expected timestamp to be assigned")
	}

	if _, ok := j.Get("missing"); ok {
		t.Errorf("Expected miss for unknown id")
	}
}

func TestRecentNewestFirst(t *testing.T) {
	j := New(10)

	for i := 0; i < 5; i++ {
		j.Add(Entry{ID: fmt.Sprintf("id-%d", i), Instrument: "ES"})
	}

	recent := j.Recent(3)
	if len(recent) != 3 {
		t.Fatalf("Expected 3 entries, got: %d", len(recent))
	}

	expected := []string{"id-4", "id-3", "id-2"}
	for i, e := range recent {
		if e.ID != expected[i] {
			t.Errorf("Position %d: expected %s, got %s", i, expected[i], e.ID)
		}
	}
}

func TestRecentLimitLargerThanJournal(t *testing.T) {
	j := New(10)
	j.Add(Entry{ID: "only"})

	recent := j.Recent(100)
	if len(recent) != 1 {
		t.Errorf("Expected 1 entry, got: %d", len(recent))
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	j := New(3)

	for i := 0; i < 5; i++ {
		j.Add(Entry{ID: fmt.Sprintf("id-%d", i)})
	}

	if j.Len() != 3 {
		t.Fatalf("Expected journal capped at 3, got: %d", j.Len())
	}

	// edge case: the oldest entries must be gone, by index and by id
	for _, evicted := range []string{"id-0", "id-1"} {
		if _, ok := j.Get(evicted); ok {
			t.Errorf("Expected %s to be evicted", evicted)
		}
	}
	for _, kept := range []string{"id-2", "id-3", "id-4"} {
		if _, ok := j.Get(kept); !ok {
			t.Errorf("Expected %s to be retained", kept)
		}
	}
}

func TestConcurrentAdds(t *testing.T) {
	j := New(1000)

	done := make(chan struct{})
	for w := 0; w < 4; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 100; i++ {
				j.Add(Entry{ID: fmt.Sprintf("w%d-%d", w, i)})
				j.Recent(10)
			}
		}(w)
	}
	for w := 0; w < 4; w++ {
		<-done
	}

	if j.Len() != 400 {
		t.Errorf("Expected 400 entries, got: %d", j.Len())
	}
}
