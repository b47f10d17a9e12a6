package journal

import (
	"sync"
	"time"

	"github.com/google/btree"
)

type Outcome string

const (
	OutcomeRelayed   Outcome = "RELAYED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeRejected  Outcome = "REJECTED"
	OutcomeCancelled Outcome = "CANCELLED"
)

// Entry records one handled alert for the lifetime of the process.
type Entry struct {
	ID         string
	Instrument string
	Side       string
	Price      string
	Outcome    Outcome
	Attempts   int
	Detail     string
	Timestamp  int64 // unix timestamp in milliseconds

	seq uint64
}

type entryItem struct {
	entry *Entry
}

// Less orders entries newest-first so Recent can ascend from the top.
func (i *entryItem) Less(than btree.Item) bool {
	other := than.(*entryItem)
	return i.entry.seq > other.entry.seq
}

// Journal is a bounded in-memory record of handled alerts, indexed by
// ID and ordered by arrival.
type Journal struct {
	capacity int
	seq      uint64
	tree     *btree.BTree
	byID     map[string]*Entry
	mu       sync.RWMutex
}

func New(capacity int) *Journal {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Journal{
		capacity: capacity,
		tree:     btree.New(32),
		byID:     make(map[string]*Entry),
	}
}

func (j *Journal) Add(e Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	e.seq = j.seq
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}

	j.tree.ReplaceOrInsert(&entryItem{entry: &e})
	j.byID[e.ID] = &e

	// edge case: evict the oldest entry once capacity is exceeded
	if j.tree.Len() > j.capacity {
		if oldest := j.tree.Max(); oldest != nil {
			evicted := oldest.(*entryItem).entry
			j.tree.Delete(oldest)
			delete(j.byID, evicted.ID)
		}
	}
}

func (j *Journal) Get(id string) (Entry, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	e, ok := j.byID[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if limit <= 0 || limit > j.tree.Len() {
		limit = j.tree.Len()
	}

	entries := make([]Entry, 0, limit)
	j.tree.Ascend(func(item btree.Item) bool {
		entries = append(entries, *item.(*entryItem).entry)
		return len(entries) < limit
	})
	return entries
}

func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.tree.Len()
}
