package statsd

import (
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind misses records; the store itself never drops.
const subscriberBuffer = 256

// Store is an append-only, insertion-ordered log of decoded records.
// Only the server's receive loop appends; any goroutine may read.
type Store struct {
	mu      sync.RWMutex
	records []Record
	seq     uint64
	changed chan struct{}
	subs    map[int]chan Record
	nextSub int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		changed: make(chan struct{}),
		subs:    make(map[int]chan Record),
	}
}

// append assigns sequence numbers and makes records visible to readers
// before it returns. Waiters on Changed are woken once per call.
func (s *Store) append(recs ...Record) {
	if len(recs) == 0 {
		return
	}

	s.mu.Lock()
	for i := range recs {
		s.seq++
		recs[i].Seq = s.seq
		s.records = append(s.records, recs[i].clone())
	}
	close(s.changed)
	s.changed = make(chan struct{})
	for _, ch := range s.subs {
		for _, r := range recs {
			select {
			case ch <- r.clone():
			default:
			}
		}
	}
	s.mu.Unlock()
}

// Snapshot returns a copy of every record in arrival order. Callers own
// the returned records, tags included.
func (s *Store) Snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.clone()
	}
	return out
}

// Find returns the records that satisfy m, in arrival order.
func (s *Store) Find(m *Matcher) []Record {
	return s.Filter(m.Matches)
}

// Filter returns copies of the records for which keep returns true, in
// arrival order. keep sees the stored record and must not modify it.
func (s *Store) Filter(keep func(Record) bool) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if keep(r) {
			out = append(out, r.clone())
		}
	}
	return out
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Changed returns a channel that is closed on the next append or Reset.
func (s *Store) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}

// Subscribe returns a feed of records appended from now on, and a function
// that ends the subscription and closes the feed.
func (s *Store) Subscribe() (<-chan Record, func()) {
	ch := make(chan Record, subscriberBuffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Reset discards every record. Sequence numbers keep increasing.
func (s *Store) Reset() {
	s.mu.Lock()
	s.records = nil
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}
