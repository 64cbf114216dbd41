package statsd

import (
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/getmockd/mockd-statsd/internal/matching"
)

// series is the running value of one name+type+tag-set combination.
type series struct {
	name    string
	typ     MetricType
	tags    []string
	value   float64
	members map[string]struct{}
}

func (s *series) merge(r Record) {
	switch r.Type {
	case Counter, Timer:
		s.value += r.Value
	case Gauge:
		if r.Delta {
			s.value += r.Value
		} else {
			s.value = r.Value
		}
	case Histogram, Distribution:
		s.value = r.Value
	case Set:
		if s.members == nil {
			s.members = make(map[string]struct{})
		}
		s.members[r.Raw] = struct{}{}
		if first := s.sortedMembers(); len(first) > 0 {
			v, _ := strconv.ParseFloat(first[0], 64)
			s.value = v
		}
	}
}

func (s *series) sortedMembers() []string {
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := strconv.ParseFloat(out[i], 64)
		b, errB := strconv.ParseFloat(out[j], 64)
		if errA == nil && errB == nil && a != b {
			return a < b
		}
		return out[i] < out[j]
	})
	return out
}

// aggregates folds records into per-series values, the way a StatsD
// backend would between flushes.
type aggregates struct {
	mu      sync.RWMutex
	byKey   map[string]*series
	ordered []*series
}

func newAggregates() *aggregates {
	return &aggregates{byKey: make(map[string]*series)}
}

func seriesKey(r Record) string {
	tags := r.TagStrings()
	slices.Sort(tags)
	return r.Name + "|" + string(r.Type) + "|" + strings.Join(tags, ",")
}

func (a *aggregates) add(recs []Record) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range recs {
		key := seriesKey(r)
		s, ok := a.byKey[key]
		if !ok {
			s = &series{name: r.Name, typ: r.Type, tags: r.TagStrings()}
			a.byKey[key] = s
			a.ordered = append(a.ordered, s)
		}
		s.merge(r)
	}
}

// find returns the first series, in creation order, named name whose tags
// include every tag in want.
func (a *aggregates) find(name string, want []string) *series {
	for _, s := range a.ordered {
		if s.name == name && matching.ContainsTags(s.tags, want) {
			return s
		}
	}
	return nil
}

func (a *aggregates) value(name string, want []string) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.find(name, want)
	if s == nil {
		return 0, false
	}
	return s.value, true
}

func (a *aggregates) setContents(name string, want []string) ([]string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, s := range a.ordered {
		if s.typ == Set && s.name == name && matching.ContainsTags(s.tags, want) {
			return s.sortedMembers(), true
		}
	}
	return nil, false
}

func (a *aggregates) reset() {
	a.mu.Lock()
	a.byKey = make(map[string]*series)
	a.ordered = nil
	a.mu.Unlock()
}
