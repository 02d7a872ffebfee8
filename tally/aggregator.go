// Package tally counts detection records by structural shape.
package tally

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"filetally/detect"
)

const shardCount = 16

// Entry is one distinct record shape and how many inputs produced it.
type Entry struct {
	Record detect.Record `json:"record"`
	Count  int64         `json:"count"`
}

type bucket struct {
	record detect.Record
	count  int64
}

type shard struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// Aggregator is a concurrency-safe multiset of detection records keyed by
// detect.Key. The zero value is not usable; call NewAggregator.
type Aggregator struct {
	shards [shardCount]shard
}

func NewAggregator() *Aggregator {
	a := &Aggregator{}
	for i := range a.shards {
		a.shards[i].buckets = make(map[string]*bucket)
	}
	return a
}

// Add counts r once. A nil record counts as Unknown.
func (a *Aggregator) Add(r detect.Record) {
	if r == nil {
		r = detect.Unknown{}
	}
	key := detect.Key(r)
	s := &a.shards[xxhash.Sum64String(key)%shardCount]

	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.buckets[key]; ok {
		b.count++
		return
	}
	s.buckets[key] = &bucket{record: r, count: 1}
}

// Summarize returns a snapshot sorted by descending count, ties broken by
// record kind. The final key comparison carries no meaning of its own; it
// only keeps equal-count records of one kind in a reproducible order.
func (a *Aggregator) Summarize() []Entry {
	type keyed struct {
		key string
		Entry
	}

	// All shards are held together so the snapshot is consistent.
	for i := range a.shards {
		a.shards[i].mu.Lock()
	}
	var snap []keyed
	for i := range a.shards {
		for k, b := range a.shards[i].buckets {
			snap = append(snap, keyed{key: k, Entry: Entry{Record: b.record, Count: b.count}})
		}
	}
	for i := range a.shards {
		a.shards[i].mu.Unlock()
	}

	sort.Slice(snap, func(i, j int) bool {
		if snap[i].Count != snap[j].Count {
			return snap[i].Count > snap[j].Count
		}
		if ki, kj := snap[i].Record.Kind(), snap[j].Record.Kind(); ki != kj {
			return ki < kj
		}
		return snap[i].key < snap[j].key
	})

	out := make([]Entry, len(snap))
	for i := range snap {
		out[i] = snap[i].Entry
	}
	return out
}

// Total returns the number of records added so far.
func (a *Aggregator) Total() int64 {
	var total int64
	for i := range a.shards {
		s := &a.shards[i]
		s.mu.Lock()
		for _, b := range s.buckets {
			total += b.count
		}
		s.mu.Unlock()
	}
	return total
}
