package tally

import (
	"sort"
	"sync"
)

// LabelCount is one label and its occurrences.
type LabelCount struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

// Labels counts free-form string labels such as MIME hints for files no
// probe recognized.
type Labels struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewLabels() *Labels {
	return &Labels{counts: make(map[string]int64)}
}

func (l *Labels) Add(label string) {
	l.mu.Lock()
	l.counts[label]++
	l.mu.Unlock()
}

// Snapshot returns the labels by descending count, then by name.
func (l *Labels) Snapshot() []LabelCount {
	l.mu.Lock()
	out := make([]LabelCount, 0, len(l.counts))
	for k, v := range l.counts {
		out = append(out, LabelCount{Label: k, Count: v})
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
