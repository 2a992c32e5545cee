package util

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// SafeCounter is safe to use concurrently.
type SafeCounter struct {
	value atomic.Int64
}

// NewSafeCounter creates a counter starting at initialValue.
func NewSafeCounter(initialValue int) *SafeCounter {
	c := &SafeCounter{}
	c.value.Store(int64(initialValue))
	return c
}

// Increment increments the counter's value and returns the new value.
func (c *SafeCounter) Increment() int {
	return int(c.value.Add(1))
}

// Add adds a delta to the counter's value and returns the new value.
func (c *SafeCounter) Add(delta int) int {
	return int(c.value.Add(int64(delta)))
}

// Value returns the current value of the counter.
func (c *SafeCounter) Value() int {
	return int(c.value.Load())
}

// Tally counts occurrences per label. It is safe to use concurrently.
type Tally struct {
	mu     sync.Mutex
	counts map[string]int
	total  SafeCounter
}

// NewTally creates an empty tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[string]int)}
}

// Inc records one occurrence of label and returns its new count.
func (t *Tally) Inc(label string) int {
	t.total.Increment()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counts[label]++
	return t.counts[label]
}

// Count returns the occurrences recorded for label.
func (t *Tally) Count(label string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[label]
}

// Total returns the occurrences recorded across all labels.
func (t *Tally) Total() int {
	return t.total.Value()
}

// Labels returns the recorded labels in sorted order.
func (t *Tally) Labels() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	labels := make([]string, 0, len(t.counts))
	for l := range t.counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// String renders the tally as "a=1 b=2", sorted by label.
func (t *Tally) String() string {
	var parts []string
	for _, l := range t.Labels() {
		parts = append(parts, fmt.Sprintf("%s=%d", l, t.Count(l)))
	}
	return strings.Join(parts, " ")
}
