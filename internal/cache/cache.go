// Package cache provides topic-based invalidation for cached collection
// views. Writers call Invalidate(topic) after mutations; readers compare
// Generation(topic) tokens to decide whether a cached collection is stale.
package cache

import (
	"sync"
)

// Well-known topics.
const (
	TopicNotes = "notes"
	TopicTags  = "tags"
)

// Listener is notified when a topic is invalidated.
type Listener func(topic string)

// Invalidator tracks a generation counter per topic.
type Invalidator struct {
	mu          sync.RWMutex
	generations map[string]uint64
	listeners   []Listener
}

// NewInvalidator creates an empty Invalidator.
func NewInvalidator() *Invalidator {
	return &Invalidator{
		generations: make(map[string]uint64),
	}
}

// Invalidate bumps the generation for a topic and notifies listeners.
func (i *Invalidator) Invalidate(topic string) {
	i.mu.Lock()
	i.generations[topic]++
	listeners := make([]Listener, len(i.listeners))
	copy(listeners, i.listeners)
	i.mu.Unlock()

	for _, l := range listeners {
		l(topic)
	}
}

// Generation returns the current generation token for a topic. A cached
// collection fetched at generation g is stale once Generation(topic) > g.
func (i *Invalidator) Generation(topic string) uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.generations[topic]
}

// Subscribe registers a listener for invalidation events.
func (i *Invalidator) Subscribe(l Listener) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.listeners = append(i.listeners, l)
}
