package stream

import (
	"slices"
	"sync"
)

// Registry is the set of topics a client is subscribed to. It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	topics map[Topic]struct{}
}

func NewRegistry() *Registry {
	return &Registry{topics: make(map[Topic]struct{})}
}

// Add inserts topic and reports whether it was not present before.
func (r *Registry) Add(topic Topic) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics[topic]; ok {
		return false
	}
	r.topics[topic] = struct{}{}
	return true
}

// Remove deletes topic and reports whether it was present.
func (r *Registry) Remove(topic Topic) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.topics[topic]; !ok {
		return false
	}
	delete(r.topics, topic)
	return true
}

func (r *Registry) Contains(topic Topic) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.topics[topic]
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}

// All returns the topics in lexical order.
func (r *Registry) All() []Topic {
	r.mu.RLock()
	out := make([]Topic, 0, len(r.topics))
	for t := range r.topics {
		out = append(out, t)
	}
	r.mu.RUnlock()

	slices.Sort(out)
	return out
}
