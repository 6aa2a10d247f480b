package notify

import (
	"context"
	"sync"
)

// MemoryNotifier fans job wake-ups out to in-process subscribers.
type MemoryNotifier struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(jobID string)
}

// NewMemoryNotifier creates an in-process notifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{subs: make(map[int]func(string))}
}

// Notify calls every subscriber synchronously. Subscribers must not block.
func (n *MemoryNotifier) Notify(_ context.Context, jobID string) error {
	n.mu.RLock()
	fns := make([]func(string), 0, len(n.subs))
	for _, fn := range n.subs {
		fns = append(fns, fn)
	}
	n.mu.RUnlock()

	for _, fn := range fns {
		fn(jobID)
	}
	return nil
}

// Subscribe registers fn until the returned cancel func is called.
func (n *MemoryNotifier) Subscribe(fn func(jobID string)) (func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.subs, id)
	}, nil
}
