package profile

import (
	"sort"
	"sync"
)

// MemoryFeed is an in-process Feed. Publishers call Publish when a
// profile row changes; the payment/admin tooling uses this to nudge a
// running cache.
type MemoryFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]func(Profile)
}

// NewMemoryFeed creates an empty feed.
func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[int]func(Profile))}
}

func (f *MemoryFeed) Subscribe(userID string, fn func(Profile)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs[userID] == nil {
		f.subs[userID] = make(map[int]func(Profile))
	}
	id := f.nextID
	f.nextID++
	f.subs[userID][id] = fn

	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[userID], id)
	}
}

// Publish delivers p to every subscriber for the user. Delivery is
// synchronous and in registration order; subscriber ids are assigned
// monotonically, so ordering by id is ordering by registration.
func (f *MemoryFeed) Publish(userID string, p Profile) {
	f.mu.Lock()
	ids := make([]int, 0, len(f.subs[userID]))
	for id := range f.subs[userID] {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Profile), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, f.subs[userID][id])
	}
	f.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}
