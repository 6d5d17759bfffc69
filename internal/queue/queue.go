// Package queue holds pending scan work together with the set of keys that
// were ever admitted. Both live under one mutex so the dedup check and the
// push are a single step.
package queue

import "sync"

type Keyed interface {
	Key() string
}

type Queue[T Keyed] struct {
	mu      sync.Mutex
	items   []T
	head    int
	visited map[string]struct{}
}

func New[T Keyed]() *Queue[T] {
	return &Queue[T]{
		visited: make(map[string]struct{}),
	}
}

// Enqueue admits item unless its key was seen before. It reports whether the
// item was admitted.
func (q *Queue[T]) Enqueue(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.admit(item)
}

// EnqueueAll admits a batch under one lock and returns how many were new.
func (q *Queue[T]) EnqueueAll(items []T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	admitted := 0
	for _, item := range items {
		if q.admit(item) {
			admitted++
		}
	}
	return admitted
}

func (q *Queue[T]) admit(item T) bool {
	key := item.Key()
	if _, seen := q.visited[key]; seen {
		return false
	}
	q.visited[key] = struct{}{}
	q.items = append(q.items, item)
	return true
}

func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if q.head == len(q.items) {
		return zero, false
	}

	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head > 1024 && q.head*2 >= len(q.items) {
		q.items = append(q.items[:0:0], q.items[q.head:]...)
		q.head = 0
	}
	return item, true
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *Queue[T]) Seen(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.visited[key]
	return ok
}

func (q *Queue[T]) VisitedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.visited)
}
