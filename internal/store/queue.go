package store

import (
	"slices"
	"sync"
)

// Queue is a FIFO of track ids awaiting background prefetch.
//
// Ids already waiting are ignored on insert.
type Queue struct {
	mu  sync.Mutex
	ids []string
}

// Push appends ids that are not already queued and returns how many were added.
func (q *Queue) Push(ids ...string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	added := 0
	for _, id := range ids {
		if id == "" || slices.Contains(q.ids, id) {
			continue
		}
		q.ids = append(q.ids, id)
		added++
	}
	return added
}

// Pop removes and returns the oldest id.
func (q *Queue) Pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ids) == 0 {
		return "", false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids)
}

func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = nil
}
