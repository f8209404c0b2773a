package speech

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of fragments with one producer and one consumer
// per turn. Close marks the end of the turn; fragments pushed before it are
// still delivered.
type Queue struct {
	mu           sync.Mutex
	fragments    []Fragment
	closed       bool
	updateSignal chan struct{}
}

func NewQueue() *Queue {
	return &Queue{updateSignal: make(chan struct{}, 1)}
}

// Push appends a fragment. It returns false once the queue is closed.
func (q *Queue) Push(fragment Fragment) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.fragments = append(q.fragments, fragment)
	q.mu.Unlock()
	q.signalUpdate()
	return true
}

// Close ends the turn. Further pushes are ignored.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signalUpdate()
}

// Discard drops every pending fragment and returns how many were dropped.
func (q *Queue) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.fragments)
	q.fragments = nil
	return n
}

// Next blocks until a fragment is available. It returns false when the queue
// is closed and drained, or when ctx is done.
func (q *Queue) Next(ctx context.Context) (Fragment, bool) {
	for {
		q.mu.Lock()
		if len(q.fragments) > 0 {
			fragment := q.fragments[0]
			q.fragments[0] = Fragment{}
			q.fragments = q.fragments[1:]
			q.mu.Unlock()
			return fragment, true
		}
		if q.closed {
			q.mu.Unlock()
			return Fragment{}, false
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Fragment{}, false
		case <-q.updateSignal:
		}
	}
}

func (q *Queue) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
