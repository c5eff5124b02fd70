package renderer

import "sync"

// pollResult is the outcome of a non-blocking receive.
type pollResult int

const (
	pollItem pollResult = iota
	pollEmpty
	pollClosed
)

// commandQueue is an unbounded FIFO with many producers and one consumer.
// Sends never block. After close, send fails and receivers drain the
// remaining items before observing the closed state.
type commandQueue struct {
	mu     sync.Mutex
	items  []command
	closed bool

	// notify holds at most one pending wake-up for the consumer.
	notify chan struct{}
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		notify: make(chan struct{}, 1),
	}
}

func (q *commandQueue) send(c command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errQueueClosed
	}
	q.items = append(q.items, c)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *commandQueue) tryRecv() (command, pollResult) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) > 0 {
		c := q.items[0]
		q.items[0] = nil
		q.items = q.items[1:]
		return c, pollItem
	}
	if q.closed {
		return nil, pollClosed
	}
	return nil, pollEmpty
}

// recv blocks until an item is available. It returns false once the queue is
// closed and empty.
func (q *commandQueue) recv() (command, bool) {
	for {
		c, res := q.tryRecv()
		switch res {
		case pollItem:
			return c, true
		case pollClosed:
			return nil, false
		}
		<-q.notify
	}
}

func (q *commandQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.closed {
		q.closed = true
		close(q.notify)
	}
}
