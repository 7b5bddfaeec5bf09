package dock

import "sync"

// queue is an unbounded FIFO of command ids. Safe for many producers and a
// single consumer; push never blocks.
type queue struct {
	mu   sync.Mutex
	ids  []uint32
	head int
}

func (q *queue) push(id uint32) {
	q.mu.Lock()
	q.ids = append(q.ids, id)
	q.mu.Unlock()
}

func (q *queue) pop() (uint32, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.ids) {
		return 0, false
	}
	id := q.ids[q.head]
	q.head++
	if q.head == len(q.ids) {
		q.ids = q.ids[:0]
		q.head = 0
	}
	return id, true
}

func (q *queue) drain() []uint32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.ids) {
		return nil
	}
	out := make([]uint32, len(q.ids)-q.head)
	copy(out, q.ids[q.head:])
	q.ids = q.ids[:0]
	q.head = 0
	return out
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ids) - q.head
}

// Receiver is the consumer half of a class channel. Exactly one exists per
// class and it belongs to that class's worker.
type Receiver struct {
	class Class
	q     *queue
}

func (r *Receiver) Class() Class { return r.class }

// TryNext pops the oldest pending id without blocking.
func (r *Receiver) TryNext() (uint32, bool) {
	return r.q.pop()
}

// Drain pops every pending id in submission order.
func (r *Receiver) Drain() []uint32 {
	return r.q.drain()
}

// Len reports the number of pending ids.
func (r *Receiver) Len() int {
	return r.q.len()
}
