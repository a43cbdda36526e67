package pipeline

import (
	"errors"
	"sync"

	"github.com/eapache/queue"
)

// DefaultQueueCapacity bounds how many ticks the reader may run ahead of
// the stream.
const DefaultQueueCapacity = 64

// ErrQueueClosed is returned by Put after the queue was closed or aborted.
var ErrQueueClosed = errors.New("tick queue closed")

// Tick is one time step of stream input: a row per input buffer.
type Tick struct {
	Index  int
	Inputs map[string][]float32
}

// TickQueue hands ticks from the input reader to the stream loop. Put
// blocks while the queue is full and Get while it is empty.
type TickQueue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	q        *queue.Queue
	capacity int
	closed   bool
	err      error
}

// NewTickQueue creates a queue holding at most capacity ticks.
func NewTickQueue(capacity int) *TickQueue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	tq := &TickQueue{q: queue.New(), capacity: capacity}
	tq.notEmpty = sync.NewCond(&tq.mu)
	tq.notFull = sync.NewCond(&tq.mu)
	return tq
}

// Put appends t, waiting for room.
func (tq *TickQueue) Put(t *Tick) error {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	for !tq.closed && tq.q.Length() >= tq.capacity {
		tq.notFull.Wait()
	}
	if tq.closed {
		return ErrQueueClosed
	}
	tq.q.Add(t)
	tq.notEmpty.Signal()
	return nil
}

// Get removes the oldest tick. It returns false once the queue is closed
// and drained.
func (tq *TickQueue) Get() (*Tick, bool) {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	for tq.q.Length() == 0 && !tq.closed {
		tq.notEmpty.Wait()
	}
	if tq.q.Length() == 0 {
		return nil, false
	}
	t := tq.q.Remove().(*Tick)
	tq.notFull.Signal()
	return t, true
}

// Close marks the end of input. Queued ticks can still be read. A non-nil
// err is reported by Err. Only the first call has an effect.
func (tq *TickQueue) Close(err error) {
	tq.mu.Lock()
	defer tq.mu.Unlock()

	if tq.closed {
		return
	}
	tq.closed = true
	tq.err = err
	tq.notEmpty.Broadcast()
	tq.notFull.Broadcast()
}

// Abort closes the queue with err and discards queued ticks.
func (tq *TickQueue) Abort(err error) {
	tq.Close(err)

	tq.mu.Lock()
	defer tq.mu.Unlock()
	for tq.q.Length() > 0 {
		tq.q.Remove()
	}
}

// Err returns the error the queue was closed with.
func (tq *TickQueue) Err() error {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return tq.err
}

// Len returns the number of queued ticks.
func (tq *TickQueue) Len() int {
	tq.mu.Lock()
	defer tq.mu.Unlock()
	return tq.q.Length()
}
