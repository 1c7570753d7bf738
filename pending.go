package flagrelay

import (
	"bytes"
	"sync"
)

// terminalFunc receives an operation's accumulated bytes and terminal error.
// Exactly one of the two carries meaning: data on success, err on failure.
type terminalFunc func(data []byte, err error)

// pendingOperation is one in-flight exchange: its terminal callback plus the
// buffer accumulating incremental body chunks.
type pendingOperation struct {
	terminal terminalFunc
	buf      bytes.Buffer
}

// pendingTable tracks in-flight operations by identifier. Registration,
// buffer appends and removal are all serialized under one mutex: an append
// after removal or a double removal would corrupt delivery guarantees, so
// every event for an unknown identifier is a deliberate no-op.
type pendingTable struct {
	mu   sync.Mutex
	next uint64
	ops  map[uint64]*pendingOperation
}

func newPendingTable() *pendingTable {
	return &pendingTable{ops: make(map[uint64]*pendingOperation)}
}

// register assigns a fresh identifier and records the operation. Identifiers
// are never reused while their entry is live.
func (t *pendingTable) register(fn terminalFunc) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	id := t.next
	t.ops[id] = &pendingOperation{terminal: fn}
	return id
}

// appendData accumulates an incremental chunk for id. Unknown identifiers
// are ignored.
func (t *pendingTable) appendData(id uint64, chunk []byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok {
		return false
	}
	op.buf.Write(chunk)
	return true
}

// complete removes id and fires its terminal callback exactly once, with the
// accumulated bytes on success or err on failure. Completing an identifier
// that is not registered (already completed, or never registered) is a no-op.
func (t *pendingTable) complete(id uint64, err error) bool {
	t.mu.Lock()
	op, ok := t.ops[id]
	if ok {
		delete(t.ops, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	if err != nil {
		op.terminal(nil, err)
	} else {
		op.terminal(op.buf.Bytes(), nil)
	}
	return true
}

// size reports the number of live operations.
func (t *pendingTable) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.ops)
}

// completionQueue delivers callbacks serially on one dedicated goroutine, so
// callers never need their own synchronization to read results.
type completionQueue struct {
	mu     sync.Mutex
	ch     chan func()
	closed bool
	done   chan struct{}
}

func newCompletionQueue() *completionQueue {
	q := &completionQueue{
		ch:   make(chan func(), 64),
		done: make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *completionQueue) run() {
	defer close(q.done)
	for fn := range q.ch {
		fn()
	}
}

// deliver enqueues fn for execution on the completion goroutine. Deliveries
// after Close are dropped.
func (q *completionQueue) deliver(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	// Sending under the lock keeps deliver and close mutually exclusive;
	// the consumer goroutine drains without taking the lock.
	q.ch <- fn
}

// close stops the queue after draining already-enqueued callbacks.
func (q *completionQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
	<-q.done
}
