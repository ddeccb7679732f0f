package reconciler

import (
	"context"
	"sync"
	"time"
)

// requestKey identifies the resource a request is about. Requests with the
// same key are merged and never processed concurrently.
func requestKey(req ReconcileRequest) string {
	if req.Namespace == "" {
		return string(req.Type) + "/" + req.Name
	}
	return string(req.Type) + "/" + req.Namespace + "/" + req.Name
}

// mergeRequests folds two requests for the same key into one. The request
// with the higher Sequence supplies the body and attempt; the operations
// are combined with mergeOperations in event order.
func mergeRequests(a, b ReconcileRequest) ReconcileRequest {
	if b.Sequence < a.Sequence {
		a, b = b, a
	}
	b.Operation = mergeOperations(a.Operation, b.Operation)
	return b
}

// mergeOperations combines an earlier and a later operation on the same key.
//
//	Create then Update  -> Create
//	anything then Delete -> Delete
//	Delete then Create  -> Update (recreated; diff against the leftovers)
//	otherwise           -> the later operation
func mergeOperations(earlier, later ChangeOperation) ChangeOperation {
	switch {
	case earlier == "":
		return later
	case later == OperationDelete:
		return OperationDelete
	case earlier == OperationCreate:
		return OperationCreate
	case earlier == OperationDelete && later == OperationCreate:
		return OperationUpdate
	}
	return later
}

// keyedQueue is a FIFO of keys with at most one pending request per key.
// A key handed out by Get is active until Done; requests arriving for an
// active key are parked and enqueued again by Done.
type keyedQueue struct {
	mu   sync.Mutex
	cond *sync.Cond

	order   []string
	pending map[string]ReconcileRequest
	active  map[string]bool
	parked  map[string]ReconcileRequest

	closed bool
}

// NewQueue creates a new reconciliation queue.
func NewQueue() ReconcileQueue {
	q := &keyedQueue{
		pending: make(map[string]ReconcileRequest),
		active:  make(map[string]bool),
		parked:  make(map[string]ReconcileRequest),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *keyedQueue) Add(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	key := requestKey(req)
	switch {
	case q.active[key]:
		if prev, ok := q.parked[key]; ok {
			req = mergeRequests(prev, req)
		}
		q.parked[key] = req
	default:
		q.enqueueLocked(key, req)
	}
}

// enqueueLocked adds req under key, merging with a pending request.
func (q *keyedQueue) enqueueLocked(key string, req ReconcileRequest) {
	if prev, ok := q.pending[key]; ok {
		q.pending[key] = mergeRequests(prev, req)
		return
	}
	q.pending[key] = req
	q.order = append(q.order, key)
	q.cond.Signal()
}

// Get blocks until a request is available, ctx is done, or the queue is
// shut down.
func (q *keyedQueue) Get(ctx context.Context) (ReconcileRequest, bool) {
	stop := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	})
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.order) == 0 {
		if q.closed || ctx.Err() != nil {
			return ReconcileRequest{}, false
		}
		q.cond.Wait()
	}
	if ctx.Err() != nil {
		return ReconcileRequest{}, false
	}

	key := q.order[0]
	q.order = q.order[1:]
	req := q.pending[key]
	delete(q.pending, key)
	q.active[key] = true
	return req, true
}

func (q *keyedQueue) Done(req ReconcileRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := requestKey(req)
	delete(q.active, key)

	if next, ok := q.parked[key]; ok {
		delete(q.parked, key)
		if !q.closed {
			q.enqueueLocked(key, next)
		}
	}
}

func (q *keyedQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

func (q *keyedQueue) Shutdown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// delayedQueue adds timed re-adds on top of a ReconcileQueue, for retries.
type delayedQueue struct {
	ReconcileQueue

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewDelayedQueue creates a queue that supports delayed requeuing.
func NewDelayedQueue() *delayedQueue {
	return &delayedQueue{
		ReconcileQueue: NewQueue(),
		timers:         make(map[string]*time.Timer),
	}
}

// AddAfter adds req once delay has passed. A second AddAfter for the same
// key replaces the pending timer.
func (d *delayedQueue) AddAfter(req ReconcileRequest, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	key := requestKey(req)
	if t, ok := d.timers[key]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		d.mu.Lock()
		if d.closed || d.timers[key] != timer {
			d.mu.Unlock()
			return
		}
		delete(d.timers, key)
		d.mu.Unlock()

		d.ReconcileQueue.Add(req)
	})
	d.timers[key] = timer
}

// Shutdown cancels pending timers and shuts down the underlying queue.
func (d *delayedQueue) Shutdown() {
	d.mu.Lock()
	d.closed = true
	for key, t := range d.timers {
		t.Stop()
		delete(d.timers, key)
	}
	d.mu.Unlock()

	d.ReconcileQueue.Shutdown()
}
