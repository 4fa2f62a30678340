// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfds

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"code.hybscloud.com/lfds/internal/reclaim"
)

// Queue is an unbounded lock-free FIFO queue with elimination backoff.
//
// The optimistic path is the Michael-Scott queue (PODC 1996): a singly
// linked list that always holds a dummy node, with head pointing at the
// dummy and tail at the last node or lagging one behind it. Head, tail and
// every node's next link are AtomicStampedPtr cells; operations that find
// tail lagging help advance it before retrying.
//
// Elimination follows Moir, Nussbaum, Shalev and Shavit (SPAA 2005): an
// enqueue records the tail stamp it observed on entry and may hand its
// node directly to a dequeue only after the head stamp has caught up with
// that value, i.e. after every element enqueued before it was dequeued.
//
// A dequeue copies the value of the successor node before its CAS on head,
// so nodes are returned to the pool through a reclamation domain: a node
// retired by one goroutine is reused only after every operation that could
// have read it has finished.
//
// Ordering: operations completing on the CAS path are linearizable in FIFO
// order. Eliminated pairs are linearizable as an enqueue immediately
// followed by the dequeue of the same element. Every element is delivered
// exactly once.
type Queue[T any] struct {
	_          pad
	head       AtomicStampedPtr // Dummy node; stamp counts dequeues
	_          pad
	tail       AtomicStampedPtr // Last node; stamp counts links
	_          pad
	eliminated atomix.Int64 // Pairs matched in the elimination array
	contended  atomix.Int64 // Failed CAS on head, tail or a link
	_          pad
	pool       *nodePool[queueNode[T]]
	domain     *reclaim.Domain
	elim       *eliminationArray
	optimistic bool // Enqueue/Dequeue skip elimination
}

type queueNode[T any] struct {
	value T
	next  AtomicStampedPtr
	seen  atomix.Uint64 // Tail stamp observed by the enqueue that offers this node
}

// NewQueue creates a queue with default options.
func NewQueue[T any]() *Queue[T] {
	return BuildQueue[T](New(defaultCapacity))
}

func newQueue[T any](o *Options) *Queue[T] {
	q := &Queue[T]{
		pool:       newNodePool[queueNode[T]](o.capacity, o.limit),
		elim:       newEliminationArray(o.width, o.spins, o.attempts),
		optimistic: o.optimistic,
	}
	q.domain = reclaim.New(q.recycle)

	dummy, _, err := q.pool.alloc()
	if err != nil {
		panic("lfds: queue needs at least one node")
	}
	q.head.Store(MakeStamped(dummy, 0))
	q.tail.Store(MakeStamped(dummy, 0))
	return q
}

// Enqueue adds an element at the tail of the queue.
// The element is copied into a pool node.
// Returns ErrExhausted if the node pool limit is reached.
func (q *Queue[T]) Enqueue(elem *T) error {
	if q.optimistic {
		return q.OptimisticEnqueue(elem)
	}
	return q.EliminateEnqueue(elem)
}

// Dequeue removes and returns the element at the head of the queue.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *Queue[T]) Dequeue() (T, error) {
	if q.optimistic {
		return q.OptimisticDequeue()
	}
	return q.EliminateDequeue()
}

// OptimisticEnqueue enqueues on the CAS path only and never eliminates.
func (q *Queue[T]) OptimisticEnqueue(elem *T) error {
	h, err := q.node(elem)
	if err != nil {
		return err
	}
	g := q.domain.Acquire()
	defer g.Release()

	sw := spin.Wait{}
	for !q.enqueueAttempt(h) {
		sw.Once()
	}
	return nil
}

// OptimisticDequeue dequeues on the CAS path only and never eliminates.
// Returns (zero-value, ErrWouldBlock) if the queue is empty.
func (q *Queue[T]) OptimisticDequeue() (T, error) {
	g := q.domain.Acquire()
	defer g.Release()

	sw := spin.Wait{}
	for {
		elem, res := q.dequeueAttempt(g)
		switch res {
		case attemptSuccess:
			return elem, nil
		case attemptEmpty:
			return elem, ErrWouldBlock
		}
		sw.Once()
	}
}

// EliminateEnqueue alternates CAS attempts with elimination offers until
// one of them succeeds. An offer is made only once the queue has drained
// every element that was present when the call started.
func (q *Queue[T]) EliminateEnqueue(elem *T) error {
	h, err := q.node(elem)
	if err != nil {
		return err
	}
	g := q.domain.Acquire()
	defer g.Release()

	seen := q.linked()
	q.pool.at(h).seen.StoreRelaxed(seen)
	for {
		if q.enqueueAttempt(h) {
			return nil
		}
		if seen <= q.head.Load().Stamp && q.elim.offer(h) {
			return nil
		}
	}
}

// EliminateDequeue alternates CAS attempts with elimination probes.
// On an empty queue it makes one pass over the elimination array before
// returning (zero-value, ErrWouldBlock).
func (q *Queue[T]) EliminateDequeue() (T, error) {
	g := q.domain.Acquire()
	defer g.Release()

	for {
		elem, res := q.dequeueAttempt(g)
		switch res {
		case attemptSuccess:
			return elem, nil
		case attemptEmpty:
			if h, ok := q.elim.poll(q.acceptor()); ok {
				q.eliminated.Add(1)
				return q.take(h), nil
			}
			return elem, ErrWouldBlock
		}
		if h, ok := q.elim.take(q.acceptor()); ok {
			q.eliminated.Add(1)
			return q.take(h), nil
		}
	}
}

// ExchangeEnqueue bypasses head and tail and only offers elem to a
// concurrent dequeue through the elimination array.
// Returns ErrWouldBlock if no dequeue claimed the element within the
// bound, or if the queue still holds elements that must leave first; the
// queue is left unchanged.
func (q *Queue[T]) ExchangeEnqueue(elem *T) error {
	h, err := q.node(elem)
	if err != nil {
		return err
	}
	g := q.domain.Acquire()
	defer g.Release()

	seen := q.linked()
	q.pool.at(h).seen.StoreRelaxed(seen)
	if seen <= q.head.Load().Stamp && q.elim.offer(h) {
		return nil
	}
	q.drop(h)
	return ErrWouldBlock
}

// ExchangeDequeue bypasses head and tail and only tries to claim an
// element offered by a concurrent enqueue.
// Returns (zero-value, ErrWouldBlock) if no eligible offer was found
// within the bound.
func (q *Queue[T]) ExchangeDequeue() (T, error) {
	if h, ok := q.elim.probe(q.elim.spins, q.acceptor()); ok {
		q.eliminated.Add(1)
		return q.take(h), nil
	}
	var zero T
	return zero, ErrWouldBlock
}

// IsEmpty reports whether the dummy node had no successor at the moment
// it was read. The result may be stale by the time it is returned.
func (q *Queue[T]) IsEmpty() bool {
	g := q.domain.Acquire()
	defer g.Release()

	for {
		head := q.head.Load()
		next := q.pool.at(head.Ptr).next.Load()
		if head == q.head.Load() {
			return next.IsNil()
		}
	}
}

// Stats returns a snapshot of the queue's contention counters.
// Nodes includes the dummy node and nodes awaiting reclamation.
func (q *Queue[T]) Stats() Stats {
	return Stats{
		Eliminated: q.eliminated.Load(),
		Contended:  q.contended.Load(),
		Nodes:      q.pool.inUse(),
	}
}

func (q *Queue[T]) node(elem *T) (Handle, error) {
	h, n, err := q.pool.alloc()
	if err != nil {
		// Dequeued dummies may still wait on idle records.
		q.domain.Reclaim()
		h, n, err = q.pool.alloc()
	}
	if err != nil {
		return 0, err
	}
	n.value = *elem
	// Keep the link stamp increasing across reuse of the slot.
	n.next.Store(n.next.Load().Next(0))
	return h, nil
}

// enqueueAttempt makes one attempt to link h after the last node.
// Must run under a guard.
func (q *Queue[T]) enqueueAttempt(h Handle) bool {
	tail := q.tail.Load()
	last := q.pool.at(tail.Ptr)
	next := last.next.Load()
	if tail != q.tail.Load() {
		return false
	}
	if !next.IsNil() {
		// Tail is lagging: help the enqueue that linked next.
		q.tail.CompareAndSwap(tail, tail.Next(next.Ptr))
		return false
	}
	if !last.next.CompareExchangeWeak(&next, next.Next(h)) {
		q.contended.Add(1)
		return false
	}
	// Best effort: a failure means another goroutine already helped.
	q.tail.CompareAndSwap(tail, tail.Next(h))
	return true
}

// dequeueAttempt makes one attempt to unlink the first element.
// Must run under g.
func (q *Queue[T]) dequeueAttempt(g reclaim.Guard) (T, attemptResult) {
	var zero T
	head := q.head.Load()
	tail := q.tail.Load()
	next := q.pool.at(head.Ptr).next.Load()
	if head != q.head.Load() {
		return zero, attemptRetry
	}
	if head.Ptr == tail.Ptr {
		if next.IsNil() {
			return zero, attemptEmpty
		}
		q.tail.CompareAndSwap(tail, tail.Next(next.Ptr))
		return zero, attemptRetry
	}
	if next.IsNil() {
		// Inconsistent snapshot: head moved between the loads above.
		return zero, attemptRetry
	}
	// next cannot be retired before head moves past it, and head was
	// still the dummy after next was read.
	elem := q.pool.at(next.Ptr).value
	if !q.head.CompareAndSwap(head, head.Next(next.Ptr)) {
		q.contended.Add(1)
		return zero, attemptContended
	}
	g.Retire(uint64(head.Ptr))
	return elem, attemptSuccess
}

// linked returns an upper bound on the number of nodes linked so far.
// Tail lags the last node by at most one. Must run under a guard.
func (q *Queue[T]) linked() uint64 {
	tail := q.tail.Load()
	if !q.pool.at(tail.Ptr).next.Load().IsNil() {
		return tail.Stamp + 1
	}
	return tail.Stamp
}

// acceptor returns the eligibility check for eliminated dequeues: an offer
// qualifies once the head stamp seen now has reached the tail stamp its
// enqueue observed.
func (q *Queue[T]) acceptor() func(Handle) bool {
	head := q.head.Load().Stamp
	return func(h Handle) bool {
		return q.pool.at(h).seen.LoadAcquire() <= head
	}
}

// take moves the value out of a node claimed through elimination. The
// node was never linked, so it is released directly.
func (q *Queue[T]) take(h Handle) T {
	n := q.pool.at(h)
	elem := n.value
	q.drop(h)
	return elem
}

func (q *Queue[T]) drop(h Handle) {
	var zero T
	q.pool.at(h).value = zero
	q.pool.release(h)
}

// recycle is the reclamation domain's free callback.
func (q *Queue[T]) recycle(h uint64) {
	q.drop(Handle(h))
}

// Eliminator adapter.

func (q *Queue[T]) OptimisticPut(elem *T) error { return q.OptimisticEnqueue(elem) }
func (q *Queue[T]) OptimisticTake() (T, error)  { return q.OptimisticDequeue() }
func (q *Queue[T]) ExchangePut(elem *T) error   { return q.ExchangeEnqueue(elem) }
func (q *Queue[T]) ExchangeTake() (T, error)    { return q.ExchangeDequeue() }
