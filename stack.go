// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfds

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Stack is an unbounded lock-free LIFO stack with elimination backoff.
//
// The optimistic path is a Treiber stack whose top is an AtomicStampedPtr:
// every successful push or pop bumps the stamp, so a CAS prepared against
// a node that was popped and reused in the meantime fails. When the CAS
// loses a race the operation tries to meet a complementary operation in
// the elimination array (Hendler, Shavit, Yerushalmi, SPAA 2004) and only
// returns to top if no partner shows up within the bound.
//
// Nodes live in a type-stable pool. Before its CAS a pop reads nothing
// but the atomic link of the top node, and it reads the value only after
// the CAS made it the node's sole owner, so popped nodes are released to
// the pool immediately.
//
// Ordering: operations that complete on the CAS path are linearizable in
// LIFO order. An eliminated push/pop pair is linearizable as a pair, as if
// the push was immediately followed by the pop.
type Stack[T any] struct {
	_          pad
	top        AtomicStampedPtr
	_          pad
	eliminated atomix.Int64 // Pairs matched in the elimination array
	contended  atomix.Int64 // Failed CAS on top
	_          pad
	pool       *nodePool[stackNode[T]]
	elim       *eliminationArray
	optimistic bool // Push/Pop skip elimination
}

type stackNode[T any] struct {
	value T
	next  atomix.Uint64 // Handle of the node below
}

// NewStack creates a stack with default options.
func NewStack[T any]() *Stack[T] {
	return BuildStack[T](New(defaultCapacity))
}

func newStack[T any](o *Options) *Stack[T] {
	return &Stack[T]{
		pool:       newNodePool[stackNode[T]](o.capacity, o.limit),
		elim:       newEliminationArray(o.width, o.spins, o.attempts),
		optimistic: o.optimistic,
	}
}

// Push adds an element to the top of the stack.
// The element is copied into a pool node.
// Returns ErrExhausted if the node pool limit is reached.
//
// Unless the stack was built with Optimistic, a push that loses the CAS
// on top tries to hand its element directly to a concurrent pop.
func (s *Stack[T]) Push(elem *T) error {
	if s.optimistic {
		return s.OptimisticPush(elem)
	}
	return s.EliminatePush(elem)
}

// Pop removes and returns the top element.
// Returns (zero-value, ErrWouldBlock) if the stack is empty.
//
// Unless the stack was built with Optimistic, a pop that loses the CAS
// on top tries to take an element from a concurrent push.
func (s *Stack[T]) Pop() (T, error) {
	if s.optimistic {
		return s.OptimisticPop()
	}
	return s.EliminatePop()
}

// OptimisticPush pushes on the CAS path only and never eliminates.
func (s *Stack[T]) OptimisticPush(elem *T) error {
	h, err := s.node(elem)
	if err != nil {
		return err
	}
	sw := spin.Wait{}
	for !s.pushAttempt(h) {
		sw.Once()
	}
	return nil
}

// OptimisticPop pops on the CAS path only and never eliminates.
// Returns (zero-value, ErrWouldBlock) if the stack is empty.
func (s *Stack[T]) OptimisticPop() (T, error) {
	sw := spin.Wait{}
	for {
		elem, res := s.popAttempt()
		switch res {
		case attemptSuccess:
			return elem, nil
		case attemptEmpty:
			return elem, ErrWouldBlock
		}
		sw.Once()
	}
}

// EliminatePush alternates CAS attempts on top with elimination offers
// until one of them succeeds.
func (s *Stack[T]) EliminatePush(elem *T) error {
	h, err := s.node(elem)
	if err != nil {
		return err
	}
	for {
		if s.pushAttempt(h) {
			return nil
		}
		if s.elim.offer(h) {
			return nil
		}
	}
}

// EliminatePop alternates CAS attempts on top with elimination probes.
// On an empty stack it makes one pass over the elimination array before
// returning (zero-value, ErrWouldBlock).
func (s *Stack[T]) EliminatePop() (T, error) {
	for {
		elem, res := s.popAttempt()
		switch res {
		case attemptSuccess:
			return elem, nil
		case attemptEmpty:
			if h, ok := s.elim.poll(nil); ok {
				s.eliminated.Add(1)
				return s.take(h), nil
			}
			return elem, ErrWouldBlock
		}
		if h, ok := s.elim.take(nil); ok {
			s.eliminated.Add(1)
			return s.take(h), nil
		}
	}
}

// ExchangePush bypasses top and only offers elem to a concurrent pop
// through the elimination array.
// Returns ErrWouldBlock if no pop claimed the element within the bound;
// the stack is left unchanged.
func (s *Stack[T]) ExchangePush(elem *T) error {
	h, err := s.node(elem)
	if err != nil {
		return err
	}
	if s.elim.offer(h) {
		return nil
	}
	s.drop(h)
	return ErrWouldBlock
}

// ExchangePop bypasses top and only tries to claim an element offered by
// a concurrent push.
// Returns (zero-value, ErrWouldBlock) if no offer was found within the bound.
func (s *Stack[T]) ExchangePop() (T, error) {
	if h, ok := s.elim.probe(s.elim.spins, nil); ok {
		s.eliminated.Add(1)
		return s.take(h), nil
	}
	var zero T
	return zero, ErrWouldBlock
}

// IsEmpty reports whether the stack held no element at the moment top
// was read. The result may be stale by the time it is returned.
func (s *Stack[T]) IsEmpty() bool {
	return s.top.Load().IsNil()
}

// Stats returns a snapshot of the stack's contention counters.
func (s *Stack[T]) Stats() Stats {
	return Stats{
		Eliminated: s.eliminated.Load(),
		Contended:  s.contended.Load(),
		Nodes:      s.pool.inUse(),
	}
}

func (s *Stack[T]) node(elem *T) (Handle, error) {
	h, n, err := s.pool.alloc()
	if err != nil {
		return 0, err
	}
	n.value = *elem
	return h, nil
}

func (s *Stack[T]) pushAttempt(h Handle) bool {
	top := s.top.Load()
	s.pool.at(h).next.StoreRelaxed(uint64(top.Ptr))
	if s.top.CompareAndSwap(top, top.Next(h)) {
		return true
	}
	s.contended.Add(1)
	return false
}

func (s *Stack[T]) popAttempt() (T, attemptResult) {
	var zero T
	top := s.top.Load()
	if top.IsNil() {
		return zero, attemptEmpty
	}
	// top.Ptr may already be popped and reused; the link read is then
	// garbage but the stamp makes the CAS below fail.
	next := Handle(s.pool.at(top.Ptr).next.LoadAcquire())
	if !s.top.CompareAndSwap(top, top.Next(next)) {
		s.contended.Add(1)
		return zero, attemptContended
	}
	return s.take(top.Ptr), attemptSuccess
}

// take moves the value out of an owned node and releases the node.
func (s *Stack[T]) take(h Handle) T {
	n := s.pool.at(h)
	elem := n.value
	s.drop(h)
	return elem
}

func (s *Stack[T]) drop(h Handle) {
	var zero T
	s.pool.at(h).value = zero
	s.pool.release(h)
}

// Eliminator adapter.

func (s *Stack[T]) OptimisticPut(elem *T) error { return s.OptimisticPush(elem) }
func (s *Stack[T]) OptimisticTake() (T, error)  { return s.OptimisticPop() }
func (s *Stack[T]) ExchangePut(elem *T) error   { return s.ExchangePush(elem) }
func (s *Stack[T]) ExchangeTake() (T, error)    { return s.ExchangePop() }
