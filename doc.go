// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package lfds provides unbounded lock-free containers with elimination
// backoff.
//
//   - Stack: Treiber stack (LIFO)
//   - Queue: Michael-Scott queue (FIFO)
//
// Both are multi-producer multi-consumer. Their shared words (top, head,
// tail and every node link) are [AtomicStampedPtr] cells: a node handle
// and a version stamp updated together with one 128-bit compare-and-swap,
// so a CAS prepared against a node that was removed and reused fails
// instead of corrupting the structure (ABA).
//
// # Quick Start
//
// Direct constructors:
//
//	s := lfds.NewStack[Event]()
//	q := lfds.NewQueue[*Request]()
//
// Builder API:
//
//	s := lfds.BuildStack[Event](lfds.New(1024).Width(16))
//	q := lfds.BuildQueue[Event](lfds.New(1024).Limit(1 << 20))
//	q := lfds.BuildQueue[Event](lfds.New(64).Optimistic())   // no elimination
//
// # Basic Usage
//
//	v := Event{ID: 1}
//	if err := s.Push(&v); err != nil {
//	    // ErrExhausted: node pool limit reached
//	}
//
//	ev, err := s.Pop()
//	if lfds.IsWouldBlock(err) {
//	    // Stack is empty
//	}
//
// # Entry Points
//
// Every operation exists in four flavours:
//
//	Push / Enqueue                   CAS, then elimination on contention
//	OptimisticPush / ...Enqueue      CAS only
//	EliminatePush / ...Enqueue       alternate CAS and elimination until done
//	ExchangePush / ...Enqueue        elimination only, ErrWouldBlock if unmatched
//
// Push and Enqueue behave like the Eliminate variants unless the container
// was built with [Builder.Optimistic]. Pop and Dequeue on an empty container
// make one pass over the elimination array and then return ErrWouldBlock;
// they never wait for an element.
//
// # Elimination
//
// A producer that loses the CAS on the shared word publishes its node in a
// random slot of a small exchange array and spins for a bounded time. A
// consumer that loses its CAS probes random slots and claims a published
// node with a CAS on the slot. A matched pair completes without touching
// the structure: the producer's operation is linearized immediately before
// the consumer's.
//
// For the queue an offer is visible to a consumer only after every element
// enqueued before the producer started has been dequeued, which keeps
// eliminated pairs consistent with FIFO order.
//
// # Memory
//
// Nodes live in a segmented, type-stable pool owned by the container and
// are addressed by [Handle]. Segments are never released while the
// container lives, so a stale handle always resolves to valid memory. The
// stack reuses a node as soon as it is popped. The queue reads a node's
// value before its CAS on head and therefore returns nodes to the pool
// through a version-based reclamation domain: a dequeued node is reused
// only after every operation that started before its removal has finished.
//
// # Error Handling
//
//	ErrWouldBlock   empty container, or no elimination partner (Exchange*)
//	ErrExhausted    node pool limit reached
//
// ErrWouldBlock is [iox.ErrWouldBlock]; use [IsWouldBlock] and [IsSemantic]
// to classify it. Callers polling a container retry with [iox.Backoff]:
//
//	backoff := iox.Backoff{}
//	for {
//	    v, err := q.Dequeue()
//	    if err == nil {
//	        backoff.Reset()
//	        handle(v)
//	        continue
//	    }
//	    backoff.Wait()
//	}
//
// # Progress
//
// Every operation is lock-free: some goroutine completes in a finite number
// of steps. No operation is wait-free. Elimination waits are bounded by the
// configured spin count.
//
// # Race Detection
//
// Node values are published through atomix operations that the race
// detector does not model. Tests that move values between goroutines are
// skipped when [RaceEnabled] is true.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives with
// explicit memory ordering, [code.hybscloud.com/spin] for CPU pause
// instructions and [code.hybscloud.com/iox] for semantic errors.
package lfds
