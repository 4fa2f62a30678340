// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfds

// LIFO is the interface of a last-in first-out container.
//
// Push and Pop never block. Pop returns ErrWouldBlock when the container
// holds no element.
//
// Example:
//
//	var s lfds.LIFO[int] = lfds.NewStack[int]()
//
//	v := 42
//	if err := s.Push(&v); err != nil {
//	    // Node pool exhausted
//	}
//
//	elem, err := s.Pop()
//	if err == nil {
//	    fmt.Println(elem)
//	}
type LIFO[T any] interface {
	// Push adds an element on top.
	// The element is copied; the original can be modified after Push returns.
	// Returns ErrExhausted if no node could be allocated.
	Push(elem *T) error

	// Pop removes and returns the top element.
	// Returns (zero-value, ErrWouldBlock) if the container is empty.
	Pop() (T, error)

	// IsEmpty is a best-effort snapshot, not consistent with concurrent
	// mutators.
	IsEmpty() bool
}

// FIFO is the interface of a first-in first-out container.
//
// The interface intentionally excludes length because accurate counts in
// lock-free algorithms require expensive cross-core synchronization.
type FIFO[T any] interface {
	Producer[T]
	Consumer[T]

	// IsEmpty is a best-effort snapshot, not consistent with concurrent
	// mutators.
	IsEmpty() bool
}

// Producer is the interface for enqueueing elements.
type Producer[T any] interface {
	// Enqueue adds an element at the tail (non-blocking).
	// The element is copied into a node owned by the queue.
	// Returns ErrExhausted if no node could be allocated.
	Enqueue(elem *T) error
}

// Consumer is the interface for dequeueing elements.
type Consumer[T any] interface {
	// Dequeue removes and returns the element at the head (non-blocking).
	// Returns (zero-value, ErrWouldBlock) if the queue is empty.
	Dequeue() (T, error)
}

// Eliminator exposes the individual paths of an elimination-backoff
// container so each can be exercised on its own. Both Stack and Queue
// implement it: Put/Take map to Push/Pop and Enqueue/Dequeue.
type Eliminator[T any] interface {
	// OptimisticPut and OptimisticTake use the CAS path only.
	OptimisticPut(elem *T) error
	OptimisticTake() (T, error)

	// ExchangePut and ExchangeTake use the elimination array only and
	// return ErrWouldBlock when no partner shows up within the bound.
	ExchangePut(elem *T) error
	ExchangeTake() (T, error)

	Stats() Stats
}

// Stats is a snapshot of a container's contention counters.
type Stats struct {
	// Eliminated counts push/pop (enqueue/dequeue) pairs matched in the
	// elimination array without touching the shared structure.
	Eliminated int64 `json:"eliminated"`

	// Contended counts compare-and-swap attempts lost to another goroutine.
	Contended int64 `json:"contended"`

	// Nodes is the number of pool nodes in use, including nodes awaiting
	// reclamation and, for queues, the dummy node.
	Nodes int `json:"nodes"`
}

// attemptResult is the outcome of a single CAS-path attempt.
type attemptResult uint8

const (
	attemptSuccess attemptResult = iota
	attemptContended
	attemptEmpty
	attemptRetry
)
