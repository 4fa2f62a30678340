// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfds

import "runtime"

const (
	// defaultCapacity is the node count of the first pool segment.
	defaultCapacity = 64

	// maxWidth caps the default elimination array width.
	maxWidth = 64

	// defaultSpins is how many spin rounds an offer waits for a partner.
	defaultSpins = 128
)

// Options configures container creation.
type Options struct {
	// Node pool
	capacity int // First segment size (rounds up to next power of 2)
	limit    int // Max nodes, 0 = grow until the handle space is exhausted

	// Elimination array
	width    int // Number of exchange slots
	spins    int // Producer wait rounds before withdrawing an offer
	attempts int // Consumer probes per elimination attempt

	// Push/Pop and Enqueue/Dequeue use the CAS path only
	optimistic bool
}

// Builder creates stacks and queues with fluent configuration.
//
// Example:
//
//	// Default stack with elimination backoff
//	s := lfds.BuildStack[Event](lfds.New(1024))
//
//	// Queue limited to 1M nodes, wide elimination array
//	q := lfds.BuildQueue[*Request](lfds.New(4096).Limit(1 << 20).Width(32))
//
//	// Plain Treiber stack, no elimination
//	s := lfds.BuildStack[int](lfds.New(64).Optimistic())
type Builder struct {
	opts Options
}

// New creates a builder whose node pool starts with capacity nodes.
//
// Capacity rounds up to the next power of 2. The pool grows by doubling
// segments beyond it unless Limit is set.
//
// The elimination array defaults to one slot per P (GOMAXPROCS), at most
// 64, with 128 spin rounds per offer and one probe per slot per attempt.
//
// Panics if capacity < 2.
func New(capacity int) *Builder {
	if capacity < 2 {
		panic("lfds: capacity must be >= 2")
	}
	width := min(max(runtime.GOMAXPROCS(0), 1), maxWidth)
	return &Builder{opts: Options{
		capacity: capacity,
		width:    width,
		spins:    defaultSpins,
		attempts: width,
	}}
}

// Limit caps the number of nodes the pool may hand out at once.
// Push/Enqueue return ErrExhausted when the cap is reached.
// A queue uses one extra node as its dummy.
//
// Panics if n < 0. Zero means unlimited.
func (b *Builder) Limit(n int) *Builder {
	if n < 0 {
		panic("lfds: limit must be >= 0")
	}
	b.opts.limit = n
	return b
}

// Width sets the number of elimination slots.
// Probe attempts follow the width unless set explicitly afterwards.
//
// Panics if n < 1.
func (b *Builder) Width(n int) *Builder {
	if n < 1 {
		panic("lfds: elimination width must be >= 1")
	}
	b.opts.width = n
	b.opts.attempts = n
	return b
}

// Spins sets how many spin rounds an elimination offer waits for a
// partner before it is withdrawn.
//
// Panics if n < 1.
func (b *Builder) Spins(n int) *Builder {
	if n < 1 {
		panic("lfds: elimination spins must be >= 1")
	}
	b.opts.spins = n
	return b
}

// Attempts sets how many slots a consumer probes per elimination attempt.
//
// Panics if n < 1.
func (b *Builder) Attempts(n int) *Builder {
	if n < 1 {
		panic("lfds: elimination attempts must be >= 1")
	}
	b.opts.attempts = n
	return b
}

// Optimistic makes Push/Pop and Enqueue/Dequeue use the CAS path only.
// The Eliminate* and Exchange* methods keep working.
func (b *Builder) Optimistic() *Builder {
	b.opts.optimistic = true
	return b
}

// BuildStack creates a Stack[T] from the builder's options.
func BuildStack[T any](b *Builder) *Stack[T] {
	return newStack[T](&b.opts)
}

// BuildQueue creates a Queue[T] from the builder's options.
// The limit, if any, is raised by one for the dummy node.
func BuildQueue[T any](b *Builder) *Queue[T] {
	o := b.opts
	if o.limit > 0 {
		o.limit++
	}
	return newQueue[T](&o)
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte
