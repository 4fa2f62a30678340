// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfds

import (
	"math/bits"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// maxSegments bounds pool growth: segment k holds base<<k slots.
const maxSegments = 32

// nodePool is a segmented, type-stable arena of N values addressed by Handle.
//
// Segments are installed lazily and never released while the pool lives,
// so resolving any Handle the pool ever returned is always memory safe,
// even after the slot was released and reused. Stale readers observe a
// different node and rely on stamps to fail their CAS.
//
// Released slots are kept on a Treiber free list whose head is an
// AtomicStampedPtr: pop reads the successor of a slot that a concurrent
// pop may already have handed out, the textbook ABA case.
type nodePool[N any] struct {
	_     pad
	free  AtomicStampedPtr // Free list head
	_     pad
	next  atomix.Uint64 // Next never-used slot index (FAA)
	_     pad
	live  atomix.Int64 // Slots currently handed out
	_     pad
	segs  [maxSegments]atomic.Pointer[[]poolSlot[N]]
	base  uint64 // Slots in segment 0 (power of 2)
	shift uint   // log2(base)
	limit uint64 // Max slots ever allocated, 0 = unbounded
}

type poolSlot[N any] struct {
	node N
	free atomix.Uint64 // Successor on the free list
}

func newNodePool[N any](capacity, limit int) *nodePool[N] {
	base := uint64(roundToPow2(capacity))
	p := &nodePool[N]{
		base:  base,
		shift: uint(bits.TrailingZeros64(base)),
		limit: uint64(limit),
	}
	seg := make([]poolSlot[N], base)
	p.segs[0].Store(&seg)
	return p
}

// locate maps a handle to its segment and offset.
// Handle h names index h-1; segment k covers [base*(2^k-1), base*(2^(k+1)-1)).
func (p *nodePool[N]) locate(h Handle) (seg int, off uint64) {
	i := uint64(h) - 1
	seg = bits.Len64(i>>p.shift+1) - 1
	off = i - p.base*(1<<uint(seg)-1)
	return seg, off
}

func (p *nodePool[N]) slot(h Handle) *poolSlot[N] {
	seg, off := p.locate(h)
	return &(*p.segs[seg].Load())[off]
}

// at resolves h. h must have been returned by alloc.
func (p *nodePool[N]) at(h Handle) *N {
	return &p.slot(h).node
}

// alloc hands out a slot, preferring released ones.
// Returns ErrExhausted when the limit is reached and the free list is empty.
func (p *nodePool[N]) alloc() (Handle, *N, error) {
	sw := spin.Wait{}
	for {
		top := p.free.Load()
		if top.IsNil() {
			break
		}
		next := Handle(p.slot(top.Ptr).free.LoadAcquire())
		if p.free.CompareAndSwap(top, top.Next(next)) {
			p.live.Add(1)
			return top.Ptr, p.at(top.Ptr), nil
		}
		sw.Once()
	}

	i := p.next.AddAcqRel(1) - 1
	if p.limit != 0 && i >= p.limit {
		return 0, nil, ErrExhausted
	}
	h := Handle(i + 1)
	seg, _ := p.locate(h)
	if seg >= maxSegments {
		return 0, nil, ErrExhausted
	}
	p.grow(seg)
	p.live.Add(1)
	return h, p.at(h), nil
}

func (p *nodePool[N]) grow(seg int) {
	if p.segs[seg].Load() != nil {
		return
	}
	s := make([]poolSlot[N], p.base<<uint(seg))
	p.segs[seg].CompareAndSwap(nil, &s)
}

// release puts h back on the free list. The caller has already cleared
// the node's payload and guarantees no reader can still dereference it
// for anything but atomic link fields.
func (p *nodePool[N]) release(h Handle) {
	s := p.slot(h)
	sw := spin.Wait{}
	for {
		top := p.free.Load()
		s.free.StoreRelease(uint64(top.Ptr))
		if p.free.CompareAndSwap(top, top.Next(h)) {
			p.live.Add(-1)
			return
		}
		sw.Once()
	}
}

// inUse reports the number of slots currently handed out.
func (p *nodePool[N]) inUse() int {
	return int(p.live.Load())
}
