// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfds

import (
	"math/rand/v2"

	"code.hybscloud.com/spin"
)

// Slot states. Any other hi value is the Handle of a waiting offer.
const (
	slotEmpty   uint64 = 0
	slotClaimed uint64 = ^uint64(0)
)

// eliminationArray pairs a producer with a concurrent consumer through a
// side channel so that neither touches the structure's head or tail.
//
// Based on the elimination-backoff stack (Hendler, Shavit, Yerushalmi,
// SPAA 2004). Producers publish the Handle of an already built node into
// a random slot and spin; consumers probe random slots and claim an offer
// with a CAS. A matched pair transfers exactly one node: the claim and
// the producer's withdrawal race on the same stamped word, and only one
// of them can win.
//
// Slot format: [lo=stamp | hi=state]. Every transition bumps the stamp,
// so a consumer holding a stale view of a slot cannot claim a later offer
// that happens to carry the same Handle.
type eliminationArray struct {
	slots    []eliminationSlot
	spins    int // Producer wait rounds before withdrawing
	attempts int // Consumer probes per take
}

type eliminationSlot struct {
	entry cell128       // lo=stamp, hi=state
	_     [64 - 32]byte // Pad to cache line
}

func newEliminationArray(width, spins, attempts int) *eliminationArray {
	return &eliminationArray{
		slots:    make([]eliminationSlot, width),
		spins:    spins,
		attempts: attempts,
	}
}

func (e *eliminationArray) pick() *eliminationSlot {
	return &e.slots[rand.IntN(len(e.slots))]
}

// offer publishes h and waits a bounded time for a consumer.
// Returns true if a consumer claimed h; ownership of the node moved with it.
// Returns false if no slot was free or no consumer showed up; the caller
// still owns h.
func (e *eliminationArray) offer(h Handle) bool {
	slot := e.pick()
	stamp, state := slot.entry.word().LoadAcquire()
	if state != slotEmpty {
		return false
	}
	if !slot.entry.word().CompareAndSwapAcqRel(stamp, slotEmpty, stamp+1, uint64(h)) {
		return false
	}
	waiting := stamp + 1

	sw := spin.Wait{}
	for range e.spins {
		s, st := slot.entry.word().LoadAcquire()
		if st == slotClaimed {
			// Only the producer empties a claimed slot.
			slot.entry.word().StoreRelease(s+1, slotEmpty)
			return true
		}
		sw.Once()
	}

	if slot.entry.word().CompareAndSwapAcqRel(waiting, uint64(h), waiting+1, slotEmpty) {
		return false
	}

	// Withdrawal lost to a claim.
	s, _ := slot.entry.word().LoadAcquire()
	slot.entry.word().StoreRelease(s+1, slotEmpty)
	return true
}

// take probes up to e.attempts random slots for a waiting offer that
// accept approves, and claims it. accept may be nil.
func (e *eliminationArray) take(accept func(Handle) bool) (Handle, bool) {
	return e.probe(e.attempts, accept)
}

// poll is a single pass over the array without waiting, used when the
// structure itself is empty.
func (e *eliminationArray) poll(accept func(Handle) bool) (Handle, bool) {
	for i := range e.slots {
		if h, ok := e.claim(&e.slots[i], accept); ok {
			return h, true
		}
	}
	return 0, false
}

func (e *eliminationArray) probe(n int, accept func(Handle) bool) (Handle, bool) {
	sw := spin.Wait{}
	for range n {
		if h, ok := e.claim(e.pick(), accept); ok {
			return h, true
		}
		sw.Once()
	}
	return 0, false
}

func (e *eliminationArray) claim(slot *eliminationSlot, accept func(Handle) bool) (Handle, bool) {
	stamp, state := slot.entry.word().LoadAcquire()
	if state == slotEmpty || state == slotClaimed {
		return 0, false
	}
	h := Handle(state)
	if accept != nil && !accept(h) {
		return 0, false
	}
	if !slot.entry.word().CompareAndSwapAcqRel(stamp, state, stamp+1, slotClaimed) {
		return 0, false
	}
	return h, true
}
