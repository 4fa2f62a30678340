// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfds

import (
	"fmt"

	"code.hybscloud.com/atomix"
)

// Handle identifies a node slot inside a node pool.
//
// Handles stand in for raw pointers: the garbage collector must see every
// Go pointer, so a pointer can never be packed next to a counter in a
// 128-bit word. A Handle is a plain integer that the owning structure
// resolves against its type-stable arena. The zero Handle is nil.
type Handle uint64

// StampedPtr pairs a Handle with a version stamp.
//
// Two StampedPtr values are equal only if both the handle and the stamp
// are equal. Structures bump the stamp on every successful update of a
// shared slot, so a compare-and-swap holding a stale view fails even when
// the same handle has been released and reused in the meantime (ABA).
//
// StampedPtr is a value; it is built every time a slot is read.
type StampedPtr struct {
	Ptr   Handle
	Stamp uint64
}

// MakeStamped returns the stamped pointer (ptr, stamp).
func MakeStamped(ptr Handle, stamp uint64) StampedPtr {
	return StampedPtr{Ptr: ptr, Stamp: stamp}
}

// IsNil reports whether p references no node.
func (p StampedPtr) IsNil() bool {
	return p.Ptr == 0
}

// Equal reports whether p and x carry the same handle and the same stamp.
func (p StampedPtr) Equal(x StampedPtr) bool {
	return p == x
}

// Next returns (ptr, p.Stamp+1), the successor value of a slot that
// currently holds p. The stamp wraps modulo 2^64.
func (p StampedPtr) Next(ptr Handle) StampedPtr {
	return StampedPtr{Ptr: ptr, Stamp: p.Stamp + 1}
}

func (p StampedPtr) String() string {
	return fmt.Sprintf("%#x@%d", uint64(p.Ptr), p.Stamp)
}

// AtomicStampedPtr is a StampedPtr cell updated with a double-width CAS.
//
// The stamp and the handle share one 128-bit word (lo=stamp, hi=handle),
// so every reader observes a pair written by a single store: no load ever
// returns the handle of one write and the stamp of another.
//
// The zero value holds the nil pointer with stamp 0. An AtomicStampedPtr
// must not be copied after first use.
type AtomicStampedPtr struct {
	v cell128 // lo=stamp, hi=handle
}

// Load returns the current value (acquire).
func (a *AtomicStampedPtr) Load() StampedPtr {
	lo, hi := a.v.word().LoadAcquire()
	return StampedPtr{Ptr: Handle(hi), Stamp: lo}
}

// Store unconditionally replaces the value (release).
func (a *AtomicStampedPtr) Store(p StampedPtr) {
	a.v.word().StoreRelease(p.Stamp, uint64(p.Ptr))
}

// Swap stores p and returns the previous value.
func (a *AtomicStampedPtr) Swap(p StampedPtr) (old StampedPtr) {
	for {
		lo, hi := a.v.word().LoadAcquire()
		if a.v.word().CompareAndSwapAcqRel(lo, hi, p.Stamp, uint64(p.Ptr)) {
			return StampedPtr{Ptr: Handle(hi), Stamp: lo}
		}
	}
}

// CompareAndSwap replaces the value with desired if it currently equals
// old, handle and stamp both. It reports whether the swap happened.
func (a *AtomicStampedPtr) CompareAndSwap(old, desired StampedPtr) bool {
	return a.v.word().CompareAndSwapAcqRel(old.Stamp, uint64(old.Ptr), desired.Stamp, uint64(desired.Ptr))
}

// CompareExchangeWeak performs one compare-and-swap attempt.
//
// If the cell equals *expected it is replaced by desired and true is
// returned. Otherwise the value observed after the failed attempt is
// written to *expected and false is returned. The observed value may
// equal the original expectation (spurious failure); callers retry in a
// loop.
func (a *AtomicStampedPtr) CompareExchangeWeak(expected *StampedPtr, desired StampedPtr) bool {
	if a.CompareAndSwap(*expected, desired) {
		return true
	}
	*expected = a.Load()
	return false
}

// CompareExchangeStrong is CompareExchangeWeak without spurious failure:
// false is returned only when the cell holds a value different from
// *expected, which is then written to *expected.
func (a *AtomicStampedPtr) CompareExchangeStrong(expected *StampedPtr, desired StampedPtr) bool {
	want := *expected
	for {
		if a.CompareAndSwap(want, desired) {
			return true
		}
		cur := a.Load()
		if cur != want {
			*expected = cur
			return false
		}
	}
}

// cell128 holds one atomix.Uint128 at a 16-byte aligned offset.
//
// CMPXCHG16B and CASP fault on a misaligned operand, and Go only aligns
// [16]byte to one byte. The word is placed inside a 32-byte buffer at the
// first 16-byte boundary, recomputed from the buffer address on each use.
type cell128 [32]byte

func (c *cell128) word() *atomix.Uint128 {
	_, w := atomix.PlaceAlignedUint128(c[:], 0)
	return w
}
