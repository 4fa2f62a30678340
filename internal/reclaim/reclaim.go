// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package reclaim provides version-based safe memory reclamation for
// lock-free structures that address nodes by integer handles.
//
// A goroutine that may dereference shared nodes first acquires a [Guard].
// Acquiring publishes the domain's current version in a participant
// record. A node unlinked from the structure is retired through the
// guard and tagged with a fresh version. It is freed only once every
// active record published a version strictly greater than its tag, that
// is, once every goroutine that could have read a reference to it before
// it was unlinked has released its guard.
//
// Records are never deallocated. A released record keeps its retire list
// and the next goroutine acquiring it inherits the pending work.
package reclaim

import (
	"math"
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// MinBatch is the smallest retire list size that triggers a scan.
const MinBatch = 8

// Domain is a set of participant records sharing one version counter.
type Domain struct {
	version atomix.Int64 // Global version, bumped per retire
	records atomix.Int64 // Number of records ever created
	head    atomic.Pointer[record]
	free    func(h uint64)
}

type record struct {
	active  atomix.Uint64 // 1 while owned by a guard
	version atomix.Int64  // Version published at acquire
	next    *record       // Immutable once linked
	retired []retired     // Owned by the active guard
}

type retired struct {
	handle  uint64
	version int64
}

// New creates a domain. free is called exactly once for every retired
// handle, from inside Retire or Flush of some guard.
func New(free func(h uint64)) *Domain {
	if free == nil {
		panic("reclaim: free func must not be nil")
	}
	return &Domain{free: free}
}

// Guard pins the domain version for the duration of an operation.
// A Guard must be released by the goroutine that acquired it.
type Guard struct {
	d   *Domain
	rec *record
}

// Acquire claims a participant record and publishes the current version.
// It never blocks: when every record is in use a new one is appended.
func (d *Domain) Acquire() Guard {
	for rec := d.head.Load(); rec != nil; rec = rec.next {
		if rec.active.LoadAcquire() != 0 {
			continue
		}
		if rec.active.CompareAndSwapAcqRel(0, 1) {
			rec.version.Store(d.version.Load())
			return Guard{d: d, rec: rec}
		}
	}

	rec := &record{}
	rec.active.StoreRelaxed(1)
	rec.version.Store(d.version.Load())
	for {
		head := d.head.Load()
		rec.next = head
		if d.head.CompareAndSwap(head, rec) {
			d.records.Add(1)
			return Guard{d: d, rec: rec}
		}
	}
}

// Release gives the record back. Pending retirees stay with it.
func (g Guard) Release() {
	g.rec.active.StoreRelease(0)
}

// Refresh republishes the current version, letting nodes retired since
// Acquire be freed. The caller must not hold references obtained before.
func (g Guard) Refresh() {
	g.rec.version.Store(g.d.version.Load())
}

// Retire schedules h to be freed once no active guard can reference it.
// h must already be unreachable from the shared structure.
func (g Guard) Retire(h uint64) {
	v := g.d.version.Add(1) - 1
	g.rec.retired = append(g.rec.retired, retired{handle: h, version: v})
	if len(g.rec.retired) >= g.threshold() {
		g.scan()
	}
}

// Flush frees every retiree of this record that is already safe.
// Returns the number of retirees still pending.
func (g Guard) Flush() int {
	g.scan()
	return len(g.rec.retired)
}

// Pending returns the number of retirees held by this guard's record.
func (g Guard) Pending() int {
	return len(g.rec.retired)
}

func (g Guard) threshold() int {
	return max(MinBatch, 2*int(g.d.records.Load()))
}

func (g Guard) scan() {
	low := int64(math.MaxInt64)
	for rec := g.d.head.Load(); rec != nil; rec = rec.next {
		if rec == g.rec {
			continue
		}
		if rec.active.LoadAcquire() == 0 {
			continue
		}
		low = min(low, rec.version.Load())
	}
	// The scanning guard itself only holds references it read after its
	// own published version.
	low = min(low, g.rec.version.Load())

	kept := g.rec.retired[:0]
	for _, r := range g.rec.retired {
		if r.version < low {
			g.d.free(r.handle)
			continue
		}
		kept = append(kept, r)
	}
	clear(g.rec.retired[len(kept):])
	g.rec.retired = kept
}

// Reclaim scans the retire list of every record not owned by a guard
// and frees what is already safe. Records in use are skipped.
// Returns the number of retirees still pending on the scanned records.
// Retirees otherwise wait until their own record scans again.
func (d *Domain) Reclaim() int {
	pending := 0
	for rec := d.head.Load(); rec != nil; rec = rec.next {
		if rec.active.LoadAcquire() != 0 || !rec.active.CompareAndSwapAcqRel(0, 1) {
			continue
		}
		rec.version.Store(d.version.Load())
		g := Guard{d: d, rec: rec}
		pending += g.Flush()
		g.Release()
	}
	return pending
}

// Records returns the number of participant records created so far.
func (d *Domain) Records() int {
	return int(d.records.Load())
}
