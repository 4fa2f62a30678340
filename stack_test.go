// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package lfds_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfds"
)

// =============================================================================
// Stack - Basic Operations
// =============================================================================

func TestStackBasic(t *testing.T) {
	s := lfds.NewStack[int]()

	if !s.IsEmpty() {
		t.Fatalf("IsEmpty on new stack: got false, want true")
	}
	if _, err := s.Pop(); !errors.Is(err, lfds.ErrWouldBlock) {
		t.Fatalf("Pop on empty: got %v, want ErrWouldBlock", err)
	}

	for i := range 100 {
		v := i
		if err := s.Push(&v); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	if s.IsEmpty() {
		t.Fatalf("IsEmpty after Push: got true, want false")
	}

	// LIFO order
	for i := 99; i >= 0; i-- {
		v, err := s.Pop()
		if err != nil {
			t.Fatalf("Pop(%d): %v", i, err)
		}
		if v != i {
			t.Fatalf("Pop: got %d, want %d", v, i)
		}
	}
	if !s.IsEmpty() {
		t.Fatalf("IsEmpty after drain: got false, want true")
	}
	if _, err := s.Pop(); !lfds.IsWouldBlock(err) {
		t.Fatalf("Pop after drain: got %v, want ErrWouldBlock", err)
	}
}

func TestStackOptimistic(t *testing.T) {
	s := lfds.NewStack[string]()

	for _, v := range []string{"a", "b", "c"} {
		if err := s.OptimisticPush(&v); err != nil {
			t.Fatalf("OptimisticPush(%s): %v", v, err)
		}
	}
	for _, want := range []string{"c", "b", "a"} {
		v, err := s.OptimisticPop()
		if err != nil {
			t.Fatalf("OptimisticPop: %v", err)
		}
		if v != want {
			t.Fatalf("OptimisticPop: got %q, want %q", v, want)
		}
	}
	if _, err := s.OptimisticPop(); !errors.Is(err, lfds.ErrWouldBlock) {
		t.Fatalf("OptimisticPop on empty: got %v, want ErrWouldBlock", err)
	}
}

// TestStackMixedEntryPoints mixes the entry points on one goroutine.
// Without a concurrent partner the eliminate variants complete on the CAS
// path, so ordering is plain LIFO.
func TestStackMixedEntryPoints(t *testing.T) {
	s := lfds.NewStack[int]()

	one, two := 1, 2
	if err := s.Push(&one); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if err := s.EliminatePush(&two); err != nil {
		t.Fatalf("EliminatePush: %v", err)
	}

	if v, err := s.EliminatePop(); err != nil || v != 2 {
		t.Fatalf("EliminatePop: got (%d, %v), want (2, nil)", v, err)
	}
	if v, err := s.Pop(); err != nil || v != 1 {
		t.Fatalf("Pop: got (%d, %v), want (1, nil)", v, err)
	}
	if !s.IsEmpty() {
		t.Fatalf("IsEmpty: got false, want true")
	}
	if st := s.Stats(); st.Eliminated != 0 || st.Nodes != 0 {
		t.Fatalf("Stats: got %+v, want no eliminations and no nodes", st)
	}
}

func TestStackExchangeWithoutPartner(t *testing.T) {
	s := lfds.BuildStack[int](lfds.New(8).Width(1).Spins(4))

	v := 1
	if err := s.ExchangePush(&v); !errors.Is(err, lfds.ErrWouldBlock) {
		t.Fatalf("ExchangePush alone: got %v, want ErrWouldBlock", err)
	}
	if !s.IsEmpty() {
		t.Fatalf("ExchangePush must not touch the stack")
	}
	if _, err := s.ExchangePop(); !errors.Is(err, lfds.ErrWouldBlock) {
		t.Fatalf("ExchangePop alone: got %v, want ErrWouldBlock", err)
	}
	if st := s.Stats(); st.Nodes != 0 {
		t.Fatalf("Stats.Nodes after withdrawn offer: got %d, want 0", st.Nodes)
	}
}

// TestStackExchangePair hands values from one goroutine to another through
// the elimination array only.
func TestStackExchangePair(t *testing.T) {
	if lfds.RaceEnabled {
		t.Skip("skip: value handoff through atomix is invisible to the race detector")
	}
	const n = 200
	s := lfds.BuildStack[int](lfds.New(8).Width(1).Spins(1024))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		backoff := iox.Backoff{}
		for i := range n {
			v := i
			for s.ExchangePush(&v) != nil {
				backoff.Wait()
			}
			backoff.Reset()
		}
	}()

	got := make([]bool, n)
	deadline := time.Now().Add(10 * time.Second)
	for received := 0; received < n; {
		v, err := s.ExchangePop()
		if err != nil {
			if time.Now().After(deadline) {
				t.Fatalf("timeout: received %d of %d", received, n)
			}
			continue
		}
		if v < 0 || v >= n || got[v] {
			t.Fatalf("ExchangePop: unexpected or duplicate value %d", v)
		}
		got[v] = true
		received++
	}
	wg.Wait()

	if !s.IsEmpty() {
		t.Fatalf("exchanged values must never reach the stack")
	}
	if st := s.Stats(); st.Eliminated != n {
		t.Fatalf("Stats.Eliminated: got %d, want %d", st.Eliminated, n)
	}
}

func TestStackLimit(t *testing.T) {
	s := lfds.BuildStack[int](lfds.New(4).Limit(4))

	for i := range 4 {
		v := i
		if err := s.Push(&v); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	v := 99
	if err := s.Push(&v); !errors.Is(err, lfds.ErrExhausted) {
		t.Fatalf("Push beyond limit: got %v, want ErrExhausted", err)
	}
	if !lfds.IsExhausted(lfds.ErrExhausted) || lfds.IsSemantic(lfds.ErrExhausted) {
		t.Fatalf("ErrExhausted must be a failure, not a semantic signal")
	}

	// Popped nodes are reused.
	if _, err := s.Pop(); err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if err := s.Push(&v); err != nil {
		t.Fatalf("Push after Pop: %v", err)
	}
	if got, err := s.Pop(); err != nil || got != 99 {
		t.Fatalf("Pop: got (%d, %v), want (99, nil)", got, err)
	}
}

// TestStackGrowth pushes far beyond the first pool segment.
func TestStackGrowth(t *testing.T) {
	s := lfds.BuildStack[int](lfds.New(2))
	const n = 5000
	for i := range n {
		v := i
		if err := s.Push(&v); err != nil {
			t.Fatalf("Push(%d): %v", i, err)
		}
	}
	if st := s.Stats(); st.Nodes != n {
		t.Fatalf("Stats.Nodes: got %d, want %d", st.Nodes, n)
	}
	for i := n - 1; i >= 0; i-- {
		if v, err := s.Pop(); err != nil || v != i {
			t.Fatalf("Pop: got (%d, %v), want (%d, nil)", v, err, i)
		}
	}
}

func TestStackZeroValue(t *testing.T) {
	type pair struct {
		k string
		v *int
	}
	s := lfds.NewStack[pair]()
	x := 5
	p := pair{k: "x", v: &x}
	if err := s.Push(&p); err != nil {
		t.Fatalf("Push: %v", err)
	}
	p.k = "changed"

	got, err := s.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if got.k != "x" || *got.v != 5 {
		t.Fatalf("Pop: got %+v, want copy taken at Push", got)
	}
	if got, err := s.Pop(); err == nil || got.v != nil || got.k != "" {
		t.Fatalf("Pop on empty: got (%+v, %v), want zero value and error", got, err)
	}
}

// =============================================================================
// Stack - Concurrency
// =============================================================================

func TestStackConcurrentExactlyOnce(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts *lfds.Builder
	}{
		{"Default", lfds.New(64)},
		{"Optimistic", lfds.New(64).Optimistic()},
		{"NarrowElimination", lfds.New(64).Width(1).Spins(16)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := lfds.BuildStack[int](tc.opts)
			exactlyOnce(t, 4, 4, 5000,
				func(v int) error { return s.Push(&v) },
				s.Pop,
			)
			if !s.IsEmpty() {
				t.Fatalf("IsEmpty after drain: got false, want true")
			}
			if st := s.Stats(); st.Nodes != 0 {
				t.Fatalf("Stats.Nodes after drain: got %d, want 0", st.Nodes)
			}
		})
	}
}

func TestStackConcurrentEliminate(t *testing.T) {
	s := lfds.BuildStack[int](lfds.New(64).Width(2))
	exactlyOnce(t, 8, 8, 4000,
		func(v int) error { return s.EliminatePush(&v) },
		s.EliminatePop,
	)
	t.Logf("stats: %+v", s.Stats())
}

// =============================================================================
// Shared helpers
// =============================================================================

// exactlyOnce runs numP producers and numC consumers. Producer p inserts
// p*perProd .. p*perProd+perProd-1; consumers drain until every value was
// received. Each value must be received exactly once.
func exactlyOnce(t *testing.T, numP, numC, perProd int,
	put func(v int) error, take func() (int, error),
) {
	t.Helper()
	if lfds.RaceEnabled {
		t.Skip("skip: concurrent test with atomix-published values")
	}

	total := numP * perProd
	seen := make([]atomix.Int32, total)
	var received atomix.Int64
	var timedOut atomix.Bool
	timeout := 20 * time.Second

	var wg sync.WaitGroup
	for p := range numP {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			deadline := time.Now().Add(timeout)
			backoff := iox.Backoff{}
			for i := range perProd {
				for put(id*perProd+i) != nil {
					if time.Now().After(deadline) {
						timedOut.Store(true)
						return
					}
					backoff.Wait()
				}
				backoff.Reset()
			}
		}(p)
	}
	for range numC {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deadline := time.Now().Add(timeout)
			backoff := iox.Backoff{}
			for received.Load() < int64(total) {
				v, err := take()
				if err != nil {
					if time.Now().After(deadline) {
						timedOut.Store(true)
						return
					}
					backoff.Wait()
					continue
				}
				backoff.Reset()
				if v < 0 || v >= total {
					t.Errorf("value out of range: %d", v)
				} else {
					seen[v].Add(1)
				}
				received.Add(1)
			}
		}()
	}
	wg.Wait()

	if timedOut.Load() {
		t.Fatalf("timeout: received %d of %d", received.Load(), total)
	}
	var missing, duplicates int
	for i := range total {
		switch n := seen[i].Load(); {
		case n == 0:
			missing++
		case n > 1:
			duplicates++
		}
	}
	if missing != 0 || duplicates != 0 {
		t.Fatalf("exactly-once violated: %d missing, %d duplicated of %d", missing, duplicates, total)
	}
}
