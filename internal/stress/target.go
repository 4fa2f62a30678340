// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stress

import (
	"github.com/golang-design/lockfree"

	"code.hybscloud.com/lfds"
)

// target is the container surface the workers drive.
// put and take follow the lfds error contract: ErrWouldBlock means retry.
type target interface {
	put(v uint64) error
	take() (uint64, error)
	isEmpty() bool
	stats() lfds.Stats
}

func newTarget(c Config) target {
	switch c.Kind {
	case KindBaselineStack:
		return &baselineStack{s: lockfree.NewStack()}
	case KindBaselineQueue:
		return &baselineQueue{q: lockfree.NewQueue()}
	}

	b := lfds.New(1024)
	if c.Width > 0 {
		b.Width(c.Width)
	}
	if c.Spins > 0 {
		b.Spins(c.Spins)
	}
	if c.Kind == KindStack {
		s := lfds.BuildStack[uint64](b)
		switch c.Mode {
		case ModeOptimistic:
			return paths(s.OptimisticPush, s.OptimisticPop, s)
		case ModeEliminate:
			return paths(s.EliminatePush, s.EliminatePop, s)
		case ModeExchange:
			return paths(s.ExchangePush, s.ExchangePop, s)
		}
		return paths(s.Push, s.Pop, s)
	}
	q := lfds.BuildQueue[uint64](b)
	switch c.Mode {
	case ModeOptimistic:
		return paths(q.OptimisticEnqueue, q.OptimisticDequeue, q)
	case ModeEliminate:
		return paths(q.EliminateEnqueue, q.EliminateDequeue, q)
	case ModeExchange:
		return paths(q.ExchangeEnqueue, q.ExchangeDequeue, q)
	}
	return paths(q.Enqueue, q.Dequeue, q)
}

type container interface {
	IsEmpty() bool
	Stats() lfds.Stats
}

// lfdsTarget binds one pair of entry points of a Stack or Queue.
type lfdsTarget struct {
	putFn  func(*uint64) error
	takeFn func() (uint64, error)
	c      container
}

func paths(put func(*uint64) error, take func() (uint64, error), c container) *lfdsTarget {
	return &lfdsTarget{putFn: put, takeFn: take, c: c}
}

func (t *lfdsTarget) put(v uint64) error    { return t.putFn(&v) }
func (t *lfdsTarget) take() (uint64, error) { return t.takeFn() }
func (t *lfdsTarget) isEmpty() bool         { return t.c.IsEmpty() }
func (t *lfdsTarget) stats() lfds.Stats     { return t.c.Stats() }

// baselineStack adapts lockfree.Stack, which reports empty as a nil Pop.
type baselineStack struct {
	s *lockfree.Stack
}

func (b *baselineStack) put(v uint64) error {
	b.s.Push(v)
	return nil
}

func (b *baselineStack) take() (uint64, error) {
	v := b.s.Pop()
	if v == nil {
		return 0, lfds.ErrWouldBlock
	}
	return v.(uint64), nil
}

func (b *baselineStack) isEmpty() bool {
	v := b.s.Pop()
	if v == nil {
		return true
	}
	b.s.Push(v)
	return false
}

func (b *baselineStack) stats() lfds.Stats { return lfds.Stats{} }

// baselineQueue adapts lockfree.Queue.
type baselineQueue struct {
	q *lockfree.Queue
}

func (b *baselineQueue) put(v uint64) error {
	b.q.Enqueue(v)
	return nil
}

func (b *baselineQueue) take() (uint64, error) {
	v := b.q.Dequeue()
	if v == nil {
		return 0, lfds.ErrWouldBlock
	}
	return v.(uint64), nil
}

func (b *baselineQueue) isEmpty() bool     { return b.q.Length() == 0 }
func (b *baselineQueue) stats() lfds.Stats { return lfds.Stats{} }
