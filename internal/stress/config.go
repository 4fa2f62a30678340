// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stress

import (
	"time"

	"github.com/pkg/errors"
)

// Kind selects the container under test.
type Kind string

const (
	KindStack         Kind = "stack"
	KindQueue         Kind = "queue"
	KindBaselineStack Kind = "baseline-stack" // golang-design/lockfree Stack
	KindBaselineQueue Kind = "baseline-queue" // golang-design/lockfree Queue
)

// FIFO reports whether k is expected to deliver each producer's elements
// in insertion order.
func (k Kind) FIFO() bool {
	return k == KindQueue || k == KindBaselineQueue
}

// Baseline reports whether k is a third-party reference container.
func (k Kind) Baseline() bool {
	return k == KindBaselineStack || k == KindBaselineQueue
}

// Mode selects which entry points of an lfds container the workers call.
type Mode string

const (
	ModeDefault    Mode = "default"    // Push/Pop, Enqueue/Dequeue
	ModeOptimistic Mode = "optimistic" // CAS path only
	ModeEliminate  Mode = "eliminate"  // alternate CAS and elimination
	ModeExchange   Mode = "exchange"   // elimination array only
)

// Config describes one stress run.
type Config struct {
	Kind      Kind          `json:"kind"`
	Mode      Mode          `json:"mode"`
	Producers int           `json:"producers"`
	Consumers int           `json:"consumers"`
	Items     int           `json:"items"`
	Timeout   time.Duration `json:"timeout"`

	// Elimination array tuning, zero keeps the library default.
	Width int `json:"width,omitempty"`
	Spins int `json:"spins,omitempty"`
}

// DefaultConfig returns a small queue run in default mode.
func DefaultConfig() Config {
	return Config{
		Kind:      KindQueue,
		Mode:      ModeDefault,
		Producers: 4,
		Consumers: 4,
		Items:     100_000,
		Timeout:   30 * time.Second,
	}
}

// Validate checks c for inconsistent settings.
func (c Config) Validate() error {
	switch c.Kind {
	case KindStack, KindQueue, KindBaselineStack, KindBaselineQueue:
	default:
		return errors.Errorf("unknown kind %q", c.Kind)
	}
	switch c.Mode {
	case ModeDefault, ModeOptimistic, ModeEliminate, ModeExchange:
	default:
		return errors.Errorf("unknown mode %q", c.Mode)
	}
	if c.Kind.Baseline() && c.Mode != ModeDefault {
		return errors.Errorf("kind %s supports only mode %s", c.Kind, ModeDefault)
	}
	if c.Producers < 1 || c.Consumers < 1 {
		return errors.New("need at least one producer and one consumer")
	}
	if c.Items < 1 {
		return errors.New("items must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.Width < 0 || c.Spins < 0 {
		return errors.New("width and spins must not be negative")
	}
	return nil
}
