// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package stress drives lfds containers with concurrent producers and
// consumers and verifies that every element is delivered exactly once.
//
// Producer p inserts the values v in [0, Items) with v%Producers == p, in
// increasing order. Consumers drain until every value was received. For
// FIFO kinds each consumer must also observe every producer's values in
// increasing order.
package stress

import (
	"context"
	"time"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"code.hybscloud.com/lfds"
)

// Report is the outcome of a stress run.
type Report struct {
	Config          Config        `json:"config"`
	Received        int64         `json:"received"`
	Missing         int           `json:"missing"`
	Duplicates      int           `json:"duplicates"`
	OrderViolations int64         `json:"order_violations"`
	Drained         bool          `json:"drained"`
	Elapsed         time.Duration `json:"elapsed"`
	OpsPerSec       float64       `json:"ops_per_sec"`
	Stats           lfds.Stats    `json:"stats"`
}

// OK reports whether the run delivered every element exactly once, in
// order where required, and left the container empty.
func (r Report) OK() bool {
	return r.Received == int64(r.Config.Items) &&
		r.Missing == 0 && r.Duplicates == 0 &&
		r.OrderViolations == 0 && r.Drained
}

// JSON encodes r for the command line report.
func (r Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

type run struct {
	cfg      Config
	t        target
	log      *logrus.Entry
	seen     []atomix.Int32
	received atomix.Int64
	disorder atomix.Int64
}

// Run executes one stress run described by cfg.
//
// A run that does not finish within cfg.Timeout, or whose context is
// canceled, returns the partial report together with the context error.
// Delivery violations are reported in the Report, not as an error.
func Run(ctx context.Context, cfg Config, log *logrus.Entry) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{Config: cfg}, errors.Wrap(err, "stress: invalid config")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	r := &run{
		cfg:  cfg,
		t:    newTarget(cfg),
		log:  log.WithFields(logrus.Fields{"kind": cfg.Kind, "mode": cfg.Mode}),
		seen: make([]atomix.Int32, cfg.Items),
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	r.log.WithFields(logrus.Fields{
		"producers": cfg.Producers,
		"consumers": cfg.Consumers,
		"items":     cfg.Items,
	}).Info("stress run started")

	start := time.Now()
	eg, ctx := errgroup.WithContext(ctx)
	for p := range cfg.Producers {
		eg.Go(func() error { return r.produce(ctx, p) })
	}
	for c := range cfg.Consumers {
		eg.Go(func() error { return r.consume(ctx, c) })
	}
	err := eg.Wait()
	elapsed := time.Since(start)

	rep := r.report(elapsed)
	if err != nil {
		r.log.WithError(err).WithField("received", rep.Received).Error("stress run aborted")
		return rep, errors.Wrapf(err, "stress: received %d of %d items", rep.Received, cfg.Items)
	}
	entry := r.log.WithFields(logrus.Fields{
		"elapsed":    elapsed,
		"opsPerSec":  int64(rep.OpsPerSec),
		"eliminated": rep.Stats.Eliminated,
		"contended":  rep.Stats.Contended,
	})
	if rep.OK() {
		entry.Info("stress run passed")
	} else {
		entry.WithFields(logrus.Fields{
			"missing":    rep.Missing,
			"duplicates": rep.Duplicates,
			"disorder":   rep.OrderViolations,
			"drained":    rep.Drained,
		}).Warn("stress run failed verification")
	}
	return rep, nil
}

func (r *run) produce(ctx context.Context, p int) error {
	backoff := iox.Backoff{}
	for v := p; v < r.cfg.Items; v += r.cfg.Producers {
		for {
			err := r.t.put(uint64(v))
			if err == nil {
				backoff.Reset()
				break
			}
			if !lfds.IsWouldBlock(err) && !lfds.IsExhausted(err) {
				return errors.Wrapf(err, "producer %d", p)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			backoff.Wait()
		}
	}
	r.log.WithField("producer", p).Debug("producer done")
	return nil
}

func (r *run) consume(ctx context.Context, c int) error {
	last := make([]int64, r.cfg.Producers)
	for i := range last {
		last[i] = -1
	}
	fifo := r.cfg.Kind.FIFO()
	total := int64(r.cfg.Items)
	backoff := iox.Backoff{}
	taken := 0
	for r.received.Load() < total {
		v, err := r.t.take()
		if err != nil {
			if !lfds.IsWouldBlock(err) {
				return errors.Wrapf(err, "consumer %d", c)
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			backoff.Wait()
			continue
		}
		backoff.Reset()
		taken++
		if v >= uint64(r.cfg.Items) {
			r.disorder.Add(1)
			r.received.Add(1)
			continue
		}
		r.seen[v].Add(1)
		r.received.Add(1)
		if fifo {
			p := int(v) % r.cfg.Producers
			if int64(v) <= last[p] {
				r.disorder.Add(1)
			}
			last[p] = int64(v)
		}
	}
	r.log.WithFields(logrus.Fields{"consumer": c, "taken": taken}).Debug("consumer done")
	return nil
}

func (r *run) report(elapsed time.Duration) Report {
	rep := Report{
		Config:          r.cfg,
		Received:        r.received.Load(),
		OrderViolations: r.disorder.Load(),
		Elapsed:         elapsed,
		Stats:           r.t.stats(),
	}
	for i := range r.seen {
		switch n := r.seen[i].Load(); {
		case n == 0:
			rep.Missing++
		case n > 1:
			rep.Duplicates += int(n - 1)
		}
	}
	rep.Drained = r.t.isEmpty()
	if elapsed > 0 {
		// One put and one take per element.
		rep.OpsPerSec = float64(2*rep.Received) / elapsed.Seconds()
	}
	return rep
}
