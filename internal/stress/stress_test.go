// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stress

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sirupsen/logrus"

	"code.hybscloud.com/lfds"
)

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestConfigValidate(t *testing.T) {
	base := DefaultConfig()
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default", func(*Config) {}, false},
		{"stack exchange", func(c *Config) { c.Kind, c.Mode = KindStack, ModeExchange }, false},
		{"unknown kind", func(c *Config) { c.Kind = "ring" }, true},
		{"unknown mode", func(c *Config) { c.Mode = "fast" }, true},
		{"baseline with mode", func(c *Config) { c.Kind, c.Mode = KindBaselineQueue, ModeEliminate }, true},
		{"no producers", func(c *Config) { c.Producers = 0 }, true},
		{"no items", func(c *Config) { c.Items = 0 }, true},
		{"no timeout", func(c *Config) { c.Timeout = 0 }, true},
		{"negative width", func(c *Config) { c.Width = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRunInvalidConfig(t *testing.T) {
	c := DefaultConfig()
	c.Items = -1
	if _, err := Run(context.Background(), c, quietLog()); err == nil {
		t.Fatalf("Run with invalid config: got nil error")
	}
}

func TestRun(t *testing.T) {
	if lfds.RaceEnabled {
		t.Skip("skip: concurrent test with atomix-published values")
	}
	tests := []struct {
		kind Kind
		mode Mode
	}{
		{KindStack, ModeDefault},
		{KindStack, ModeOptimistic},
		{KindStack, ModeEliminate},
		{KindStack, ModeExchange},
		{KindQueue, ModeDefault},
		{KindQueue, ModeOptimistic},
		{KindQueue, ModeEliminate},
		{KindQueue, ModeExchange},
		{KindBaselineStack, ModeDefault},
		{KindBaselineQueue, ModeDefault},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+string(tt.mode), func(t *testing.T) {
			cfg := Config{
				Kind:      tt.kind,
				Mode:      tt.mode,
				Producers: 3,
				Consumers: 2,
				Items:     3000,
				Timeout:   30 * time.Second,
			}
			if tt.mode == ModeExchange {
				cfg.Width, cfg.Spins = 2, 512
			}
			rep, err := Run(context.Background(), cfg, quietLog())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}

			want := Report{
				Config:   cfg,
				Received: int64(cfg.Items),
				Drained:  true,
			}
			ignore := cmpopts.IgnoreFields(Report{}, "Elapsed", "OpsPerSec", "Stats")
			if diff := cmp.Diff(want, rep, ignore); diff != "" {
				t.Fatalf("Report mismatch (-want +got):\n%s", diff)
			}
			if !rep.OK() {
				t.Fatalf("OK: got false for %+v", rep)
			}
			if tt.mode == ModeExchange && rep.Stats.Eliminated != int64(cfg.Items) {
				t.Fatalf("exchange mode: eliminated %d, want %d", rep.Stats.Eliminated, cfg.Items)
			}
		})
	}
}

func TestReportJSON(t *testing.T) {
	rep := Report{
		Config:    DefaultConfig(),
		Received:  10,
		Missing:   1,
		Drained:   true,
		Elapsed:   3 * time.Millisecond,
		OpsPerSec: 1e6,
		Stats:     lfds.Stats{Eliminated: 4, Contended: 7, Nodes: 1},
	}
	b, err := rep.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"config", "received", "missing", "duplicates", "order_violations", "drained", "elapsed", "stats"} {
		if _, ok := fields[key]; !ok {
			t.Fatalf("JSON report lacks %q: %s", key, b)
		}
	}

	var got Report
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("Unmarshal into Report: %v", err)
	}
	if diff := cmp.Diff(rep, got); diff != "" {
		t.Fatalf("decoded report mismatch (-want +got):\n%s", diff)
	}
	if got.OK() {
		t.Fatalf("OK with a missing item: got true, want false")
	}
}
