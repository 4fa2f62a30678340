// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command lfstress runs concurrent exactly-once stress tests against the
// lfds containers and against a third-party baseline.
//
//	lfstress queue --mode eliminate --producers 8 --consumers 8
//	lfstress stack --items 1000000 --json
//	lfstress baseline queue
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"code.hybscloud.com/lfds/internal/stress"
)

var execName = "lfstress"

func init() {
	if exe, err := os.Executable(); err == nil {
		execName = filepath.Base(exe)
	}
}

type flags struct {
	cfg     stress.Config
	mode    string
	json    bool
	verbose bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", execName, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{cfg: stress.DefaultConfig()}

	rootCmd := &cobra.Command{
		Use:           execName,
		Short:         "Stress lock-free stacks and queues",
		Long:          "Run producers and consumers against lfds containers and verify exactly-once delivery",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.IntVarP(&f.cfg.Producers, "producers", "p", f.cfg.Producers, "producer goroutines")
	pf.IntVarP(&f.cfg.Consumers, "consumers", "c", f.cfg.Consumers, "consumer goroutines")
	pf.IntVarP(&f.cfg.Items, "items", "n", f.cfg.Items, "elements to transfer")
	pf.DurationVarP(&f.cfg.Timeout, "timeout", "t", f.cfg.Timeout, "abort the run after this long")
	pf.BoolVar(&f.json, "json", false, "print the report as JSON")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log per-worker progress")

	stackCmd := &cobra.Command{
		Use:     "stack",
		Aliases: []string{"s"},
		Short:   "stress the elimination-backoff stack",
		Example: fmt.Sprintf("%s stack --mode exchange -p 4 -c 4", execName),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.cfg.Kind = stress.KindStack
			return execute(cmd, f)
		},
	}
	queueCmd := &cobra.Command{
		Use:     "queue",
		Aliases: []string{"q"},
		Short:   "stress the elimination-backoff queue",
		Example: fmt.Sprintf("%s queue --mode optimistic -n 1000000", execName),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.cfg.Kind = stress.KindQueue
			return execute(cmd, f)
		},
	}
	for _, cmd := range []*cobra.Command{stackCmd, queueCmd} {
		cmd.Flags().StringVarP(&f.mode, "mode", "m", string(stress.ModeDefault),
			"entry points: default, optimistic, eliminate or exchange")
		cmd.Flags().IntVar(&f.cfg.Width, "width", 0, "elimination slots (0: one per P)")
		cmd.Flags().IntVar(&f.cfg.Spins, "spins", 0, "elimination spin rounds (0: default)")
	}

	baselineCmd := &cobra.Command{
		Use:       "baseline <stack|queue>",
		Aliases:   []string{"b"},
		Short:     "stress the golang-design/lockfree containers",
		Example:   fmt.Sprintf("%s baseline queue -p 8 -c 8", execName),
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"stack", "queue"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "stack":
				f.cfg.Kind = stress.KindBaselineStack
			case "queue":
				f.cfg.Kind = stress.KindBaselineQueue
			default:
				return fmt.Errorf("unknown baseline %q", args[0])
			}
			f.mode = string(stress.ModeDefault)
			return execute(cmd, f)
		},
	}

	rootCmd.AddCommand(stackCmd, queueCmd, baselineCmd)
	return rootCmd
}

func execute(cmd *cobra.Command, f *flags) error {
	logger := logrus.New()
	logger.SetOutput(cmd.ErrOrStderr())
	if f.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	log := logrus.NewEntry(logger)

	f.cfg.Mode = stress.Mode(f.mode)
	rep, err := stress.Run(cmd.Context(), f.cfg, log)
	if err != nil {
		return err
	}

	if f.json {
		out, err := rep.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(),
			"%s/%s: %d items in %v (%.0f ops/s), eliminated %d, contended %d\n",
			rep.Config.Kind, rep.Config.Mode, rep.Received, rep.Elapsed,
			rep.OpsPerSec, rep.Stats.Eliminated, rep.Stats.Contended)
	}
	if !rep.OK() {
		return fmt.Errorf("verification failed: missing %d, duplicates %d, disorder %d, drained %v",
			rep.Missing, rep.Duplicates, rep.OrderViolations, rep.Drained)
	}
	return nil
}
