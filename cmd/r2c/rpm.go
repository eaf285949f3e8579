// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

//go:build linux
// +build linux

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecramirez94/r2c"
	"github.com/ecramirez94/r2c/tach"
)

func init() {
	rpmCmd.Flags().DurationVarP(&rpmOpts.Window, "window", "w", 0, "measurement window (overrides hall.window)")
	rpmCmd.Flags().UintVarP(&rpmOpts.NumWindows, "num-windows", "n", 0, "exit after n windows")
	rpmCmd.Flags().DurationVarP(&rpmOpts.Refresh, "refresh", "r", time.Second, "interval between reports")
	rpmCmd.Flags().BoolVarP(&rpmOpts.Quiet, "quiet", "q", false, "only report the final average")
	rootCmd.AddCommand(rpmCmd)
}

var (
	rpmCmd = &cobra.Command{
		Use:   "rpm",
		Short: "Measure spindle speed",
		Long:  `Count Hall sensor pulses over successive windows and report the speed.`,
		Args:  cobra.NoArgs,
		RunE:  rpm,
	}
	rpmOpts = struct {
		Window     time.Duration
		NumWindows uint
		Refresh    time.Duration
		Quiet      bool
	}{}
)

func rpm(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	window := rpmOpts.Window
	if window == 0 {
		window = cfg.MustGet("hall.window").Duration()
	}
	c, err := openChip(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	ec, err := r2c.RequestEdgeCounter(c, int(cfg.MustGet("hall.line").Int()), window)
	if err != nil {
		return err
	}
	defer ec.Close()
	m := tach.NewMeter(ec, tach.WithPulsesPerRev(int(cfg.MustGet("hall.ppr").Int())))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	refresh := time.NewTicker(rpmOpts.Refresh)
	defer refresh.Stop()
	for count := uint(0); rpmOpts.NumWindows == 0 || count < rpmOpts.NumWindows; count++ {
		r, err := m.Measure(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		select {
		case <-refresh.C:
			if !rpmOpts.Quiet {
				printReading(r)
			}
		default:
		}
	}
	fmt.Printf("average: %.1f rpm\n", m.Filter().Average())
	return nil
}

func printReading(r tach.Reading) {
	stall := ""
	if r.Stalled {
		stall = " stalled"
	}
	fmt.Printf("rpm:%8.1f avg:%8.1f pulses:%4d window:%v%s\n",
		r.RPM, r.Average, r.Pulses, r.Duration(), stall)
}
