// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

//go:build linux
// +build linux

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecramirez94/r2c"
	"github.com/ecramirez94/r2c/sim"
	"github.com/ecramirez94/r2c/spi"
	"github.com/ecramirez94/r2c/spi/mcp4151"
	"github.com/ecramirez94/r2c/tach"
)

func init() {
	simCmd.Flags().StringVarP(&simOpts.Wiper, "wiper", "p", "128", "initial wiper position")
	simCmd.Flags().IntVarP(&simOpts.Step, "step", "s", 0, "wiper steps after each window, negative to step down")
	simCmd.Flags().Float64VarP(&simOpts.MaxRPM, "max-rpm", "m", 30000, "spindle speed at full scale")
	simCmd.Flags().DurationVarP(&simOpts.Window, "window", "w", 200*time.Millisecond, "measurement window")
	simCmd.Flags().UintVarP(&simOpts.NumWindows, "num-windows", "n", 10, "number of windows")
	simCmd.Flags().Uint32VarP(&simOpts.Refresh, "refresh", "r", 50, "display refresh in 10ms ticks")
	rootCmd.AddCommand(simCmd)
}

var (
	simCmd = &cobra.Command{
		Use:   "sim",
		Short: "Run the speed loop against simulated hardware",
		Long: `Drive a simulated potentiometer, spindle and counting units, reporting
the measured speed as the display would.`,
		Args: cobra.NoArgs,
		RunE: simulate,
	}
	simOpts = struct {
		Wiper      string
		Step       int
		MaxRPM     float64
		Window     time.Duration
		NumWindows uint
		Refresh    uint32
	}{}
)

func simulate(cmd *cobra.Command, args []string) error {
	sclk := sim.NewLine(11, 0)
	ssz := sim.NewLine(8, 1)
	mosi := sim.NewLine(10, 0)
	dev := sim.NewPot(sim.DeviceConfig{Mode: mcp4151.Mode}, sclk, ssz, mosi)
	s, err := spi.New(sclk, ssz, mosi, nil, spi.WithMode(mcp4151.Mode), spi.WithTclk(0))
	if err != nil {
		return err
	}
	defer s.Close()
	pot := mcp4151.New(s)
	if err = pot.SetText(simOpts.Wiper); err != nil {
		return fmt.Errorf("can't set wiper '%s': %w", simOpts.Wiper, err)
	}

	t := r2c.New()
	refresh := false
	t.Display().SetHandler(simOpts.Refresh, func() { refresh = true })
	t.Display().Start()
	defer t.Display().Stop()

	rig, err := sim.NewRig(t, sim.NewMotor(t, 1, sim.PotSpeed(dev, simOpts.MaxRPM)), simOpts.Window)
	if err != nil {
		return err
	}
	m := tach.NewMeter(rig)
	ctx := context.Background()
	for i := uint(0); i < simOpts.NumWindows; i++ {
		r, err := m.Measure(ctx)
		if err != nil {
			return err
		}
		if refresh || i+1 == simOpts.NumWindows {
			refresh = false
			fmt.Printf("wiper:%4d ", pot.Current())
			printReading(r)
		}
		step := pot.Increment
		n := simOpts.Step
		if n < 0 {
			step, n = pot.Decrement, -n
		}
		for ; n > 0; n-- {
			if _, err = step(); err != nil {
				return err
			}
		}
		if pot.Current() != dev.Wiper() {
			logErr(cmd, fmt.Errorf("shadow %d disagrees with device %d", pot.Current(), dev.Wiper()))
		}
	}
	return nil
}
