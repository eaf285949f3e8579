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
	"github.com/warthog618/gpiod"
)

func init() {
	monCmd.Flags().UintVarP(&monOpts.NumEvents, "num-events", "n", 0, "exit after n pulses")
	monCmd.Flags().BoolVarP(&monOpts.Quiet, "quiet", "q", false, "don't display pulse details")
	monCmd.SetHelpTemplate(monCmd.HelpTemplate() + extendedMonHelp)
	rootCmd.AddCommand(monCmd)
}

var extendedMonHelp = `
Each falling edge on the Hall sensor line is reported with its kernel
timestamp and the interval since the previous pulse.
`

var (
	monCmd = &cobra.Command{
		Use:   "mon",
		Short: "Monitor the Hall sensor line",
		Long:  `Wait for pulses from the Hall sensor and print them to standard output.`,
		Args:  cobra.NoArgs,
		RunE:  mon,
	}
	monOpts = struct {
		Quiet     bool
		NumEvents uint
	}{}
)

func mon(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	c, err := openChip(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	evtchan := make(chan gpiod.LineEvent, 64)
	eh := func(evt gpiod.LineEvent) {
		select {
		case evtchan <- evt:
		default:
		}
	}
	offset := int(cfg.MustGet("hall.line").Int())
	l, err := c.RequestLine(offset,
		gpiod.WithPullUp,
		gpiod.WithFallingEdge,
		gpiod.WithEventHandler(eh))
	if err != nil {
		return fmt.Errorf("request hall.line(%d): %w", offset, err)
	}
	defer l.Close()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	count := monWait(ctx, evtchan)
	fmt.Printf("pulses: %d\n", count)
	return nil
}

func monWait(ctx context.Context, evtchan <-chan gpiod.LineEvent) uint {
	count := uint(0)
	var last time.Duration
	for {
		select {
		case evt := <-evtchan:
			if !monOpts.Quiet {
				var dt time.Duration
				if count > 0 {
					dt = evt.Timestamp - last
				}
				fmt.Printf("pulse:%3d %v +%v\n", evt.Offset, evt.Timestamp, dt)
			}
			last = evt.Timestamp
			count++
			if monOpts.NumEvents > 0 && count >= monOpts.NumEvents {
				return count
			}
		case <-ctx.Done():
			return count
		}
	}
}
