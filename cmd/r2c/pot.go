// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

//go:build linux
// +build linux

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecramirez94/r2c/spi/mcp4151"
)

func init() {
	potCmd.PersistentFlags().IntVarP(&potOpts.From, "from", "f", mcp4151.PowerOnCount, "wiper position to write before stepping")
	potIncCmd.Flags().IntVarP(&potOpts.Steps, "steps", "n", 1, "number of steps")
	potDecCmd.Flags().IntVarP(&potOpts.Steps, "steps", "n", 1, "number of steps")
	potCmd.SetHelpTemplate(potCmd.HelpTemplate() + extendedPotHelp)
	potCmd.AddCommand(potSetCmd, potIncCmd, potDecCmd)
	rootCmd.AddCommand(potCmd)
}

var (
	potCmd = &cobra.Command{
		Use:   "pot",
		Short: "Set the speed control potentiometer",
	}
	potSetCmd = &cobra.Command{
		Use:     "set <count>",
		Short:   "Set the wiper to a position",
		Args:    cobra.ExactArgs(1),
		RunE:    potSet,
		Example: "  r2c pot set 128",
	}
	potIncCmd = &cobra.Command{
		Use:   "inc",
		Short: "Step the wiper up",
		Args:  cobra.NoArgs,
		RunE:  potStep(true),
	}
	potDecCmd = &cobra.Command{
		Use:   "dec",
		Short: "Step the wiper down",
		Args:  cobra.NoArgs,
		RunE:  potStep(false),
	}
	potOpts = struct {
		From  int
		Steps int
	}{}
)

var extendedPotHelp = `
Counts:
  The wiper has 257 positions, 0 to 256.

Note that the device cannot be read back, so stepping starts from the
position given by --from, which is written first.
`

func potSet(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	lockMemory()
	c, err := openChip(cfg)
	if err != nil {
		return err
	}
	defer c.Close()
	pot, s, err := openPot(c, cfg)
	if err != nil {
		return err
	}
	defer s.Close()
	if err = pot.SetText(args[0]); err != nil {
		return fmt.Errorf("can't set '%s': %w", args[0], err)
	}
	fmt.Println(pot.Current())
	return nil
}

func potStep(up bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		lockMemory()
		c, err := openChip(cfg)
		if err != nil {
			return err
		}
		defer c.Close()
		pot, s, err := openPot(c, cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		if err = pot.Set(potOpts.From); err != nil {
			return fmt.Errorf("can't set '%d': %w", potOpts.From, err)
		}
		step := pot.Decrement
		if up {
			step = pot.Increment
		}
		for i := 0; i < potOpts.Steps; i++ {
			if _, err = step(); err != nil {
				logErr(cmd, err)
				break
			}
		}
		fmt.Println(pot.Current())
		return err
	}
}
