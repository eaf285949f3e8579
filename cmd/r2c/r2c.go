// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

//go:build linux
// +build linux

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/gpiod"
	"golang.org/x/sys/unix"

	"github.com/ecramirez94/r2c/spi"
	"github.com/ecramirez94/r2c/spi/mcp4151"
)

var version = "undefined"

var rootCmd = &cobra.Command{
	Use:   "r2c",
	Short: "r2c measures spindle speed and sets the speed control potentiometer",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

func main() {
	// glog flags are parsed by cobra.
	flag.CommandLine.Parse([]string{})
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		glog.Flush()
		os.Exit(1)
	}
}

func logErr(cmd *cobra.Command, err error) {
	fmt.Fprintf(os.Stderr, "r2c %s: %s\n", cmd.Name(), err)
}

// loadConfig returns the board configuration.
//
// The defaults may be overridden by environment variables, prefixed R2C_,
// or by a JSON config file.
func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"chip":             "gpiochip0",
		"spi.sclk":         11,
		"spi.csz":          8,
		"spi.mosi":         10,
		"spi.miso":         -1, // no read path
		"spi.tclk":         "2us",
		"spi.mode":         mcp4151.IsolatedMode,
		"spi.csactivehigh": true,
		"spi.invertmosi":   true,
		"hall.line":        17,
		"hall.ppr":         1,
		"hall.window":      "200ms",
	}
	def := dict.New(dict.WithMap(defaultConfig))
	// highest priority sources first - environment overrides the file
	cfg := config.New(
		env.New(env.WithEnvPrefix("R2C_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "r2c.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}

// lockMemory keeps the process resident to limit jitter while bit bashing.
func lockMemory() {
	if err := unix.Mlockall(unix.MCL_CURRENT | unix.MCL_FUTURE); err != nil {
		glog.Warningf("unable to lock memory: %v", err)
	}
}

func openChip(cfg *config.Config) (*gpiod.Chip, error) {
	name := cfg.MustGet("chip").String()
	c, err := gpiod.NewChip(name, gpiod.WithConsumer("r2c"))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return c, nil
}

// openPot requests the SPI lines from the chip and returns the driver for
// the potentiometer, along with the SPI to close when done.
func openPot(c *gpiod.Chip, cfg *config.Config) (*mcp4151.MCP4151, *spi.SPI, error) {
	var ll []*gpiod.Line
	release := func() {
		for _, l := range ll {
			l.Close()
		}
	}
	request := func(key string, opt gpiod.LineReqOption) (*gpiod.Line, error) {
		offset := int(cfg.MustGet(key).Int())
		l, err := c.RequestLine(offset, opt)
		if err != nil {
			return nil, fmt.Errorf("request %s(%d): %w", key, offset, err)
		}
		ll = append(ll, l)
		return l, nil
	}
	mode := int(cfg.MustGet("spi.mode").Int())
	csActiveHigh := cfg.MustGet("spi.csactivehigh").Bool()
	csIdle := 1
	if csActiveHigh {
		csIdle = 0
	}
	ssz, err := request("spi.csz", gpiod.AsOutput(csIdle))
	if err != nil {
		release()
		return nil, nil, err
	}
	sclk, err := request("spi.sclk", gpiod.AsOutput(mode>>1))
	if err != nil {
		release()
		return nil, nil, err
	}
	mosi, err := request("spi.mosi", gpiod.AsOutput(0))
	if err != nil {
		release()
		return nil, nil, err
	}
	var miso spi.Line
	if cfg.MustGet("spi.miso").Int() >= 0 {
		l, err := request("spi.miso", gpiod.AsInput)
		if err != nil {
			release()
			return nil, nil, err
		}
		miso = l
	}
	options := []spi.Option{
		spi.WithMode(mode),
		spi.WithTclk(cfg.MustGet("spi.tclk").Duration()),
	}
	if csActiveHigh {
		options = append(options, spi.WithCSActiveHigh())
	}
	if cfg.MustGet("spi.invertmosi").Bool() {
		options = append(options, spi.WithInvertedMosi())
	}
	s, err := spi.New(sclk, ssz, mosi, miso, options...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return mcp4151.New(s), s, nil
}
