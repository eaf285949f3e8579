// SPDX-License-Identifier: MIT
//
// Copyright © 2023 Carlos Ramirez.

//go:build linux
// +build linux

package main

import (
	"fmt"
	"time"

	"github.com/warthog618/config"
	"github.com/warthog618/config/blob"
	"github.com/warthog618/config/blob/decoder/json"
	"github.com/warthog618/config/dict"
	"github.com/warthog618/config/env"
	"github.com/warthog618/config/pflag"
	"github.com/warthog618/gpiod"

	"github.com/ecramirez94/r2c/spi"
	"github.com/ecramirez94/r2c/spi/mcp4151"
)

// This example sweeps the wiper of an MCP4151 connected to the board by three
// data lines - CS, SCK and SDI. The device is wired directly, without
// isolation, so it is driven in SPI mode 0 with an active low chip select.
// The default line assignments are defined in loadConfig, but can be altered
// via configuration (env, flag or config file).
// All lines are outputs so do not run this example on a board where those
// lines serve other purposes.
func main() {
	cfg := loadConfig()
	c, err := gpiod.NewChip(cfg.MustGet("chip").String())
	if err != nil {
		panic(err)
	}
	defer c.Close()
	cs, err := c.RequestLine(int(cfg.MustGet("cs").Int()), gpiod.AsOutput(1))
	if err != nil {
		panic(err)
	}
	sck, err := c.RequestLine(int(cfg.MustGet("sck").Int()), gpiod.AsOutput(0))
	if err != nil {
		panic(err)
	}
	sdi, err := c.RequestLine(int(cfg.MustGet("sdi").Int()), gpiod.AsOutput(0))
	if err != nil {
		panic(err)
	}
	s, err := spi.New(sck, cs, sdi, nil,
		spi.WithMode(mcp4151.Mode),
		spi.WithTclk(cfg.MustGet("tclk").Duration()))
	if err != nil {
		panic(err)
	}
	defer s.Close()
	pot := mcp4151.New(s)
	if err = pot.Set(0); err != nil {
		panic(err)
	}
	period := cfg.MustGet("period").Duration()
	for {
		n, err := pot.Increment()
		if err != nil {
			panic(err)
		}
		fmt.Printf("wiper=%d\n", n)
		if n == mcp4151.MaxCount {
			break
		}
		time.Sleep(period)
	}
}

func loadConfig() *config.Config {
	defaultConfig := map[string]interface{}{
		"chip":   "gpiochip0",
		"tclk":   "2us",
		"period": "20ms",
		"cs":     8,
		"sck":    11,
		"sdi":    10,
	}
	def := dict.New(dict.WithMap(defaultConfig))
	// highest priority sources first - flags override environment
	cfg := config.New(
		pflag.New(pflag.WithFlags(
			[]pflag.Flag{{Short: 'c', Name: "config-file"}})),
		env.New(env.WithEnvPrefix("MCP4151_")),
		config.WithDefault(def))
	cfg.Append(
		blob.NewConfigFile(cfg, "config.file", "mcp4151.json", json.NewDecoder()))
	cfg = cfg.GetConfig("", config.WithMust)
	return cfg
}
