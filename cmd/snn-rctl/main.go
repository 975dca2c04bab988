// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command snn-rctl starts a TDAQ process driving an SNN accelerator.
//
// Without -base, snn-rctl drives a simulated accelerator clocked by the
// -period flag. With -db, configuration profiles are retrieved from the
// condition database and runs are recorded into it.
//
// Usage:
//
//	$> snn-rctl -id snn-rctl -rc-addr :44000 -db snn
package main // import "github.com/go-lpc/snn/cmd/snn-rctl"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/config"
	"github.com/go-daq/tdaq/flags"
	"github.com/go-lpc/snn/accel"
	"github.com/go-lpc/snn/conddb"
	"github.com/go-lpc/snn/csr"
	"github.com/go-lpc/snn/driver"
	"github.com/go-lpc/snn/rctl"
	"golang.org/x/sync/errgroup"
)

type params struct {
	devmem string
	base   int64
	size   int64
	period time.Duration // timestep period of the simulated accelerator
	poll   time.Duration // polling period of the egress FIFO
	batch  int
	db     string
}

func main() {
	var cfg params
	flag.StringVar(&cfg.devmem, "devmem", "/dev/mem", "path to the CSR-mapped device")
	flag.Int64Var(&cfg.base, "base", 0, "physical base address of the CSR block (0: simulated accelerator)")
	flag.Int64Var(&cfg.size, "size", csr.WindowSize, "size of the mapped register window")
	flag.DurationVar(&cfg.period, "period", time.Millisecond, "timestep period of the simulated accelerator")
	flag.DurationVar(&cfg.poll, "poll", 10*time.Millisecond, "polling period of the output spike FIFO")
	flag.IntVar(&cfg.batch, "batch", 256, "maximum number of spikes per output frame")
	flag.StringVar(&cfg.db, "db", "", "name of the condition database (empty: default profile only)")

	cmd := flags.New()

	err := run(context.Background(), cmd, cfg, os.Stdout)
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

// node is an SNN accelerator device, with its optional simulator clock.
type node struct {
	dev   *driver.Device
	clock func(ctx context.Context) error
	db    *conddb.DB
}

func (n *node) close() error {
	if n.db != nil {
		_ = n.db.Close()
	}
	return n.dev.Close()
}

func newNode(cfg params, w io.Writer) (*node, error) {
	var (
		n   node
		err error
	)

	msg := log.New(w, "snn: ", 0)
	switch cfg.base {
	case 0:
		acc, err := accel.New(accel.WithLogger(log.New(w, "snn-sim: ", 0)))
		if err != nil {
			return nil, fmt.Errorf("could not create simulated accelerator: %w", err)
		}
		n.dev = driver.New(acc, driver.WithLogger(msg))
		n.clock = func(ctx context.Context) error {
			return acc.Run(ctx, cfg.period)
		}
	default:
		n.dev, err = driver.Open(cfg.devmem, cfg.base, cfg.size, driver.WithLogger(msg))
		if err != nil {
			return nil, fmt.Errorf("could not open device: %w", err)
		}
	}

	if cfg.db != "" {
		n.db, err = conddb.Open(cfg.db)
		if err != nil {
			_ = n.dev.Close()
			return nil, fmt.Errorf("could not open condition db: %w", err)
		}
	}

	return &n, nil
}

func (n *node) server(cfg params) *rctl.Server {
	opts := []rctl.Option{
		rctl.WithPollPeriod(cfg.poll),
		rctl.WithBatch(cfg.batch),
	}
	if n.db != nil {
		opts = append(opts, rctl.WithStore(n.db))
	}
	return rctl.New(n.dev, opts...)
}

func run(ctx context.Context, cmd config.Process, cfg params, w io.Writer) error {
	n, err := newNode(cfg, w)
	if err != nil {
		return err
	}
	defer n.close()

	dev := n.server(cfg)

	srv := tdaq.New(cmd, w)
	srv.CmdHandle("/config", dev.OnConfig)
	srv.CmdHandle("/init", dev.OnInit)
	srv.CmdHandle("/reset", dev.OnReset)
	srv.CmdHandle("/start", dev.OnStart)
	srv.CmdHandle("/stop", dev.OnStop)
	srv.CmdHandle("/quit", dev.OnQuit)

	srv.InputHandle("/spikes-in", dev.SpikesIn)
	srv.OutputHandle("/spikes-out", dev.SpikesOut)

	srv.RunHandle(dev.Loop)

	grp, ctx := errgroup.WithContext(ctx)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if n.clock != nil {
		grp.Go(func() error {
			err := n.clock(ctx)
			if err != nil && ctx.Err() != nil {
				return nil
			}
			return err
		})
	}
	grp.Go(func() error {
		// the simulator clock stops with the run-control process.
		defer cancel()
		return srv.Run(ctx)
	})
	return grp.Wait()
}
