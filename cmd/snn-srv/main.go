// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command snn-srv serves an SNN accelerator over TCP and HTTP.
//
// By default, snn-srv drives a simulated accelerator clocked by the
// -period flag. With -base, snn-srv drives the accelerator whose registers
// are mapped at that physical address of -devmem.
//
// Register accesses can be recorded into a SQLite database with -trace.
package main // import "github.com/go-lpc/snn/cmd/snn-srv"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-lpc/snn/accel"
	"github.com/go-lpc/snn/csr"
	"github.com/go-lpc/snn/driver"
	"github.com/go-lpc/snn/internal/mmap"
	"github.com/go-lpc/snn/internal/trace"
	"golang.org/x/sync/errgroup"
)

type config struct {
	addr   string // JSON control server address
	http   string // HTTP monitor address
	devmem string
	base   int64
	size   int64
	period time.Duration
	fifo   uint
	trace  string
}

func main() {
	log.SetPrefix("snn-srv: ")
	log.SetFlags(0)

	var cfg config
	flag.StringVar(&cfg.addr, "addr", ":8866", "[ip]:port of the control server")
	flag.StringVar(&cfg.http, "http", ":8080", "[ip]:port of the HTTP monitor (empty to disable)")
	flag.StringVar(&cfg.devmem, "devmem", "/dev/mem", "path to the CSR-mapped device")
	flag.Int64Var(&cfg.base, "base", 0, "physical base address of the CSR block (0: simulated accelerator)")
	flag.Int64Var(&cfg.size, "size", csr.WindowSize, "size of the mapped register window")
	flag.DurationVar(&cfg.period, "period", time.Millisecond, "timestep period of the simulated accelerator")
	flag.UintVar(&cfg.fifo, "fifo", 256, "FIFO capacity of the simulated accelerator")
	flag.StringVar(&cfg.trace, "trace", "", "SQLite file where to record register accesses")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := run(ctx, cfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%+v", err)
	}
}

func run(ctx context.Context, cfg config) error {
	var (
		win driver.Window
		acc *accel.Accelerator
		err error
	)

	switch cfg.base {
	case 0:
		acc, err = accel.New(accel.WithFIFOCapacity(uint32(cfg.fifo)))
		if err != nil {
			return fmt.Errorf("could not create simulated accelerator: %w", err)
		}
		win = acc
	default:
		h, err := mmap.Open(cfg.devmem, cfg.base, cfg.size)
		if err != nil {
			return fmt.Errorf("could not map register window: %w", err)
		}
		win = h
	}

	if cfg.trace != "" {
		rec, err := trace.New(cfg.trace, win)
		if err != nil {
			return fmt.Errorf("could not create register trace: %w", err)
		}
		log.Printf("recording register accesses into %q (session=%s)", cfg.trace, rec.Session())
		win = rec
	}

	dev := driver.New(win)
	defer func() {
		err := dev.Close()
		if err != nil {
			log.Printf("could not close device: %+v", err)
		}
	}()

	grp, ctx := errgroup.WithContext(ctx)
	if acc != nil {
		grp.Go(func() error {
			return acc.Run(ctx, cfg.period)
		})
	}

	grp.Go(func() error {
		log.Printf("serving control requests on %q...", cfg.addr)
		errc := make(chan error, 1)
		go func() { errc <- driver.Serve(cfg.addr, dev) }()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errc:
			return err
		}
	})

	if cfg.http != "" {
		srv := &http.Server{
			Addr:    cfg.http,
			Handler: driver.NewHandler(dev),
		}
		grp.Go(func() error {
			log.Printf("serving monitor on %q...", cfg.http)
			err := srv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		grp.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	return grp.Wait()
}
