// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package accel

import (
	"io"
	"log"
	"os"
)

type config struct {
	msg *log.Logger

	fifo struct {
		capacity uint32
		lo, hi   uint32
		custom   bool // thresholds explicitly set
	}

	maxNeurons uint32
	core       Core

	dma struct {
		mem     Memory
		latency int
	}

	irq func(line bool)
}

func newConfig() config {
	var cfg config
	cfg.msg = log.New(os.Stdout, "snn-sim: ", 0)
	cfg.fifo.capacity = 256
	cfg.maxNeurons = 1024
	cfg.core = Relay
	return cfg
}

// Option configures a simulated accelerator.
type Option func(*config)

// WithLogger sets the logger used to report state transitions.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithFIFOCapacity sets the capacity of both spike FIFOs.
// The capacity must be a power of two in [1, 65536].
func WithFIFOCapacity(n uint32) Option {
	return func(cfg *config) {
		cfg.fifo.capacity = n
	}
}

// WithFIFOThresholds sets the low-water mark of the ingress FIFO and the
// high-water mark of the egress FIFO.
// By default, they are a quarter and three quarters of the capacity.
func WithFIFOThresholds(lo, hi uint32) Option {
	return func(cfg *config) {
		cfg.fifo.lo = lo
		cfg.fifo.hi = hi
		cfg.fifo.custom = true
	}
}

// WithMaxNeurons sets the largest value accepted by the neuron_count register.
func WithMaxNeurons(n uint32) Option {
	return func(cfg *config) {
		cfg.maxNeurons = n
	}
}

// WithCore sets the compute path run at every timestep.
func WithCore(core Core) Option {
	return func(cfg *config) {
		cfg.core = core
	}
}

// Memory is the bus memory seen by the DMA engine.
type Memory interface {
	io.ReaderAt
	io.WriterAt
}

// WithMemory attaches a memory the DMA engine copies data into and from.
func WithMemory(mem Memory) Option {
	return func(cfg *config) {
		cfg.dma.mem = mem
	}
}

// WithDMALatency sets the number of clock ticks after which a started
// DMA transfer completes by itself.
// With a zero latency, transfers only complete through CompleteDMA.
func WithDMALatency(ticks int) Option {
	return func(cfg *config) {
		cfg.dma.latency = ticks
	}
}

// WithIRQHandler registers a function called whenever the interrupt line
// changes level.
func WithIRQHandler(f func(line bool)) Option {
	return func(cfg *config) {
		cfg.irq = f
	}
}
