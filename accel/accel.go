// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package accel simulates the SNN accelerator behind its register window.
//
// An Accelerator owns the control state machine, the ingress and egress
// spike FIFOs, the DMA engine and the interrupt dispatcher.
// All of that state sits behind a single mutex: every register access is
// atomic with respect to the device clock and to other register accesses.
package accel // import "github.com/go-lpc/snn/accel"

import (
	"fmt"
	"log"
	"math/bits"
	"sync"

	"github.com/go-lpc/snn/csr"
	"github.com/go-lpc/snn/internal/dma"
	"github.com/go-lpc/snn/internal/fifo"
	"github.com/go-lpc/snn/internal/irq"
)

const datapathWidth = 32 // in bits

// Accelerator is a simulated SNN accelerator.
type Accelerator struct {
	mu  sync.Mutex
	msg *log.Logger
	cfg config

	state State
	code  csr.Code

	host struct {
		epoch   uint32
		neurons uint32
		config  uint32
		thresh  uint32
		leak    uint32
		refr    uint32
		wbase   uint32
		sbase   uint32

		dma struct {
			src uint32
			dst uint32
			len uint32
		}
	}
	snap Params

	timestep uint32
	spikes   uint64
	consumed uint32 // ingress spikes consumed by the compute path
	emitted  uint32 // spikes pushed into the egress FIFO

	in  *fifo.FIFO
	out *fifo.FIFO
	lo  uint32 // ingress low-water mark
	hi  uint32 // egress high-water mark

	inLow   bool // ingress level below lo
	outHigh bool // egress level above hi

	dma     dma.Engine
	dmaLeft int // ticks before the in-flight transfer completes

	irq  irq.Dispatcher
	line bool // last level notified to the irq handler
}

// New creates a simulated accelerator in the Idle state,
// with all registers at their reset value.
func New(opts ...Option) (*Accelerator, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.maxNeurons == 0 {
		return nil, fmt.Errorf("accel: invalid maximum number of neurons")
	}
	if cfg.core == nil {
		cfg.core = Relay
	}

	in, err := fifo.New(cfg.fifo.capacity)
	if err != nil {
		return nil, fmt.Errorf("accel: could not create ingress fifo: %w", err)
	}
	out, err := fifo.New(cfg.fifo.capacity)
	if err != nil {
		return nil, fmt.Errorf("accel: could not create egress fifo: %w", err)
	}

	acc := &Accelerator{
		msg: cfg.msg,
		cfg: cfg,
		in:  in,
		out: out,
		lo:  cfg.fifo.capacity / 4,
		hi:  3 * cfg.fifo.capacity / 4,
	}
	if cfg.fifo.custom {
		acc.lo = cfg.fifo.lo
		acc.hi = cfg.fifo.hi
	}

	acc.host.neurons = csr.ResetNeuronCount
	if acc.host.neurons > cfg.maxNeurons {
		acc.host.neurons = cfg.maxNeurons
	}
	acc.host.thresh = csr.ResetThreshold
	acc.host.leak = csr.ResetLeakRate
	acc.host.refr = csr.ResetRefractory
	acc.snapshot()
	acc.rearm()

	return acc, nil
}

// State returns the current lifecycle state.
func (acc *Accelerator) State() State {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.state
}

// Line reports whether the interrupt line is asserted.
func (acc *Accelerator) Line() bool {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.irq.Line()
}

// unlock releases the accelerator and notifies the irq handler of a
// change of the interrupt line, outside of the lock.
func (acc *Accelerator) unlock() {
	line := acc.irq.Line()
	fire := acc.cfg.irq != nil && line != acc.line
	acc.line = line
	acc.mu.Unlock()

	if fire {
		acc.cfg.irq(line)
	}
}

// fail latches the code of a protocol error and raises the error interrupt.
func (acc *Accelerator) fail(err error) error {
	if code := csr.CodeOf(err); code != csr.CodeNone {
		acc.code = code
		acc.irq.Raise(csr.IRQ_ERROR)
	}
	return err
}

func (acc *Accelerator) snapshot() {
	acc.snap = Params{
		Config:      acc.host.config,
		EpochLen:    acc.host.epoch,
		NeuronCount: acc.host.neurons,
		Threshold:   acc.host.thresh,
		LeakRate:    acc.host.leak,
		Refractory:  acc.host.refr,
		WeightBase:  acc.host.wbase,
		StateBase:   acc.host.sbase,
	}
}

// rearm resets the FIFO threshold trackers to the current levels,
// without raising any interrupt.
func (acc *Accelerator) rearm() {
	acc.inLow = acc.in.Level() < acc.lo
	acc.outHigh = acc.out.Level() > acc.hi
}

// watermarks raises the FIFO threshold interrupts on level crossings.
func (acc *Accelerator) watermarks() {
	low := acc.in.Level() < acc.lo
	if low && !acc.inLow {
		acc.irq.Raise(csr.IRQ_FIFO_IN_LOW)
	}
	acc.inLow = low

	high := acc.out.Level() > acc.hi
	if high && !acc.outHigh {
		acc.irq.Raise(csr.IRQ_FIFO_OUT_HIGH)
	}
	acc.outHigh = high
}

func (acc *Accelerator) status() uint32 {
	var v uint32
	if acc.in.Full() {
		v |= csr.S_FIFO_IN_FULL
	}
	if acc.in.Empty() {
		v |= csr.S_FIFO_IN_EMPTY
	}
	if acc.out.Full() {
		v |= csr.S_FIFO_OUT_FULL
	}
	if acc.out.Empty() {
		v |= csr.S_FIFO_OUT_EMPTY
	}
	if acc.state.Active() {
		v |= csr.S_ACTIVE
	}
	if acc.in.Fault() {
		v |= csr.S_FIFO_IN_FAULT
	}
	if acc.out.Fault() {
		v |= csr.S_FIFO_OUT_FAULT
	}
	if acc.dma.Busy() {
		v |= csr.S_DMA_BUSY
	}
	v |= uint32(acc.code) << csr.SHIFT_ERROR_CODE
	return v
}

func (acc *Accelerator) configWord() uint32 {
	width := uint32(bits.TrailingZeros32(datapathWidth))
	depth := uint32(bits.TrailingZeros32(acc.in.Cap()))
	return acc.host.config&csr.CFG_MASK |
		width<<csr.SHIFT_CFG_WIDTH |
		depth<<csr.SHIFT_CFG_DEPTH
}

func (acc *Accelerator) debug0() uint32 {
	v := uint32(acc.state) & 0xf
	v |= (acc.snap.Config & 0xf) << csr.SHIFT_DEBUG_CONFIG
	if acc.irq.Line() {
		v |= csr.DEBUG_LINE
	}
	return v
}
