// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package accel

import (
	"fmt"

	"github.com/go-lpc/snn/csr"
)

// command processes the bits of a control register write, in ascending
// bit order. An illegal bit does not block the following ones.
// Only the first failing bit latches its error code and is returned.
func (acc *Accelerator) command(v uint32) error {
	var (
		first   error
		latched bool
	)
	latch := func(err error) {
		if first == nil {
			first = err
		}
		if !latched {
			acc.fail(err)
			latched = true
		}
	}

	for bit := uint32(1); bit <= csr.CMD_MASK; bit <<= 1 {
		if v&bit == 0 {
			continue
		}
		switch bit {
		case csr.CMD_START:
			if err := acc.start(); err != nil {
				latch(fmt.Errorf("accel: could not start from %v: %w", acc.state, err))
			}
		case csr.CMD_STOP:
			if err := acc.stop(); err != nil {
				latch(fmt.Errorf("accel: could not stop from %v: %w", acc.state, err))
			}
		case csr.CMD_ABORT:
			if acc.state == Idle {
				latch(fmt.Errorf("accel: could not abort from %v: %w", acc.state, csr.ErrIllegalTransition))
				continue
			}
			acc.msg.Printf("abort from %v (timestep=%d, spikes=%d)", acc.state, acc.timestep, acc.spikes)
			acc.state = Aborted
			if !latched {
				acc.fail(csr.ErrAborted)
			}
		case csr.CMD_RESET:
			acc.reset()
			latched = false
		case csr.CMD_SINGLE_STEP:
			if !acc.state.idle() {
				latch(fmt.Errorf("accel: could not single-step from %v: %w", acc.state, csr.ErrIllegalTransition))
				continue
			}
			acc.snapshot()
			acc.step()
		case csr.CMD_FIFO_FLUSH:
			acc.flush()
		}
	}
	return first
}

func (acc *Accelerator) start() error {
	if !acc.state.idle() {
		return csr.ErrIllegalTransition
	}
	if acc.host.config&csr.CFG_ENABLE == 0 {
		return csr.ErrNotEnabled
	}
	acc.snapshot()
	acc.timestep = 0
	acc.state = Running
	acc.msg.Printf("start (epoch=%d, neurons=%d)", acc.snap.EpochLen, acc.snap.NeuronCount)
	return nil
}

// stop moves a running accelerator to Stopped.
// Timestep passes run under the accelerator lock, so no pass is ever in
// flight when a command is processed and Stopping is never observable.
func (acc *Accelerator) stop() error {
	if !acc.state.Active() {
		return csr.ErrIllegalTransition
	}
	acc.state = Stopped
	acc.msg.Printf("stop (timestep=%d, spikes=%d)", acc.timestep, acc.spikes)
	return nil
}

func (acc *Accelerator) reset() {
	acc.state = Resetting
	if acc.dma.Busy() {
		acc.msg.Printf("reset: aborting %v", acc.dma.Transfer())
	}
	acc.dma.Reset()
	acc.dmaLeft = 0

	acc.in.Flush()
	acc.in.ClearFlags()
	acc.out.Flush()
	acc.out.ClearFlags()

	acc.timestep = 0
	acc.spikes = 0
	acc.consumed = 0
	acc.emitted = 0
	acc.code = csr.CodeNone
	acc.irq.Reset()

	acc.snapshot()
	acc.rearm()
	acc.state = Idle
}

func (acc *Accelerator) flush() {
	acc.in.Flush()
	acc.in.ClearFlags()
	acc.out.Flush()
	acc.out.ClearFlags()
	acc.rearm()
}

// dmaCommand processes the bits of a dma_control register write.
func (acc *Accelerator) dmaCommand(v uint32) error {
	var first error
	if v&csr.DMA_CMD_START != 0 {
		err := acc.startDMA()
		if err != nil {
			first = fmt.Errorf("accel: could not start dma: %w", acc.fail(err))
		}
	}
	if v&csr.DMA_CMD_ABORT != 0 {
		tr := acc.dma.Transfer()
		if acc.dma.Abort() {
			acc.dmaLeft = 0
			acc.irq.Raise(csr.IRQ_DMA_DONE | csr.IRQ_ERROR)
			acc.msg.Printf("abort %v", tr)
		}
	}
	return first
}

func (acc *Accelerator) startDMA() error {
	err := acc.dma.Configure(acc.host.dma.src, acc.host.dma.dst, acc.host.dma.len)
	if err != nil {
		return err
	}
	const ready = csr.CFG_ENABLE | csr.CFG_DMA_ENABLE
	tr, err := acc.dma.Start(acc.host.config&ready == ready)
	if err != nil {
		return err
	}
	acc.dmaLeft = acc.cfg.dma.latency
	acc.msg.Printf("start %v", tr)
	return nil
}

// finishDMA completes the in-flight transfer, if any.
func (acc *Accelerator) finishDMA(ok bool) bool {
	tr := acc.dma.Transfer()
	if !acc.dma.Complete(ok) {
		return false
	}
	acc.dmaLeft = 0
	events := uint32(csr.IRQ_DMA_DONE)
	if !ok {
		events |= csr.IRQ_ERROR
		acc.msg.Printf("%v failed", tr)
	}
	acc.irq.Raise(events)
	return true
}

// CompleteDMA signals the end of the data movement of the in-flight DMA
// transfer, successful or not.
// CompleteDMA reports whether a transfer was in flight.
func (acc *Accelerator) CompleteDMA(ok bool) bool {
	acc.mu.Lock()
	defer acc.unlock()
	return acc.finishDMA(ok)
}
