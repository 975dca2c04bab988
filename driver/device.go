// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-lpc/snn/conddb"
	"github.com/go-lpc/snn/csr"
)

var (
	// ErrDMAFailed is returned when a DMA transfer ends in error.
	ErrDMAFailed = errors.New("snn: dma transfer failed")
)

// Command writes the provided command bits into the control register.
func (dev *Device) Command(cmd uint32) error {
	dev.begin()
	dev.regs.ctrl.w(cmd & csr.CMD_MASK)
	return dev.end()
}

// Reset returns the accelerator to Idle, clearing counters, FIFOs,
// interrupts and the in-flight DMA transfer.
func (dev *Device) Reset() error { return dev.Command(csr.CMD_RESET) }

// Start starts spike processing.
func (dev *Device) Start() error { return dev.Command(csr.CMD_START) }

// Stop stops spike processing.
func (dev *Device) Stop() error { return dev.Command(csr.CMD_STOP) }

// Abort aborts spike processing, keeping counters for inspection.
func (dev *Device) Abort() error { return dev.Command(csr.CMD_ABORT) }

// SingleStep runs exactly one timestep.
func (dev *Device) SingleStep() error { return dev.Command(csr.CMD_SINGLE_STEP) }

// FlushFIFOs empties both spike FIFOs and clears their latched flags.
func (dev *Device) FlushFIFOs() error { return dev.Command(csr.CMD_FIFO_FLUSH) }

// Configure writes a configuration profile into the accelerator registers.
// The config register is written last.
func (dev *Device) Configure(p conddb.Profile) error {
	dev.begin()
	dev.msg.Printf("configuring profile %q (neurons=%d, epoch=%d, config=0x%x)",
		p.Name, p.NeuronCount, p.EpochLen, p.Config,
	)
	dev.regs.neurons.w(p.NeuronCount)
	dev.regs.epoch.w(p.EpochLen)
	dev.regs.lif.thresh.w(p.Threshold)
	dev.regs.lif.leak.w(p.LeakRate)
	dev.regs.lif.refr.w(p.Refractory)
	dev.regs.lif.wbase.w(p.WeightBase)
	dev.regs.lif.sbase.w(p.StateBase)
	dev.regs.irq.mask.w(p.IRQMask)
	dev.regs.cfg.w(p.Config & csr.CFG_MASK)
	err := dev.end()
	if err != nil {
		return fmt.Errorf("snn: could not configure profile %q: %w", p.Name, err)
	}
	return nil
}

// SetEnable sets or clears the enable bit of the config register.
func (dev *Device) SetEnable(enable bool) error {
	dev.begin()
	cfg := dev.regs.cfg.r() & csr.CFG_MASK
	switch {
	case enable:
		cfg |= csr.CFG_ENABLE
	default:
		cfg &^= csr.CFG_ENABLE
	}
	dev.regs.cfg.w(cfg)
	return dev.end()
}

// Peek reads the named register.
func (dev *Device) Peek(name string) (uint32, error) {
	reg, ok := csr.Layout.ByName(name)
	if !ok {
		return 0, fmt.Errorf("snn: unknown register %q: %w", name, csr.ErrInvalidRegister)
	}
	if !reg.Readable() {
		return 0, fmt.Errorf("snn: register %q is write-only: %w", name, csr.ErrInvalidRegister)
	}
	dev.begin()
	v := dev.regs.byName[reg.Name].r()
	return v, dev.end()
}

// Poke writes v into the named register.
func (dev *Device) Poke(name string, v uint32) error {
	reg, ok := csr.Layout.ByName(name)
	if !ok {
		return fmt.Errorf("snn: unknown register %q: %w", name, csr.ErrInvalidRegister)
	}
	if !reg.Writable() {
		return fmt.Errorf("snn: register %q: %w", name, csr.ErrReadOnlyRegister)
	}
	dev.begin()
	dev.regs.byName[reg.Name].w(v & reg.Mask())
	return dev.end()
}

// PushSpike pushes one spike into the ingress FIFO.
func (dev *Device) PushSpike(id uint32) error {
	dev.begin()
	dev.regs.fifo.in.w(id)
	return dev.end()
}

// PushSpikes pushes spikes into the ingress FIFO, stopping at the first
// failure. PushSpikes returns the number of spikes pushed.
func (dev *Device) PushSpikes(ids []uint32) (int, error) {
	dev.begin()
	n := 0
	for _, id := range ids {
		dev.regs.fifo.in.w(id)
		if dev.err != nil {
			break
		}
		n++
	}
	return n, dev.end()
}

// PopSpike pops one spike from the egress FIFO.
func (dev *Device) PopSpike() (uint32, error) {
	dev.begin()
	v := dev.regs.fifo.out.r()
	return v, dev.end()
}

// PopSpikes pops at most limit spikes from the egress FIFO.
// PopSpikes never pops more spikes than the FIFO holds.
func (dev *Device) PopSpikes(limit int) ([]uint32, error) {
	if limit < 0 {
		return nil, fmt.Errorf("snn: invalid number of spikes %d: %w", limit, csr.ErrOutOfRange)
	}
	dev.begin()
	n := int(csr.FIFOLevel(dev.regs.fifo.outCSR.r()))
	if n > limit {
		n = limit
	}
	out := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		v := dev.regs.fifo.out.r()
		if dev.err != nil {
			break
		}
		out = append(out, v)
	}
	return out, dev.end()
}

// StartDMA stages the transfer parameters and starts the DMA engine.
func (dev *Device) StartDMA(src, dst, n uint32) error {
	dev.begin()
	dev.regs.dma.src.w(src)
	dev.regs.dma.dst.w(dst)
	dev.regs.dma.len.w(n)
	dev.regs.dma.ctrl.w(csr.DMA_CMD_START)
	err := dev.end()
	if err != nil {
		return fmt.Errorf("snn: could not start dma (src=0x%x, dst=0x%x, len=%d): %w", src, dst, n, err)
	}
	return nil
}

// AbortDMA aborts the in-flight DMA transfer, if any.
func (dev *Device) AbortDMA() error {
	dev.begin()
	dev.regs.dma.ctrl.w(csr.DMA_CMD_ABORT)
	return dev.end()
}

// DMAStatus returns the status of the DMA engine.
func (dev *Device) DMAStatus() (DMAStatus, error) {
	dev.begin()
	v := dev.regs.dma.csr.r()
	return newDMAStatus(v), dev.end()
}

// WaitDMA polls the DMA engine until it is not busy anymore or ctx is done.
// WaitDMA never cancels the transfer.
func (dev *Device) WaitDMA(ctx context.Context) (DMAStatus, error) {
	tck := time.NewTicker(dev.cfg.poll)
	defer tck.Stop()

	for {
		st, err := dev.DMAStatus()
		if err != nil {
			return st, err
		}
		if !st.Busy {
			if st.Error {
				return st, ErrDMAFailed
			}
			return st, nil
		}

		select {
		case <-ctx.Done():
			return st, fmt.Errorf("snn: could not wait for dma: %w", ctx.Err())
		case <-tck.C:
		}
	}
}

// IRQStatus returns the latched interrupt events.
func (dev *Device) IRQStatus() (uint32, error) {
	dev.begin()
	v := dev.regs.irq.status.r()
	return v, dev.end()
}

// SetIRQMask sets the interrupt mask.
func (dev *Device) SetIRQMask(mask uint32) error {
	dev.begin()
	dev.regs.irq.mask.w(mask)
	return dev.end()
}

// ClearIRQ clears the provided latched interrupt events.
func (dev *Device) ClearIRQ(bits uint32) error {
	dev.begin()
	dev.regs.irq.status.w(bits)
	return dev.end()
}

// AckIRQ reads the latched interrupt events and clears them.
// AckIRQ returns the events it cleared.
func (dev *Device) AckIRQ() (uint32, error) {
	dev.begin()
	v := dev.regs.irq.status.r()
	if v != 0 {
		dev.regs.irq.status.w(v)
	}
	return v, dev.end()
}

// WatchIRQ acknowledges interrupt events as they are latched and hands
// them to f, until ctx is done.
func (dev *Device) WatchIRQ(ctx context.Context, f func(events uint32)) error {
	tck := time.NewTicker(dev.cfg.poll)
	defer tck.Stop()

	for {
		v, err := dev.AckIRQ()
		if err != nil {
			return fmt.Errorf("snn: could not acknowledge irq: %w", err)
		}
		if v != 0 {
			f(v)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tck.C:
		}
	}
}

// Status returns the decoded status register.
func (dev *Device) Status() (Status, error) {
	dev.begin()
	v := dev.regs.state.r()
	return newStatus(v), dev.end()
}

// FIFOStatus returns the status of the ingress and egress FIFOs.
func (dev *Device) FIFOStatus() (in, out FIFOStatus, err error) {
	dev.begin()
	in = newFIFOStatus(dev.regs.fifo.inCSR.r())
	out = newFIFOStatus(dev.regs.fifo.outCSR.r())
	return in, out, dev.end()
}

// Timestep returns the current timestep.
func (dev *Device) Timestep() (uint32, error) {
	dev.begin()
	v := dev.regs.cnt.timestep.r()
	return v, dev.end()
}

// SpikeCount returns the 64-bit spike counter.
// The high word is read on both sides of the low word so that a carry
// between the two reads is never observed as a torn value.
func (dev *Device) SpikeCount() (uint64, error) {
	dev.begin()
	hi := dev.regs.cnt.spikeHi.r()
	lo := dev.regs.cnt.spikeLo.r()
	if hi2 := dev.regs.cnt.spikeHi.r(); hi2 != hi {
		hi = hi2
		lo = dev.regs.cnt.spikeLo.r()
	}
	return uint64(hi)<<32 | uint64(lo), dev.end()
}
