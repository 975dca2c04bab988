// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"io"

	"github.com/go-lpc/snn/csr"
)

type rwer interface {
	io.ReaderAt
	io.WriterAt
}

type reg32 struct {
	r func() uint32
	w func(v uint32)
}

func newReg32(dev *Device, rw rwer, offset int64) reg32 {
	return reg32{
		r: func() uint32 {
			return dev.readU32(rw, offset)
		},
		w: func(v uint32) {
			dev.writeU32(rw, offset, v)
		},
	}
}

type pins struct {
	ctrl    reg32
	state   reg32
	epoch   reg32
	neurons reg32
	cfg     reg32

	irq struct {
		mask   reg32
		status reg32
	}

	cnt struct {
		timestep reg32
		spikeLo  reg32
		spikeHi  reg32
	}

	fifo struct {
		in     reg32
		inCSR  reg32
		out    reg32
		outCSR reg32
	}

	dma struct {
		src  reg32
		dst  reg32
		len  reg32
		ctrl reg32
		csr  reg32
	}

	lif struct {
		wbase  reg32
		sbase  reg32
		thresh reg32
		leak   reg32
		refr   reg32
	}

	dbg [2]reg32

	byName map[string]reg32
}

func (dev *Device) setupRegisters(rw rwer) {
	regs := &dev.regs
	regs.ctrl = newReg32(dev, rw, csr.CONTROL)
	regs.state = newReg32(dev, rw, csr.STATUS)
	regs.epoch = newReg32(dev, rw, csr.EPOCH_LEN)
	regs.neurons = newReg32(dev, rw, csr.NEURON_COUNT)
	regs.cfg = newReg32(dev, rw, csr.CONFIG)

	regs.irq.mask = newReg32(dev, rw, csr.IRQ_MASK)
	regs.irq.status = newReg32(dev, rw, csr.IRQ_STATUS)

	regs.cnt.timestep = newReg32(dev, rw, csr.TIMESTEP)
	regs.cnt.spikeLo = newReg32(dev, rw, csr.SPIKE_COUNT)
	regs.cnt.spikeHi = newReg32(dev, rw, csr.SPIKE_COUNT_HI)

	regs.fifo.in = newReg32(dev, rw, csr.FIFO_IN_DATA)
	regs.fifo.inCSR = newReg32(dev, rw, csr.FIFO_IN_STATUS)
	regs.fifo.out = newReg32(dev, rw, csr.FIFO_OUT_DATA)
	regs.fifo.outCSR = newReg32(dev, rw, csr.FIFO_OUT_STATUS)

	regs.dma.src = newReg32(dev, rw, csr.DMA_SRC)
	regs.dma.dst = newReg32(dev, rw, csr.DMA_DST)
	regs.dma.len = newReg32(dev, rw, csr.DMA_LENGTH)
	regs.dma.ctrl = newReg32(dev, rw, csr.DMA_CONTROL)
	regs.dma.csr = newReg32(dev, rw, csr.DMA_STATUS)

	regs.lif.wbase = newReg32(dev, rw, csr.WEIGHT_BASE)
	regs.lif.sbase = newReg32(dev, rw, csr.STATE_BASE)
	regs.lif.thresh = newReg32(dev, rw, csr.THRESHOLD)
	regs.lif.leak = newReg32(dev, rw, csr.LEAK_RATE)
	regs.lif.refr = newReg32(dev, rw, csr.REFRACTORY)

	regs.dbg[0] = newReg32(dev, rw, csr.DEBUG_0)
	regs.dbg[1] = newReg32(dev, rw, csr.DEBUG_1)

	regs.byName = make(map[string]reg32)
	for _, reg := range csr.Layout.Registers() {
		regs.byName[reg.Name] = newReg32(dev, rw, int64(reg.Offset))
	}
}
