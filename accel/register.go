// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package accel

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-lpc/snn/csr"
)

var (
	_ io.ReaderAt = (*Accelerator)(nil)
	_ io.WriterAt = (*Accelerator)(nil)
)

// Read reads the register located at the provided byte offset.
//
// Reading fifo_out_data pops one spike from the egress FIFO.
func (acc *Accelerator) Read(off uint32) (uint32, error) {
	acc.mu.Lock()
	defer acc.unlock()

	reg, ok := csr.Layout.Lookup(off)
	if !ok || !reg.Readable() {
		return 0, fmt.Errorf("accel: read 0x%02x: %w", off, csr.ErrInvalidRegister)
	}
	return acc.read(reg)
}

// Write writes v into the register located at the provided byte offset.
// Bits beyond the width of the register are ignored.
func (acc *Accelerator) Write(off, v uint32) error {
	acc.mu.Lock()
	defer acc.unlock()

	reg, ok := csr.Layout.Lookup(off)
	if !ok {
		return fmt.Errorf("accel: write 0x%02x: %w", off, csr.ErrInvalidRegister)
	}
	if !reg.Writable() {
		return fmt.Errorf("accel: write %s: %w", reg.Name, csr.ErrReadOnlyRegister)
	}
	return acc.write(reg, v&reg.Mask())
}

func (acc *Accelerator) read(reg csr.Register) (uint32, error) {
	switch reg.Offset {
	case csr.STATUS:
		return acc.status(), nil
	case csr.EPOCH_LEN:
		return acc.host.epoch, nil
	case csr.NEURON_COUNT:
		return acc.host.neurons, nil
	case csr.CONFIG:
		return acc.configWord(), nil
	case csr.IRQ_MASK:
		return acc.irq.Mask(), nil
	case csr.TIMESTEP:
		return acc.timestep, nil
	case csr.SPIKE_COUNT:
		return uint32(acc.spikes), nil
	case csr.SPIKE_COUNT_HI:
		return uint32(acc.spikes >> 32), nil
	case csr.IRQ_STATUS:
		return acc.irq.Status(), nil
	case csr.FIFO_IN_STATUS:
		return acc.in.Status(), nil
	case csr.FIFO_OUT_STATUS:
		return acc.out.Status(), nil
	case csr.FIFO_OUT_DATA:
		v, err := acc.out.Pop()
		if err != nil {
			return 0, fmt.Errorf("accel: could not pop spike: %w", acc.fail(err))
		}
		acc.watermarks()
		return v, nil
	case csr.DMA_SRC:
		return acc.host.dma.src, nil
	case csr.DMA_DST:
		return acc.host.dma.dst, nil
	case csr.DMA_LENGTH:
		return acc.host.dma.len, nil
	case csr.DMA_STATUS:
		return acc.dma.Status(), nil
	case csr.WEIGHT_BASE:
		return acc.host.wbase, nil
	case csr.STATE_BASE:
		return acc.host.sbase, nil
	case csr.THRESHOLD:
		return acc.host.thresh, nil
	case csr.LEAK_RATE:
		return acc.host.leak, nil
	case csr.REFRACTORY:
		return acc.host.refr, nil
	case csr.DEBUG_0:
		return acc.debug0(), nil
	case csr.DEBUG_1:
		return acc.consumed&0xffff | acc.emitted<<16, nil
	}
	return 0, fmt.Errorf("accel: read %s: %w", reg.Name, csr.ErrInvalidRegister)
}

func (acc *Accelerator) write(reg csr.Register, v uint32) error {
	switch reg.Offset {
	case csr.CONTROL:
		return acc.command(v)
	case csr.EPOCH_LEN:
		acc.host.epoch = v
	case csr.NEURON_COUNT:
		if v < 1 || v > acc.cfg.maxNeurons {
			return fmt.Errorf(
				"accel: neuron count %d not in [1, %d]: %w",
				v, acc.cfg.maxNeurons, csr.ErrOutOfRange,
			)
		}
		acc.host.neurons = v
	case csr.CONFIG:
		acc.host.config = v & csr.CFG_MASK
	case csr.IRQ_MASK:
		acc.irq.SetMask(v & csr.IRQ_MASK_ALL)
	case csr.FIFO_IN_DATA:
		err := acc.in.Push(v)
		if err != nil {
			return fmt.Errorf("accel: could not push spike: %w", acc.fail(err))
		}
		acc.watermarks()
	case csr.IRQ_STATUS:
		acc.irq.Clear(v)
	case csr.DMA_SRC, csr.DMA_DST, csr.DMA_LENGTH:
		if acc.dma.Busy() {
			return fmt.Errorf("accel: write %s: %w", reg.Name, acc.fail(csr.ErrBusy))
		}
		switch reg.Offset {
		case csr.DMA_SRC:
			acc.host.dma.src = v
		case csr.DMA_DST:
			acc.host.dma.dst = v
		case csr.DMA_LENGTH:
			acc.host.dma.len = v
		}
	case csr.DMA_CONTROL:
		return acc.dmaCommand(v)
	case csr.WEIGHT_BASE:
		acc.host.wbase = v
	case csr.STATE_BASE:
		acc.host.sbase = v
	case csr.THRESHOLD:
		acc.host.thresh = v
	case csr.LEAK_RATE:
		acc.host.leak = v
	case csr.REFRACTORY:
		acc.host.refr = v
	default:
		return fmt.Errorf("accel: write %s: %w", reg.Name, csr.ErrReadOnlyRegister)
	}
	return nil
}

// ReadAt implements io.ReaderAt over the register window.
//
// Registers occupy 32-bit slots: the unused bytes of an 8-bit register
// read as zero. Accesses narrower than a slot return the addressed bytes
// of the little-endian register value.
func (acc *Accelerator) ReadAt(p []byte, off int64) (int, error) {
	acc.mu.Lock()
	defer acc.unlock()

	n := 0
	for n < len(p) {
		cur := off + int64(n)
		reg, pos, err := slot(cur)
		if err != nil {
			return n, err
		}
		if !reg.Readable() {
			return n, fmt.Errorf("accel: read 0x%02x: %w", cur, csr.ErrInvalidRegister)
		}
		v, err := acc.read(reg)
		if err != nil {
			return n, err
		}
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], v)
		n += copy(p[n:], buf[pos:])
	}
	return n, nil
}

// WriteAt implements io.WriterAt over the register window.
//
// Accesses narrower than a slot are merged into the current value of
// read-write registers. Bytes of other registers that are not addressed
// are written as zero, which never sets a write-1-to-clear bit nor issues
// a command.
func (acc *Accelerator) WriteAt(p []byte, off int64) (int, error) {
	acc.mu.Lock()
	defer acc.unlock()

	n := 0
	for n < len(p) {
		cur := off + int64(n)
		reg, pos, err := slot(cur)
		if err != nil {
			return n, err
		}
		if !reg.Writable() {
			return n, fmt.Errorf("accel: write %s: %w", reg.Name, csr.ErrReadOnlyRegister)
		}

		var buf [4]byte
		if reg.Access == csr.ReadWrite && (pos != 0 || len(p)-n < 4) {
			v, err := acc.read(reg)
			if err != nil {
				return n, err
			}
			binary.LittleEndian.PutUint32(buf[:], v)
		}
		sz := copy(buf[pos:], p[n:])
		err = acc.write(reg, binary.LittleEndian.Uint32(buf[:])&reg.Mask())
		if err != nil {
			return n, err
		}
		n += sz
	}
	return n, nil
}

// slot returns the register holding the byte at off and the position of
// that byte within the register slot.
func slot(off int64) (csr.Register, int, error) {
	if off < 0 || off >= int64(csr.Layout.Span()) {
		return csr.Register{}, 0, fmt.Errorf("accel: offset 0x%x: %w", off, csr.ErrInvalidRegister)
	}
	base := uint32(off) &^ 3
	reg, ok := csr.Layout.Lookup(base)
	if !ok {
		return csr.Register{}, 0, fmt.Errorf("accel: offset 0x%x: %w", off, csr.ErrInvalidRegister)
	}
	return reg, int(uint32(off) - base), nil
}
