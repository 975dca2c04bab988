// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fifo implements the fixed-capacity spike FIFOs of the accelerator.
package fifo // import "github.com/go-lpc/snn/internal/fifo"

import (
	"fmt"

	"github.com/go-lpc/snn/csr"
)

// MaxCapacity is the largest supported FIFO depth.
const MaxCapacity = 1 << 16

// FIFO is a ring buffer of spike events.
//
// Overflow and underflow conditions are latched until ClearFlags or Flush
// with flag clearing is called.
// FIFO is not safe for concurrent use.
type FIFO struct {
	buf   []uint32
	mask  uint32
	head  uint32
	level uint32

	overflow  bool
	underflow bool
}

// New creates a FIFO with the provided capacity.
// The capacity must be a power of two in [1, MaxCapacity].
func New(capacity uint32) (*FIFO, error) {
	if capacity == 0 || capacity > MaxCapacity || capacity&(capacity-1) != 0 {
		return nil, fmt.Errorf("fifo: invalid capacity %d (want power of two in [1, %d])", capacity, MaxCapacity)
	}
	return &FIFO{
		buf:  make([]uint32, capacity),
		mask: capacity - 1,
	}, nil
}

// Push appends v at the tail of the FIFO.
func (f *FIFO) Push(v uint32) error {
	if f.Full() {
		f.overflow = true
		return csr.ErrOverflow
	}
	f.buf[(f.head+f.level)&f.mask] = v
	f.level++
	return nil
}

// Pop removes and returns the value at the head of the FIFO.
func (f *FIFO) Pop() (uint32, error) {
	if f.Empty() {
		f.underflow = true
		return 0, csr.ErrUnderflow
	}
	v := f.buf[f.head]
	f.head = (f.head + 1) & f.mask
	f.level--
	return v, nil
}

// Peek returns the value at the head of the FIFO, without removing it.
func (f *FIFO) Peek() (uint32, bool) {
	if f.Empty() {
		return 0, false
	}
	return f.buf[f.head], true
}

// Flush discards all queued values. Latched flags are kept.
func (f *FIFO) Flush() {
	f.head = 0
	f.level = 0
}

// ClearFlags clears the latched overflow and underflow flags.
func (f *FIFO) ClearFlags() {
	f.overflow = false
	f.underflow = false
}

func (f *FIFO) Cap() uint32     { return uint32(len(f.buf)) }
func (f *FIFO) Level() uint32   { return f.level }
func (f *FIFO) Full() bool      { return f.level == uint32(len(f.buf)) }
func (f *FIFO) Empty() bool     { return f.level == 0 }
func (f *FIFO) Overflow() bool  { return f.overflow }
func (f *FIFO) Underflow() bool { return f.underflow }

// Fault reports whether any of the overflow or underflow flags is latched.
func (f *FIFO) Fault() bool { return f.overflow || f.underflow }

// Status returns the FIFO status register word:
// [15:0] level, [16] full, [17] empty, [18] overflow, [19] underflow.
// A full FIFO of depth MaxCapacity reports a level field of 0.
func (f *FIFO) Status() uint32 {
	v := f.level & csr.MASK_FIFO_LEVEL
	if f.Full() {
		v |= csr.FIFO_FULL
	}
	if f.Empty() {
		v |= csr.FIFO_EMPTY
	}
	if f.overflow {
		v |= csr.FIFO_OVERFLOW
	}
	if f.underflow {
		v |= csr.FIFO_UNDERFLOW
	}
	return v
}
