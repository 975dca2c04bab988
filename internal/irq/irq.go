// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package irq implements the interrupt dispatcher of the accelerator.
package irq // import "github.com/go-lpc/snn/internal/irq"

// Dispatcher latches event bits and derives the interrupt line from them.
//
// Events latch into the status word independently of the mask.
// The line is active iff any masked-in status bit is set.
// Dispatcher is not safe for concurrent use.
type Dispatcher struct {
	mask   uint32
	status uint32
	line   bool
}

func (d *Dispatcher) update() { d.line = d.mask&d.status != 0 }

// Raise latches the provided event bits.
func (d *Dispatcher) Raise(events uint32) {
	d.status |= events
	d.update()
}

// Clear implements the write-1-to-clear semantics of the status register:
// every 1 bit of v clears the matching latched bit.
func (d *Dispatcher) Clear(v uint32) {
	d.status &^= v
	d.update()
}

// SetMask replaces the interrupt mask.
func (d *Dispatcher) SetMask(mask uint32) {
	d.mask = mask
	d.update()
}

// Reset clears all latched events. The mask is kept.
func (d *Dispatcher) Reset() {
	d.status = 0
	d.update()
}

func (d *Dispatcher) Mask() uint32   { return d.mask }
func (d *Dispatcher) Status() uint32 { return d.status }

// Line reports whether the interrupt line is asserted.
func (d *Dispatcher) Line() bool { return d.line }
