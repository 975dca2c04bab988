// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dma models the single-outstanding DMA engine of the accelerator.
package dma // import "github.com/go-lpc/snn/internal/dma"

import (
	"fmt"

	"github.com/go-lpc/snn/csr"
	"github.com/rs/xid"
)

// Transfer describes a bulk transfer.
type Transfer struct {
	ID     xid.ID // zero until the transfer is started
	Src    uint32
	Dst    uint32
	Length uint32 // in bytes
}

func (tr Transfer) String() string {
	return fmt.Sprintf("dma[%v](src=0x%08x, dst=0x%08x, len=%d)", tr.ID, tr.Src, tr.Dst, tr.Length)
}

// Engine is a DMA engine with at most one transfer in flight.
// Engine is not safe for concurrent use.
type Engine struct {
	busy bool
	done bool
	err  bool

	cur Transfer
}

// Configure sets the parameters of the next transfer.
func (eng *Engine) Configure(src, dst, length uint32) error {
	if eng.busy {
		return csr.ErrBusy
	}
	if length == 0 {
		return csr.ErrInvalidLength
	}
	eng.cur = Transfer{Src: src, Dst: dst, Length: length}
	return nil
}

// Start launches the configured transfer.
// ready tells whether the DMA path is enabled.
func (eng *Engine) Start(ready bool) (Transfer, error) {
	if eng.busy {
		return eng.cur, csr.ErrBusy
	}
	if !ready {
		return eng.cur, csr.ErrNotReady
	}
	if eng.cur.Length == 0 {
		return eng.cur, csr.ErrInvalidLength
	}
	eng.busy = true
	eng.done = false
	eng.err = false
	eng.cur.ID = xid.New()
	return eng.cur, nil
}

// Complete signals the end of the data movement of the in-flight transfer.
// Complete reports whether a transfer was in flight.
func (eng *Engine) Complete(ok bool) bool {
	if !eng.busy {
		return false
	}
	eng.busy = false
	eng.done = ok
	eng.err = !ok
	return true
}

// Abort cancels the in-flight transfer, if any.
// Abort reports whether a transfer was in flight.
func (eng *Engine) Abort() bool {
	if !eng.busy {
		return false
	}
	eng.busy = false
	eng.done = false
	eng.err = true
	return true
}

// Reset aborts any in-flight transfer and returns the engine to idle.
func (eng *Engine) Reset() {
	*eng = Engine{}
}

func (eng *Engine) Busy() bool         { return eng.busy }
func (eng *Engine) Done() bool         { return eng.done }
func (eng *Engine) Failed() bool       { return eng.err }
func (eng *Engine) Transfer() Transfer { return eng.cur }

// Status returns the dma_status register word.
func (eng *Engine) Status() uint32 {
	var v uint32
	if eng.busy {
		v |= csr.DMA_BUSY
	}
	if eng.done {
		v |= csr.DMA_DONE
	}
	if eng.err {
		v |= csr.DMA_ERROR
	}
	return v
}
