// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"fmt"
	"io"
	"time"

	"github.com/go-lpc/snn/csr"
)

// SmokeResult holds what the smoke sequence observed.
type SmokeResult struct {
	Status Status     `json:"status"`
	In     FIFOStatus `json:"fifo_in"`
	Out    FIFOStatus `json:"fifo_out"`
	IRQ    uint32     `json:"irq"` // interrupt events cleared at the end of the sequence
}

// Smoke runs the bring-up sequence of the accelerator:
// reset, wait, enable, program the epoch length and neuron count, then
// report the status, FIFO levels and pending interrupts, clearing them.
func (dev *Device) Smoke(w io.Writer, epoch, neurons uint32) (SmokeResult, error) {
	var res SmokeResult

	err := dev.Reset()
	if err != nil {
		return res, fmt.Errorf("snn: could not reset: %w", err)
	}
	time.Sleep(dev.cfg.delay)

	err = dev.SetEnable(true)
	if err != nil {
		return res, fmt.Errorf("snn: could not enable: %w", err)
	}

	dev.begin()
	dev.regs.epoch.w(epoch)
	dev.regs.neurons.w(neurons)
	err = dev.end()
	if err != nil {
		return res, fmt.Errorf("snn: could not program epoch=%d, neurons=%d: %w", epoch, neurons, err)
	}

	res.Status, err = dev.Status()
	if err != nil {
		return res, err
	}
	fmt.Fprintf(w, "status=0x%08x\n", res.Status.Raw)

	res.In, res.Out, err = dev.FIFOStatus()
	if err != nil {
		return res, err
	}
	fmt.Fprintf(w, "spike_in_level=%d\n", res.In.Level)
	fmt.Fprintf(w, "spike_out_level=%d\n", res.Out.Level)

	res.IRQ, err = dev.AckIRQ()
	if err != nil {
		return res, err
	}
	if res.IRQ != 0 {
		fmt.Fprintf(w, "cleared irq bits=0x%08x\n", res.IRQ)
	}

	return res, nil
}

// DumpRegisters writes the content of every readable register to w.
// Registers whose read has a side effect are not read.
func (dev *Device) DumpRegisters(w io.Writer) error {
	dev.begin()
	defer dev.end()

	for _, reg := range csr.Layout.Registers() {
		switch {
		case !reg.Readable():
			fmt.Fprintf(w, "%-16s 0x%02x %-2s --------\n", reg.Name, reg.Offset, reg.Access)
			continue
		case reg.Offset == csr.FIFO_OUT_DATA:
			fmt.Fprintf(w, "%-16s 0x%02x %-2s (pop)\n", reg.Name, reg.Offset, reg.Access)
			continue
		}
		v := dev.regs.byName[reg.Name].r()
		if dev.err != nil {
			return dev.err
		}
		fmt.Fprintf(w, "%-16s 0x%02x %-2s 0x%08x\n", reg.Name, reg.Offset, reg.Access, v)
	}
	return nil
}
