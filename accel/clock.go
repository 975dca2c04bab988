// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package accel

import (
	"context"
	"fmt"
	"time"

	"github.com/go-lpc/snn/csr"
)

// Tick advances the simulated device by one clock cycle:
// a running accelerator processes one timestep and the in-flight DMA
// transfer, if any, moves closer to its completion.
func (acc *Accelerator) Tick() {
	acc.mu.Lock()
	defer acc.unlock()

	if acc.state == Running {
		acc.step()
		if acc.snap.EpochLen != 0 && acc.timestep >= acc.snap.EpochLen {
			acc.state = Stopped
			acc.msg.Printf("epoch done (timestep=%d, spikes=%d)", acc.timestep, acc.spikes)
		}
	}

	if acc.dma.Busy() && acc.dmaLeft > 0 {
		acc.dmaLeft--
		if acc.dmaLeft == 0 {
			err := acc.transfer()
			if err != nil {
				acc.msg.Printf("%+v", err)
			}
			acc.finishDMA(err == nil)
		}
	}
}

// Run drives the device clock with the provided period until ctx is done.
func (acc *Accelerator) Run(ctx context.Context, period time.Duration) error {
	if period <= 0 {
		return fmt.Errorf("accel: invalid clock period %v", period)
	}

	tck := time.NewTicker(period)
	defer tck.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tck.C:
			acc.Tick()
		}
	}
}

// step runs one timestep pass over the spikes queued in the ingress FIFO.
func (acc *Accelerator) step() {
	n := acc.in.Level()
	in := make([]uint32, 0, n)
	for i := uint32(0); i < n; i++ {
		v, err := acc.in.Pop()
		if err != nil {
			break
		}
		in = append(in, v)
	}
	acc.spikes += uint64(len(in))
	acc.consumed += uint32(len(in))

	out := acc.cfg.core.Step(acc.snap, in)
	dropped := 0
	for _, v := range out {
		err := acc.out.Push(v)
		if err != nil {
			dropped++
			continue
		}
		acc.emitted++
	}
	if dropped > 0 {
		acc.fail(csr.ErrOverflow)
		acc.msg.Printf("timestep %d: egress overflow, %d spike(s) dropped", acc.timestep, dropped)
	}

	acc.timestep++
	events := uint32(csr.IRQ_TIMESTEP_DONE)
	if !acc.out.Empty() {
		events |= csr.IRQ_SPIKE_OUT
	}
	acc.irq.Raise(events)
	acc.watermarks()
}

// transfer copies the data of the in-flight DMA transfer.
func (acc *Accelerator) transfer() error {
	mem := acc.cfg.dma.mem
	if mem == nil {
		return nil
	}
	tr := acc.dma.Transfer()
	buf := make([]byte, tr.Length)
	_, err := mem.ReadAt(buf, int64(tr.Src))
	if err != nil {
		return fmt.Errorf("accel: could not read %v: %w", tr, err)
	}
	_, err = mem.WriteAt(buf, int64(tr.Dst))
	if err != nil {
		return fmt.Errorf("accel: could not write %v: %w", tr, err)
	}
	return nil
}
