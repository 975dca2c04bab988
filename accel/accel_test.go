// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package accel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-lpc/snn/csr"
)

func newTestAccel(t *testing.T, opts ...Option) *Accelerator {
	t.Helper()
	opts = append([]Option{WithLogger(log.New(io.Discard, "snn-sim: ", 0))}, opts...)
	acc, err := New(opts...)
	if err != nil {
		t.Fatalf("could not create accelerator: %+v", err)
	}
	return acc
}

func wr(t *testing.T, acc *Accelerator, off, v uint32) {
	t.Helper()
	err := acc.Write(off, v)
	if err != nil {
		t.Fatalf("could not write 0x%x to 0x%02x: %+v", v, off, err)
	}
}

func rd(t *testing.T, acc *Accelerator, off uint32) uint32 {
	t.Helper()
	v, err := acc.Read(off)
	if err != nil {
		t.Fatalf("could not read 0x%02x: %+v", off, err)
	}
	return v
}

func errCode(t *testing.T, acc *Accelerator) csr.Code {
	t.Helper()
	return csr.ErrorCode(rd(t, acc, csr.STATUS))
}

func TestNew(t *testing.T) {
	acc := newTestAccel(t)

	for _, tc := range []struct {
		off  uint32
		want uint32
	}{
		{csr.STATUS, csr.S_FIFO_IN_EMPTY | csr.S_FIFO_OUT_EMPTY},
		{csr.EPOCH_LEN, 0},
		{csr.NEURON_COUNT, 256},
		{csr.CONFIG, 5<<csr.SHIFT_CFG_WIDTH | 8<<csr.SHIFT_CFG_DEPTH},
		{csr.IRQ_MASK, 0},
		{csr.TIMESTEP, 0},
		{csr.SPIKE_COUNT, 0},
		{csr.SPIKE_COUNT_HI, 0},
		{csr.IRQ_STATUS, 0},
		{csr.FIFO_IN_STATUS, csr.FIFO_EMPTY},
		{csr.FIFO_OUT_STATUS, csr.FIFO_EMPTY},
		{csr.DMA_STATUS, 0},
		{csr.THRESHOLD, 0x00010000},
		{csr.LEAK_RATE, 0x00000100},
		{csr.REFRACTORY, 5},
		{csr.DEBUG_0, 0},
		{csr.DEBUG_1, 0},
	} {
		reg, _ := csr.Layout.Lookup(tc.off)
		t.Run(reg.Name, func(t *testing.T) {
			got := rd(t, acc, tc.off)
			if got != tc.want {
				t.Fatalf("invalid reset value: got=0x%x, want=0x%x", got, tc.want)
			}
		})
	}

	if got, want := acc.State(), Idle; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}

	_, err := New(WithFIFOCapacity(3))
	if err == nil {
		t.Fatalf("expected an error for a non power-of-two capacity")
	}
}

func TestRegisterErrors(t *testing.T) {
	acc := newTestAccel(t)

	for _, tc := range []struct {
		name string
		off  uint32
	}{
		{"control", csr.CONTROL},
		{"fifo_in_data", csr.FIFO_IN_DATA},
		{"dma_control", csr.DMA_CONTROL},
		{"unaligned", 0x06},
		{"past-end", 0x68},
		{"far", 0xffc},
	} {
		t.Run("read-"+tc.name, func(t *testing.T) {
			_, err := acc.Read(tc.off)
			if !errors.Is(err, csr.ErrInvalidRegister) {
				t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrInvalidRegister)
			}
		})
	}

	for _, tc := range []struct {
		off  uint32
		want error
	}{
		{csr.STATUS, csr.ErrReadOnlyRegister},
		{csr.TIMESTEP, csr.ErrReadOnlyRegister},
		{csr.SPIKE_COUNT, csr.ErrReadOnlyRegister},
		{csr.FIFO_OUT_DATA, csr.ErrReadOnlyRegister},
		{csr.DMA_STATUS, csr.ErrReadOnlyRegister},
		{csr.DEBUG_0, csr.ErrReadOnlyRegister},
		{0x68, csr.ErrInvalidRegister},
		{0x02, csr.ErrInvalidRegister},
	} {
		t.Run(fmt.Sprintf("write-0x%02x", tc.off), func(t *testing.T) {
			err := acc.Write(tc.off, 1)
			if !errors.Is(err, tc.want) {
				t.Fatalf("invalid error: got=%v, want=%v", err, tc.want)
			}
		})
	}

	for _, v := range []uint32{0, 1025, 0xffffffff} {
		err := acc.Write(csr.NEURON_COUNT, v)
		if !errors.Is(err, csr.ErrOutOfRange) {
			t.Fatalf("invalid error for neuron_count=%d: got=%v, want=%v", v, err, csr.ErrOutOfRange)
		}
	}
	if got, want := rd(t, acc, csr.NEURON_COUNT), uint32(256); got != want {
		t.Fatalf("invalid neuron_count: got=%d, want=%d", got, want)
	}
	wr(t, acc, csr.NEURON_COUNT, 1024)

	if got, want := errCode(t, acc), csr.CodeNone; got != want {
		t.Fatalf("register-map errors must not be latched: got=%v", got)
	}

	// read-only fields of config are ignored.
	wr(t, acc, csr.CONFIG, 0xffffffff)
	if got, want := rd(t, acc, csr.CONFIG), uint32(0x85f); got != want {
		t.Fatalf("invalid config: got=0x%x, want=0x%x", got, want)
	}
}

func TestStartNotEnabled(t *testing.T) {
	acc := newTestAccel(t)

	err := acc.Write(csr.CONTROL, csr.CMD_START)
	if !errors.Is(err, csr.ErrNotEnabled) {
		t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrNotEnabled)
	}
	if got, want := acc.State(), Idle; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}
	if got, want := errCode(t, acc), csr.CodeNotEnabled; got != want {
		t.Fatalf("invalid error code: got=%v, want=%v", got, want)
	}
	if got := rd(t, acc, csr.IRQ_STATUS); got&csr.IRQ_ERROR == 0 {
		t.Fatalf("error interrupt not raised: irq_status=0x%x", got)
	}

	// rejection is idempotent.
	err = acc.Write(csr.CONTROL, csr.CMD_START)
	if !errors.Is(err, csr.ErrNotEnabled) {
		t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrNotEnabled)
	}
	if got, want := acc.State(), Idle; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}
}

func TestTransitions(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup []uint32 // control writes
		cmd   uint32
		want  State
		err   error
	}{
		{"start-from-idle", nil, csr.CMD_START, Running, nil},
		{"start-from-stopped", []uint32{csr.CMD_START, csr.CMD_STOP}, csr.CMD_START, Running, nil},
		{"start-from-running", []uint32{csr.CMD_START}, csr.CMD_START, Running, csr.ErrIllegalTransition},
		{"start-from-aborted", []uint32{csr.CMD_START, csr.CMD_ABORT}, csr.CMD_START, Aborted, csr.ErrIllegalTransition},
		{"stop-from-idle", nil, csr.CMD_STOP, Idle, csr.ErrIllegalTransition},
		{"stop-from-running", []uint32{csr.CMD_START}, csr.CMD_STOP, Stopped, nil},
		{"stop-from-stopped", []uint32{csr.CMD_START, csr.CMD_STOP}, csr.CMD_STOP, Stopped, csr.ErrIllegalTransition},
		{"abort-from-idle", nil, csr.CMD_ABORT, Idle, csr.ErrIllegalTransition},
		{"abort-from-running", []uint32{csr.CMD_START}, csr.CMD_ABORT, Aborted, nil},
		{"abort-from-stopped", []uint32{csr.CMD_START, csr.CMD_STOP}, csr.CMD_ABORT, Aborted, nil},
		{"abort-from-aborted", []uint32{csr.CMD_START, csr.CMD_ABORT}, csr.CMD_ABORT, Aborted, nil},
		{"reset-from-aborted", []uint32{csr.CMD_START, csr.CMD_ABORT}, csr.CMD_RESET, Idle, nil},
		{"step-from-idle", nil, csr.CMD_SINGLE_STEP, Idle, nil},
		{"step-from-stopped", []uint32{csr.CMD_START, csr.CMD_STOP}, csr.CMD_SINGLE_STEP, Stopped, nil},
		{"step-from-running", []uint32{csr.CMD_START}, csr.CMD_SINGLE_STEP, Running, csr.ErrIllegalTransition},
		{"step-from-aborted", []uint32{csr.CMD_START, csr.CMD_ABORT}, csr.CMD_SINGLE_STEP, Aborted, csr.ErrIllegalTransition},
		{"flush-from-running", []uint32{csr.CMD_START}, csr.CMD_FIFO_FLUSH, Running, nil},
		{"start-stop", nil, csr.CMD_START | csr.CMD_STOP, Stopped, nil},
	} {
		t.Run(tc.name, func(t *testing.T) {
			acc := newTestAccel(t)
			wr(t, acc, csr.CONFIG, csr.CFG_ENABLE)
			for _, cmd := range tc.setup {
				wr(t, acc, csr.CONTROL, cmd)
			}

			err := acc.Write(csr.CONTROL, tc.cmd)
			switch {
			case tc.err == nil && err != nil:
				t.Fatalf("could not run command 0x%x: %+v", tc.cmd, err)
			case tc.err != nil && !errors.Is(err, tc.err):
				t.Fatalf("invalid error: got=%v, want=%v", err, tc.err)
			}
			if got, want := acc.State(), tc.want; got != want {
				t.Fatalf("invalid state: got=%v, want=%v", got, want)
			}
			if tc.err != nil {
				if got, want := errCode(t, acc), csr.CodeOf(tc.err); got != want {
					t.Fatalf("invalid error code: got=%v, want=%v", got, want)
				}
			}
		})
	}
}

func TestMultipleCommands(t *testing.T) {
	t.Run("first-error-wins", func(t *testing.T) {
		acc := newTestAccel(t)
		err := acc.Write(csr.CONTROL, csr.CMD_START|csr.CMD_ABORT)
		if !errors.Is(err, csr.ErrNotEnabled) {
			t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrNotEnabled)
		}
		if got, want := errCode(t, acc), csr.CodeNotEnabled; got != want {
			t.Fatalf("invalid error code: got=%v, want=%v", got, want)
		}
	})

	t.Run("illegal-bit-does-not-block", func(t *testing.T) {
		acc := newTestAccel(t)
		wr(t, acc, csr.FIFO_IN_DATA, 42)
		err := acc.Write(csr.CONTROL, csr.CMD_STOP|csr.CMD_SINGLE_STEP)
		if !errors.Is(err, csr.ErrIllegalTransition) {
			t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrIllegalTransition)
		}
		if got, want := rd(t, acc, csr.TIMESTEP), uint32(1); got != want {
			t.Fatalf("single-step not processed: timestep=%d, want=%d", got, want)
		}
	})

	t.Run("reset-clears-earlier-code", func(t *testing.T) {
		acc := newTestAccel(t)
		err := acc.Write(csr.CONTROL, csr.CMD_START|csr.CMD_RESET)
		if !errors.Is(err, csr.ErrNotEnabled) {
			t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrNotEnabled)
		}
		if got, want := errCode(t, acc), csr.CodeNone; got != want {
			t.Fatalf("invalid error code: got=%v, want=%v", got, want)
		}
	})

	t.Run("ascending-order", func(t *testing.T) {
		acc := newTestAccel(t)
		wr(t, acc, csr.CONFIG, csr.CFG_ENABLE)
		wr(t, acc, csr.FIFO_IN_DATA, 1)
		// RESET (bit 3) runs before SINGLE_STEP (bit 4).
		wr(t, acc, csr.CONTROL, csr.CMD_RESET|csr.CMD_SINGLE_STEP)
		if got, want := rd(t, acc, csr.TIMESTEP), uint32(1); got != want {
			t.Fatalf("invalid timestep: got=%d, want=%d", got, want)
		}
		if got, want := rd(t, acc, csr.SPIKE_COUNT), uint32(0); got != want {
			t.Fatalf("invalid spike count: got=%d, want=%d", got, want)
		}
	})
}

func TestAbortKeepsCounters(t *testing.T) {
	acc := newTestAccel(t)
	wr(t, acc, csr.CONFIG, csr.CFG_ENABLE)
	for i := uint32(0); i < 10; i++ {
		wr(t, acc, csr.FIFO_IN_DATA, i)
	}
	wr(t, acc, csr.CONTROL, csr.CMD_START)
	for i := 0; i < 5; i++ {
		acc.Tick()
	}

	if got, want := rd(t, acc, csr.SPIKE_COUNT), uint32(10); got != want {
		t.Fatalf("invalid spike count: got=%d, want=%d", got, want)
	}
	if got, want := rd(t, acc, csr.TIMESTEP), uint32(5); got != want {
		t.Fatalf("invalid timestep: got=%d, want=%d", got, want)
	}

	wr(t, acc, csr.CONTROL, csr.CMD_ABORT)

	if got, want := acc.State(), Aborted; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}
	if got, want := rd(t, acc, csr.SPIKE_COUNT), uint32(10); got != want {
		t.Fatalf("invalid spike count after abort: got=%d, want=%d", got, want)
	}
	if got, want := rd(t, acc, csr.TIMESTEP), uint32(5); got != want {
		t.Fatalf("invalid timestep after abort: got=%d, want=%d", got, want)
	}
	if got, want := errCode(t, acc), csr.CodeAborted; got != want {
		t.Fatalf("invalid error code: got=%v, want=%v", got, want)
	}
	if got := rd(t, acc, csr.STATUS); got&csr.S_ACTIVE != 0 {
		t.Fatalf("aborted accelerator should not be active: status=0x%x", got)
	}

	// the clock does not advance an aborted accelerator.
	acc.Tick()
	if got, want := rd(t, acc, csr.TIMESTEP), uint32(5); got != want {
		t.Fatalf("invalid timestep: got=%d, want=%d", got, want)
	}
}

func TestReset(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(t *testing.T, acc *Accelerator)
	}{
		{"idle", func(t *testing.T, acc *Accelerator) {}},
		{
			"running",
			func(t *testing.T, acc *Accelerator) {
				wr(t, acc, csr.FIFO_IN_DATA, 1)
				wr(t, acc, csr.CONTROL, csr.CMD_START)
				acc.Tick()
				acc.Tick()
			},
		},
		{
			"stopped",
			func(t *testing.T, acc *Accelerator) {
				wr(t, acc, csr.CONTROL, csr.CMD_START)
				acc.Tick()
				wr(t, acc, csr.CONTROL, csr.CMD_STOP)
			},
		},
		{
			"aborted",
			func(t *testing.T, acc *Accelerator) {
				wr(t, acc, csr.CONTROL, csr.CMD_START)
				acc.Tick()
				wr(t, acc, csr.CONTROL, csr.CMD_ABORT)
			},
		},
		{
			"faults",
			func(t *testing.T, acc *Accelerator) {
				for i := 0; i < 5; i++ {
					_ = acc.Write(csr.FIFO_IN_DATA, uint32(i))
				}
				_, _ = acc.Read(csr.FIFO_OUT_DATA)
				_ = acc.Write(csr.CONTROL, csr.CMD_STOP)
			},
		},
		{
			"dma-busy",
			func(t *testing.T, acc *Accelerator) {
				wr(t, acc, csr.CONFIG, csr.CFG_ENABLE|csr.CFG_DMA_ENABLE)
				wr(t, acc, csr.DMA_LENGTH, 64)
				wr(t, acc, csr.DMA_CONTROL, csr.DMA_CMD_START)
				if got := rd(t, acc, csr.DMA_STATUS); got&csr.DMA_BUSY == 0 {
					t.Fatalf("dma should be busy")
				}
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			acc := newTestAccel(t, WithFIFOCapacity(4))
			wr(t, acc, csr.CONFIG, csr.CFG_ENABLE)
			wr(t, acc, csr.IRQ_MASK, csr.IRQ_MASK_ALL)
			tc.setup(t, acc)

			wr(t, acc, csr.CONTROL, csr.CMD_RESET)

			if got, want := acc.State(), Idle; got != want {
				t.Fatalf("invalid state: got=%v, want=%v", got, want)
			}
			for _, chk := range []struct {
				off  uint32
				want uint32
			}{
				{csr.TIMESTEP, 0},
				{csr.SPIKE_COUNT, 0},
				{csr.SPIKE_COUNT_HI, 0},
				{csr.IRQ_STATUS, 0},
				{csr.FIFO_IN_STATUS, csr.FIFO_EMPTY},
				{csr.FIFO_OUT_STATUS, csr.FIFO_EMPTY},
				{csr.STATUS, csr.S_FIFO_IN_EMPTY | csr.S_FIFO_OUT_EMPTY},
			} {
				if got := rd(t, acc, chk.off); got != chk.want {
					t.Fatalf("invalid register 0x%02x: got=0x%x, want=0x%x", chk.off, got, chk.want)
				}
			}
			if got := rd(t, acc, csr.DMA_STATUS); got&csr.DMA_BUSY != 0 {
				t.Fatalf("dma should not be busy after reset")
			}
			if acc.Line() {
				t.Fatalf("interrupt line should be inactive after reset")
			}
			// host configuration survives a reset.
			if got, want := rd(t, acc, csr.IRQ_MASK), uint32(csr.IRQ_MASK_ALL); got != want {
				t.Fatalf("invalid irq mask: got=0x%x, want=0x%x", got, want)
			}
		})
	}
}

func TestSingleStep(t *testing.T) {
	acc := newTestAccel(t)
	wr(t, acc, csr.NEURON_COUNT, 4)
	for _, id := range []uint32{5, 6, 7} {
		wr(t, acc, csr.FIFO_IN_DATA, id)
	}

	wr(t, acc, csr.CONTROL, csr.CMD_SINGLE_STEP)

	if got, want := acc.State(), Idle; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}
	if got, want := rd(t, acc, csr.TIMESTEP), uint32(1); got != want {
		t.Fatalf("invalid timestep: got=%d, want=%d", got, want)
	}
	if got, want := rd(t, acc, csr.SPIKE_COUNT), uint32(3); got != want {
		t.Fatalf("invalid spike count: got=%d, want=%d", got, want)
	}
	if got, want := rd(t, acc, csr.DEBUG_1), uint32(3|3<<16); got != want {
		t.Fatalf("invalid debug_1: got=0x%x, want=0x%x", got, want)
	}
	if got := rd(t, acc, csr.IRQ_STATUS); got&(csr.IRQ_TIMESTEP_DONE|csr.IRQ_SPIKE_OUT) != csr.IRQ_TIMESTEP_DONE|csr.IRQ_SPIKE_OUT {
		t.Fatalf("invalid irq_status: 0x%x", got)
	}

	for _, want := range []uint32{1, 2, 3} {
		got := rd(t, acc, csr.FIFO_OUT_DATA)
		if got != want {
			t.Fatalf("invalid egress spike: got=%d, want=%d", got, want)
		}
	}

	_, err := acc.Read(csr.FIFO_OUT_DATA)
	if !errors.Is(err, csr.ErrUnderflow) {
		t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrUnderflow)
	}
	if got, want := errCode(t, acc), csr.CodeUnderflow; got != want {
		t.Fatalf("invalid error code: got=%v, want=%v", got, want)
	}
	if got := rd(t, acc, csr.FIFO_OUT_STATUS); got&csr.FIFO_UNDERFLOW == 0 {
		t.Fatalf("underflow flag not latched: 0x%x", got)
	}
	if got := rd(t, acc, csr.STATUS); got&csr.S_FIFO_OUT_FAULT == 0 {
		t.Fatalf("egress fault not reported: 0x%x", got)
	}

	// single steps share the timestep counter.
	wr(t, acc, csr.CONTROL, csr.CMD_SINGLE_STEP)
	if got, want := rd(t, acc, csr.TIMESTEP), uint32(2); got != want {
		t.Fatalf("invalid timestep: got=%d, want=%d", got, want)
	}
}

func TestFIFOFlush(t *testing.T) {
	acc := newTestAccel(t, WithFIFOCapacity(4))
	for i := uint32(0); i < 4; i++ {
		wr(t, acc, csr.FIFO_IN_DATA, i)
	}
	err := acc.Write(csr.FIFO_IN_DATA, 4)
	if !errors.Is(err, csr.ErrOverflow) {
		t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrOverflow)
	}
	if got := rd(t, acc, csr.FIFO_IN_STATUS); got != 4|csr.FIFO_FULL|csr.FIFO_OVERFLOW {
		t.Fatalf("invalid fifo_in_status: 0x%x", got)
	}
	_, _ = acc.Read(csr.FIFO_OUT_DATA)

	wr(t, acc, csr.CONTROL, csr.CMD_FIFO_FLUSH)

	for _, off := range []uint32{csr.FIFO_IN_STATUS, csr.FIFO_OUT_STATUS} {
		if got, want := rd(t, acc, off), uint32(csr.FIFO_EMPTY); got != want {
			t.Fatalf("invalid fifo status at 0x%02x: got=0x%x, want=0x%x", off, got, want)
		}
	}
	if got, want := acc.State(), Idle; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}
	// the latched error code is kept.
	if got, want := errCode(t, acc), csr.CodeUnderflow; got != want {
		t.Fatalf("invalid error code: got=%v, want=%v", got, want)
	}
}

func TestEgressOverflow(t *testing.T) {
	twice := CoreFunc(func(p Params, in []uint32) []uint32 {
		out := make([]uint32, 0, 2*len(in))
		out = append(out, in...)
		return append(out, in...)
	})
	acc := newTestAccel(t, WithFIFOCapacity(4), WithCore(twice))
	for i := uint32(0); i < 4; i++ {
		wr(t, acc, csr.FIFO_IN_DATA, i)
	}
	wr(t, acc, csr.CONTROL, csr.CMD_SINGLE_STEP)

	if got, want := rd(t, acc, csr.FIFO_OUT_STATUS), uint32(4|csr.FIFO_FULL|csr.FIFO_OVERFLOW); got != want {
		t.Fatalf("invalid fifo_out_status: got=0x%x, want=0x%x", got, want)
	}
	if got, want := errCode(t, acc), csr.CodeOverflow; got != want {
		t.Fatalf("invalid error code: got=%v, want=%v", got, want)
	}
	if got, want := rd(t, acc, csr.DEBUG_1), uint32(4|4<<16); got != want {
		t.Fatalf("invalid debug_1: got=0x%x, want=0x%x", got, want)
	}
	for _, want := range []uint32{0, 1, 2, 3} {
		if got := rd(t, acc, csr.FIFO_OUT_DATA); got != want {
			t.Fatalf("invalid egress spike: got=%d, want=%d", got, want)
		}
	}
}

func TestConfigSnapshot(t *testing.T) {
	acc := newTestAccel(t)
	wr(t, acc, csr.NEURON_COUNT, 4)
	wr(t, acc, csr.CONFIG, csr.CFG_ENABLE)
	wr(t, acc, csr.CONTROL, csr.CMD_START)

	wr(t, acc, csr.NEURON_COUNT, 8)
	wr(t, acc, csr.CONFIG, csr.CFG_ENABLE|csr.CFG_LEAKY)
	wr(t, acc, csr.FIFO_IN_DATA, 13)
	acc.Tick()

	if got, want := rd(t, acc, csr.FIFO_OUT_DATA), uint32(13%4); got != want {
		t.Fatalf("config change leaked into running epoch: got=%d, want=%d", got, want)
	}
	if got, want := rd(t, acc, csr.DEBUG_0), uint32(Running)|csr.CFG_ENABLE<<csr.SHIFT_DEBUG_CONFIG; got != want {
		t.Fatalf("invalid debug_0: got=0x%x, want=0x%x", got, want)
	}

	wr(t, acc, csr.CONTROL, csr.CMD_STOP)
	wr(t, acc, csr.CONTROL, csr.CMD_START)
	wr(t, acc, csr.FIFO_IN_DATA, 13)
	acc.Tick()
	if got, want := rd(t, acc, csr.FIFO_OUT_DATA), uint32(13%8); got != want {
		t.Fatalf("config not applied on start: got=%d, want=%d", got, want)
	}
	if got, want := rd(t, acc, csr.DEBUG_0), uint32(Running)|(csr.CFG_ENABLE|csr.CFG_LEAKY)<<csr.SHIFT_DEBUG_CONFIG; got != want {
		t.Fatalf("invalid debug_0: got=0x%x, want=0x%x", got, want)
	}
}

func TestEpoch(t *testing.T) {
	acc := newTestAccel(t)
	wr(t, acc, csr.CONFIG, csr.CFG_ENABLE)
	wr(t, acc, csr.EPOCH_LEN, 3)
	wr(t, acc, csr.CONTROL, csr.CMD_START)
	if got := rd(t, acc, csr.STATUS); got&csr.S_ACTIVE == 0 {
		t.Fatalf("running accelerator should be active: status=0x%x", got)
	}

	for i := 0; i < 5; i++ {
		acc.Tick()
	}
	if got, want := acc.State(), Stopped; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}
	if got, want := rd(t, acc, csr.TIMESTEP), uint32(3); got != want {
		t.Fatalf("invalid timestep: got=%d, want=%d", got, want)
	}
	if got := rd(t, acc, csr.STATUS); got&csr.S_ACTIVE != 0 {
		t.Fatalf("stopped accelerator should not be active: status=0x%x", got)
	}

	// a new epoch restarts the timestep counter.
	wr(t, acc, csr.CONTROL, csr.CMD_START)
	acc.Tick()
	if got, want := rd(t, acc, csr.TIMESTEP), uint32(1); got != want {
		t.Fatalf("invalid timestep: got=%d, want=%d", got, want)
	}
}

func TestWatermarks(t *testing.T) {
	acc := newTestAccel(t, WithFIFOCapacity(8), WithFIFOThresholds(2, 6))
	const both = csr.IRQ_FIFO_IN_LOW | csr.IRQ_FIFO_OUT_HIGH

	for i := uint32(0); i < 8; i++ {
		wr(t, acc, csr.FIFO_IN_DATA, i)
	}
	if got := rd(t, acc, csr.IRQ_STATUS); got&both != 0 {
		t.Fatalf("unexpected threshold interrupt: 0x%x", got)
	}

	wr(t, acc, csr.CONTROL, csr.CMD_SINGLE_STEP)
	if got := rd(t, acc, csr.IRQ_STATUS); got&both != both {
		t.Fatalf("threshold interrupts not raised: 0x%x", got)
	}
	wr(t, acc, csr.IRQ_STATUS, csr.IRQ_MASK_ALL)

	// staying on the same side of the thresholds raises nothing.
	wr(t, acc, csr.CONTROL, csr.CMD_SINGLE_STEP)
	if got := rd(t, acc, csr.IRQ_STATUS); got&both != 0 {
		t.Fatalf("unexpected threshold interrupt: 0x%x", got)
	}

	for i := 0; i < 3; i++ {
		_ = rd(t, acc, csr.FIFO_OUT_DATA)
	}
	wr(t, acc, csr.FIFO_IN_DATA, 1)
	wr(t, acc, csr.FIFO_IN_DATA, 2)
	wr(t, acc, csr.CONTROL, csr.CMD_SINGLE_STEP)
	if got := rd(t, acc, csr.IRQ_STATUS); got&both != both {
		t.Fatalf("threshold interrupts not raised again: 0x%x", got)
	}
}

func TestIRQ(t *testing.T) {
	var lines []bool
	acc := newTestAccel(t, WithIRQHandler(func(line bool) {
		lines = append(lines, line)
	}))

	wr(t, acc, csr.CONTROL, csr.CMD_SINGLE_STEP)
	if got, want := rd(t, acc, csr.IRQ_STATUS), uint32(csr.IRQ_TIMESTEP_DONE); got != want {
		t.Fatalf("invalid irq_status: got=0x%x, want=0x%x", got, want)
	}
	if acc.Line() {
		t.Fatalf("masked-out event must not assert the line")
	}

	wr(t, acc, csr.IRQ_MASK, csr.IRQ_TIMESTEP_DONE)
	if !acc.Line() {
		t.Fatalf("unmasking a latched event must assert the line")
	}
	if got := rd(t, acc, csr.DEBUG_0); got&csr.DEBUG_LINE == 0 {
		t.Fatalf("debug_0 should report the line: 0x%x", got)
	}

	_ = acc.Write(csr.CONTROL, csr.CMD_STOP)
	if got, want := rd(t, acc, csr.IRQ_STATUS), uint32(csr.IRQ_TIMESTEP_DONE|csr.IRQ_ERROR); got != want {
		t.Fatalf("invalid irq_status: got=0x%x, want=0x%x", got, want)
	}

	wr(t, acc, csr.IRQ_STATUS, csr.IRQ_ERROR)
	if got, want := rd(t, acc, csr.IRQ_STATUS), uint32(csr.IRQ_TIMESTEP_DONE); got != want {
		t.Fatalf("invalid irq_status: got=0x%x, want=0x%x", got, want)
	}
	wr(t, acc, csr.IRQ_STATUS, 0)
	if got, want := rd(t, acc, csr.IRQ_STATUS), uint32(csr.IRQ_TIMESTEP_DONE); got != want {
		t.Fatalf("writing 0 must not modify irq_status: got=0x%x, want=0x%x", got, want)
	}
	wr(t, acc, csr.IRQ_STATUS, csr.IRQ_TIMESTEP_DONE)
	if acc.Line() {
		t.Fatalf("line should be deasserted")
	}

	if got, want := fmt.Sprint(lines), "[true false]"; got != want {
		t.Fatalf("invalid irq notifications: got=%s, want=%s", got, want)
	}
}

type memory []byte

func (mem memory) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(mem)) {
		return 0, io.ErrUnexpectedEOF
	}
	return copy(p, mem[off:]), nil
}

func (mem memory) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(mem)) {
		return 0, io.ErrShortWrite
	}
	return copy(mem[off:], p), nil
}

func TestDMA(t *testing.T) {
	acc := newTestAccel(t)
	wr(t, acc, csr.DMA_SRC, 0x10)
	wr(t, acc, csr.DMA_DST, 0x100)

	err := acc.Write(csr.DMA_CONTROL, csr.DMA_CMD_START)
	if !errors.Is(err, csr.ErrInvalidLength) {
		t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrInvalidLength)
	}
	if got, want := errCode(t, acc), csr.CodeInvalidLength; got != want {
		t.Fatalf("invalid error code: got=%v, want=%v", got, want)
	}

	wr(t, acc, csr.DMA_LENGTH, 16)
	err = acc.Write(csr.DMA_CONTROL, csr.DMA_CMD_START)
	if !errors.Is(err, csr.ErrNotReady) {
		t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrNotReady)
	}
	wr(t, acc, csr.CONFIG, csr.CFG_DMA_ENABLE)
	err = acc.Write(csr.DMA_CONTROL, csr.DMA_CMD_START)
	if !errors.Is(err, csr.ErrNotReady) {
		t.Fatalf("dma without enable: got=%v, want=%v", err, csr.ErrNotReady)
	}
	if got, want := rd(t, acc, csr.DMA_STATUS), uint32(0); got != want {
		t.Fatalf("invalid dma_status: got=0x%x, want=0x%x", got, want)
	}

	wr(t, acc, csr.CONFIG, csr.CFG_ENABLE|csr.CFG_DMA_ENABLE)
	wr(t, acc, csr.DMA_CONTROL, csr.DMA_CMD_START)
	if got, want := rd(t, acc, csr.DMA_STATUS), uint32(csr.DMA_BUSY); got != want {
		t.Fatalf("invalid dma_status: got=0x%x, want=0x%x", got, want)
	}
	if got := rd(t, acc, csr.STATUS); got&csr.S_DMA_BUSY == 0 {
		t.Fatalf("status should report a busy dma: 0x%x", got)
	}

	err = acc.Write(csr.DMA_SRC, 0xdead)
	if !errors.Is(err, csr.ErrBusy) {
		t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrBusy)
	}
	err = acc.Write(csr.DMA_CONTROL, csr.DMA_CMD_START)
	if !errors.Is(err, csr.ErrBusy) {
		t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrBusy)
	}
	for _, tc := range []struct {
		off  uint32
		want uint32
	}{
		{csr.DMA_SRC, 0x10},
		{csr.DMA_DST, 0x100},
		{csr.DMA_LENGTH, 16},
	} {
		if got := rd(t, acc, tc.off); got != tc.want {
			t.Fatalf("busy dma parameter 0x%02x modified: got=0x%x, want=0x%x", tc.off, got, tc.want)
		}
	}

	// the dma engine runs independently of the state machine.
	if got, want := acc.State(), Idle; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}

	wr(t, acc, csr.IRQ_STATUS, csr.IRQ_MASK_ALL)
	if !acc.CompleteDMA(true) {
		t.Fatalf("no dma transfer in flight")
	}
	if got, want := rd(t, acc, csr.DMA_STATUS), uint32(csr.DMA_DONE); got != want {
		t.Fatalf("invalid dma_status: got=0x%x, want=0x%x", got, want)
	}
	if got, want := rd(t, acc, csr.IRQ_STATUS), uint32(csr.IRQ_DMA_DONE); got != want {
		t.Fatalf("invalid irq_status: got=0x%x, want=0x%x", got, want)
	}
	if acc.CompleteDMA(true) {
		t.Fatalf("spurious completion should be ignored")
	}

	wr(t, acc, csr.DMA_CONTROL, csr.DMA_CMD_START)
	wr(t, acc, csr.DMA_CONTROL, csr.DMA_CMD_ABORT)
	if got, want := rd(t, acc, csr.DMA_STATUS), uint32(csr.DMA_ERROR); got != want {
		t.Fatalf("invalid dma_status after abort: got=0x%x, want=0x%x", got, want)
	}
	wr(t, acc, csr.DMA_CONTROL, csr.DMA_CMD_ABORT)
	if got, want := rd(t, acc, csr.DMA_STATUS), uint32(csr.DMA_ERROR); got != want {
		t.Fatalf("abort of idle dma should be a no-op: got=0x%x, want=0x%x", got, want)
	}
}

func TestDMATransfer(t *testing.T) {
	mem := make(memory, 64)
	for i := range mem[:16] {
		mem[i] = byte(i + 1)
	}

	acc := newTestAccel(t, WithMemory(mem), WithDMALatency(2))
	wr(t, acc, csr.CONFIG, csr.CFG_ENABLE|csr.CFG_DMA_ENABLE)
	wr(t, acc, csr.DMA_SRC, 0)
	wr(t, acc, csr.DMA_DST, 32)
	wr(t, acc, csr.DMA_LENGTH, 16)
	wr(t, acc, csr.DMA_CONTROL, csr.DMA_CMD_START)

	acc.Tick()
	if got, want := rd(t, acc, csr.DMA_STATUS), uint32(csr.DMA_BUSY); got != want {
		t.Fatalf("invalid dma_status: got=0x%x, want=0x%x", got, want)
	}
	acc.Tick()
	if got, want := rd(t, acc, csr.DMA_STATUS), uint32(csr.DMA_DONE); got != want {
		t.Fatalf("invalid dma_status: got=0x%x, want=0x%x", got, want)
	}
	if !bytes.Equal(mem[32:48], mem[:16]) {
		t.Fatalf("invalid dma copy:\ngot= %v\nwant=%v", mem[32:48], mem[:16])
	}

	wr(t, acc, csr.IRQ_STATUS, csr.IRQ_MASK_ALL)
	wr(t, acc, csr.DMA_DST, 60)
	wr(t, acc, csr.DMA_CONTROL, csr.DMA_CMD_START)
	acc.Tick()
	acc.Tick()
	if got, want := rd(t, acc, csr.DMA_STATUS), uint32(csr.DMA_ERROR); got != want {
		t.Fatalf("invalid dma_status: got=0x%x, want=0x%x", got, want)
	}
	if got, want := rd(t, acc, csr.IRQ_STATUS), uint32(csr.IRQ_DMA_DONE|csr.IRQ_ERROR); got != want {
		t.Fatalf("invalid irq_status: got=0x%x, want=0x%x", got, want)
	}
}

func TestWindow(t *testing.T) {
	acc := newTestAccel(t)

	_, err := acc.WriteAt([]byte{0x00, 0x02, 0x00, 0x00}, csr.NEURON_COUNT)
	if err != nil {
		t.Fatalf("could not write neuron_count: %+v", err)
	}
	_, err = acc.WriteAt([]byte{0x03}, csr.NEURON_COUNT)
	if err != nil {
		t.Fatalf("could not write neuron_count[7:0]: %+v", err)
	}
	if got, want := rd(t, acc, csr.NEURON_COUNT), uint32(0x203); got != want {
		t.Fatalf("narrow write perturbed other bytes: got=0x%x, want=0x%x", got, want)
	}

	buf := make([]byte, 2)
	_, err = acc.ReadAt(buf, csr.NEURON_COUNT+1)
	if err != nil {
		t.Fatalf("could not read neuron_count[23:8]: %+v", err)
	}
	if got, want := buf, []byte{0x02, 0x00}; !bytes.Equal(got, want) {
		t.Fatalf("invalid narrow read: got=%v, want=%v", got, want)
	}

	// upper bytes of the 8-bit control register are ignored.
	_, err = acc.WriteAt([]byte{0xff}, csr.CONTROL+1)
	if err != nil {
		t.Fatalf("could not write control[15:8]: %+v", err)
	}
	if got, want := acc.State(), Idle; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}
	wr(t, acc, csr.CONFIG, csr.CFG_ENABLE)
	_, err = acc.WriteAt([]byte{csr.CMD_START, 0xff, 0xff, 0xff}, csr.CONTROL)
	if err != nil {
		t.Fatalf("could not write control: %+v", err)
	}
	if got, want := acc.State(), Running; got != want {
		t.Fatalf("invalid state: got=%v, want=%v", got, want)
	}

	wr(t, acc, csr.FIFO_IN_DATA, 7)
	acc.Tick()
	acc.Tick()

	buf = make([]byte, 12)
	n, err := acc.ReadAt(buf, csr.TIMESTEP)
	if err == nil {
		t.Fatalf("expected an error reading the write-only fifo_in_data")
	}
	if n != 8 {
		t.Fatalf("invalid number of bytes read: got=%d, want=%d", n, 8)
	}
	if got, want := buf[:8], []byte{2, 0, 0, 0, 1, 0, 0, 0}; !bytes.Equal(got, want) {
		t.Fatalf("invalid timestep+spike_count: got=%v, want=%v", got, want)
	}

	buf = make([]byte, 4)
	_, err = acc.ReadAt(buf, csr.FIFO_OUT_DATA)
	if err != nil {
		t.Fatalf("could not pop spike: %+v", err)
	}
	if got, want := buf, []byte{7, 0, 0, 0}; !bytes.Equal(got, want) {
		t.Fatalf("invalid spike: got=%v, want=%v", got, want)
	}

	_, err = acc.ReadAt(buf, csr.CONTROL)
	if !errors.Is(err, csr.ErrInvalidRegister) {
		t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrInvalidRegister)
	}
	_, err = acc.WriteAt(buf, csr.STATUS)
	if !errors.Is(err, csr.ErrReadOnlyRegister) {
		t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrReadOnlyRegister)
	}
	_, err = acc.ReadAt(buf, 0x1000)
	if !errors.Is(err, csr.ErrInvalidRegister) {
		t.Fatalf("invalid error: got=%v, want=%v", err, csr.ErrInvalidRegister)
	}
}

func TestRun(t *testing.T) {
	acc := newTestAccel(t)
	wr(t, acc, csr.CONFIG, csr.CFG_ENABLE)
	wr(t, acc, csr.EPOCH_LEN, 4)
	wr(t, acc, csr.CONTROL, csr.CMD_START)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		errc <- acc.Run(ctx, time.Millisecond)
	}()

	timeout := time.After(5 * time.Second)
loop:
	for {
		select {
		case <-timeout:
			t.Fatalf("timeout waiting for the end of the epoch")
		default:
			if acc.State() == Stopped {
				break loop
			}
			time.Sleep(time.Millisecond)
		}
	}
	cancel()

	err := <-errc
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("invalid run error: got=%v, want=%v", err, context.Canceled)
	}
	if got, want := rd(t, acc, csr.TIMESTEP), uint32(4); got != want {
		t.Fatalf("invalid timestep: got=%d, want=%d", got, want)
	}

	err = acc.Run(context.Background(), 0)
	if err == nil {
		t.Fatalf("expected an error for a zero clock period")
	}
}
