// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package csr

// Register offsets, in bytes from the base of the register window.
const (
	CONTROL         = 0x00
	STATUS          = 0x04
	EPOCH_LEN       = 0x08
	NEURON_COUNT    = 0x0C
	CONFIG          = 0x10
	IRQ_MASK        = 0x14
	TIMESTEP        = 0x18
	SPIKE_COUNT     = 0x1C
	FIFO_IN_DATA    = 0x20
	IRQ_STATUS      = 0x24
	FIFO_IN_STATUS  = 0x28
	FIFO_OUT_STATUS = 0x2C
	FIFO_OUT_DATA   = 0x30
	DMA_SRC         = 0x34
	DMA_DST         = 0x38
	DMA_LENGTH      = 0x3C
	DMA_CONTROL     = 0x40
	DMA_STATUS      = 0x44
	WEIGHT_BASE     = 0x48
	STATE_BASE      = 0x4C
	THRESHOLD       = 0x50
	LEAK_RATE       = 0x54
	REFRACTORY      = 0x58
	DEBUG_0         = 0x5C
	DEBUG_1         = 0x60
	SPIKE_COUNT_HI  = 0x64

	// WindowSize is the default size of the mapped register window.
	WindowSize = 0x1000
)

// Reset values.
const (
	ResetNeuronCount = 256
	ResetThreshold   = 0x00010000 // 1.0 in signed 16.16
	ResetLeakRate    = 0x00000100
	ResetRefractory  = 5
)

var fifoFields = []Field{
	{Name: "level", Lsb: 0, Width: 16},
	{Name: "full", Lsb: 16, Width: 1},
	{Name: "empty", Lsb: 17, Width: 1},
	{Name: "overflow", Lsb: 18, Width: 1},
	{Name: "underflow", Lsb: 19, Width: 1},
}

var irqFields = []Field{
	{Name: "spike_out", Lsb: 0, Width: 1},
	{Name: "timestep_done", Lsb: 1, Width: 1},
	{Name: "dma_done", Lsb: 2, Width: 1},
	{Name: "fifo_in_low", Lsb: 3, Width: 1},
	{Name: "fifo_out_high", Lsb: 4, Width: 1},
	{Name: "error", Lsb: 5, Width: 1},
}

// Layout is the register layout of the SNN accelerator.
var Layout = mustMap(
	Register{
		Name: "control", Offset: CONTROL, Width: 8, Access: WriteOnly,
		Fields: []Field{
			{Name: "start", Lsb: 0, Width: 1},
			{Name: "stop", Lsb: 1, Width: 1},
			{Name: "abort", Lsb: 2, Width: 1},
			{Name: "reset", Lsb: 3, Width: 1},
			{Name: "single_step", Lsb: 4, Width: 1},
			{Name: "fifo_flush", Lsb: 5, Width: 1},
		},
	},
	Register{
		Name: "status", Offset: STATUS, Width: 32, Access: ReadOnly,
		Fields: []Field{
			{Name: "fifo_in_full", Lsb: 0, Width: 1},
			{Name: "fifo_in_empty", Lsb: 1, Width: 1},
			{Name: "fifo_out_full", Lsb: 2, Width: 1},
			{Name: "fifo_out_empty", Lsb: 3, Width: 1},
			{Name: "active", Lsb: 4, Width: 1},
			{Name: "fifo_in_fault", Lsb: 5, Width: 1},
			{Name: "fifo_out_fault", Lsb: 6, Width: 1},
			{Name: "dma_busy", Lsb: 7, Width: 1},
			{Name: "error", Lsb: 8, Width: 8},
		},
	},
	Register{Name: "epoch_len", Offset: EPOCH_LEN, Width: 32, Access: ReadWrite},
	Register{
		Name: "neuron_count", Offset: NEURON_COUNT, Width: 32, Access: ReadWrite,
		Reset: ResetNeuronCount,
	},
	Register{
		Name: "config", Offset: CONFIG, Width: 32, Access: ReadWrite,
		Fields: []Field{
			{Name: "enable", Lsb: 0, Width: 1},
			{Name: "reset_on_spike", Lsb: 1, Width: 1},
			{Name: "leaky", Lsb: 2, Width: 1},
			{Name: "dma_enable", Lsb: 3, Width: 1},
			{Name: "width", Lsb: 4, Width: 4, RO: true},
			{Name: "depth", Lsb: 8, Width: 8, RO: true},
		},
	},
	Register{Name: "irq_mask", Offset: IRQ_MASK, Width: 32, Access: ReadWrite, Fields: irqFields},
	Register{Name: "timestep", Offset: TIMESTEP, Width: 32, Access: ReadOnly},
	Register{Name: "spike_count", Offset: SPIKE_COUNT, Width: 32, Access: ReadOnly},
	Register{Name: "fifo_in_data", Offset: FIFO_IN_DATA, Width: 32, Access: WriteOnly},
	Register{Name: "irq_status", Offset: IRQ_STATUS, Width: 32, Access: WriteClear, Fields: irqFields},
	Register{Name: "fifo_in_status", Offset: FIFO_IN_STATUS, Width: 32, Access: ReadOnly, Fields: fifoFields},
	Register{Name: "fifo_out_status", Offset: FIFO_OUT_STATUS, Width: 32, Access: ReadOnly, Fields: fifoFields},
	Register{Name: "fifo_out_data", Offset: FIFO_OUT_DATA, Width: 32, Access: ReadOnly},
	Register{Name: "dma_src", Offset: DMA_SRC, Width: 32, Access: ReadWrite},
	Register{Name: "dma_dst", Offset: DMA_DST, Width: 32, Access: ReadWrite},
	Register{Name: "dma_length", Offset: DMA_LENGTH, Width: 32, Access: ReadWrite},
	Register{
		Name: "dma_control", Offset: DMA_CONTROL, Width: 8, Access: WriteOnly,
		Fields: []Field{
			{Name: "start", Lsb: 0, Width: 1},
			{Name: "abort", Lsb: 1, Width: 1},
		},
	},
	Register{
		Name: "dma_status", Offset: DMA_STATUS, Width: 32, Access: ReadOnly,
		Fields: []Field{
			{Name: "busy", Lsb: 0, Width: 1},
			{Name: "done", Lsb: 1, Width: 1},
			{Name: "error", Lsb: 2, Width: 1},
		},
	},
	Register{Name: "weight_base", Offset: WEIGHT_BASE, Width: 32, Access: ReadWrite},
	Register{Name: "state_base", Offset: STATE_BASE, Width: 32, Access: ReadWrite},
	Register{Name: "threshold", Offset: THRESHOLD, Width: 32, Access: ReadWrite, Reset: ResetThreshold},
	Register{Name: "leak_rate", Offset: LEAK_RATE, Width: 32, Access: ReadWrite, Reset: ResetLeakRate},
	Register{Name: "refractory", Offset: REFRACTORY, Width: 32, Access: ReadWrite, Reset: ResetRefractory},
	Register{
		Name: "debug_0", Offset: DEBUG_0, Width: 32, Access: ReadOnly,
		Fields: []Field{
			{Name: "state", Lsb: 0, Width: 4},
			{Name: "config", Lsb: 8, Width: 4},
			{Name: "line", Lsb: 16, Width: 1},
		},
	},
	Register{
		Name: "debug_1", Offset: DEBUG_1, Width: 32, Access: ReadOnly,
		Fields: []Field{
			{Name: "consumed", Lsb: 0, Width: 16},
			{Name: "emitted", Lsb: 16, Width: 16},
		},
	},
	Register{Name: "spike_count_hi", Offset: SPIKE_COUNT_HI, Width: 32, Access: ReadOnly},
)

func mustMap(regs ...Register) *Map {
	m, err := NewMap(regs...)
	if err != nil {
		panic(err)
	}
	return m
}
