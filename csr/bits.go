// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package csr

// control command bits.
const (
	CMD_START       = 0x01
	CMD_STOP        = 0x02
	CMD_ABORT       = 0x04
	CMD_RESET       = 0x08
	CMD_SINGLE_STEP = 0x10
	CMD_FIFO_FLUSH  = 0x20

	CMD_MASK = 0x3f
)

// status bits.
const (
	S_FIFO_IN_FULL   = 1 << 0
	S_FIFO_IN_EMPTY  = 1 << 1
	S_FIFO_OUT_FULL  = 1 << 2
	S_FIFO_OUT_EMPTY = 1 << 3
	S_ACTIVE         = 1 << 4
	S_FIFO_IN_FAULT  = 1 << 5
	S_FIFO_OUT_FAULT = 1 << 6
	S_DMA_BUSY       = 1 << 7

	SHIFT_ERROR_CODE = 8
	MASK_ERROR_CODE  = 0xff << SHIFT_ERROR_CODE
)

// config bits.
const (
	CFG_ENABLE         = 1 << 0
	CFG_RESET_ON_SPIKE = 1 << 1
	CFG_LEAKY          = 1 << 2
	CFG_DMA_ENABLE     = 1 << 3

	CFG_MASK = CFG_ENABLE | CFG_RESET_ON_SPIKE | CFG_LEAKY | CFG_DMA_ENABLE

	SHIFT_CFG_WIDTH = 4
	SHIFT_CFG_DEPTH = 8
)

// irq_mask and irq_status bits.
const (
	IRQ_SPIKE_OUT     = 1 << 0
	IRQ_TIMESTEP_DONE = 1 << 1
	IRQ_DMA_DONE      = 1 << 2
	IRQ_FIFO_IN_LOW   = 1 << 3
	IRQ_FIFO_OUT_HIGH = 1 << 4
	IRQ_ERROR         = 1 << 5

	IRQ_MASK_ALL = 0x3f
)

// fifo_in_status and fifo_out_status bits.
const (
	MASK_FIFO_LEVEL = 0xffff
	FIFO_FULL       = 1 << 16
	FIFO_EMPTY      = 1 << 17
	FIFO_OVERFLOW   = 1 << 18
	FIFO_UNDERFLOW  = 1 << 19
)

// FIFOLevel decodes the level of a FIFO status word.
// The level field wraps to 0 when a FIFO of depth 1<<16 is full.
func FIFOLevel(status uint32) uint32 {
	lvl := status & MASK_FIFO_LEVEL
	if lvl == 0 && status&FIFO_FULL != 0 {
		return MASK_FIFO_LEVEL + 1
	}
	return lvl
}

// dma_control bits.
const (
	DMA_CMD_START = 0x01
	DMA_CMD_ABORT = 0x02
)

// dma_status bits.
const (
	DMA_BUSY  = 1 << 0
	DMA_DONE  = 1 << 1
	DMA_ERROR = 1 << 2
)

// debug_0 layout.
const (
	SHIFT_DEBUG_CONFIG = 8
	DEBUG_LINE         = 1 << 16
)

// Bit returns the value of the i-th bit of word.
func Bit(word uint32, i uint) uint32 {
	return (word >> i) & 0x1
}
