// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"fmt"
	"strings"

	"github.com/go-lpc/snn/csr"
)

// Status is the decoded status register.
type Status struct {
	Raw      uint32   `json:"raw"`
	InFull   bool     `json:"in_full"`
	InEmpty  bool     `json:"in_empty"`
	OutFull  bool     `json:"out_full"`
	OutEmpty bool     `json:"out_empty"`
	Active   bool     `json:"active"`
	InFault  bool     `json:"in_fault"`
	OutFault bool     `json:"out_fault"`
	DMABusy  bool     `json:"dma_busy"`
	Code     csr.Code `json:"code"`
}

func newStatus(v uint32) Status {
	return Status{
		Raw:      v,
		InFull:   v&csr.S_FIFO_IN_FULL != 0,
		InEmpty:  v&csr.S_FIFO_IN_EMPTY != 0,
		OutFull:  v&csr.S_FIFO_OUT_FULL != 0,
		OutEmpty: v&csr.S_FIFO_OUT_EMPTY != 0,
		Active:   v&csr.S_ACTIVE != 0,
		InFault:  v&csr.S_FIFO_IN_FAULT != 0,
		OutFault: v&csr.S_FIFO_OUT_FAULT != 0,
		DMABusy:  v&csr.S_DMA_BUSY != 0,
		Code:     csr.ErrorCode(v),
	}
}

// Err returns the error matching the latched error code, if any.
func (st Status) Err() error { return st.Code.Err() }

func (st Status) String() string {
	var flags []string
	for _, f := range []struct {
		ok   bool
		name string
	}{
		{st.InFull, "in-full"},
		{st.InEmpty, "in-empty"},
		{st.OutFull, "out-full"},
		{st.OutEmpty, "out-empty"},
		{st.Active, "active"},
		{st.InFault, "in-fault"},
		{st.OutFault, "out-fault"},
		{st.DMABusy, "dma-busy"},
	} {
		if f.ok {
			flags = append(flags, f.name)
		}
	}
	return fmt.Sprintf("status=0x%08x [%s] err=%v", st.Raw, strings.Join(flags, "|"), st.Code)
}

// FIFOStatus is the decoded status of a spike FIFO.
type FIFOStatus struct {
	Level     uint32 `json:"level"`
	Full      bool   `json:"full"`
	Empty     bool   `json:"empty"`
	Overflow  bool   `json:"overflow"`
	Underflow bool   `json:"underflow"`
}

func newFIFOStatus(v uint32) FIFOStatus {
	return FIFOStatus{
		Level:     csr.FIFOLevel(v),
		Full:      v&csr.FIFO_FULL != 0,
		Empty:     v&csr.FIFO_EMPTY != 0,
		Overflow:  v&csr.FIFO_OVERFLOW != 0,
		Underflow: v&csr.FIFO_UNDERFLOW != 0,
	}
}

// DMAStatus is the decoded DMA status register.
type DMAStatus struct {
	Busy  bool `json:"busy"`
	Done  bool `json:"done"`
	Error bool `json:"error"`
}

func newDMAStatus(v uint32) DMAStatus {
	return DMAStatus{
		Busy:  v&csr.DMA_BUSY != 0,
		Done:  v&csr.DMA_DONE != 0,
		Error: v&csr.DMA_ERROR != 0,
	}
}
