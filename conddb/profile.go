// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package conddb

import (
	"time"

	"github.com/go-lpc/snn/csr"
)

// Profile is a named configuration of the accelerator registers.
type Profile struct {
	ID          uint32 `json:"id"`
	Name        string `json:"name"`
	Config      uint32 `json:"config"`
	EpochLen    uint32 `json:"epoch_len"`
	NeuronCount uint32 `json:"neuron_count"`
	Threshold   uint32 `json:"threshold"`
	LeakRate    uint32 `json:"leak_rate"`
	Refractory  uint32 `json:"refractory"`
	WeightBase  uint32 `json:"weight_base"`
	StateBase   uint32 `json:"state_base"`
	IRQMask     uint32 `json:"irq_mask"`
}

// DefaultProfile returns a profile with the reset values of the
// accelerator, with the compute path enabled.
func DefaultProfile() Profile {
	return Profile{
		Name:        "default",
		Config:      csr.CFG_ENABLE,
		NeuronCount: csr.ResetNeuronCount,
		Threshold:   csr.ResetThreshold,
		LeakRate:    csr.ResetLeakRate,
		Refractory:  csr.ResetRefractory,
	}
}

// Run is the record of an accelerator run.
type Run struct {
	Profile   string
	Timesteps uint32
	Spikes    uint64
	Status    uint32 // status register at the end of the run
	Start     time.Time
	Stop      time.Time
}
