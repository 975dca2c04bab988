// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package accel

// Params is the configuration snapshot seen by the compute path.
// It is taken at START, RESET and SINGLE_STEP.
type Params struct {
	Config      uint32
	EpochLen    uint32
	NeuronCount uint32
	Threshold   uint32
	LeakRate    uint32
	Refractory  uint32
	WeightBase  uint32
	StateBase   uint32
}

// Core is the compute path of the accelerator.
//
// Step is called once per timestep with the spikes consumed from the
// ingress FIFO and returns the spikes to push into the egress FIFO.
type Core interface {
	Step(p Params, in []uint32) []uint32
}

// CoreFunc adapts a function into a Core.
type CoreFunc func(p Params, in []uint32) []uint32

func (f CoreFunc) Step(p Params, in []uint32) []uint32 { return f(p, in) }

// Relay re-emits every input spike for neuron id%NeuronCount.
var Relay Core = CoreFunc(relay)

func relay(p Params, in []uint32) []uint32 {
	if len(in) == 0 {
		return nil
	}
	n := p.NeuronCount
	if n == 0 {
		n = 1
	}
	out := make([]uint32, len(in))
	for i, id := range in {
		out[i] = id % n
	}
	return out
}
