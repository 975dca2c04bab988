// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package accel

import "fmt"

// State is the lifecycle state of the accelerator.
type State uint8

const (
	Idle State = iota
	Running
	Stopping
	Stopped
	Aborted
	Resetting
)

func (st State) String() string {
	switch st {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	case Aborted:
		return "aborted"
	case Resetting:
		return "resetting"
	default:
		return fmt.Sprintf("State(%d)", uint8(st))
	}
}

// Active reports whether the compute path is active in that state.
func (st State) Active() bool {
	return st == Running || st == Stopping
}

// idle reports whether a START or SINGLE_STEP is legal from that state.
func (st State) idle() bool {
	return st == Idle || st == Stopped
}
