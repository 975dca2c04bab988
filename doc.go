// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package snn holds code to control an SNN (spiking neural network)
// accelerator through its memory-mapped register block.
//
// The register map is described by package csr. Package accel simulates
// the accelerator, its control state machine, spike FIFOs, DMA engine and
// interrupt dispatcher. Package driver drives a real or simulated
// accelerator through a register window, and serves it over TCP and HTTP.
// Package rctl exposes the accelerator as a tdaq run-control process.
//
// Commands:
//   - snn-boot: (re)starts the SNN processes,
//   - snn-ctl: controls the accelerator registers,
//   - snn-rctl: runs a tdaq run-control node,
//   - snn-shell: interactive shell to an snn-srv server,
//   - snn-spy: dumps the accelerator registers,
//   - snn-sql: inspects the condition database,
//   - snn-srv: serves the accelerator over TCP and HTTP.
package snn // import "github.com/go-lpc/snn"

import (
	"fmt"
	"runtime/debug"
)

// Version returns the version of snn and its checksum.
// The returned values are only valid in binaries built with module support.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	if b == nil {
		return "", ""
	}

	const root = "github.com/go-lpc/snn"
	for _, m := range b.Deps {
		if m.Path != root {
			continue
		}
		if m.Replace != nil {
			switch {
			case m.Replace.Version != "" && m.Replace.Path != "":
				return fmt.Sprintf("%s %s", m.Replace.Path, m.Replace.Version), m.Replace.Sum
			case m.Replace.Version != "":
				return m.Replace.Version, m.Replace.Sum
			case m.Replace.Path != "":
				return m.Replace.Path, m.Replace.Sum
			default:
				return m.Version + "*", ""
			}
		}
		return m.Version, m.Sum
	}
	return "", ""
}
