// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"fmt"

	"github.com/go-daq/smbus"
)

type smbusConn interface {
	ReadReg(addr, reg uint8) (uint8, error)
	WriteReg(addr, reg, v uint8) error
	Close() error
}

var _ smbusConn = (*smbus.Conn)(nil)

// smbusWindow exposes the registers of a bus-attached accelerator,
// one byte-wide bus register per window byte.
type smbusWindow struct {
	conn smbusConn
	addr uint8
}

// OpenSMBus returns a device driving an accelerator attached to the
// SMBus bus at the provided address.
func OpenSMBus(bus int, addr uint8, opts ...Option) (*Device, error) {
	conn, err := smbus.Open(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("snn: could not open smbus %d (addr=0x%x): %w", bus, addr, err)
	}
	return New(&smbusWindow{conn: conn, addr: addr}, opts...), nil
}

func (w *smbusWindow) ReadAt(p []byte, off int64) (int, error) {
	for i := range p {
		reg, err := w.reg(off + int64(i))
		if err != nil {
			return i, err
		}
		p[i], err = w.conn.ReadReg(w.addr, reg)
		if err != nil {
			return i, fmt.Errorf("snn: could not read smbus register 0x%x: %w", reg, err)
		}
	}
	return len(p), nil
}

func (w *smbusWindow) WriteAt(p []byte, off int64) (int, error) {
	for i, v := range p {
		reg, err := w.reg(off + int64(i))
		if err != nil {
			return i, err
		}
		err = w.conn.WriteReg(w.addr, reg, v)
		if err != nil {
			return i, fmt.Errorf("snn: could not write smbus register 0x%x: %w", reg, err)
		}
	}
	return len(p), nil
}

func (w *smbusWindow) reg(off int64) (uint8, error) {
	if off < 0 || off > 0xff {
		return 0, fmt.Errorf("snn: invalid smbus register offset 0x%x", off)
	}
	return uint8(off), nil
}

func (w *smbusWindow) Close() error {
	return w.conn.Close()
}
