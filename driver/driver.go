// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package driver provides the host-side driver of the SNN accelerator.
//
// A Device drives the accelerator through its register window: a
// memory-mapped /dev/mem range, a bus-attached peripheral or a simulated
// accelerator. All registers are accessed as 32-bit little-endian words.
package driver // import "github.com/go-lpc/snn/driver"

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-lpc/snn/internal/mmap"
)

// Window is a byte-addressable register window.
type Window interface {
	io.ReaderAt
	io.WriterAt
}

type config struct {
	msg   *log.Logger
	delay time.Duration // delay after a reset, before reconfiguring
	poll  time.Duration // polling period of blocking waits
}

func newConfig() config {
	return config{
		msg:   log.New(os.Stdout, "snn: ", 0),
		delay: 10 * time.Millisecond,
		poll:  time.Millisecond,
	}
}

// Option configures a Device.
type Option func(*config)

// WithLogger sets the logger of the device.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithResetDelay sets how long the smoke sequence waits after a reset.
func WithResetDelay(d time.Duration) Option {
	return func(cfg *config) {
		cfg.delay = d
	}
}

// WithPollInterval sets the polling period used while waiting on the device.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *config) {
		cfg.poll = d
	}
}

// Device is the driver of one SNN accelerator.
// Device is safe for concurrent use: every operation holds the device lock.
type Device struct {
	mu  sync.Mutex
	msg *log.Logger
	cfg config

	win Window
	clo io.Closer

	err  error
	buf  [4]byte
	regs pins
}

// New creates a device driving the provided register window.
func New(win Window, opts ...Option) *Device {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	dev := &Device{
		msg: cfg.msg,
		cfg: cfg,
		win: win,
	}
	if c, ok := win.(io.Closer); ok {
		dev.clo = c
	}
	dev.setupRegisters(win)
	return dev
}

// Open maps size bytes of the devmem file at the physical address base
// and returns a device driving that register window.
func Open(devmem string, base, size int64, opts ...Option) (*Device, error) {
	h, err := mmap.Open(devmem, base, size)
	if err != nil {
		return nil, fmt.Errorf("snn: could not map register window: %w", err)
	}
	return New(h, opts...), nil
}

// Close releases the register window.
func (dev *Device) Close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.clo == nil {
		return nil
	}
	err := dev.clo.Close()
	dev.clo = nil
	if err != nil {
		return fmt.Errorf("snn: could not close register window: %w", err)
	}
	return nil
}

func (dev *Device) readU32(r io.ReaderAt, off int64) uint32 {
	if dev.err != nil {
		return 0
	}
	_, dev.err = r.ReadAt(dev.buf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("snn: could not read register 0x%x: %w", off, dev.err)
		return 0
	}
	return binary.LittleEndian.Uint32(dev.buf[:4])
}

func (dev *Device) writeU32(w io.WriterAt, off int64, v uint32) {
	if dev.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(dev.buf[:4], v)
	_, dev.err = w.WriteAt(dev.buf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("snn: could not write register 0x%x: %w", off, dev.err)
		return
	}
}

// begin locks the device and clears the sticky error of a previous operation.
func (dev *Device) begin() {
	dev.mu.Lock()
	dev.err = nil
}

// end unlocks the device and returns the error of the current operation.
func (dev *Device) end() error {
	err := dev.err
	dev.err = nil
	dev.mu.Unlock()
	return err
}
