// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap maps a physical register window through /dev/mem.
package mmap // import "github.com/go-lpc/snn/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

// Handle is a memory-mapped window of a file.
type Handle struct {
	mmap []byte // page-aligned mapping
	data []byte // requested window, within mmap
}

// HandleFrom wraps an already mapped region.
func HandleFrom(data []byte) *Handle {
	h := &Handle{mmap: data, data: data}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h
}

// Open maps size bytes of fname, starting at the physical address base.
// base does not need to be page aligned.
func Open(fname string, base, size int64) (*Handle, error) {
	if base < 0 || size <= 0 {
		return nil, fmt.Errorf("mmap: invalid window (base=0x%x, size=0x%x)", base, size)
	}

	f, err := os.OpenFile(fname, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}
	// the mapping outlives the file descriptor.
	defer f.Close()

	var (
		page  = int64(os.Getpagesize())
		start = base &^ (page - 1)
		delta = base - start
		n     = int((delta + size + page - 1) &^ (page - 1))
	)

	mem, err := unix.Mmap(
		int(f.Fd()), start, n,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED,
	)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not map %q (base=0x%x, size=0x%x): %w", fname, base, size, err)
	}

	h := &Handle{
		mmap: mem,
		data: mem[delta : delta+size : delta+size],
	}
	runtime.SetFinalizer(h, (*Handle).Close)
	return h, nil
}

// Close unmaps the window.
func (h *Handle) Close() error {
	if h == nil {
		return os.ErrInvalid
	}

	if h.mmap == nil {
		return nil
	}
	mem := h.mmap
	h.mmap = nil
	h.data = nil
	runtime.SetFinalizer(h, nil)

	return unix.Munmap(mem)
}

// Len returns the length of the mapped window.
func (h *Handle) Len() int {
	return len(h.data)
}

// ReadAt implements the io.ReaderAt interface.
func (h *Handle) ReadAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, h.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt implements the io.WriterAt interface.
func (h *Handle) WriteAt(p []byte, off int64) (int, error) {
	if h == nil {
		return 0, os.ErrInvalid
	}

	if h.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(h.data)) < off {
		return 0, fmt.Errorf("mmap: invalid WriteAt offset %d", off)
	}
	n := copy(h.data[off:], p)
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*Handle)(nil)
	_ io.WriterAt = (*Handle)(nil)
	_ io.Closer   = (*Handle)(nil)
)
