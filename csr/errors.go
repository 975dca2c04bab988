// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package csr

import (
	"errors"
	"fmt"
)

// Register-map errors. These are programming errors of the caller:
// they are returned but never latched into the status register.
var (
	ErrInvalidRegister  = errors.New("invalid register")
	ErrReadOnlyRegister = errors.New("read-only register")
	ErrOutOfRange       = errors.New("value out of range")
)

// Protocol errors. These are returned and latched into status[15:8].
var (
	ErrNotEnabled        = errors.New("accelerator not enabled")
	ErrIllegalTransition = errors.New("illegal state transition")
	ErrOverflow          = errors.New("fifo overflow")
	ErrUnderflow         = errors.New("fifo underflow")
	ErrBusy              = errors.New("dma busy")
	ErrNotReady          = errors.New("dma not ready")
	ErrInvalidLength     = errors.New("invalid dma length")
	ErrAborted           = errors.New("aborted")
)

// Code is the error code latched in bits 15:8 of the status register.
type Code uint8

const (
	CodeNone Code = iota
	CodeNotEnabled
	CodeIllegalTransition
	CodeOverflow
	CodeUnderflow
	CodeBusy
	CodeNotReady
	CodeInvalidLength
	CodeAborted
)

var codeErrs = [...]error{
	CodeNone:              nil,
	CodeNotEnabled:        ErrNotEnabled,
	CodeIllegalTransition: ErrIllegalTransition,
	CodeOverflow:          ErrOverflow,
	CodeUnderflow:         ErrUnderflow,
	CodeBusy:              ErrBusy,
	CodeNotReady:          ErrNotReady,
	CodeInvalidLength:     ErrInvalidLength,
	CodeAborted:           ErrAborted,
}

// Err returns the error associated with the latched code.
func (c Code) Err() error {
	if int(c) < len(codeErrs) {
		return codeErrs[c]
	}
	return fmt.Errorf("unknown error code 0x%02x", uint8(c))
}

func (c Code) String() string {
	if c == CodeNone {
		return "none"
	}
	return c.Err().Error()
}

// CodeOf returns the latched code matching err.
// CodeOf returns CodeNone for nil and for errors that are not latched.
func CodeOf(err error) Code {
	if err == nil {
		return CodeNone
	}
	for i, e := range codeErrs {
		if e != nil && errors.Is(err, e) {
			return Code(i)
		}
	}
	return CodeNone
}

// ErrorCode extracts the latched error code from a status word.
func ErrorCode(status uint32) Code {
	return Code((status & MASK_ERROR_CODE) >> SHIFT_ERROR_CODE)
}
