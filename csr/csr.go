// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package csr describes the control/status registers of the SNN accelerator:
// their offsets, widths, access modes, bit-fields and reset values.
package csr // import "github.com/go-lpc/snn/csr"

import (
	"fmt"
	"sort"
)

// Access describes how the host may access a register.
type Access uint8

const (
	ReadOnly   Access = iota // R: reads return the device value, writes fail.
	WriteOnly                // W: writes have an effect, reads fail.
	ReadWrite                // RW: plain storage register.
	WriteClear               // WC: reads return latched bits, writing 1 clears a bit.
)

func (acc Access) String() string {
	switch acc {
	case ReadOnly:
		return "R"
	case WriteOnly:
		return "W"
	case ReadWrite:
		return "RW"
	case WriteClear:
		return "WC"
	default:
		return fmt.Sprintf("Access(%d)", uint8(acc))
	}
}

// Field is a named bit-range inside a register.
type Field struct {
	Name  string
	Lsb   uint // least significant bit
	Width uint // number of bits
	RO    bool // read-only field inside a writable register
}

// Mask returns the in-place mask of the field.
func (f Field) Mask() uint32 {
	if f.Width >= 32 {
		return ^uint32(0) << f.Lsb
	}
	return ((uint32(1) << f.Width) - 1) << f.Lsb
}

// Get extracts the field value from the register word v.
func (f Field) Get(v uint32) uint32 {
	return (v & f.Mask()) >> f.Lsb
}

// Set returns v with the field replaced by x.
// Bits of x that do not fit in the field are dropped.
func (f Field) Set(v, x uint32) uint32 {
	m := f.Mask()
	return (v &^ m) | ((x << f.Lsb) & m)
}

// Register describes one addressable register.
type Register struct {
	Name   string
	Offset uint32
	Width  uint // in bits: 8 or 32
	Access Access
	Reset  uint32
	Fields []Field
}

// Size returns the width of the register in bytes.
func (reg Register) Size() uint32 { return uint32(reg.Width / 8) }

// Mask returns the mask of the implemented bits of the register.
func (reg Register) Mask() uint32 {
	if reg.Width >= 32 {
		return ^uint32(0)
	}
	return (uint32(1) << reg.Width) - 1
}

// Readable reports whether the host may read the register.
func (reg Register) Readable() bool { return reg.Access != WriteOnly }

// Writable reports whether the host may write the register.
func (reg Register) Writable() bool { return reg.Access != ReadOnly }

// Field returns the named bit-field of the register.
func (reg Register) Field(name string) (Field, bool) {
	for _, f := range reg.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ROMask returns the mask of the read-only fields of a writable register.
func (reg Register) ROMask() uint32 {
	var m uint32
	for _, f := range reg.Fields {
		if f.RO {
			m |= f.Mask()
		}
	}
	return m
}

// Map is an immutable table of registers, indexed by offset and by name.
type Map struct {
	regs   []Register
	byOff  map[uint32]int
	byName map[string]int
}

// NewMap creates a register map from the provided registers.
// NewMap checks that offsets and names are unique, that every register is
// naturally aligned to its width and that no two fields of a register overlap.
func NewMap(regs ...Register) (*Map, error) {
	m := &Map{
		regs:   make([]Register, len(regs)),
		byOff:  make(map[uint32]int, len(regs)),
		byName: make(map[string]int, len(regs)),
	}
	copy(m.regs, regs)
	sort.SliceStable(m.regs, func(i, j int) bool {
		return m.regs[i].Offset < m.regs[j].Offset
	})

	for i, reg := range m.regs {
		switch reg.Width {
		case 8, 16, 32:
		default:
			return nil, fmt.Errorf("csr: register %q has invalid width %d", reg.Name, reg.Width)
		}
		if reg.Offset%reg.Size() != 0 {
			return nil, fmt.Errorf(
				"csr: register %q at 0x%02x is not aligned to its width (%d bits)",
				reg.Name, reg.Offset, reg.Width,
			)
		}
		if j, dup := m.byOff[reg.Offset]; dup {
			return nil, fmt.Errorf(
				"csr: registers %q and %q share offset 0x%02x",
				m.regs[j].Name, reg.Name, reg.Offset,
			)
		}
		if _, dup := m.byName[reg.Name]; dup {
			return nil, fmt.Errorf("csr: duplicate register name %q", reg.Name)
		}
		if i > 0 {
			prev := m.regs[i-1]
			if prev.Offset+prev.Size() > reg.Offset {
				return nil, fmt.Errorf(
					"csr: register %q overlaps register %q",
					reg.Name, prev.Name,
				)
			}
		}

		var used uint32
		for _, f := range reg.Fields {
			if f.Width == 0 || f.Lsb+f.Width > reg.Width {
				return nil, fmt.Errorf(
					"csr: field %s.%s [%d+:%d] does not fit in %d bits",
					reg.Name, f.Name, f.Lsb, f.Width, reg.Width,
				)
			}
			if used&f.Mask() != 0 {
				return nil, fmt.Errorf("csr: field %s.%s overlaps another field", reg.Name, f.Name)
			}
			used |= f.Mask()
		}

		m.byOff[reg.Offset] = i
		m.byName[reg.Name] = i
	}

	return m, nil
}

// Lookup returns the register located at the provided byte offset.
func (m *Map) Lookup(off uint32) (Register, bool) {
	i, ok := m.byOff[off]
	if !ok {
		return Register{}, false
	}
	return m.regs[i], true
}

// Find returns the register whose byte range contains off.
func (m *Map) Find(off uint32) (Register, bool) {
	i := sort.Search(len(m.regs), func(i int) bool {
		reg := m.regs[i]
		return reg.Offset+reg.Size() > off
	})
	if i == len(m.regs) || m.regs[i].Offset > off {
		return Register{}, false
	}
	return m.regs[i], true
}

// ByName returns the named register.
func (m *Map) ByName(name string) (Register, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Register{}, false
	}
	return m.regs[i], true
}

// Registers returns all registers, sorted by offset.
func (m *Map) Registers() []Register {
	o := make([]Register, len(m.regs))
	copy(o, m.regs)
	return o
}

// Span returns the number of bytes covered by the register map.
func (m *Map) Span() uint32 {
	if len(m.regs) == 0 {
		return 0
	}
	last := m.regs[len(m.regs)-1]
	return (last.Offset + last.Size() + 3) &^ 3
}
