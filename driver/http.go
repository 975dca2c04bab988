// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-lpc/snn/csr"
	"github.com/gorilla/mux"
)

type monitor struct {
	dev *Device
}

// NewHandler returns a read-only HTTP monitor of the device.
// The monitor never reads registers whose read has a side effect.
func NewHandler(dev *Device) http.Handler {
	m := &monitor{dev: dev}

	r := mux.NewRouter()
	r.HandleFunc("/api/status", m.status).Methods(http.MethodGet)
	r.HandleFunc("/api/fifo", m.fifo).Methods(http.MethodGet)
	r.HandleFunc("/api/counters", m.counters).Methods(http.MethodGet)
	r.HandleFunc("/api/irq", m.irq).Methods(http.MethodGet)
	r.HandleFunc("/api/dma", m.dma).Methods(http.MethodGet)
	r.HandleFunc("/api/registers", m.registers).Methods(http.MethodGet)
	r.HandleFunc("/api/register/{name}", m.register).Methods(http.MethodGet)
	return r
}

func (m *monitor) status(w http.ResponseWriter, _ *http.Request) {
	st, err := m.dev.Status()
	m.reply(w, st, err)
}

func (m *monitor) fifo(w http.ResponseWriter, _ *http.Request) {
	in, out, err := m.dev.FIFOStatus()
	m.reply(w, map[string]FIFOStatus{"in": in, "out": out}, err)
}

func (m *monitor) counters(w http.ResponseWriter, _ *http.Request) {
	var (
		cnt struct {
			Timestep uint32 `json:"timestep"`
			Spikes   uint64 `json:"spikes"`
		}
		err error
	)
	cnt.Timestep, err = m.dev.Timestep()
	if err == nil {
		cnt.Spikes, err = m.dev.SpikeCount()
	}
	m.reply(w, cnt, err)
}

func (m *monitor) irq(w http.ResponseWriter, _ *http.Request) {
	v, err := m.dev.IRQStatus()
	m.reply(w, map[string]uint32{"status": v}, err)
}

func (m *monitor) dma(w http.ResponseWriter, _ *http.Request) {
	st, err := m.dev.DMAStatus()
	m.reply(w, st, err)
}

func (m *monitor) registers(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	err := m.dev.DumpRegisters(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (m *monitor) register(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	reg, ok := csr.Layout.ByName(name)
	switch {
	case !ok:
		http.Error(w, "unknown register "+name, http.StatusNotFound)
		return
	case reg.Offset == csr.FIFO_OUT_DATA:
		http.Error(w, "register "+name+" can not be monitored", http.StatusMethodNotAllowed)
		return
	}

	v, err := m.dev.Peek(name)
	m.reply(w, map[string]uint32{reg.Name: v}, err)
}

func (m *monitor) reply(w http.ResponseWriter, v any, err error) {
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, csr.ErrInvalidRegister) {
			code = http.StatusBadRequest
		}
		http.Error(w, err.Error(), code)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
