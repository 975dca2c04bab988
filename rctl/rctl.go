// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rctl exposes an SNN accelerator as a tdaq run-control process.
//
// The process answers the /config, /init, /reset, /start, /stop and /quit
// commands of the run-control, consumes spikes from its /spikes-in input
// and publishes the emitted spikes on its /spikes-out output.
//
// Spike frames are encoded with the tdaq encoder: the number of spikes
// as a uint32, followed by the spike identifiers as uint32s.
package rctl // import "github.com/go-lpc/snn/rctl"

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-lpc/snn/conddb"
	"github.com/go-lpc/snn/driver"
)

// Store is where configuration profiles come from and runs are logged to.
type Store interface {
	Profile(ctx context.Context, name string) (conddb.Profile, error)
	AddRun(ctx context.Context, run conddb.Run) error
}

var _ Store = (*conddb.DB)(nil)

// Server drives an SNN accelerator on behalf of the run-control.
type Server struct {
	dev *driver.Device
	db  Store

	period time.Duration // polling period of the egress FIFO
	batch  int           // maximum number of spikes per output frame

	profile conddb.Profile
	run     conddb.Run

	data chan []byte
}

// Option configures a Server.
type Option func(*Server)

// WithStore sets the store of configuration profiles and runs.
// Without a store, the default profile is used and runs are not logged.
func WithStore(db Store) Option {
	return func(srv *Server) {
		srv.db = db
	}
}

// WithPollPeriod sets the polling period of the egress FIFO.
func WithPollPeriod(d time.Duration) Option {
	return func(srv *Server) {
		srv.period = d
	}
}

// WithBatch sets the maximum number of spikes per output frame.
func WithBatch(n int) Option {
	return func(srv *Server) {
		srv.batch = n
	}
}

// New creates a run-control server driving dev.
func New(dev *driver.Device, opts ...Option) *Server {
	srv := &Server{
		dev:     dev,
		period:  10 * time.Millisecond,
		batch:   256,
		profile: conddb.DefaultProfile(),
		data:    make(chan []byte, 1024),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Profile returns the configuration profile of the current run.
func (srv *Server) Profile() conddb.Profile { return srv.profile }

// OnConfig selects the configuration profile named in the request body.
// An empty name selects the default profile.
func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	var name string
	if len(req.Body) != 0 {
		dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
		name = dec.ReadStr()
		if err := dec.Err(); err != nil {
			ctx.Msg.Errorf("could not decode profile name: %+v", err)
			return fmt.Errorf("could not decode profile name: %w", err)
		}
	}

	switch {
	case name == "" || name == "default":
		srv.profile = conddb.DefaultProfile()
	case srv.db == nil:
		ctx.Msg.Errorf("no condition database to retrieve profile %q", name)
		return fmt.Errorf("no condition database to retrieve profile %q", name)
	default:
		p, err := srv.db.Profile(ctx.Ctx, name)
		if err != nil {
			ctx.Msg.Errorf("could not retrieve profile %q: %+v", name, err)
			return fmt.Errorf("could not retrieve profile %q: %w", name, err)
		}
		srv.profile = p
	}
	ctx.Msg.Infof("profile: %q (neurons=%d, epoch=%d)",
		srv.profile.Name, srv.profile.NeuronCount, srv.profile.EpochLen,
	)
	return nil
}

// OnInit resets the accelerator and programs the configuration profile.
func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	err := srv.dev.Reset()
	if err != nil {
		ctx.Msg.Errorf("could not reset accelerator: %+v", err)
		return fmt.Errorf("could not reset accelerator: %w", err)
	}

	err = srv.dev.Configure(srv.profile)
	if err != nil {
		ctx.Msg.Errorf("could not configure accelerator: %+v", err)
		return fmt.Errorf("could not configure accelerator: %w", err)
	}
	return nil
}

// OnReset resets the accelerator and drops the pending output frames.
func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	srv.drain()
	err := srv.dev.Reset()
	if err != nil {
		ctx.Msg.Errorf("could not reset accelerator: %+v", err)
		return fmt.Errorf("could not reset accelerator: %w", err)
	}
	return nil
}

func (srv *Server) drain() {
	for {
		select {
		case <-srv.data:
		default:
			return
		}
	}
}

// OnStart starts spike processing.
func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	err := srv.dev.Start()
	if err != nil {
		ctx.Msg.Errorf("could not start accelerator: %+v", err)
		return fmt.Errorf("could not start accelerator: %w", err)
	}
	srv.run = conddb.Run{
		Profile: srv.profile.Name,
		Start:   time.Now().UTC(),
	}
	return nil
}

// OnStop stops spike processing and logs the run into the store.
func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	err := srv.dev.Stop()
	if err != nil {
		ctx.Msg.Errorf("could not stop accelerator: %+v", err)
		return fmt.Errorf("could not stop accelerator: %w", err)
	}

	srv.run.Stop = time.Now().UTC()
	srv.run.Timesteps, err = srv.dev.Timestep()
	if err != nil {
		return fmt.Errorf("could not read timestep: %w", err)
	}
	srv.run.Spikes, err = srv.dev.SpikeCount()
	if err != nil {
		return fmt.Errorf("could not read spike count: %w", err)
	}
	st, err := srv.dev.Status()
	if err != nil {
		return fmt.Errorf("could not read status: %w", err)
	}
	srv.run.Status = st.Raw
	ctx.Msg.Infof("run done: timesteps=%d, spikes=%d, %v",
		srv.run.Timesteps, srv.run.Spikes, st,
	)

	if srv.db == nil {
		return nil
	}
	err = srv.db.AddRun(ctx.Ctx, srv.run)
	if err != nil {
		ctx.Msg.Errorf("could not log run: %+v", err)
		return fmt.Errorf("could not log run: %w", err)
	}
	return nil
}

// OnQuit stops spike processing, if needed.
func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	st, err := srv.dev.Status()
	if err != nil {
		return fmt.Errorf("could not read status: %w", err)
	}
	if st.Active {
		err = srv.dev.Stop()
		if err != nil {
			return fmt.Errorf("could not stop accelerator: %w", err)
		}
	}
	return nil
}

// SpikesIn pushes the spikes of the incoming frame into the ingress FIFO.
func (srv *Server) SpikesIn(ctx tdaq.Context, src tdaq.Frame) error {
	ids, err := Decode(src.Body)
	if err != nil {
		return fmt.Errorf("could not decode spikes: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	n, err := srv.dev.PushSpikes(ids)
	if err != nil {
		ctx.Msg.Warnf("dropped %d/%d spikes: %+v", len(ids)-n, len(ids), err)
	}
	return nil
}

// SpikesOut publishes the spikes emitted by the accelerator.
func (srv *Server) SpikesOut(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-srv.data:
		dst.Body = data
	}
	return nil
}

// Loop drains the egress FIFO into output frames until ctx is done.
func (srv *Server) Loop(ctx tdaq.Context) error {
	tck := time.NewTicker(srv.period)
	defer tck.Stop()

	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case <-tck.C:
			ids, err := srv.dev.PopSpikes(srv.batch)
			if err != nil {
				ctx.Msg.Errorf("could not pop spikes: %+v", err)
				continue
			}
			if len(ids) == 0 {
				continue
			}
			raw, err := Encode(ids)
			if err != nil {
				ctx.Msg.Errorf("could not encode spikes: %+v", err)
				continue
			}
			select {
			case srv.data <- raw:
			default:
				ctx.Msg.Warnf("output queue full: dropped %d spikes", len(ids))
			}
		}
	}
}

// Encode encodes spike identifiers into a frame body.
func Encode(ids []uint32) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteU32(uint32(len(ids)))
	for _, id := range ids {
		enc.WriteU32(id)
	}
	if err := enc.Err(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode decodes spike identifiers from a frame body.
func Decode(raw []byte) ([]uint32, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := tdaq.NewDecoder(bytes.NewReader(raw))
	n := dec.ReadU32()
	if err := dec.Err(); err != nil {
		return nil, err
	}
	if int64(n)*4 > int64(len(raw)-4) {
		return nil, fmt.Errorf("invalid spike frame: %d spikes in %d bytes", n, len(raw))
	}
	ids := make([]uint32, n)
	for i := range ids {
		ids[i] = dec.ReadU32()
	}
	if err := dec.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
