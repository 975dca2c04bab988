// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package driver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"

	"github.com/go-lpc/snn/conddb"
	"golang.org/x/sync/errgroup"
)

// Request is a command sent to the control server.
type Request struct {
	Name string          `json:"name"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Reply is the answer of the control server to a Request.
// Msg is "ok" on success and the error message otherwise.
type Reply struct {
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}

// server allows to control an SNN accelerator over TCP.
type server struct {
	ctl net.Listener
	msg *log.Logger
	dev *Device
}

// Serve serves JSON requests on addr, driving dev.
func Serve(addr string, dev *Device) error {
	srv, err := newServer(addr, dev)
	if err != nil {
		return fmt.Errorf("could not create snn server: %w", err)
	}
	return srv.serve()
}

func newServer(addr string, dev *Device) (*server, error) {
	ctl, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("could not create snn-ctl server on %q: %w", addr, err)
	}

	srv := &server{
		ctl: ctl,
		msg: log.New(os.Stdout, "snn-svc: ", 0),
		dev: dev,
	}
	return srv, nil
}

func (srv *server) serve() error {
	defer srv.close()

	var grp errgroup.Group
	defer func() { _ = grp.Wait() }()

	for {
		conn, err := srv.ctl.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("could not accept connection: %w", err)
		}

		grp.Go(func() error {
			srv.handle(conn)
			return nil
		})
	}
}

func (srv *server) handle(conn net.Conn) {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		err := dec.Decode(&req)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			srv.msg.Printf("could not decode command request: %+v", err)
			_ = enc.Encode(Reply{Msg: err.Error()})
			return
		}

		rep := srv.dispatch(req)
		err = enc.Encode(rep)
		if err != nil {
			srv.msg.Printf("could not send reply to %q: %+v", req.Name, err)
			return
		}
		if strings.ToLower(req.Name) == "quit" {
			return
		}
	}
}

func (srv *server) dispatch(req Request) Reply {
	var (
		dev  = srv.dev
		err  error
		data any
	)

	decode := func(ptr any) error {
		if len(req.Args) == 0 {
			return fmt.Errorf("missing arguments for %q", req.Name)
		}
		err := json.Unmarshal(req.Args, ptr)
		if err != nil {
			return fmt.Errorf("could not decode %q payload: %w", req.Name, err)
		}
		return nil
	}

	switch strings.ToLower(req.Name) {
	case "quit":
	case "reset":
		err = dev.Reset()
	case "start":
		err = dev.Start()
	case "stop":
		err = dev.Stop()
	case "abort":
		err = dev.Abort()
	case "step":
		err = dev.SingleStep()
	case "flush":
		err = dev.FlushFIFOs()
	case "cmd":
		var bits uint32
		if err = decode(&bits); err == nil {
			err = dev.Command(bits)
		}
	case "configure":
		var p conddb.Profile
		if err = decode(&p); err == nil {
			err = dev.Configure(p)
		}
	case "enable":
		var ok bool
		if err = decode(&ok); err == nil {
			err = dev.SetEnable(ok)
		}
	case "peek":
		var name string
		if err = decode(&name); err == nil {
			data, err = dev.Peek(name)
		}
	case "poke":
		var args struct {
			Name  string `json:"name"`
			Value uint32 `json:"value"`
		}
		if err = decode(&args); err == nil {
			err = dev.Poke(args.Name, args.Value)
		}
	case "push":
		var ids []uint32
		if err = decode(&ids); err == nil {
			data, err = dev.PushSpikes(ids)
		}
	case "pop":
		var n int
		if err = decode(&n); err == nil {
			data, err = dev.PopSpikes(n)
		}
	case "status":
		data, err = dev.Status()
	case "fifo":
		var in, out FIFOStatus
		in, out, err = dev.FIFOStatus()
		data = map[string]FIFOStatus{"in": in, "out": out}
	case "timestep":
		data, err = dev.Timestep()
	case "spikes":
		data, err = dev.SpikeCount()
	case "irq":
		data, err = dev.IRQStatus()
	case "irq-mask":
		var mask uint32
		if err = decode(&mask); err == nil {
			err = dev.SetIRQMask(mask)
		}
	case "ack":
		data, err = dev.AckIRQ()
	case "dma-start":
		var args struct {
			Src uint32 `json:"src"`
			Dst uint32 `json:"dst"`
			Len uint32 `json:"len"`
		}
		if err = decode(&args); err == nil {
			err = dev.StartDMA(args.Src, args.Dst, args.Len)
		}
	case "dma-abort":
		err = dev.AbortDMA()
	case "dma-status":
		data, err = dev.DMAStatus()
	default:
		srv.msg.Printf("unknown command name=%q, args=%q", req.Name, req.Args)
		err = fmt.Errorf("unknown command %q", req.Name)
	}

	if err != nil {
		srv.msg.Printf("could not run %q: %+v", req.Name, err)
		return Reply{Msg: err.Error()}
	}

	rep := Reply{Msg: "ok"}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Reply{Msg: fmt.Sprintf("could not encode %q reply: %+v", req.Name, err)}
		}
		rep.Data = raw
	}
	return rep
}

func (srv *server) close() {
	_ = srv.ctl.Close()
}

// Client sends requests to a control server.
type Client struct {
	conn net.Conn
	enc  *json.Encoder
	dec  *json.Decoder
}

// Dial connects to the control server at addr.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("snn: could not dial %q: %w", addr, err)
	}
	return newClient(conn), nil
}

func newClient(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		enc:  json.NewEncoder(conn),
		dec:  json.NewDecoder(conn),
	}
}

// Close closes the connection to the server.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Do sends the named request with the optional args and decodes the
// reply data into the optional reply value.
func (c *Client) Do(name string, args, reply any) error {
	req := Request{Name: name}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			return fmt.Errorf("snn: could not encode %q args: %w", name, err)
		}
		req.Args = raw
	}

	err := c.enc.Encode(req)
	if err != nil {
		return fmt.Errorf("snn: could not send %q request: %w", name, err)
	}

	var rep Reply
	err = c.dec.Decode(&rep)
	if err != nil {
		return fmt.Errorf("snn: could not decode %q reply: %w", name, err)
	}
	if rep.Msg != "ok" {
		return fmt.Errorf("snn: %s: %s", name, rep.Msg)
	}

	if reply != nil && len(rep.Data) > 0 {
		err = json.Unmarshal(rep.Data, reply)
		if err != nil {
			return fmt.Errorf("snn: could not decode %q reply data: %w", name, err)
		}
	}
	return nil
}
