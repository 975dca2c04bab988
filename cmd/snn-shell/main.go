// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command snn-shell is an interactive shell to drive an SNN accelerator
// served by snn-srv.
//
// Example:
//
//	$> snn-shell -addr=localhost:8866
//	snn> reset
//	snn> peek neuron_count
//	neuron_count: 0x00000100 (256)
//	snn> push 1 2 3
//	pushed 3 spike(s)
//	snn> quit
package main // import "github.com/go-lpc/snn/cmd/snn-shell"

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-lpc/snn/conddb"
	"github.com/go-lpc/snn/driver"
	"github.com/peterh/liner"
)

func main() {
	log.SetPrefix("snn-shell: ")
	log.SetFlags(0)

	var (
		addr = flag.String("addr", "localhost:8866", "[ip]:port of the snn-srv control server")
		hist = flag.String("history", historyFile(), "path to the history file")
	)

	flag.Parse()

	cli, err := driver.Dial(*addr)
	if err != nil {
		log.Fatalf("could not connect to %q: %+v", *addr, err)
	}
	defer cli.Close()

	err = xmain(cli, *hist)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func historyFile() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, ".snn_history")
}

func xmain(cli doer, hist string) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)
	term.SetCompleter(complete)

	if hist != "" {
		f, err := os.Open(hist)
		if err == nil {
			_, _ = term.ReadHistory(f)
			f.Close()
		}
		defer func() {
			f, err := os.Create(hist)
			if err != nil {
				log.Printf("could not save history: %+v", err)
				return
			}
			defer f.Close()
			_, _ = term.WriteHistory(f)
		}()
	}

	sh := newShell(cli, os.Stdout)
	for {
		line, err := term.Prompt("snn> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				return nil
			}
			return fmt.Errorf("could not read command: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		term.AppendHistory(line)

		quit, err := sh.exec(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// doer sends one request to a control server.
type doer interface {
	Do(name string, args, reply any) error
}

type shell struct {
	cli doer
	out io.Writer
}

func newShell(cli doer, out io.Writer) *shell {
	return &shell{cli: cli, out: out}
}

type command struct {
	help  string
	nargs int // minimum number of arguments
	run   func(sh *shell, args []string) error
}

var commands map[string]command

func init() {
	simple := func(name string) func(sh *shell, args []string) error {
		return func(sh *shell, args []string) error {
			return sh.cli.Do(name, nil, nil)
		}
	}
	show := func(name string) func(sh *shell, args []string) error {
		return func(sh *shell, args []string) error {
			var raw json.RawMessage
			err := sh.cli.Do(name, nil, &raw)
			if err != nil {
				return err
			}
			fmt.Fprintf(sh.out, "%s: %s\n", name, raw)
			return nil
		}
	}

	commands = map[string]command{
		"reset":      {help: "reset the accelerator", run: simple("reset")},
		"start":      {help: "start processing", run: simple("start")},
		"stop":       {help: "stop processing", run: simple("stop")},
		"abort":      {help: "abort processing", run: simple("abort")},
		"step":       {help: "run a single timestep", run: simple("step")},
		"flush":      {help: "flush both spike FIFOs", run: simple("flush")},
		"dma-abort":  {help: "abort the in-flight DMA transfer", run: simple("dma-abort")},
		"status":     {help: "display the decoded status register", run: show("status")},
		"fifo":       {help: "display the status of both spike FIFOs", run: show("fifo")},
		"timestep":   {help: "display the timestep counter", run: show("timestep")},
		"spikes":     {help: "display the spike counter", run: show("spikes")},
		"dma-status": {help: "display the DMA status", run: show("dma-status")},
		"irq": {
			help: "display the latched interrupts",
			run: func(sh *shell, args []string) error {
				var v uint32
				err := sh.cli.Do("irq", nil, &v)
				if err != nil {
					return err
				}
				fmt.Fprintf(sh.out, "irq: 0x%08x\n", v)
				return nil
			},
		},
		"ack": {
			help: "acknowledge the latched interrupts",
			run: func(sh *shell, args []string) error {
				var v uint32
				err := sh.cli.Do("ack", nil, &v)
				if err != nil {
					return err
				}
				fmt.Fprintf(sh.out, "acked: 0x%08x\n", v)
				return nil
			},
		},
		"peek": {
			help:  "peek REG... - read registers by name",
			nargs: 1,
			run: func(sh *shell, args []string) error {
				for _, name := range args {
					var v uint32
					err := sh.cli.Do("peek", name, &v)
					if err != nil {
						return err
					}
					fmt.Fprintf(sh.out, "%s: 0x%08x (%d)\n", name, v, v)
				}
				return nil
			},
		},
		"poke": {
			help:  "poke REG VALUE - write a register by name",
			nargs: 2,
			run: func(sh *shell, args []string) error {
				v, err := parseU32(args[1])
				if err != nil {
					return fmt.Errorf("invalid value %q: %w", args[1], err)
				}
				return sh.cli.Do("poke", map[string]any{"name": args[0], "value": v}, nil)
			},
		},
		"cmd": {
			help:  "cmd BITS - write command bits into the control register",
			nargs: 1,
			run: func(sh *shell, args []string) error {
				v, err := parseU32(args[0])
				if err != nil {
					return fmt.Errorf("invalid command bits %q: %w", args[0], err)
				}
				return sh.cli.Do("cmd", v, nil)
			},
		},
		"enable": {
			help:  "enable on|off - set or clear the enable bit",
			nargs: 1,
			run: func(sh *shell, args []string) error {
				var ok bool
				switch strings.ToLower(args[0]) {
				case "on", "1", "true":
					ok = true
				case "off", "0", "false":
					ok = false
				default:
					return fmt.Errorf("invalid enable value %q", args[0])
				}
				return sh.cli.Do("enable", ok, nil)
			},
		},
		"irq-mask": {
			help:  "irq-mask MASK - set the interrupt mask",
			nargs: 1,
			run: func(sh *shell, args []string) error {
				v, err := parseU32(args[0])
				if err != nil {
					return fmt.Errorf("invalid irq mask %q: %w", args[0], err)
				}
				return sh.cli.Do("irq-mask", v, nil)
			},
		},
		"push": {
			help:  "push ID... - push spikes into the input FIFO",
			nargs: 1,
			run: func(sh *shell, args []string) error {
				ids := make([]uint32, len(args))
				for i, arg := range args {
					v, err := parseU32(arg)
					if err != nil {
						return fmt.Errorf("invalid spike id %q: %w", arg, err)
					}
					ids[i] = v
				}
				var n int
				err := sh.cli.Do("push", ids, &n)
				fmt.Fprintf(sh.out, "pushed %d spike(s)\n", n)
				return err
			},
		},
		"pop": {
			help: "pop [N] - pop up to N spikes from the output FIFO",
			run: func(sh *shell, args []string) error {
				n := 1
				if len(args) > 0 {
					v, err := strconv.Atoi(args[0])
					if err != nil || v <= 0 {
						return fmt.Errorf("invalid number of spikes %q", args[0])
					}
					n = v
				}
				var ids []uint32
				err := sh.cli.Do("pop", n, &ids)
				if err != nil {
					return err
				}
				fmt.Fprintf(sh.out, "spikes: %v\n", ids)
				return nil
			},
		},
		"dma-start": {
			help:  "dma-start SRC DST LEN - start a DMA transfer",
			nargs: 3,
			run: func(sh *shell, args []string) error {
				var vs [3]uint32
				for i, arg := range args[:3] {
					v, err := parseU32(arg)
					if err != nil {
						return fmt.Errorf("invalid dma argument %q: %w", arg, err)
					}
					vs[i] = v
				}
				return sh.cli.Do("dma-start", map[string]uint32{
					"src": vs[0], "dst": vs[1], "len": vs[2],
				}, nil)
			},
		},
		"configure": {
			help: "configure [default] - program the reset configuration profile",
			run: func(sh *shell, args []string) error {
				if len(args) > 0 && args[0] != "default" {
					return fmt.Errorf("unknown profile %q (use snn-ctl for condition db profiles)", args[0])
				}
				return sh.cli.Do("configure", conddb.DefaultProfile(), nil)
			},
		},
	}
}

// exec runs one command line.
// exec reports whether the shell should exit.
func (sh *shell) exec(line string) (bool, error) {
	toks := strings.Fields(line)
	if len(toks) == 0 {
		return false, nil
	}
	name, args := strings.ToLower(toks[0]), toks[1:]

	switch name {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		sh.help()
		return false, nil
	}

	cmd, ok := commands[name]
	if !ok {
		return false, fmt.Errorf("unknown command %q (try help)", name)
	}
	if len(args) < cmd.nargs {
		return false, fmt.Errorf("%s: missing arguments (%s)", name, cmd.help)
	}
	return false, cmd.run(sh, args)
}

func (sh *shell) help() {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(sh.out, "%-12s %s\n", name, commands[name].help)
	}
	fmt.Fprintf(sh.out, "%-12s %s\n", "quit", "exit the shell")
}

func complete(line string) []string {
	var out []string
	for name := range commands {
		if strings.HasPrefix(name, strings.ToLower(line)) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	return uint32(v), err
}
