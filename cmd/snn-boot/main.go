// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command snn-boot (re)starts the SNN accelerator processes.
//
// Usage: snn-boot [options] [cmd1 [cmd2 [...]]]
//
// Without arguments, snn-boot starts snn-srv and snn-rctl.
// Each positional argument is a command line, e.g. "snn-srv -addr=:8866".
//
// Each process logs into <dir>/<name>.log and, with -pmon, its resources
// usage is monitored into <dir>/<name>-pmon.log.
// When one of the processes fails, the others are stopped.
package main // import "github.com/go-lpc/snn/cmd/snn-boot"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

// defaultProcs are the processes of an SNN accelerator node.
var defaultProcs = []string{"snn-srv", "snn-rctl"}

func main() {
	log.SetPrefix("snn-boot: ")
	log.SetFlags(0)

	var (
		dir   = flag.String("dir", os.Getenv("SNN_LOGDIR"), "directory of the processes log files (default: /var/log/snn)")
		mon   = flag.Bool("pmon", false, "enable pmon monitoring")
		freq  = flag.Duration("freq", 1*time.Second, "pmon frequency")
		stale = flag.Bool("kill-stale", true, "kill already running instances of the processes")
	)

	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		args = defaultProcs
	}

	procs, err := parseProcs(args)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	boot := booter{
		dir:   *dir,
		mon:   *mon,
		freq:  *freq,
		stale: *stale,
		msg:   log.Default(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = boot.run(ctx, procs)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

// proc is a process to boot.
type proc struct {
	name string // base name, used for the log files
	path string
	args []string
}

func (p proc) String() string {
	return strings.Join(append([]string{p.path}, p.args...), " ")
}

// parseProcs parses command lines into processes.
func parseProcs(cmds []string) ([]proc, error) {
	var (
		procs = make([]proc, 0, len(cmds))
		names = make(map[string]int, len(cmds))
	)
	for i, cmd := range cmds {
		toks := strings.Fields(cmd)
		if len(toks) == 0 {
			return nil, fmt.Errorf("snn-boot: empty command line (arg #%d)", i)
		}
		p := proc{
			name: filepath.Base(toks[0]),
			path: toks[0],
			args: toks[1:],
		}
		if j, dup := names[p.name]; dup {
			return nil, fmt.Errorf(
				"snn-boot: duplicate process %q (args #%d and #%d share the same log file)",
				p.name, j, i,
			)
		}
		names[p.name] = i
		procs = append(procs, p)
	}
	return procs, nil
}

type booter struct {
	dir   string
	mon   bool
	freq  time.Duration
	stale bool
	msg   *log.Logger
}

// run starts all the processes and waits for them to complete.
// Processes are stopped when ctx is done or when one of them fails.
func (b *booter) run(ctx context.Context, procs []proc) error {
	if b.stale {
		b.killStale(procs)
	}

	if b.dir == "" {
		b.dir = "/var/log/snn"
	}
	err := os.MkdirAll(b.dir, 0755)
	if err != nil {
		return fmt.Errorf("could not create log directory %q: %w", b.dir, err)
	}

	grp, ctx := errgroup.WithContext(ctx)
	for _, p := range procs {
		p := p
		grp.Go(func() error {
			return b.start(ctx, p)
		})
	}

	err = grp.Wait()
	if err != nil {
		return fmt.Errorf("could not boot snn processes: %w", err)
	}
	return nil
}

func (b *booter) killStale(procs []proc) {
	for _, p := range procs {
		kill := exec.Command("killall", p.name)
		kill.Stderr = os.Stderr
		kill.Stdout = os.Stdout
		err := kill.Run()
		if err != nil {
			b.msg.Printf("could not kill %q: %+v", p.name, err)
		}
	}
}

func (b *booter) start(ctx context.Context, p proc) error {
	out, err := os.Create(filepath.Join(b.dir, p.name+".log"))
	if err != nil {
		return fmt.Errorf("could not create output log file for %q: %w", p.name, err)
	}
	defer out.Close()

	cmd := exec.Command(p.path, p.args...)
	cmd.Stdout = out
	cmd.Stderr = out

	b.msg.Printf("starting %q...", p)
	err = cmd.Start()
	if err != nil {
		return fmt.Errorf("could not start %q: %w", p.name, err)
	}

	if b.mon {
		stop, err := b.monitor(p.name, cmd.Process.Pid)
		if err != nil {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return err
		}
		defer stop()
	}

	errch := make(chan error, 1)
	go func() {
		errch <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		b.msg.Printf("stopping %q...", p.name)
		err = cmd.Process.Kill()
		if err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("could not kill %q: %w", p.name, err)
		}
		<-errch
		return nil
	case err = <-errch:
		if err != nil {
			return fmt.Errorf("could not run %q: %w", p.name, err)
		}
		b.msg.Printf("%q exited", p.name)
		return nil
	}
}

// monitor starts monitoring the resources usage of the process pid.
// monitor returns a function to stop the monitoring.
func (b *booter) monitor(name string, pid int) (func(), error) {
	p, err := pmon.Monitor(pid)
	if err != nil {
		return nil, fmt.Errorf("could not start monitoring %q (pid=%d): %w", name, pid, err)
	}
	f, err := os.Create(filepath.Join(b.dir, name+"-pmon.log"))
	if err != nil {
		return nil, fmt.Errorf("could not create pmon log file for %q: %w", name, err)
	}
	p.W = f
	p.Freq = b.freq

	go func() {
		b.msg.Printf("run pmon %q...", name)
		err := p.Run()
		if err != nil {
			b.msg.Printf("could not monitor %q: %+v", name, err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			b.msg.Printf("could not stop monitoring %q: %+v", name, err)
		}
		_ = f.Close()
	}, nil
}
