// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command snn-ctl controls an SNN accelerator through its register window.
//
// Default values of the global flags are read from the SNN_DEVMEM, SNN_BASE
// and SNN_SIZE environment variables, which may be defined in a .env file.
//
// Example:
//
//	$> snn-ctl --base=0xf0000000 smoke
//	status=0x0000000a
//	spike_in_level=0
//	spike_out_level=0
//	$> snn-ctl peek neuron_count
//	neuron_count: 0x00000100 (256)
//	$> snn-ctl cmd reset
package main // import "github.com/go-lpc/snn/cmd/snn-ctl"

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-lpc/snn"
	"github.com/go-lpc/snn/conddb"
	"github.com/go-lpc/snn/csr"
	"github.com/go-lpc/snn/driver"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	log.SetPrefix("snn-ctl: ")
	log.SetFlags(0)

	root := newRootCmd(nil)
	err := root.Execute()
	if err != nil {
		os.Exit(1)
	}
}

type ctl struct {
	env    string
	devmem string
	base   string
	size   string

	open func(c *ctl) (*driver.Device, error)
	dev  *driver.Device
}

func openDevice(c *ctl) (*driver.Device, error) {
	base, err := parseU64(c.base)
	if err != nil {
		return nil, fmt.Errorf("invalid base address %q: %w", c.base, err)
	}
	if base == 0 {
		return nil, fmt.Errorf("missing physical base address of the CSR block (--base or SNN_BASE)")
	}
	size, err := parseU64(c.size)
	if err != nil {
		return nil, fmt.Errorf("invalid window size %q: %w", c.size, err)
	}
	return driver.Open(c.devmem, int64(base), int64(size))
}

// newRootCmd creates the snn-ctl command tree.
// A nil open function opens the device mapped by the global flags.
func newRootCmd(open func(c *ctl) (*driver.Device, error)) *cobra.Command {
	if open == nil {
		open = openDevice
	}
	c := &ctl{open: open}

	root := &cobra.Command{
		Use:           "snn-ctl",
		Short:         "snn-ctl controls an SNN accelerator.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.dev == nil {
				return nil
			}
			err := c.dev.Close()
			c.dev = nil
			return err
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.env, "env", ".env", "file with environment variables to load")
	flags.StringVar(&c.devmem, "devmem", "/dev/mem", "path to the CSR-mapped device [SNN_DEVMEM]")
	flags.StringVar(&c.base, "base", "0", "physical base address of the CSR block [SNN_BASE]")
	flags.StringVar(&c.size, "size", strconv.Itoa(csr.WindowSize), "size of the mapped register window [SNN_SIZE]")

	root.AddCommand(
		c.smokeCmd(),
		c.peekCmd(),
		c.pokeCmd(),
		c.cmdCmd(),
		c.dumpCmd(),
		c.statusCmd(),
		c.dmaCmd(),
		c.irqCmd(),
		c.configureCmd(),
		versionCmd(),
	)
	return root
}

func (c *ctl) setup(cmd *cobra.Command) error {
	switch cmd.Name() {
	case "help", "version":
		return nil
	}

	if c.env != "" {
		err := godotenv.Load(c.env)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("could not load environment file %q: %w", c.env, err)
		}
	}

	for _, v := range []struct {
		flag string
		env  string
		dst  *string
	}{
		{"devmem", "SNN_DEVMEM", &c.devmem},
		{"base", "SNN_BASE", &c.base},
		{"size", "SNN_SIZE", &c.size},
	} {
		if cmd.Flags().Changed(v.flag) {
			continue
		}
		if env := os.Getenv(v.env); env != "" {
			*v.dst = env
		}
	}

	dev, err := c.open(c)
	if err != nil {
		return fmt.Errorf("could not open device: %w", err)
	}
	c.dev = dev
	return nil
}

func (c *ctl) smokeCmd() *cobra.Command {
	var epoch, neurons uint32
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "run the bring-up sequence of the accelerator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := c.dev.Smoke(cmd.OutOrStdout(), epoch, neurons)
			return err
		},
	}
	cmd.Flags().Uint32Var(&epoch, "epoch", 1000, "epoch length, in timesteps")
	cmd.Flags().Uint32Var(&neurons, "neurons", 256, "number of neurons")
	return cmd
}

func (c *ctl) peekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "peek REG [REG...]",
		Short: "read registers by name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				v, err := c.dev.Peek(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: 0x%08x (%d)\n", name, v, v)
			}
			return nil
		},
	}
}

func (c *ctl) pokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poke REG VALUE",
		Short: "write a register by name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseU32(args[1])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[1], err)
			}
			return c.dev.Poke(args[0], v)
		},
	}
}

var cmdNames = map[string]uint32{
	"start":  csr.CMD_START,
	"stop":   csr.CMD_STOP,
	"abort":  csr.CMD_ABORT,
	"reset":  csr.CMD_RESET,
	"step":   csr.CMD_SINGLE_STEP,
	"flush":  csr.CMD_FIFO_FLUSH,
	"enable": 0,
}

func (c *ctl) cmdCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cmd CMD [CMD...]",
		Short: "write command bits into the control register",
		Long: `cmd writes command bits into the control register.

Commands are either bit masks (0x9) or names (start, stop, abort, reset,
step, flush). All the commands are written at once, and processed by the
accelerator in ascending bit order. The enable command sets the enable
bit of the config register before the control register is written.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				bits   uint32
				enable bool
			)
			for _, arg := range args {
				if v, ok := cmdNames[strings.ToLower(arg)]; ok {
					bits |= v
					enable = enable || strings.EqualFold(arg, "enable")
					continue
				}
				v, err := parseU32(arg)
				if err != nil {
					return fmt.Errorf("invalid command %q", arg)
				}
				bits |= v
			}
			if enable {
				err := c.dev.SetEnable(true)
				if err != nil {
					return err
				}
			}
			if bits == 0 {
				return nil
			}
			return c.dev.Command(bits)
		},
	}
}

func (c *ctl) dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "dump the content of all registers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.dev.DumpRegisters(cmd.OutOrStdout())
		},
	}
}

func (c *ctl) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "display the decoded status of the accelerator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			o := cmd.OutOrStdout()
			st, err := c.dev.Status()
			if err != nil {
				return err
			}
			in, out, err := c.dev.FIFOStatus()
			if err != nil {
				return err
			}
			ts, err := c.dev.Timestep()
			if err != nil {
				return err
			}
			n, err := c.dev.SpikeCount()
			if err != nil {
				return err
			}
			fmt.Fprintf(o, "%v\n", st)
			fmt.Fprintf(o, "fifo-in:  %+v\n", in)
			fmt.Fprintf(o, "fifo-out: %+v\n", out)
			fmt.Fprintf(o, "timestep: %d\n", ts)
			fmt.Fprintf(o, "spikes:   %d\n", n)
			return nil
		},
	}
}

func (c *ctl) dmaCmd() *cobra.Command {
	var (
		wait  time.Duration
		abort bool
	)
	cmd := &cobra.Command{
		Use:   "dma [SRC DST LEN]",
		Short: "start, abort or inspect a DMA transfer",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 3 {
				return fmt.Errorf("dma takes either 0 or 3 arguments, got %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case abort:
				err := c.dev.AbortDMA()
				if err != nil {
					return err
				}
			case len(args) == 3:
				var vs [3]uint32
				for i, arg := range args {
					v, err := parseU32(arg)
					if err != nil {
						return fmt.Errorf("invalid dma argument %q: %w", arg, err)
					}
					vs[i] = v
				}
				err := c.dev.StartDMA(vs[0], vs[1], vs[2])
				if err != nil {
					return err
				}
			}

			var (
				st  driver.DMAStatus
				err error
			)
			switch {
			case wait > 0:
				ctx, cancel := context.WithTimeout(cmd.Context(), wait)
				defer cancel()
				st, err = c.dev.WaitDMA(ctx)
			default:
				st, err = c.dev.DMAStatus()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dma: %+v\n", st)
			return err
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "wait for the transfer to complete")
	cmd.Flags().BoolVar(&abort, "abort", false, "abort the in-flight transfer")
	return cmd
}

func (c *ctl) irqCmd() *cobra.Command {
	var (
		ack  bool
		mask string
	)
	cmd := &cobra.Command{
		Use:   "irq",
		Short: "inspect, acknowledge or mask interrupts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if mask != "" {
				v, err := parseU32(mask)
				if err != nil {
					return fmt.Errorf("invalid irq mask %q: %w", mask, err)
				}
				err = c.dev.SetIRQMask(v)
				if err != nil {
					return err
				}
			}

			var (
				v   uint32
				err error
			)
			switch {
			case ack:
				v, err = c.dev.AckIRQ()
			default:
				v, err = c.dev.IRQStatus()
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "irq: 0x%08x\n", v)
			return nil
		},
	}
	cmd.Flags().BoolVar(&ack, "ack", false, "acknowledge the latched interrupts")
	cmd.Flags().StringVar(&mask, "mask", "", "set the interrupt mask")
	return cmd
}

func (c *ctl) configureCmd() *cobra.Command {
	var dbname string
	cmd := &cobra.Command{
		Use:   "configure [PROFILE]",
		Short: "program a configuration profile from the condition database",
		Long: `configure programs a configuration profile into the accelerator.

Without a profile name, the last profile of the condition database is used.
The "default" profile is the reset configuration, with the accelerator enabled.
Database credentials are read from SNN_DB_USER, SNN_DB_PASS and SNN_DB_HOST.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile(cmd.Context(), dbname, args)
			if err != nil {
				return err
			}
			err = c.dev.Configure(p)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configured profile %q\n", p.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbname, "db", "snn", "name of the condition database")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "display the version of snn-ctl",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			vers, sum := snn.Version()
			if vers == "" {
				vers = "(devel)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "snn-ctl %s %s\n", vers, sum)
		},
	}
}

func profile(ctx context.Context, dbname string, args []string) (conddb.Profile, error) {
	if len(args) == 1 && args[0] == "default" {
		return conddb.DefaultProfile(), nil
	}

	db, err := conddb.Open(dbname)
	if err != nil {
		return conddb.Profile{}, fmt.Errorf("could not open condition db: %w", err)
	}
	defer db.Close()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if len(args) == 0 {
		return db.LastProfile(ctx)
	}
	return db.Profile(ctx, args[0])
}

func parseU32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	return uint32(v), err
}

func parseU64(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}
