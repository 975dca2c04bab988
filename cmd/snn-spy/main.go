// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command snn-spy spies the content of the SNN accelerator registers.
package main // import "github.com/go-lpc/snn/cmd/snn-spy"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/snn/csr"
	"github.com/go-lpc/snn/driver"
)

func main() {
	log.SetPrefix("snn-spy: ")
	log.SetFlags(0)

	var (
		devmem = flag.String("devmem", "/dev/mem", "path to the CSR-mapped device")
		base   = flag.Int64("base", 0, "physical base address of the CSR block")
		size   = flag.Int64("size", csr.WindowSize, "size of the mapped register window")
		freq   = flag.Duration("freq", 0, "spying period (0: spy once)")
	)

	flag.Parse()

	dev, err := driver.Open(*devmem, *base, *size)
	if err != nil {
		log.Fatalf("could not open device: %+v", err)
	}
	defer dev.Close()

	err = spy(os.Stdout, dev, *freq, nil)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func spy(w io.Writer, dev *driver.Device, freq time.Duration, stop chan struct{}) error {
	const layout = "2006-01-02 15:04:05 MST"
	for {
		fmt.Fprintf(w, "------------------------------------------------\n")
		fmt.Fprintf(w, "%v\n", time.Now().Format(layout))

		err := dev.DumpRegisters(w)
		if err != nil {
			return fmt.Errorf("could not dump registers: %w", err)
		}

		if freq <= 0 {
			return nil
		}

		select {
		case <-stop:
			return nil
		case <-time.After(freq):
		}
	}
}
