// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command snn-sql inspects the condition database of the SNN accelerator.
//
// Database credentials are read from the SNN_DB_HOST, SNN_DB_USER and
// SNN_DB_PASS environment variables.
package main // import "github.com/go-lpc/snn/cmd/snn-sql"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/go-lpc/snn/conddb"
)

func main() {
	log.SetPrefix("snn-sql: ")
	log.SetFlags(0)

	var (
		dbname  = flag.String("db", "snn", "name of the condition database")
		profile = flag.String("profile", "", "configuration profile to inspect (default: last one)")
		nruns   = flag.Int("runs", 10, "number of runs to display")
	)

	flag.Parse()

	db, err := conddb.Open(*dbname)
	if err != nil {
		log.Fatalf("could not open SNN db: %+v", err)
	}
	defer db.Close()

	err = doQuery(os.Stdout, db, *profile, *nruns)
	if err != nil {
		log.Fatalf("could not do query: %+v", err)
	}
}

func doQuery(w io.Writer, db *conddb.DB, name string, nruns int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var (
		p   conddb.Profile
		err error
	)
	switch name {
	case "":
		p, err = db.LastProfile(ctx)
	default:
		p, err = db.Profile(ctx, name)
	}
	if err != nil {
		return fmt.Errorf("could not get profile: %w", err)
	}
	fmt.Fprintf(w, "profile: %q (id=%d)\n", p.Name, p.ID)
	fmt.Fprintf(w, "  config:       0x%08x\n", p.Config)
	fmt.Fprintf(w, "  epoch_len:    %d\n", p.EpochLen)
	fmt.Fprintf(w, "  neuron_count: %d\n", p.NeuronCount)
	fmt.Fprintf(w, "  threshold:    0x%08x\n", p.Threshold)
	fmt.Fprintf(w, "  leak_rate:    0x%08x\n", p.LeakRate)
	fmt.Fprintf(w, "  refractory:   %d\n", p.Refractory)
	fmt.Fprintf(w, "  weight_base:  0x%08x\n", p.WeightBase)
	fmt.Fprintf(w, "  state_base:   0x%08x\n", p.StateBase)
	fmt.Fprintf(w, "  irq_mask:     0x%08x\n", p.IRQMask)

	ps, err := db.Profiles(ctx)
	if err != nil {
		return fmt.Errorf("could not get profiles: %w", err)
	}
	fmt.Fprintf(w, "profiles: %d\n", len(ps))
	for _, p := range ps {
		fmt.Fprintf(w, ">>> %-16s neurons=%d, epoch=%d\n", p.Name, p.NeuronCount, p.EpochLen)
	}

	if nruns <= 0 {
		return nil
	}

	runs, err := db.Runs(ctx, nruns)
	if err != nil {
		return fmt.Errorf("could not retrieve runs: %w", err)
	}
	fmt.Fprintf(w, "runs: %d\n", len(runs))
	for i, run := range runs {
		fmt.Fprintf(w, "run[%d]: profile=%q, start=%s, duration=%v, timesteps=%d, spikes=%d, status=0x%08x\n",
			i, run.Profile, run.Start.UTC().Format(time.RFC3339), run.Stop.Sub(run.Start),
			run.Timesteps, run.Spikes, run.Status,
		)
	}

	return nil
}
