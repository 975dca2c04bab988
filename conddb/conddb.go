// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb holds types to describe the configuration database
// of the SNN accelerator: configuration profiles and run records.
package conddb // import "github.com/go-lpc/snn/conddb"

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

var (
	host = "localhost"
	usr  = "username"
	pwd  = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to retrieve accelerator configuration
// profiles and to record runs.
type DB struct {
	db   *sql.DB
	name string // name of the SNN database
}

// Open opens a connection to the SNN database dbname.
//
// The SNN_DB_HOST, SNN_DB_USER and SNN_DB_PASS environment variables,
// when set, override the default connection parameters.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf(
		"%s:%s@tcp(%s)/%s?parseTime=true",
		getenv("SNN_DB_USER", usr),
		getenv("SNN_DB_PASS", pwd),
		getenv("SNN_DB_HOST", host),
		db,
	)
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

const profileColumns = `id, name, config, epoch_len, neuron_count,
	threshold, leak_rate, refractory, weight_base, state_base, irq_mask`

// LastProfile returns the most recently created configuration profile.
func (db *DB) LastProfile(ctx context.Context) (Profile, error) {
	ps, err := db.profiles(
		ctx, "last profile",
		"SELECT "+profileColumns+" FROM profiles ORDER BY datetime DESC LIMIT 1",
	)
	if err != nil {
		return Profile{}, err
	}
	if len(ps) == 0 {
		return Profile{}, fmt.Errorf("conddb: no profile in %q db", db.name)
	}
	return ps[0], nil
}

// Profile returns the named configuration profile.
func (db *DB) Profile(ctx context.Context, name string) (Profile, error) {
	ps, err := db.profiles(
		ctx, fmt.Sprintf("profile %q", name),
		"SELECT "+profileColumns+" FROM profiles WHERE name=? ORDER BY datetime DESC LIMIT 1",
		name,
	)
	if err != nil {
		return Profile{}, err
	}
	if len(ps) == 0 {
		return Profile{}, fmt.Errorf("conddb: no profile %q in %q db", name, db.name)
	}
	return ps[0], nil
}

// Profiles returns all configuration profiles, sorted by name.
func (db *DB) Profiles(ctx context.Context) ([]Profile, error) {
	return db.profiles(
		ctx, "profiles",
		"SELECT "+profileColumns+" FROM profiles ORDER BY name",
	)
}

func (db *DB) profiles(ctx context.Context, what, query string, args ...interface{}) ([]Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var ps []Profile
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return ps, fmt.Errorf("conddb: could not query %s: %w", what, err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var p Profile
		err = rows.Scan(
			&p.ID, &p.Name, &p.Config, &p.EpochLen, &p.NeuronCount,
			&p.Threshold, &p.LeakRate, &p.Refractory,
			&p.WeightBase, &p.StateBase, &p.IRQMask,
		)
		if err != nil {
			return ps, fmt.Errorf("conddb: could not scan row %d for %s: %w", i, what, err)
		}
		i++
		ps = append(ps, p)
	}

	if err := rows.Err(); err != nil {
		return ps, fmt.Errorf("conddb: could not scan db for %s: %w", what, err)
	}

	if err := ctx.Err(); err != nil {
		return ps, fmt.Errorf("conddb: context error while retrieving %s: %w", what, err)
	}

	return ps, nil
}

// AddRun records the outcome of a run.
func (db *DB) AddRun(ctx context.Context, run Run) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		`INSERT INTO runs (profile, timesteps, spikes, status, start, stop)
VALUES (?, ?, ?, ?, ?, ?)`,
		run.Profile, run.Timesteps, run.Spikes, run.Status, run.Start, run.Stop,
	)
	if err != nil {
		return fmt.Errorf("conddb: could not record run: %w", err)
	}
	return nil
}

// Runs returns the last n recorded runs, most recent first.
func (db *DB) Runs(ctx context.Context, n int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var runs []Run
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT profile, timesteps, spikes, status, start, stop FROM runs ORDER BY start DESC LIMIT ?",
		n,
	)
	if err != nil {
		return nil, fmt.Errorf("conddb: could not query runs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var run Run
		err = rows.Scan(
			&run.Profile, &run.Timesteps, &run.Spikes, &run.Status,
			&run.Start, &run.Stop,
		)
		if err != nil {
			return runs, fmt.Errorf("conddb: could not scan run %d: %w", len(runs), err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return runs, fmt.Errorf("conddb: could not scan db for runs: %w", err)
	}
	return runs, nil
}
