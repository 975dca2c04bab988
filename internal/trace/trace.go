// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package trace records register window accesses into a SQLite database.
package trace // import "github.com/go-lpc/snn/internal/trace"

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-lpc/snn/csr"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
)

const schema = `CREATE TABLE IF NOT EXISTS accesses (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	session TEXT    NOT NULL,
	seq     INTEGER NOT NULL,
	op      TEXT    NOT NULL,
	reg     TEXT    NOT NULL,
	addr    INTEGER NOT NULL,
	size    INTEGER NOT NULL,
	value   INTEGER NOT NULL,
	err     TEXT    NOT NULL,
	time    INTEGER NOT NULL
);`

const insert = `INSERT INTO accesses (session, seq, op, reg, addr, size, value, err, time)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Window is a byte-addressable register window.
type Window interface {
	io.ReaderAt
	io.WriterAt
}

// Op is the kind of a register access.
type Op string

const (
	Read  Op = "R"
	Write Op = "W"
)

// Access is one recorded register access.
type Access struct {
	Session string
	Seq     int64
	Op      Op
	Reg     string // name of the addressed register, empty if none
	Offset  int64
	Size    int
	Value   uint32 // little-endian value of the transferred bytes
	Err     string
	Time    time.Time
}

func (a Access) String() string {
	name := a.Reg
	if name == "" {
		name = "?"
	}
	o := fmt.Sprintf("#%d %s 0x%02x %-16s 0x%08x", a.Seq, a.Op, a.Offset, name, a.Value)
	if a.Err != "" {
		o += " err=" + a.Err
	}
	return o
}

// Recorder is a register window that records every access made through it.
//
// Accesses are written to the database by batches. Once a batch could not
// be written, the recorder stops recording and the error is returned by the
// next call to Flush or Close. Accesses to the window are not affected.
type Recorder struct {
	mu    sync.Mutex
	win   Window
	db    *sql.DB
	stmt  *sql.Stmt
	sid   string
	seq   int64
	buf   []Access
	batch int

	err  error // first flush error, sticky
	lost int64 // number of accesses not recorded because of err
}

// New creates a recorder of the accesses to win, stored in the SQLite
// database fname.
func New(fname string, win Window) (*Recorder, error) {
	db, err := sql.Open("sqlite3", fname)
	if err != nil {
		return nil, fmt.Errorf("trace: could not open db %q: %w", fname, err)
	}

	_, err = db.Exec(schema)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("trace: could not create accesses table: %w", err)
	}

	stmt, err := db.Prepare(insert)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("trace: could not prepare insert statement: %w", err)
	}

	return &Recorder{
		win:   win,
		db:    db,
		stmt:  stmt,
		sid:   xid.New().String(),
		batch: 1024,
	}, nil
}

// Session returns the identifier of the recording session.
func (rec *Recorder) Session() string { return rec.sid }

func (rec *Recorder) ReadAt(p []byte, off int64) (int, error) {
	n, err := rec.win.ReadAt(p, off)
	rec.record(Read, p[:n], off, err)
	return n, err
}

func (rec *Recorder) WriteAt(p []byte, off int64) (int, error) {
	n, err := rec.win.WriteAt(p, off)
	rec.record(Write, p, off, err)
	return n, err
}

func (rec *Recorder) record(op Op, p []byte, off int64, err error) {
	var buf [4]byte
	copy(buf[:], p)

	a := Access{
		Session: rec.sid,
		Op:      op,
		Offset:  off,
		Size:    len(p),
		Value:   binary.LittleEndian.Uint32(buf[:]),
		Time:    time.Now().UTC(),
	}
	if off >= 0 {
		if reg, ok := csr.Layout.Find(uint32(off)); ok {
			a.Reg = reg.Name
		}
	}
	if err != nil {
		a.Err = err.Error()
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.seq++
	a.Seq = rec.seq
	if rec.err != nil {
		rec.lost++
		return
	}
	rec.buf = append(rec.buf, a)
	if len(rec.buf) >= rec.batch {
		_ = rec.flush()
	}
}

// Flush writes all the buffered accesses to the database.
func (rec *Recorder) Flush() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.flush()
}

func (rec *Recorder) flush() error {
	if rec.err != nil {
		return fmt.Errorf("%w (%d access(es) lost)", rec.err, rec.lost)
	}
	if len(rec.buf) == 0 {
		return nil
	}

	err := rec.write()
	if err != nil {
		rec.err = err
		rec.lost += int64(len(rec.buf))
		rec.buf = rec.buf[:0]
		return fmt.Errorf("%w (%d access(es) lost)", rec.err, rec.lost)
	}
	rec.buf = rec.buf[:0]
	return nil
}

func (rec *Recorder) write() error {
	tx, err := rec.db.Begin()
	if err != nil {
		return fmt.Errorf("trace: could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt := tx.Stmt(rec.stmt)
	for _, a := range rec.buf {
		_, err = stmt.Exec(
			a.Session, a.Seq, string(a.Op), a.Reg,
			a.Offset, a.Size, int64(a.Value), a.Err,
			a.Time.UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("trace: could not insert access %d: %w", a.Seq, err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("trace: could not commit transaction: %w", err)
	}
	return nil
}

// Close flushes the buffered accesses, closes the database and the
// underlying window, if it can be closed.
func (rec *Recorder) Close() error {
	rec.mu.Lock()
	defer rec.mu.Unlock()

	ferr := rec.flush()

	_ = rec.stmt.Close()
	err := rec.db.Close()
	if err != nil && ferr == nil {
		ferr = fmt.Errorf("trace: could not close db: %w", err)
	}

	if c, ok := rec.win.(io.Closer); ok {
		err = c.Close()
		if err != nil && ferr == nil {
			ferr = fmt.Errorf("trace: could not close register window: %w", err)
		}
	}
	return ferr
}

// Load returns the accesses recorded in the database fname.
// If session is not empty, only the accesses of that session are returned.
func Load(fname, session string) ([]Access, error) {
	db, err := sql.Open("sqlite3", fname)
	if err != nil {
		return nil, fmt.Errorf("trace: could not open db %q: %w", fname, err)
	}
	defer db.Close()

	q := "SELECT session, seq, op, reg, addr, size, value, err, time FROM accesses"
	args := []any{}
	if session != "" {
		q += " WHERE session=?"
		args = append(args, session)
	}
	q += " ORDER BY id"

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("trace: could not query accesses: %w", err)
	}
	defer rows.Close()

	var accs []Access
	for rows.Next() {
		var (
			a     Access
			op    string
			value int64
			ns    int64
		)
		err = rows.Scan(&a.Session, &a.Seq, &op, &a.Reg, &a.Offset, &a.Size, &value, &a.Err, &ns)
		if err != nil {
			return nil, fmt.Errorf("trace: could not scan access: %w", err)
		}
		a.Op = Op(op)
		a.Value = uint32(value)
		a.Time = time.Unix(0, ns).UTC()
		accs = append(accs, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trace: could not iterate over accesses: %w", err)
	}
	return accs, nil
}
