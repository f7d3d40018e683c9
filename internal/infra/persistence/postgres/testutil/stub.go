// Package testutil provides a recording stub database for postgres store tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
)

var driverSeq atomic.Uint64

// Exec is one statement seen by the stub together with its bind values.
type Exec struct {
	Query string
	Args  []any
}

// StubConn records statements and serves canned query results.
type StubConn struct {
	mu         sync.Mutex
	Execs      []Exec
	Queries    []string
	Begins     int
	Commits    int
	Rollbacks  int
	Closes     int
	FailPing   bool
	FailBegin  bool
	FailCommit bool
	// FailOn fails any exec or query whose text contains the key.
	FailOn map[string]error
	// Columns and Rows are returned for every query.
	Columns []string
	Rows    [][]driver.Value
	RowsErr error
}

// NewStubDB registers a sql.DB backed by a fresh stub connection.
func NewStubDB() (*sql.DB, *StubConn) {
	conn := &StubConn{}
	name := fmt.Sprintf("stubpg%d", driverSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

// Statements returns the recorded exec statements.
func (c *StubConn) Statements() []Exec {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Exec, len(c.Execs))
	copy(out, c.Execs)
	return out
}

type stubDriver struct {
	conn *StubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return &connHandle{stub: d.conn}, nil
}

// connHandle is what database/sql pools; Close on it is counted per acquisition.
type connHandle struct {
	stub *StubConn
}

func (h *connHandle) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }

func (h *connHandle) Close() error {
	h.stub.mu.Lock()
	h.stub.Closes++
	h.stub.mu.Unlock()
	return nil
}

func (h *connHandle) Begin() (driver.Tx, error) {
	return h.BeginTx(context.Background(), driver.TxOptions{})
}

func (h *connHandle) Ping(context.Context) error {
	if h.stub.FailPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (h *connHandle) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c := h.stub
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailBegin {
		return nil, fmt.Errorf("begin fail")
	}
	c.Begins++
	return &stubTx{conn: c}, nil
}

func (h *connHandle) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c := h.stub
	c.mu.Lock()
	defer c.mu.Unlock()
	vals := make([]any, len(args))
	for i, a := range args {
		vals[i] = a.Value
	}
	c.Execs = append(c.Execs, Exec{Query: query, Args: vals})
	if err := c.failure(query); err != nil {
		return nil, err
	}
	if end := strings.Index(query, ")"); end > 0 && strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT") {
		width := strings.Count(query[:end], ",") + 1
		if len(args)%width == 0 {
			return driver.RowsAffected(len(args) / width), nil
		}
		return nil, fmt.Errorf("column/arg mismatch: %d args for width %d", len(args), width)
	}
	return driver.RowsAffected(0), nil
}

func (h *connHandle) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c := h.stub
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Queries = append(c.Queries, query)
	if err := c.failure(query); err != nil {
		return nil, err
	}
	rows := make([][]driver.Value, len(c.Rows))
	copy(rows, c.Rows)
	return &stubRows{cols: c.Columns, rows: rows, err: c.RowsErr}, nil
}

func (c *StubConn) failure(query string) error {
	for needle, err := range c.FailOn {
		if strings.Contains(query, needle) {
			return err
		}
	}
	return nil
}

type stubTx struct {
	conn *StubConn
}

func (t *stubTx) Commit() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	if t.conn.FailCommit {
		return fmt.Errorf("commit fail")
	}
	t.conn.Commits++
	return nil
}

func (t *stubTx) Rollback() error {
	t.conn.mu.Lock()
	defer t.conn.mu.Unlock()
	t.conn.Rollbacks++
	return nil
}

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
	err  error
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		if r.err != nil {
			return r.err
		}
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
