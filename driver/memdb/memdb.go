/*
 * Copyright 2021. Go-Datasource Author All Rights Reserved.
 *
 *  Licensed under the Apache License, Version 2.0 (the "License");
 *  you may not use this file except in compliance with the License.
 *  You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 */

// Package memdb provides an in-memory driver. It backs the examples and the
// test suites: every statement is recorded, and connect/exec/commit failures
// can be injected per database.
package memdb

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/endink/go-datasource/driver"
)

const scheme = "memdb://"

func init() {
	driver.Register("memdb", drv{})
}

var databases sync.Map

// DB is one scriptable in-memory database. Connections obtained through the
// driver against URL() share its state.
type DB struct {
	name string

	mu          sync.Mutex
	queryLog    []string
	opened      int
	closed      int
	connectErr  error
	commitErr   error
	rollbackErr error
	execErrs    map[string]error
	results     map[string][][]interface{}
}

// New creates a database reachable at memdb://name and registers it for the
// driver. An existing database under the same name is replaced.
func New(name string) *DB {
	db := &DB{
		name:     name,
		execErrs: make(map[string]error),
		results:  make(map[string][][]interface{}),
	}
	databases.Store(name, db)
	return db
}

// URL returns the connect string resolving to this database.
func (db *DB) URL() string {
	return scheme + db.name
}

// Close unregisters the database. Existing connections keep working; new
// connects fail.
func (db *DB) Close() {
	databases.Delete(db.name)
}

// QueryLog returns every statement executed so far, joined with ";".
func (db *DB) QueryLog() string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return strings.Join(db.queryLog, ";")
}

// ClearQueryLog drops the recorded statements.
func (db *DB) ClearQueryLog() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.queryLog = nil
}

// OpenedConnections returns how many connections were ever opened.
func (db *DB) OpenedConnections() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.opened
}

// ClosedConnections returns how many connections were closed.
func (db *DB) ClosedConnections() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.closed
}

// LiveConnections returns opened minus closed.
func (db *DB) LiveConnections() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.opened - db.closed
}

// RejectConnect makes every following connect fail with err. Pass nil to
// accept connects again.
func (db *DB) RejectConnect(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.connectErr = err
}

// FailCommit makes Commit fail with err until reset with nil.
func (db *DB) FailCommit(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.commitErr = err
}

// FailRollback makes Rollback fail with err until reset with nil.
func (db *DB) FailRollback(err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.rollbackErr = err
}

// FailExec makes the exact statement fail with err.
func (db *DB) FailExec(query string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.execErrs[query] = err
}

// AddQuery registers result rows for the exact statement.
func (db *DB) AddQuery(query string, rows [][]interface{}) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.results[query] = rows
}

func (db *DB) record(query string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.queryLog = append(db.queryLog, query)
	return db.execErrs[query]
}

type drv struct{}

func (drv) Connect(ctx context.Context, url string, props map[string]string) (driver.Conn, error) {
	if !strings.HasPrefix(url, scheme) {
		return nil, fmt.Errorf("unsupported connection string: %s", url)
	}
	name := strings.TrimPrefix(url, scheme)
	v, ok := databases.Load(name)
	if !ok {
		return nil, fmt.Errorf("unknown memdb database: %s", name)
	}
	db := v.(*DB)

	db.mu.Lock()
	defer db.mu.Unlock()
	if db.connectErr != nil {
		return nil, db.connectErr
	}
	db.opened++
	return &conn{db: db, autoCommit: true}, nil
}

type conn struct {
	db         *DB
	autoCommit bool
	closed     bool
}

func (c *conn) Exec(ctx context.Context, query string) (int64, error) {
	if c.closed {
		return 0, driver.ErrBroken
	}
	if err := c.db.record(query); err != nil {
		return 0, err
	}
	return 1, nil
}

func (c *conn) Query(ctx context.Context, query string) (driver.Rows, error) {
	if c.closed {
		return nil, driver.ErrBroken
	}
	if err := c.db.record(query); err != nil {
		return nil, err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	return &rows{data: c.db.results[query]}, nil
}

func (c *conn) Commit(ctx context.Context) error {
	if err := c.db.record("commit"); err != nil {
		return err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	return c.db.commitErr
}

func (c *conn) Rollback(ctx context.Context) error {
	if err := c.db.record("rollback"); err != nil {
		return err
	}
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	return c.db.rollbackErr
}

func (c *conn) SetAutoCommit(ctx context.Context, on bool) error {
	if c.closed {
		return driver.ErrBroken
	}
	if on == c.autoCommit {
		return nil
	}
	c.autoCommit = on
	v := 0
	if on {
		v = 1
	}
	return c.db.record(fmt.Sprintf("set autocommit=%d", v))
}

func (c *conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.db.mu.Lock()
	defer c.db.mu.Unlock()
	c.db.closed++
	return nil
}

type rows struct {
	data [][]interface{}
	pos  int
}

func (r *rows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *rows) Scan(dest ...interface{}) error {
	if r.pos == 0 || r.pos > len(r.data) {
		return fmt.Errorf("scan called without next")
	}
	row := r.data[r.pos-1]
	if len(dest) > len(row) {
		return fmt.Errorf("scan: expected at most %d columns, got %d", len(row), len(dest))
	}
	for i := range dest {
		if p, ok := dest[i].(*interface{}); ok {
			*p = row[i]
			continue
		}
		return fmt.Errorf("scan: unsupported destination type at index %d", i)
	}
	return nil
}

func (r *rows) Close() error { return nil }
