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

// Package datasource provides a bounded pool of database connections with
// per-transaction affinity: a connection borrowed inside a transaction is
// pinned to it, enlisted with the coordinator and released when the
// transaction completes.
package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/emirpasic/gods/lists/doublylinkedlist"
	"github.com/endink/go-datasource/driver"
	"github.com/endink/go-datasource/logging"
	"github.com/endink/go-datasource/tm"
	"github.com/endink/go-datasource/util/sync2"
	"github.com/pingcap/errors"
)

var log = logging.GetLogger("datasource")

// DataSource is a bounded connection pool. Idle connections are reused LIFO
// so that the working set stays hot and cold connections age out through the
// idle sweep.
type DataSource struct {
	name   string
	drv    driver.Driver
	config *Config
	tm     *tm.Manager

	// mu guards idle, createdCount, waiting, checkIdleAt and closed. Raw
	// connection I/O never happens while holding it.
	mu           sync.Mutex
	idle         *doublylinkedlist.List
	createdCount int
	waiting      int
	checkIdleAt  time.Time
	closed       bool

	// notify carries at most one token: a release or a relinquished slot
	// wakes at most one waiter. done is closed on shutdown and wakes all.
	notify chan struct{}
	done   chan struct{}

	// inTransaction maps *tm.Transaction to its pinned *PooledConnection.
	// Entries are keyed by transaction identity and each transaction is
	// owned by one goroutine, so the map is not guarded by mu.
	inTransaction sync.Map
	txCount       sync2.AtomicInt64

	borrowTimeout sync2.AtomicDuration

	waitLog *logging.ThrottledLogger
}

// New creates a DataSource from the given config. A named datasource is
// added to the process registry and publishes its readouts as metrics.
func New(config *Config) (*DataSource, error) {
	if config == nil {
		return nil, errors.New("datasource config can not be nil")
	}
	drv, err := driver.Get(config.Driver)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid datasource descriptor for %s", config.Name)
	}

	ds := &DataSource{
		name:          config.Name,
		drv:           drv,
		config:        config,
		tm:            tm.DefaultManager,
		idle:          doublylinkedlist.New(),
		notify:        make(chan struct{}, 1),
		done:          make(chan struct{}),
		borrowTimeout: sync2.NewAtomicDuration(config.BorrowTimeout),
		waitLog:       logging.NewThrottledLogger("pool-wait", log, time.Minute),
	}

	if ds.name != "" {
		ds.registerMetrics()
		if err := register(ds); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

func (ds *DataSource) String() string {
	return fmt.Sprintf("DataSource{%s}", ds.name)
}

// GetConnection returns a connection. Outside a transaction it is a plain
// borrow. Inside a transaction the first call borrows, enlists and pins a
// connection; later calls return the same one.
func (ds *DataSource) GetConnection(ctx context.Context) (*PooledConnection, error) {
	tx := ds.tm.Current(ctx)
	if tx == nil {
		return ds.borrowConnection(ctx)
	}

	if v, ok := ds.inTransaction.Load(tx); ok {
		log.Debugf("reuse: %v in %v", ds, tx)
		return v.(*PooledConnection), nil
	}

	conn, err := ds.borrowConnection(ctx)
	if err != nil {
		return nil, err
	}
	if err := ds.registerInTransaction(ctx, conn, tx); err != nil {
		return nil, err
	}
	return conn, nil
}

// Close shuts the pool down. Idle connections are destroyed; connections
// pinned to transactions survive the call and are destroyed when their
// transactions complete. Waiters are woken and fail with ErrPoolClosed.
func (ds *DataSource) Close() {
	ds.mu.Lock()
	if ds.closed {
		ds.mu.Unlock()
		return
	}
	var open []*PooledConnection
	it := ds.idle.Iterator()
	for it.Next() {
		open = append(open, it.Value().(*PooledConnection))
	}
	ds.idle.Clear()
	ds.createdCount = 0
	ds.closed = true
	close(ds.done)
	ds.mu.Unlock()

	// raw handles are torn down outside the lock
	for _, conn := range open {
		ds.destroyConnection(conn, ConnClose)
	}

	if ds.name != "" {
		unregister(ds.name)
	}
}

func (ds *DataSource) borrowConnection(ctx context.Context) (*PooledConnection, error) {
	accessTime := time.Now()

	ds.sweepIdle(accessTime)

	deadline := accessTime.Add(ds.borrowTimeout.Get())

	ds.mu.Lock()
	for {
		if ds.closed {
			ds.mu.Unlock()
			return nil, ErrPoolClosed
		}

		// First try to reuse an idle connection.
		if v, ok := ds.idle.Get(0); ok {
			ds.idle.Remove(0)
			ds.mu.Unlock()
			conn := v.(*PooledConnection)
			conn.lastAccessTime = accessTime
			return conn, nil
		}

		// If capacity permits, claim a slot and create outside the lock.
		if ds.createdCount < ds.config.PoolSize {
			ds.createdCount++
			break
		}

		// Lastly wait until an existing connection becomes free.
		wait := time.Until(deadline)
		if wait <= 0 {
			ds.mu.Unlock()
			DsStats.BorrowTimeouts.Add(context.TODO(), 1)
			return nil, ErrBorrowTimeout
		}
		if err := ds.waitForFreeConnection(ctx, wait); err != nil {
			return nil, err
		}
	}
	ds.mu.Unlock()

	conn, err := ds.openConnection(ctx, accessTime)
	if err != nil {
		ds.decreaseCount()
		return nil, err
	}
	return conn, nil
}

// waitForFreeConnection parks the borrower until a connection may be
// available. It is entered with mu held and leaves with mu held on nil, and
// released on error.
func (ds *DataSource) waitForFreeConnection(ctx context.Context, wait time.Duration) error {
	ds.waiting++
	ds.mu.Unlock()

	ds.waitLog.Warningf("%v: pool exhausted, waiting up to %v for a free connection", ds, wait)

	timer := time.NewTimer(wait)
	var err error
	select {
	case <-ds.notify:
	case <-ds.done:
	case <-timer.C:
	case <-ctx.Done():
		err = fmt.Errorf("%w\n%v", ErrInterrupted, ctx.Err())
	}
	timer.Stop()

	ds.mu.Lock()
	ds.waiting--
	if err != nil {
		ds.mu.Unlock()
		return err
	}
	return nil
}

func (ds *DataSource) openConnection(ctx context.Context, accessTime time.Time) (*PooledConnection, error) {
	props := make(map[string]string)
	if ds.config.User != "" {
		props["user"] = ds.config.User
	}
	if ds.config.Password != "" {
		props["password"] = ds.config.Password
	}

	raw, err := ds.drv.Connect(ctx, ds.config.URL, props)
	if err != nil {
		DsStats.OpenErrors.Add(context.TODO(), 1)
		return nil, err
	}
	if raw == nil {
		DsStats.OpenErrors.Add(context.TODO(), 1)
		return nil, fmt.Errorf("unsupported connection string: %s", ds.config.URL)
	}

	if ds.config.LockTimeout >= 0 {
		ds.executeRawSQL(ctx, raw, fmt.Sprintf("SET LOCK_TIMEOUT %d", ds.config.LockTimeout))
	}

	return &PooledConnection{raw: raw, ds: ds, lastAccessTime: accessTime}, nil
}

// executeRawSQL runs a session setup statement. Failure is logged and
// swallowed; the connection stays usable.
func (ds *DataSource) executeRawSQL(ctx context.Context, raw driver.Conn, sql string) {
	if _, err := raw.Exec(ctx, sql); err != nil {
		log.Errorf("cannot execute %s on %v: %v", sql, ds, err)
	}
}

// sweepIdle destroys idle connections whose last access predates the
// keep-alive window. It runs at most once per keepAlive/10.
func (ds *DataSource) sweepIdle(now time.Time) {
	var expired []*PooledConnection

	ds.mu.Lock()
	if now.Before(ds.checkIdleAt) {
		ds.mu.Unlock()
		return
	}
	ds.checkIdleAt = now.Add(ds.config.KeepAlive / 10)
	cutoff := now.Add(-ds.config.KeepAlive)

	for i := ds.idle.Size() - 1; i >= 0; i-- {
		v, _ := ds.idle.Get(i)
		conn := v.(*PooledConnection)
		if conn.lastAccessTime.Before(cutoff) {
			ds.idle.Remove(i)
			ds.createdCount--
			ds.notifyLocked()
			expired = append(expired, conn)
		}
	}
	ds.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	log.Debugf("closing %d idle connections on %v", len(expired), ds)
	DsStats.IdleClosed.Add(context.TODO(), int64(len(expired)))
	for _, conn := range expired {
		ds.destroyConnection(conn, ConnIdleExpired)
	}
}

// releaseConnection takes ownership back from the borrower. Invalidated
// connections relinquish their slot and are destroyed; otherwise the
// connection goes to the front of the idle set and one waiter is woken.
func (ds *DataSource) releaseConnection(conn *PooledConnection, reason ReleaseReason) {
	log.Debugf("release(%s): %v", reason.Name(), conn)

	if conn.invalidated {
		ds.decreaseCount()
		ds.destroyConnection(conn, ConnInvalidated)
		return
	}

	ds.mu.Lock()
	if !ds.closed {
		ds.idle.Prepend(conn)
		ds.notifyLocked()
		ds.mu.Unlock()
		return
	}
	ds.mu.Unlock()

	ds.destroyConnection(conn, ConnClose)
}

// destroyConnection tears down the raw handle. Never called with the pool
// lock held.
func (ds *DataSource) destroyConnection(conn *PooledConnection, reason ReleaseReason) {
	log.Debugf("destroy(%s): %v", reason.Name(), conn)
	conn.closeRaw()
}

// decreaseCount relinquishes a capacity slot and wakes one waiter.
func (ds *DataSource) decreaseCount() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if !ds.closed {
		ds.createdCount--
		ds.notifyLocked()
	}
}

func (ds *DataSource) notifyLocked() {
	if ds.waiting > 0 {
		select {
		case ds.notify <- struct{}{}:
		default:
		}
	}
}

func (ds *DataSource) registerInTransaction(ctx context.Context, conn *PooledConnection, tx *tm.Transaction) error {
	log.Debugf("register: %v in %v", ds, tx)

	if err := conn.raw.SetAutoCommit(ctx, false); err != nil {
		conn.checkBroken(err)
		ds.releaseConnection(conn, ConnInitFail)
		return err
	}
	if _, err := tx.EnlistResource(&connectionResource{conn: conn}); err != nil {
		ds.releaseConnection(conn, ConnInitFail)
		return err
	}

	conn.tx = tx
	ds.inTransaction.Store(tx, conn)
	ds.txCount.Add(1)
	return nil
}

// unregisterFromTransaction unpins the connection, restores auto-commit and
// releases it. A connection whose mode cannot be restored is invalidated.
func (ds *DataSource) unregisterFromTransaction(conn *PooledConnection, reason ReleaseReason) {
	log.Debugf("unregister: %v from %v", ds, conn.tx)

	ds.inTransaction.Delete(conn.tx)
	ds.txCount.Add(-1)
	conn.tx = nil

	if err := conn.raw.SetAutoCommit(context.TODO(), true); err != nil {
		log.Errorf("cannot restore auto-commit on %v: %v", ds, err)
		conn.invalidated = true
	}
	ds.releaseConnection(conn, reason)
}

// Name returns the datasource name.
func (ds *DataSource) Name() string {
	return ds.name
}

// URL returns the connect string.
func (ds *DataSource) URL() string {
	return ds.config.URL
}

// OpenConnections returns the number of currently alive connections.
func (ds *DataSource) OpenConnections() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.createdCount
}

// IdleConnections returns the size of the idle set.
func (ds *DataSource) IdleConnections() int {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.idle.Size()
}

// Transactions returns the number of transactions with a pinned connection.
func (ds *DataSource) Transactions() int {
	return int(ds.txCount.Get())
}

// MaxConnections returns the configured pool size.
func (ds *DataSource) MaxConnections() int {
	return ds.config.PoolSize
}

// BorrowTimeout returns the current borrow timeout.
func (ds *DataSource) BorrowTimeout() time.Duration {
	return ds.borrowTimeout.Get()
}

// SetBorrowTimeout adjusts the borrow timeout at runtime.
func (ds *DataSource) SetBorrowTimeout(timeout time.Duration) {
	ds.borrowTimeout.Set(timeout)
}

// LockTimeout returns the configured lock timeout in driver-native units.
func (ds *DataSource) LockTimeout() int {
	return ds.config.LockTimeout
}
