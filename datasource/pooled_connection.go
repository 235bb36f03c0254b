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

package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/endink/go-datasource/driver"
	"github.com/endink/go-datasource/tm"
)

// PooledConnection is the connection handed out by a DataSource. It forwards
// database calls to the raw driver connection and turns Close into a return
// to the pool. It is owned by whoever currently holds it: the pool while
// idle, the borrower, or the transaction it is pinned to.
type PooledConnection struct {
	raw driver.Conn
	ds  *DataSource

	// lastAccessTime is stamped on every borrow; the idle sweep evicts on it.
	lastAccessTime time.Time

	// tx is the pinned transaction while enlisted, nil otherwise.
	tx *tm.Transaction

	// invalidated is one-way: once set the connection is destroyed on
	// release instead of returning to the idle set.
	invalidated bool
}

// Exec runs a statement on the raw connection.
func (c *PooledConnection) Exec(ctx context.Context, query string) (int64, error) {
	n, err := c.raw.Exec(ctx, query)
	c.checkBroken(err)
	return n, err
}

// Query runs a query on the raw connection.
func (c *PooledConnection) Query(ctx context.Context, query string) (driver.Rows, error) {
	rows, err := c.raw.Query(ctx, query)
	c.checkBroken(err)
	return rows, err
}

// SetAutoCommit switches the auto-commit mode. It is rejected while the
// connection is enlisted in a transaction; the pool restores the mode itself
// when the transaction completes.
func (c *PooledConnection) SetAutoCommit(ctx context.Context, on bool) error {
	if c.tx != nil {
		return fmt.Errorf("%w: %v", ErrPinned, c.tx)
	}
	err := c.raw.SetAutoCommit(ctx, on)
	c.checkBroken(err)
	return err
}

// Close returns the connection to its pool. While pinned to a transaction
// the call is a no-op: the pool reclaims the connection when the transaction
// completes.
func (c *PooledConnection) Close() error {
	if c.tx != nil {
		log.Debugf("close deferred: %v is pinned to %v", c, c.tx)
		return nil
	}
	c.ds.releaseConnection(c, ConnRelease)
	return nil
}

// Invalidate marks the connection as no longer reusable.
func (c *PooledConnection) Invalidate() {
	c.invalidated = true
}

// Invalidated reports whether the connection will be destroyed on release.
func (c *PooledConnection) Invalidated() bool {
	return c.invalidated
}

// LastAccessTime returns the time of the last borrow.
func (c *PooledConnection) LastAccessTime() time.Time {
	return c.lastAccessTime
}

func (c *PooledConnection) checkBroken(err error) {
	if err != nil && driver.IsBroken(err) {
		c.invalidated = true
	}
}

// closeRaw tears down the raw connection. Never called with the pool lock
// held.
func (c *PooledConnection) closeRaw() {
	if err := c.raw.Close(); err != nil {
		log.Warnf("cannot close raw connection on %v: %v", c.ds, err)
	}
}

func (c *PooledConnection) String() string {
	if c.tx != nil {
		return fmt.Sprintf("PooledConnection{%s in %v}", c.ds.name, c.tx)
	}
	return fmt.Sprintf("PooledConnection{%s}", c.ds.name)
}
