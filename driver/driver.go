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

// Package driver defines the contract between the datasource pool and the
// database drivers that open raw connections for it.
package driver

import (
	"context"
	"errors"
)

// ErrBroken marks a connection-level failure the driver considers
// non-recoverable. A pooled connection observing it is destroyed on release
// instead of being reused.
var ErrBroken = errors.New("connection is broken")

// IsBroken reports whether err carries ErrBroken.
func IsBroken(err error) bool {
	return errors.Is(err, ErrBroken)
}

// Conn is a single raw connection to the database. Implementations are not
// required to be safe for concurrent use; the pool guarantees single-owner
// access.
type Conn interface {
	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string) (int64, error)

	// Query runs a query and returns its result rows.
	Query(ctx context.Context, query string) (Rows, error)

	// Commit commits the transaction open on this connection.
	Commit(ctx context.Context) error

	// Rollback rolls back the transaction open on this connection.
	Rollback(ctx context.Context) error

	// SetAutoCommit switches the connection's auto-commit mode.
	SetAutoCommit(ctx context.Context, on bool) error

	// Close tears down the network connection.
	Close() error
}

// Rows is a forward-only result cursor.
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Close() error
}

// Driver opens raw connections from a URL and a property bag carrying
// user/password.
type Driver interface {
	Connect(ctx context.Context, url string, props map[string]string) (Conn, error)
}
