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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/endink/go-datasource/driver"
	"github.com/endink/go-datasource/driver/memdb"
	"github.com/endink/go-datasource/tm"
)

var ctx = context.Background()

func setup(t *testing.T, mutate func(cfg *Config)) (*memdb.DB, *DataSource) {
	db := memdb.New(strings.ReplaceAll(t.Name(), "/", "_"))
	cfg := &Config{
		Driver:        "memdb",
		URL:           db.URL(),
		KeepAlive:     DefaultKeepAlive,
		BorrowTimeout: DefaultBorrowTimeout,
		LockTimeout:   DefaultLockTimeout,
		PoolSize:      DefaultPoolSize,
	}
	if mutate != nil {
		mutate(cfg)
	}
	ds, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ds.Close()
		db.Close()
	})
	return db, ds
}

func TestBorrowAndRelease(t *testing.T) {
	db, ds := setup(t, nil)

	conn, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ds.OpenConnections())
	assert.Equal(t, 0, ds.IdleConnections())

	_, err = conn.Exec(ctx, "select 1")
	require.NoError(t, err)

	require.NoError(t, conn.Close())
	assert.Equal(t, 1, ds.OpenConnections())
	assert.Equal(t, 1, ds.IdleConnections())
	assert.Equal(t, "select 1", db.QueryLog())
}

func TestLIFOReuse(t *testing.T) {
	_, ds := setup(t, nil)

	conn, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	again, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	assert.Same(t, conn, again)
	assert.Equal(t, 1, ds.OpenConnections())
}

func TestDistinctBorrowersGetDistinctConnections(t *testing.T) {
	_, ds := setup(t, nil)

	c1, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	c2, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	assert.True(t, c1 != c2)
	assert.Equal(t, 2, ds.OpenConnections())
}

func TestTransactionReuse(t *testing.T) {
	db, ds := setup(t, func(cfg *Config) { cfg.PoolSize = 2 })

	txCtx, err := tm.DefaultManager.Begin(ctx)
	require.NoError(t, err)

	c1, err := ds.GetConnection(txCtx)
	require.NoError(t, err)
	c2, err := ds.GetConnection(txCtx)
	require.NoError(t, err)

	assert.Same(t, c1, c2)
	assert.Equal(t, 1, ds.Transactions())
	assert.Equal(t, 1, ds.OpenConnections())

	require.NoError(t, tm.DefaultManager.Commit(txCtx))

	assert.Equal(t, 0, ds.Transactions())
	assert.Equal(t, 1, ds.IdleConnections())
	assert.Equal(t, "set autocommit=0;commit;set autocommit=1", db.QueryLog())
}

func TestTransactionRollbackReleases(t *testing.T) {
	db, ds := setup(t, nil)

	txCtx, err := tm.DefaultManager.Begin(ctx)
	require.NoError(t, err)

	_, err = ds.GetConnection(txCtx)
	require.NoError(t, err)

	require.NoError(t, tm.DefaultManager.Rollback(txCtx))

	assert.Equal(t, 0, ds.Transactions())
	assert.Equal(t, 1, ds.IdleConnections())
	assert.Equal(t, "set autocommit=0;rollback;set autocommit=1", db.QueryLog())
}

func TestTransactionTimeoutRollsBack(t *testing.T) {
	db, ds := setup(t, nil)

	txCtx, err := tm.DefaultManager.WithTimeout(ctx, 30*time.Millisecond)
	require.NoError(t, err)
	txCtx, err = tm.DefaultManager.Begin(txCtx)
	require.NoError(t, err)

	_, err = ds.GetConnection(txCtx)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	err = tm.DefaultManager.Commit(txCtx)
	assert.True(t, errors.Is(err, tm.ErrTimedOut))

	assert.Equal(t, 0, ds.Transactions())
	assert.Equal(t, 1, ds.IdleConnections())
	assert.Equal(t, "set autocommit=0;rollback;set autocommit=1", db.QueryLog())
}

func TestCommitFailureCascades(t *testing.T) {
	db, ds := setup(t, nil)
	db.FailCommit(errors.New("commit refused"))

	txCtx, err := tm.DefaultManager.Begin(ctx)
	require.NoError(t, err)

	_, err = ds.GetConnection(txCtx)
	require.NoError(t, err)

	err = tm.DefaultManager.Commit(txCtx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, tm.ErrResourceFailure))

	// the failed commit was followed by a rollback, and the connection is
	// back in the idle set with auto-commit restored
	assert.Equal(t, "set autocommit=0;commit;rollback;set autocommit=1", db.QueryLog())
	assert.Equal(t, 0, ds.Transactions())
	assert.Equal(t, 1, ds.IdleConnections())
}

func TestEnlistFailureReleasesConnection(t *testing.T) {
	_, ds := setup(t, nil)

	txCtx, err := tm.DefaultManager.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tm.DefaultManager.SetRollbackOnly(txCtx))

	_, err = ds.GetConnection(txCtx)
	assert.True(t, errors.Is(err, tm.ErrMarkedRollback))

	assert.Equal(t, 0, ds.Transactions())
	assert.Equal(t, 1, ds.IdleConnections())
	assert.Equal(t, 1, ds.OpenConnections())

	require.NoError(t, tm.DefaultManager.Rollback(txCtx))
}

func TestAutoCommitBlockedWhileEnlisted(t *testing.T) {
	_, ds := setup(t, nil)

	txCtx, err := tm.DefaultManager.Begin(ctx)
	require.NoError(t, err)

	conn, err := ds.GetConnection(txCtx)
	require.NoError(t, err)

	err = conn.SetAutoCommit(txCtx, true)
	assert.True(t, errors.Is(err, ErrPinned))

	require.NoError(t, tm.DefaultManager.Rollback(txCtx))
}

func TestCloseWhilePinnedIsDeferred(t *testing.T) {
	_, ds := setup(t, nil)

	txCtx, err := tm.DefaultManager.Begin(ctx)
	require.NoError(t, err)

	conn, err := ds.GetConnection(txCtx)
	require.NoError(t, err)

	// close inside the transaction does not give the connection back
	require.NoError(t, conn.Close())
	assert.Equal(t, 0, ds.IdleConnections())
	assert.Equal(t, 1, ds.Transactions())

	require.NoError(t, tm.DefaultManager.Commit(txCtx))
	assert.Equal(t, 1, ds.IdleConnections())
}

func TestBorrowTimeout(t *testing.T) {
	_, ds := setup(t, func(cfg *Config) {
		cfg.PoolSize = 1
		cfg.BorrowTimeout = 100 * time.Millisecond
	})

	held, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	defer held.Close()

	start := time.Now()
	_, err = ds.GetConnection(ctx)
	elapsed := time.Since(start)

	assert.True(t, errors.Is(err, ErrBorrowTimeout))
	assert.True(t, elapsed >= 90*time.Millisecond, "returned after %v", elapsed)
	assert.True(t, elapsed < time.Second, "returned after %v", elapsed)
	assert.Equal(t, 1, ds.OpenConnections())
}

func TestReleaseWakesWaiter(t *testing.T) {
	_, ds := setup(t, func(cfg *Config) {
		cfg.PoolSize = 1
		cfg.BorrowTimeout = 2 * time.Second
	})

	held, err := ds.GetConnection(ctx)
	require.NoError(t, err)

	got := make(chan error, 1)
	go func() {
		conn, err := ds.GetConnection(ctx)
		if conn != nil {
			defer conn.Close()
		}
		got <- err
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, held.Close())

	select {
	case err := <-got:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by the release")
	}
	assert.Equal(t, 1, ds.OpenConnections())
}

func TestCloseWakesWaiters(t *testing.T) {
	db, ds := setup(t, func(cfg *Config) {
		cfg.PoolSize = 1
		cfg.BorrowTimeout = 2 * time.Second
	})

	held, err := ds.GetConnection(ctx)
	require.NoError(t, err)

	got := make(chan error, 1)
	go func() {
		_, err := ds.GetConnection(ctx)
		got <- err
	}()

	time.Sleep(50 * time.Millisecond)
	ds.Close()

	select {
	case err := <-got:
		assert.True(t, errors.Is(err, ErrPoolClosed))
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by the shutdown")
	}

	// the held connection is destroyed once it comes back
	require.NoError(t, held.Close())
	assert.Equal(t, 1, db.ClosedConnections())
}

func TestInterruptedBorrow(t *testing.T) {
	_, ds := setup(t, func(cfg *Config) {
		cfg.PoolSize = 1
		cfg.BorrowTimeout = 2 * time.Second
	})

	held, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	defer held.Close()

	waitCtx, cancel := context.WithCancel(ctx)
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = ds.GetConnection(waitCtx)
	assert.True(t, errors.Is(err, ErrInterrupted))
	assert.Equal(t, 1, ds.OpenConnections())
}

func TestBorrowAfterClose(t *testing.T) {
	_, ds := setup(t, nil)
	ds.Close()

	_, err := ds.GetConnection(ctx)
	assert.True(t, errors.Is(err, ErrPoolClosed))

	// closing twice is harmless
	ds.Close()
}

func TestIdleEviction(t *testing.T) {
	db, ds := setup(t, func(cfg *Config) {
		cfg.PoolSize = 3
		cfg.KeepAlive = 200 * time.Millisecond
	})

	c1, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	c2, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	c3, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	require.NoError(t, c1.Close())
	require.NoError(t, c2.Close())
	require.NoError(t, c3.Close())

	assert.Equal(t, 3, ds.OpenConnections())

	time.Sleep(300 * time.Millisecond)

	fresh, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	defer fresh.Close()

	assert.Equal(t, 3, db.ClosedConnections())
	assert.Equal(t, 4, db.OpenedConnections())
	assert.Equal(t, 1, ds.OpenConnections())
	assert.Equal(t, 0, ds.IdleConnections())
}

func TestInvalidatedConnectionDestroyedOnRelease(t *testing.T) {
	db, ds := setup(t, nil)
	db.FailExec("select broken", driver.ErrBroken)

	conn, err := ds.GetConnection(ctx)
	require.NoError(t, err)

	_, err = conn.Exec(ctx, "select broken")
	require.Error(t, err)
	assert.True(t, conn.Invalidated())

	require.NoError(t, conn.Close())
	assert.Equal(t, 0, ds.OpenConnections())
	assert.Equal(t, 0, ds.IdleConnections())
	assert.Equal(t, 1, db.ClosedConnections())
}

func TestConnectFailureRelinquishesCapacity(t *testing.T) {
	db, ds := setup(t, func(cfg *Config) { cfg.PoolSize = 1 })
	db.RejectConnect(errors.New("connection refused"))

	_, err := ds.GetConnection(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, ds.OpenConnections())

	db.RejectConnect(nil)
	conn, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, 1, ds.OpenConnections())
}

func TestLockTimeoutSessionCommand(t *testing.T) {
	db, ds := setup(t, func(cfg *Config) { cfg.LockTimeout = 5 })

	conn, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "SET LOCK_TIMEOUT 5", db.QueryLog())
}

func TestLockTimeoutFailureIsSwallowed(t *testing.T) {
	db, ds := setup(t, func(cfg *Config) { cfg.LockTimeout = 5 })
	db.FailExec("SET LOCK_TIMEOUT 5", errors.New("unsupported"))

	conn, err := ds.GetConnection(ctx)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(ctx, "select 1")
	require.NoError(t, err)
}

func TestPinnedConnectionSurvivesShutdown(t *testing.T) {
	db, ds := setup(t, nil)

	txCtx, err := tm.DefaultManager.Begin(ctx)
	require.NoError(t, err)

	_, err = ds.GetConnection(txCtx)
	require.NoError(t, err)

	ds.Close()
	assert.Equal(t, 0, db.ClosedConnections())

	// completion releases the pinned connection, which is then destroyed
	// because the pool is closed
	require.NoError(t, tm.DefaultManager.Commit(txCtx))
	assert.Equal(t, 1, db.ClosedConnections())
	assert.Equal(t, 0, ds.Transactions())
}

func TestReadouts(t *testing.T) {
	_, ds := setup(t, func(cfg *Config) {
		cfg.PoolSize = 7
		cfg.BorrowTimeout = 4 * time.Second
		cfg.LockTimeout = 9
	})

	assert.Equal(t, 7, ds.MaxConnections())
	assert.Equal(t, 4*time.Second, ds.BorrowTimeout())
	assert.Equal(t, 9, ds.LockTimeout())
	assert.Contains(t, ds.URL(), "memdb://")

	ds.SetBorrowTimeout(time.Second)
	assert.Equal(t, time.Second, ds.BorrowTimeout())
}
