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

// Package tm coordinates transactions over enlisted resources. The
// association between a transaction and its owner travels in the
// context.Context: Begin binds a transaction into a derived context, and the
// completion calls clear the binding on every exit path.
package tm

import (
	"context"
	"time"

	"github.com/endink/go-datasource/logging"
	"github.com/endink/go-datasource/util/sync2"
)

var log = logging.GetLogger("tm")

// DefaultTimeout applies when no per-context override is set.
const DefaultTimeout = 3600 * time.Second

// Manager is the transaction coordinator. The zero value is ready for use;
// most callers share DefaultManager.
type Manager struct {
	ids sync2.AtomicInt64
}

// DefaultManager is the process-wide coordinator instance.
var DefaultManager = &Manager{}

type contextKey struct{}

var slotKey contextKey

// slot is the mutable per-context binding. Mutability lets commit and
// rollback clear the association without deriving a new context, mirroring
// a thread-local with explicit remove.
type slot struct {
	tx      *Transaction
	timeout time.Duration
}

func slotFrom(ctx context.Context) *slot {
	if s, ok := ctx.Value(slotKey).(*slot); ok {
		return s
	}
	return nil
}

func (m *Manager) withSlot(ctx context.Context) (context.Context, *slot) {
	s := slotFrom(ctx)
	if s == nil {
		s = &slot{}
		ctx = context.WithValue(ctx, slotKey, s)
	}
	return ctx, s
}

// Begin creates a new transaction and binds it into the returned context.
// Nested transactions are rejected.
func (m *Manager) Begin(ctx context.Context) (context.Context, error) {
	ctx, s := m.withSlot(ctx)
	if s.tx != nil {
		return ctx, ErrNotSupported
	}
	timeout := s.timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	s.tx = newTransaction(m, timeout)
	return ctx, nil
}

// Current returns the transaction bound to the context, or nil.
func (m *Manager) Current(ctx context.Context) *Transaction {
	if s := slotFrom(ctx); s != nil {
		return s.tx
	}
	return nil
}

// Status returns the bound transaction's status, or NoTransaction.
func (m *Manager) Status(ctx context.Context) Status {
	tx := m.Current(ctx)
	if tx == nil {
		return NoTransaction
	}
	return tx.Status()
}

// Commit completes the bound transaction. The binding is cleared whether or
// not the commit succeeds.
func (m *Manager) Commit(ctx context.Context) error {
	s := slotFrom(ctx)
	if s == nil || s.tx == nil {
		return ErrNoTransaction
	}
	defer func() { s.tx = nil }()
	return s.tx.Commit()
}

// Rollback rolls back the bound transaction. The binding is cleared whether
// or not the rollback succeeds.
func (m *Manager) Rollback(ctx context.Context) error {
	s := slotFrom(ctx)
	if s == nil || s.tx == nil {
		return ErrNoTransaction
	}
	defer func() { s.tx = nil }()
	return s.tx.Rollback()
}

// SetRollbackOnly marks the bound transaction rollback-only.
func (m *Manager) SetRollbackOnly(ctx context.Context) error {
	tx := m.Current(ctx)
	if tx == nil {
		return ErrNoTransaction
	}
	return tx.SetRollbackOnly()
}

// WithTimeout stores a timeout override for transactions begun from the
// returned context. Zero restores the default; negative values are rejected.
func (m *Manager) WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, error) {
	if timeout < 0 {
		return ctx, ErrNegativeTimeout
	}
	ctx, s := m.withSlot(ctx)
	s.timeout = timeout
	return ctx, nil
}

// Suspend detaches and returns the bound transaction, or nil when the
// context carries none. A suspended transaction must not be mutated until it
// is resumed. A timed-out transaction is returned as is; the deadline keeps
// running while suspended.
func (m *Manager) Suspend(ctx context.Context) *Transaction {
	s := slotFrom(ctx)
	if s == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx
}

// Resume binds a previously suspended transaction into the context. Only
// transactions created by this manager are accepted.
func (m *Manager) Resume(ctx context.Context, tx *Transaction) (context.Context, error) {
	if tx == nil || tx.manager != m {
		return ctx, ErrForeignTransaction
	}
	ctx, s := m.withSlot(ctx)
	if s.tx != nil {
		return ctx, ErrAlreadyAssociated
	}
	s.tx = tx
	return ctx, nil
}
