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

package tm

import (
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Transaction is the unit of work the manager coordinates. It is confined to
// the goroutine currently bound to it: after Suspend and before the next
// Resume no mutation is permitted.
type Transaction struct {
	manager   *Manager
	globalID  uint64
	startTime time.Time
	timeout   time.Duration
	status    Status
	branches  uint32
	resources map[Resource]*BranchID
	// enlisted keeps enlistment order; completion walks it so the outcome of
	// a multi-resource transaction does not depend on map iteration.
	enlisted []Resource
	syncs    []Synchronization
}

func newTransaction(m *Manager, timeout time.Duration) *Transaction {
	tx := &Transaction{
		manager:   m,
		globalID:  uint64(m.ids.Add(1)),
		startTime: time.Now(),
		timeout:   timeout,
		status:    Active,
		resources: make(map[Resource]*BranchID),
	}
	log.Debugf("begin: %v", tx)
	return tx
}

// GlobalID returns the process-wide transaction id.
func (tx *Transaction) GlobalID() uint64 {
	return tx.globalID
}

// Status returns the current lifecycle status.
func (tx *Transaction) Status() Status {
	return tx.status
}

func (tx *Transaction) String() string {
	return fmt.Sprintf("Transaction{id=%d,start=%d,status=%v}", tx.globalID, tx.startTime.UnixNano()/int64(time.Millisecond), tx.status)
}

func (tx *Transaction) timedOut() bool {
	return time.Since(tx.startTime) > tx.timeout
}

// Commit completes the transaction. A timed-out or rollback-only transaction
// is rolled back first and the corresponding kind error is returned.
func (tx *Transaction) Commit() error {
	switch tx.status {
	case Active:
		if tx.timedOut() {
			if err := tx.doRollback(); err != nil {
				log.Errorf("rollback of timed out transaction %d failed: %v", tx.globalID, err)
			}
			return ErrTimedOut
		}
		return tx.doCommit()
	case MarkedRollback:
		if err := tx.doRollback(); err != nil {
			log.Errorf("rollback of marked transaction %d failed: %v", tx.globalID, err)
		}
		return ErrMarkedRollback
	default:
		return fmt.Errorf("%w: status is %v", ErrNotActive, tx.status)
	}
}

// Rollback discards the transaction's work. It is idempotent on a transaction
// that already rolled back.
func (tx *Transaction) Rollback() error {
	if tx.status == Committed {
		return ErrAlreadyCommitted
	}
	return tx.doRollback()
}

// SetRollbackOnly marks the transaction so that the only possible outcome is
// a rollback. Marking twice is a no-op.
func (tx *Transaction) SetRollbackOnly() error {
	switch tx.status {
	case Active, MarkedRollback:
		tx.status = MarkedRollback
		return nil
	default:
		return fmt.Errorf("%w: status is %v", ErrNotActive, tx.status)
	}
}

// EnlistResource binds a resource to this transaction under a fresh branch.
// It returns false without side effects when the resource is already
// enlisted. Branch numbers are unique within the transaction but not
// necessarily contiguous: a failed resource start burns its number.
func (tx *Transaction) EnlistResource(res Resource) (bool, error) {
	log.Debugf("enlist: %v onto %v", res, tx)

	switch tx.status {
	case Active:
		if tx.timedOut() {
			return false, ErrTimedOut
		}
		if _, ok := tx.resources[res]; ok {
			return false, nil
		}
		tx.branches++
		branch := newBranchID(tx.globalID, tx.branches)
		if err := res.Start(branch, TMNoFlags); err != nil {
			return false, systemError(err)
		}
		tx.resources[res] = branch
		tx.enlisted = append(tx.enlisted, res)
		return true, nil
	case MarkedRollback:
		return false, ErrMarkedRollback
	default:
		return false, fmt.Errorf("%w: status is %v", ErrNotActive, tx.status)
	}
}

// DelistResource removes the resource from the transaction and ends its
// branch with the given flag. It returns whether a binding was removed.
func (tx *Transaction) DelistResource(res Resource, flag Flag) (bool, error) {
	log.Debugf("delist: %v from %v", res, tx)

	switch tx.status {
	case Active, MarkedRollback:
		branch, ok := tx.resources[res]
		if !ok {
			return false, nil
		}
		delete(tx.resources, res)
		tx.releaseResource(res, branch, flag)
		return true, nil
	default:
		return false, fmt.Errorf("%w: status is %v", ErrNotActive, tx.status)
	}
}

// RegisterSynchronization appends a completion callback. Callbacks fire in
// registration order.
func (tx *Transaction) RegisterSynchronization(sync Synchronization) error {
	switch tx.status {
	case Active:
		tx.syncs = append(tx.syncs, sync)
		return nil
	case MarkedRollback:
		return ErrMarkedRollback
	default:
		return fmt.Errorf("%w: status is %v", ErrNotActive, tx.status)
	}
}

func (tx *Transaction) doCommit() error {
	log.Debugf("commit: %v", tx)

	tx.beforeCompletion()
	tx.status = Committing

	for _, res := range tx.enlisted {
		branch, ok := tx.resources[res]
		if !ok || branch.status != Active {
			continue
		}
		if err := res.Commit(branch, true); err != nil {
			// One-phase commit is best effort across multiple resources:
			// branches committed so far stay committed, the remaining active
			// ones are rolled back.
			if rbErr := tx.doRollback(); rbErr != nil {
				log.Errorf("rollback after failed commit of transaction %d: %v", tx.globalID, rbErr)
			}
			return systemError(err)
		}
		tx.releaseResource(res, branch, TMSuccess)
		branch.status = Committed
	}

	tx.status = Committed
	tx.afterCompletion()
	return nil
}

func (tx *Transaction) doRollback() error {
	log.Debugf("rollback: %v", tx)

	var resErr error
	tx.status = RollingBack

	for _, res := range tx.enlisted {
		branch, ok := tx.resources[res]
		if !ok || branch.status != Active {
			continue
		}
		if err := res.Rollback(branch); err != nil {
			resErr = multierr.Append(resErr, err)
		}
		tx.releaseResource(res, branch, TMFail)
		branch.status = RolledBack
	}

	tx.status = RolledBack
	tx.afterCompletion()

	return systemError(resErr)
}

func (tx *Transaction) beforeCompletion() {
	for _, s := range tx.syncs {
		s.BeforeCompletion()
	}
}

func (tx *Transaction) afterCompletion() {
	for _, s := range tx.syncs {
		s.AfterCompletion(tx.status)
	}
}

func (tx *Transaction) releaseResource(res Resource, branch *BranchID, flag Flag) {
	if err := res.End(branch, flag); err != nil {
		log.Warnf("cannot release %v due to %v", res, err)
	}
}
