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

	"github.com/endink/go-datasource/tm"
)

// connectionResource adapts a PooledConnection to the coordinator's resource
// contract. Start and End are no-ops: presence in the transaction's resource
// map is the binding. On successful commit or any rollback the adapter hands
// the connection back to the pool.
type connectionResource struct {
	conn *PooledConnection
}

func (r *connectionResource) Start(branch *tm.BranchID, flag tm.Flag) error {
	return nil
}

func (r *connectionResource) End(branch *tm.BranchID, flag tm.Flag) error {
	return nil
}

func (r *connectionResource) Commit(branch *tm.BranchID, onePhase bool) error {
	if err := r.conn.raw.Commit(context.TODO()); err != nil {
		r.conn.checkBroken(err)
		return err
	}
	r.conn.ds.unregisterFromTransaction(r.conn, TxCommit)
	return nil
}

func (r *connectionResource) Rollback(branch *tm.BranchID) error {
	err := r.conn.raw.Rollback(context.TODO())
	if err != nil {
		r.conn.checkBroken(err)
	}
	r.conn.ds.unregisterFromTransaction(r.conn, TxRollback)
	return err
}

// Prepare votes read-only: there is no durable prepare record, commit always
// runs one-phase.
func (r *connectionResource) Prepare(branch *tm.BranchID) (tm.Vote, error) {
	return tm.VoteReadOnly, nil
}

func (r *connectionResource) IsSameRM(other tm.Resource) bool {
	o, ok := other.(*connectionResource)
	return ok && o.conn == r.conn
}

func (r *connectionResource) Forget(branch *tm.BranchID) error {
	return nil
}

func (r *connectionResource) String() string {
	return fmt.Sprintf("connectionResource{%v}", r.conn)
}
