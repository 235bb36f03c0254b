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

// Flag qualifies Start and End calls on a resource.
type Flag int

const (
	// TMNoFlags marks the start of a brand new branch.
	TMNoFlags Flag = iota

	// TMSuccess marks a branch that completed its work.
	TMSuccess

	// TMFail marks a branch whose work is being discarded.
	TMFail
)

var flagNames = map[Flag]string{
	TMNoFlags: "TMNOFLAGS",
	TMSuccess: "TMSUCCESS",
	TMFail:    "TMFAIL",
}

func (f Flag) String() string {
	if n, ok := flagNames[f]; ok {
		return n
	}
	return "UNKNOWN"
}

// Vote is a resource's answer to Prepare.
type Vote int

const (
	VoteOK Vote = iota
	VoteReadOnly
)

// Resource is the two-phase-commit participant contract the transaction
// drives. The coordinator uses the one-phase convention: Prepare is skipped
// and Commit is called with onePhase set.
type Resource interface {
	// Start associates the resource with a branch of a transaction.
	Start(branch *BranchID, flag Flag) error

	// End dissociates the resource from the branch.
	End(branch *BranchID, flag Flag) error

	// Commit makes the branch's work durable.
	Commit(branch *BranchID, onePhase bool) error

	// Rollback discards the branch's work.
	Rollback(branch *BranchID) error

	// Prepare votes on the outcome of the branch.
	Prepare(branch *BranchID) (Vote, error)

	// IsSameRM reports whether other manages the same underlying resource.
	IsSameRM(other Resource) bool

	// Forget discards knowledge of a heuristically completed branch.
	Forget(branch *BranchID) error
}

// Synchronization receives callbacks around transaction completion.
// BeforeCompletion runs before the outcome is decided, AfterCompletion runs
// after the transaction reached its terminal status.
type Synchronization interface {
	BeforeCompletion()
	AfterCompletion(status Status)
}
