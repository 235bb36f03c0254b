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

// ReleaseReason as type int
type ReleaseReason int

const (
	// ConnRelease - connection returned by its borrower.
	ConnRelease ReleaseReason = iota

	// ConnClose - connection released on datasource shutdown.
	ConnClose

	// ConnIdleExpired - connection removed by the idle sweep.
	ConnIdleExpired

	// ConnInvalidated - connection marked broken and destroyed on release.
	ConnInvalidated

	// TxCommit - connection released on commit.
	TxCommit

	// TxRollback - connection released on rollback.
	TxRollback

	// ConnInitFail - connection released after a failed enlistment.
	ConnInitFail
)

func (r ReleaseReason) String() string {
	return releaseResolutions[r]
}

// Name return the name of enum.
func (r ReleaseReason) Name() string {
	return releaseNames[r]
}

var releaseResolutions = map[ReleaseReason]string{
	ConnRelease:     "released by borrower",
	ConnClose:       "datasource closed",
	ConnIdleExpired: "idle lifetime expired",
	ConnInvalidated: "connection invalidated",
	TxCommit:        "transaction committed",
	TxRollback:      "transaction rolled back",
	ConnInitFail:    "enlistment failed",
}

var releaseNames = map[ReleaseReason]string{
	ConnRelease:     "release",
	ConnClose:       "close",
	ConnIdleExpired: "idleExpired",
	ConnInvalidated: "invalidated",
	TxCommit:        "commit",
	TxRollback:      "rollback",
	ConnInitFail:    "initFail",
}
