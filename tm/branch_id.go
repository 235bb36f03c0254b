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
	"encoding/binary"
	"fmt"
)

// FormatID tags every branch identifier emitted by this coordinator. "Odkl"
const FormatID int32 = 0x4f646b6c

// BranchID identifies one resource's participation in a global transaction.
// Identity is the (global id, branch number) pair; the branch status is
// mutable and not part of identity.
type BranchID struct {
	globalID uint64
	branch   uint32
	status   Status
}

func newBranchID(globalID uint64, branch uint32) *BranchID {
	return &BranchID{
		globalID: globalID,
		branch:   branch,
		status:   Active,
	}
}

// FormatID returns the fixed format tag of the serialized form.
func (b *BranchID) FormatID() int32 {
	return FormatID
}

// GlobalTransactionID returns the 8-byte big-endian serialization of the
// global transaction id.
func (b *BranchID) GlobalTransactionID() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, b.globalID)
	return buf
}

// BranchQualifier returns the 4-byte big-endian serialization of the branch
// number.
func (b *BranchID) BranchQualifier() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, b.branch)
	return buf
}

// GlobalID returns the numeric global transaction id.
func (b *BranchID) GlobalID() uint64 {
	return b.globalID
}

// Branch returns the branch number within the transaction.
func (b *BranchID) Branch() uint32 {
	return b.branch
}

// Status returns the branch status.
func (b *BranchID) Status() Status {
	return b.status
}

// Equal compares on the numeric identity pair only.
func (b *BranchID) Equal(other *BranchID) bool {
	if other == nil {
		return false
	}
	return b.globalID == other.globalID && b.branch == other.branch
}

func (b *BranchID) String() string {
	return fmt.Sprintf("BranchID{%d:%d}", b.globalID, b.branch)
}
