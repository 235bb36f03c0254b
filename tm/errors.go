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

import "errors"

var (
	// ErrNotSupported - begin on a context that already carries a transaction.
	ErrNotSupported = errors.New("nested transactions are not allowed")

	// ErrNoTransaction - completion requested on a context without a transaction.
	ErrNoTransaction = errors.New("no transaction associated with the context")

	// ErrAlreadyAssociated - resume on a context that already carries a transaction.
	ErrAlreadyAssociated = errors.New("a transaction is already associated with the context")

	// ErrForeignTransaction - resume with a transaction not owned by this manager.
	ErrForeignTransaction = errors.New("foreign transaction")

	// ErrNegativeTimeout - timeout override below zero.
	ErrNegativeTimeout = errors.New("negative transaction timeout")

	// ErrNotActive - operation requires an active transaction.
	ErrNotActive = errors.New("transaction is not active")

	// ErrAlreadyCommitted - rollback of a committed transaction.
	ErrAlreadyCommitted = errors.New("transaction is already committed")

	// ErrTimedOut - commit or enlist past the transaction deadline. The
	// transaction is rolled back before commit surfaces this.
	ErrTimedOut = errors.New("transaction timed out")

	// ErrMarkedRollback - commit or enlist on a transaction marked rollback-only.
	ErrMarkedRollback = errors.New("transaction is marked for rollback")

	// ErrResourceFailure - a resource failed during enlist or completion.
	ErrResourceFailure = errors.New("resource failure")
)

// SystemError wraps a resource-level failure so callers can match the
// ErrResourceFailure kind with errors.Is while still unwrapping the cause.
type SystemError struct {
	cause error
}

func (e *SystemError) Error() string {
	return ErrResourceFailure.Error() + ": " + e.cause.Error()
}

func (e *SystemError) Unwrap() error { return e.cause }

func (e *SystemError) Is(target error) bool { return target == ErrResourceFailure }

func systemError(err error) error {
	if err == nil {
		return nil
	}
	return &SystemError{cause: err}
}
