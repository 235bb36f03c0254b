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

import "errors"

var (
	// ErrPoolClosed - borrow attempted after Close.
	ErrPoolClosed = errors.New("datasource is closed")

	// ErrBorrowTimeout - no connection became free within the borrow timeout.
	ErrBorrowTimeout = errors.New("datasource timed out waiting for a free connection")

	// ErrInterrupted - the borrower's context was canceled while waiting.
	ErrInterrupted = errors.New("interrupted while waiting for a free connection")

	// ErrPinned - auto-commit change attempted on a connection enlisted in a
	// transaction.
	ErrPinned = errors.New("connection is enlisted in a transaction")
)
