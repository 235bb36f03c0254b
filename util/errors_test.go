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

package util

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, "nothing"))

	root := errors.New("root cause")
	err := Wrap(root, "context")
	assert.Equal(t, "context: root cause", err.Error())
	assert.Equal(t, root, Cause(err))
	assert.True(t, errors.Is(err, root))
}

func TestWrapf(t *testing.T) {
	assert.Nil(t, Wrapf(nil, "nothing %d", 1))

	root := errors.New("root cause")
	err := Wrapf(root, "attempt %d", 3)
	assert.Equal(t, "attempt 3: root cause", err.Error())
}

func TestRootCause(t *testing.T) {
	root := errors.New("root cause")
	err := Wrap(Wrap(root, "inner"), "outer")
	assert.Equal(t, root, RootCause(err))
	assert.Equal(t, root, RootCause(root))
	assert.Nil(t, RootCause(nil))
}
