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
	"sync"

	"github.com/pingcap/errors"
)

// The process registry of named datasources. It backs lookups by embedders
// and the admin readout surface.
var registry sync.Map

func register(ds *DataSource) error {
	if ds.name == "" {
		return errors.New("datasource name can not be empty")
	}
	if _, dup := registry.LoadOrStore(ds.name, ds); dup {
		return errors.Errorf("datasource named '%s' already exists", ds.name)
	}
	return nil
}

func unregister(name string) {
	registry.Delete(name)
}

// Get returns the datasource registered under name.
func Get(name string) (*DataSource, bool) {
	v, ok := registry.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*DataSource), true
}

// Each calls f for every registered datasource until f returns false.
func Each(f func(ds *DataSource) bool) {
	registry.Range(func(_, v interface{}) bool {
		return f(v.(*DataSource))
	})
}
