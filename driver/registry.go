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

package driver

import (
	"fmt"
	"sync"
)

var drivers sync.Map

// Register makes a driver available under the given name. Drivers usually
// call it from an init function. Registering twice under the same name
// panics.
func Register(name string, d Driver) {
	if d == nil {
		panic("driver: Register driver is nil")
	}
	if _, dup := drivers.LoadOrStore(name, d); dup {
		panic(fmt.Sprintf("driver: Register called twice for driver %s", name))
	}
}

// Get returns the driver registered under name.
func Get(name string) (Driver, error) {
	v, ok := drivers.Load(name)
	if !ok {
		return nil, fmt.Errorf("driver named '%s' was not found", name)
	}
	return v.(Driver), nil
}

// Names returns the names of all registered drivers.
func Names() []string {
	var names []string
	drivers.Range(func(k, _ interface{}) bool {
		names = append(names, k.(string))
		return true
	})
	return names
}
