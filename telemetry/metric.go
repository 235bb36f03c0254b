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

package telemetry

import (
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
)

var meterMap = make(map[string]*NamedMeter)
var meterMutex sync.Mutex

// GetMeter returns the process-wide meter for the given instrumentation name,
// creating it on first use.
func GetMeter(instrumentationName string) *NamedMeter {
	meterMutex.Lock()
	defer meterMutex.Unlock()
	if m, ok := meterMap[instrumentationName]; ok {
		return m
	}
	nm := &NamedMeter{
		meter:     otel.Meter(instrumentationName),
		recorders: make(map[string]interface{}),
	}
	meterMap[instrumentationName] = nm
	return nm
}

// BuildMetricName joins the segments into a dotted snake_case metric name.
func BuildMetricName(statement ...string) string {
	if len(statement) == 0 {
		panic("name for 'BuildMetricName' can not be nil or empty")
	}

	parts := make([]string, 0, len(statement))
	for _, s := range statement {
		sb := &strings.Builder{}
		var prevUpper = true
		for _, current := range s {
			u := 'A' <= current && current <= 'Z'
			if u {
				if !prevUpper {
					sb.WriteByte('_')
				}
				sb.WriteRune(current - 'A' + 'a')
				prevUpper = true
			} else {
				sb.WriteRune(current)
				prevUpper = false
			}
		}
		parts = append(parts, sb.String())
	}
	return strings.Join(parts, ".")
}
