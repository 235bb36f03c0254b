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
	"github.com/endink/go-datasource/telemetry"
	"go.opentelemetry.io/otel/metric"
)

var DsMeter = telemetry.GetMeter("datasource")

type Stats struct {
	IdleClosed     metric.Int64Counter
	BorrowTimeouts metric.Int64Counter
	OpenErrors     metric.Int64Counter
}

var DsStats = &Stats{
	IdleClosed:     DsMeter.NewInt64Counter("idle_closed", "Idle connections closed by the sweep"),
	BorrowTimeouts: DsMeter.NewInt64Counter("borrow_timeout_count", "Borrow attempts that timed out"),
	OpenErrors:     DsMeter.NewInt64Counter("open_error_count", "Raw connect failures"),
}

// registerMetrics publishes the readouts of a named datasource.
func (ds *DataSource) registerMetrics() {
	DsMeter.NewInt64SumObserver(telemetry.BuildMetricName(ds.name, "OpenConnections"), "Datasource open connections", func() int64 {
		return int64(ds.OpenConnections())
	})
	DsMeter.NewInt64SumObserver(telemetry.BuildMetricName(ds.name, "IdleConnections"), "Datasource idle connections", func() int64 {
		return int64(ds.IdleConnections())
	})
	DsMeter.NewInt64SumObserver(telemetry.BuildMetricName(ds.name, "Transactions"), "Datasource active transactions", func() int64 {
		return int64(ds.Transactions())
	})
	DsMeter.NewInt64ValueObserver(telemetry.BuildMetricName(ds.name, "MaxConnections"), "Datasource pool capacity", func() int64 {
		return int64(ds.MaxConnections())
	})
	DsMeter.NewDurationObserver(telemetry.BuildMetricName(ds.name, "BorrowTimeout"), "Datasource borrow timeout", ds.BorrowTimeout)
}
