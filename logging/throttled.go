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

package logging

import (
	"fmt"
	"sync"
	"time"
)

// ThrottledLogger lets one message through per interval and drops the rest.
// The number of dropped messages is reported together with the next message
// that passes, so nothing is lost silently.
type ThrottledLogger struct {
	name     string
	interval time.Duration
	logger   StandardLogger

	mu         sync.Mutex
	nextAt     time.Time
	suppressed int
}

// NewThrottledLogger creates a ThrottledLogger writing through the given
// logger at most once per interval.
func NewThrottledLogger(name string, logger StandardLogger, interval time.Duration) *ThrottledLogger {
	if logger == nil {
		logger = GetLogger("throttled")
	}
	return &ThrottledLogger{
		name:     name,
		interval: interval,
		logger:   logger,
	}
}

func (tl *ThrottledLogger) emit(out func(args ...interface{}), format string, v ...interface{}) {
	now := time.Now()

	tl.mu.Lock()
	if now.Before(tl.nextAt) {
		tl.suppressed++
		tl.mu.Unlock()
		return
	}
	skipped := tl.suppressed
	tl.suppressed = 0
	tl.nextAt = now.Add(tl.interval)
	tl.mu.Unlock()

	msg := fmt.Sprintf(tl.name+": "+format, v...)
	if skipped > 0 {
		msg = fmt.Sprintf("%s (suppressed %d similar messages)", msg, skipped)
	}
	out(msg)
}

// Infof logs an info if not throttled.
func (tl *ThrottledLogger) Infof(format string, v ...interface{}) {
	tl.emit(tl.logger.Info, format, v...)
}

// Warningf logs a warning if not throttled.
func (tl *ThrottledLogger) Warningf(format string, v ...interface{}) {
	tl.emit(tl.logger.Warn, format, v...)
}

// Errorf logs an error if not throttled.
func (tl *ThrottledLogger) Errorf(format string, v ...interface{}) {
	tl.emit(tl.logger.Error, format, v...)
}
