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

// Package logging hands out named zap loggers. Every subsystem asks for its
// logger once at package init; the same name always yields the same logger.
package logging

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var sink = zapcore.AddSync(os.Stdout)

// namedLogger pairs a logger with its own level handle so that one
// subsystem can be made verbose without touching the others.
type namedLogger struct {
	level  zap.AtomicLevel
	logger *zap.SugaredLogger
}

var (
	registryMu sync.Mutex
	registry   = make(map[string]*namedLogger)
)

// DefaultLogger is the logger for code without a subsystem of its own.
var DefaultLogger = GetLogger("datasource")

// GetLogger returns the logger registered under name, creating it on first
// use at info level.
func GetLogger(name string) *zap.SugaredLogger {
	registryMu.Lock()
	defer registryMu.Unlock()

	if l, ok := registry[name]; ok {
		return l.logger
	}

	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger := zap.New(newCore(ColorizedOutput, sink, level), zap.AddCaller()).
		Named(name).
		Sugar()

	registry[name] = &namedLogger{level: level, logger: logger}
	return logger
}
