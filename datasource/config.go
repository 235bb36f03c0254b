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
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/go-ini/ini"
	"github.com/pingcap/errors"
	uberconfig "go.uber.org/config"
)

const (
	DefaultPoolSize      = 10
	DefaultKeepAlive     = 1800 * time.Second
	DefaultBorrowTimeout = 3 * time.Second
	DefaultLockTimeout   = -1
)

// Config describes one datasource.
type Config struct {
	Name     string
	Driver   string
	URL      string
	User     string
	Password string

	// KeepAlive is the idle lifespan of a pooled connection.
	KeepAlive time.Duration

	// BorrowTimeout bounds the wait for a free connection.
	BorrowTimeout time.Duration

	// LockTimeout, when not negative, is sent as a SET LOCK_TIMEOUT session
	// command on every newly opened connection.
	LockTimeout int

	// PoolSize is the hard upper bound on open connections.
	PoolSize int
}

// NewConfig builds a Config from a string property bag. Durations are given
// in seconds under the keys keep-alive and borrow-timeout; lock-timeout stays
// in driver-native units.
func NewConfig(name string, props map[string]string) (*Config, error) {
	cfg := &Config{
		Name:          name,
		Driver:        props["driver"],
		URL:           props["url"],
		User:          props["user"],
		Password:      props["password"],
		KeepAlive:     DefaultKeepAlive,
		BorrowTimeout: DefaultBorrowTimeout,
		LockTimeout:   DefaultLockTimeout,
		PoolSize:      DefaultPoolSize,
	}

	var err error
	if cfg.KeepAlive, err = propSeconds(props, "keep-alive", cfg.KeepAlive); err != nil {
		return nil, errors.Annotatef(err, "invalid datasource descriptor for %s", name)
	}
	if cfg.BorrowTimeout, err = propSeconds(props, "borrow-timeout", cfg.BorrowTimeout); err != nil {
		return nil, errors.Annotatef(err, "invalid datasource descriptor for %s", name)
	}
	if cfg.LockTimeout, err = propInt(props, "lock-timeout", cfg.LockTimeout); err != nil {
		return nil, errors.Annotatef(err, "invalid datasource descriptor for %s", name)
	}
	if cfg.PoolSize, err = propInt(props, "pool-size", cfg.PoolSize); err != nil {
		return nil, errors.Annotatef(err, "invalid datasource descriptor for %s", name)
	}

	if cfg.Driver == "" {
		return nil, errors.Errorf("invalid datasource descriptor for %s: driver is required", name)
	}
	if cfg.URL == "" {
		return nil, errors.Errorf("invalid datasource descriptor for %s: url is required", name)
	}
	if cfg.PoolSize <= 0 {
		return nil, errors.Errorf("invalid datasource descriptor for %s: pool-size must be positive", name)
	}
	return cfg, nil
}

func propInt(props map[string]string, key string, def int) (int, error) {
	v, ok := props[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Annotatef(err, "key %s", key)
	}
	return n, nil
}

func propSeconds(props map[string]string, key string, def time.Duration) (time.Duration, error) {
	v, ok := props[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Annotatef(err, "key %s", key)
	}
	return time.Duration(n) * time.Second, nil
}

// LoadFile reads datasource descriptors from an ini file (one section per
// datasource) or a yaml file (a datasources mapping of name to properties).
func LoadFile(path string) ([]*Config, error) {
	switch filepath.Ext(path) {
	case ".ini":
		return loadINI(path)
	case ".yaml", ".yml":
		return loadYAML(path)
	default:
		return nil, errors.Errorf("unsupported descriptor format: %s", path)
	}
}

func loadINI(path string) ([]*Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, errors.Annotatef(err, "load %s", path)
	}

	var configs []*Config
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DEFAULT_SECTION {
			continue
		}
		cfg, err := NewConfig(sec.Name(), sec.KeysHash())
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func loadYAML(path string) ([]*Config, error) {
	y, err := uberconfig.NewYAML(uberconfig.File(path))
	if err != nil {
		return nil, errors.Annotatef(err, "load %s", path)
	}

	var raw map[string]map[string]string
	if err := y.Get("datasources").Populate(&raw); err != nil {
		return nil, errors.Annotatef(err, "load %s", path)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	var configs []*Config
	for _, name := range names {
		cfg, err := NewConfig(name, raw[name])
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}
