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

package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/endink/go-datasource/admin"
	"github.com/endink/go-datasource/datasource"
	"github.com/endink/go-datasource/logging"
	"github.com/endink/go-datasource/util"

	// built-in in-memory driver; real drivers register the same way
	_ "github.com/endink/go-datasource/driver/memdb"
)

func main() {
	var configFile = flag.String("config", "etc/datasource.ini", "datasource descriptor file (.ini or .yaml)")
	var addr = flag.String("addr", ":9797", "admin listen address")
	flag.Parse()

	log := logging.DefaultLogger

	if !util.FileExists(*configFile) {
		log.Fatalf("descriptor file not found: %s", *configFile)
	}
	configs, err := datasource.LoadFile(*configFile)
	if err != nil {
		log.Fatalf("parse config file error: %v", err)
	}

	var sources []*datasource.DataSource
	for _, cfg := range configs {
		ds, err := datasource.New(cfg)
		if err != nil {
			log.Fatalf("open datasource %s failed: %v", cfg.Name, err)
		}
		log.Infof("datasource %s ready (pool-size=%d)", ds.Name(), ds.MaxConnections())
		sources = append(sources, ds)
	}

	srv := &http.Server{Addr: *addr, Handler: admin.NewServer()}
	go func() {
		log.Infof("admin listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin server error: %v", err)
		}
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	sig := <-sc
	log.Infof("got signal %v, shutting down", sig)

	_ = srv.Shutdown(context.Background())
	for _, ds := range sources {
		ds.Close()
	}
}
