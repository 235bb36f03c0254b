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

// Package admin exposes the readouts of every registered datasource over
// HTTP. The surface is read-only: counters and configuration, no control.
package admin

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/endink/go-datasource/datasource"
)

// DataSourceStatus is the JSON readout of one datasource.
type DataSourceStatus struct {
	Name            string `json:"name"`
	URL             string `json:"url"`
	OpenConnections int    `json:"openConnections"`
	IdleConnections int    `json:"idleConnections"`
	Transactions    int    `json:"transactions"`
	MaxConnections  int    `json:"maxConnections"`
	BorrowTimeoutMs int64  `json:"borrowTimeoutMs"`
	LockTimeout     int    `json:"lockTimeout"`
}

func status(ds *datasource.DataSource) DataSourceStatus {
	return DataSourceStatus{
		Name:            ds.Name(),
		URL:             ds.URL(),
		OpenConnections: ds.OpenConnections(),
		IdleConnections: ds.IdleConnections(),
		Transactions:    ds.Transactions(),
		MaxConnections:  ds.MaxConnections(),
		BorrowTimeoutMs: ds.BorrowTimeout().Milliseconds(),
		LockTimeout:     ds.LockTimeout(),
	}
}

// RegisterRoutes mounts the readout endpoints on the given router.
func RegisterRoutes(r gin.IRouter) {
	r.GET("/datasources", listDataSources)
	r.GET("/datasources/:name", getDataSource)
}

// NewServer returns a gin engine serving the readout endpoints.
func NewServer() *gin.Engine {
	e := gin.New()
	e.Use(gin.Recovery())
	RegisterRoutes(e)
	return e
}

func listDataSources(c *gin.Context) {
	var all []DataSourceStatus
	datasource.Each(func(ds *datasource.DataSource) bool {
		all = append(all, status(ds))
		return true
	})
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	c.JSON(http.StatusOK, all)
}

func getDataSource(c *gin.Context) {
	name := c.Param("name")
	ds, ok := datasource.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "datasource named '" + name + "' was not found"})
		return
	}
	c.JSON(http.StatusOK, status(ds))
}
