// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package routes wires the HTTP surface of the support service.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nevingeorgesunny/support-core-plugin/pkg/extensions"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/bundle"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/handlers"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/middleware"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/task"
)

// Deps collects everything the route handlers need. The caller owns
// the lifecycle of every field.
type Deps struct {
	AuthProvider extensions.AuthProvider
	Registry     *task.Registry
	Sweeper      *task.Sweeper
	Store        *bundle.Store
	Catalog      []bundle.Component
}

// SetupRoutes registers all endpoints on the router.
//
// /health and /metrics are unauthenticated. Everything under /support
// requires an authenticated administrator: bundles carry environment
// variables and log content, so there is no read-only tier.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	support := router.Group("/support")
	support.Use(middleware.AuthMiddleware(deps.AuthProvider), middleware.RequireAdmin())
	{
		support.GET("/components", handlers.ListComponents(deps.Catalog))

		// Task-backed generation and polling
		support.POST("/generateAll", handlers.GenerateAll(deps.Registry, deps.Catalog))
		support.POST("/generateBundle", handlers.GenerateBundle(deps.Registry, deps.Catalog))
		support.GET("/progress", handlers.Progress(deps.Registry))
		support.GET("/download", handlers.DownloadTaskBundle(deps.Registry, deps.Sweeper))

		// Retained bundle administration
		support.GET("/bundles", handlers.ListBundles(deps.Store))
		support.POST("/deleteBundles", handlers.DeleteBundles(deps.Store))
		support.POST("/downloadBundles", handlers.DownloadBundles(deps.Store))
	}
}
