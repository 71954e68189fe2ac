// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// supportd serves diagnostic support bundles over HTTP: asynchronous
// bundle generation, progress polling, download, and administration of
// retained archives.
package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/nevingeorgesunny/support-core-plugin/pkg/extensions"
	"github.com/nevingeorgesunny/support-core-plugin/pkg/logging"
	"github.com/nevingeorgesunny/support-core-plugin/services/support"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/bundle"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/observability"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/routes"
	"github.com/nevingeorgesunny/support-core-plugin/services/support/task"
)

// version is stamped at build time with -ldflags.
var version = "dev"

var (
	configPath string
	portFlag   int

	config support.Config

	rootCmd = &cobra.Command{
		Use:   "supportd",
		Short: "Support bundle service",
		Long: `supportd collects diagnostics (service metadata, environment,
runtime metrics, goroutine dumps, log files) into downloadable zip
bundles. Generation runs asynchronously; clients poll a task id and
download the finished archive.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			loadConfig()
		},
		RunE: runServe,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml",
		"path to the YAML config file")
	rootCmd.Flags().IntVar(&portFlag, "port", 0,
		"HTTP port (overrides the config file)")
}

// loadConfig reads the config file if present; a missing file at the
// default location just means defaults.
func loadConfig() {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		config = support.DefaultConfig()
		return
	}
	cfg, err := support.Load(configPath)
	if err != nil {
		log.Fatalf("Error loading %s: %v", configPath, err)
	}
	config = cfg
}

func runServe(cmd *cobra.Command, args []string) error {
	if portFlag != 0 {
		config.Server.Port = portFlag
	} else if env := os.Getenv("SUPPORTD_PORT"); env != "" {
		port, err := strconv.Atoi(env)
		if err != nil {
			return fmt.Errorf("invalid SUPPORTD_PORT %q: %w", env, err)
		}
		config.Server.Port = port
	}

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(config.Logging.Level),
		LogDir:  config.Logging.Dir,
		Service: "supportd",
		JSON:    config.Logging.JSON,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	observability.InitMetrics()
	bundle.SetExcludedComponents(config.ExcludedComponents...)

	store, err := bundle.NewStore(config.Storage.BundleRoot)
	if err != nil {
		return err
	}

	registry := task.NewRegistry(config.Storage.SpoolRoot)
	sweeper := task.NewSweeper(registry, config.Storage.RetentionDelay.Std())
	defer sweeper.Stop()

	router := gin.Default()
	routes.SetupRoutes(router, routes.Deps{
		AuthProvider: &extensions.NopAuthProvider{},
		Registry:     registry,
		Sweeper:      sweeper,
		Store:        store,
		Catalog:      bundle.DefaultComponents(version, config.Logging.Dir),
	})

	addr := fmt.Sprintf(":%d", config.Server.Port)
	slog.Info("Starting supportd",
		"version", version,
		"addr", addr,
		"spool_root", registry.SpoolRoot(),
		"bundle_root", store.Root(),
		"retention", sweeper.Delay())
	return router.Run(addr)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error executing command: %v", err)
	}
}
