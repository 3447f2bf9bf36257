// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"

	scanner "github.com/Pranavraut033/WebSecScan-sub000/services/scanner"
)

var (
	flagPort           int
	flagDataDir        string
	flagOTelEndpoint   string
	flagDisableTracing bool
)

// serveCmd runs the scanner HTTP service. Flags win over environment
// variables; the environment variables match the container deployment:
//
//   - WEBSCAN_PORT: HTTP server port
//   - WEBSCAN_DATA_DIR: Badger database directory
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scanner HTTP service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := scanner.Config{
			Port:           flagPort,
			DataDir:        flagDataDir,
			OTelEndpoint:   flagOTelEndpoint,
			DisableTracing: flagDisableTracing,
			Logger:         logger.Slog(),
		}
		if cfg.Port == 0 {
			cfg.Port = getEnvInt("WEBSCAN_PORT", 0)
		}
		if cfg.DataDir == "" {
			cfg.DataDir = os.Getenv("WEBSCAN_DATA_DIR")
		}
		if cfg.OTelEndpoint == "" {
			cfg.OTelEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		}

		svc, err := scanner.New(cfg)
		if err != nil {
			return err
		}
		return svc.Run()
	},
}

func getEnvInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			return value
		}
	}
	return fallback
}

func init() {
	serveCmd.Flags().IntVar(&flagPort, "port", 0, "HTTP server port (default 12300)")
	serveCmd.Flags().StringVar(&flagDataDir, "data-dir", "", "Badger database directory (default ./data/scans)")
	serveCmd.Flags().StringVar(&flagOTelEndpoint, "otel-endpoint", "", "OpenTelemetry collector endpoint")
	serveCmd.Flags().BoolVar(&flagDisableTracing, "disable-tracing", false, "skip the OTLP tracer bootstrap")
	rootCmd.AddCommand(serveCmd)
}
