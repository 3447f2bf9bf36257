// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command webscan is the web-application security scanner CLI.
//
// # Usage
//
//	# Run the scanner HTTP service
//	webscan serve --port 12300 --data-dir ./data
//
//	# One-shot scan, printed to the terminal
//	webscan scan https://target.example --mode BOTH
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Pranavraut033/WebSecScan-sub000/pkg/logging"
)

var (
	flagLogDir  string
	flagVerbose bool

	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "webscan",
	Short: "Web application security scanner",
	Long: "webscan crawls a target web application, runs static and dynamic\n" +
		"security analysis, and reports findings scored against the OWASP\n" +
		"Top 10 (2025).",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := logging.LevelInfo
		if flagVerbose {
			level = logging.LevelDebug
		}
		logger = logging.New(logging.Config{
			Level:   level,
			LogDir:  flagLogDir,
			Service: "webscan",
		})
		slog.SetDefault(logger.Slog())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogDir, "log-dir", "",
		"directory for JSON log files (stderr only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false,
		"enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
