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
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Pranavraut033/WebSecScan-sub000/pkg/ux"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/datatypes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/logbus"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/orchestrator"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/storage"
)

var (
	flagMode string
	flagJSON bool
)

// scanCmd performs a one-shot scan against a local in-memory engine and
// prints the findings report.
var scanCmd = &cobra.Command{
	Use:   "scan <targetUrl>",
	Short: "Scan a target and print the findings report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := datatypes.ScanMode(strings.ToUpper(flagMode))
		if !mode.Valid() {
			return fmt.Errorf("invalid mode %q (STATIC, DYNAMIC, or BOTH)", flagMode)
		}
		return runOneShotScan(cmd.Context(), args[0], mode)
	},
}

func init() {
	scanCmd.Flags().StringVar(&flagMode, "mode", "BOTH", "scan mode: STATIC, DYNAMIC, or BOTH")
	scanCmd.Flags().BoolVar(&flagJSON, "json", false, "print the raw results as JSON")
	rootCmd.AddCommand(scanCmd)
}

func runOneShotScan(ctx context.Context, target string, mode datatypes.ScanMode) error {
	db, err := storage.OpenInMemory()
	if err != nil {
		return err
	}
	defer db.Close()

	bus := logbus.New()
	engine := orchestrator.New(storage.NewStore(db, logger.Slog()), bus, logger.Slog())

	scan, err := engine.Start(ctx, datatypes.ScanRequest{TargetURL: target, Mode: mode})
	if err != nil {
		return err
	}

	if !flagJSON {
		fmt.Println(ux.Banner("webscan " + scan.TargetURL))
	}

	// Stream progress while the scan runs. The subscription closes at the
	// terminal transition; if the scan already finished, skip straight to
	// the report.
	sub := bus.Subscribe(scan.ID)
	if current, err := engine.Status(ctx, scan.ID); err == nil && current.Status.Terminal() {
		sub.Close()
	}
	for event := range sub.C {
		if flagJSON {
			continue
		}
		fmt.Println(ux.EventLine(string(event.Level), string(event.Phase), event.Message))
	}
	engine.Wait()

	results, err := engine.GetResults(ctx, scan.ID)
	if err != nil {
		return err
	}

	if flagJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}

	printReport(results)
	if results.Scan.Status == datatypes.StatusFailed {
		return fmt.Errorf("scan failed: %s", results.Scan.Summary.FailureReason)
	}
	return nil
}

func printReport(results *orchestrator.Results) {
	scan := results.Scan

	fmt.Println()
	if scan.Status == datatypes.StatusFailed {
		fmt.Println(ux.StatusLine("FAILED", scan.Summary.FailureReason))
		return
	}

	score := "-"
	if scan.Score != nil {
		score = fmt.Sprintf("%d", *scan.Score)
	}
	grade := "-"
	if scan.Grade != nil {
		grade = *scan.Grade
	}
	fmt.Println(ux.ScoreLine(score, grade, string(results.RiskBand)))
	fmt.Println()

	if len(results.Findings) == 0 {
		fmt.Println(ux.Styles.Success.Render("No findings."))
		return
	}

	fmt.Println(ux.Styles.Title.Render(fmt.Sprintf("Findings (%d)", len(results.Findings))))
	for _, f := range results.Findings {
		fmt.Println(ux.FindingLine(string(f.Severity), f.Type, f.Location))
		if f.Remediation != "" {
			fmt.Println(ux.Styles.Muted.Render("    " + f.Remediation))
		}
	}

	fmt.Println()
	fmt.Println(ux.Styles.Subtitle.Render(fmt.Sprintf("%d security tests evaluated", len(results.Tests))))
}
