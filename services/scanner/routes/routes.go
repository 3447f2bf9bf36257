// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/handlers"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/logbus"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/middleware"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/observability"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/orchestrator"
)

// SetupRoutes registers the scanner's HTTP surface on the router.
func SetupRoutes(router *gin.Engine, engine *orchestrator.Engine, bus *logbus.Bus,
	metrics *observability.Metrics) {

	router.Use(middleware.SecurityHeaders())

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1", middleware.SameOrigin())
	{
		scans := v1.Group("/scans")
		{
			scans.POST("", handlers.StartScan(engine, metrics))
			scans.GET("/:scanId/status", handlers.GetScanStatus(engine))
			scans.GET("/:scanId/results", handlers.GetScanResults(engine))
			scans.POST("/:scanId/cancel", handlers.CancelScan(engine))
			scans.GET("/:scanId/logs", handlers.StreamScanLogs(engine, bus, metrics))
			scans.GET("/:scanId/logs/ws", handlers.ScanLogsWebSocket(engine, bus, metrics))
		}
		v1.GET("/history/:hostname", handlers.GetScanHistory(engine))
	}
}
