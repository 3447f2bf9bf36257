// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanner assembles the web-application security scanner service:
// Badger-backed storage, the scan orchestration engine, the log bus, and
// the Gin HTTP surface with tracing and metrics.
//
// # Usage
//
//	cfg := scanner.Config{Port: 12300, DataDir: "./data"}
//	svc, err := scanner.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/logbus"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/observability"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/orchestrator"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/routes"
	"github.com/Pranavraut033/WebSecScan-sub000/services/scanner/storage"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the scanner service lifecycle.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Run() blocks and
// should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until it stops.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine

	// Close releases storage and tracing resources after Run returns.
	Close()
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds scanner service configuration. Zero values use defaults.
type Config struct {
	// Port is the HTTP server port. Default: 12300
	Port int

	// DataDir is the Badger database directory. Default: "./data/scans"
	DataDir string

	// InMemoryStorage runs Badger without disk persistence (tests, the
	// one-shot CLI).
	InMemoryStorage bool

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "webscan-otel-collector:4317"
	OTelEndpoint string

	// DisableTracing skips the OTLP tracer bootstrap.
	DisableTracing bool

	// GinMode sets the Gin framework mode ("debug", "release", "test").
	// Default: uses GIN_MODE env var or "debug"
	GinMode string

	// Logger is the service logger. Default: slog.Default()
	Logger *slog.Logger
}

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12300
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data/scans"
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "webscan-otel-collector:4317"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service wires storage, the engine, the bus, and the HTTP router.
type service struct {
	config        Config
	router        *gin.Engine
	db            *storage.DB
	engine        *orchestrator.Engine
	bus           *logbus.Bus
	metrics       *observability.Metrics
	tracerCleanup func(context.Context)
}

// New creates a scanner Service with the given configuration.
//
// # Description
//
// Initialization order:
//  1. Apply configuration defaults
//  2. Bootstrap the OTLP tracer (unless disabled)
//  3. Register Prometheus metrics
//  4. Open Badger storage
//  5. Build the log bus and the orchestration engine
//  6. Register HTTP routes
//
// # Outputs
//
//   - Service: ready to Run
//   - error: non-nil when storage or tracer setup fails
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	if !s.config.DisableTracing {
		cleanup, err := s.initTracer()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	// The default registry survives across instances; reuse the singleton
	// rather than registering twice.
	if observability.DefaultMetrics == nil {
		observability.InitMetrics()
	}
	s.metrics = observability.DefaultMetrics

	db, err := s.openStorage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	s.db = db

	s.bus = logbus.New()
	s.engine = orchestrator.New(
		storage.NewStore(db, s.config.Logger),
		s.bus,
		s.config.Logger,
		orchestrator.WithObserver(s.metrics),
	)

	s.initRouter()
	return s, nil
}

// Run starts the HTTP server and blocks until it stops.
func (s *service) Run() error {
	defer s.Close()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.config.Logger.Info("starting scanner server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// Close waits for in-flight scans and releases storage and the tracer.
// Safe to call after a failed New or a finished Run.
func (s *service) Close() {
	if s.engine != nil {
		s.engine.Wait()
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.config.Logger.Warn("storage close error", "error", err)
		}
		s.db = nil
	}
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
		s.tracerCleanup = nil
	}
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

func (s *service) openStorage() (*storage.DB, error) {
	if s.config.InMemoryStorage {
		return storage.OpenInMemory()
	}
	dbCfg := storage.DefaultConfig(s.config.DataDir)
	dbCfg.Logger = s.config.Logger
	return storage.Open(dbCfg)
}

// initTracer sets up the OTLP trace exporter against the configured
// collector. Uses an insecure gRPC connection, appropriate for internal
// networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("scanner-service")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	s.router = gin.Default()
	if !s.config.DisableTracing {
		s.router.Use(otelgin.Middleware("scanner-service"))
	}

	routes.SetupRoutes(s.router, s.engine, s.bus, s.metrics)
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
