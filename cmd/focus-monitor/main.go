package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"

	"kniti.io/focus-monitor/internal/api"
	cfgpkg "kniti.io/focus-monitor/internal/config"
	"kniti.io/focus-monitor/internal/orchestrator"
	otelsetup "kniti.io/focus-monitor/internal/otel"
	"kniti.io/focus-monitor/internal/sink"
	"kniti.io/focus-monitor/internal/store"
)

const name = "kniti.io/focus-monitor"

func main() {
	if err := run(); err != nil {
		log.Fatalln(err)
	}
}

func run() (err error) {
	// Config
	readFlags := cfgpkg.RegisterFlags()

	flag.Parse()

	cfg, err := readFlags()
	if err != nil {
		return err
	}

	level, err := cfg.Level()
	if err != nil {
		return err
	}

	// Set up OpenTelemetry. Stdout carries focus reports, so telemetry goes to stderr.
	otelShutdown, err := otelsetup.Setup(context.Background(), os.Stderr)
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, otelShutdown(context.Background())) }()

	// Instance logger bridged to OTel.
	logger := slog.New(newLevelHandler(level, otelslog.NewHandler(name)))
	slog.SetDefault(logger)
	logger.Info("Starting application", slog.String("db_type", cfg.DBType))

	// Derive a context canceled on SIGINT/SIGTERM for graceful shutdown
	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(sigCtx, store.Config{Type: cfg.DBType, DSN: cfg.DSN, ReadTimeout: cfg.ReadTimeout})
	if err != nil {
		return err
	}

	defer func() { err = errors.Join(err, db.Close()) }()

	if db.Type() == store.TypeSQLite {
		if err := db.EnsureSchema(sigCtx); err != nil {
			return err
		}
	}

	// Optional output file for JSON sink
	var opts []orchestrator.Option

	if cfg.OutputFile != "" {
		f, openErr := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if openErr != nil {
			return openErr
		}

		defer func() { err = errors.Join(err, f.Close()) }()

		opts = append(opts, orchestrator.WithSink(sink.NewJSONSink(f)))
	}

	svc, err := orchestrator.New(cfg, logger, store.NewReader(db), opts...)
	if err != nil {
		return err
	}

	// Start internal components; the poll loop stops when sigCtx is canceled
	svc.Start(sigCtx)

	slog.Debug("Starting health listener", slog.String("healthAddr", cfg.HealthAddr))

	listener, err := net.Listen("tcp", cfg.HealthAddr)
	if err != nil {
		return errors.Join(err, svc.Close(context.Background()))
	}

	grpcServer, health := newHealthServer()
	go watchReadiness(sigCtx, health, svc.Ready, cfg.PollInterval)

	serveErr := make(chan error, 2)

	go func() { serveErr <- grpcServer.Serve(listener) }()

	var admin *http.Server

	if cfg.AdminAddr != "" {
		admin = &http.Server{
			Addr:              cfg.AdminAddr,
			Handler:           api.NewRouter(&api.App{Orch: svc, Logger: logger}),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			if err := admin.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	select {
	case err = <-serveErr:
		stop()
		logger.Error("server failed; shutting down", slog.String("err", err.Error()))
	case <-sigCtx.Done():
		slog.Info("Shutdown signal received; beginning graceful shutdown")
	}

	health.Shutdown()

	// Bound the shutdown with configured timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		slog.Warn("Graceful stop timed out; forcing stop")
		grpcServer.Stop()
	}

	if admin != nil {
		err = errors.Join(err, admin.Shutdown(shutdownCtx))
	}

	// Stop polling and drain in-flight batches
	return errors.Join(err, svc.Close(shutdownCtx))
}
