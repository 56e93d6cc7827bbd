package main

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// monitorService is the health service name that tracks poll loop readiness.
// The empty service name reports process liveness.
const monitorService = "focus.monitor"

func newHealthServer() (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.Creds(insecure.NewCredentials()),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(monitorService, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return s, hs
}

// watchReadiness mirrors ready() into the monitor service status until ctx is done.
func watchReadiness(ctx context.Context, hs *health.Server, ready func() bool, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		status := healthpb.HealthCheckResponse_NOT_SERVING
		if ready() {
			status = healthpb.HealthCheckResponse_SERVING
		}

		hs.SetServingStatus(monitorService, status)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
