// Package httpserver wraps net/http.Server with graceful shutdown,
// signal handling, and structured logging hooks.
//
// Run blocks until the context is cancelled or SIGINT/SIGTERM arrives,
// then drains in-flight requests within the configured shutdown timeout.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		...
//	}
//
// HealthCheckHandler serves liveness probes (no dependency functions) and
// readiness probes (each dependency function must succeed).
package httpserver
