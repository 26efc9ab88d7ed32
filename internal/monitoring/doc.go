/*
Package monitoring provides Prometheus-based metrics collection.

# Overview

Tracks HTTP requests, bridge call outcomes, fallback usage, circuit breaker
state, and tool executions. The Metrics type satisfies the executor's
observer interface so call routing is measured without the bridge importing
this package.

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Wire bridge telemetry
	executor.SetObserver(metrics)
	stop := metrics.WatchBridge(client)
	defer stop()

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
