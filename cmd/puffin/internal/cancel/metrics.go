// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cancel

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level meter for token lifecycle metrics.
var meter = otel.Meter("puffin.cancel")

// Metrics for token lifecycle events.
var (
	tokensCreated   metric.Int64Counter
	tokensCancelled metric.Int64Counter
	tokenLifetime   metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		tokensCreated, err = meter.Int64Counter(
			"cancel_tokens_created_total",
			metric.WithDescription("Total number of cancellation tokens created"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		tokensCancelled, err = meter.Int64Counter(
			"cancel_tokens_cancelled_total",
			metric.WithDescription("Total number of cancellation tokens cancelled, by reason"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		tokenLifetime, err = meter.Float64Histogram(
			"cancel_token_lifetime_seconds",
			metric.WithDescription("Time between token creation and cancellation"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordTokenCreated records a token creation.
func recordTokenCreated(ctx context.Context, operation string) {
	if err := initMetrics(); err != nil {
		return
	}
	tokensCreated.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
	))
}

// recordTokenCancelled records a token cancellation and its lifetime.
func recordTokenCancelled(ctx context.Context, operation, reason string, elapsed time.Duration) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("reason", reason),
	)
	tokensCancelled.Add(ctx, 1, attrs)
	tokenLifetime.Record(ctx, elapsed.Seconds(), attrs)
}

// InstrumentRegistry wires lifecycle metrics into a registry config.
//
// # Description
//
// Returns a copy of config whose creation and cancellation hooks record
// token lifecycle metrics on the global meter provider. Hooks already
// present in config are chained and still run.
//
// # Example
//
//	cfg := cancel.InstrumentRegistry(cancel.DefaultRegistryConfig())
//	reg := cancel.NewRegistry(cfg)
func InstrumentRegistry(config RegistryConfig) RegistryConfig {
	prevCreated := config.OnTokenCreated
	prevCancelled := config.OnTokenCancelled

	config.OnTokenCreated = func(t *Token) {
		recordTokenCreated(context.Background(), t.Operation())
		if prevCreated != nil {
			prevCreated(t)
		}
	}
	config.OnTokenCancelled = func(t *Token, reason string, elapsed time.Duration) {
		recordTokenCancelled(context.Background(), t.Operation(), reason, elapsed)
		if prevCancelled != nil {
			prevCancelled(t, reason, elapsed)
		}
	}
	return config
}
