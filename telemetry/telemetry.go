//
// Tencent is pleased to support the open source community by making trpc-dialogue-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-dialogue-go is licensed under the Apache License Version 2.0.
//
//

// Package telemetry exposes OpenTelemetry metrics for turn processing. It
// uses the global meter provider; installing an exporter is the caller's
// responsibility, and with the default no-op provider every record is free.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "trpc.group/trpc-go/trpc-dialogue-go"

var (
	meter = otel.Meter(meterName)

	turnCount        metric.Int64Counter
	turnResponseTime metric.Float64Histogram
	turnToolCalls    metric.Int64Histogram
)

func init() {
	var err error
	if turnCount, err = meter.Int64Counter(
		"dialogue.turn.count",
		metric.WithDescription("Total number of processed turns"),
		metric.WithUnit("1"),
	); err != nil {
		panic(err)
	}
	if turnResponseTime, err = meter.Float64Histogram(
		"dialogue.turn.response_time",
		metric.WithDescription("Per-turn response time"),
		metric.WithUnit("s"),
	); err != nil {
		panic(err)
	}
	if turnToolCalls, err = meter.Int64Histogram(
		"dialogue.turn.tool_calls",
		metric.WithDescription("Tool invocations per turn"),
		metric.WithUnit("1"),
	); err != nil {
		panic(err)
	}
}

// RecordTurn records the metrics of one finished turn.
func RecordTurn(ctx context.Context, responseTimeSeconds float64, toolCalls int, outcome string) {
	attrs := metric.WithAttributes(attribute.String("dialogue.turn.outcome", outcome))
	turnCount.Add(ctx, 1, attrs)
	turnResponseTime.Record(ctx, responseTimeSeconds, attrs)
	turnToolCalls.Record(ctx, int64(toolCalls), attrs)
}
