// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the sitechat service.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ChatMetrics holds the Prometheus collectors for the answer pipeline.
//
// # Thread Safety
//
// All collectors are safe for concurrent use.
type ChatMetrics struct {
	// RequestsTotal counts processed /v1/chat requests by mode and outcome.
	RequestsTotal *prometheus.CounterVec

	// TokensTotal counts tokens spent, labeled by direction
	// (embedding, chat_input, chat_output).
	TokensTotal *prometheus.CounterVec

	// CostUSDTotal accumulates estimated upstream spend in USD.
	CostUSDTotal prometheus.Counter

	// GreetingRepliesTotal counts small-talk shortcut replies.
	GreetingRepliesTotal prometheus.Counter

	// FallbackRepliesTotal counts canned not-found replies.
	FallbackRepliesTotal prometheus.Counter

	// EmailsCapturedTotal counts first-time email captures.
	EmailsCapturedTotal prometheus.Counter

	// RequestDurationSeconds observes end-to-end chat turn latency.
	RequestDurationSeconds prometheus.Histogram
}

var (
	metricsInstance *ChatMetrics
	metricsOnce     sync.Once
)

// InitMetrics registers and returns the singleton ChatMetrics. Safe to call
// from multiple paths; registration happens once.
func InitMetrics() *ChatMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &ChatMetrics{
			RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "aleutian",
				Subsystem: "sitechat",
				Name:      "requests_total",
				Help:      "Chat requests processed, by mode and status.",
			}, []string{"mode", "status"}),
			TokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: "aleutian",
				Subsystem: "sitechat",
				Name:      "tokens_total",
				Help:      "Tokens consumed, by direction.",
			}, []string{"direction"}),
			CostUSDTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "aleutian",
				Subsystem: "sitechat",
				Name:      "cost_usd_total",
				Help:      "Estimated upstream spend in USD.",
			}),
			GreetingRepliesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "aleutian",
				Subsystem: "sitechat",
				Name:      "greeting_replies_total",
				Help:      "Small-talk replies served without retrieval.",
			}),
			FallbackRepliesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "aleutian",
				Subsystem: "sitechat",
				Name:      "fallback_replies_total",
				Help:      "Canned not-found replies served.",
			}),
			EmailsCapturedTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: "aleutian",
				Subsystem: "sitechat",
				Name:      "emails_captured_total",
				Help:      "Contact emails captured from chat messages.",
			}),
			RequestDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
				Namespace: "aleutian",
				Subsystem: "sitechat",
				Name:      "request_duration_seconds",
				Help:      "End-to-end chat turn latency.",
				Buckets:   prometheus.DefBuckets,
			}),
		}
	})
	return metricsInstance
}
