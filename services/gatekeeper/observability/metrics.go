// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "aleutian"
	metricsSubsystem = "gatekeeper"
)

// PipelineMetrics exposes the Prometheus instruments for the pipeline.
//
// # Description
//
//	Counters are labeled by terminal outcome, refusal kind, token direction,
//	and cache event so dashboards can separate refusals from failures and
//	watch cache effectiveness without scraping application logs.
//
// # Limitations
//   - Instruments register on the default registry; NewPipelineMetrics is
//     guarded by a sync.Once so repeated construction returns the same set.
type PipelineMetrics struct {
	RequestsTotal    *prometheus.CounterVec
	RefusalsTotal    *prometheus.CounterVec
	TokensTotal      *prometheus.CounterVec
	CacheEventsTotal *prometheus.CounterVec
	CostUSDTotal     prometheus.Counter
	RequestDuration  *prometheus.HistogramVec
	TimeToFirstToken prometheus.Histogram
	ActiveStreams    prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metrics     *PipelineMetrics
)

func NewPipelineMetrics() *PipelineMetrics {
	metricsOnce.Do(func() {
		metrics = &PipelineMetrics{
			RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "requests_total",
				Help:      "Pipeline runs by terminal outcome.",
			}, []string{"outcome"}),
			RefusalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "refusals_total",
				Help:      "Guardrail refusals by kind.",
			}, []string{"kind"}),
			TokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "tokens_total",
				Help:      "Estimated tokens by direction and model.",
			}, []string{"direction", "model"}),
			CacheEventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "cache_events_total",
				Help:      "Prompt cache hits and misses.",
			}, []string{"event"}),
			CostUSDTotal: promauto.NewCounter(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "cost_usd_total",
				Help:      "Estimated cumulative model spend in USD.",
			}),
			RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "request_duration_seconds",
				Help:      "End-to-end pipeline duration by terminal outcome.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"outcome"}),
			TimeToFirstToken: promauto.NewHistogram(prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "time_to_first_token_seconds",
				Help:      "Latency from generation start to the first streamed fragment.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			}),
			ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "active_streams",
				Help:      "Generation streams currently open.",
			}),
		}
	})
	return metrics
}

func (m *PipelineMetrics) RecordRequest(outcome string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(outcome).Inc()
	m.RequestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RecordRefusal(kind string) {
	m.RefusalsTotal.WithLabelValues(kind).Inc()
}

func (m *PipelineMetrics) RecordTokens(model string, inputTokens, outputTokens int) {
	m.TokensTotal.WithLabelValues("input", model).Add(float64(inputTokens))
	m.TokensTotal.WithLabelValues("output", model).Add(float64(outputTokens))
}

func (m *PipelineMetrics) RecordCost(usd float64) {
	if usd > 0 {
		m.CostUSDTotal.Add(usd)
	}
}

func (m *PipelineMetrics) RecordCacheHit()  { m.CacheEventsTotal.WithLabelValues("hit").Inc() }
func (m *PipelineMetrics) RecordCacheMiss() { m.CacheEventsTotal.WithLabelValues("miss").Inc() }

func (m *PipelineMetrics) RecordTimeToFirstToken(d time.Duration) {
	m.TimeToFirstToken.Observe(d.Seconds())
}

func (m *PipelineMetrics) StreamStarted() { m.ActiveStreams.Inc() }
func (m *PipelineMetrics) StreamEnded()   { m.ActiveStreams.Dec() }
