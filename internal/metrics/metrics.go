// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes reader statistics and extraction results to Prometheus,
// either over HTTP or as a node_exporter textfile.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Thermoquad/emitor/pkg/mtr"
)

const namespace = "emitor"

// Metrics owns a registry with the reader collector and the extraction gauges.
type Metrics struct {
	reg *prometheus.Registry

	LastRunTimestamp prometheus.Gauge
	LastRunSuccess   prometheus.Gauge
	LastRunDuration  prometheus.Gauge
	LastRunCards     prometheus.Gauge
	MTRInfo          *prometheus.GaugeVec // labels: mtr_id
}

// New registers the collector for stats and the extraction gauges.
func New(stats *mtr.Statistics) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		LastRunTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last extraction finished.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 if the last extraction wrote a log file, 0 otherwise.",
		}),
		LastRunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the last extraction, polling included.",
		}),
		LastRunCards: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_cards",
			Help:      "Data messages written by the last extraction.",
		}),
		MTRInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mtr_info",
			Help:      "Set to 1 for the MTR that answered the last status request.",
		}, []string{"mtr_id"}),
	}
	reg.MustRegister(NewStatsCollector(stats), m.LastRunTimestamp, m.LastRunSuccess,
		m.LastRunDuration, m.LastRunCards, m.MTRInfo)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}

// RecordRun sets the extraction gauges.
func (m *Metrics) RecordRun(success bool, cards int, duration time.Duration, finished time.Time) {
	m.LastRunTimestamp.Set(float64(finished.Unix()))
	if success {
		m.LastRunSuccess.Set(1)
	} else {
		m.LastRunSuccess.Set(0)
	}
	m.LastRunDuration.Set(duration.Seconds())
	m.LastRunCards.Set(float64(cards))
}

// WriteTextfile writes the registry in text format to path, atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}
