// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thermoquad/emitor/pkg/mtr"
)

// StatsCollector reports an mtr.Statistics snapshot on every scrape.
type StatsCollector struct {
	stats *mtr.Statistics

	receives     *prometheus.Desc
	messages     *prometheus.Desc
	dropped      *prometheus.Desc
	skippedBytes *prometheus.Desc
}

// NewStatsCollector creates a collector reading stats.
func NewStatsCollector(stats *mtr.Statistics) *StatsCollector {
	return &StatsCollector{
		stats: stats,
		receives: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "reader", "receives_total"),
			"Receive calls made.", nil, nil),
		messages: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "reader", "messages_total"),
			"Messages decoded with a valid checksum.", []string{"type"}, nil),
		dropped: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "reader", "dropped_frames_total"),
			"Frames dropped, by reason.", []string{"reason"}, nil),
		skippedBytes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "reader", "skipped_bytes_total"),
			"Bytes discarded while searching for a preamble.", nil, nil),
	}
}

func (c *StatsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.receives
	ch <- c.messages
	ch <- c.dropped
	ch <- c.skippedBytes
}

func (c *StatsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats.Snapshot()

	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}

	counter(c.receives, s.Receives)
	counter(c.messages, s.StatusMessages, "status")
	counter(c.messages, s.DataMessages, "data")
	counter(c.dropped, s.PartialFrames, "partial_frame")
	counter(c.dropped, s.UnknownTypes, "unknown_type")
	counter(c.dropped, s.ChecksumErrors, "checksum_mismatch")
	counter(c.dropped, s.LengthMismatches, "length_mismatch")
	counter(c.dropped, s.OtherErrors, "other")
	counter(c.skippedBytes, s.SkippedBytes)
}
