// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the per-stage instrumentation the orchestrator exposes
// (spec §4.6 ADDED note: "metrics counters/histograms on pipeline stage
// execution"), generalized from the teacher's single promhttp handler to
// full per-stage duration/count/failure tracking.
type Metrics struct {
	StageDuration *prometheus.HistogramVec
	FilesTotal    *prometheus.CounterVec
	FailuresTotal *prometheus.CounterVec
}

// NewMetrics registers the orchestrator's collectors against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry across parallel test binaries.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semindex",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Wall-clock duration of each pipeline stage.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		FilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semindex",
			Subsystem: "pipeline",
			Name:      "files_processed_total",
			Help:      "Files that completed a pipeline stage.",
		}, []string{"stage"}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semindex",
			Subsystem: "pipeline",
			Name:      "stage_failures_total",
			Help:      "Files that failed a pipeline stage, by failure kind.",
		}, []string{"stage", "kind"}),
	}
	reg.MustRegister(m.StageDuration, m.FilesTotal, m.FailuresTotal)
	return m
}
