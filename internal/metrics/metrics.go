// Copyright Authors of nlecomposer
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics provides Prometheus metrics for the composition engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for a running Composition.
type Metrics struct {
	actionsProcessedTotal *prometheus.CounterVec
	stackRebuildsTotal    prometheus.Counter
	stackReusedTotal      prometheus.Counter
	flushPairsTotal       prometheus.Counter
	seeksTotal            prometheus.Counter
	eosForwardedTotal     prometheus.Counter
	streamErrorsTotal     *prometheus.CounterVec

	lastStackRebuildGauge prometheus.Gauge
	controllerPausedGauge prometheus.Gauge

	commitDurationSummary prometheus.Summary
}

const (
	ActionsProcessedTotal = "nle_actions_processed_total"
	StackRebuildsTotal    = "nle_stack_rebuilds_total"
	StackReusedTotal      = "nle_stack_reused_total"
	FlushPairsTotal       = "nle_flush_pairs_total"
	SeeksTotal            = "nle_seeks_total"
	EOSForwardedTotal     = "nle_eos_forwarded_total"
	StreamErrorsTotal     = "nle_stream_errors_total"
	LastStackRebuildGauge = "nle_last_stack_rebuild_timestamp"
	ControllerPausedGauge = "nle_controller_paused"
	CommitDurationSummary = "nle_commit_duration_seconds"
)

// NewMetrics creates a new set of metrics and registers them with the
// supplied registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		actionsProcessedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: ActionsProcessedTotal,
				Help: "Total number of actions dequeued and run by the controller task, by action tag.",
			},
			[]string{"reason"},
		),
		stackRebuildsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: StackRebuildsTotal,
			Help: "Total number of times the current stack was torn down and rebuilt.",
		}),
		stackReusedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: StackReusedTotal,
			Help: "Total number of times a candidate stack was structurally equal to the current one and reused without a tear-down.",
		}),
		flushPairsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: FlushPairsTotal,
			Help: "Total number of flush-start/flush-stop pairs emitted downstream.",
		}),
		seeksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: SeeksTotal,
			Help: "Total number of incoming seeks accepted (not dropped as duplicates) and enqueued.",
		}),
		eosForwardedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: EOSForwardedTotal,
			Help: "Total number of EOS events forwarded downstream as the composition's own EOS.",
		}),
		streamErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: StreamErrorsTotal,
				Help: "Total number of stream errors posted to the element bus, by kind.",
			},
			[]string{"kind"},
		),
		lastStackRebuildGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: LastStackRebuildGauge,
			Help: "Unix timestamp of the last stack rebuild.",
		}),
		controllerPausedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: ControllerPausedGauge,
			Help: "1 if the controller task is currently self-paused waiting for an initializing seek to take effect, 0 otherwise.",
		}),
		commitDurationSummary: prometheus.NewSummary(prometheus.SummaryOpts{
			Name:       CommitDurationSummary,
			Help:       "Duration of commit actions, from dequeue to completion.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}),
	}
	m.register(registry)
	return m
}

func (m *Metrics) register(registry *prometheus.Registry) {
	registry.MustRegister(
		m.actionsProcessedTotal,
		m.stackRebuildsTotal,
		m.stackReusedTotal,
		m.flushPairsTotal,
		m.seeksTotal,
		m.eosForwardedTotal,
		m.streamErrorsTotal,
		m.lastStackRebuildGauge,
		m.controllerPausedGauge,
		m.commitDurationSummary,
	)
}

// ObserveActionProcessed records that the controller ran one action with
// the given action tag (e.g. "seek", "commit", "initialize", "update"),
// stored under the "reason" label.
func (m *Metrics) ObserveActionProcessed(reason string) {
	m.actionsProcessedTotal.WithLabelValues(reason).Inc()
}

// ObserveStackRebuilt records a tear-down-and-rebuild stack swap.
func (m *Metrics) ObserveStackRebuilt() {
	m.stackRebuildsTotal.Inc()
	m.lastStackRebuildGauge.Set(float64(time.Now().Unix()))
}

// ObserveStackReused records that a candidate stack was structurally
// equal to the current one (spec §4.2 step 7) and no tear-down occurred.
func (m *Metrics) ObserveStackReused() {
	m.stackReusedTotal.Inc()
}

// ObserveFlushPair records one flush-start/flush-stop pair.
func (m *Metrics) ObserveFlushPair() {
	m.flushPairsTotal.Inc()
}

// ObserveSeek records an incoming seek that was accepted and enqueued.
func (m *Metrics) ObserveSeek() {
	m.seeksTotal.Inc()
}

// ObserveEOSForwarded records the composition's own EOS reaching downstream.
func (m *Metrics) ObserveEOSForwarded() {
	m.eosForwardedTotal.Inc()
}

// ObserveStreamError records a stream error of the given kind (spec §7:
// TimelineGap, InvalidStructure, SeekRejected, JoinFromOwnThread,
// ChildStateChangeFailure).
func (m *Metrics) ObserveStreamError(kind string) {
	m.streamErrorsTotal.WithLabelValues(kind).Inc()
}

// SetControllerPaused records whether the controller is currently
// self-paused waiting for a priming seek to take effect (spec §4.1).
func (m *Metrics) SetControllerPaused(paused bool) {
	if paused {
		m.controllerPausedGauge.Set(1)
		return
	}
	m.controllerPausedGauge.Set(0)
}

// CommitTimer starts a timer that records its duration into the commit
// duration summary when stopped, mirroring the teacher's use of
// prometheus.NewTimer around cache-handler updates.
func (m *Metrics) CommitTimer() *prometheus.Timer {
	return prometheus.NewTimer(m.commitDurationSummary)
}

// Handler returns an http.Handler for a metrics endpoint.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
