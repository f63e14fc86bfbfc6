// Copyright 2025 The LAMA Jockey Authors
//
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

package jockeysrv

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lama-robotics/jockey/localize"
)

// Metrics exposes Prometheus collectors that report goal lifecycle. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	goalsSubmitted   *prometheus.CounterVec
	goalResults      *prometheus.CounterVec
	stateTransitions *prometheus.CounterVec
	callbackDuration *prometheus.HistogramVec
	goalActive       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with the provided registerer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		goalsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lama",
				Subsystem: "jockey",
				Name:      "goals_submitted_total",
				Help:      "Number of well-formed goals submitted to the jockey.",
			},
			[]string{"action"},
		),
		goalResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lama",
				Subsystem: "jockey",
				Name:      "goal_results_total",
				Help:      "Number of terminal results delivered to goal owners.",
			},
			[]string{"action", "status"},
		),
		stateTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lama",
				Subsystem: "jockey",
				Name:      "state_transitions_total",
				Help:      "Number of task executor state transitions.",
			},
			[]string{"from", "to"},
		),
		callbackDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lama",
				Subsystem: "jockey",
				Name:      "callback_duration_seconds",
				Help:      "Time spent in a jockey callback until it returned.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"action", "outcome"},
		),
		goalActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "lama",
				Subsystem: "jockey",
				Name:      "goal_active",
				Help:      "1 if a goal owns the jockey slot, 0 otherwise.",
			},
		),
	}

	collectors := []prometheus.Collector{m.goalsSubmitted, m.goalResults, m.stateTransitions, m.callbackDuration, m.goalActive}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeSubmit(action localize.ActionKind) {
	if m == nil {
		return
	}
	m.goalsSubmitted.WithLabelValues(action.String()).Inc()
}

func (m *Metrics) observeResult(result *localize.Result) {
	if m == nil {
		return
	}
	m.goalResults.WithLabelValues(result.Action.String(), string(result.Status)).Inc()
}

func (m *Metrics) observeTransition(from, to localize.TaskState) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(string(from), string(to)).Inc()
}

func (m *Metrics) observeCallback(action localize.ActionKind, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "returned"
	if err != nil {
		outcome = "error"
	}
	m.callbackDuration.WithLabelValues(action.String(), outcome).Observe(duration.Seconds())
}

func (m *Metrics) setActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.goalActive.Set(1)
	} else {
		m.goalActive.Set(0)
	}
}
