// Copyright 2023 The Cockroach Authors
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
//
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/polyrepl/bridge/internal/metrics"
)

var (
	dmlIterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_dml_iterations_total",
		Help: "the number of DML worker loop iterations run for this pair",
	}, metrics.PairLabels)
	dmlErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_dml_errors_total",
		Help: "the number of DML worker iterations that failed",
	}, metrics.PairLabels)
	dmlApplyDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_dml_apply_duration_seconds",
		Help:    "the length of time it took to render and apply one change record",
		Buckets: metrics.LatencyBuckets,
	}, metrics.PairLabels)

	ddlIterations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_ddl_iterations_total",
		Help: "the number of DDL worker loop iterations run for this pair",
	}, metrics.PairLabels)
	ddlErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_ddl_errors_total",
		Help: "the number of DDL worker iterations that failed",
	}, metrics.PairLabels)
	ddlReconcileDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_ddl_reconcile_duration_seconds",
		Help:    "the length of time it took to run one schema reconciliation pass",
		Buckets: metrics.LatencyBuckets,
	}, metrics.PairLabels)
)
