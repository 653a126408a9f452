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

// Package metrics holds the shared Prometheus label sets and bucket
// boundaries used by every worker's metric vectors, so histograms across
// packages stay comparable.
package metrics

// LatencyBuckets are the bucket boundaries, in seconds, shared by every
// latency histogram in the module.
var LatencyBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// PairLabels identifies the replication pair a metric belongs to.
var PairLabels = []string{"pair", "table"}
