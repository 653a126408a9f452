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

import "sync"

// PairStatus is the in-memory "how far have we gotten" record for one
// replication pair, the analogue of the teacher's durable
// resolved-timestamp bookkeeping without the durable table: long-term
// progress storage is an explicit Non-goal (spec §1), so this is
// deliberately lost on process restart.
type PairStatus struct {
	Running bool
	LastErr error
	LastLSN uint64
	LastXID uint32
}

// progress guards one pair's PairStatus with a mutex so the DML worker
// goroutine can update it while Status() is read concurrently.
type progress struct {
	mu     sync.RWMutex
	status PairStatus
}

func newProgress() *progress {
	return &progress{status: PairStatus{Running: true}}
}

func (p *progress) snapshot() PairStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

func (p *progress) setRunning(running bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Running = running
}

func (p *progress) recordError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.LastErr = err
}

func (p *progress) recordPosition(lsn uint64, xid uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.LastLSN = lsn
	p.status.LastXID = xid
}
