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

// Package apply executes rendered statements against the target,
// one per change record, per spec §4.5.
package apply

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/polyrepl/bridge/internal/types"
)

// Applier executes statements produced by render.Renderer against a
// target connection. It carries no transaction across calls: each Apply
// is its own auto-committed unit, per §4.5's statement-per-event
// contract (explicitly not transaction-per-source-transaction).
type Applier struct {
	Target types.TargetQuerier
}

// New returns an Applier bound to target.
func New(target types.TargetQuerier) *Applier {
	return &Applier{Target: target}
}

// Apply executes stmt with args against the target. A failure is
// returned to the caller (the supervisor's DML worker), which logs it
// and continues the batch — §7's "Target apply" contract: a failed
// statement never aborts the run.
func (a *Applier) Apply(ctx context.Context, stmt string, args []any) error {
	if stmt == "" {
		return nil
	}
	_, err := a.Target.ExecContext(ctx, stmt, args...)
	if err != nil {
		log.WithError(err).WithField("statement", stmt).Error("apply: statement failed")
		return err
	}
	log.WithField("statement", stmt).Debug("apply: statement applied")
	return nil
}

// ObserveBegin and ObserveCommit exist so the supervisor's DML worker
// can log source transaction boundaries without the Applier using them
// for atomicity — §4.5 observes Begin/Commit "for logging but not for
// atomicity".
func (a *Applier) ObserveBegin(b types.Begin) {
	log.WithFields(log.Fields{"lsn": b.LSN, "xid": b.XID}).Debug("apply: begin observed")
}

func (a *Applier) ObserveCommit(c types.Commit) {
	log.WithFields(log.Fields{"commit_lsn": c.CommitLSN, "end_lsn": c.EndLSN}).Debug("apply: commit observed")
}
