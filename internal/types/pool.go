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

package types

import (
	"context"
	"database/sql"
)

// PoolInfo describes a database connection pool and what it's connected
// to. Adapted from the teacher's identically named type.
type PoolInfo struct {
	ConnectionString string
	Dialect          Dialect
	Version          string
}

// Info returns the PoolInfo when embedded.
func (i *PoolInfo) Info() *PoolInfo { return i }

// SourcePool is an injection point for a connection to a source
// database: the one whose WAL or binlog is tailed.
type SourcePool struct {
	*sql.DB
	PoolInfo
}

// TargetPool is an injection point for a connection to the target
// database: the one the applier and reconciler write to.
type TargetPool struct {
	*sql.DB
	PoolInfo
}

// TargetQuerier is implemented by [sql.DB] and [sql.Tx]. The applier
// accepts either so that a caller can choose statement-per-event
// (spec §4.5) or, in tests, a single enclosing transaction.
type TargetQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ TargetQuerier = (*sql.DB)(nil)
	_ TargetQuerier = (*sql.Tx)(nil)
)

// SourceQuerier is implemented by [sql.DB] and [sql.Tx], used for
// catalog lookups and frame-reader polling against the source.
type SourceQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ SourceQuerier = (*sql.DB)(nil)
	_ SourceQuerier = (*sql.Tx)(nil)
)
