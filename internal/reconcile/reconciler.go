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

// Package reconcile diffs a table's column set between source and
// target and emits the ordered ALTER statements needed to bring the
// target up to date, per spec §4.6.
package reconcile

import (
	"context"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/pkg/errors"

	"github.com/polyrepl/bridge/internal/render"
	"github.com/polyrepl/bridge/internal/types"
)

// Diff is the three-way column diff for one reconciliation pass,
// already ordered for execution: Add, then Drop, then Modify (§8
// property 5).
type Diff struct {
	Add    []AddColumn
	Drop   []DropColumn
	Modify []ModifyColumn
}

// Empty reports whether the diff has nothing to apply.
func (d Diff) Empty() bool {
	return len(d.Add) == 0 && len(d.Drop) == 0 && len(d.Modify) == 0
}

type AddColumn struct {
	Name         string
	DeclaredType string
}

type DropColumn struct {
	Name string
}

type ModifyColumn struct {
	Name         string
	DeclaredType string
}

// Reconciler compares a table's columns on SourcePool/TargetPool and
// applies the diff to the target, one ALTER per transaction (§4.6).
type Reconciler struct {
	Source        types.SourceQuerier
	Target        types.TargetQuerier
	SourceDialect types.Dialect
	TargetDialect types.Dialect
}

// New returns a Reconciler wired to the given pools and dialects.
func New(source types.SourceQuerier, target types.TargetQuerier, sourceDialect, targetDialect types.Dialect) *Reconciler {
	return &Reconciler{Source: source, Target: target, SourceDialect: sourceDialect, TargetDialect: targetDialect}
}

// Reconcile fetches source and target column sets for table, computes
// the diff, applies it, and returns the diff that was applied.
func (r *Reconciler) Reconcile(ctx context.Context, schema, table string) (Diff, error) {
	sourceCols, err := columnsFor(ctx, r.Source, r.SourceDialect, schema, table)
	if err != nil {
		return Diff{}, errors.Wrapf(err, "reconcile: fetch source columns for %s", table)
	}
	targetCols, err := columnsForTarget(ctx, r.Target, r.TargetDialect, schema, table)
	if err != nil {
		return Diff{}, errors.Wrapf(err, "reconcile: fetch target columns for %s", table)
	}

	diff := computeDiff(sourceCols, targetCols)

	if diff.Empty() {
		return diff, nil
	}
	if err := r.apply(ctx, schema, table, diff); err != nil {
		return diff, err
	}
	return diff, nil
}

// computeDiff is the pure comparison at the heart of Reconcile, split
// out so it can be exercised without a live database: every column
// present in source but not target is an Add, every column present in
// target but not source is a Drop, every column present in both with a
// differing post-mapping type is a Modify, each bucket sorted by name
// for determinism (spec §8 property 5 only constrains inter-bucket
// order; intra-bucket order is this implementation's own choice).
func computeDiff(sourceCols, targetCols map[string]string) Diff {
	diff := Diff{}
	for name, declType := range sourceCols {
		if _, ok := targetCols[name]; !ok {
			diff.Add = append(diff.Add, AddColumn{Name: name, DeclaredType: render.MapType(declType)})
		}
	}
	for name := range targetCols {
		if _, ok := sourceCols[name]; !ok {
			diff.Drop = append(diff.Drop, DropColumn{Name: name})
		}
	}
	for name, declType := range sourceCols {
		targetType, ok := targetCols[name]
		if !ok {
			continue
		}
		if render.MapType(declType) != render.MapType(targetType) {
			diff.Modify = append(diff.Modify, ModifyColumn{Name: name, DeclaredType: render.MapType(declType)})
		}
	}

	sort.Slice(diff.Add, func(i, j int) bool { return diff.Add[i].Name < diff.Add[j].Name })
	sort.Slice(diff.Drop, func(i, j int) bool { return diff.Drop[i].Name < diff.Drop[j].Name })
	sort.Slice(diff.Modify, func(i, j int) bool { return diff.Modify[i].Name < diff.Modify[j].Name })
	return diff
}

// apply executes diff against the target, each ALTER in its own
// transaction, ADD before DROP before MODIFY (§4.6, §8 property 5).
func (r *Reconciler) apply(ctx context.Context, schema, table string, diff Diff) error {
	renderer := render.New(r.TargetDialect)
	qualified := render.QualifiedTable(r.TargetDialect, schema, table)

	for _, add := range diff.Add {
		stmt := "ALTER TABLE " + qualified + " ADD COLUMN " + render.QuoteIdent(r.TargetDialect, add.Name) + " " + add.DeclaredType + ";"
		if err := r.exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "reconcile: add column %s", add.Name)
		}
	}
	for _, drop := range diff.Drop {
		stmt := "ALTER TABLE " + qualified + " DROP COLUMN " + render.QuoteIdent(r.TargetDialect, drop.Name) + ";"
		if err := r.exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "reconcile: drop column %s", drop.Name)
		}
	}
	for _, mod := range diff.Modify {
		stmt := "ALTER TABLE " + qualified + " " + renderer.AlterColumnClause(mod.Name, mod.DeclaredType) + ";"
		if err := r.exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "reconcile: modify column %s", mod.Name)
		}
	}
	return nil
}

func (r *Reconciler) exec(ctx context.Context, stmt string) error {
	log.WithField("statement", stmt).Info("reconcile: applying schema change")
	_, err := r.Target.ExecContext(ctx, stmt)
	return err
}

// columnsFor fetches name -> declared_type for schema.table from a
// source connection, dialect-scoped per §4.6 ("MySQL scoping by
// table_schema, others by table name only").
func columnsFor(ctx context.Context, q types.SourceQuerier, dialect types.Dialect, schema, table string) (map[string]string, error) {
	var rows interface {
		Next() bool
		Scan(dest ...any) error
		Err() error
		Close() error
	}
	var err error
	if dialect == types.DialectMySQL {
		rows, err = q.QueryContext(ctx, `
			SELECT column_name, data_type
			FROM information_schema.columns
			WHERE table_name = ? AND table_schema = ?;
		`, table, schema)
	} else {
		rows, err = q.QueryContext(ctx, `
			SELECT column_name, data_type
			FROM information_schema.columns
			WHERE table_name = $1;
		`, table)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, declType string
		if err := rows.Scan(&name, &declType); err != nil {
			return nil, err
		}
		out[name] = declType
	}
	return out, rows.Err()
}

// columnsForTarget is columnsFor for the target connection; kept
// separate because TargetQuerier and SourceQuerier are distinct
// interfaces even though both are satisfied by *sql.DB/*sql.Tx.
func columnsForTarget(ctx context.Context, q types.TargetQuerier, dialect types.Dialect, schema, table string) (map[string]string, error) {
	var rows interface {
		Next() bool
		Scan(dest ...any) error
		Err() error
		Close() error
	}
	var err error
	if dialect == types.DialectMySQL {
		rows, err = q.QueryContext(ctx, `
			SELECT column_name, data_type
			FROM information_schema.columns
			WHERE table_name = ? AND table_schema = ?;
		`, table, schema)
	} else {
		rows, err = q.QueryContext(ctx, `
			SELECT column_name, data_type
			FROM information_schema.columns
			WHERE table_name = $1;
		`, table)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, declType string
		if err := rows.Scan(&name, &declType); err != nil {
			return nil, err
		}
		out[name] = declType
	}
	return out, rows.Err()
}
