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

// Package render translates a decoded change record and its catalog
// entry into a single SQL statement for a target dialect, per spec §4.4.
package render

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/polyrepl/bridge/internal/types"
)

// Renderer builds DML statements for one target dialect. It carries no
// connection state; Render is a pure function of its arguments.
type Renderer struct {
	Dialect types.Dialect
}

// New returns a Renderer targeting dialect.
func New(dialect types.Dialect) *Renderer {
	return &Renderer{Dialect: dialect}
}

// Render translates rec into a statement using entry for column order,
// declared types, and (optionally) primary-key membership. emit is false
// when §4.4 says no statement should be produced — an UPDATE whose SET
// or WHERE clause would be empty, or a DELETE whose WHERE clause would
// be empty because every key value is Unchanged — in which case stmt and args are zero
// values and err is nil; the caller is responsible for reporting the
// skipped event, per spec §4.4.
//
// Values are rendered as SQL literal text, exactly as the original
// prototype does (quoted when the declared type contains "character",
// bare otherwise); args is always empty for the statements this
// function produces today, but is part of the signature so a future
// caller wiring true parameterization has somewhere to put them.
func (r *Renderer) Render(rec types.ChangeRecord, entry *types.CatalogEntry) (stmt string, args []any, emit bool, err error) {
	switch v := rec.(type) {
	case types.Insert:
		stmt, err = r.renderInsert(v, entry)
		return stmt, nil, err == nil, err
	case types.Delete:
		stmt, emit, err = r.renderDelete(v, entry)
		return stmt, nil, emit, err
	case types.Update:
		stmt, emit, err = r.renderUpdate(v, entry)
		return stmt, nil, emit, err
	case types.Truncate:
		// Truncate carries multiple relation OIDs but the catalog entry
		// passed in is for one table; the supervisor calls Render once
		// per named relation in the message (spec §4.4: "TRUNCATE <table>;").
		stmt = "TRUNCATE " + qualifiedTable(r.Dialect, entry.Namespace, entry.Table) + ";"
		return stmt, nil, true, nil
	default:
		return "", nil, false, errors.Errorf("render: unsupported record type %T", rec)
	}
}

// literal renders one column value per §4.4's literal-encoding rule.
// ok is false for an Unchanged-TOAST value, which callers must omit
// from SET/WHERE clauses entirely rather than rendering a token for it.
func literal(val types.ColumnValue, declaredType string) (text string, ok bool) {
	switch v := val.(type) {
	case types.NullValue:
		return "NULL", true
	case types.UnchangedValue:
		return "", false
	case types.TextValue:
		if isCharacterType(declaredType) {
			return "'" + strings.ReplaceAll(v.Text, "'", "''") + "'", true
		}
		return v.Text, true
	default:
		return "", false
	}
}

func (r *Renderer) renderInsert(ins types.Insert, entry *types.CatalogEntry) (string, error) {
	if len(ins.New.Columns) != len(entry.Columns) {
		return "", errors.Errorf("render: insert has %d values but catalog entry %s.%s has %d columns",
			len(ins.New.Columns), entry.Namespace, entry.Table, len(entry.Columns))
	}

	var names, values []string
	for i, col := range entry.Columns {
		text, ok := literal(ins.New.Columns[i], col.DeclaredType)
		if !ok {
			// An Unchanged value has no place in an Insert; treat it as
			// NULL rather than drop the column, since INSERT must supply
			// a value for every listed column.
			text = "NULL"
		}
		names = append(names, quoteIdent(r.Dialect, col.Name))
		values = append(values, text)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(qualifiedTable(r.Dialect, entry.Namespace, entry.Table))
	b.WriteString(" (")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(values, ", "))
	b.WriteString(");")
	return b.String(), nil
}

// renderDelete builds the WHERE predicate from the primary key when
// entry carries one (the §9 supplemental preference), falling back to
// the full old-row predicate from §4.4 when it doesn't.
func (r *Renderer) renderDelete(del types.Delete, entry *types.CatalogEntry) (string, bool, error) {
	if len(del.Old.Columns) != len(entry.Columns) {
		return "", false, errors.Errorf("render: delete has %d old values but catalog entry %s.%s has %d columns",
			len(del.Old.Columns), entry.Namespace, entry.Table, len(entry.Columns))
	}

	indexes := entry.PrimaryKeyIndexes()
	if len(indexes) == 0 {
		for i := range entry.Columns {
			indexes = append(indexes, i)
		}
	}

	var conditions []string
	for _, i := range indexes {
		col := entry.Columns[i]
		text, ok := literal(del.Old.Columns[i], col.DeclaredType)
		if !ok {
			continue
		}
		conditions = append(conditions, quoteIdent(r.Dialect, col.Name)+" = "+text)
	}
	if len(conditions) == 0 {
		return "", false, nil
	}

	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(qualifiedTable(r.Dialect, entry.Namespace, entry.Table))
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(conditions, " AND "))
	b.WriteString(";")
	return b.String(), true, nil
}

// renderUpdate builds SET from every column where old != new, and WHERE
// from the primary key (when known) or, per §4.4, from every column
// where old == new — the "unchanged columns as ad-hoc row identifier"
// rule. Either clause being empty suppresses the statement (§4.4).
func (r *Renderer) renderUpdate(upd types.Update, entry *types.CatalogEntry) (string, bool, error) {
	if len(upd.New.Columns) != len(entry.Columns) {
		return "", false, errors.Errorf("render: update has %d new values but catalog entry %s.%s has %d columns",
			len(upd.New.Columns), entry.Namespace, entry.Table, len(entry.Columns))
	}
	if upd.Old != nil && len(upd.Old.Columns) != len(entry.Columns) {
		return "", false, errors.Errorf("render: update has %d old values but catalog entry %s.%s has %d columns",
			len(upd.Old.Columns), entry.Namespace, entry.Table, len(entry.Columns))
	}

	var sets []string
	for i, col := range entry.Columns {
		newText, newOK := literal(upd.New.Columns[i], col.DeclaredType)
		if !newOK {
			// New side is Unchanged-TOAST: nothing to assign.
			continue
		}
		if upd.Old != nil {
			oldText, oldOK := literal(upd.Old.Columns[i], col.DeclaredType)
			if oldOK && oldText == newText {
				continue // old == new: not part of SET.
			}
		}
		sets = append(sets, quoteIdent(r.Dialect, col.Name)+" = "+newText)
	}

	var conditions []string
	if indexes := entry.PrimaryKeyIndexes(); len(indexes) > 0 && upd.Old != nil {
		for _, i := range indexes {
			col := entry.Columns[i]
			text, ok := literal(upd.Old.Columns[i], col.DeclaredType)
			if !ok {
				continue
			}
			conditions = append(conditions, quoteIdent(r.Dialect, col.Name)+" = "+text)
		}
	} else if upd.Old != nil {
		for i, col := range entry.Columns {
			oldText, oldOK := literal(upd.Old.Columns[i], col.DeclaredType)
			newText, newOK := literal(upd.New.Columns[i], col.DeclaredType)
			if oldOK && newOK && oldText == newText {
				conditions = append(conditions, quoteIdent(r.Dialect, col.Name)+" = "+oldText)
			}
		}
	}

	if len(sets) == 0 || len(conditions) == 0 {
		return "", false, nil
	}

	var b strings.Builder
	b.WriteString("UPDATE ")
	b.WriteString(qualifiedTable(r.Dialect, entry.Namespace, entry.Table))
	b.WriteString(" SET ")
	b.WriteString(strings.Join(sets, ", "))
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(conditions, " AND "))
	b.WriteString(";")
	return b.String(), true, nil
}

// AlterColumnClause renders the dialect-specific ALTER/MODIFY fragment
// used by the reconciler for a type change (§4.4: postgresql uses
// ALTER COLUMN ... TYPE ..., mysql uses MODIFY ...).
func (r *Renderer) AlterColumnClause(column, targetType string) string {
	mapped := mapType(targetType)
	switch r.Dialect {
	case types.DialectMySQL:
		return "MODIFY " + quoteIdent(r.Dialect, column) + " " + mapped
	default:
		return "ALTER COLUMN " + quoteIdent(r.Dialect, column) + " TYPE " + mapped
	}
}

// MapType exposes the §4.4 type-mapping table to other packages (the
// reconciler compares post-mapping declared types).
func MapType(declared string) string { return mapType(declared) }

// QuoteIdent exposes dialect-correct identifier quoting to other
// packages (the reconciler's ADD/DROP column statements).
func QuoteIdent(dialect types.Dialect, name string) string { return quoteIdent(dialect, name) }

// QualifiedTable exposes namespaced table-reference quoting.
func QualifiedTable(dialect types.Dialect, schema, table string) string {
	return qualifiedTable(dialect, schema, table)
}
