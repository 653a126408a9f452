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

package render_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrepl/bridge/internal/render"
	"github.com/polyrepl/bridge/internal/types"
)

func widgetsEntry() *types.CatalogEntry {
	return &types.CatalogEntry{
		OID: 1, Namespace: "public", Table: "t",
		Columns: []types.ColumnInfo{
			{Name: "id", DeclaredType: "integer"},
			{Name: "name", DeclaredType: "character varying"},
		},
	}
}

func TestS1Insert(t *testing.T) {
	r := render.New(types.DialectPostgreSQL)
	rec := types.Insert{
		RelationOID: 1,
		New: types.TupleData{Columns: []types.ColumnValue{
			types.TextValue{Text: "1001"},
			types.TextValue{Text: "alice"},
		}},
	}
	stmt, _, emit, err := r.Render(rec, widgetsEntry())
	require.NoError(t, err)
	require.True(t, emit)
	assert.Equal(t, `INSERT INTO "public"."t" ("id", "name") VALUES (1001, 'alice');`, stmt)
}

func TestS2Update(t *testing.T) {
	r := render.New(types.DialectPostgreSQL)
	old := types.TupleData{Columns: []types.ColumnValue{
		types.TextValue{Text: "1001"}, types.TextValue{Text: "alice"},
	}}
	rec := types.Update{
		RelationOID: 1,
		Old:         &old,
		New: types.TupleData{Columns: []types.ColumnValue{
			types.TextValue{Text: "1001"}, types.TextValue{Text: "bob"},
		}},
	}
	stmt, _, emit, err := r.Render(rec, widgetsEntry())
	require.NoError(t, err)
	require.True(t, emit)
	assert.Equal(t, `UPDATE "public"."t" SET "name" = 'bob' WHERE "id" = 1001;`, stmt)
}

func TestS3Delete(t *testing.T) {
	r := render.New(types.DialectPostgreSQL)
	rec := types.Delete{
		RelationOID: 1,
		Old: types.TupleData{Columns: []types.ColumnValue{
			types.TextValue{Text: "1001"}, types.TextValue{Text: "bob"},
		}},
	}
	stmt, _, emit, err := r.Render(rec, widgetsEntry())
	require.NoError(t, err)
	require.True(t, emit)
	assert.Equal(t, `DELETE FROM "public"."t" WHERE "id" = 1001 AND "name" = 'bob';`, stmt)
}

func TestS4Truncate(t *testing.T) {
	r := render.New(types.DialectPostgreSQL)
	stmt, _, emit, err := r.Render(types.Truncate{RelationOIDs: []uint32{1}}, widgetsEntry())
	require.NoError(t, err)
	require.True(t, emit)
	assert.Equal(t, `TRUNCATE "public"."t";`, stmt)
}

func TestDeletePrefersPrimaryKeyWhenKnown(t *testing.T) {
	entry := widgetsEntry()
	entry.Columns[0].Primary = true
	r := render.New(types.DialectPostgreSQL)
	rec := types.Delete{
		RelationOID: 1,
		Old: types.TupleData{Columns: []types.ColumnValue{
			types.TextValue{Text: "1001"}, types.TextValue{Text: "bob"},
		}},
	}
	stmt, _, emit, err := r.Render(rec, entry)
	require.NoError(t, err)
	require.True(t, emit)
	assert.Equal(t, `DELETE FROM "public"."t" WHERE "id" = 1001;`, stmt)
}

func TestNullRendersAsNullRegardlessOfType(t *testing.T) {
	r := render.New(types.DialectPostgreSQL)
	rec := types.Insert{
		RelationOID: 1,
		New: types.TupleData{Columns: []types.ColumnValue{
			types.TextValue{Text: "1001"}, types.NullValue{},
		}},
	}
	stmt, _, _, err := r.Render(rec, widgetsEntry())
	require.NoError(t, err)
	assert.Contains(t, stmt, "NULL")
	assert.NotContains(t, stmt, "'NULL'")
}

func TestUpdateSuppressedWhenSetClauseEmpty(t *testing.T) {
	r := render.New(types.DialectPostgreSQL)
	old := types.TupleData{Columns: []types.ColumnValue{
		types.TextValue{Text: "1001"}, types.TextValue{Text: "alice"},
	}}
	rec := types.Update{
		RelationOID: 1,
		Old:         &old,
		New:         old, // identical: no SET clause possible
	}
	_, _, emit, err := r.Render(rec, widgetsEntry())
	require.NoError(t, err)
	assert.False(t, emit)
}

func TestUpdatePredicateCompleteness(t *testing.T) {
	// Property 6: SET columns and WHERE columns partition the full column set.
	r := render.New(types.DialectPostgreSQL)
	old := types.TupleData{Columns: []types.ColumnValue{
		types.TextValue{Text: "1001"}, types.TextValue{Text: "alice"},
	}}
	rec := types.Update{
		RelationOID: 1,
		Old:         &old,
		New: types.TupleData{Columns: []types.ColumnValue{
			types.TextValue{Text: "1001"}, types.TextValue{Text: "bob"},
		}},
	}
	stmt, _, emit, err := r.Render(rec, widgetsEntry())
	require.NoError(t, err)
	require.True(t, emit)

	setPart := stmt[strings.Index(stmt, "SET")+3 : strings.Index(stmt, "WHERE")]
	wherePart := stmt[strings.Index(stmt, "WHERE"):]
	assert.Contains(t, setPart, `"name"`)
	assert.NotContains(t, setPart, `"id" =`)
	assert.Contains(t, wherePart, `"id"`)
	assert.NotContains(t, wherePart, `"name" =`)
}

func TestMySQLIdentifierQuoting(t *testing.T) {
	r := render.New(types.DialectMySQL)
	rec := types.Insert{
		RelationOID: 1,
		New: types.TupleData{Columns: []types.ColumnValue{
			types.TextValue{Text: "1001"}, types.TextValue{Text: "alice"},
		}},
	}
	stmt, _, _, err := r.Render(rec, widgetsEntry())
	require.NoError(t, err)
	assert.Contains(t, stmt, "`id`")
	assert.Contains(t, stmt, "`name`")
}

func TestAlterColumnClauseDialects(t *testing.T) {
	pg := render.New(types.DialectPostgreSQL)
	assert.Equal(t, `ALTER COLUMN "id" TYPE int`, pg.AlterColumnClause("id", "integer"))

	my := render.New(types.DialectMySQL)
	assert.Equal(t, "MODIFY `id` int", my.AlterColumnClause("id", "integer"))
}
