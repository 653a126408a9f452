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
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrepl/bridge/internal/types"
)

func TestStartRejectsUnresolvedDialect(t *testing.T) {
	s := New()
	_, err := s.Start(context.Background(), Pair{
		SourceDialect: types.DialectUnknown,
		TargetDialect: types.DialectMySQL,
	})
	require.Error(t, err)
}

func TestStatusUnknownID(t *testing.T) {
	s := New()
	_, ok := s.Status("nonexistent")
	assert.False(t, ok)
}

func TestStopUnknownIDDoesNotPanic(t *testing.T) {
	s := New()
	assert.NotPanics(t, func() { s.Stop("nonexistent") })
}

func TestHasDeclaredTypesEmptyEntry(t *testing.T) {
	assert.False(t, hasDeclaredTypes(&types.CatalogEntry{}))
}

func TestHasDeclaredTypesPartiallyResolved(t *testing.T) {
	entry := &types.CatalogEntry{Columns: []types.ColumnInfo{
		{Name: "id", DeclaredType: "integer"},
		{Name: "name"},
	}}
	assert.False(t, hasDeclaredTypes(entry))
}

func TestHasDeclaredTypesFullyResolved(t *testing.T) {
	entry := &types.CatalogEntry{Columns: []types.ColumnInfo{
		{Name: "id", DeclaredType: "integer"},
		{Name: "name", DeclaredType: "character varying"},
	}}
	assert.True(t, hasDeclaredTypes(entry))
}

func TestRelationOID(t *testing.T) {
	oid, err := relationOID(types.Insert{RelationOID: 42})
	require.NoError(t, err)
	assert.EqualValues(t, 42, oid)

	oid, err = relationOID(types.Delete{RelationOID: 7})
	require.NoError(t, err)
	assert.EqualValues(t, 7, oid)
}

func TestRelationOIDRejectsUnsupportedRecord(t *testing.T) {
	_, err := relationOID(types.Begin{})
	require.Error(t, err)
}

func TestSourceQuerierOfNilPool(t *testing.T) {
	// A nil *types.SourcePool must not panic when adapted to a
	// types.SourceQuerier; callers only discover the misconfiguration
	// when they actually issue a query.
	assert.NotPanics(t, func() { sourceQuerierOf(nil) })
}
