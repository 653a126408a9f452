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

package catalog_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrepl/bridge/internal/catalog"
	"github.com/polyrepl/bridge/internal/types"
)

func TestObserveThenGet(t *testing.T) {
	c := catalog.New()
	rel := &types.Relation{
		OID: 16400, Namespace: "public", Name: "widgets", ReplicaIdentity: 'd',
		Columns: []types.ColumnMeta{{Name: "id"}, {Name: "label"}},
	}
	c.Observe(rel)

	entry, ok := c.Get(16400)
	require.True(t, ok)
	assert.Equal(t, "public", entry.Namespace)
	assert.Equal(t, "widgets", entry.Table)
	require.Len(t, entry.Columns, 2)
	assert.Equal(t, "id", entry.Columns[0].Name)
	assert.Equal(t, "label", entry.Columns[1].Name)
}

func TestGetUnknownOID(t *testing.T) {
	c := catalog.New()
	_, ok := c.Get(999)
	assert.False(t, ok)
}

func TestObservePreservesPriorDeclaredTypes(t *testing.T) {
	c := catalog.New()
	c.Observe(&types.Relation{
		OID: 1, Namespace: "public", Name: "t",
		Columns: []types.ColumnMeta{{Name: "id"}, {Name: "label"}},
	})

	// Simulate a prior Lookup having resolved declared types/PK flags by
	// mutating the cached entry directly (Lookup itself needs a live DB
	// connection, exercised separately).
	entry, _ := c.Get(1)
	entry.Columns[0].DeclaredType = "integer"
	entry.Columns[0].Primary = true
	entry.Columns[1].DeclaredType = "character varying(40)"

	// A re-announce of the same relation (e.g. replica identity change)
	// must not discard that resolution.
	c.Observe(&types.Relation{
		OID: 1, Namespace: "public", Name: "t", ReplicaIdentity: 'f',
		Columns: []types.ColumnMeta{{Name: "id"}, {Name: "label"}},
	})

	reentry, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, uint8('f'), reentry.ReplicaIdentity)
	assert.Equal(t, "integer", reentry.Columns[0].DeclaredType)
	assert.True(t, reentry.Columns[0].Primary)
	assert.Equal(t, "character varying(40)", reentry.Columns[1].DeclaredType)
}

func TestLookupUnknownOIDErrors(t *testing.T) {
	c := catalog.New()
	_, err := c.Lookup(context.Background(), nil, types.DialectPostgreSQL, 42)
	require.Error(t, err)
}
