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

// Package catalog holds the relation_oid -> schema/table/columns cache
// described in spec §4.3, plus the on-first-need system-catalog lookups
// that fill in declared types for relations already announced to it.
package catalog

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/polyrepl/bridge/internal/types"
)

// Cache is per-worker, never process-global (spec §5: "each worker owns
// its own database handles" extends to catalog state too, so two pairs
// sharing a table name never see each other's schema changes).
type Cache struct {
	mu      sync.RWMutex
	entries map[uint32]*types.CatalogEntry
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[uint32]*types.CatalogEntry)}
}

// Observe records a decoded Relation message as the authoritative shape
// for its OID, replacing whatever was previously cached (spec §4.3
// point 1). A Relation always wins over a catalog-lookup-derived entry:
// it carries the OID and column order that are specific to the stream.
func (c *Cache) Observe(rel *types.Relation) {
	cols := make([]types.ColumnInfo, len(rel.Columns))
	for i, cm := range rel.Columns {
		cols[i] = types.ColumnInfo{Name: cm.Name}
	}
	entry := &types.CatalogEntry{
		OID:             rel.OID,
		Namespace:       rel.Namespace,
		Table:           rel.Name,
		ReplicaIdentity: rel.ReplicaIdentity,
		Columns:         cols,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.entries[rel.OID]; ok {
		// Carry forward declared types and primary-key flags resolved by
		// a prior Lookup, matched by column name, so a Relation replay
		// (e.g. after a replica-identity change) doesn't discard a
		// system-catalog resolution that's still valid.
		byName := make(map[string]types.ColumnInfo, len(prev.Columns))
		for _, pc := range prev.Columns {
			byName[pc.Name] = pc
		}
		for i, nc := range cols {
			if pc, ok := byName[nc.Name]; ok {
				cols[i].DeclaredType = pc.DeclaredType
				cols[i].Primary = pc.Primary
			}
		}
	}
	c.entries[rel.OID] = entry
}

// Get returns the cached entry for oid, if any.
func (c *Cache) Get(oid uint32) (*types.CatalogEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[oid]
	return entry, ok
}

// Lookup resolves column declared-types (and where cheap, primary-key
// membership) for oid via a system-catalog query against pool, merging
// the result into the cached entry keyed by column name (spec §4.3
// point 2). oid must already have an entry (from a prior Observe) naming
// its schema and table; Lookup never invents column order on its own.
func (c *Cache) Lookup(ctx context.Context, pool types.SourceQuerier, dialect types.Dialect, oid uint32) (*types.CatalogEntry, error) {
	c.mu.RLock()
	entry, ok := c.entries[oid]
	c.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("catalog: lookup requested for unknown relation oid %d (no prior Relation message seen)", oid)
	}

	var declared map[string]string
	var primary map[string]bool
	var err error
	switch dialect {
	case types.DialectPostgreSQL, types.DialectRedshift:
		declared, primary, err = lookupPostgres(ctx, pool, entry.Namespace, entry.Table)
	case types.DialectMySQL:
		declared, primary, err = lookupMySQL(ctx, pool, entry.Namespace, entry.Table)
	default:
		return nil, errors.Errorf("catalog: lookup: unsupported dialect %s", dialect)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "catalog: lookup %s.%s", entry.Namespace, entry.Table)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Re-fetch in case a concurrent Observe replaced the entry while the
	// query above was in flight.
	entry, ok = c.entries[oid]
	if !ok {
		return nil, errors.Errorf("catalog: relation oid %d evicted during lookup", oid)
	}
	for i, col := range entry.Columns {
		if dt, ok := declared[col.Name]; ok {
			entry.Columns[i].DeclaredType = dt
		}
		if primary[col.Name] {
			entry.Columns[i].Primary = true
		}
	}
	return entry, nil
}
