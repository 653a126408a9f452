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

// ColumnInfo is one column of a CatalogEntry: its name, its
// source-dialect declared type (carrying parametric info such as length
// or precision, per spec §4.3), and whether it participates in the
// table's primary key.
type ColumnInfo struct {
	Name         string
	DeclaredType string
	Primary      bool
}

// CatalogEntry maps a relation to its ordered column list, per spec §3.
type CatalogEntry struct {
	OID             uint32
	Namespace       string
	Table           string
	ReplicaIdentity uint8
	Columns         []ColumnInfo
}

// ColumnByIndex returns the ColumnInfo for the i'th column in tuple
// order, or false if the index is out of range.
func (e *CatalogEntry) ColumnByIndex(i int) (ColumnInfo, bool) {
	if i < 0 || i >= len(e.Columns) {
		return ColumnInfo{}, false
	}
	return e.Columns[i], true
}

// PrimaryKeyIndexes returns the tuple indexes of the columns flagged as
// primary key, in column order. An empty result means no primary key is
// known for this entry, in which case callers should fall back to the
// full-row predicate described in spec §4.4.
func (e *CatalogEntry) PrimaryKeyIndexes() []int {
	var idx []int
	for i, c := range e.Columns {
		if c.Primary {
			idx = append(idx, i)
		}
	}
	return idx
}
