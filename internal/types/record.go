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

// Package types contains the data types shared by every stage of the
// replication pipeline: the decoded change-record union, catalog
// metadata, and the connection-pool wrappers. Keeping them in one
// dependency-free package lets the decoder, renderer, applier,
// reconciler and supervisor all compose without importing each other.
package types

import "time"

// ChangeRecord is the tagged union produced by the decoder (C2). Each
// concrete type below implements it via an unexported marker method so
// that the set of variants is sealed to this package.
type ChangeRecord interface {
	isChangeRecord()
}

// Begin marks the start of a source transaction.
type Begin struct {
	LSN      uint64
	XID      uint32
	Time     time.Time // derived from the 2000-01-01 epoch, microsecond precision
	RawUsec  int64     // preserved so Encode can reproduce the frame exactly
}

func (Begin) isChangeRecord() {}

// Commit terminates the transaction opened by the preceding Begin.
type Commit struct {
	Flags     uint8
	CommitLSN uint64
	EndLSN    uint64
	Time      time.Time
	RawUsec   int64
}

func (Commit) isChangeRecord() {}

// ColumnMeta describes one column of a Relation, in physical tuple
// order; the ordering is authoritative (spec §3).
type ColumnMeta struct {
	Flags        uint8
	Name         string
	TypeOID      uint32
	TypeModifier int32
}

// Relation announces (or re-announces) a table's shape. The OID is
// stable for the relation's lifetime in the current stream.
type Relation struct {
	OID             uint32
	XID             uint32
	Namespace       string
	Name            string
	ReplicaIdentity uint8
	Columns         []ColumnMeta
}

func (Relation) isChangeRecord() {}

// ColumnValue is the sealed union of possible tuple column encodings.
type ColumnValue interface {
	isColumnValue()
}

// NullValue represents an SQL NULL.
type NullValue struct{}

func (NullValue) isColumnValue() {}

// UnchangedValue is the TOASTed-value sentinel: present in the tuple,
// but never materialized as a literal (spec §3, §4.4).
type UnchangedValue struct{}

func (UnchangedValue) isColumnValue() {}

// TextValue carries the textual encoding of a column's value as emitted
// by the source.
type TextValue struct {
	Text string
}

func (TextValue) isColumnValue() {}

// TupleData is an ordered sequence of ColumnValue, one per column of the
// owning relation.
type TupleData struct {
	Columns []ColumnValue
}

// Insert carries a newly written row.
type Insert struct {
	RelationOID uint32
	New         TupleData
}

func (Insert) isChangeRecord() {}

// Update carries a row change. Old is nil when the source's
// replica identity doesn't provide a pre-image (spec §3, §9).
type Update struct {
	RelationOID uint32
	Old         *TupleData
	New         TupleData
}

func (Update) isChangeRecord() {}

// Delete carries a removed row.
type Delete struct {
	RelationOID uint32
	Old         TupleData
}

func (Delete) isChangeRecord() {}

// Truncate carries one or more truncated relations.
type Truncate struct {
	XID          uint32
	RelationOIDs []uint32
	Options      uint8
}

func (Truncate) isChangeRecord() {}
