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

// Package wal decodes the framed logical-decoding protocol described in
// spec §6 into types.ChangeRecord values, and re-encodes them. The frame
// layout mirrors a Postgres pgoutput-style stream closely enough to
// share field names with it, but it is this project's own bespoke
// protocol, not a generic pgoutput parser.
package wal

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"

	"github.com/polyrepl/bridge/internal/types"
)

// epoch is the fixed reference point for source timestamps (spec §4.2).
var epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// DecodeError identifies the tag and byte offset of a malformed frame,
// per spec §4.2's "Errors" paragraph.
type DecodeError struct {
	Tag    byte
	Offset int
	Reason string
}

func (e *DecodeError) Error() string {
	return errors.Errorf("wal: decode error at tag %q offset %d: %s", tagLabel(e.Tag), e.Offset, e.Reason).Error()
}

func tagLabel(tag byte) string {
	if tag == 0 {
		return "<none>"
	}
	return string(tag)
}

// reader is a cursor over a frame payload. It never panics on a short
// buffer; every read checks bounds and reports a *DecodeError instead.
type reader struct {
	buf []byte
	pos int
	tag byte
}

func newReader(buf []byte) (*reader, error) {
	if len(buf) == 0 {
		return nil, &DecodeError{Offset: 0, Reason: "empty payload"}
	}
	return &reader{buf: buf, pos: 1, tag: buf[0]}, nil
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.buf) {
		return &DecodeError{Tag: r.tag, Offset: r.pos, Reason: "short buffer"}
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

// cstr reads a NUL-terminated UTF-8 string (spec §6 "cstr").
func (r *reader) cstr() (string, error) {
	idx := -1
	for i := r.pos; i < len(r.buf); i++ {
		if r.buf[i] == 0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", &DecodeError{Tag: r.tag, Offset: r.pos, Reason: "unterminated string"}
	}
	s := string(r.buf[r.pos:idx])
	r.pos = idx + 1
	return s, nil
}

// bytesN reads exactly n raw bytes.
func (r *reader) bytesN(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func usecToTime(usec int64) time.Time {
	return epoch.Add(time.Duration(usec) * time.Microsecond)
}

// Decode parses a single raw frame into a types.ChangeRecord, dispatching
// on the leading tag byte per spec §4.2.
func Decode(payload []byte) (types.ChangeRecord, error) {
	r, err := newReader(payload)
	if err != nil {
		return nil, err
	}
	switch r.tag {
	case 'B':
		return decodeBegin(r)
	case 'C':
		return decodeCommit(r)
	case 'R':
		return decodeRelation(r)
	case 'I':
		return decodeInsert(r)
	case 'U':
		return decodeUpdate(r)
	case 'D':
		return decodeDelete(r)
	case 'T':
		return decodeTruncate(r)
	default:
		return nil, &DecodeError{Tag: r.tag, Offset: 0, Reason: "unknown message tag"}
	}
}

func decodeBegin(r *reader) (types.ChangeRecord, error) {
	lsn, err := r.u64()
	if err != nil {
		return nil, err
	}
	usec, err := r.i64()
	if err != nil {
		return nil, err
	}
	xid, err := r.u32()
	if err != nil {
		return nil, err
	}
	return types.Begin{LSN: lsn, XID: xid, Time: usecToTime(usec), RawUsec: usec}, nil
}

func decodeCommit(r *reader) (types.ChangeRecord, error) {
	flags, err := r.u8()
	if err != nil {
		return nil, err
	}
	commitLSN, err := r.u64()
	if err != nil {
		return nil, err
	}
	endLSN, err := r.u64()
	if err != nil {
		return nil, err
	}
	usec, err := r.i64()
	if err != nil {
		return nil, err
	}
	return types.Commit{
		Flags: flags, CommitLSN: commitLSN, EndLSN: endLSN,
		Time: usecToTime(usec), RawUsec: usec,
	}, nil
}

func decodeRelation(r *reader) (types.ChangeRecord, error) {
	oid, err := r.u32()
	if err != nil {
		return nil, err
	}
	xid, err := r.u32()
	if err != nil {
		return nil, err
	}
	namespace, err := r.cstr()
	if err != nil {
		return nil, err
	}
	name, err := r.cstr()
	if err != nil {
		return nil, err
	}
	replicaIdentity, err := r.u8()
	if err != nil {
		return nil, err
	}
	ncols, err := r.u16()
	if err != nil {
		return nil, err
	}
	cols := make([]types.ColumnMeta, ncols)
	for i := range cols {
		flags, err := r.u8()
		if err != nil {
			return nil, err
		}
		colName, err := r.cstr()
		if err != nil {
			return nil, err
		}
		typeOID, err := r.u32()
		if err != nil {
			return nil, err
		}
		typeMod, err := r.i32()
		if err != nil {
			return nil, err
		}
		cols[i] = types.ColumnMeta{Flags: flags, Name: colName, TypeOID: typeOID, TypeModifier: typeMod}
	}
	return types.Relation{
		OID: oid, XID: xid, Namespace: namespace, Name: name,
		ReplicaIdentity: replicaIdentity, Columns: cols,
	}, nil
}

// decodeTupleData reads the `u16 ncols | ncols x ColumnValue` shape
// shared by Insert/Update/Delete (spec §4.2, §6).
func decodeTupleData(r *reader) (types.TupleData, error) {
	ncols, err := r.u16()
	if err != nil {
		return types.TupleData{}, err
	}
	cols := make([]types.ColumnValue, ncols)
	for i := range cols {
		category, err := r.u8()
		if err != nil {
			return types.TupleData{}, err
		}
		switch category {
		case 'n':
			cols[i] = types.NullValue{}
		case 'u':
			cols[i] = types.UnchangedValue{}
		case 't':
			length, err := r.u32()
			if err != nil {
				return types.TupleData{}, err
			}
			raw, err := r.bytesN(int(length))
			if err != nil {
				return types.TupleData{}, err
			}
			cols[i] = types.TextValue{Text: string(raw)}
		default:
			return types.TupleData{}, &DecodeError{
				Tag: r.tag, Offset: r.pos - 1,
				Reason: "unexpected tuple-value category byte",
			}
		}
	}
	return types.TupleData{Columns: cols}, nil
}

func decodeInsert(r *reader) (types.ChangeRecord, error) {
	oid, err := r.u32()
	if err != nil {
		return nil, err
	}
	marker, err := r.u8()
	if err != nil {
		return nil, err
	}
	if marker != 'N' {
		return nil, &DecodeError{Tag: r.tag, Offset: r.pos - 1, Reason: "expected 'N' tuple marker for insert"}
	}
	tuple, err := decodeTupleData(r)
	if err != nil {
		return nil, err
	}
	return types.Insert{RelationOID: oid, New: tuple}, nil
}

// decodeUpdate honors the tuple-type marker preceding each TupleData
// rather than assuming a fixed layout, per spec §4.2/§9: 'K' or 'O'
// precede an old-tuple image, 'N' always precedes the new-tuple image.
func decodeUpdate(r *reader) (types.ChangeRecord, error) {
	oid, err := r.u32()
	if err != nil {
		return nil, err
	}
	marker, err := r.u8()
	if err != nil {
		return nil, err
	}

	var old *types.TupleData
	switch marker {
	case 'K', 'O':
		oldTuple, err := decodeTupleData(r)
		if err != nil {
			return nil, err
		}
		old = &oldTuple

		// A key/old image is always followed by the new-tuple image,
		// itself marked 'N'.
		nMarker, err := r.u8()
		if err != nil {
			return nil, err
		}
		if nMarker != 'N' {
			return nil, &DecodeError{Tag: r.tag, Offset: r.pos - 1, Reason: "expected 'N' tuple marker after old image"}
		}
	case 'N':
		// No old image; marker already consumed belongs to the new tuple.
	default:
		return nil, &DecodeError{Tag: r.tag, Offset: r.pos - 1, Reason: "unexpected update tuple-type marker"}
	}

	newTuple, err := decodeTupleData(r)
	if err != nil {
		return nil, err
	}
	return types.Update{RelationOID: oid, Old: old, New: newTuple}, nil
}

func decodeDelete(r *reader) (types.ChangeRecord, error) {
	oid, err := r.u32()
	if err != nil {
		return nil, err
	}
	marker, err := r.u8()
	if err != nil {
		return nil, err
	}
	if marker != 'K' && marker != 'O' {
		return nil, &DecodeError{Tag: r.tag, Offset: r.pos - 1, Reason: "expected 'K' or 'O' tuple marker for delete"}
	}
	tuple, err := decodeTupleData(r)
	if err != nil {
		return nil, err
	}
	return types.Delete{RelationOID: oid, Old: tuple}, nil
}

func decodeTruncate(r *reader) (types.ChangeRecord, error) {
	xid, err := r.u32()
	if err != nil {
		return nil, err
	}
	nrel, err := r.u32()
	if err != nil {
		return nil, err
	}
	options, err := r.u8()
	if err != nil {
		return nil, err
	}
	oids := make([]uint32, nrel)
	for i := range oids {
		oid, err := r.u32()
		if err != nil {
			return nil, err
		}
		oids[i] = oid
	}
	return types.Truncate{XID: xid, RelationOIDs: oids, Options: options}, nil
}
