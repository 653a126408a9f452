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

package wal

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/polyrepl/bridge/internal/types"
)

// Encode is the inverse of Decode: it renders a types.ChangeRecord back
// into the wire frame described by spec §6. Begin and Commit round-trip
// through RawUsec rather than re-deriving microseconds from Time, so
// Encode(Decode(p)) == p for any well-formed frame (spec §8, property 1)
// — except a frame whose Update/Delete old image was marked 'K' rather
// than 'O'; see the marker notes below.
func Encode(rec types.ChangeRecord) ([]byte, error) {
	var buf bytes.Buffer
	switch v := rec.(type) {
	case types.Begin:
		buf.WriteByte('B')
		writeU64(&buf, v.LSN)
		writeI64(&buf, v.RawUsec)
		writeU32(&buf, v.XID)
	case types.Commit:
		buf.WriteByte('C')
		buf.WriteByte(v.Flags)
		writeU64(&buf, v.CommitLSN)
		writeU64(&buf, v.EndLSN)
		writeI64(&buf, v.RawUsec)
	case types.Relation:
		buf.WriteByte('R')
		writeU32(&buf, v.OID)
		writeU32(&buf, v.XID)
		writeCStr(&buf, v.Namespace)
		writeCStr(&buf, v.Name)
		buf.WriteByte(v.ReplicaIdentity)
		if len(v.Columns) > 0xFFFF {
			return nil, errors.Errorf("wal: encode: relation %s.%s has too many columns (%d)", v.Namespace, v.Name, len(v.Columns))
		}
		writeU16(&buf, uint16(len(v.Columns)))
		for _, c := range v.Columns {
			buf.WriteByte(c.Flags)
			writeCStr(&buf, c.Name)
			writeU32(&buf, c.TypeOID)
			writeI32(&buf, c.TypeModifier)
		}
	case types.Insert:
		buf.WriteByte('I')
		writeU32(&buf, v.RelationOID)
		buf.WriteByte('N')
		if err := writeTupleData(&buf, v.New); err != nil {
			return nil, err
		}
	case types.Update:
		buf.WriteByte('U')
		writeU32(&buf, v.RelationOID)
		if v.Old != nil {
			// types.Update doesn't carry which marker the source frame
			// used for its old image ('K', key-only, or 'O', full row);
			// Encode always emits 'O'. So Encode(Decode(F)) == F (§8
			// property 1) only holds for frames that were already 'O'
			// to begin with — a 'K'-marked frame decodes fine but
			// re-encodes as a wider 'O' frame, not byte-identical to F.
			buf.WriteByte('O')
			if err := writeTupleData(&buf, *v.Old); err != nil {
				return nil, err
			}
			buf.WriteByte('N')
		} else {
			buf.WriteByte('N')
		}
		if err := writeTupleData(&buf, v.New); err != nil {
			return nil, err
		}
	case types.Delete:
		buf.WriteByte('D')
		writeU32(&buf, v.RelationOID)
		// Same caveat as Update's old image: a 'K'-marked source Delete
		// frame re-encodes as 'O', so the round-trip isn't byte-exact
		// for those frames even though it decodes to an equal record.
		buf.WriteByte('O')
		if err := writeTupleData(&buf, v.Old); err != nil {
			return nil, err
		}
	case types.Truncate:
		buf.WriteByte('T')
		writeU32(&buf, v.XID)
		writeU32(&buf, uint32(len(v.RelationOIDs)))
		buf.WriteByte(v.Options)
		for _, oid := range v.RelationOIDs {
			writeU32(&buf, oid)
		}
	default:
		return nil, errors.Errorf("wal: encode: unsupported record type %T", rec)
	}
	return buf.Bytes(), nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeI32(buf *bytes.Buffer, v int32) { writeU32(buf, uint32(v)) }

func writeU64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeI64(buf *bytes.Buffer, v int64) { writeU64(buf, uint64(v)) }

func writeCStr(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func writeTupleData(buf *bytes.Buffer, t types.TupleData) error {
	if len(t.Columns) > 0xFFFF {
		return errors.Errorf("wal: encode: tuple has too many columns (%d)", len(t.Columns))
	}
	writeU16(buf, uint16(len(t.Columns)))
	for _, col := range t.Columns {
		switch c := col.(type) {
		case types.NullValue:
			buf.WriteByte('n')
		case types.UnchangedValue:
			buf.WriteByte('u')
		case types.TextValue:
			buf.WriteByte('t')
			raw := []byte(c.Text)
			writeU32(buf, uint32(len(raw)))
			buf.Write(raw)
		default:
			return errors.Errorf("wal: encode: unsupported column value type %T", col)
		}
	}
	return nil
}
