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

package binlogreader

import (
	"testing"

	"github.com/siddontang/go-mysql/replication"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrepl/bridge/internal/types"
)

func newTestReader() *MySQLReader {
	return &MySQLReader{
		allow:   Allowed{Schema: "app", Table: "widgets"},
		columns: []string{"id", "label"},
	}
}

func TestTupleFromRow(t *testing.T) {
	r := newTestReader()
	tuple, err := r.tupleFromRow([]any{int64(1001), "alice"})
	require.NoError(t, err)
	require.Len(t, tuple.Columns, 2)
	assert.Equal(t, types.TextValue{Text: "1001"}, tuple.Columns[0])
	assert.Equal(t, types.TextValue{Text: "alice"}, tuple.Columns[1])
}

func TestTupleFromRowNull(t *testing.T) {
	r := newTestReader()
	tuple, err := r.tupleFromRow([]any{int64(1001), nil})
	require.NoError(t, err)
	assert.Equal(t, types.NullValue{}, tuple.Columns[1])
}

func TestTupleFromRowWrongArity(t *testing.T) {
	r := newTestReader()
	_, err := r.tupleFromRow([]any{int64(1001)})
	require.Error(t, err)
}

func TestTranslateInsert(t *testing.T) {
	r := newTestReader()
	rowsEvent := &replication.RowsEvent{
		Rows: [][]any{{int64(1001), "alice"}},
	}
	recs, err := r.translate(replication.WRITE_ROWS_EVENTv2, rowsEvent)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	ins, ok := recs[0].(types.Insert)
	require.True(t, ok)
	assert.Len(t, ins.New.Columns, 2)
}

func TestTranslateUpdateRequiresEvenRows(t *testing.T) {
	r := newTestReader()
	rowsEvent := &replication.RowsEvent{
		Rows: [][]any{{int64(1001), "alice"}},
	}
	_, err := r.translate(replication.UPDATE_ROWS_EVENTv2, rowsEvent)
	require.Error(t, err)
}

func TestTranslateDelete(t *testing.T) {
	r := newTestReader()
	rowsEvent := &replication.RowsEvent{
		Rows: [][]any{{int64(1001), "alice"}},
	}
	recs, err := r.translate(replication.DELETE_ROWS_EVENTv2, rowsEvent)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	_, ok := recs[0].(types.Delete)
	assert.True(t, ok)
}
