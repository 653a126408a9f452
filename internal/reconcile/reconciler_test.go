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

package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDiffS5SchemaAdd(t *testing.T) {
	source := map[string]string{"id": "int", "name": "varchar", "age": "int"}
	target := map[string]string{"id": "int", "name": "varchar"}

	diff := computeDiff(source, target)
	assert.Len(t, diff.Add, 1)
	assert.Equal(t, "age", diff.Add[0].Name)
	assert.Empty(t, diff.Drop)
	assert.Empty(t, diff.Modify)
}

func TestComputeDiffIdempotentOnSecondPass(t *testing.T) {
	cols := map[string]string{"id": "int", "name": "varchar"}
	diff := computeDiff(cols, cols)
	assert.True(t, diff.Empty())
}

func TestComputeDiffS6SchemaModifyCrossDialect(t *testing.T) {
	source := map[string]string{"id": "integer"}
	target := map[string]string{"id": "bigint"}

	diff := computeDiff(source, target)
	require := assert.New(t)
	require.Empty(diff.Add)
	require.Empty(diff.Drop)
	require.Len(diff.Modify, 1)
	require.Equal("id", diff.Modify[0].Name)
	require.Equal("int", diff.Modify[0].DeclaredType)
}

func TestComputeDiffDrop(t *testing.T) {
	source := map[string]string{"id": "int"}
	target := map[string]string{"id": "int", "legacy": "text"}

	diff := computeDiff(source, target)
	assert.Empty(t, diff.Add)
	assert.Len(t, diff.Drop, 1)
	assert.Equal(t, "legacy", diff.Drop[0].Name)
}

func TestDiffBucketOrdering(t *testing.T) {
	source := map[string]string{"z_add": "int", "mod_col": "integer"}
	target := map[string]string{"a_drop": "int", "mod_col": "bigint"}

	diff := computeDiff(source, target)
	// Property 5 constrains Add-before-Drop-before-Modify at the
	// Reconcile/apply level; here we just confirm each bucket is
	// populated correctly so apply's fixed ordering produces it.
	assert.Equal(t, "z_add", diff.Add[0].Name)
	assert.Equal(t, "a_drop", diff.Drop[0].Name)
	assert.Equal(t, "mod_col", diff.Modify[0].Name)
}
