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

package apply_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrepl/bridge/internal/apply"
	"github.com/polyrepl/bridge/internal/types"
)

func TestApplySkipsEmptyStatement(t *testing.T) {
	// An empty statement (the render package's "no event emitted" case)
	// must never reach the target connection, so a nil Target is safe
	// here precisely because Apply short-circuits before using it.
	applier := apply.New(nil)
	err := applier.Apply(context.Background(), "", nil)
	require.NoError(t, err)
}

func TestApplyObserversDoNotPanic(t *testing.T) {
	applier := apply.New(nil)
	assert.NotPanics(t, func() {
		applier.ObserveBegin(types.Begin{LSN: 1})
		applier.ObserveCommit(types.Commit{CommitLSN: 1, EndLSN: 2})
	})
}
