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

package walreader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLSN(t *testing.T) {
	v, err := parseLSN("16/B374D848")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x16)<<32|uint64(0xB374D848), v)
}

func TestParseLSNRejectsGarbage(t *testing.T) {
	_, err := parseLSN("not-an-lsn")
	require.Error(t, err)
}

func TestPollIntervalDefault(t *testing.T) {
	r := New(nil, "slot1", "pub1")
	assert.Equal(t, defaultPollInterval, r.pollInterval())
}
