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

package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrepl/bridge/internal/config"
	"github.com/polyrepl/bridge/internal/types"
)

func validConfig() *config.Config {
	return &config.Config{
		SourceDialectToken: "postgresql",
		SourceConn:         "postgres://source",
		TargetDialectToken: "mysql",
		TargetConn:         "mysql://target",
		Table:              "widgets",
		Slot:               "slot1",
		PublicationName:    "pub1",
	}
}

func TestPreflightResolvesDialects(t *testing.T) {
	c := validConfig()
	require.NoError(t, c.Preflight())
	assert.Equal(t, types.DialectPostgreSQL, c.SourceDialect)
	assert.Equal(t, types.DialectMySQL, c.TargetDialect)
}

func TestPreflightRejectsUnsupportedDialect(t *testing.T) {
	c := validConfig()
	c.SourceDialectToken = "oracle"
	require.Error(t, c.Preflight())
}

func TestPreflightRequiresSlotForPostgresSource(t *testing.T) {
	c := validConfig()
	c.Slot = ""
	require.Error(t, c.Preflight())
}

func TestPreflightRequiresTable(t *testing.T) {
	c := validConfig()
	c.Table = ""
	require.Error(t, c.Preflight())
}

func TestPreflightRequiresConnStrings(t *testing.T) {
	c := validConfig()
	c.SourceConn = ""
	require.Error(t, c.Preflight())
}
