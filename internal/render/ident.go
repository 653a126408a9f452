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

package render

import (
	"strings"

	"github.com/polyrepl/bridge/internal/types"
)

// quoteIdent renders name as a dialect-correct quoted identifier,
// escaping any embedded quote character by doubling it. Spec §4.4 notes
// that the literal prototype interpolates identifiers as-is; §9 flags
// that as a hardening gap this implementation closes.
func quoteIdent(dialect types.Dialect, name string) string {
	switch dialect {
	case types.DialectMySQL:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default: // postgresql, redshift
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

// qualifiedTable renders a possibly-namespaced table reference,
// quoting each part independently.
func qualifiedTable(dialect types.Dialect, schema, table string) string {
	if schema == "" {
		return quoteIdent(dialect, table)
	}
	return quoteIdent(dialect, schema) + "." + quoteIdent(dialect, table)
}
