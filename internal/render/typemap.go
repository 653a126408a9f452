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

import "strings"

// typeMap is the declared-type rewrite table from spec §4.4/§4.6. Lookup
// is exact-match on the base type name (the part before any "(");
// mapType re-attaches any parametric suffix ("(40)") to the mapped name.
var typeMap = map[string]string{
	"integer":           "int",
	"character varying": "varchar",
}

// mapType rewrites a source declared type to its target-dialect
// equivalent per the §4.4 mapping table. Types with no entry pass
// through unchanged, including any parametric suffix.
func mapType(declared string) string {
	base, suffix, _ := strings.Cut(declared, "(")
	base = strings.TrimSpace(base)
	mapped, ok := typeMap[base]
	if !ok {
		return declared
	}
	if suffix == "" {
		return mapped
	}
	return mapped + "(" + suffix
}

// isCharacterType reports whether declared contains the "character"
// token that the renderer uses, per §4.4, to decide single-quote
// literal wrapping. This is a substring match, not a type-system lookup:
// it matches "character varying", "character(10)", etc., exactly as the
// original prototype did.
func isCharacterType(declared string) bool {
	return strings.Contains(declared, "character")
}
