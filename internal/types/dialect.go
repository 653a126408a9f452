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

package types

import "github.com/pkg/errors"

// Dialect is an enum type to make it easy to switch on the source or
// target database engine that a replication pair talks to.
type Dialect int

// The dialects supported by the bridge.
const (
	DialectUnknown Dialect = iota
	DialectPostgreSQL
	DialectMySQL
	DialectRedshift
)

// String implements fmt.Stringer.
func (d Dialect) String() string {
	switch d {
	case DialectPostgreSQL:
		return "postgresql"
	case DialectMySQL:
		return "mysql"
	case DialectRedshift:
		return "redshift"
	default:
		return "unknown"
	}
}

// ParseDialect converts a configuration token into a Dialect. It returns
// an error for any token other than the three supported dialects; this
// is the Configuration-class error described in spec §7.
func ParseDialect(token string) (Dialect, error) {
	switch token {
	case "postgresql":
		return DialectPostgreSQL, nil
	case "mysql":
		return DialectMySQL, nil
	case "redshift":
		return DialectRedshift, nil
	default:
		return DialectUnknown, errors.Errorf("unsupported dialect token %q", token)
	}
}
