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

package catalog

import (
	"context"

	"github.com/pkg/errors"

	"github.com/polyrepl/bridge/internal/types"
)

// lookupPostgres resolves declared types via pg_catalog.pg_attribute +
// format_type (the same query decode_and_replicate_messages.py's
// fetch_values_type issues), and primary-key membership via pg_index.
// Used for both postgresql and redshift targets/sources: Redshift
// exposes the same system catalogs through its Postgres wire protocol.
func lookupPostgres(ctx context.Context, pool types.SourceQuerier, schema, table string) (declared map[string]string, primary map[string]bool, err error) {
	rows, err := pool.QueryContext(ctx, `
		SELECT attname, pg_catalog.format_type(atttypid, atttypmod)
		FROM pg_catalog.pg_attribute
		WHERE attrelid = (
			SELECT c.oid
			FROM pg_catalog.pg_class c
			JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
			WHERE c.relname = $1 AND n.nspname = $2
		)
		AND attnum > 0
		AND NOT attisdropped;
	`, table, schema)
	if err != nil {
		return nil, nil, errors.Wrap(err, "query pg_attribute")
	}
	defer rows.Close()

	declared = make(map[string]string)
	for rows.Next() {
		var name, declType string
		if err := rows.Scan(&name, &declType); err != nil {
			return nil, nil, errors.Wrap(err, "scan pg_attribute row")
		}
		declared[name] = declType
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "iterate pg_attribute rows")
	}

	primary = make(map[string]bool)
	pkRows, err := pool.QueryContext(ctx, `
		SELECT a.attname
		FROM pg_catalog.pg_index i
		JOIN pg_catalog.pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = (
			SELECT c.oid
			FROM pg_catalog.pg_class c
			JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
			WHERE c.relname = $1 AND n.nspname = $2
		)
		AND i.indisprimary;
	`, table, schema)
	if err != nil {
		// Primary-key resolution is a supplemental convenience (spec
		// §9); its absence must never block the declared-type lookup
		// that callers actually depend on.
		return declared, primary, nil
	}
	defer pkRows.Close()
	for pkRows.Next() {
		var name string
		if err := pkRows.Scan(&name); err != nil {
			return declared, primary, nil
		}
		primary[name] = true
	}
	return declared, primary, nil
}
