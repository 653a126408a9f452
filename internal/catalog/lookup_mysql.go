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

// lookupMySQL resolves declared types via information_schema.columns
// scoped by table_schema, the same query ddl_replication_mysql.py's
// get_table_structure issues, and primary-key membership via
// information_schema.key_column_usage / table_constraints.
func lookupMySQL(ctx context.Context, pool types.SourceQuerier, schema, table string) (declared map[string]string, primary map[string]bool, err error) {
	rows, err := pool.QueryContext(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_name = ? AND table_schema = ?;
	`, table, schema)
	if err != nil {
		return nil, nil, errors.Wrap(err, "query information_schema.columns")
	}
	defer rows.Close()

	declared = make(map[string]string)
	for rows.Next() {
		var name, declType string
		if err := rows.Scan(&name, &declType); err != nil {
			return nil, nil, errors.Wrap(err, "scan information_schema.columns row")
		}
		declared[name] = declType
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "iterate information_schema.columns rows")
	}

	primary = make(map[string]bool)
	pkRows, err := pool.QueryContext(ctx, `
		SELECT k.column_name
		FROM information_schema.key_column_usage k
		JOIN information_schema.table_constraints t
			ON t.constraint_name = k.constraint_name
			AND t.table_schema = k.table_schema
			AND t.table_name = k.table_name
		WHERE k.table_name = ? AND k.table_schema = ? AND t.constraint_type = 'PRIMARY KEY';
	`, table, schema)
	if err != nil {
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
