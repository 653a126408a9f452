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

// Package walreader polls a Postgres logical-decoding slot for pending
// changes, per spec §4.1 (C1, dialect A).
package walreader

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pkg/errors"

	"github.com/polyrepl/bridge/internal/types"
)

// errAuthFailure and errProtocolMismatch are the two failure classes
// spec §4.1 calls out as fatal ("fails fatally and surfaces to the
// supervisor"). A real driver reports these as distinct error values or
// wrapped codes; callers that can identify one should wrap it with one
// of these sentinels so isFatal recognizes it.
var (
	errAuthFailure      = errors.New("walreader: authentication failure")
	errProtocolMismatch = errors.New("walreader: protocol mismatch")
)

// Frame is one pending change returned by the slot: its LSN, the
// transaction ID it belongs to, and the raw decoder payload (spec §4.1,
// §4.2).
type Frame struct {
	LSN     uint64
	XID     uint32
	Payload []byte
}

// PostgresReader polls a source pool's logical-decoding slot.
type PostgresReader struct {
	Pool            types.SourceQuerier
	Slot            string
	PublicationName string

	// PollInterval overrides the default 1Hz poll cadence from spec
	// §4.1; zero means use the default.
	PollInterval time.Duration
}

// New returns a PostgresReader bound to pool, reading from slot with
// the given publication name.
func New(pool types.SourceQuerier, slot, publicationName string) *PostgresReader {
	return &PostgresReader{Pool: pool, Slot: slot, PublicationName: publicationName}
}

// defaultPollInterval is the ~1Hz idle cadence spec §4.1 mandates.
const defaultPollInterval = time.Second

func (r *PostgresReader) pollInterval() time.Duration {
	if r.PollInterval > 0 {
		return r.PollInterval
	}
	return defaultPollInterval
}

// Poll issues one pg_logical_slot_get_binary_changes call and returns
// whatever frames are pending. An empty, nil-error result means the
// slot had nothing pending; the caller (the supervisor's DML worker) is
// responsible for the idle sleep described in §4.1/§4.7 — Poll itself
// never sleeps, so tests can call it without waiting out the cadence.
func (r *PostgresReader) Poll(ctx context.Context) ([]Frame, error) {
	rows, err := r.Pool.QueryContext(ctx,
		`SELECT lsn, xid, data FROM pg_logical_slot_get_binary_changes($1, NULL, NULL, 'proto_version', '1', 'publication_names', $2)`,
		r.Slot, r.PublicationName,
	)
	if err != nil {
		if isFatal(err) {
			return nil, errors.Wrap(err, "walreader: fatal error reading slot")
		}
		log.WithError(err).Warn("walreader: transient error polling slot, will retry with unchanged cursor")
		return nil, nil
	}
	defer rows.Close()

	var frames []Frame
	for rows.Next() {
		var lsn string
		var xid uint32
		var data []byte
		if err := rows.Scan(&lsn, &xid, &data); err != nil {
			return nil, errors.Wrap(err, "walreader: scan pending change row")
		}
		parsedLSN, err := parseLSN(lsn)
		if err != nil {
			return nil, errors.Wrapf(err, "walreader: parse lsn %q", lsn)
		}
		frames = append(frames, Frame{LSN: parsedLSN, XID: xid, Payload: data})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "walreader: iterate pending change rows")
	}
	return frames, nil
}

// parseLSN converts a Postgres "%X/%X" LSN string into a single u64,
// the same 32-high/32-low packing Postgres itself uses internally.
func parseLSN(s string) (uint64, error) {
	var hi, lo uint32
	if _, err := fmt.Sscanf(s, "%X/%X", &hi, &lo); err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// isFatal distinguishes authentication/protocol failures (which the
// supervisor must surface immediately, per §4.1) from ordinary
// transient I/O errors (retried with the cursor unchanged). Driver
// error classification is necessarily heuristic; any error not
// recognized as fatal is treated as transient, matching §4.1's bias
// towards retrying.
func isFatal(err error) bool {
	return errors.Is(err, errAuthFailure) || errors.Is(err, errProtocolMismatch)
}
