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

// Package supervisor spawns and tracks the per-pair DML and DDL workers
// described in spec §4.7, isolating each iteration's failure so the loop
// itself never exits short of shutdown.
package supervisor

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/polyrepl/bridge/internal/apply"
	"github.com/polyrepl/bridge/internal/catalog"
	"github.com/polyrepl/bridge/internal/reconcile"
	"github.com/polyrepl/bridge/internal/render"
	"github.com/polyrepl/bridge/internal/source/binlogreader"
	"github.com/polyrepl/bridge/internal/source/walreader"
	"github.com/polyrepl/bridge/internal/types"
	"github.com/polyrepl/bridge/internal/util/stopper"
	"github.com/polyrepl/bridge/internal/wal"
)

// Pair names one replication activation: a source table replicated to a
// target table, on a given pair of dialects and connections.
type Pair struct {
	SourceDialect types.Dialect
	SourcePool    *types.SourcePool
	TargetDialect types.Dialect
	TargetPool    *types.TargetPool

	Schema string
	Table  string

	// Postgres-source-only fields (spec §4.1).
	Slot            string
	PublicationName string

	// MySQLReader, required and already Open'd when SourceDialect is
	// DialectMySQL — opening a binlog stream needs connection
	// parameters the Supervisor doesn't otherwise manage.
	MySQLReader *binlogreader.MySQLReader

	DMLPollInterval time.Duration
	DDLPollInterval time.Duration
}

// PairHandle is returned by Start; its ID is stable for the pair's
// lifetime and is used with Status/Stop.
type PairHandle struct {
	ID string
}

// Supervisor owns the set of currently active replication pairs.
type Supervisor struct {
	mu     sync.Mutex
	active map[string]*activePair
}

type activePair struct {
	stop     *stopper.Context
	progress *progress
}

// New returns an empty Supervisor.
func New() *Supervisor {
	return &Supervisor{active: make(map[string]*activePair)}
}

// Start activates pair, launching its DML and DDL workers, and returns a
// handle used to query or stop it. Dialect tokens are validated by
// config.Config.Preflight (spec §7's Configuration-class error); Start
// itself rejects a pair whose source or target dialect is still
// DialectUnknown, and launches no workers for it.
func (s *Supervisor) Start(ctx context.Context, pair Pair) (PairHandle, error) {
	if pair.SourceDialect == types.DialectUnknown || pair.TargetDialect == types.DialectUnknown {
		return PairHandle{}, errors.New("supervisor: pair has an unresolved dialect")
	}

	id := uuid.NewString()
	stop := stopper.WithContext(ctx)
	prog := newProgress()

	s.mu.Lock()
	s.active[id] = &activePair{stop: stop, progress: prog}
	s.mu.Unlock()

	cache := catalog.New()
	renderer := render.New(pair.TargetDialect)
	applier := apply.New(pair.TargetPool)
	reconciler := reconcile.New(pair.SourcePool, pair.TargetPool, pair.SourceDialect, pair.TargetDialect)

	stop.Go(func() error {
		runDMLWorker(stop, id, pair, cache, renderer, applier, prog)
		return nil
	})
	stop.Go(func() error {
		runDDLWorker(stop, id, pair, reconciler, prog)
		return nil
	})

	return PairHandle{ID: id}, nil
}

// Status returns the current PairStatus for id, or false if id is
// unknown (never started, or already Stop'd and forgotten).
func (s *Supervisor) Status(id string) (PairStatus, bool) {
	s.mu.Lock()
	ap, ok := s.active[id]
	s.mu.Unlock()
	if !ok {
		return PairStatus{}, false
	}
	return ap.progress.snapshot(), true
}

// Stop requests cooperative shutdown of id's workers. It does not block
// until they exit. Stop forgets id, so Status reports it as unknown
// afterwards.
func (s *Supervisor) Stop(id string) {
	s.mu.Lock()
	ap, ok := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	ap.progress.setRunning(false)
	ap.stop.Stop()
}

// defaultDMLPollInterval and defaultDDLPollInterval are the idle cadences
// from spec §4.7 when a Pair doesn't override them.
const (
	defaultDMLPollInterval = time.Second
	defaultDDLPollInterval = time.Second
)

func runDMLWorker(stop *stopper.Context, id string, pair Pair, cache *catalog.Cache, renderer *render.Renderer, applier *apply.Applier, prog *progress) {
	interval := pair.DMLPollInterval
	if interval <= 0 {
		interval = defaultDMLPollInterval
	}

	var reader *walreader.PostgresReader
	if pair.SourceDialect == types.DialectPostgreSQL {
		reader = walreader.New(pair.SourcePool, pair.Slot, pair.PublicationName)
	}

	for {
		select {
		case <-stop.Stopping():
			return
		default:
		}

		empty, err := dmlIteration(stop, id, pair, cache, renderer, applier, reader, prog)
		if err != nil {
			dmlErrors.WithLabelValues(id, pair.Table).Inc()
			prog.recordError(err)
			log.WithError(err).WithField("pair", id).Error("dml worker: iteration failed, continuing")
		}
		dmlIterations.WithLabelValues(id, pair.Table).Inc()

		if empty {
			select {
			case <-stop.Stopping():
				return
			case <-time.After(interval):
			}
		}
	}
}

// dmlIteration runs one pass of read -> decode-or-normalize -> catalog
// lookup -> render -> apply, per spec §4.7. empty reports whether there
// was nothing to process, so the caller knows whether to idle-sleep.
func dmlIteration(stop *stopper.Context, id string, pair Pair, cache *catalog.Cache, renderer *render.Renderer, applier *apply.Applier, reader *walreader.PostgresReader, prog *progress) (empty bool, err error) {
	var records []types.ChangeRecord
	var lastLSN uint64
	var lastXID uint32

	switch pair.SourceDialect {
	case types.DialectPostgreSQL:
		frames, err := reader.Poll(stop)
		if err != nil {
			return true, err
		}
		if len(frames) == 0 {
			return true, nil
		}
		for _, f := range frames {
			rec, err := wal.Decode(f.Payload)
			if err != nil {
				return false, errors.Wrap(err, "dml worker: decode frame")
			}
			records = append(records, rec)
			lastLSN, lastXID = f.LSN, f.XID
		}
	case types.DialectMySQL:
		recs, err := pair.MySQLReader.Next()
		if err != nil {
			return true, err
		}
		records = recs
	default:
		return true, errors.Errorf("dml worker: unsupported source dialect %s", pair.SourceDialect)
	}

	for _, rec := range records {
		if err := applyOne(stop, id, rec, pair, cache, renderer, applier); err != nil {
			return false, err
		}
	}
	if lastLSN != 0 || lastXID != 0 {
		prog.recordPosition(lastLSN, lastXID)
	}
	return false, nil
}

func applyOne(ctx context.Context, id string, rec types.ChangeRecord, pair Pair, cache *catalog.Cache, renderer *render.Renderer, applier *apply.Applier) error {
	switch v := rec.(type) {
	case types.Relation:
		cache.Observe(&v)
		return nil
	case types.Begin:
		applier.ObserveBegin(v)
		return nil
	case types.Commit:
		applier.ObserveCommit(v)
		return nil
	case types.Truncate:
		for _, oid := range v.RelationOIDs {
			entry, ok := cache.Get(oid)
			if !ok {
				return errors.Errorf("dml worker: no catalog entry for truncated relation oid %d", oid)
			}
			if err := renderAndApply(ctx, id, pair.Table, rec, entry, renderer, applier); err != nil {
				return err
			}
		}
		return nil
	}

	oid, err := relationOID(rec)
	if err != nil {
		return err
	}
	entry, ok := cache.Get(oid)
	if !ok && pair.SourceDialect == types.DialectMySQL && pair.MySQLReader != nil {
		// A binlog stream never sends a Relation announcement the way
		// logical decoding does (§6 is specific to that wire protocol),
		// so the first event for a table has to seed its own catalog
		// entry from the column list the reader already resolved at
		// Open time.
		seedMySQLRelation(cache, pair, oid)
		entry, ok = cache.Get(oid)
	}
	if !ok {
		return errors.Errorf("dml worker: no catalog entry for relation oid %d", oid)
	}
	if !hasDeclaredTypes(entry) {
		// Declared types not yet resolved for this relation: resolve
		// them now via the on-first-need system-catalog lookup (§4.3
		// point 2). Subsequent records for the same relation reuse the
		// cached result.
		resolved, err := cache.Lookup(ctx, sourceQuerierOf(pair.SourcePool), pair.SourceDialect, oid)
		if err != nil {
			return errors.Wrap(err, "dml worker: resolve declared types")
		}
		entry = resolved
	}

	return renderAndApply(ctx, id, pair.Table, rec, entry, renderer, applier)
}

// seedMySQLRelation synthesizes the types.Relation announcement a binlog
// source never emits, from the column names MySQLReader.Columns()
// resolved at Open time, and folds it into cache the same way a decoded
// Relation message would on the WAL path. Column order here must match
// tupleFromRow's, since both ultimately come from the same
// information_schema.columns query.
func seedMySQLRelation(cache *catalog.Cache, pair Pair, oid uint32) {
	names := pair.MySQLReader.Columns()
	cols := make([]types.ColumnMeta, len(names))
	for i, name := range names {
		cols[i] = types.ColumnMeta{Name: name}
	}
	cache.Observe(&types.Relation{
		OID:       oid,
		Namespace: pair.Schema,
		Name:      pair.Table,
		Columns:   cols,
	})
}

func renderAndApply(ctx context.Context, id, table string, rec types.ChangeRecord, entry *types.CatalogEntry, renderer *render.Renderer, applier *apply.Applier) error {
	start := time.Now()
	defer func() {
		dmlApplyDurations.WithLabelValues(id, table).Observe(time.Since(start).Seconds())
	}()

	stmt, args, emit, err := renderer.Render(rec, entry)
	if err != nil {
		return errors.Wrap(err, "dml worker: render statement")
	}
	if !emit {
		log.WithField("relation_oid", entry.OID).Warn("dml worker: record produced no statement (empty SET/WHERE clause)")
		return nil
	}
	return applier.Apply(ctx, stmt, args)
}

// hasDeclaredTypes reports whether every column of entry already carries
// a resolved declared type, so the DML worker knows whether a catalog
// Lookup is still owed for this relation.
func hasDeclaredTypes(entry *types.CatalogEntry) bool {
	if len(entry.Columns) == 0 {
		return false
	}
	for _, c := range entry.Columns {
		if c.DeclaredType == "" {
			return false
		}
	}
	return true
}

func relationOID(rec types.ChangeRecord) (uint32, error) {
	switch v := rec.(type) {
	case types.Insert:
		return v.RelationOID, nil
	case types.Update:
		return v.RelationOID, nil
	case types.Delete:
		return v.RelationOID, nil
	default:
		return 0, errors.Errorf("dml worker: unsupported record type %T", rec)
	}
}

func sourceQuerierOf(pool *types.SourcePool) types.SourceQuerier {
	if pool == nil {
		return (*sql.DB)(nil)
	}
	return pool.DB
}

func runDDLWorker(stop *stopper.Context, id string, pair Pair, reconciler *reconcile.Reconciler, prog *progress) {
	interval := pair.DDLPollInterval
	if interval <= 0 {
		interval = defaultDDLPollInterval
	}

	for {
		select {
		case <-stop.Stopping():
			return
		default:
		}

		start := time.Now()
		_, err := reconciler.Reconcile(stop, pair.Schema, pair.Table)
		ddlReconcileDurations.WithLabelValues(id, pair.Table).Observe(time.Since(start).Seconds())
		if err != nil {
			ddlErrors.WithLabelValues(id, pair.Table).Inc()
			prog.recordError(err)
			log.WithError(err).WithField("pair", id).Error("ddl worker: iteration failed, continuing")
		}
		ddlIterations.WithLabelValues(id, pair.Table).Inc()

		select {
		case <-stop.Stopping():
			return
		case <-time.After(interval):
		}
	}
}
