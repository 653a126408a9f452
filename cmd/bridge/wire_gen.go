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

// Code generated by hand in the style of Wire. DO NOT EDIT casually —
// see buildPair for the injection graph.

package main

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/polyrepl/bridge/internal/config"
	"github.com/polyrepl/bridge/internal/source/binlogreader"
	"github.com/polyrepl/bridge/internal/supervisor"
	"github.com/polyrepl/bridge/internal/types"
)

// startupPingTimeout bounds how long buildPair waits for a freshly
// opened pool to answer a ping before giving up — a database container
// still coming up shouldn't need a second invocation of the command.
const startupPingTimeout = 30 * time.Second

// buildPair wires together the connection pools and, for a MySQL
// source, the binlog streamer, producing the supervisor.Pair that
// main hands to a *supervisor.Supervisor. It mirrors the shape of the
// teacher's generated wire_gen.go injectors: a flat sequence of
// Provide-style steps, each able to fail and unwind the ones before it.
func buildPair(ctx context.Context, cfg *config.Config) (supervisor.Pair, func(), error) {
	sourcePool, sourceCleanup, err := provideSourcePool(ctx, cfg)
	if err != nil {
		return supervisor.Pair{}, func() {}, errors.Wrap(err, "open source pool")
	}

	targetPool, targetCleanup, err := provideTargetPool(ctx, cfg)
	if err != nil {
		sourceCleanup()
		return supervisor.Pair{}, func() {}, errors.Wrap(err, "open target pool")
	}
	cleanup := func() {
		targetCleanup()
		sourceCleanup()
	}

	pair := supervisor.Pair{
		SourceDialect:   cfg.SourceDialect,
		SourcePool:      sourcePool,
		TargetDialect:   cfg.TargetDialect,
		TargetPool:      targetPool,
		Schema:          cfg.Schema,
		Table:           cfg.Table,
		Slot:            cfg.Slot,
		PublicationName: cfg.PublicationName,
		DMLPollInterval: time.Duration(cfg.DMLPollIntervalSeconds) * time.Second,
		DDLPollInterval: time.Duration(cfg.DDLPollIntervalSeconds) * time.Second,
	}

	if cfg.SourceDialect == types.DialectMySQL {
		reader, err := provideMySQLReader(cfg, sourcePool)
		if err != nil {
			cleanup()
			return supervisor.Pair{}, func() {}, errors.Wrap(err, "open binlog reader")
		}
		pair.MySQLReader = reader
		cleanup = func() {
			reader.Close()
			targetCleanup()
			sourceCleanup()
		}
	}

	return pair, cleanup, nil
}

func provideSourcePool(ctx context.Context, cfg *config.Config) (*types.SourcePool, func(), error) {
	driver, err := driverNameFor(cfg.SourceDialect)
	if err != nil {
		return nil, func() {}, err
	}
	db, err := sql.Open(driver, cfg.SourceConn)
	if err != nil {
		return nil, func() {}, errors.Wrap(err, "source sql.Open")
	}
	pool := &types.SourcePool{
		DB:       db,
		PoolInfo: types.PoolInfo{ConnectionString: cfg.SourceConn, Dialect: cfg.SourceDialect},
	}
	if err := waitForPing(ctx, db, "source"); err != nil {
		db.Close()
		return nil, func() {}, err
	}
	if version, err := queryVersion(ctx, db); err == nil {
		pool.Version = version
	}
	return pool, func() { db.Close() }, nil
}

func provideTargetPool(ctx context.Context, cfg *config.Config) (*types.TargetPool, func(), error) {
	driver, err := driverNameFor(cfg.TargetDialect)
	if err != nil {
		return nil, func() {}, err
	}
	db, err := sql.Open(driver, cfg.TargetConn)
	if err != nil {
		return nil, func() {}, errors.Wrap(err, "target sql.Open")
	}
	pool := &types.TargetPool{
		DB:       db,
		PoolInfo: types.PoolInfo{ConnectionString: cfg.TargetConn, Dialect: cfg.TargetDialect},
	}
	if err := waitForPing(ctx, db, "target"); err != nil {
		db.Close()
		return nil, func() {}, err
	}
	if version, err := queryVersion(ctx, db); err == nil {
		pool.Version = version
	}
	return pool, func() { db.Close() }, nil
}

// waitForPing pings db, retrying on a transient connection-refused style
// failure until the database comes up or ctx gives out — a newly started
// database container frequently isn't accepting connections yet when the
// bridge process starts alongside it.
func waitForPing(ctx context.Context, db *sql.DB, role string) error {
	deadline := time.Now().Add(startupPingTimeout)
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrapf(err, "%s pool: could not ping database before deadline", role)
		}
		log.WithError(err).WithField("role", role).Info("waiting for database to become ready")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// queryVersion asks the engine for its version string, best-effort: a
// failure here never fails pool construction since the version is only
// used for diagnostics.
func queryVersion(ctx context.Context, db *sql.DB) (string, error) {
	var version string
	if err := db.QueryRowContext(ctx, "SELECT VERSION();").Scan(&version); err != nil {
		return "", err
	}
	return version, nil
}

// driverNameFor returns the database/sql driver name registered for
// dialect. Redshift speaks the Postgres wire protocol, so it shares
// pgx's driver rather than needing a driver of its own.
func driverNameFor(dialect types.Dialect) (string, error) {
	switch dialect {
	case types.DialectPostgreSQL, types.DialectRedshift:
		return "pgx", nil
	case types.DialectMySQL:
		return "mysql", nil
	default:
		return "", errors.Errorf("no sql driver registered for dialect %s", dialect)
	}
}

// provideMySQLReader parses cfg.SourceConn as a go-sql-driver/mysql DSN
// to recover the host, port, user, and password binlogreader.Open needs
// to start its own replication connection alongside sourcePool's
// information_schema connection.
func provideMySQLReader(cfg *config.Config, sourcePool *types.SourcePool) (*binlogreader.MySQLReader, error) {
	dsn, err := gomysql.ParseDSN(cfg.SourceConn)
	if err != nil {
		return nil, errors.Wrap(err, "parse mysql source DSN")
	}
	host, portStr, err := net.SplitHostPort(dsn.Addr)
	if err != nil {
		return nil, errors.Wrapf(err, "split mysql source address %q", dsn.Addr)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return nil, errors.Wrapf(err, "parse mysql source port %q", portStr)
	}

	return binlogreader.Open(sourcePool.DB, host, uint16(port), dsn.User, dsn.Passwd, binlogreader.Allowed{
		Schema: cfg.Schema,
		Table:  cfg.Table,
	})
}
