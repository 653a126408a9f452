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

// Package config holds the user-visible configuration for one
// replication pair, bound from command-line flags the way the teacher
// binds its server config.
package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"github.com/polyrepl/bridge/internal/types"
)

// Config is everything needed to activate one replication pair
// (spec §4.7's "activation request").
type Config struct {
	SourceDialectToken string
	SourceConn         string
	TargetDialectToken string
	TargetConn         string

	Schema string
	Table  string

	Slot            string
	PublicationName string

	// DMLPollIntervalSeconds and DDLPollIntervalSeconds override the default 1s
	// cadence from spec §4.7; zero means use the default.
	DMLPollIntervalSeconds int
	DDLPollIntervalSeconds int

	// Resolved by Preflight.
	SourceDialect types.Dialect
	TargetDialect types.Dialect
}

// Bind registers flags for one replication pair.
func (c *Config) Bind(flags *pflag.FlagSet) {
	flags.StringVar(&c.SourceDialectToken, "sourceDialect", "", "source database dialect: postgresql, mysql, or redshift")
	flags.StringVar(&c.SourceConn, "sourceConn", "", "source database connection string")
	flags.StringVar(&c.TargetDialectToken, "targetDialect", "", "target database dialect: postgresql, mysql, or redshift")
	flags.StringVar(&c.TargetConn, "targetConn", "", "target database connection string")
	flags.StringVar(&c.Schema, "schema", "public", "source and target schema name")
	flags.StringVar(&c.Table, "table", "", "table to replicate")
	flags.StringVar(&c.Slot, "slot", "", "source logical-decoding slot name (postgresql source only)")
	flags.StringVar(&c.PublicationName, "publicationNames", "", "source publication name (postgresql source only)")
	flags.IntVar(&c.DMLPollIntervalSeconds, "dmlPollIntervalSeconds", 1, "DML worker idle poll cadence, in seconds")
	flags.IntVar(&c.DDLPollIntervalSeconds, "ddlPollIntervalSeconds", 1, "DDL worker poll cadence, in seconds")
}

// Preflight validates the configuration and resolves dialect tokens
// into types.Dialect values. An unsupported dialect token is the
// Configuration-class error described in spec §7.
func (c *Config) Preflight() error {
	if c.SourceConn == "" {
		return errors.New("sourceConn unset")
	}
	if c.TargetConn == "" {
		return errors.New("targetConn unset")
	}
	if c.Table == "" {
		return errors.New("table unset")
	}

	sourceDialect, err := types.ParseDialect(c.SourceDialectToken)
	if err != nil {
		return errors.Wrap(err, "sourceDialect")
	}
	targetDialect, err := types.ParseDialect(c.TargetDialectToken)
	if err != nil {
		return errors.Wrap(err, "targetDialect")
	}
	c.SourceDialect = sourceDialect
	c.TargetDialect = targetDialect

	if sourceDialect == types.DialectPostgreSQL {
		if c.Slot == "" {
			return errors.New("slot unset for a postgresql source")
		}
		if c.PublicationName == "" {
			return errors.New("publicationNames unset for a postgresql source")
		}
	}
	if c.DMLPollIntervalSeconds < 0 {
		return errors.New("dmlPollIntervalSeconds must be non-negative")
	}
	if c.DDLPollIntervalSeconds < 0 {
		return errors.New("ddlPollIntervalSeconds must be non-negative")
	}

	return nil
}
