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

// Command bridge activates a single cross-engine replication pair and
// runs until terminated.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/polyrepl/bridge/internal/config"
	"github.com/polyrepl/bridge/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("bridge: exiting")
	}
}

func run() error {
	var cfg config.Config
	cfg.Bind(pflag.CommandLine)
	pflag.Parse()

	if err := cfg.Preflight(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pair, cleanup, err := buildPair(ctx, &cfg)
	defer cleanup()
	if err != nil {
		return err
	}

	sup := supervisor.New()
	handle, err := sup.Start(ctx, pair)
	if err != nil {
		return err
	}
	log.WithField("pair", handle.ID).
		WithField("sourceDialect", cfg.SourceDialect).
		WithField("targetDialect", cfg.TargetDialect).
		WithField("table", cfg.Table).
		Info("bridge: replication pair started")

	<-ctx.Done()
	log.WithField("pair", handle.ID).Info("bridge: shutdown signal received")
	sup.Stop(handle.ID)

	return nil
}
