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

package stopper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyrepl/bridge/internal/util/stopper"
)

func TestStopClosesStopping(t *testing.T) {
	ctx := stopper.WithContext(context.Background())
	select {
	case <-ctx.Stopping():
		t.Fatal("should not be stopping yet")
	default:
	}
	ctx.Stop()
	select {
	case <-ctx.Stopping():
	case <-time.After(time.Second):
		t.Fatal("Stopping channel never closed")
	}
}

func TestParentCancellationClosesStopping(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx := stopper.WithContext(parent)
	cancel()
	select {
	case <-ctx.Stopping():
	case <-time.After(time.Second):
		t.Fatal("Stopping channel never closed on parent cancellation")
	}
}

func TestGoRecordsFirstError(t *testing.T) {
	ctx := stopper.WithContext(context.Background())
	boom := errors.New("boom")
	ctx.Go(func() error { return boom })
	err := ctx.Wait()
	require.Error(t, err)
	assert.Equal(t, boom, err)

	select {
	case <-ctx.Stopping():
	default:
		t.Fatal("a failing goroutine should trigger Stop")
	}
}

func TestWaitWithNoGoroutines(t *testing.T) {
	ctx := stopper.WithContext(context.Background())
	require.NoError(t, ctx.Wait())
}
