// Copyright 2026 Blink Labs Software
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

package warden

import (
	"testing"
	"time"

	"github.com/blinklabs-io/warden/membership"
	"github.com/blinklabs-io/warden/recovery"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()
	assert.Nil(t, cfg.logger)
	assert.Empty(t, cfg.dataDir)
	assert.Equal(t, membership.NullIdentity, cfg.authority)
	assert.Zero(t, cfg.threshold)
	assert.Empty(t, cfg.apiListenAddress)
	assert.False(t, cfg.tracing)
}

func TestNewConfigOptions(t *testing.T) {
	active := membership.Batch{"guardian1"}
	cfg := NewConfig(
		WithGovernanceAuthority("dao"),
		WithActiveBatch(active),
		WithCommitteeSize(7),
		WithThreshold(5),
		WithRecoveryKinds(recovery.KindDeployer),
		WithRecoveryWindow(72*time.Hour),
		WithVetoWindow(48*time.Hour),
		WithGovernanceCommitDelay(24*time.Hour),
		WithGovernanceCommitWindow(72*time.Hour),
		WithApiListenAddress("localhost:8080"),
		WithDatabasePath("/tmp/warden"),
		WithShutdownTimeout(10*time.Second),
		WithTracing(true),
		WithTracingStdout(true),
	)
	assert.Equal(t, membership.Identity("dao"), cfg.authority)
	assert.Equal(t, active, cfg.activeBatch)
	assert.Equal(t, 7, cfg.committeeSize)
	assert.Equal(t, 5, cfg.threshold)
	assert.Equal(t, []recovery.Kind{recovery.KindDeployer}, cfg.kinds)
	assert.Equal(t, 72*time.Hour, cfg.recoveryWindow)
	assert.Equal(t, 48*time.Hour, cfg.vetoWindow)
	assert.Equal(t, 24*time.Hour, cfg.commitDelay)
	assert.Equal(t, 72*time.Hour, cfg.commitWindow)
	assert.Equal(t, "localhost:8080", cfg.apiListenAddress)
	assert.Equal(t, "/tmp/warden", cfg.dataDir)
	assert.Equal(t, 10*time.Second, cfg.shutdownTimeout)
	assert.True(t, cfg.tracing)
	assert.True(t, cfg.tracingStdout)
}
