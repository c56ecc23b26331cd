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
	"log/slog"
	"time"

	"github.com/blinklabs-io/warden/membership"
	"github.com/blinklabs-io/warden/recovery"

	"github.com/prometheus/client_golang/prometheus"
)

type Config struct {
	promRegistry  prometheus.Registerer
	logger        *slog.Logger
	target        recovery.Target
	auditQuery    recovery.RoleHolderQuerier
	dataDir       string
	authority     membership.Identity
	activeBatch   membership.Batch
	standbyBatch  membership.Batch
	kinds         []recovery.Kind
	committeeSize int
	threshold     int
	// Recovery timing
	recoveryWindow time.Duration
	vetoWindow     time.Duration
	// Governance timing
	commitDelay  time.Duration
	commitWindow time.Duration
	// API listen address (empty = disabled)
	apiListenAddress string
	tracing          bool
	tracingStdout    bool
	shutdownTimeout  time.Duration
}

// ConfigOptionFunc is a type that represents functions that modify the Council config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new warden config with the specified options applied
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add metrics to. In most cases, prometheus.DefaultRegistry would be
// a good choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDatabasePath specifies the persistence directory for the audit log
// and payload store. Empty runs fully in-memory.
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithGovernanceAuthority specifies the initial governance authority identity
func WithGovernanceAuthority(authority membership.Identity) ConfigOptionFunc {
	return func(c *Config) {
		c.authority = authority
	}
}

// WithActiveBatch specifies the initial active guardian batch
func WithActiveBatch(batch membership.Batch) ConfigOptionFunc {
	return func(c *Config) {
		c.activeBatch = batch
	}
}

// WithStandbyBatch specifies the initial standby guardian batch
func WithStandbyBatch(batch membership.Batch) ConfigOptionFunc {
	return func(c *Config) {
		c.standbyBatch = batch
	}
}

// WithCommitteeSize specifies the guardian committee size. This defaults to 7
func WithCommitteeSize(size int) ConfigOptionFunc {
	return func(c *Config) {
		c.committeeSize = size
	}
}

// WithThreshold specifies the approval threshold for recovery execution. This defaults to 5
func WithThreshold(threshold int) ConfigOptionFunc {
	return func(c *Config) {
		c.threshold = threshold
	}
}

// WithRecoveryTarget specifies the protected system recoveries act on
func WithRecoveryTarget(target recovery.Target) ConfigOptionFunc {
	return func(c *Config) {
		c.target = target
	}
}

// WithAuditQuery specifies an optional read interface on the target used
// for post-execution audit logging
func WithAuditQuery(querier recovery.RoleHolderQuerier) ConfigOptionFunc {
	return func(c *Config) {
		c.auditQuery = querier
	}
}

// WithRecoveryKinds specifies the recovery channels. This defaults to deployer and admin
func WithRecoveryKinds(kinds ...recovery.Kind) ConfigOptionFunc {
	return func(c *Config) {
		c.kinds = kinds
	}
}

// WithRecoveryWindow specifies how long a recovery proposal stays live. This defaults to 72 hours
func WithRecoveryWindow(window time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.recoveryWindow = window
	}
}

// WithVetoWindow specifies the last-honest guardian's veto window. This defaults to 48 hours
func WithVetoWindow(window time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.vetoWindow = window
	}
}

// WithGovernanceCommitDelay specifies the governance timelock delay. This defaults to 24 hours
func WithGovernanceCommitDelay(delay time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.commitDelay = delay
	}
}

// WithGovernanceCommitWindow specifies how long past the delay a pending governance change stays committable. This defaults to 72 hours
func WithGovernanceCommitWindow(window time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.commitWindow = window
	}
}

// WithApiListenAddress specifies the listen address for the read-only REST API. Empty disables the API
func WithApiListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = address
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}
