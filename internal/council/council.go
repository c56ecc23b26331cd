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

package council

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/warden"
	"github.com/blinklabs-io/warden/internal/config"
	"github.com/blinklabs-io/warden/membership"
	"github.com/blinklabs-io/warden/recovery"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func toBatch(guardians []string) membership.Batch {
	batch := make(membership.Batch, len(guardians))
	for i, guardian := range guardians {
		batch[i] = membership.Identity(guardian)
	}
	return batch
}

func toKinds(kinds []string) []recovery.Kind {
	ret := make([]recovery.Kind, len(kinds))
	for i, kind := range kinds {
		ret[i] = recovery.Kind(kind)
	}
	return ret
}

// Run assembles and runs a council from the file/env config, blocking
// until a termination signal or a fatal error.
//
// The recovery target is a host-provided Go implementation and cannot be
// expressed in file/env config. A binary embedding this package passes
// warden.WithRecoveryTarget (and optionally warden.WithAuditQuery)
// through extraOpts; the stock CLI starts with no target bound, and
// governance binds one at runtime via ProposeTarget/CommitTarget.
func Run(
	cfg *config.Config,
	logger *slog.Logger,
	extraOpts ...warden.ConfigOptionFunc,
) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "council")
	shutdownTimeout := config.Duration(cfg.ShutdownTimeout)
	opts := []warden.ConfigOptionFunc{
		warden.WithLogger(logger),
		warden.WithDatabasePath(cfg.DatabasePath),
		warden.WithGovernanceAuthority(membership.Identity(cfg.Authority)),
		warden.WithCommitteeSize(cfg.CommitteeSize),
		warden.WithThreshold(cfg.Threshold),
		warden.WithRecoveryWindow(config.Duration(cfg.RecoveryWindow)),
		warden.WithVetoWindow(config.Duration(cfg.VetoWindow)),
		warden.WithGovernanceCommitDelay(config.Duration(cfg.CommitDelay)),
		warden.WithGovernanceCommitWindow(config.Duration(cfg.CommitWindow)),
		warden.WithApiListenAddress(cfg.ApiListenAddress),
		warden.WithShutdownTimeout(shutdownTimeout),
		warden.WithTracing(cfg.Tracing),
		warden.WithTracingStdout(cfg.TracingStdout),
		// Enable metrics with default prometheus registry
		warden.WithPrometheusRegistry(prometheus.DefaultRegisterer),
	}
	if len(cfg.ActiveGuardians) > 0 {
		opts = append(
			opts,
			warden.WithActiveBatch(toBatch(cfg.ActiveGuardians)),
		)
	}
	if len(cfg.StandbyGuardians) > 0 {
		opts = append(
			opts,
			warden.WithStandbyBatch(toBatch(cfg.StandbyGuardians)),
		)
	}
	if len(cfg.RecoveryKinds) > 0 {
		opts = append(
			opts,
			warden.WithRecoveryKinds(toKinds(cfg.RecoveryKinds)...),
		)
	}
	opts = append(opts, extraOpts...)
	c, err := warden.New(warden.NewConfig(opts...))
	if err != nil {
		return err
	}
	// Metrics listener
	http.Handle("/metrics", promhttp.Handler())
	logger.Info(
		fmt.Sprintf("serving prometheus metrics on :%d", cfg.MetricsPort),
		"component", "council",
	)
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "council",
			)
			os.Exit(1)
		}
	}()
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run council in goroutine
	errChan := make(chan error, 1)
	go func() {
		err := c.Run()
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	shutdownMetrics := func() {
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}
	}

	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")
		shutdownMetrics()
		if err := c.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		shutdownMetrics()
		if stopErr := c.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during cleanup",
				"error", stopErr,
			)
		}
		if err != nil {
			logger.Error("council error", "error", err)
		}
		return err
	}
}
