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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/warden/api"
	"github.com/blinklabs-io/warden/database"
	"github.com/blinklabs-io/warden/database/models"
	"github.com/blinklabs-io/warden/event"
	"github.com/blinklabs-io/warden/governance"
	"github.com/blinklabs-io/warden/membership"
	"github.com/blinklabs-io/warden/recovery"
)

// Council is the top-level guardian council: membership, the recovery
// engine, the governance authority, persistence, and the read-only API
// wired onto a shared event bus.
type Council struct {
	eventBus      *event.EventBus
	membership    *membership.Store
	engine        *recovery.Engine
	authority     *governance.Authority
	db            *database.Database
	api           *api.Api
	apiCancel     context.CancelFunc
	shutdownFuncs []func(context.Context) error
	config        Config
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Council, error) {
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.authority == membership.NullIdentity {
		return nil, errors.New("no governance authority configured")
	}
	c := &Council{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		done:     make(chan struct{}),
	}
	return c, nil
}

// Run assembles the council and blocks until Stop is called
func (c *Council) Run() error {
	// Configure tracing
	if c.config.tracing {
		if err := c.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(database.Config{
		DataDir:  c.config.dataDir,
		Logger:   c.config.logger,
		EventBus: c.eventBus,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	c.db = db
	// Load membership
	c.membership = membership.NewStore(membership.StoreConfig{
		PromRegistry:  c.config.promRegistry,
		Logger:        c.config.logger,
		EventBus:      c.eventBus,
		CommitteeSize: c.config.committeeSize,
	})
	if len(c.config.activeBatch) > 0 {
		if err := c.membership.SeedActive(c.config.activeBatch); err != nil {
			return fmt.Errorf("failed to seed active batch: %w", err)
		}
	}
	if len(c.config.standbyBatch) > 0 {
		if err := c.membership.SeedStandby(c.config.standbyBatch); err != nil {
			return fmt.Errorf("failed to seed standby batch: %w", err)
		}
	}
	// Load recovery engine
	engine, err := recovery.NewEngine(recovery.EngineConfig{
		PromRegistry:   c.config.promRegistry,
		Logger:         c.config.logger,
		EventBus:       c.eventBus,
		Membership:     c.membership,
		AuditQuery:     c.config.auditQuery,
		Kinds:          c.config.kinds,
		Threshold:      c.config.threshold,
		RecoveryWindow: c.config.recoveryWindow,
		VetoWindow:     c.config.vetoWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to load recovery engine: %w", err)
	}
	c.engine = engine
	// Load governance
	authority, err := governance.New(governance.Config{
		PromRegistry: c.config.promRegistry,
		Logger:       c.config.logger,
		EventBus:     c.eventBus,
		Membership:   c.membership,
		Recovery:     c.engine,
		Authority:    c.config.authority,
		Target:       c.config.target,
		CommitDelay:  c.config.commitDelay,
		CommitWindow: c.config.commitWindow,
	})
	if err != nil {
		return fmt.Errorf("failed to load governance: %w", err)
	}
	c.authority = authority
	// Configure API
	if c.config.apiListenAddress != "" {
		c.api = api.New(
			api.Config{
				ListenAddress: c.config.apiListenAddress,
			},
			c,
			c.config.logger,
		)
		apiCtx, apiCancel := context.WithCancel(context.Background())
		c.apiCancel = apiCancel
		if err := c.api.Start(apiCtx); err != nil {
			apiCancel()
			return err
		}
	}

	// Wait for shutdown signal
	<-c.done
	return nil
}

func (c *Council) Stop() error {
	var err error
	c.shutdownOnce.Do(func() {
		err = c.shutdown()
	})
	return err
}

func (c *Council) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if c.config.shutdownTimeout > 0 {
		shutdownTimeout = c.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	c.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	c.config.logger.Debug("shutdown phase 1: stopping new work")

	if c.api != nil {
		if stopErr := c.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}
	if c.apiCancel != nil {
		c.apiCancel()
	}

	// Phase 2: Flush state and close database
	c.config.logger.Debug("shutdown phase 2: flushing state")

	if c.db != nil {
		if closeErr := c.db.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("database close: %w", closeErr),
			)
		}
	}

	// Phase 3: Cleanup resources
	c.config.logger.Debug("shutdown phase 3: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range c.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	c.shutdownFuncs = nil

	if c.eventBus != nil {
		c.eventBus.Stop()
	}

	c.config.logger.Debug("graceful shutdown complete")
	close(c.done)
	return err
}

// Membership returns the guardian membership store
func (c *Council) Membership() *membership.Store {
	return c.membership
}

// Recovery returns the recovery engine
func (c *Council) Recovery() *recovery.Engine {
	return c.engine
}

// Governance returns the governance authority
func (c *Council) Governance() *governance.Authority {
	return c.authority
}

// Database returns the audit and payload database
func (c *Council) Database() *database.Database {
	return c.db
}

// EventBus returns the shared event bus
func (c *Council) EventBus() *event.EventBus {
	return c.eventBus
}

// Propose opens a recovery request through the engine. Raw-call payloads
// are additionally persisted for later inspection.
func (c *Council) Propose(
	kind recovery.Kind,
	proposer membership.Identity,
	action recovery.Action,
) (uint64, error) {
	nonce, err := c.engine.Propose(kind, proposer, action)
	if err != nil {
		return 0, err
	}
	if call, ok := action.(*recovery.Call); ok && c.db != nil {
		if putErr := c.db.Payload().PutPayload(
			string(kind),
			nonce,
			call.Payload,
		); putErr != nil {
			c.config.logger.Error(
				"failed to persist call payload",
				"component", "warden",
				"kind", string(kind),
				"nonce", nonce,
				"error", putErr,
			)
		}
	}
	return nonce, nil
}

// Approve records a guardian approval on the live request of a kind
func (c *Council) Approve(
	kind recovery.Kind,
	guardian membership.Identity,
) error {
	return c.engine.Approve(kind, guardian)
}

// Execute performs the approved recovery action for a kind
func (c *Council) Execute(ctx context.Context, kind recovery.Kind) error {
	return c.engine.Execute(ctx, kind)
}

// LastHonestHaltAndPromote exercises the last-honest guardian veto
func (c *Council) LastHonestHaltAndPromote(
	kind recovery.Kind,
	caller membership.Identity,
) error {
	return c.engine.LastHonestHaltAndPromote(kind, caller)
}

// Locked returns true while the council is locked
func (c *Council) Locked() bool {
	return c.engine.Locked()
}

// Kinds returns the configured recovery kinds
func (c *Council) Kinds() []recovery.Kind {
	return c.engine.Kinds()
}

// Request returns the live request snapshot for a kind, if any
func (c *Council) Request(
	kind recovery.Kind,
) (recovery.RequestInfo, bool) {
	return c.engine.Request(kind)
}

// Veto returns the veto assignment for a kind, if any
func (c *Council) Veto(kind recovery.Kind) (recovery.VetoInfo, bool) {
	return c.engine.Veto(kind)
}

// Vetoes returns every live veto assignment
func (c *Council) Vetoes() []recovery.VetoInfo {
	return c.engine.Vetoes()
}

// ActiveBatch returns the active guardian batch
func (c *Council) ActiveBatch() membership.Batch {
	return c.membership.Active()
}

// StandbyBatch returns the standby guardian batch
func (c *Council) StandbyBatch() membership.Batch {
	return c.membership.Standby()
}

// CurrentAuthority returns the governance authority identity
func (c *Council) CurrentAuthority() membership.Identity {
	return c.authority.CurrentAuthority()
}

// PendingChanges returns all pending governance changes
func (c *Council) PendingChanges() []governance.PendingInfo {
	return c.authority.PendingChanges()
}

// AuditRecords queries the audit log
func (c *Council) AuditRecords(
	filter database.AuditFilter,
) ([]models.AuditRecord, error) {
	return c.db.Audit().Records(filter)
}

var _ api.CouncilView = (*Council)(nil)
