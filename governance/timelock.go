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

package governance

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/warden/event"
	"github.com/blinklabs-io/warden/membership"
	"github.com/blinklabs-io/warden/recovery"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	DefaultCommitDelay  = 24 * time.Hour
	DefaultCommitWindow = 72 * time.Hour
)

// ChangeKind identifies a timelocked governance channel. Each kind holds
// at most one pending change.
type ChangeKind string

const (
	ChangeAuthority    ChangeKind = "authority"
	ChangeActiveBatch  ChangeKind = "active-batch"
	ChangeStandbyBatch ChangeKind = "standby-batch"
	ChangeTarget       ChangeKind = "target"
)

type Config struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	EventBus     *event.EventBus
	Membership   *membership.Store
	Recovery     *recovery.Engine
	// Authority is the initial governance authority identity
	Authority membership.Identity
	// Target is the initial recovery target binding
	Target recovery.Target
	// CommitDelay is the minimum age of a pending change before commit
	CommitDelay time.Duration
	// CommitWindow is how long past the delay a pending change stays
	// committable
	CommitWindow time.Duration
	// Now overrides the clock, for tests
	Now func() time.Time
}

// pendingChange is a proposed change sitting in its timelock. The commit
// closure captures the proposed value, so commit-time state is exactly
// propose-time state.
type pendingChange struct {
	commit         func() error
	description    string
	proposedValue  membership.Identity
	earliestCommit time.Time
	commitDeadline time.Time
}

// PendingInfo is a point-in-time snapshot of a pending change
type PendingInfo struct {
	Kind           ChangeKind
	Description    string
	EarliestCommit time.Time
	CommitDeadline time.Time
}

// Authority is the timelocked governance layer above the council. Every
// structural change (authority transfer, batch reseed, recovery target
// rebinding) goes through an authority-only propose step and a commit
// step separated by a mandatory delay, bounded by a commit window. The
// matured commit is open to any caller; only an authority transfer
// restricts its committer, to the proposed identity. Healing actions
// (standby activation, lock clearing) are immediate but authority-only.
type Authority struct {
	config  Config
	metrics *authorityMetrics
	current membership.Identity
	target  recovery.Target
	pending map[ChangeKind]*pendingChange
	mu      sync.Mutex
}

type authorityMetrics struct {
	proposals     prometheus.Counter
	commits       prometheus.Counter
	cancellations prometheus.Counter
	pendingGauge  prometheus.Gauge
}

func New(cfg Config) (*Authority, error) {
	if cfg.Membership == nil {
		return nil, fmt.Errorf("no membership store provided")
	}
	if cfg.Authority == membership.NullIdentity {
		return nil, fmt.Errorf("no initial governance authority provided")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if cfg.CommitDelay == 0 {
		cfg.CommitDelay = DefaultCommitDelay
	}
	if cfg.CommitWindow == 0 {
		cfg.CommitWindow = DefaultCommitWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Logger = cfg.Logger.With("component", "governance")
	a := &Authority{
		config:  cfg,
		current: cfg.Authority,
		target:  cfg.Target,
		pending: make(map[ChangeKind]*pendingChange),
	}
	if cfg.PromRegistry != nil {
		a.initMetrics()
	}
	return a, nil
}

func (a *Authority) initMetrics() {
	promautoFactory := promauto.With(a.config.PromRegistry)
	a.metrics = &authorityMetrics{}
	a.metrics.proposals = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "warden_governance_proposals_total",
		Help: "total governance changes proposed",
	})
	a.metrics.commits = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "warden_governance_commits_total",
		Help: "total governance changes committed",
	})
	a.metrics.cancellations = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_governance_cancellations_total",
			Help: "total governance changes cancelled",
		},
	)
	a.metrics.pendingGauge = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "warden_governance_pending_changes",
		Help: "current pending governance changes",
	})
}

// requireAuthority assumes a.mu is held by the caller
func (a *Authority) requireAuthority(caller membership.Identity) error {
	if caller != a.current {
		return ErrNotAuthority
	}
	return nil
}

// proposeLocked assumes a.mu is held by the caller. A new proposal for a
// kind replaces any prior pending change for that kind.
func (a *Authority) proposeLocked(
	kind ChangeKind,
	proposer membership.Identity,
	description string,
	proposedValue membership.Identity,
	commit func() error,
) {
	now := a.config.Now()
	change := &pendingChange{
		commit:         commit,
		description:    description,
		proposedValue:  proposedValue,
		earliestCommit: now.Add(a.config.CommitDelay),
		commitDeadline: now.Add(a.config.CommitDelay + a.config.CommitWindow),
	}
	a.pending[kind] = change
	if a.metrics != nil {
		a.metrics.proposals.Inc()
		a.metrics.pendingGauge.Set(float64(len(a.pending)))
	}
	a.config.Logger.Info(
		"governance change proposed",
		"kind", string(kind),
		"proposer", string(proposer),
		"description", description,
		"earliest_commit", change.earliestCommit,
		"commit_deadline", change.commitDeadline,
	)
	a.publish(ChangeProposedEventType, ChangeProposedEvent{
		Kind:           kind,
		Proposer:       proposer,
		Description:    description,
		EarliestCommit: change.earliestCommit,
		CommitDeadline: change.commitDeadline,
	})
}

// takePendingLocked assumes a.mu is held by the caller. It validates the
// timelock and removes the change on success; an expired change is
// dropped on sight.
func (a *Authority) takePendingLocked(
	kind ChangeKind,
) (*pendingChange, error) {
	change := a.pending[kind]
	if change == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoPendingChange, kind)
	}
	now := a.config.Now()
	if now.After(change.commitDeadline) {
		delete(a.pending, kind)
		if a.metrics != nil {
			a.metrics.pendingGauge.Set(float64(len(a.pending)))
		}
		return nil, ErrCommitWindowExpired
	}
	if now.Before(change.earliestCommit) {
		return nil, ErrCommitTooEarly
	}
	delete(a.pending, kind)
	if a.metrics != nil {
		a.metrics.pendingGauge.Set(float64(len(a.pending)))
	}
	return change, nil
}

func (a *Authority) commitChange(
	kind ChangeKind,
	committer membership.Identity,
	change *pendingChange,
) error {
	if err := change.commit(); err != nil {
		// Re-queue so the commit can be retried inside its window
		a.pending[kind] = change
		if a.metrics != nil {
			a.metrics.pendingGauge.Set(float64(len(a.pending)))
		}
		return fmt.Errorf("commit %s: %w", kind, err)
	}
	if a.metrics != nil {
		a.metrics.commits.Inc()
	}
	a.config.Logger.Info(
		"governance change committed",
		"kind", string(kind),
		"committer", string(committer),
		"description", change.description,
	)
	a.publish(ChangeCommittedEventType, ChangeCommittedEvent{
		Kind:        kind,
		Committer:   committer,
		Description: change.description,
	})
	return nil
}

// ProposeAuthority starts a two-step authority transfer. Only the current
// authority may propose; only the proposed identity may commit.
func (a *Authority) ProposeAuthority(
	caller membership.Identity,
	newAuthority membership.Identity,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireAuthority(caller); err != nil {
		return err
	}
	if newAuthority == membership.NullIdentity {
		return ErrNullValue
	}
	a.proposeLocked(
		ChangeAuthority,
		caller,
		fmt.Sprintf("transfer authority to %s", newAuthority),
		newAuthority,
		nil,
	)
	return nil
}

// CommitAuthority completes an authority transfer. The caller must be
// the proposed new authority, proving control of the identity before it
// takes over.
func (a *Authority) CommitAuthority(caller membership.Identity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	change := a.pending[ChangeAuthority]
	if change != nil && caller != change.proposedValue {
		return ErrNotProposedAuthority
	}
	change, err := a.takePendingLocked(ChangeAuthority)
	if err != nil {
		return err
	}
	prior := a.current
	a.current = change.proposedValue
	if a.metrics != nil {
		a.metrics.commits.Inc()
	}
	a.config.Logger.Info(
		"governance authority transferred",
		"prior", string(prior),
		"new", string(a.current),
	)
	a.publish(ChangeCommittedEventType, ChangeCommittedEvent{
		Kind:        ChangeAuthority,
		Committer:   caller,
		Description: change.description,
	})
	a.publish(AuthorityTransferredEventType, AuthorityTransferredEvent{
		PriorAuthority: prior,
		NewAuthority:   a.current,
	})
	return nil
}

// ProposeActiveBatch queues a reseed of the active guardian batch
func (a *Authority) ProposeActiveBatch(
	caller membership.Identity,
	batch membership.Batch,
) error {
	return a.proposeBatch(ChangeActiveBatch, caller, batch)
}

// ProposeStandbyBatch queues a reseed of the standby guardian batch
func (a *Authority) ProposeStandbyBatch(
	caller membership.Identity,
	batch membership.Batch,
) error {
	return a.proposeBatch(ChangeStandbyBatch, caller, batch)
}

func (a *Authority) proposeBatch(
	kind ChangeKind,
	caller membership.Identity,
	batch membership.Batch,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireAuthority(caller); err != nil {
		return err
	}
	// Copy so later mutation of the caller's slice cannot change what
	// gets committed
	seed := batch.Copy()
	var commit func() error
	var description string
	switch kind {
	case ChangeActiveBatch:
		commit = func() error {
			return a.config.Membership.SeedActive(seed)
		}
		description = fmt.Sprintf("reseed active batch with %d guardians", len(seed))
	case ChangeStandbyBatch:
		commit = func() error {
			return a.config.Membership.SeedStandby(seed)
		}
		description = fmt.Sprintf("reseed standby batch with %d guardians", len(seed))
	default:
		return fmt.Errorf("%w: %s", ErrUnknownChangeKind, kind)
	}
	a.proposeLocked(kind, caller, description, membership.NullIdentity, commit)
	return nil
}

// CommitActiveBatch applies a queued active batch reseed
func (a *Authority) CommitActiveBatch(caller membership.Identity) error {
	return a.commitByKind(ChangeActiveBatch, caller)
}

// CommitStandbyBatch applies a queued standby batch reseed
func (a *Authority) CommitStandbyBatch(caller membership.Identity) error {
	return a.commitByKind(ChangeStandbyBatch, caller)
}

// commitByKind applies a matured pending change. Anyone may commit: the
// timelock window is the gate, so a change the authority has already
// queued cannot be stranded by a lost or frozen authority key.
func (a *Authority) commitByKind(
	kind ChangeKind,
	caller membership.Identity,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	change, err := a.takePendingLocked(kind)
	if err != nil {
		return err
	}
	return a.commitChange(kind, caller, change)
}

// ProposeTarget queues a rebinding of the recovery target, used when the
// protected system is upgraded or migrated
func (a *Authority) ProposeTarget(
	caller membership.Identity,
	target recovery.Target,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireAuthority(caller); err != nil {
		return err
	}
	if target == nil {
		return ErrNullValue
	}
	a.proposeLocked(
		ChangeTarget,
		caller,
		"rebind recovery target",
		membership.NullIdentity,
		func() error {
			a.target = target
			return nil
		},
	)
	return nil
}

// CommitTarget applies a queued recovery target rebinding
func (a *Authority) CommitTarget(caller membership.Identity) error {
	return a.commitByKind(ChangeTarget, caller)
}

// CancelPending drops a pending change without applying it
func (a *Authority) CancelPending(
	caller membership.Identity,
	kind ChangeKind,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireAuthority(caller); err != nil {
		return err
	}
	if a.pending[kind] == nil {
		return fmt.Errorf("%w: %s", ErrNoPendingChange, kind)
	}
	delete(a.pending, kind)
	if a.metrics != nil {
		a.metrics.cancellations.Inc()
		a.metrics.pendingGauge.Set(float64(len(a.pending)))
	}
	a.config.Logger.Info(
		"governance change cancelled",
		"kind", string(kind),
	)
	a.publish(ChangeCancelledEventType, ChangeCancelledEvent{Kind: kind})
	return nil
}

// ActivateStandby swaps the standby batch in as active. Immediate but
// authority-only: this is the manual failover path.
func (a *Authority) ActivateStandby(caller membership.Identity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireAuthority(caller); err != nil {
		return err
	}
	return a.config.Membership.ActivateStandby()
}

// ClearLockAndWarning resets the council's lock and warning state after
// an investigated incident. Immediate but authority-only.
func (a *Authority) ClearLockAndWarning(caller membership.Identity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.requireAuthority(caller); err != nil {
		return err
	}
	if a.config.Recovery != nil {
		a.config.Recovery.ClearLockAndWarning()
	}
	return nil
}

// CurrentAuthority returns the current governance authority identity
func (a *Authority) CurrentAuthority() membership.Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Target returns the current recovery target binding
func (a *Authority) Target() recovery.Target {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.target
}

// Pending returns a snapshot of the pending change for a kind, if any
func (a *Authority) Pending(kind ChangeKind) (PendingInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	change := a.pending[kind]
	if change == nil {
		return PendingInfo{}, false
	}
	return PendingInfo{
		Kind:           kind,
		Description:    change.description,
		EarliestCommit: change.earliestCommit,
		CommitDeadline: change.commitDeadline,
	}, true
}

// PendingChanges returns snapshots of all pending changes
func (a *Authority) PendingChanges() []PendingInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	ret := make([]PendingInfo, 0, len(a.pending))
	for kind, change := range a.pending {
		ret = append(ret, PendingInfo{
			Kind:           kind,
			Description:    change.description,
			EarliestCommit: change.earliestCommit,
			CommitDeadline: change.commitDeadline,
		})
	}
	return ret
}

func (a *Authority) publish(eventType event.EventType, data any) {
	if a.config.EventBus == nil {
		return
	}
	a.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}
