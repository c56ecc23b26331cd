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

package recovery

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/warden/event"
	"github.com/blinklabs-io/warden/membership"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultThreshold      = 5
	DefaultRecoveryWindow = 72 * time.Hour
	DefaultVetoWindow     = 48 * time.Hour
)

type EngineConfig struct {
	PromRegistry prometheus.Registerer
	Logger       *slog.Logger
	EventBus     *event.EventBus
	Membership   *membership.Store
	// AuditQuery is an optional read interface on the target, used only
	// for logging the observed role holder after execution
	AuditQuery RoleHolderQuerier
	// Kinds is the set of recovery channels. Default: deployer, admin
	Kinds []Kind
	// Threshold is the approval count required for execution
	Threshold int
	// RecoveryWindow is how long a proposal stays live
	RecoveryWindow time.Duration
	// VetoWindow is how long the last-honest guardian can veto
	VetoWindow time.Duration
	// Now overrides the clock, for tests
	Now func() time.Time
}

// Engine is the per-kind recovery request state machine, including the
// escalation monitor and the last-honest-guardian veto path. A single
// mutex serializes every state-changing operation: approvals increment
// strictly sequentially and nonce checks always observe a consistent
// prior state.
type Engine struct {
	config       EngineConfig
	metrics      *engineMetrics
	tracer       trace.Tracer
	requests     map[Kind]*request
	nonces       map[Kind]uint64
	lastApproved map[Kind]map[membership.Identity]uint64
	vetoes       map[Kind]*vetoAssignment
	locked       bool
	mu           sync.Mutex
}

type engineMetrics struct {
	proposals       prometheus.Counter
	approvals       prometheus.Counter
	executions      prometheus.Counter
	executeFailures prometheus.Counter
	warnings        prometheus.Counter
	vetoes          prometheus.Counter
	locks           prometheus.Counter
	liveRequests    prometheus.Gauge
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Membership == nil {
		return nil, fmt.Errorf("no membership store provided")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = []Kind{KindDeployer, KindAdmin}
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.Threshold > cfg.Membership.CommitteeSize() {
		return nil, fmt.Errorf(
			"threshold %d exceeds committee size %d",
			cfg.Threshold,
			cfg.Membership.CommitteeSize(),
		)
	}
	if cfg.RecoveryWindow == 0 {
		cfg.RecoveryWindow = DefaultRecoveryWindow
	}
	if cfg.VetoWindow == 0 {
		cfg.VetoWindow = DefaultVetoWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Logger = cfg.Logger.With("component", "recovery")
	e := &Engine{
		config:       cfg,
		tracer:       otel.Tracer("github.com/blinklabs-io/warden/recovery"),
		requests:     make(map[Kind]*request),
		nonces:       make(map[Kind]uint64),
		lastApproved: make(map[Kind]map[membership.Identity]uint64),
		vetoes:       make(map[Kind]*vetoAssignment),
	}
	for _, kind := range cfg.Kinds {
		e.lastApproved[kind] = make(map[membership.Identity]uint64)
	}
	if cfg.PromRegistry != nil {
		e.initMetrics()
	}
	return e, nil
}

func (e *Engine) initMetrics() {
	promautoFactory := promauto.With(e.config.PromRegistry)
	e.metrics = &engineMetrics{}
	e.metrics.proposals = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "warden_recovery_proposals_total",
		Help: "total recovery requests proposed",
	})
	e.metrics.approvals = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "warden_recovery_approvals_total",
		Help: "total recovery approvals recorded",
	})
	e.metrics.executions = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "warden_recovery_executions_total",
		Help: "total recovery requests executed",
	})
	e.metrics.executeFailures = promautoFactory.NewCounter(
		prometheus.CounterOpts{
			Name: "warden_recovery_execute_failures_total",
			Help: "total recovery action failures",
		},
	)
	e.metrics.warnings = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "warden_recovery_warnings_total",
		Help: "total near-unanimous approval warnings raised",
	})
	e.metrics.vetoes = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "warden_recovery_vetoes_total",
		Help: "total last-honest-guardian vetoes exercised",
	})
	e.metrics.locks = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "warden_recovery_locks_total",
		Help: "total unanimous-approval auto-locks",
	})
	e.metrics.liveRequests = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "warden_recovery_live_requests",
		Help: "current live recovery requests",
	})
}

// updateLiveRequests assumes e.mu is held by the caller
func (e *Engine) updateLiveRequests() {
	if e.metrics == nil {
		return
	}
	live := 0
	now := e.config.Now()
	for _, req := range e.requests {
		if req != nil && !req.executed && now.Before(req.deadline) {
			live++
		}
	}
	e.metrics.liveRequests.Set(float64(live))
}

func (e *Engine) knownKind(kind Kind) bool {
	_, ok := e.lastApproved[kind]
	return ok
}

// Propose opens a new recovery request for the given kind. The proposer
// must be an active guardian and counts as the first approval. A new
// proposal strictly increments the kind's nonce, implicitly invalidating
// every approval recorded against earlier nonces.
func (e *Engine) Propose(
	kind Kind,
	proposer membership.Identity,
	action Action,
) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.knownKind(kind) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if e.locked {
		return 0, ErrCouncilLocked
	}
	if !e.config.Membership.IsActive(proposer) {
		return 0, ErrNotActiveGuardian
	}
	if action == nil {
		return 0, ErrNilAction
	}
	if err := action.Validate(); err != nil {
		return 0, fmt.Errorf("invalid recovery action: %w", err)
	}
	// A live prior request for this kind is superseded, not mutated
	if old := e.requests[kind]; old != nil && !old.executed {
		e.publishDiscarded(kind, old.nonce, "superseded")
	}
	// Any veto assignment for this kind was scoped to the old nonce
	delete(e.vetoes, kind)
	e.nonces[kind]++
	nonce := e.nonces[kind]
	now := e.config.Now()
	req := &request{
		action:    action,
		proposer:  proposer,
		nonce:     nonce,
		approvals: 1,
		deadline:  now.Add(e.config.RecoveryWindow),
	}
	e.requests[kind] = req
	e.lastApproved[kind][proposer] = nonce
	e.updateLiveRequests()
	if e.metrics != nil {
		e.metrics.proposals.Inc()
	}
	e.config.Logger.Info(
		"recovery request proposed",
		"kind", string(kind),
		"nonce", nonce,
		"proposer", string(proposer),
		"action", action.Describe(),
		"deadline", req.deadline,
	)
	e.publish(RequestProposedEventType, RequestProposedEvent{
		Kind:          kind,
		Nonce:         nonce,
		Proposer:      proposer,
		ProposedValue: action.NewHolder(),
		Action:        action.Describe(),
		Deadline:      req.deadline,
	})
	return nonce, nil
}

// Approve records an approval for the live request of the given kind.
// Reaching committee-size-1 approvals raises a compromise warning and
// assigns the sole non-approver a veto window; reaching full unanimity
// locks the council and fails over to the standby batch without executing.
func (e *Engine) Approve(kind Kind, guardian membership.Identity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.knownKind(kind) {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if e.locked {
		return ErrCouncilLocked
	}
	if !e.config.Membership.IsActive(guardian) {
		return ErrNotActiveGuardian
	}
	req := e.requests[kind]
	if req == nil {
		return ErrNoRequest
	}
	if req.executed {
		return ErrAlreadyExecuted
	}
	if !e.config.Now().Before(req.deadline) {
		return ErrRequestExpired
	}
	if e.lastApproved[kind][guardian] == req.nonce {
		return ErrAlreadyApproved
	}
	e.lastApproved[kind][guardian] = req.nonce
	req.approvals++
	if e.metrics != nil {
		e.metrics.approvals.Inc()
	}
	e.config.Logger.Info(
		"recovery request approved",
		"kind", string(kind),
		"nonce", req.nonce,
		"guardian", string(guardian),
		"approvals", req.approvals,
	)
	e.publish(RequestApprovedEventType, RequestApprovedEvent{
		Kind:      kind,
		Nonce:     req.nonce,
		Guardian:  guardian,
		Approvals: req.approvals,
		Threshold: e.config.Threshold,
	})
	committeeSize := e.config.Membership.CommitteeSize()
	switch req.approvals {
	case committeeSize - 1:
		e.raiseWarningLocked(kind, req)
	case committeeSize:
		return e.autoLockLocked(kind, req)
	}
	return nil
}

// raiseWarningLocked assumes e.mu is held by the caller
func (e *Engine) raiseWarningLocked(kind Kind, req *request) {
	if req.warning {
		return
	}
	req.warning = true
	if e.metrics != nil {
		e.metrics.warnings.Inc()
	}
	e.config.Logger.Warn(
		"near-unanimous approvals, possible committee compromise",
		"kind", string(kind),
		"nonce", req.nonce,
		"approvals", req.approvals,
	)
	e.publish(WarningRaisedEventType, WarningRaisedEvent{
		Kind:      kind,
		Nonce:     req.nonce,
		Approvals: req.approvals,
	})
	honest, ok := selectLastHonest(
		e.config.Membership.Active(),
		e.lastApproved[kind],
		req.nonce,
	)
	if !ok {
		// Can happen if approvals were recorded by since-replaced guardians
		e.config.Logger.Warn(
			"no non-approving active guardian found, veto not assigned",
			"kind", string(kind),
			"nonce", req.nonce,
		)
		return
	}
	expiry := e.config.Now().Add(e.config.VetoWindow)
	e.vetoes[kind] = &vetoAssignment{
		kind:     kind,
		nonce:    req.nonce,
		guardian: honest,
		expiry:   expiry,
	}
	e.config.Logger.Warn(
		"last-honest guardian assigned veto power",
		"kind", string(kind),
		"nonce", req.nonce,
		"guardian", string(honest),
		"veto_expiry", expiry,
	)
	e.publish(VetoAssignedEventType, VetoAssignedEvent{
		Kind:       kind,
		Nonce:      req.nonce,
		Guardian:   honest,
		VetoExpiry: expiry,
	})
}

// autoLockLocked assumes e.mu is held by the caller. Unanimous approval
// this fast is itself the signature of a fully compromised committee, so
// the request is discarded rather than executed.
func (e *Engine) autoLockLocked(kind Kind, req *request) error {
	e.locked = true
	delete(e.requests, kind)
	delete(e.vetoes, kind)
	e.updateLiveRequests()
	if e.metrics != nil {
		e.metrics.locks.Inc()
	}
	e.config.Logger.Error(
		"unanimous approvals, locking council and failing over to standby",
		"kind", string(kind),
		"nonce", req.nonce,
		"approvals", req.approvals,
	)
	e.publishDiscarded(kind, req.nonce, "auto-lock")
	e.publish(CouncilLockedEventType, CouncilLockedEvent{
		Kind:      kind,
		Nonce:     req.nonce,
		Approvals: req.approvals,
	})
	if err := e.config.Membership.ActivateStandby(); err != nil {
		// Council stays locked either way: fail closed
		return fmt.Errorf("standby failover: %w", err)
	}
	return nil
}

// Execute performs the approved action for the given kind. Anyone may
// call it once the threshold is reached. The executed flag is set and the
// veto assignment cleared before the external call, so a re-entrant call
// observes the request as already executed. If the action fails, that
// state is rolled back together with the failure and the request remains
// retryable.
func (e *Engine) Execute(ctx context.Context, kind Kind) error {
	e.mu.Lock()
	if !e.knownKind(kind) {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if e.locked {
		e.mu.Unlock()
		return ErrCouncilLocked
	}
	req := e.requests[kind]
	if req == nil {
		e.mu.Unlock()
		return ErrNoRequest
	}
	if req.executed {
		e.mu.Unlock()
		return ErrAlreadyExecuted
	}
	if !e.config.Now().Before(req.deadline) {
		e.mu.Unlock()
		return ErrRequestExpired
	}
	if req.approvals < e.config.Threshold {
		err := ThresholdError{
			Approvals: req.approvals,
			Threshold: e.config.Threshold,
		}
		e.mu.Unlock()
		return err
	}
	// Mark executed and clear the veto assignment before the external
	// call is made
	req.executed = true
	execNonce := req.nonce
	action := req.action
	approvals := req.approvals
	savedVeto := e.vetoes[kind]
	delete(e.vetoes, kind)
	e.updateLiveRequests()
	e.mu.Unlock()

	ctx, span := e.tracer.Start(
		ctx,
		"recovery.execute",
		trace.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.Int64("nonce", int64(execNonce)), // #nosec G115
		),
	)
	applyErr := action.Apply(ctx)
	span.End()

	if applyErr == nil && e.config.AuditQuery != nil {
		e.auditRoleHolder(ctx, action)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if applyErr != nil {
		// Roll back to a retryable state, but only if this request is
		// still the live one for its kind
		if cur := e.requests[kind]; cur != nil && cur.nonce == execNonce {
			cur.executed = false
			if savedVeto != nil {
				if _, exists := e.vetoes[kind]; !exists {
					e.vetoes[kind] = savedVeto
				}
			}
		}
		e.updateLiveRequests()
		if e.metrics != nil {
			e.metrics.executeFailures.Inc()
		}
		e.config.Logger.Error(
			"recovery action failed",
			"kind", string(kind),
			"nonce", execNonce,
			"error", applyErr,
		)
		e.publish(ExecuteFailedEventType, ExecuteFailedEvent{
			Kind:  kind,
			Nonce: execNonce,
			Error: applyErr.Error(),
		})
		return ExecuteError{Kind: kind, Err: applyErr}
	}
	if e.metrics != nil {
		e.metrics.executions.Inc()
	}
	e.config.Logger.Info(
		"recovery request executed",
		"kind", string(kind),
		"nonce", execNonce,
		"approvals", approvals,
	)
	e.publish(RequestExecutedEventType, RequestExecutedEvent{
		Kind:          kind,
		Nonce:         execNonce,
		ProposedValue: action.NewHolder(),
		Approvals:     approvals,
	})
	return nil
}

// auditRoleHolder logs the role holder observed on the target after a
// successful execution. Audit only, never used for authorization.
func (e *Engine) auditRoleHolder(ctx context.Context, action Action) {
	replace, ok := action.(*ReplaceRoleHolder)
	if !ok {
		return
	}
	holder, err := e.config.AuditQuery.CurrentRoleHolder(ctx, replace.Role)
	if err != nil {
		e.config.Logger.Warn(
			"role holder audit query failed",
			"role", replace.Role,
			"error", err,
		)
		return
	}
	e.config.Logger.Info(
		"role holder after recovery",
		"role", replace.Role,
		"holder", string(holder),
	)
}

// LastHonestHaltAndPromote lets the assigned last-honest guardian
// unilaterally discard an almost-unanimous request and swap in the
// standby batch, before the attacker-controlled quorum can execute
func (e *Engine) LastHonestHaltAndPromote(
	kind Kind,
	caller membership.Identity,
) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.knownKind(kind) {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	veto := e.vetoes[kind]
	if veto == nil {
		return ErrNoVetoAssignment
	}
	if caller != veto.guardian {
		return ErrNotLastHonest
	}
	if e.config.Now().After(veto.expiry) {
		return ErrVetoWindowExpired
	}
	req := e.requests[kind]
	if req == nil || req.nonce != veto.nonce || req.executed {
		return ErrVetoStale
	}
	if !e.config.Now().Before(req.deadline) {
		return ErrRequestExpired
	}
	// Guard against a race where another approve or execute changed
	// state between assignment and this call
	if req.approvals != e.config.Membership.CommitteeSize()-1 {
		return ErrVetoStale
	}
	nonce := req.nonce
	delete(e.requests, kind)
	delete(e.vetoes, kind)
	e.updateLiveRequests()
	if e.metrics != nil {
		e.metrics.vetoes.Inc()
	}
	e.config.Logger.Warn(
		"last-honest guardian vetoed recovery, failing over to standby",
		"kind", string(kind),
		"nonce", nonce,
		"guardian", string(caller),
	)
	e.publishDiscarded(kind, nonce, "vetoed")
	e.publish(VetoExercisedEventType, VetoExercisedEvent{
		Kind:     kind,
		Nonce:    nonce,
		Guardian: caller,
	})
	if err := e.config.Membership.ActivateStandby(); err != nil {
		return fmt.Errorf("standby failover: %w", err)
	}
	return nil
}

// ClearLockAndWarning resets the lock flag, warning state, and all veto
// assignments. This is the explicit governance healing path, distinct from
// the automatic failover. Authorization is enforced by the governance
// channel, not here.
func (e *Engine) ClearLockAndWarning() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.locked = false
	e.vetoes = make(map[Kind]*vetoAssignment)
	for _, req := range e.requests {
		if req != nil {
			req.warning = false
		}
	}
	e.config.Logger.Info("council lock and warning state cleared")
	e.publish(LockClearedEventType, LockClearedEvent{})
}

// Locked returns true while the council is locked
func (e *Engine) Locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked
}

// Kinds returns the configured recovery kinds
func (e *Engine) Kinds() []Kind {
	ret := make([]Kind, len(e.config.Kinds))
	copy(ret, e.config.Kinds)
	return ret
}

// Request returns a snapshot of the current request for a kind, if any
func (e *Engine) Request(kind Kind) (RequestInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	req := e.requests[kind]
	if req == nil {
		return RequestInfo{}, false
	}
	return RequestInfo{
		Kind:          kind,
		Nonce:         req.nonce,
		Proposer:      req.proposer,
		ProposedValue: req.action.NewHolder(),
		Action:        req.action.Describe(),
		Approvals:     req.approvals,
		Deadline:      req.deadline,
		Executed:      req.executed,
		WarningRaised: req.warning,
		Expired:       !e.config.Now().Before(req.deadline),
	}, true
}

// Veto returns the veto assignment for a kind, if any
func (e *Engine) Veto(kind Kind) (VetoInfo, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	veto := e.vetoes[kind]
	if veto == nil {
		return VetoInfo{}, false
	}
	return VetoInfo{
		Kind:       veto.kind,
		Nonce:      veto.nonce,
		Guardian:   veto.guardian,
		VetoExpiry: veto.expiry,
	}, true
}

// Vetoes returns every live veto assignment, in configured kind order
func (e *Engine) Vetoes() []VetoInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	ret := make([]VetoInfo, 0, len(e.vetoes))
	for _, kind := range e.config.Kinds {
		veto := e.vetoes[kind]
		if veto == nil {
			continue
		}
		ret = append(ret, VetoInfo{
			Kind:       veto.kind,
			Nonce:      veto.nonce,
			Guardian:   veto.guardian,
			VetoExpiry: veto.expiry,
		})
	}
	return ret
}

func (e *Engine) publish(eventType event.EventType, data any) {
	if e.config.EventBus == nil {
		return
	}
	e.config.EventBus.Publish(eventType, event.NewEvent(eventType, data))
}

func (e *Engine) publishDiscarded(kind Kind, nonce uint64, reason string) {
	e.publish(RequestDiscardedEventType, RequestDiscardedEvent{
		Kind:   kind,
		Nonce:  nonce,
		Reason: reason,
	})
}
