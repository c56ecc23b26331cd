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
	"time"

	"github.com/blinklabs-io/warden/event"
	"github.com/blinklabs-io/warden/membership"
)

const (
	RequestProposedEventType  event.EventType = "recovery.request-proposed"
	RequestApprovedEventType  event.EventType = "recovery.request-approved"
	RequestExecutedEventType  event.EventType = "recovery.request-executed"
	ExecuteFailedEventType    event.EventType = "recovery.execute-failed"
	RequestDiscardedEventType event.EventType = "recovery.request-discarded"
	WarningRaisedEventType    event.EventType = "recovery.warning-raised"
	VetoAssignedEventType     event.EventType = "recovery.veto-assigned"
	VetoExercisedEventType    event.EventType = "recovery.veto-exercised"
	CouncilLockedEventType    event.EventType = "recovery.council-locked"
	LockClearedEventType      event.EventType = "recovery.lock-cleared"
)

// RequestProposedEvent is published when a guardian opens a new recovery
// request. The proposer's approval is already counted.
type RequestProposedEvent struct {
	Kind          Kind
	Nonce         uint64
	Proposer      membership.Identity
	ProposedValue membership.Identity
	Action        string
	Deadline      time.Time
}

type RequestApprovedEvent struct {
	Kind      Kind
	Nonce     uint64
	Guardian  membership.Identity
	Approvals int
	Threshold int
}

type RequestExecutedEvent struct {
	Kind          Kind
	Nonce         uint64
	ProposedValue membership.Identity
	Approvals     int
}

type ExecuteFailedEvent struct {
	Kind  Kind
	Nonce uint64
	Error string
}

// RequestDiscardedEvent is published when a live request is dropped
// without execution (veto, auto-lock, or supersession by a new proposal)
type RequestDiscardedEvent struct {
	Kind   Kind
	Nonce  uint64
	Reason string
}

// WarningRaisedEvent signals that approvals reached one short of
// unanimity, the signature of a possible committee compromise
type WarningRaisedEvent struct {
	Kind      Kind
	Nonce     uint64
	Approvals int
}

type VetoAssignedEvent struct {
	Kind       Kind
	Nonce      uint64
	Guardian   membership.Identity
	VetoExpiry time.Time
}

type VetoExercisedEvent struct {
	Kind     Kind
	Nonce    uint64
	Guardian membership.Identity
}

// CouncilLockedEvent is published on unanimous approval: the council
// freezes itself and fails over to the standby batch
type CouncilLockedEvent struct {
	Kind      Kind
	Nonce     uint64
	Approvals int
}

type LockClearedEvent struct{}
