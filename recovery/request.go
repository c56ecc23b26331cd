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

	"github.com/blinklabs-io/warden/membership"
)

// Kind identifies an independent recovery channel. Each kind has its own
// live request, nonce sequence, and approval bookkeeping.
type Kind string

const (
	KindDeployer Kind = "deployer"
	KindAdmin    Kind = "admin"
)

// request is the live recovery request for one kind. Approval
// authorization lives in the engine's last-approved-nonce map, not here, so
// a new proposal invalidates all prior approvals without clearing anything.
type request struct {
	action    Action
	proposer  membership.Identity
	deadline  time.Time
	nonce     uint64
	approvals int
	executed  bool
	warning   bool
}

// RequestInfo is a point-in-time snapshot of a live recovery request
type RequestInfo struct {
	Kind          Kind
	Nonce         uint64
	Proposer      membership.Identity
	ProposedValue membership.Identity
	Action        string
	Approvals     int
	Deadline      time.Time
	Executed      bool
	WarningRaised bool
	Expired       bool
}

// VetoInfo describes the current last-honest-guardian veto assignment
type VetoInfo struct {
	Kind       Kind
	Nonce      uint64
	Guardian   membership.Identity
	VetoExpiry time.Time
}

type vetoAssignment struct {
	kind     Kind
	nonce    uint64
	guardian membership.Identity
	expiry   time.Time
}
