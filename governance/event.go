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
	"time"

	"github.com/blinklabs-io/warden/event"
	"github.com/blinklabs-io/warden/membership"
)

const (
	ChangeProposedEventType       event.EventType = "governance.change-proposed"
	ChangeCommittedEventType      event.EventType = "governance.change-committed"
	ChangeCancelledEventType      event.EventType = "governance.change-cancelled"
	AuthorityTransferredEventType event.EventType = "governance.authority-transferred"
)

type ChangeProposedEvent struct {
	Kind           ChangeKind
	Proposer       membership.Identity
	Description    string
	EarliestCommit time.Time
	CommitDeadline time.Time
}

type ChangeCommittedEvent struct {
	Kind        ChangeKind
	Committer   membership.Identity
	Description string
}

type ChangeCancelledEvent struct {
	Kind ChangeKind
}

// AuthorityTransferredEvent is published when the proposed authority
// accepts the transfer
type AuthorityTransferredEvent struct {
	PriorAuthority membership.Identity
	NewAuthority   membership.Identity
}
