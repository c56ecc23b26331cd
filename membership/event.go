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

package membership

import (
	"github.com/blinklabs-io/warden/event"
)

const (
	BatchSeededEventType      event.EventType = "membership.batch-seeded"
	StandbyActivatedEventType event.EventType = "membership.standby-activated"
	GuardianReplacedEventType event.EventType = "membership.guardian-replaced"
)

// BatchSeededEvent is published when a batch is seeded or reseeded
type BatchSeededEvent struct {
	Batch     string
	Guardians Batch
}

// StandbyActivatedEvent is published when the standby batch is promoted to
// active. PriorActive carries the batch that was displaced.
type StandbyActivatedEvent struct {
	PriorActive Batch
	NewActive   Batch
}

// GuardianReplacedEvent is published when a single guardian slot is replaced
type GuardianReplacedEvent struct {
	Batch       string
	Slot        int
	OldGuardian Identity
	NewGuardian Identity
}
