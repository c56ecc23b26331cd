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
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package api

import (
	"github.com/blinklabs-io/warden/database"
	"github.com/blinklabs-io/warden/database/models"
	"github.com/blinklabs-io/warden/governance"
	"github.com/blinklabs-io/warden/membership"
	"github.com/blinklabs-io/warden/recovery"
)

// CouncilView is the read-only view of council state the API serves.
// The API never mutates: proposals, approvals, and governance changes
// only enter through authenticated guardian channels, not HTTP.
type CouncilView interface {
	Locked() bool
	Kinds() []recovery.Kind
	Request(kind recovery.Kind) (recovery.RequestInfo, bool)
	Vetoes() []recovery.VetoInfo
	ActiveBatch() membership.Batch
	StandbyBatch() membership.Batch
	CurrentAuthority() membership.Identity
	PendingChanges() []governance.PendingInfo
	AuditRecords(
		filter database.AuditFilter,
	) ([]models.AuditRecord, error)
}
