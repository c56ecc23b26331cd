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

package models

import (
	"time"
)

// MigrateModels is the list of model types auto-migrated at startup
var MigrateModels = []any{
	&AuditRecord{},
	&BatchSnapshot{},
}

// AuditRecord is one council event in the append-only audit log. Detail
// holds the JSON-encoded event payload.
type AuditRecord struct {
	ID        uint      `gorm:"primarykey"`
	Timestamp time.Time `gorm:"index"`
	EventType string    `gorm:"index"`
	Kind      string    `gorm:"index"`
	Nonce     uint64
	Guardian  string
	Detail    string
}

func (AuditRecord) TableName() string {
	return "audit_record"
}

// BatchSnapshot records the guardian batches as of a membership change,
// so batch history survives restarts. Guardians holds the JSON-encoded
// identity list in slot order.
type BatchSnapshot struct {
	ID        uint      `gorm:"primarykey"`
	Timestamp time.Time `gorm:"index"`
	BatchId   string    `gorm:"index"`
	Guardians string
}

func (BatchSnapshot) TableName() string {
	return "batch_snapshot"
}
