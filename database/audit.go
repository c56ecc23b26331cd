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

package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blinklabs-io/warden/database/models"
	"github.com/blinklabs-io/warden/event"
	"github.com/blinklabs-io/warden/governance"
	"github.com/blinklabs-io/warden/membership"
	"github.com/blinklabs-io/warden/recovery"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// WatchedEventTypes is the set of event types the audit store records
var WatchedEventTypes = []event.EventType{
	membership.BatchSeededEventType,
	membership.StandbyActivatedEventType,
	membership.GuardianReplacedEventType,
	recovery.RequestProposedEventType,
	recovery.RequestApprovedEventType,
	recovery.RequestExecutedEventType,
	recovery.ExecuteFailedEventType,
	recovery.RequestDiscardedEventType,
	recovery.WarningRaisedEventType,
	recovery.VetoAssignedEventType,
	recovery.VetoExercisedEventType,
	recovery.CouncilLockedEventType,
	recovery.LockClearedEventType,
	governance.ChangeProposedEventType,
	governance.ChangeCommittedEventType,
	governance.ChangeCancelledEventType,
	governance.AuthorityTransferredEventType,
}

// AuditStore is the append-only SQLite log of council events. Uses an
// in-memory database when dataDir is empty, useful for testing.
type AuditStore struct {
	db      *gorm.DB
	logger  *slog.Logger
	subIds  map[event.EventType]event.EventSubscriberId
	bus     *event.EventBus
	writeMu sync.Mutex
}

func NewAuditStore(
	dataDir string,
	logger *slog.Logger,
) (*AuditStore, error) {
	var auditDb *gorm.DB
	var err error
	if dataDir == "" {
		// cache=shared allows multiple connections to share the same
		// in-memory database
		auditDb, err = gorm.Open(
			sqlite.Open("file::memory:?cache=shared"),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	} else {
		// Make sure that we can read data dir, and create if it doesn't
		// exist
		if _, err := os.Stat(dataDir); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", err)
			}
			if err := os.MkdirAll(dataDir, fs.ModePerm); err != nil {
				return nil, fmt.Errorf("failed to create data dir: %w", err)
			}
		}
		auditDbPath := filepath.Join(dataDir, "audit.sqlite")
		// WAL journal mode so reads don't block the event-driven writes
		auditConnOpts := "_pragma=journal_mode(WAL)"
		auditDb, err = gorm.Open(
			sqlite.Open(
				fmt.Sprintf("file:%s?%s", auditDbPath, auditConnOpts),
			),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
		if err != nil {
			return nil, err
		}
	}
	if err := auditDb.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	s := &AuditStore{
		db:     auditDb,
		logger: logger,
		subIds: make(map[event.EventType]event.EventSubscriberId),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	for _, model := range models.MigrateModels {
		if err := s.db.AutoMigrate(model); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Watch subscribes the store to council events on the given bus. Each
// watched event becomes one audit record.
func (s *AuditStore) Watch(bus *event.EventBus) {
	s.bus = bus
	for _, eventType := range WatchedEventTypes {
		s.subIds[eventType] = bus.SubscribeFunc(eventType, s.record)
	}
}

// eventProbe pulls the common identifying fields out of an encoded event
// payload. Fields absent from a given event type simply stay zero.
type eventProbe struct {
	Kind     string `json:"Kind"`
	Nonce    uint64 `json:"Nonce"`
	Guardian string `json:"Guardian"`
	Proposer string `json:"Proposer"`
}

func (s *AuditStore) record(evt event.Event) {
	detail, err := json.Marshal(evt.Data)
	if err != nil {
		s.logger.Error(
			"failed to encode audit event",
			"component", "database",
			"event_type", string(evt.Type),
			"error", err,
		)
		return
	}
	var probe eventProbe
	// Best effort, the full payload lands in Detail regardless
	_ = json.Unmarshal(detail, &probe)
	guardian := probe.Guardian
	if guardian == "" {
		guardian = probe.Proposer
	}
	record := models.AuditRecord{
		Timestamp: evt.Timestamp,
		EventType: string(evt.Type),
		Kind:      probe.Kind,
		Nonce:     probe.Nonce,
		Guardian:  guardian,
		Detail:    string(detail),
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if result := s.db.Create(&record); result.Error != nil {
		s.logger.Error(
			"failed to write audit record",
			"component", "database",
			"event_type", string(evt.Type),
			"error", result.Error,
		)
		return
	}
	// Membership transitions additionally snapshot the batches
	switch data := evt.Data.(type) {
	case membership.BatchSeededEvent:
		s.snapshotBatch(record, data.Batch, data.Guardians)
	case membership.StandbyActivatedEvent:
		s.snapshotBatch(
			record,
			membership.BatchActive.String(),
			data.NewActive,
		)
	}
}

func (s *AuditStore) snapshotBatch(
	record models.AuditRecord,
	batchId string,
	batch membership.Batch,
) {
	guardians, err := json.Marshal(batch)
	if err != nil {
		s.logger.Error(
			"failed to encode batch snapshot",
			"component", "database",
			"error", err,
		)
		return
	}
	snapshot := models.BatchSnapshot{
		Timestamp: record.Timestamp,
		BatchId:   batchId,
		Guardians: string(guardians),
	}
	if result := s.db.Create(&snapshot); result.Error != nil {
		s.logger.Error(
			"failed to write batch snapshot",
			"component", "database",
			"error", result.Error,
		)
	}
}

// AuditFilter narrows a Records query. Zero fields match everything.
type AuditFilter struct {
	EventType string
	Kind      string
	Limit     int
}

// Records returns audit records matching the filter, newest first
func (s *AuditStore) Records(
	filter AuditFilter,
) ([]models.AuditRecord, error) {
	query := s.db.Order("id DESC")
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var records []models.AuditRecord
	if result := query.Find(&records); result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

// BatchHistory returns batch snapshots, newest first
func (s *AuditStore) BatchHistory(
	limit int,
) ([]models.BatchSnapshot, error) {
	query := s.db.Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var snapshots []models.BatchSnapshot
	if result := query.Find(&snapshots); result.Error != nil {
		return nil, result.Error
	}
	return snapshots, nil
}

func (s *AuditStore) Close() error {
	if s.bus != nil {
		for eventType, subId := range s.subIds {
			s.bus.Unsubscribe(eventType, subId)
		}
	}
	sqlDb, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}
